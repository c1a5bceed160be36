package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"lambda-janitor/internal/janitor"
	"lambda-janitor/internal/queue"
	"lambda-janitor/internal/shared/storage/object"
	"lambda-janitor/internal/shared/telemetry"
)

const contentTypeJSON = "application/json"

// ObjectSink archives every run summary as a JSON document.
type ObjectSink struct {
	store object.ObjectStore
}

// NewObjectSink writes summaries to the given store.
func NewObjectSink(store object.ObjectStore) *ObjectSink {
	return &ObjectSink{store: store}
}

// Key returns the storage key for a summary: YYYY/MM/DD/<runId>.json by run date.
func Key(summary janitor.Summary) string {
	asOf := summary.AsOf
	if asOf.IsZero() {
		asOf = summary.StartedAt
	}
	return path.Join(asOf.UTC().Format("2006/01/02"), summary.RunID+".json")
}

// Publish stores the summary.
func (s *ObjectSink) Publish(ctx context.Context, summary janitor.Summary) error {
	if strings.TrimSpace(summary.RunID) == "" {
		return fmt.Errorf("report: summary has no run id")
	}
	payload, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	key := Key(summary)
	size, err := s.store.Put(ctx, key, contentTypeJSON, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("store summary: %w", err)
	}
	telemetry.Info("report.summary.stored", map[string]any{
		"run_id":     summary.RunID,
		"key":        key,
		"size_bytes": size,
	})
	return nil
}

// QueueSink announces every run on a queue.
type QueueSink struct {
	client queue.Client
	now    func() time.Time
}

// NewQueueSink publishes run messages through client.
func NewQueueSink(client queue.Client) *QueueSink {
	return &QueueSink{client: client, now: time.Now}
}

// Publish sends the run message.
func (s *QueueSink) Publish(ctx context.Context, summary janitor.Summary) error {
	msg := MessageFor(summary, s.now())
	if err := s.client.Send(ctx, msg); err != nil {
		return fmt.Errorf("enqueue summary: %w", err)
	}
	telemetry.Info("report.summary.enqueued", map[string]any{
		"run_id": summary.RunID,
	})
	return nil
}

// MessageFor flattens a summary into a queue message.
func MessageFor(summary janitor.Summary, enqueuedAt time.Time) queue.Message {
	return queue.Message{
		RunID:              summary.RunID,
		AsOf:               summary.AsOf.UTC().Format(time.RFC3339),
		FinishedAt:         summary.FinishedAt.UTC().Format(time.RFC3339),
		DryRun:             summary.DryRun,
		FunctionsScanned:   summary.FunctionsScanned,
		FunctionsFailed:    summary.FunctionsFailed,
		VersionsScanned:    summary.VersionsScanned,
		Warned:             summary.Warned,
		Deleted:            summary.Deleted,
		WouldDelete:        summary.WouldDelete,
		DeleteFailed:       summary.DeleteFailed,
		NotificationFailed: summary.NotificationFailed,
		Error:              summary.Error,
		EnqueuedAt:         enqueuedAt.UTC().Format(time.RFC3339),
		Version:            queue.MessageVersion,
	}
}

var (
	_ janitor.Reporter = (*ObjectSink)(nil)
	_ janitor.Reporter = (*QueueSink)(nil)
)
