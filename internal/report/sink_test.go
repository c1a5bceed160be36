package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"lambda-janitor/internal/janitor"
	"lambda-janitor/internal/queue"
	"lambda-janitor/internal/shared/storage/object/local"
	"lambda-janitor/internal/shared/telemetry"
)

func quietLogs(t *testing.T) {
	t.Helper()
	prev := telemetry.SetOutput(&bytes.Buffer{})
	t.Cleanup(func() { telemetry.SetOutput(prev) })
}

func sampleSummary() janitor.Summary {
	return janitor.Summary{
		RunID:            "run-42",
		AsOf:             time.Date(2024, 6, 30, 3, 0, 0, 0, time.UTC),
		StartedAt:        time.Date(2024, 6, 30, 3, 0, 1, 0, time.UTC),
		FinishedAt:       time.Date(2024, 6, 30, 3, 0, 9, 0, time.UTC),
		RetentionDays:    30,
		AlertDays:        7,
		FunctionsScanned: 2,
		VersionsScanned:  5,
		Kept:             2,
		Warned:           1,
		Deleted:          2,
		NotificationSent: true,
		Outcomes: []janitor.Outcome{
			{FunctionName: "orders", Version: "1", Action: janitor.ActionDelete, Status: janitor.StatusDeleted, AgeDays: 40},
			{FunctionName: "orders", Version: "2", Action: janitor.ActionWarn, Status: janitor.StatusWarned, AgeDays: 25},
		},
	}
}

func TestKey(t *testing.T) {
	if got := Key(sampleSummary()); got != "2024/06/30/run-42.json" {
		t.Fatalf("key = %q", got)
	}
}

func TestObjectSinkStoresSummary(t *testing.T) {
	quietLogs(t)
	store := local.New(t.TempDir())
	sink := NewObjectSink(store)

	if err := sink.Publish(context.Background(), sampleSummary()); err != nil {
		t.Fatalf("publish: %v", err)
	}

	rc, err := store.Open(context.Background(), "2024/06/30/run-42.json")
	if err != nil {
		t.Fatalf("open stored summary: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)

	var got janitor.Summary
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode stored summary: %v", err)
	}
	if got.RunID != "run-42" || got.Deleted != 2 || len(got.Outcomes) != 2 {
		t.Fatalf("unexpected stored summary: %+v", got)
	}
	if !strings.Contains(string(data), `"action": "DELETE"`) {
		t.Fatalf("expected textual action in %s", data)
	}
}

func TestObjectSinkRequiresRunID(t *testing.T) {
	sink := NewObjectSink(local.New(t.TempDir()))
	if err := sink.Publish(context.Background(), janitor.Summary{}); err == nil {
		t.Fatalf("expected error")
	}
}

type fakeQueue struct {
	sent []queue.Message
	err  error
}

func (f *fakeQueue) Send(ctx context.Context, msg queue.Message) error {
	_ = ctx
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func TestQueueSinkSendsMessage(t *testing.T) {
	quietLogs(t)
	q := &fakeQueue{}
	sink := NewQueueSink(q)
	sink.now = func() time.Time { return time.Date(2024, 6, 30, 3, 0, 10, 0, time.UTC) }

	if err := sink.Publish(context.Background(), sampleSummary()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(q.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(q.sent))
	}
	msg := q.sent[0]
	if msg.RunID != "run-42" || msg.Deleted != 2 || msg.Warned != 1 || msg.Version != queue.MessageVersion {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.AsOf != "2024-06-30T03:00:00Z" || msg.EnqueuedAt != "2024-06-30T03:00:10Z" {
		t.Fatalf("unexpected timestamps: %+v", msg)
	}
}

func TestQueueSinkWrapsErrors(t *testing.T) {
	sink := NewQueueSink(&fakeQueue{err: errors.New("throttled")})
	if err := sink.Publish(context.Background(), sampleSummary()); err == nil {
		t.Fatalf("expected error")
	}
}
