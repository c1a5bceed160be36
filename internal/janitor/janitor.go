package janitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"lambda-janitor/internal/shared/metrics"
	"lambda-janitor/internal/shared/telemetry"
)

const defaultSubject = "Lambda Cleanup Notification"

// Options configures a Janitor for its whole lifetime.
type Options struct {
	Policy     Policy
	Functions  []string
	Excluded   []string
	Sender     string
	Recipients []string
	Subject    string
}

// RunOptions configures a single run.
type RunOptions struct {
	Now    time.Time
	DryRun bool
}

// FunctionPlan is the side-effect free classification of one function.
type FunctionPlan struct {
	FunctionName    string           `json:"functionName"`
	Classifications []Classification `json:"classifications"`
	Error           string           `json:"error,omitempty"`
}

// Janitor classifies function versions and acts on the result.
type Janitor struct {
	Provider  Provider
	Notifier  Notifier
	Reporters []Reporter
	Options   Options

	// Clock supplies wall-clock times for run bookkeeping only.
	Clock func() time.Time
}

// New validates the options and returns a Janitor.
func New(provider Provider, notifier Notifier, opts Options, reporters ...Reporter) (*Janitor, error) {
	if provider == nil {
		return nil, fmt.Errorf("janitor: provider is required")
	}
	if err := opts.Policy.Validate(); err != nil {
		return nil, err
	}
	return &Janitor{
		Provider:  provider,
		Notifier:  notifier,
		Reporters: reporters,
		Options:   opts,
		Clock:     time.Now,
	}, nil
}

// Run performs one cleanup pass. The returned summary is always populated; the error is
// non-nil only for configuration problems or when no function in scope could be listed.
func (j *Janitor) Run(ctx context.Context, opts RunOptions) (Summary, error) {
	now := opts.Now
	if now.IsZero() {
		now = j.now()
	}
	policy := j.Options.Policy
	sum := Summary{
		RunID:         uuid.NewString(),
		AsOf:          now.UTC(),
		StartedAt:     j.now().UTC(),
		DryRun:        opts.DryRun,
		RetentionDays: policy.RetentionDays,
		AlertDays:     policy.AlertDays,
	}

	metrics.IncRunsStarted()
	telemetry.Info("janitor.run.started", map[string]any{
		"run_id":         sum.RunID,
		"as_of":          sum.AsOf.Format(time.RFC3339),
		"retention_days": policy.RetentionDays,
		"alert_days":     policy.AlertDays,
		"dry_run":        opts.DryRun,
	})

	if err := policy.Validate(); err != nil {
		return j.finish(ctx, sum, err)
	}

	functions, err := j.scope(ctx)
	if err != nil {
		metrics.IncListingFailures()
		return j.finish(ctx, sum, err)
	}

	var (
		warned      []Classification
		deleted     []Classification
		listingErrs []error
	)
	for _, fn := range functions {
		classes, err := j.planFunction(ctx, fn, now)
		if err != nil {
			telemetry.Error("janitor.function.list_failed", map[string]any{
				"run_id":        sum.RunID,
				"function_name": fn,
				"error":         err.Error(),
			})
			metrics.IncListingFailures()
			sum.FunctionsFailed++
			sum.Failures = append(sum.Failures, FunctionFailure{FunctionName: fn, Error: err.Error()})
			listingErrs = append(listingErrs, err)
			continue
		}

		sum.FunctionsScanned++
		sum.VersionsScanned += len(classes)
		telemetry.Debug("janitor.function.classified", map[string]any{
			"run_id":        sum.RunID,
			"function_name": fn,
			"versions":      len(classes),
		})

		for _, c := range classes {
			metrics.ObserveClassification(c.Action.String())
			switch c.Action {
			case ActionKeep:
				sum.Kept++
			case ActionWarn:
				sum.Warned++
				warned = append(warned, c)
				sum.Outcomes = append(sum.Outcomes, newOutcome(c, StatusWarned, nil))
				telemetry.Info("janitor.version.approaching_cleanup", versionFields(sum.RunID, c))
			case ActionDelete:
				status, derr := j.deleteVersion(ctx, sum.RunID, c, opts.DryRun)
				switch status {
				case StatusDeleted:
					sum.Deleted++
					deleted = append(deleted, c)
				case StatusWouldDelete:
					sum.WouldDelete++
					deleted = append(deleted, c)
				case StatusAlreadyGone:
					sum.AlreadyGone++
				case StatusDeleteFailed:
					sum.DeleteFailed++
				}
				sum.Outcomes = append(sum.Outcomes, newOutcome(c, status, derr))
			}
		}
	}

	var runErr error
	if len(warned) > 0 {
		runErr = j.notify(ctx, &sum, warned, deleted, now, opts.DryRun)
	}
	if runErr == nil && len(functions) > 0 && sum.FunctionsFailed == len(functions) {
		runErr = errors.Join(listingErrs...)
	}
	return j.finish(ctx, sum, runErr)
}

// Plan lists and classifies every function in scope without side effects.
func (j *Janitor) Plan(ctx context.Context, now time.Time) ([]FunctionPlan, error) {
	if err := j.Options.Policy.Validate(); err != nil {
		return nil, err
	}
	if now.IsZero() {
		now = j.now()
	}
	functions, err := j.scope(ctx)
	if err != nil {
		return nil, err
	}
	plans := make([]FunctionPlan, 0, len(functions))
	for _, fn := range functions {
		plan := FunctionPlan{FunctionName: fn}
		classes, err := j.planFunction(ctx, fn, now)
		if err != nil {
			plan.Error = err.Error()
		} else {
			plan.Classifications = classes
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

func (j *Janitor) scope(ctx context.Context) ([]string, error) {
	names := j.Options.Functions
	if len(names) == 0 {
		listed, err := j.Provider.ListFunctions(ctx)
		if err != nil {
			return nil, ListingError{Err: err}
		}
		names = listed
	}

	excluded := make(map[string]struct{}, len(j.Options.Excluded))
	for _, name := range j.Options.Excluded {
		excluded[name] = struct{}{}
	}
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, skip := excluded[name]; skip {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out, nil
}

func (j *Janitor) planFunction(ctx context.Context, fn string, now time.Time) ([]Classification, error) {
	versions, err := j.Provider.ListVersions(ctx, fn, now)
	if err != nil {
		return nil, ListingError{FunctionName: fn, Err: err}
	}
	protected, err := j.Provider.ProtectedVersions(ctx, fn)
	if err != nil {
		return nil, ListingError{FunctionName: fn, Err: fmt.Errorf("protected versions: %w", err)}
	}
	return PlanVersions(versions, protected, j.Options.Policy, now), nil
}

func (j *Janitor) deleteVersion(ctx context.Context, runID string, c Classification, dryRun bool) (string, error) {
	fields := versionFields(runID, c)
	if dryRun {
		telemetry.Info("janitor.version.would_delete", fields)
		return StatusWouldDelete, nil
	}

	err := j.Provider.DeleteVersion(ctx, c.Record.FunctionName, c.Record.Version)
	switch {
	case err == nil:
		telemetry.Warn("janitor.version.deleted", fields)
		metrics.IncVersionsDeleted()
		return StatusDeleted, nil
	case errors.Is(err, ErrVersionNotFound):
		telemetry.Info("janitor.version.already_gone", fields)
		return StatusAlreadyGone, nil
	default:
		derr := DeleteError{FunctionName: c.Record.FunctionName, Version: c.Record.Version, Err: err}
		fields["error"] = err.Error()
		telemetry.Error("janitor.version.delete_failed", fields)
		metrics.IncDeleteFailures()
		return StatusDeleteFailed, derr
	}
}

func (j *Janitor) notify(ctx context.Context, sum *Summary, warned, deleted []Classification, now time.Time, dryRun bool) error {
	if strings.TrimSpace(j.Options.Sender) == "" || len(j.Options.Recipients) == 0 {
		err := ConfigurationError{
			Key:    "EMAIL_SENDER/EMAIL_RECIPIENTS",
			Reason: fmt.Sprintf("required when versions are approaching cleanup (%d pending)", len(warned)),
		}
		telemetry.Error("janitor.notification.misconfigured", map[string]any{
			"run_id": sum.RunID,
			"warned": len(warned),
			"error":  err.Error(),
		})
		return err
	}
	if j.Notifier == nil {
		return ConfigurationError{Reason: "no notifier configured"}
	}

	subject := strings.TrimSpace(j.Options.Subject)
	if subject == "" {
		subject = defaultSubject
	}
	batch := NotificationBatch{
		Sender:      j.Options.Sender,
		Recipients:  append([]string(nil), j.Options.Recipients...),
		Subject:     subject,
		GeneratedAt: now.UTC(),
		DryRun:      dryRun,
		Warned:      warned,
		Deleted:     deleted,
	}

	if err := j.Notifier.Notify(ctx, batch); err != nil {
		nerr := NotificationError{Err: err}
		telemetry.Error("janitor.notification.failed", map[string]any{
			"run_id":     sum.RunID,
			"recipients": len(batch.Recipients),
			"error":      nerr.Error(),
		})
		metrics.IncNotificationFailures()
		sum.NotificationFailed = true
		return nil
	}

	telemetry.Info("janitor.notification.sent", map[string]any{
		"run_id":     sum.RunID,
		"recipients": strings.Join(batch.Recipients, ", "),
		"warned":     len(warned),
		"deleted":    len(deleted),
	})
	metrics.IncNotificationsSent()
	sum.NotificationSent = true
	return nil
}

func (j *Janitor) finish(ctx context.Context, sum Summary, runErr error) (Summary, error) {
	sum.FinishedAt = j.now().UTC()
	if runErr != nil {
		sum.Error = runErr.Error()
	}

	fields := map[string]any{
		"run_id":              sum.RunID,
		"functions_scanned":   sum.FunctionsScanned,
		"functions_failed":    sum.FunctionsFailed,
		"versions_scanned":    sum.VersionsScanned,
		"kept":                sum.Kept,
		"warned":              sum.Warned,
		"deleted":             sum.Deleted,
		"would_delete":        sum.WouldDelete,
		"already_gone":        sum.AlreadyGone,
		"delete_failed":       sum.DeleteFailed,
		"notification_sent":   sum.NotificationSent,
		"notification_failed": sum.NotificationFailed,
		"dry_run":             sum.DryRun,
		"duration_ms":         float64(sum.FinishedAt.Sub(sum.StartedAt).Microseconds()) / 1000.0,
	}
	outcome := "success"
	switch {
	case runErr != nil:
		outcome = "error"
		fields["error"] = runErr.Error()
		telemetry.Error("janitor.run.failed", fields)
	case sum.Failed():
		outcome = "partial"
		telemetry.Warn("janitor.run.completed", fields)
	default:
		telemetry.Info("janitor.run.completed", fields)
	}
	metrics.ObserveRun(outcome, sum.FinishedAt.Sub(sum.StartedAt), sum.FinishedAt)

	for _, r := range j.Reporters {
		if r == nil {
			continue
		}
		if err := r.Publish(ctx, sum); err != nil {
			telemetry.Error("janitor.report.publish_failed", map[string]any{
				"run_id": sum.RunID,
				"error":  err.Error(),
			})
		}
	}
	return sum, runErr
}

func (j *Janitor) now() time.Time {
	if j.Clock != nil {
		return j.Clock()
	}
	return time.Now()
}

func versionFields(runID string, c Classification) map[string]any {
	fields := map[string]any{
		"run_id":        runID,
		"function_name": c.Record.FunctionName,
		"version":       c.Record.Version,
		"action":        c.Action.String(),
		"age_days":      c.AgeDays,
		"protected":     c.Protected,
	}
	if c.Record.LastUsedAt != nil {
		fields["last_used_at"] = c.Record.LastUsedAt.UTC().Format(time.RFC3339)
	} else {
		fields["never_used"] = true
	}
	if !c.ScheduledDeletion.IsZero() {
		fields["scheduled_deletion"] = c.ScheduledDeletion.UTC().Format("2006-01-02")
	}
	return fields
}
