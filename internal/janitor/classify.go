package janitor

import (
	"fmt"
	"time"
)

const day = 24 * time.Hour

// Policy holds the retention thresholds for a run.
type Policy struct {
	RetentionDays int
	AlertDays     int
	NeverUsed     NeverUsedPolicy
}

// Validate rejects thresholds that cannot produce a consistent classification.
func (p Policy) Validate() error {
	if p.RetentionDays < 0 {
		return ConfigurationError{Key: "RETENTION_DAYS", Reason: fmt.Sprintf("must be >= 0, got %d", p.RetentionDays)}
	}
	if p.AlertDays < 0 {
		return ConfigurationError{Key: "ALERT_DAYS", Reason: fmt.Sprintf("must be >= 0, got %d", p.AlertDays)}
	}
	if p.AlertDays > p.RetentionDays {
		return ConfigurationError{
			Key:    "ALERT_DAYS",
			Reason: fmt.Sprintf("must not exceed RETENTION_DAYS (%d > %d)", p.AlertDays, p.RetentionDays),
		}
	}
	if _, ok := ParseNeverUsedPolicy(string(p.NeverUsed)); !ok {
		return ConfigurationError{Key: "NEVER_USED_POLICY", Reason: fmt.Sprintf("unknown policy %q", p.NeverUsed)}
	}
	return nil
}

// AgeDays returns the whole days elapsed between last and now, rounded down.
func AgeDays(last, now time.Time) int {
	d := now.Sub(last)
	days := int(d / day)
	if d < 0 && d%day != 0 {
		days--
	}
	return days
}

// ClassifyAge buckets an age against the policy thresholds.
func ClassifyAge(ageDays int, p Policy) Action {
	switch {
	case ageDays >= p.RetentionDays:
		return ActionDelete
	case ageDays >= p.RetentionDays-p.AlertDays:
		return ActionWarn
	default:
		return ActionKeep
	}
}

// Classify decides the action for a single record. Protected versions are always kept.
func Classify(rec VersionRecord, p Policy, now time.Time, protected bool) Classification {
	out := Classification{Record: rec, Protected: protected}

	if rec.LastUsedAt == nil {
		out.NeverUsed = true
		out.AgeDays = -1
		switch {
		case protected:
			out.Action = ActionKeep
		case p.NeverUsed == NeverUsedKeep:
			out.Action = ActionKeep
		default:
			out.Action = ActionDelete
		}
		return out
	}

	out.AgeDays = AgeDays(*rec.LastUsedAt, now)
	out.ScheduledDeletion = rec.LastUsedAt.AddDate(0, 0, p.RetentionDays)
	if protected {
		out.Action = ActionKeep
		return out
	}
	out.Action = ClassifyAge(out.AgeDays, p)
	return out
}

// PlanVersions classifies every record, preserving input order.
func PlanVersions(records []VersionRecord, protected map[string]struct{}, p Policy, now time.Time) []Classification {
	out := make([]Classification, 0, len(records))
	for _, rec := range records {
		_, isProtected := protected[rec.Version]
		out = append(out, Classify(rec, p, now, isProtected))
	}
	return out
}
