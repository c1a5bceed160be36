package janitor

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Action is the decision taken for a single function version.
type Action int

const (
	ActionKeep Action = iota
	ActionWarn
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionWarn:
		return "WARN"
	case ActionDelete:
		return "DELETE"
	default:
		return "KEEP"
	}
}

// MarshalText renders the action as its upper-case name.
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText parses an upper- or lower-case action name.
func (a *Action) UnmarshalText(text []byte) error {
	switch strings.ToUpper(strings.TrimSpace(string(text))) {
	case "KEEP":
		*a = ActionKeep
	case "WARN":
		*a = ActionWarn
	case "DELETE":
		*a = ActionDelete
	default:
		return fmt.Errorf("unknown action %q", text)
	}
	return nil
}

// NeverUsedPolicy decides what happens to a version with no usage timestamp.
type NeverUsedPolicy string

const (
	// NeverUsedDelete treats the version as infinitely old.
	NeverUsedDelete NeverUsedPolicy = "delete"
	// NeverUsedKeep exempts the version from cleanup.
	NeverUsedKeep NeverUsedPolicy = "keep"
)

// ParseNeverUsedPolicy normalizes a configured policy name.
func ParseNeverUsedPolicy(raw string) (NeverUsedPolicy, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "delete":
		return NeverUsedDelete, true
	case "keep":
		return NeverUsedKeep, true
	default:
		return "", false
	}
}

// VersionRecord is a snapshot of one published function version.
type VersionRecord struct {
	FunctionName string     `json:"functionName"`
	Version      string     `json:"version"`
	LastUsedAt   *time.Time `json:"lastUsedAt,omitempty"`
	LastModified time.Time  `json:"lastModified"`
	Description  string     `json:"description,omitempty"`
}

// Classification is the outcome for one VersionRecord.
type Classification struct {
	Record            VersionRecord `json:"record"`
	Action            Action        `json:"action"`
	AgeDays           int           `json:"ageDays"`
	NeverUsed         bool          `json:"neverUsed,omitempty"`
	Protected         bool          `json:"protected,omitempty"`
	ScheduledDeletion time.Time     `json:"scheduledDeletion"`
}

// NotificationBatch is the single warning email of a run.
type NotificationBatch struct {
	Sender      string
	Recipients  []string
	Subject     string
	GeneratedAt time.Time
	DryRun      bool
	Warned      []Classification
	Deleted     []Classification
}

// Provider lists and deletes function versions. ListVersions reports usage as of
// the given time, never the wall clock.
type Provider interface {
	ListFunctions(ctx context.Context) ([]string, error)
	ListVersions(ctx context.Context, functionName string, asOf time.Time) ([]VersionRecord, error)
	ProtectedVersions(ctx context.Context, functionName string) (map[string]struct{}, error)
	DeleteVersion(ctx context.Context, functionName, version string) error
}

// Notifier delivers the warning batch.
type Notifier interface {
	Notify(ctx context.Context, batch NotificationBatch) error
}

// Reporter receives the finished run summary.
type Reporter interface {
	Publish(ctx context.Context, summary Summary) error
}
