package janitor

import "time"

// Outcome statuses recorded for every WARN or DELETE decision.
const (
	StatusWarned       = "warned"
	StatusDeleted      = "deleted"
	StatusWouldDelete  = "would_delete"
	StatusAlreadyGone  = "already_gone"
	StatusDeleteFailed = "delete_failed"
)

// Outcome records what happened to one actionable version.
type Outcome struct {
	FunctionName      string     `json:"functionName"`
	Version           string     `json:"version"`
	Action            Action     `json:"action"`
	Status            string     `json:"status"`
	AgeDays           int        `json:"ageDays"`
	LastUsedAt        *time.Time `json:"lastUsedAt,omitempty"`
	ScheduledDeletion *time.Time `json:"scheduledDeletion,omitempty"`
	Error             string     `json:"error,omitempty"`
}

// FunctionFailure records a function whose versions could not be listed.
type FunctionFailure struct {
	FunctionName string `json:"functionName"`
	Error        string `json:"error"`
}

// Summary is the end-of-run report.
type Summary struct {
	RunID              string            `json:"runId"`
	AsOf               time.Time         `json:"asOf"`
	StartedAt          time.Time         `json:"startedAt"`
	FinishedAt         time.Time         `json:"finishedAt"`
	DryRun             bool              `json:"dryRun"`
	RetentionDays      int               `json:"retentionDays"`
	AlertDays          int               `json:"alertDays"`
	FunctionsScanned   int               `json:"functionsScanned"`
	FunctionsFailed    int               `json:"functionsFailed"`
	VersionsScanned    int               `json:"versionsScanned"`
	Kept               int               `json:"kept"`
	Warned             int               `json:"warned"`
	Deleted            int               `json:"deleted"`
	WouldDelete        int               `json:"wouldDelete"`
	AlreadyGone        int               `json:"alreadyGone"`
	DeleteFailed       int               `json:"deleteFailed"`
	NotificationSent   bool              `json:"notificationSent"`
	NotificationFailed bool              `json:"notificationFailed"`
	Error              string            `json:"error,omitempty"`
	Failures           []FunctionFailure `json:"failures,omitempty"`
	Outcomes           []Outcome         `json:"outcomes,omitempty"`
}

// Failed reports whether any item-level failure happened during the run.
func (s Summary) Failed() bool {
	return s.FunctionsFailed > 0 || s.DeleteFailed > 0 || s.NotificationFailed || s.Error != ""
}

func newOutcome(c Classification, status string, err error) Outcome {
	out := Outcome{
		FunctionName: c.Record.FunctionName,
		Version:      c.Record.Version,
		Action:       c.Action,
		Status:       status,
		AgeDays:      c.AgeDays,
		LastUsedAt:   c.Record.LastUsedAt,
	}
	if !c.ScheduledDeletion.IsZero() {
		scheduled := c.ScheduledDeletion
		out.ScheduledDeletion = &scheduled
	}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}
