package health

import (
	"context"
	"sync"
	"time"

	"lambda-janitor/internal/janitor"
)

// LastRun describes the most recently finished janitor run.
type LastRun struct {
	RunID      string    `json:"runId"`
	FinishedAt time.Time `json:"finishedAt"`
	DryRun     bool      `json:"dryRun"`
	Deleted    int       `json:"deleted"`
	Warned     int       `json:"warned"`
	Failed     bool      `json:"failed"`
	Error      string    `json:"error,omitempty"`
}

// Status is the health payload.
type Status struct {
	OK            bool       `json:"ok"`
	UptimeSeconds int64      `json:"uptimeSeconds"`
	LastRun       *LastRun   `json:"lastRun,omitempty"`
	NextRun       *time.Time `json:"nextRun,omitempty"`
}

// Service tracks process health and the outcome of the last run.
type Service struct {
	mu      sync.RWMutex
	started time.Time
	last    *LastRun
	nextRun func() *time.Time
	now     func() time.Time
}

// NewService constructs a new health service.
func NewService() *Service {
	return &Service{started: time.Now(), now: time.Now}
}

// SetNextRun installs a lookup for the next scheduled run.
func (s *Service) SetNextRun(fn func() *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRun = fn
}

// Publish records a finished run. It lets the service act as a janitor.Reporter.
func (s *Service) Publish(ctx context.Context, summary janitor.Summary) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &LastRun{
		RunID:      summary.RunID,
		FinishedAt: summary.FinishedAt,
		DryRun:     summary.DryRun,
		Deleted:    summary.Deleted,
		Warned:     summary.Warned,
		Failed:     summary.Failed(),
		Error:      summary.Error,
	}
	return nil
}

// Status returns the current health. A run that ended with a run-level error
// marks the service unhealthy until the next successful run.
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{OK: true, UptimeSeconds: int64(s.now().Sub(s.started).Seconds())}
	if s.last != nil {
		last := *s.last
		st.LastRun = &last
		st.OK = last.Error == ""
	}
	if s.nextRun != nil {
		st.NextRun = s.nextRun()
	}
	return st
}

var _ janitor.Reporter = (*Service)(nil)
