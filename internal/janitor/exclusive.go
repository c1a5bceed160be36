package janitor

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrRunInProgress is returned when a run is requested while another is active.
var ErrRunInProgress = errors.New("janitor: run already in progress")

// Runner is the surface shared by Janitor and Exclusive.
type Runner interface {
	Run(ctx context.Context, opts RunOptions) (Summary, error)
	Plan(ctx context.Context, now time.Time) ([]FunctionPlan, error)
}

// Exclusive serializes runs inside one process. Overlapping requests fail fast with
// ErrRunInProgress instead of queueing. Plans are never blocked.
type Exclusive struct {
	runner Runner
	mu     sync.Mutex
}

// NewExclusive wraps a runner.
func NewExclusive(runner Runner) *Exclusive {
	return &Exclusive{runner: runner}
}

// Run performs a run unless one is already active.
func (e *Exclusive) Run(ctx context.Context, opts RunOptions) (Summary, error) {
	if !e.mu.TryLock() {
		return Summary{}, ErrRunInProgress
	}
	defer e.mu.Unlock()
	return e.runner.Run(ctx, opts)
}

// Plan delegates to the wrapped runner.
func (e *Exclusive) Plan(ctx context.Context, now time.Time) ([]FunctionPlan, error) {
	return e.runner.Plan(ctx, now)
}

var (
	_ Runner = (*Janitor)(nil)
	_ Runner = (*Exclusive)(nil)
)
