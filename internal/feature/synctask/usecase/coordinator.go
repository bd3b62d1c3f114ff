package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	pricesync "stock_sync/internal/feature/pricesync/domain/entity"
	"stock_sync/internal/feature/synctask/domain/entity"
)

// Runner performs one full synchronization.
type Runner interface {
	Run(ctx context.Context) pricesync.RunSummary
}

// StatusStore keeps the record of the last finished run.
// Following Go convention: interfaces are defined by the consumer (usecase), not the provider (adapters).
type StatusStore interface {
	SaveLast(ctx context.Context, rec entity.RunRecord) error
	Last(ctx context.Context) (*entity.RunRecord, error)
}

type state int

const (
	stateIdle state = iota
	stateRunning
)

type job struct {
	ctx       context.Context
	id        string
	startedAt time.Time
}

// Coordinator guarantees that at most one synchronization runs at a time.
// Accepted runs are handed to a single background worker; triggering never
// waits for the run to finish.
type Coordinator struct {
	runner Runner
	store  StatusStore

	mu        sync.Mutex
	state     state
	runID     string
	startedAt time.Time
	last      *entity.RunRecord
	closed    bool

	jobs chan job
	done chan struct{}

	newID func() string
	now   func() time.Time
}

// NewCoordinator creates a coordinator and starts its worker.
// store may be nil, in which case the last run is kept in memory only.
func NewCoordinator(runner Runner, store StatusStore) *Coordinator {
	c := &Coordinator{
		runner: runner,
		store:  store,
		jobs:   make(chan job, 1),
		done:   make(chan struct{}),
		newID:  uuid.NewString,
		now:    time.Now,
	}
	go c.work()
	return c
}

// Trigger starts a background run unless one is already in progress.
// It returns the new run ID, ErrAlreadyRunning, or ErrShuttingDown.
// The run keeps ctx's values but not its cancellation.
func (c *Coordinator) Trigger(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, err := c.tryStart()
	if err != nil {
		return "", err
	}

	j := job{ctx: context.WithoutCancel(ctx), id: id, startedAt: c.startedAt}
	select {
	case c.jobs <- j:
	default:
		// unreachable while only one job is ever outstanding
		c.state = stateIdle
		c.runID = ""
		return "", fmt.Errorf("sync worker busy")
	}
	slog.Info("sync task accepted", "run_id", id)
	return id, nil
}

// tryStart performs the Idle -> Running transition. Callers hold c.mu.
func (c *Coordinator) tryStart() (string, error) {
	if c.closed {
		return "", ErrShuttingDown
	}
	if c.state == stateRunning {
		slog.Warn("sync task trigger rejected, already running", "run_id", c.runID)
		return "", ErrAlreadyRunning
	}
	c.state = stateRunning
	c.runID = c.newID()
	c.startedAt = c.now()
	return c.runID, nil
}

// onComplete performs the Running -> Idle transition and records the run.
func (c *Coordinator) onComplete(j job, summary pricesync.RunSummary, runErr error) {
	rec := entity.RunRecord{
		RunID:      j.id,
		StartedAt:  j.startedAt,
		FinishedAt: c.now(),
		Summary:    summary,
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}

	c.mu.Lock()
	c.state = stateIdle
	c.runID = ""
	c.startedAt = time.Time{}
	c.last = &rec
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.SaveLast(j.ctx, rec); err != nil {
			slog.Warn("failed to save run status", "run_id", j.id, "error", err)
		}
	}
}

func (c *Coordinator) work() {
	defer close(c.done)
	for j := range c.jobs {
		c.execute(j)
	}
}

// execute runs one job. The coordinator returns to Idle on every exit path,
// including a panic escaping the runner.
func (c *Coordinator) execute(j job) {
	var (
		summary pricesync.RunSummary
		runErr  error
	)
	defer func() {
		if r := recover(); r != nil {
			runErr = fmt.Errorf("panic: %v", r)
			slog.Error("background sync crashed", "run_id", j.id, "error", runErr, "stack", string(debug.Stack()))
		}
		c.onComplete(j, summary, runErr)
	}()

	slog.Info("background sync started", "run_id", j.id)
	summary = c.runner.Run(j.ctx)
	slog.Info("background sync finished", "run_id", j.id, "attempted", summary.Attempted, "failed", summary.Failed)
}

// Status reports whether a run is in progress and the last finished run.
func (c *Coordinator) Status(ctx context.Context) entity.Status {
	c.mu.Lock()
	st := entity.Status{Running: c.state == stateRunning, RunID: c.runID, Last: c.last}
	if st.Running {
		started := c.startedAt
		st.StartedAt = &started
	}
	c.mu.Unlock()

	if st.Last == nil && c.store != nil {
		last, err := c.store.Last(ctx)
		if err != nil {
			slog.Warn("failed to load run status", "error", err)
		}
		st.Last = last
	}
	return st
}

// Shutdown stops accepting triggers and waits for an in-flight run to finish
// or for ctx to be done.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.jobs)
	}
	c.mu.Unlock()

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
