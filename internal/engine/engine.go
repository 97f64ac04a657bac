package engine

import (
	"context"
	"fmt"
	"log/slog"
)

// Next schedules a follow-up action.
type Next func(a *Action) error

// Handler performs one action. Follow-up work is scheduled through next.
type Handler func(ctx context.Context, a *Action, next Next) error

// Scheduler is the single-writer action loop of one request.
//
// Handlers run one at a time on the goroutine that calls RunNext or Drain.
// A handler may fan work out to other goroutines, but must join them before
// it returns; only the loop goroutine touches the queue.
type Scheduler struct {
	queue    *Queue
	handlers map[ActionType]Handler
	clock    *Clock
	budget   *ActionBudget
	runID    string

	dispatched map[ActionType]int
	merged     int
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithMaxActions sets the action budget of the request.
func WithMaxActions(max int) Option {
	return func(s *Scheduler) {
		s.budget = NewActionBudget(max)
	}
}

// WithClock sets the clock that stamps enqueued actions.
func WithClock(c *Clock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// WithRunID sets the run the scheduler reports in logs and errors.
func WithRunID(id string) Option {
	return func(s *Scheduler) {
		s.runID = id
	}
}

// New creates a Scheduler dispatching through handlers.
func New(handlers map[ActionType]Handler, opts ...Option) *Scheduler {
	s := &Scheduler{
		queue:      NewQueue(),
		handlers:   handlers,
		clock:      NewClock(),
		budget:     NewActionBudget(DefaultMaxActions),
		dispatched: make(map[ActionType]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enqueue stamps a and adds it to the queue, merging it into a queued
// action for the same work.
func (s *Scheduler) Enqueue(a *Action) error {
	if !a.Type.Valid() {
		return fmt.Errorf("enqueue: unknown action type %q", a.Type)
	}
	if a.Entrypoint == nil {
		return fmt.Errorf("enqueue %s: missing entrypoint", a.Type)
	}
	a.Seq = s.clock.Next()
	merged, err := s.queue.Enqueue(a)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", a, err)
	}
	if merged {
		s.merged++
		slog.Debug("action merged", "run", s.runID, "action", a.Type, "file", a.Entrypoint.Name)
	}
	return nil
}

// RunNext dispatches the highest-priority action. It returns false when
// the queue is empty. Handler errors are returned as is; nothing is retried.
func (s *Scheduler) RunNext(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	a, ok := s.queue.Dequeue()
	if !ok {
		return false, nil
	}
	if err := s.budget.Check(s.runID); err != nil {
		slog.Error("action budget exceeded",
			"run", s.runID,
			"actions", s.budget.Current(),
			"limit", s.budget.Max(),
		)
		return true, &BuildError{
			Code:    ErrCodeQuotaExceeded,
			File:    a.Entrypoint.Name,
			Message: err.Error(),
			Err:     err,
		}
	}
	h, ok := s.handlers[a.Type]
	if !ok {
		return true, fmt.Errorf("no handler for %s", a.Type)
	}
	s.dispatched[a.Type]++
	slog.Debug("dispatch", "run", s.runID, "action", a.Type, "file", a.Entrypoint.Name, "seq", a.Seq)
	return true, h(ctx, a, s.Enqueue)
}

// Drain runs actions until the queue is empty or a handler fails.
func (s *Scheduler) Drain(ctx context.Context) error {
	for {
		ran, err := s.RunNext(ctx)
		if err != nil {
			return err
		}
		if !ran {
			return nil
		}
	}
}

// Len returns the number of queued actions.
func (s *Scheduler) Len() int {
	return s.queue.Len()
}

// Dispatched returns how many actions of type t have run.
func (s *Scheduler) Dispatched(t ActionType) int {
	return s.dispatched[t]
}

// Merged returns how many enqueued actions were folded into queued ones.
func (s *Scheduler) Merged() int {
	return s.merged
}

// RunID returns the run the scheduler belongs to.
func (s *Scheduler) RunID() string {
	return s.runID
}
