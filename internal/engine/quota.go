package engine

import (
	"errors"
	"fmt"
)

// DefaultMaxActions is the default action budget per request.
const DefaultMaxActions = 10000

// ActionBudget counts the actions a request dispatches and fails once the
// limit is passed.
// Exhausting it indicates a scheduling bug.
type ActionBudget struct {
	max     int
	current int
}

// NewActionBudget creates a budget of max actions. max <= 0 selects
// DefaultMaxActions.
func NewActionBudget(max int) *ActionBudget {
	if max <= 0 {
		max = DefaultMaxActions
	}
	return &ActionBudget{max: max}
}

// Check counts one dispatch and returns a *BudgetExceededError once the
// count passes the limit.
func (b *ActionBudget) Check(runID string) error {
	b.current++
	if b.current > b.max {
		return &BudgetExceededError{RunID: runID, Actions: b.current, Limit: b.max}
	}
	return nil
}

// Current returns the number of counted dispatches.
func (b *ActionBudget) Current() int {
	return b.current
}

// Max returns the limit.
func (b *ActionBudget) Max() int {
	return b.max
}

// BudgetExceededError is returned when a request exceeds its action budget.
type BudgetExceededError struct {
	RunID   string
	Actions int
	Limit   int
}

// Error implements the error interface.
func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("run %s exceeded action budget: %d actions > %d limit", e.RunID, e.Actions, e.Limit)
}

// IsBudgetExceededError returns true if err is a BudgetExceededError.
func IsBudgetExceededError(err error) bool {
	var be *BudgetExceededError
	return errors.As(err, &be)
}
