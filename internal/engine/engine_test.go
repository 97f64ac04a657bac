package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bakecss/internal/ir"
)

func TestScheduler_DispatchesByPriority(t *testing.T) {
	var order []string
	record := func(ctx context.Context, a *Action, next Next) error {
		order = append(order, string(a.Type)+" "+a.Entrypoint.Name)
		return nil
	}
	s := New(map[ActionType]Handler{
		ActionProcessEntrypoint:  record,
		ActionFinalizeEntrypoint: record,
		ActionResolveImports:     record,
	}, WithRunID("run-1"))

	require.NoError(t, s.Enqueue(NewAction(ActionFinalizeEntrypoint, ep("/src/a.js"), nil)))
	require.NoError(t, s.Enqueue(NewAction(ActionProcessEntrypoint, ep("/src/b.js"), nil)))
	require.NoError(t, s.Enqueue(NewAction(ActionResolveImports, ep("/src/c.js"), &ResolveImportsPayload{})))
	require.NoError(t, s.Drain(context.Background()))

	assert.Equal(t, []string{
		"resolveImports /src/c.js",
		"processEntrypoint /src/b.js",
		"finalizeEntrypoint /src/a.js",
	}, order)
	assert.Equal(t, 1, s.Dispatched(ActionProcessEntrypoint))
	assert.Equal(t, "run-1", s.RunID())
}

func TestScheduler_FollowUpsAndMerges(t *testing.T) {
	handlers := map[ActionType]Handler{
		ActionProcessEntrypoint: func(ctx context.Context, a *Action, next Next) error {
			if err := next(NewAction(ActionTransform, a.Entrypoint, nil)); err != nil {
				return err
			}
			return next(NewAction(ActionTransform, a.Entrypoint, nil))
		},
		ActionTransform: func(ctx context.Context, a *Action, next Next) error {
			assert.Equal(t, 2, a.RefCount)
			return nil
		},
	}
	s := New(handlers)
	require.NoError(t, s.Enqueue(NewAction(ActionProcessEntrypoint, ep("/src/a.js", "x"), nil)))
	require.NoError(t, s.Drain(context.Background()))
	assert.Equal(t, 1, s.Dispatched(ActionTransform))
	assert.Equal(t, 1, s.Merged())
	assert.Equal(t, 0, s.Len())
}

func TestScheduler_HandlerErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	s := New(map[ActionType]Handler{
		ActionCollect: func(context.Context, *Action, Next) error { return boom },
	})
	require.NoError(t, s.Enqueue(NewAction(ActionCollect, ep("/src/a.js"), nil)))
	ran, err := s.RunNext(context.Background())
	assert.True(t, ran)
	assert.ErrorIs(t, err, boom)
}

func TestScheduler_MissingHandler(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.Enqueue(NewAction(ActionExtract, ep("/src/a.js"), nil)))
	err := s.Drain(context.Background())
	assert.ErrorContains(t, err, "no handler for extract")
}

func TestScheduler_RejectsInvalidActions(t *testing.T) {
	s := New(nil)
	assert.Error(t, s.Enqueue(&Action{Type: "bogus", Entrypoint: ep("/a")}))
	assert.Error(t, s.Enqueue(&Action{Type: ActionCollect}))
}

func TestScheduler_ActionBudget(t *testing.T) {
	loop := func(ctx context.Context, a *Action, next Next) error {
		e := ep(fmt.Sprintf("/src/%d.js", a.Seq))
		return next(NewAction(ActionEvalFile, e, nil))
	}
	s := New(map[ActionType]Handler{ActionEvalFile: loop}, WithMaxActions(5), WithRunID("run-q"))
	require.NoError(t, s.Enqueue(NewAction(ActionEvalFile, ep("/src/root.js"), nil)))

	err := s.Drain(context.Background())
	require.Error(t, err)
	assert.True(t, IsQuotaError(err))
	assert.True(t, IsBudgetExceededError(err))
	code, ok := CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, ErrCodeQuotaExceeded, code)
	assert.Equal(t, 5, s.Dispatched(ActionEvalFile))
}

func TestScheduler_Cancelled(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.Enqueue(NewAction(ActionExtract, ep("/src/a.js"), nil)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.RunNext(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, s.Len())
}

func TestScheduler_SharedClock(t *testing.T) {
	clock := NewClock()
	s1 := New(nil, WithClock(clock))
	s2 := New(nil, WithClock(clock))
	a := NewAction(ActionExtract, ep("/src/a.js"), nil)
	b := NewAction(ActionExtract, ep("/src/b.js"), nil)
	require.NoError(t, s1.Enqueue(a))
	require.NoError(t, s2.Enqueue(b))
	assert.Equal(t, int64(1), a.Seq)
	assert.Equal(t, int64(2), b.Seq)
	assert.Equal(t, int64(2), clock.Current())
}

func TestBuildError_Format(t *testing.T) {
	err := &BuildError{
		Code:    ErrCodeEvalFailed,
		File:    "/src/a.js",
		Loc:     ir.Location{Line: 3, Column: 4},
		Message: "boom",
	}
	assert.Equal(t, "EVAL_FAILED: /src/a.js:3:5: boom", err.Error())

	noLoc := NewBuildError(ErrCodeResolutionFailed, "/src/a.js", errors.New("cannot find ./b"))
	assert.Equal(t, "RESOLUTION_FAILED: /src/a.js: cannot find ./b", noLoc.Error())
}

func TestBuildError_Helpers(t *testing.T) {
	cases := []struct {
		code ErrorCode
		is   func(error) bool
	}{
		{ErrCodeResolutionFailed, IsResolutionError},
		{ErrCodeUnknownExport, IsUnknownExportError},
		{ErrCodeEvalCycle, IsEvalCycleError},
		{ErrCodeEvalFailed, IsEvalError},
		{ErrCodeMalformedOutput, IsMalformedError},
		{ErrCodeQuotaExceeded, IsQuotaError},
	}
	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			inner := errors.New("inner")
			err := fmt.Errorf("wrapped: %w", NewBuildError(tc.code, "/f.js", inner))
			assert.True(t, tc.is(err))
			assert.ErrorIs(t, err, inner)
			for _, other := range cases {
				if other.code != tc.code {
					assert.False(t, other.is(err), "%s matched %s", other.code, tc.code)
				}
			}
		})
	}
	assert.False(t, IsEvalError(nil))
}

func TestActionBudget(t *testing.T) {
	b := NewActionBudget(2)
	require.NoError(t, b.Check("r"))
	require.NoError(t, b.Check("r"))
	err := b.Check("r")
	var be *BudgetExceededError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, 3, be.Actions)
	assert.Equal(t, 2, be.Limit)

	assert.Equal(t, 3, b.Current())
	assert.Equal(t, DefaultMaxActions, NewActionBudget(0).Max())
}

func TestClock(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())

	var wg sync.WaitGroup
	seen := sync.Map{}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_, dup := seen.LoadOrStore(c.Next(), true)
				assert.False(t, dup)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1002), c.Current())
}

func TestRunIDGenerators(t *testing.T) {
	id := UUIDv7Generator{}.Generate()
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())

	gen := NewFixedGenerator("run-1", "run-2")
	assert.Equal(t, "run-1", gen.Generate())
	assert.Equal(t, "run-2", gen.Generate())
	assert.Panics(t, func() { gen.Generate() })
}

func TestCycleDetector(t *testing.T) {
	cd := NewCycleDetector()
	assert.False(t, cd.WouldCycle("run-1", "/src/a.js", "x"))

	cd.Record("run-1", "/src/a.js", "x")
	assert.True(t, cd.WouldCycle("run-1", "/src/a.js", "x"))
	assert.False(t, cd.WouldCycle("run-1", "/src/a.js", "x,y"))
	assert.False(t, cd.WouldCycle("run-2", "/src/a.js", "x"))
	assert.Equal(t, 1, cd.RunHistorySize("run-1"))
	assert.Equal(t, 0, cd.RunHistorySize("run-2"))

	cd.Clear("run-1")
	assert.False(t, cd.WouldCycle("run-1", "/src/a.js", "x"))
	assert.Equal(t, 0, cd.RunHistorySize("run-1"))
}
