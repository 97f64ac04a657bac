package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bakecss/internal/entrypoint"
	"github.com/roach88/bakecss/internal/ir"
)

func ep(name string, only ...string) *entrypoint.Entrypoint {
	e := entrypoint.Detached(context.Background(), name)
	e.Only = ir.NewExportSet(only...)
	return e
}

func action(t ActionType, e *entrypoint.Entrypoint, seq int64) *Action {
	a := NewAction(t, e, nil)
	a.Seq = seq
	return a
}

func TestQueue_OrdersByWeight(t *testing.T) {
	q := NewQueue()
	types := ActionTypes()
	for i, typ := range types {
		_, err := q.Enqueue(action(typ, ep("/src/a.js", "x"), int64(i)))
		require.NoError(t, err)
	}
	require.Equal(t, len(types), q.Len())

	for i := len(types) - 1; i >= 0; i-- {
		a, ok := q.Dequeue()
		require.True(t, ok)
		assert.Equal(t, types[i], a.Type)
	}
	_, ok := q.Dequeue()
	assert.False(t, ok)
}

func TestQueue_SameTypeOrder(t *testing.T) {
	q := NewQueue()

	popular := action(ActionProcessEntrypoint, ep("/src/popular.js"), 3)
	popular.RefCount = 3
	near := action(ActionProcessEntrypoint, ep("/src/near.js"), 2)
	near.Stack = []string{"/src/root.js", "/src/near.js"}
	far := action(ActionProcessEntrypoint, ep("/src/far.js"), 1)
	far.Stack = []string{"/src/root.js", "/src/mid.js", "/src/deep.js", "/src/far.js"}
	first := action(ActionProcessEntrypoint, ep("/src/first.js"), 0)
	first.Stack = []string{"/src/root.js", "/src/first.js"}

	for _, a := range []*Action{far, near, popular, first} {
		_, err := q.Enqueue(a)
		require.NoError(t, err)
	}

	var order []string
	for q.Len() > 0 {
		a, _ := q.Dequeue()
		order = append(order, a.Entrypoint.Name)
	}
	assert.Equal(t, []string{"/src/popular.js", "/src/first.js", "/src/near.js", "/src/far.js"}, order)
}

func TestQueue_MergeProcessEntrypoint(t *testing.T) {
	q := NewQueue()
	a := action(ActionProcessEntrypoint, ep("/src/a.js", "x"), 1)
	b := action(ActionProcessEntrypoint, ep("/src/a.js", "y"), 2)

	merged, err := q.Enqueue(a)
	require.NoError(t, err)
	assert.False(t, merged)
	merged, err = q.Enqueue(b)
	require.NoError(t, err)
	assert.True(t, merged)

	require.Equal(t, 1, q.Len())
	got, _ := q.Dequeue()
	assert.Equal(t, ir.NewExportSet("x", "y"), got.Only)
	assert.Equal(t, 2, got.RefCount)
	assert.Equal(t, int64(1), got.Seq)
}

func TestQueue_MergeRaisesPriority(t *testing.T) {
	q := NewQueue()
	_, _ = q.Enqueue(action(ActionTransform, ep("/src/a.js"), 1))
	_, _ = q.Enqueue(action(ActionTransform, ep("/src/b.js"), 2))
	_, _ = q.Enqueue(action(ActionTransform, ep("/src/b.js"), 3))

	head, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, "/src/b.js", head.Entrypoint.Name)
	assert.Equal(t, 2, head.RefCount)
}

func TestQueue_MergeResolveImports(t *testing.T) {
	q := NewQueue()
	e := ep("/src/a.js", "x")
	a := NewAction(ActionResolveImports, e, &ResolveImportsPayload{Imports: map[string][]string{"./b": {"x"}}})
	b := NewAction(ActionResolveImports, e, &ResolveImportsPayload{Imports: map[string][]string{"./b": {"y"}, "./c": {}}})
	_, _ = q.Enqueue(a)
	_, err := q.Enqueue(b)
	require.NoError(t, err)

	got, _ := q.Dequeue()
	p := got.Payload.(*ResolveImportsPayload)
	assert.Equal(t, []string{"x", "y"}, p.Imports["./b"])
	assert.Contains(t, p.Imports, "./c")
}

func TestQueue_MergeProcessImports(t *testing.T) {
	q := NewQueue()
	e := ep("/src/a.js", "x")
	_, _ = q.Enqueue(NewAction(ActionProcessImports, e, &ProcessImportsPayload{Imports: []ResolvedImport{
		{Specifier: "./b", Path: "/src/b.js", Only: ir.NewExportSet("x")},
	}}))
	_, err := q.Enqueue(NewAction(ActionProcessImports, e, &ProcessImportsPayload{Imports: []ResolvedImport{
		{Specifier: "./b.js", Path: "/src/b.js", Only: ir.NewExportSet("y")},
		{Specifier: "./c", Path: "/src/c.js", Only: ir.NewExportSet("z")},
	}}))
	require.NoError(t, err)

	got, _ := q.Dequeue()
	p := got.Payload.(*ProcessImportsPayload)
	require.Len(t, p.Imports, 2)
	assert.Equal(t, ir.NewExportSet("x", "y"), p.Imports[0].Only)
	assert.Equal(t, "/src/c.js", p.Imports[1].Path)
}

func TestQueue_MergeGetExports(t *testing.T) {
	q := NewQueue()
	e := ep("/src/a.js")
	var calls []string
	cb := func(tag string) ExportsCallback {
		return func([]string) error { calls = append(calls, tag); return nil }
	}
	visited := func() map[string]bool { return map[string]bool{"/src/b.js": true} }
	_, _ = q.Enqueue(NewAction(ActionGetExports, e, &GetExportsPayload{Callbacks: []ExportsCallback{cb("first")}, Visited: visited()}))
	merged, err := q.Enqueue(NewAction(ActionGetExports, e, &GetExportsPayload{
		Callbacks: []ExportsCallback{cb("second")},
		Visited:   visited(),
	}))
	require.NoError(t, err)
	assert.True(t, merged)

	got, _ := q.Dequeue()
	p := got.Payload.(*GetExportsPayload)
	for _, c := range p.Callbacks {
		require.NoError(t, c(nil))
	}
	assert.Equal(t, []string{"first", "second"}, calls)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_GetExportsKeepsVisitedSetsApart(t *testing.T) {
	q := NewQueue()
	e := ep("/src/a.js")
	_, _ = q.Enqueue(NewAction(ActionGetExports, e, &GetExportsPayload{
		Callbacks: []ExportsCallback{func([]string) error { return nil }},
		Visited:   map[string]bool{"/src/b.js": true},
	}))
	merged, err := q.Enqueue(NewAction(ActionGetExports, e, &GetExportsPayload{
		Callbacks: []ExportsCallback{func([]string) error { return nil }},
		Visited:   map[string]bool{"/src/c.js": true},
	}))
	require.NoError(t, err)
	assert.False(t, merged)
	require.Equal(t, 2, q.Len())

	for q.Len() > 0 {
		got, _ := q.Dequeue()
		p := got.Payload.(*GetExportsPayload)
		assert.Len(t, p.Callbacks, 1)
		assert.Len(t, p.Visited, 1)
	}
}

func TestQueue_MergeCodeCache(t *testing.T) {
	cached := func(only ...string) *Action {
		set := ir.NewExportSet(only...)
		e := ep("/src/a.js", only...)
		return NewAction(ActionAddToCodeCache, e, &CodeCachePayload{Result: &ir.TransformResult{Only: set, Code: set.Key()}})
	}
	result := func(a *Action) string { return a.Payload.(*CodeCachePayload).Result.Code }

	t.Run("wildcard wins", func(t *testing.T) {
		q := NewQueue()
		_, _ = q.Enqueue(cached("x", "y"))
		_, _ = q.Enqueue(cached(ir.Wildcard))
		_, _ = q.Enqueue(cached("z"))
		got, _ := q.Dequeue()
		assert.Equal(t, "*", result(got))
		assert.True(t, got.Only.IsWildcard())
	})

	t.Run("larger set wins", func(t *testing.T) {
		q := NewQueue()
		_, _ = q.Enqueue(cached("x"))
		_, _ = q.Enqueue(cached("x", "y"))
		_, _ = q.Enqueue(cached("z"))
		got, _ := q.Dequeue()
		assert.Equal(t, "x,y", result(got))
		assert.Equal(t, ir.NewExportSet("x", "y", "z"), got.Only)
		assert.Equal(t, 3, got.RefCount)
	})
}

func TestQueue_OtherTypesKeepExisting(t *testing.T) {
	q := NewQueue()
	a := action(ActionEvalFile, ep("/src/a.js", "x"), 1)
	_, _ = q.Enqueue(a)
	_, _ = q.Enqueue(action(ActionEvalFile, ep("/src/a.js", "y"), 2))
	got, _ := q.Dequeue()
	assert.Same(t, a, got)
	assert.Equal(t, ir.NewExportSet("x"), got.Only)
	assert.Equal(t, 2, got.RefCount)
}

func TestMerge_TypeMismatch(t *testing.T) {
	err := merge(action(ActionCollect, ep("/a"), 1), action(ActionExtract, ep("/a"), 2))
	assert.ErrorIs(t, err, ErrMergeTypeMismatch)
}

func TestAncestorDistance(t *testing.T) {
	da, db := ancestorDistance([]string{"r", "a", "b"}, []string{"r", "c"})
	assert.Equal(t, 2, da)
	assert.Equal(t, 1, db)

	da, db = ancestorDistance(nil, []string{"r"})
	assert.Equal(t, 0, da)
	assert.Equal(t, 1, db)
}

func TestActionType_Weights(t *testing.T) {
	assert.Equal(t, 0, ActionAddToCodeCache.Weight())
	assert.Equal(t, 5, ActionProcessEntrypoint.Weight())
	assert.Equal(t, 10, ActionGetExports.Weight())
	assert.Len(t, ActionTypes(), 11)
	assert.False(t, ActionType("bogus").Valid())
}

func TestQueue_MergeFinalizeKeepsNewerGeneration(t *testing.T) {
	q := NewQueue()
	old := ep("/src/a.js", "x")
	next := ep("/src/a.js", "x", "y")
	next.Generation = 1
	_, _ = q.Enqueue(action(ActionFinalizeEntrypoint, old, 1))
	_, _ = q.Enqueue(action(ActionFinalizeEntrypoint, next, 2))
	got, _ := q.Dequeue()
	assert.Same(t, next, got.Entrypoint)
	assert.Equal(t, ir.NewExportSet("x", "y"), got.Only)
}
