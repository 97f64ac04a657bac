package shaker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExplodeReexports_ExpandsWildcard(t *testing.T) {
	f := parse(t, `export * from "./a";
`)
	n, err := ExplodeReexports(f, map[string][]string{"./a": {"y", "x", "default"}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, `export { x, y } from "./a";`, f.PrintESM())
	assert.Equal(t, []string{"x", "y"}, f.ExportNames())
}

func TestExplodeReexports_RemovesEmptyWildcard(t *testing.T) {
	f := parse(t, `export * from "./empty.js";
export const z = 1;
`)
	_, err := ExplodeReexports(f, map[string][]string{"./empty.js": nil})
	require.NoError(t, err)
	assert.Equal(t, "export const z = 1;", f.PrintESM())
	assert.Empty(t, f.ExportAll())
}

func TestExplodeReexports_SkipsOwnAndDuplicateNames(t *testing.T) {
	f := parse(t, `export * from "./a";
export * from "./b";
export const z = 1;
`)
	_, err := ExplodeReexports(f, map[string][]string{
		"./a": {"x", "z"},
		"./b": {"x", "w"},
	})
	require.NoError(t, err)
	code := f.PrintESM()
	assert.Contains(t, code, `export { x } from "./a";`)
	assert.Contains(t, code, `export { w } from "./b";`)
	assert.Equal(t, []string{"w", "x", "z"}, f.ExportNames())
}

func TestExplodeReexports_UnknownSourceKept(t *testing.T) {
	f := parse(t, `export * from "./a";
`)
	n, err := ExplodeReexports(f, map[string][]string{})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, f.ExportAll(), 1)
}

func TestWildcardSources(t *testing.T) {
	f := parse(t, `export * from "./a";
export * from "./b";
export * from "./a";
`)
	assert.Equal(t, []string{"./a", "./b"}, WildcardSources(f))
}
