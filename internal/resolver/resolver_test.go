package resolver

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFS() fstest.MapFS {
	file := func(s string) *fstest.MapFile { return &fstest.MapFile{Data: []byte(s)} }
	return fstest.MapFS{
		"src/a.js":                               file("a"),
		"src/b.ts":                               file("b"),
		"src/theme/index.js":                     file("theme"),
		"src/data.json":                          file("{}"),
		"node_modules/lib/package.json":          file(`{"main": "lib/main.js", "module": "esm/index.js"}`),
		"node_modules/lib/esm/index.js":          file("esm"),
		"node_modules/lib/lib/main.js":           file("cjs"),
		"node_modules/plain/index.js":            file("plain"),
		"node_modules/@scope/pkg/package.json":   file(`{"main": "./dist"}`),
		"node_modules/@scope/pkg/dist/index.js":  file("scoped"),
		"src/nested/node_modules/local/index.js": file("local"),
	}
}

func TestNode_Resolve(t *testing.T) {
	n := NewNode(testFS())
	cases := []struct {
		spec, importer, want string
	}{
		{"./a", "/src/index.js", "/src/a.js"},
		{"./a.js", "/src/index.js", "/src/a.js"},
		{"./b", "/src/index.js", "/src/b.ts"},
		{"./theme", "/src/index.js", "/src/theme/index.js"},
		{"../a", "/src/theme/index.js", "/src/a.js"},
		{"./data.json", "/src/index.js", "/src/data.json"},
		{"/src/a", "/other/x.js", "/src/a.js"},
		{"lib", "/src/index.js", "/node_modules/lib/esm/index.js"},
		{"plain", "/src/deep/er/x.js", "/node_modules/plain/index.js"},
		{"@scope/pkg", "/src/index.js", "/node_modules/@scope/pkg/dist/index.js"},
		{"local", "/src/nested/x.js", "/src/nested/node_modules/local/index.js"},
	}
	for _, tc := range cases {
		t.Run(tc.spec, func(t *testing.T) {
			got, err := n.Resolve(context.Background(), tc.spec, tc.importer, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNode_NotFound(t *testing.T) {
	n := NewNode(testFS())
	_, err := n.Resolve(context.Background(), "./missing", "/src/index.js", []string{"/src/root.js", "/src/index.js"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "./missing", nf.Specifier)
	assert.Contains(t, err.Error(), "via /src/root.js -> /src/index.js")

	_, err = n.Resolve(context.Background(), "local", "/src/index.js", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNode_CustomExtensions(t *testing.T) {
	n := &Node{FS: testFS(), Extensions: []string{".js"}}
	_, err := n.Resolve(context.Background(), "./b", "/src/index.js", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNode_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewNode(testFS()).Resolve(ctx, "./a", "/src/index.js", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFSReader(t *testing.T) {
	r := FSReader{FS: testFS()}
	code, err := r.Read(context.Background(), "/src/a.js")
	require.NoError(t, err)
	assert.Equal(t, "a", code)

	_, err = r.Read(context.Background(), "/src/none.js")
	assert.Error(t, err)
}
