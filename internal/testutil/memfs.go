// Package testutil provides in-memory collaborators for pipeline tests.
package testutil

import (
	"context"
	"strings"
	"sync"
	"testing/fstest"

	"github.com/roach88/bakecss/internal/resolver"
)

// MemFS is an in-memory project. It resolves specifiers with Node rules
// and counts reads and resolutions per path.
type MemFS struct {
	fs   fstest.MapFS
	node *resolver.Node

	mu       sync.Mutex
	reads    map[string]int
	resolves int
}

// NewMemFS builds a project from absolute paths to contents.
func NewMemFS(files map[string]string) *MemFS {
	m := &MemFS{fs: fstest.MapFS{}, reads: make(map[string]int)}
	for p, code := range files {
		m.fs[strings.TrimPrefix(p, "/")] = &fstest.MapFile{Data: []byte(code)}
	}
	m.node = resolver.NewNode(m.fs)
	return m
}

// Write adds or replaces a file.
func (m *MemFS) Write(path, code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fs[strings.TrimPrefix(path, "/")] = &fstest.MapFile{Data: []byte(code)}
}

// Read implements cache.Reader.
func (m *MemFS) Read(ctx context.Context, path string) (string, error) {
	m.mu.Lock()
	m.reads[path]++
	m.mu.Unlock()
	return resolver.FSReader{FS: m.fs}.Read(ctx, path)
}

// Resolve implements resolver.Resolver.
func (m *MemFS) Resolve(ctx context.Context, specifier, importer string, chain []string) (string, error) {
	m.mu.Lock()
	m.resolves++
	m.mu.Unlock()
	return m.node.Resolve(ctx, specifier, importer, chain)
}

// Reads returns how many times path was read.
func (m *MemFS) Reads(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads[path]
}

// TotalReads returns the number of reads of any path.
func (m *MemFS) TotalReads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.reads {
		n += c
	}
	return n
}

// Resolves returns the number of Resolve calls.
func (m *MemFS) Resolves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolves
}
