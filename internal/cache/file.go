package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Reader returns the contents of a file.
type Reader interface {
	Read(ctx context.Context, path string) (string, error)
}

// ReaderFunc adapts a function to Reader.
type ReaderFunc func(ctx context.Context, path string) (string, error)

func (f ReaderFunc) Read(ctx context.Context, path string) (string, error) {
	return f(ctx, path)
}

// DefaultFileCacheSize bounds the number of files kept in memory.
const DefaultFileCacheSize = 4096

// FileCache reads files through an LRU cache. Concurrent reads of the same
// path share one call to the underlying Reader.
type FileCache struct {
	reader Reader
	files  *lru.Cache[string, string]
	group  singleflight.Group
}

// NewFileCache wraps reader. size <= 0 selects DefaultFileCacheSize.
func NewFileCache(reader Reader, size int) (*FileCache, error) {
	if size <= 0 {
		size = DefaultFileCacheSize
	}
	files, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("create file cache: %w", err)
	}
	return &FileCache{reader: reader, files: files}, nil
}

// Read returns the contents of path.
func (c *FileCache) Read(ctx context.Context, path string) (string, error) {
	if code, ok := c.files.Get(path); ok {
		return code, nil
	}
	v, err, _ := c.group.Do(path, func() (any, error) {
		if code, ok := c.files.Get(path); ok {
			return code, nil
		}
		code, err := c.reader.Read(ctx, path)
		if err != nil {
			return nil, err
		}
		c.files.Add(path, code)
		return code, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Forget drops path from the cache.
func (c *FileCache) Forget(path string) {
	c.files.Remove(path)
}

// Len returns the number of cached files.
func (c *FileCache) Len() int {
	return c.files.Len()
}
