// Package resolver maps import specifiers to files using Node's lookup
// rules over an fs.FS.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
)

// Resolver maps an import specifier written in importer to a file path.
// chain lists the files that led to importer, for error messages.
type Resolver interface {
	Resolve(ctx context.Context, specifier, importer string, chain []string) (string, error)
}

// Func adapts a function to Resolver.
type Func func(ctx context.Context, specifier, importer string, chain []string) (string, error)

func (f Func) Resolve(ctx context.Context, specifier, importer string, chain []string) (string, error) {
	return f(ctx, specifier, importer, chain)
}

// ErrNotFound is wrapped by every failed resolution.
var ErrNotFound = errors.New("module not found")

// NotFoundError reports a specifier no candidate file satisfies.
type NotFoundError struct {
	Specifier string
	Importer  string
	Chain     []string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("cannot resolve %q from %s", e.Specifier, e.Importer)
	if len(e.Chain) > 0 {
		msg += " (via " + strings.Join(e.Chain, " -> ") + ")"
	}
	return msg
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// DefaultExtensions is the probe order for specifiers without a known
// extension.
var DefaultExtensions = []string{".js", ".mjs", ".cjs", ".jsx", ".ts", ".tsx"}

// Node resolves specifiers the way Node does for CommonJS, over FS.
// Paths handed to and returned by Node are absolute ("/src/a.js"); FS is
// addressed without the leading slash.
type Node struct {
	FS         fs.FS
	Extensions []string
}

// NewNode returns a resolver over fsys probing DefaultExtensions.
func NewNode(fsys fs.FS) *Node {
	return &Node{FS: fsys, Extensions: DefaultExtensions}
}

// Resolve implements Resolver.
func (n *Node) Resolve(ctx context.Context, specifier, importer string, chain []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	notFound := &NotFoundError{Specifier: specifier, Importer: importer, Chain: chain}
	switch {
	case specifier == "":
		return "", notFound
	case strings.HasPrefix(specifier, "./"), strings.HasPrefix(specifier, "../"), specifier == ".", specifier == "..":
		if p, ok := n.loadPath(path.Join(path.Dir(importer), specifier)); ok {
			return p, nil
		}
	case strings.HasPrefix(specifier, "/"):
		if p, ok := n.loadPath(path.Clean(specifier)); ok {
			return p, nil
		}
	default:
		if p, ok := n.loadNodeModules(specifier, path.Dir(importer)); ok {
			return p, nil
		}
	}
	return "", notFound
}

func (n *Node) loadPath(p string) (string, bool) {
	if f, ok := n.loadFile(p); ok {
		return f, true
	}
	return n.loadDirectory(p)
}

func (n *Node) loadFile(p string) (string, bool) {
	if n.isFile(p) {
		return p, true
	}
	for _, ext := range n.extensions() {
		if n.isFile(p + ext) {
			return p + ext, true
		}
	}
	return "", false
}

func (n *Node) loadDirectory(dir string) (string, bool) {
	if main, ok := n.packageMain(dir); ok {
		if f, ok := n.loadFile(path.Join(dir, main)); ok {
			return f, true
		}
		if f, ok := n.loadIndex(path.Join(dir, main)); ok {
			return f, true
		}
	}
	return n.loadIndex(dir)
}

func (n *Node) loadIndex(dir string) (string, bool) {
	for _, ext := range n.extensions() {
		if p := path.Join(dir, "index"+ext); n.isFile(p) {
			return p, true
		}
	}
	return "", false
}

func (n *Node) loadNodeModules(specifier, dir string) (string, bool) {
	for {
		if path.Base(dir) != "node_modules" {
			if p, ok := n.loadPath(path.Join(dir, "node_modules", specifier)); ok {
				return p, true
			}
		}
		if dir == "/" || dir == "." {
			return "", false
		}
		dir = path.Dir(dir)
	}
}

type packageJSON struct {
	Module string `json:"module"`
	Main   string `json:"main"`
}

// packageMain returns the entry file named by dir/package.json. The ES
// module entry is preferred.
func (n *Node) packageMain(dir string) (string, bool) {
	data, err := fs.ReadFile(n.FS, fsPath(path.Join(dir, "package.json")))
	if err != nil {
		return "", false
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return "", false
	}
	if pkg.Module != "" {
		return pkg.Module, true
	}
	return pkg.Main, pkg.Main != ""
}

func (n *Node) isFile(p string) bool {
	info, err := fs.Stat(n.FS, fsPath(p))
	return err == nil && !info.IsDir()
}

func (n *Node) extensions() []string {
	if n.Extensions == nil {
		return DefaultExtensions
	}
	return n.Extensions
}

func fsPath(p string) string {
	p = strings.TrimPrefix(path.Clean(p), "/")
	if p == "" {
		return "."
	}
	return p
}

// FSReader reads absolute paths from an fs.FS.
type FSReader struct {
	FS fs.FS
}

// Read returns the contents of p.
func (r FSReader) Read(ctx context.Context, p string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := fs.ReadFile(r.FS, fsPath(p))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", p, err)
	}
	return string(data), nil
}
