package jsast

import (
	"errors"
	"fmt"
	"sort"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/js"

	"github.com/roach88/bakecss/internal/ir"
)

// ErrNoTree is returned when the parser produced no program.
var ErrNoTree = errors.New("parser returned no tree")

// SyntaxError is a parse failure with its position.
type SyntaxError struct {
	File    string
	Loc     ir.Location
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Loc.Line, e.Loc.Column, e.Message)
}

// File is a parsed module plus its node arena.
//
// The arena is derived from AST. Mutations are recorded with Remove,
// Replace and ReplaceStmt, written into AST by Apply, and become visible to
// queries after Reindex.
type File struct {
	Name   string
	Source string
	AST    *js.AST

	nodes      []Node
	removed    map[NodeID]bool
	splices    map[NodeID][]js.IStmt
	containers []container

	declOf    map[*js.Var]NodeID
	topLevel  map[string]NodeID
	imports   map[string]NodeID
	decl      map[NodeID]NodeID
	refs      map[NodeID][]NodeID
	exports   map[string]NodeID
	cjsChains map[NodeID][]string
	exportAll []NodeID
	templates []NodeID
	requires  []NodeID
	spans     map[NodeID]Span
}

// Parse parses code as an ES module.
func Parse(name, code string) (*File, error) {
	ast, err := js.Parse(parse.NewInputString(code), js.Options{})
	if err != nil {
		var perr *parse.Error
		if errors.As(err, &perr) {
			col := perr.Column - 1
			if col < 0 {
				col = 0
			}
			return nil, &SyntaxError{File: name, Loc: ir.Location{Line: perr.Line, Column: col}, Message: perr.Message}
		}
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	if ast == nil {
		return nil, fmt.Errorf("parse %s: %w", name, ErrNoTree)
	}
	f := &File{Name: name, Source: code, AST: ast}
	f.Reindex()
	f.locateTemplates()
	return f, nil
}

// Reindex rebuilds the arena from the current AST. Every NodeID issued
// before the call is invalidated.
func (f *File) Reindex() {
	f.nodes = f.nodes[:0]
	f.removed = make(map[NodeID]bool)
	f.splices = make(map[NodeID][]js.IStmt)
	f.containers = nil
	f.declOf = make(map[*js.Var]NodeID)
	f.topLevel = make(map[string]NodeID)
	f.imports = make(map[string]NodeID)
	f.decl = make(map[NodeID]NodeID)
	f.refs = make(map[NodeID][]NodeID)
	f.exports = make(map[string]NodeID)
	f.cjsChains = make(map[NodeID][]string)
	f.exportAll = nil
	f.templates = nil
	f.requires = nil

	b := &builder{f: f, fn: NoNode}
	b.program()
	f.link()
}

// link resolves identifier uses to declarations once every binding in the
// file has been seen.
func (f *File) link() {
	for i := range f.nodes {
		n := &f.nodes[i]
		if n.Kind != KindIdentifier {
			continue
		}
		d := f.lookup(n.Var, n.Name)
		if d == NoNode {
			continue
		}
		f.decl[n.ID] = d
		f.refs[d] = append(f.refs[d], n.ID)
	}
}

func (f *File) lookup(v *js.Var, name string) NodeID {
	if v != nil {
		if d, ok := f.declOf[v]; ok {
			return d
		}
		if v.Decl != js.NoDecl {
			return NoNode
		}
	}
	if d, ok := f.imports[name]; ok {
		return d
	}
	if d, ok := f.topLevel[name]; ok {
		return d
	}
	return NoNode
}

// Len returns the number of nodes in the arena.
func (f *File) Len() int { return len(f.nodes) }

// Node returns the record for id.
func (f *File) Node(id NodeID) *Node {
	return &f.nodes[id]
}

// Program returns the root node.
func (f *File) Program() NodeID { return 0 }

// Body returns the top-level statements in source order.
func (f *File) Body() []NodeID {
	return f.nodes[0].Children
}

// Declaration returns the node declaring the identifier id, or NoNode for
// globals.
func (f *File) Declaration(id NodeID) NodeID {
	if d, ok := f.decl[id]; ok {
		return d
	}
	return NoNode
}

// References returns the identifier nodes resolved to decl.
func (f *File) References(decl NodeID) []NodeID {
	return f.refs[decl]
}

// LookupLocal returns the module-level declaration of name: a top-level
// binding or an import specifier.
func (f *File) LookupLocal(name string) NodeID {
	if d, ok := f.imports[name]; ok {
		return d
	}
	if d, ok := f.topLevel[name]; ok {
		return d
	}
	return NoNode
}

// ImportBinding returns the import specifier that declares name.
func (f *File) ImportBinding(name string) (NodeID, bool) {
	d, ok := f.imports[name]
	return d, ok
}

// Export returns the node defining an exported name.
func (f *File) Export(name string) (NodeID, bool) {
	id, ok := f.exports[name]
	return id, ok
}

// ExportNames returns the names this file exports itself, sorted.
// Names reachable only through `export *` are not included.
func (f *File) ExportNames() []string {
	out := make([]string, 0, len(f.exports))
	for name := range f.exports {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ExportAll returns the `export * from` statements.
func (f *File) ExportAll() []NodeID { return f.exportAll }

// CommonJSExports returns the names a top-level `exports.a = exports.b = v`
// statement assigns, outermost first.
func (f *File) CommonJSExports(stmt NodeID) []string {
	return f.cjsChains[stmt]
}

// Templates returns template literal nodes in source order.
func (f *File) Templates() []NodeID { return f.templates }

// Requires returns require() calls with a literal specifier.
func (f *File) Requires() []NodeID { return f.requires }

// Statement returns the nearest ancestor of id (or id itself) that is an
// entry of a statement list.
func (f *File) Statement(id NodeID) NodeID {
	for id != NoNode {
		n := &f.nodes[id]
		if n.slot == slotStmt {
			return id
		}
		id = n.Parent
	}
	return NoNode
}

// Walk calls fn for id and its descendants in source order. Returning false
// skips the node's children.
func (f *File) Walk(id NodeID, fn func(*Node) bool) {
	n := &f.nodes[id]
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		f.Walk(c, fn)
	}
}
