// Package shaker deletes the statements of a module that are not needed to
// produce a requested set of exports.
package shaker

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/tdewolff/parse/v2/js"

	"github.com/roach88/bakecss/internal/ir"
	"github.com/roach88/bakecss/internal/jsast"
)

// Policy decides what happens when a requested export does not exist.
type Policy string

const (
	PolicyError       Policy = "error"
	PolicyIgnore      Policy = "ignore"
	PolicyReexportAll Policy = "reexport-all"
	PolicySkip        Policy = "skip"
)

// Valid reports whether p is a known policy.
func (p Policy) Valid() bool {
	switch p {
	case PolicyError, PolicyIgnore, PolicyReexportAll, PolicySkip:
		return true
	}
	return false
}

// Options configure one Shake call.
type Options struct {
	Only          ir.ExportSet
	UnknownExport Policy

	// SideEffects keeps bare imports and bare require calls.
	SideEffects bool
}

// Result is a shaken file and what it still needs from other modules.
type Result struct {
	File *jsast.File

	// Imports maps each remaining specifier to the names read from it.
	// "*" means the whole module; an empty list means side effects only.
	Imports map[string][]string

	// ImportAliases maps namespace bindings to their specifier.
	ImportAliases map[string]string

	// Exports lists the names the shaken file still exports.
	Exports []string

	Deleted int
	Skipped bool
}

// UnknownExportError reports requested names a file does not export.
type UnknownExportError struct {
	File  string
	Names []string
}

func (e *UnknownExportError) Error() string {
	return fmt.Sprintf("%s does not export %s", e.File, strings.Join(e.Names, ", "))
}

// Shake removes from f every statement that is not required by the
// requested exports or by a forced side effect. f is modified in place.
func Shake(f *jsast.File, opts Options) (*Result, error) {
	if opts.UnknownExport == "" {
		opts.UnknownExport = PolicyError
	}
	g := BuildGraph(f)

	roots, missing := exportRoots(f, opts.Only)
	if opts.SideEffects || opts.Only.Has(ir.SideEffectExport) {
		// Side-effect statements are kept as written, declarators and all.
		for _, id := range sideEffectRoots(f) {
			f.Walk(id, func(n *jsast.Node) bool {
				roots = append(roots, n.ID)
				return true
			})
		}
	}

	delegated := missing
	if len(missing) > 0 {
		switch {
		case len(f.ExportAll()) > 0:
			roots = append(roots, f.ExportAll()...)
		case opts.UnknownExport == PolicyError:
			return nil, &UnknownExportError{File: f.Name, Names: missing}
		case opts.UnknownExport == PolicyIgnore:
			slog.Debug("ignoring unknown exports", "file", f.Name, "names", missing)
			delegated = nil
		case opts.UnknownExport == PolicyReexportAll:
			roots = append(roots, reexportRoots(f)...)
			delegated = nil
		case opts.UnknownExport == PolicySkip:
			return skipped(f, missing), nil
		}
	}
	roots = append(roots, f.Program())

	alive := g.Reachable(roots)
	rec := newRecorder(f, alive)
	imports, aliases := rec.collect(opts.Only.IsWildcard(), delegated)

	for id := jsast.NodeID(0); int(id) < f.Len(); id++ {
		n := f.Node(id)
		if n.InList() && !alive[id] && alive[n.Parent] {
			f.Remove(id)
		}
	}
	if !opts.Only.IsWildcard() {
		if err := narrowCommonJSChains(f, alive, opts.Only); err != nil {
			return nil, err
		}
	}
	deleted := f.Apply()

	slog.Debug("shaken", "file", f.Name, "only", opts.Only.String(), "deleted", deleted, "imports", len(imports))
	return &Result{
		File:          f,
		Imports:       imports,
		ImportAliases: aliases,
		Exports:       f.ExportNames(),
		Deleted:       deleted,
	}, nil
}

// skipped leaves f as written. Everything it imports is needed, as if every
// export had been requested.
func skipped(f *jsast.File, missing []string) *Result {
	alive := make([]bool, f.Len())
	for i := range alive {
		alive[i] = true
	}
	imports, aliases := newRecorder(f, alive).collect(true, nil)
	slog.Debug("shaking skipped for unknown exports", "file", f.Name, "names", missing)
	return &Result{
		File:          f,
		Imports:       imports,
		ImportAliases: aliases,
		Exports:       f.ExportNames(),
		Skipped:       true,
	}
}

func exportRoots(f *jsast.File, only ir.ExportSet) (roots []jsast.NodeID, missing []string) {
	if only.IsWildcard() {
		for _, name := range f.ExportNames() {
			id, _ := f.Export(name)
			roots = append(roots, id)
		}
		return append(roots, f.ExportAll()...), nil
	}
	for _, name := range only {
		if name == ir.SideEffectExport {
			continue
		}
		if id, ok := f.Export(name); ok {
			roots = append(roots, id)
			continue
		}
		missing = append(missing, name)
	}
	return roots, missing
}

// sideEffectRoots returns top-level statements that run code in other
// modules without binding anything: `import "m"`, `require("m")`, and any
// statement holding a require whose specifier is not a literal.
func sideEffectRoots(f *jsast.File) []jsast.NodeID {
	var roots []jsast.NodeID
	for _, id := range f.Body() {
		n := f.Node(id)
		switch {
		case n.Kind == jsast.KindImport && len(n.Children) == 0:
			roots = append(roots, id)
		case n.Kind == jsast.KindExprStmt && len(n.Children) == 1 && f.Node(n.Children[0]).IsRequire():
			roots = append(roots, id)
		default:
			dynamic := false
			f.Walk(id, func(c *jsast.Node) bool {
				if c.IsDynamicRequire() {
					dynamic = true
				}
				return !dynamic
			})
			if dynamic {
				roots = append(roots, id)
			}
		}
	}
	return roots
}

func reexportRoots(f *jsast.File) []jsast.NodeID {
	var roots []jsast.NodeID
	for _, id := range f.Body() {
		n := f.Node(id)
		if n.Kind == jsast.KindExportNamed && n.Spec.Source != "" {
			roots = append(roots, n.Children...)
		}
	}
	return append(roots, f.ExportAll()...)
}

// narrowCommonJSChains rewrites `exports.a = exports.b = v` when only some
// of the assigned names were requested. Two or more survivors share one
// intermediate constant so v is evaluated once.
func narrowCommonJSChains(f *jsast.File, alive []bool, only ir.ExportSet) error {
	for _, id := range f.Body() {
		names := f.CommonJSExports(id)
		if len(names) == 0 || !alive[id] {
			continue
		}
		var keep []string
		for _, name := range names {
			if only.Has(name) {
				keep = append(keep, name)
			}
		}
		if len(keep) == 0 || len(keep) == len(names) {
			continue
		}
		value := chainValue(f.Node(id).Raw.(*js.ExprStmt).Value)
		var stmts []js.IStmt
		if len(keep) == 1 {
			stmts = append(stmts, assignExport(keep[0], value))
		} else {
			tmp := "_bake_" + keep[0]
			if !js.AsIdentifierName([]byte(tmp)) {
				tmp = "_bake_value"
			}
			stmts = append(stmts, jsast.ConstDecl(tmp, value))
			for _, name := range keep {
				stmts = append(stmts, assignExport(name, jsast.Ident(tmp)))
			}
		}
		if err := f.ReplaceStmt(id, stmts...); err != nil {
			return err
		}
	}
	return nil
}

func chainValue(e js.IExpr) js.IExpr {
	for {
		bin, ok := e.(*js.BinaryExpr)
		if !ok || bin.Op != js.EqToken {
			return e
		}
		e = bin.Y
	}
}

func assignExport(name string, value js.IExpr) js.IStmt {
	return jsast.ExprStmt(&js.BinaryExpr{Op: js.EqToken, X: jsast.Member(jsast.Ident("exports"), name), Y: value})
}

// recorder collects the names each alive import site reads.
type recorder struct {
	f       *jsast.File
	alive   []bool
	names   map[string]map[string]bool
	aliases map[string]string
}

func newRecorder(f *jsast.File, alive []bool) *recorder {
	return &recorder{f: f, alive: alive, names: make(map[string]map[string]bool), aliases: make(map[string]string)}
}

func (r *recorder) add(src, name string) {
	m, ok := r.names[src]
	if !ok {
		m = make(map[string]bool)
		r.names[src] = m
	}
	if name != "" {
		m[name] = true
	}
}

func (r *recorder) collect(wildcard bool, delegated []string) (map[string][]string, map[string]string) {
	f := r.f
	for id := jsast.NodeID(0); int(id) < f.Len(); id++ {
		if !r.alive[id] {
			continue
		}
		n := f.Node(id)
		switch n.Kind {
		case jsast.KindImport:
			if len(n.Children) == 0 {
				r.add(n.Spec.Source, "")
			}
		case jsast.KindImportSpecifier:
			if n.Spec.Imported == ir.Wildcard {
				r.aliases[n.Spec.Local] = n.Spec.Source
				r.namespaceReads(n.Spec.Source, f.References(id))
			} else {
				r.add(n.Spec.Source, n.Spec.Imported)
			}
		case jsast.KindExportSpecifier:
			if n.Spec.Source != "" {
				r.add(n.Spec.Source, n.Spec.Imported)
			}
		case jsast.KindExportAll:
			if wildcard || len(delegated) == 0 {
				r.add(n.Spec.Source, ir.Wildcard)
			}
			for _, name := range delegated {
				r.add(n.Spec.Source, name)
			}
		case jsast.KindCall:
			if n.IsRequire() {
				r.requireReads(n)
			}
		}
	}

	out := make(map[string][]string, len(r.names))
	for src, set := range r.names {
		if set[ir.Wildcard] {
			out[src] = []string{ir.Wildcard}
			continue
		}
		list := make([]string, 0, len(set))
		for name := range set {
			list = append(list, name)
		}
		sort.Strings(list)
		out[src] = list
	}
	return out, r.aliases
}

// namespaceReads records `ns.x` reads as x; any other use of ns needs the
// whole module.
func (r *recorder) namespaceReads(src string, refs []jsast.NodeID) {
	used := false
	for _, ref := range refs {
		if !r.alive[ref] {
			continue
		}
		used = true
		if name := r.memberRead(ref); name != "" {
			r.add(src, name)
		} else {
			r.add(src, ir.Wildcard)
		}
	}
	if !used {
		r.add(src, ir.Wildcard)
	}
}

func (r *recorder) memberRead(id jsast.NodeID) string {
	n := r.f.Node(id)
	if n.Parent == jsast.NoNode {
		return ""
	}
	p := r.f.Node(n.Parent)
	if p.Kind == jsast.KindMember && len(p.Children) > 0 && p.Children[0] == id {
		return p.Name
	}
	return ""
}

func (r *recorder) requireReads(call *jsast.Node) {
	src := call.Require
	p := r.f.Node(call.Parent)
	switch p.Kind {
	case jsast.KindExprStmt:
		r.add(src, "")
	case jsast.KindMember:
		if name := r.memberRead(call.ID); name != "" {
			r.add(src, name)
			return
		}
		r.add(src, ir.Wildcard)
	case jsast.KindDeclarator:
		el, ok := p.Raw.(*js.BindingElement)
		if !ok {
			r.add(src, ir.Wildcard)
			return
		}
		switch b := el.Binding.(type) {
		case *js.Var:
			r.aliases[string(b.Name())] = src
			r.namespaceReads(src, r.f.References(p.ID))
		case *js.BindingObject:
			for _, item := range b.List {
				if key, ok := bindingKey(item); ok {
					r.add(src, key)
				} else {
					r.add(src, ir.Wildcard)
				}
			}
			if b.Rest != nil {
				r.add(src, ir.Wildcard)
			}
		default:
			r.add(src, ir.Wildcard)
		}
	default:
		r.add(src, ir.Wildcard)
	}
}

func bindingKey(item js.BindingObjectItem) (string, bool) {
	if item.Key == nil || !item.Key.IsSet() {
		if v, ok := item.Value.Binding.(*js.Var); ok {
			return string(v.Name()), true
		}
		return "", false
	}
	if item.Key.IsComputed() {
		return "", false
	}
	key := string(item.Key.Literal.Data)
	if item.Key.Literal.TokenType == js.StringToken {
		key = strings.Trim(key, `"'`)
	}
	return key, true
}
