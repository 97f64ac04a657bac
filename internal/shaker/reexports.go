package shaker

import (
	"sort"

	"github.com/tdewolff/parse/v2/js"

	"github.com/roach88/bakecss/internal/ir"
	"github.com/roach88/bakecss/internal/jsast"
)

// WildcardSources returns the specifiers of every `export * from` statement
// in source order, without duplicates.
func WildcardSources(f *jsast.File) []string {
	var out []string
	seen := make(map[string]bool)
	for _, id := range f.ExportAll() {
		src := f.Node(id).Spec.Source
		if !seen[src] {
			seen[src] = true
			out = append(out, src)
		}
	}
	return out
}

// ExplodeReexports rewrites each `export * from "m"` whose specifier has an
// entry in names into `export { ... } from "m"`. Names the file exports
// itself and "default" are not re-exported. A wildcard left with nothing to
// re-export is removed. Specifiers absent from names are kept as they are.
// It returns the number of rewritten statements.
func ExplodeReexports(f *jsast.File, names map[string][]string) (int, error) {
	own := make(map[string]bool)
	for _, name := range f.ExportNames() {
		own[name] = true
	}
	taken := make(map[string]bool)
	rewritten := 0
	for _, id := range f.ExportAll() {
		n := f.Node(id)
		exported, ok := names[n.Spec.Source]
		if !ok {
			continue
		}
		var list []string
		for _, name := range exported {
			if name == ir.DefaultExport || name == ir.Wildcard || own[name] || taken[name] {
				continue
			}
			taken[name] = true
			list = append(list, name)
		}
		sort.Strings(list)
		var stmts []js.IStmt
		if len(list) > 0 {
			stmts = append(stmts, jsast.ExportFrom(n.Raw.(*js.ExportStmt).Module, list))
		}
		if err := f.ReplaceStmt(id, stmts...); err != nil {
			return rewritten, err
		}
		rewritten++
	}
	if rewritten > 0 {
		f.Apply()
	}
	return rewritten, nil
}
