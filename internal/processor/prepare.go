package processor

import (
	"fmt"

	"github.com/tdewolff/parse/v2/js"

	"github.com/roach88/bakecss/internal/ir"
	"github.com/roach88/bakecss/internal/jsast"
)

// Prepare rewrites f for evaluation. Every template is replaced by the
// value it has at runtime, a class name for css and a component stub for
// styled, and every interpolation moves into a thunk of the exported
// preval object:
//
//	export const __bakePreval = { _exp0_0: () => size };
//
// It reports whether the preval export was added. f is reindexed.
func Prepare(f *jsast.File, templates []*Template) (bool, error) {
	if len(templates) == 0 {
		return false, nil
	}
	props := make([][]jsast.Prop, len(templates))

	// Later templates may sit inside earlier ones' interpolations, so they
	// are replaced first and the outer thunk captures the replacement.
	for i := len(templates) - 1; i >= 0; i-- {
		t := templates[i]
		raw := f.Node(t.Node).Raw.(*js.TemplateExpr)
		for j := range raw.List {
			props[i] = append(props[i], jsast.Prop{Key: t.Key(j), Value: jsast.Thunk(raw.List[j].Expr)})
		}
		value, err := stub(t)
		if err != nil {
			return false, err
		}
		if err := f.Replace(t.Node, value); err != nil {
			return false, err
		}
	}

	var all []jsast.Prop
	for _, p := range props {
		all = append(all, p...)
	}
	f.AppendStmt(jsast.ExportConst(ir.PrevalExport, jsast.Object(all...)))
	f.Reindex()
	return true, nil
}

// stub is what a template evaluates to at build time.
func stub(t *Template) (js.IExpr, error) {
	if t.Kind == KindCSS {
		return jsast.String(t.ClassName), nil
	}
	src := fmt.Sprintf(`{ %s: { className: %s, displayName: %s }, toString: function () { return %s; } }`,
		MetaKey, jsast.Quote(t.ClassName), jsast.Quote(t.DisplayName), jsast.Quote(t.Selector()))
	return jsast.ParseExpr(src)
}

// MetaKey is the property a styled stub carries its class name under.
const MetaKey = "__bakeMeta"
