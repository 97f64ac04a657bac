package processor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tdewolff/parse/v2/js"

	"github.com/roach88/bakecss/internal/ir"
	"github.com/roach88/bakecss/internal/jsast"
)

// ErrFunctionInCSS is returned for a function interpolated into a css
// template, which has no runtime to call it.
var ErrFunctionInCSS = errors.New("functions cannot be interpolated in css templates")

// InterpolationError attributes a failed interpolation to its template.
type InterpolationError struct {
	File  string
	Loc   ir.Location
	Frame string
	Key   string
	Err   error
}

func (e *InterpolationError) Error() string {
	return fmt.Sprintf("%s:%d:%d: interpolation %s: %v", e.File, e.Loc.Line, e.Loc.Column, e.Key, e.Err)
}

func (e *InterpolationError) Unwrap() error { return e.Err }

// Lookup returns the evaluated value of a preval key. A non-nil error is the
// error captured while evaluating that key.
type Lookup func(key string) (ir.Value, error)

// Collected is the output of Collect.
type Collected struct {
	Code         string
	Rules        []ir.Rule
	Replacements []ir.Replacement
}

// Collect resolves every interpolation of the templates to CSS and rewrites
// f for runtime: css templates become class name strings and styled
// templates become calls to the styled runtime. Rules follow source order.
//
// f must be the freshly parsed source the templates were detected in.
func Collect(f *jsast.File, templates []*Template, lookup Lookup, opts Options) (*Collected, error) {
	opts = opts.withDefaults()
	out := &Collected{}
	replacements := make([]js.IExpr, len(templates))
	for i, t := range templates {
		body, vars, err := interpolate(f, t, lookup)
		if err != nil {
			return nil, err
		}
		out.Rules = append(out.Rules, ir.Rule{
			Selector:    t.Selector(),
			ClassName:   t.ClassName,
			DisplayName: t.DisplayName,
			CSSText:     strings.TrimSpace(body),
			File:        f.Name,
			Start:       t.Loc,
		})
		out.Replacements = append(out.Replacements, ir.Replacement{
			ClassName: t.ClassName,
			Start:     t.Loc,
			End:       f.Location(t.Span.End),
			Length:    t.Span.End - t.Span.Start,
		})
		replacements[i] = runtimeValue(f, t, vars)
	}

	for i := len(templates) - 1; i >= 0; i-- {
		if err := f.Replace(templates[i].Node, replacements[i]); err != nil {
			return nil, err
		}
	}
	f.Reindex()
	dropUnusedTags(f, opts.Tags)
	out.Code = f.PrintESM()
	return out, nil
}

// interpolate joins the quasis with the CSS text of each interpolation.
// Function interpolations of styled templates become custom properties;
// vars lists their expression indexes.
func interpolate(f *jsast.File, t *Template, lookup Lookup) (string, []int, error) {
	var sb strings.Builder
	var vars []int
	for i, q := range t.Quasis {
		sb.WriteString(q)
		if i >= len(t.Exprs) {
			break
		}
		if t.Refs[i] != "" {
			sb.WriteString("." + t.Refs[i])
			continue
		}
		fail := func(err error) error {
			return &InterpolationError{File: f.Name, Loc: t.Loc, Frame: f.Frame(t.Loc), Key: t.Key(i), Err: err}
		}
		v, err := lookup(t.Key(i))
		if err != nil {
			return "", nil, fail(err)
		}
		if _, ok := v.(ir.Function); ok {
			if t.Kind == KindCSS {
				return "", nil, fail(ErrFunctionInCSS)
			}
			fmt.Fprintf(&sb, "var(%s)", varName(t, i))
			vars = append(vars, i)
			continue
		}
		css, err := ToCSS(v)
		if err != nil {
			return "", nil, fail(err)
		}
		sb.WriteString(css)
	}
	return sb.String(), vars, nil
}

func varName(t *Template, i int) string {
	return fmt.Sprintf("--%s-%d", t.ClassName, i)
}

// runtimeValue builds the expression a template is replaced with in the
// emitted code.
func runtimeValue(f *jsast.File, t *Template, vars []int) js.IExpr {
	if t.Kind == KindCSS {
		return jsast.String(t.ClassName)
	}
	raw := f.Node(t.Node).Raw.(*js.TemplateExpr)
	var component js.IExpr
	switch tag := raw.Tag.(type) {
	case *js.CallExpr:
		component = tag
	case *js.DotExpr:
		component = jsast.Call(tag.X, jsast.String(t.Tag))
	default:
		component = tag
	}
	options := []jsast.Prop{
		{Key: "name", Value: jsast.String(t.DisplayName)},
		{Key: "class", Value: jsast.String(t.ClassName)},
		{Key: "propsAsIs", Value: jsast.Ident(fmt.Sprint(propsAsIs(t)))},
	}
	if len(vars) > 0 {
		var props []jsast.Prop
		for _, i := range vars {
			props = append(props, jsast.Prop{
				Key:   strings.TrimPrefix(varName(t, i), "--"),
				Value: jsast.Array(raw.List[i].Expr),
			})
		}
		options = append(options, jsast.Prop{Key: "vars", Value: jsast.Object(props...)})
	}
	return jsast.Call(component, jsast.Object(options...))
}

// propsAsIs is set for components and custom elements, which receive every
// prop unfiltered.
func propsAsIs(t *Template) bool {
	if t.Tag == "" {
		return true
	}
	c := t.Tag[0]
	return (c >= 'A' && c <= 'Z') || strings.Contains(t.Tag, "-")
}

// dropUnusedTags removes tag imports left without references.
func dropUnusedTags(f *jsast.File, tags []TagSpec) {
	changed := false
	for id := jsast.NodeID(0); int(id) < f.Len(); id++ {
		n := f.Node(id)
		if n.Kind != jsast.KindImportSpecifier || len(f.References(id)) > 0 {
			continue
		}
		for _, t := range tags {
			if n.Spec.Source == t.Module && n.Spec.Imported == t.Name {
				f.Remove(id)
				changed = true
			}
		}
	}
	if changed {
		f.Apply()
	}
}
