// Package processor finds style templates in a file, rewrites them for
// build-time evaluation and turns evaluated interpolations into CSS rules.
package processor

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tdewolff/parse/v2/js"

	"github.com/roach88/bakecss/internal/ir"
	"github.com/roach88/bakecss/internal/jsast"
)

// Kind selects how a tag is processed.
type Kind string

const (
	KindCSS    Kind = "css"
	KindStyled Kind = "styled"
)

// TagSpec names an imported binding that marks a style template.
type TagSpec struct {
	Module string `yaml:"module" json:"module"`
	Name   string `yaml:"name" json:"name"`
	Kind   Kind   `yaml:"kind" json:"kind"`
}

// DefaultTags returns the tags recognized without configuration.
func DefaultTags() []TagSpec {
	return []TagSpec{
		{Module: "@bakecss/core", Name: "css", Kind: KindCSS},
		{Module: "@bakecss/react", Name: "styled", Kind: KindStyled},
	}
}

// DefaultSlug is the class name template used when none is configured.
const DefaultSlug = "[title]_[hash]"

// Options configure detection.
type Options struct {
	Tags []TagSpec

	// Slug is the class name template. It understands [title], [hash],
	// [file] and [index].
	Slug string
}

func (o Options) withDefaults() Options {
	if len(o.Tags) == 0 {
		o.Tags = DefaultTags()
	}
	if o.Slug == "" {
		o.Slug = DefaultSlug
	}
	return o
}

// Template is one detected style template.
type Template struct {
	Index       int
	Kind        Kind
	DisplayName string
	ClassName   string

	Node jsast.NodeID

	// Quasis holds the static text around the interpolations, one more
	// entry than Exprs.
	Quasis []string
	Exprs  []jsast.NodeID

	// Refs holds, per interpolation, the class name of a template in the
	// same file that the expression names directly.
	Refs []string

	// Tag is the element name for styled.tag and styled("tag"); empty when
	// the target is a component.
	Tag string

	Span jsast.Span
	Loc  ir.Location
}

// Key returns the preval property that carries interpolation i.
func (t *Template) Key(i int) string {
	return fmt.Sprintf("_exp%d_%d", t.Index, i)
}

// Selector returns the class selector of the template.
func (t *Template) Selector() string {
	return "." + t.ClassName
}

// Detect returns the style templates of f in source order. f must be freshly
// parsed.
func Detect(f *jsast.File, opts Options) ([]*Template, error) {
	opts = opts.withDefaults()
	var out []*Template
	byDecl := make(map[jsast.NodeID]*Template)
	for _, id := range f.Templates() {
		n := f.Node(id)
		raw, ok := n.Raw.(*js.TemplateExpr)
		if !ok || raw.Tag == nil || len(n.Children) == 0 {
			continue
		}
		kind, tag, ok := matchTag(f, n.Children[0], opts.Tags)
		if !ok {
			continue
		}
		t := &Template{
			Index:  len(out),
			Kind:   kind,
			Node:   id,
			Quasis: quasis(raw),
			Exprs:  append([]jsast.NodeID(nil), n.Children[1:]...),
			Tag:    tag,
		}
		t.DisplayName = displayName(f, n)
		cls, err := ClassName(opts.Slug, f.Name, t.DisplayName, t.Index)
		if err != nil {
			return nil, err
		}
		t.ClassName = cls
		if span, ok := f.TemplateSpan(id); ok {
			t.Span = span
			t.Loc = f.Location(span.Start)
		}
		if p := f.Node(n.Parent); p.Kind == jsast.KindDeclarator {
			byDecl[p.ID] = t
		}
		out = append(out, t)
	}
	for _, t := range out {
		t.Refs = make([]string, len(t.Exprs))
		for i, e := range t.Exprs {
			if f.Node(e).Kind != jsast.KindIdentifier {
				continue
			}
			if ref, ok := byDecl[f.Declaration(e)]; ok {
				t.Refs[i] = ref.ClassName
			}
		}
	}
	return out, nil
}

// matchTag reports whether the tag expression is one of the configured
// bindings, and for styled templates returns the element name.
func matchTag(f *jsast.File, tagID jsast.NodeID, tags []TagSpec) (Kind, string, bool) {
	n := f.Node(tagID)
	switch n.Kind {
	case jsast.KindIdentifier:
		if spec, ok := tagImport(f, tagID, tags); ok && spec.Kind == KindCSS {
			return KindCSS, "", true
		}
	case jsast.KindMember:
		// styled.div
		if len(n.Children) == 1 && n.Name != "" {
			if spec, ok := tagImport(f, n.Children[0], tags); ok && spec.Kind == KindStyled {
				return KindStyled, n.Name, true
			}
		}
	case jsast.KindCall:
		// styled("div") or styled(Component)
		call, ok := n.Raw.(*js.CallExpr)
		if !ok || len(call.Args.List) != 1 || len(n.Children) != 2 {
			return "", "", false
		}
		spec, ok := tagImport(f, n.Children[0], tags)
		if !ok || spec.Kind != KindStyled {
			return "", "", false
		}
		if lit, ok := call.Args.List[0].Value.(*js.LiteralExpr); ok && lit.TokenType == js.StringToken {
			return KindStyled, strings.Trim(string(lit.Data), `"'`), true
		}
		return KindStyled, "", true
	}
	return "", "", false
}

func tagImport(f *jsast.File, id jsast.NodeID, tags []TagSpec) (TagSpec, bool) {
	if f.Node(id).Kind != jsast.KindIdentifier {
		return TagSpec{}, false
	}
	decl := f.Declaration(id)
	if decl == jsast.NoNode {
		return TagSpec{}, false
	}
	d := f.Node(decl)
	if d.Kind != jsast.KindImportSpecifier {
		return TagSpec{}, false
	}
	for _, t := range tags {
		if d.Spec.Source == t.Module && d.Spec.Imported == t.Name {
			return t, true
		}
	}
	return TagSpec{}, false
}

// displayName is the binding or property the template is assigned to, or
// the file's base name.
func displayName(f *jsast.File, n *jsast.Node) string {
	p := f.Node(n.Parent)
	switch p.Kind {
	case jsast.KindDeclarator:
		for _, c := range p.Children {
			if b := f.Node(c); b.Kind == jsast.KindBinding {
				return b.Name
			}
		}
	case jsast.KindObject:
		obj := p.Raw.(*js.ObjectExpr)
		for _, prop := range obj.List {
			if prop.Value == js.IExpr(n.Raw.(*js.TemplateExpr)) && prop.Name != nil && !prop.Name.IsComputed() {
				return strings.Trim(string(prop.Name.Literal.Data), `"'`)
			}
		}
	}
	return fileTitle(f.Name)
}

func fileTitle(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// quasis returns the cooked static parts of a template.
func quasis(t *js.TemplateExpr) []string {
	out := make([]string, 0, len(t.List)+1)
	for i, p := range t.List {
		s := string(p.Value)
		if i == 0 {
			s = strings.TrimPrefix(s, "`")
		} else {
			s = strings.TrimPrefix(s, "}")
		}
		out = append(out, cook(strings.TrimSuffix(s, "${")))
	}
	tail := string(t.Tail)
	if len(t.List) == 0 {
		tail = strings.TrimPrefix(tail, "`")
	} else {
		tail = strings.TrimPrefix(tail, "}")
	}
	return append(out, cook(strings.TrimSuffix(tail, "`")))
}

var cooker = strings.NewReplacer("\\`", "`", `\$`, "$", `\\`, `\`)

func cook(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	return cooker.Replace(s)
}
