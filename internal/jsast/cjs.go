package jsast

import (
	"fmt"
	"strings"

	"github.com/tdewolff/parse/v2/js"

	"github.com/roach88/bakecss/internal/ir"
)

// Globals the CommonJS output calls. The host that runs the code defines
// them.
const (
	// HelperInterop returns an ES namespace object for any module value.
	HelperInterop = "__bakeInterop"

	// HelperExportStar copies every export except default onto the target.
	HelperExportStar = "__bakeExportStar"
)

// PrintCommonJS prints the module as CommonJS. Exports become live getters
// on `exports`, and uses of imported bindings become property reads on the
// required module, so cyclic requires observe later assignments.
//
// The AST is rewritten in place; the file should not be printed as ESM
// afterwards.
func (f *File) PrintCommonJS() string {
	p := &cjsPrinter{f: f, modVars: make(map[NodeID]string)}
	p.rewriteImports()

	var sb strings.Builder
	sb.WriteString(`Object.defineProperty(exports, "__esModule", { value: true });`)
	body := p.body()
	for _, g := range p.getters {
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "Object.defineProperty(exports, %s, { enumerable: true, get: function () { return %s; } });", Quote(g.name), g.expr)
	}
	for _, s := range body {
		sb.WriteString("\n")
		sb.WriteString(s)
	}
	return sb.String()
}

type getter struct {
	name string
	expr string
}

type cjsPrinter struct {
	f       *File
	modVars map[NodeID]string
	getters []getter
	next    int
}

func (p *cjsPrinter) tmp(prefix string) string {
	name := fmt.Sprintf("%s%d", prefix, p.next)
	p.next++
	return name
}

// rewriteImports names a module variable per import statement and points
// every reference of an imported binding at it.
func (p *cjsPrinter) rewriteImports() {
	f := p.f
	for _, id := range f.Body() {
		n := f.Node(id)
		if n.Kind != KindImport || len(n.Children) == 0 {
			continue
		}
		mod := ""
		for _, sid := range n.Children {
			if s := f.Node(sid).Spec; s.Imported == ir.Wildcard {
				mod = s.Local
			}
		}
		if mod == "" {
			mod = p.tmp("_m")
		}
		p.modVars[id] = mod
		for _, sid := range n.Children {
			s := f.Node(sid).Spec
			if s.Imported == ir.Wildcard {
				continue
			}
			for _, ref := range f.References(sid) {
				r := f.Node(ref)
				if r.set != nil {
					r.set(Member(Ident(mod), s.Imported))
				}
			}
		}
	}
}

func (p *cjsPrinter) body() []string {
	f := p.f
	var out []string
	for _, id := range f.Body() {
		n := f.Node(id)
		switch n.Kind {
		case KindImport:
			req := fmt.Sprintf("require(%s)", Quote(n.Spec.Source))
			if mod, ok := p.modVars[id]; ok {
				out = append(out, fmt.Sprintf("var %s = %s(%s);", mod, HelperInterop, req))
			} else {
				out = append(out, req+";")
			}
		case KindExportDecl:
			p.declGetters(n)
			out = append(out, printStmt(n.Raw.(*js.ExportStmt).Decl))
		case KindExportDefault:
			decl := n.Raw.(*js.ExportStmt).Decl
			if len(n.Children) == 1 {
				c := f.Node(n.Children[0])
				if (c.Kind == KindFunction || c.Kind == KindClass) && c.Name != "" {
					p.getters = append(p.getters, getter{ir.DefaultExport, c.Name})
					out = append(out, printStmt(decl))
					continue
				}
			}
			out = append(out, "exports.default = "+PrintExpr(decl)+";")
		case KindExportNamed:
			out = append(out, p.namedExport(n)...)
		case KindExportAll:
			out = append(out, fmt.Sprintf("%s(exports, require(%s));", HelperExportStar, Quote(n.Spec.Source)))
		default:
			out = append(out, printStmt(n.Raw))
		}
	}
	return out
}

func (p *cjsPrinter) declGetters(n *Node) {
	f := p.f
	for _, c := range n.Children {
		child := f.Node(c)
		switch child.Kind {
		case KindVarDecl:
			for _, d := range child.Children {
				for _, b := range f.Node(d).Children {
					if bn := f.Node(b); bn.Kind == KindBinding {
						p.getters = append(p.getters, getter{bn.Name, bn.Name})
					}
				}
			}
		case KindFunction, KindClass:
			if child.Name != "" {
				p.getters = append(p.getters, getter{child.Name, child.Name})
			}
		}
	}
}

func (p *cjsPrinter) namedExport(n *Node) []string {
	f := p.f
	if n.Spec.Source != "" {
		mod := p.tmp("_r")
		for _, c := range n.Children {
			s := f.Node(c).Spec
			expr := mod
			if s.Imported != ir.Wildcard {
				expr = PrintExpr(Member(Ident(mod), s.Imported))
			}
			p.getters = append(p.getters, getter{s.Exported, expr})
		}
		return []string{fmt.Sprintf("var %s = %s(require(%s));", mod, HelperInterop, Quote(n.Spec.Source))}
	}
	for _, c := range n.Children {
		s := f.Node(c).Spec
		expr := s.Local
		if imp, ok := f.ImportBinding(s.Local); ok {
			is := f.Node(imp).Spec
			mod := p.modVars[f.Node(imp).Parent]
			if is.Imported == ir.Wildcard {
				expr = mod
			} else {
				expr = PrintExpr(Member(Ident(mod), is.Imported))
			}
		}
		p.getters = append(p.getters, getter{s.Exported, expr})
	}
	return nil
}

func printStmt(n js.INode) string {
	var sb strings.Builder
	n.JS(&sb)
	if _, ok := n.(*js.VarDecl); ok {
		sb.WriteString(";")
	}
	return sb.String()
}
