package jsast

import (
	"bytes"
	"strings"

	"github.com/tdewolff/parse/v2/js"

	"github.com/roach88/bakecss/internal/ir"
)

// container is a removable list inside the AST. apply filters removed
// entries out of the list and reports whether a previously non-empty list
// became empty, in which case owner is removed as well.
type container struct {
	owner NodeID
	apply func() bool
}

type builder struct {
	f  *File
	fn NodeID
}

func (b *builder) add(kind Kind, parent NodeID, raw js.INode) NodeID {
	id := NodeID(len(b.f.nodes))
	b.f.nodes = append(b.f.nodes, Node{ID: id, Kind: kind, Parent: parent, Fn: b.fn, Raw: raw})
	if parent != NoNode {
		b.f.nodes[parent].Children = append(b.f.nodes[parent].Children, id)
	}
	return id
}

func (b *builder) program() {
	id := b.add(KindProgram, NoNode, b.f.AST)
	b.stmtList(id, &b.f.AST.BlockStmt.List, true)
}

func (b *builder) stmtList(parent NodeID, list *[]js.IStmt, top bool) {
	ids := make([]NodeID, len(*list))
	for i, s := range *list {
		id := b.stmt(parent, s, top)
		b.f.nodes[id].slot = slotStmt
		b.f.nodes[id].TopLevel = top
		ids[i] = id
	}
	f := b.f
	f.containers = append(f.containers, container{owner: parent, apply: func() bool {
		out := make([]js.IStmt, 0, len(*list))
		for i, s := range *list {
			if i >= len(ids) {
				out = append(out, s)
				continue
			}
			id := ids[i]
			if f.removed[id] {
				continue
			}
			if sp, ok := f.splices[id]; ok {
				out = append(out, sp...)
				continue
			}
			out = append(out, s)
		}
		*list = out
		return false
	}})
}

func (b *builder) stmt(parent NodeID, s js.IStmt, top bool) NodeID {
	switch t := s.(type) {
	case *js.ExprStmt:
		id := b.add(KindExprStmt, parent, t)
		b.expr(id, t.Value, func(e js.IExpr) { t.Value = e })
		if top {
			b.commonJSExport(id, t)
		}
		return id
	case *js.VarDecl:
		return b.varDecl(parent, t, top)
	case *js.FuncDecl:
		return b.function(parent, t, t.Name, &t.Params, &t.Body, top)
	case *js.ClassDecl:
		return b.class(parent, t, top)
	case *js.BlockStmt:
		id := b.add(KindBlock, parent, t)
		b.stmtList(id, &t.List, false)
		return id
	case *js.IfStmt:
		id := b.add(KindIf, parent, t)
		b.expr(id, t.Cond, func(e js.IExpr) { t.Cond = e })
		b.stmt(id, t.Body, false)
		if t.Else != nil {
			b.stmt(id, t.Else, false)
		}
		return id
	case *js.WhileStmt:
		id := b.add(KindLoop, parent, t)
		b.expr(id, t.Cond, func(e js.IExpr) { t.Cond = e })
		b.stmt(id, t.Body, false)
		return id
	case *js.DoWhileStmt:
		id := b.add(KindLoop, parent, t)
		b.stmt(id, t.Body, false)
		b.expr(id, t.Cond, func(e js.IExpr) { t.Cond = e })
		return id
	case *js.ForStmt:
		id := b.add(KindLoop, parent, t)
		b.expr(id, t.Init, func(e js.IExpr) { t.Init = e })
		b.expr(id, t.Cond, func(e js.IExpr) { t.Cond = e })
		b.expr(id, t.Post, func(e js.IExpr) { t.Post = e })
		if t.Body != nil {
			b.stmt(id, t.Body, false)
		}
		return id
	case *js.ForInStmt:
		id := b.add(KindLoop, parent, t)
		b.expr(id, t.Init, func(e js.IExpr) { t.Init = e })
		b.expr(id, t.Value, func(e js.IExpr) { t.Value = e })
		if t.Body != nil {
			b.stmt(id, t.Body, false)
		}
		return id
	case *js.ForOfStmt:
		id := b.add(KindLoop, parent, t)
		b.expr(id, t.Init, func(e js.IExpr) { t.Init = e })
		b.expr(id, t.Value, func(e js.IExpr) { t.Value = e })
		if t.Body != nil {
			b.stmt(id, t.Body, false)
		}
		return id
	case *js.SwitchStmt:
		id := b.add(KindSwitch, parent, t)
		b.expr(id, t.Init, func(e js.IExpr) { t.Init = e })
		for i := range t.List {
			c := &t.List[i]
			b.expr(id, c.Cond, func(e js.IExpr) { c.Cond = e })
			b.stmtList(id, &c.List, false)
		}
		return id
	case *js.TryStmt:
		id := b.add(KindTry, parent, t)
		if t.Body != nil {
			b.stmt(id, t.Body, false)
		}
		if t.Binding != nil {
			b.binding(id, t.Binding, NoNode, false)
		}
		if t.Catch != nil {
			b.stmt(id, t.Catch, false)
		}
		if t.Finally != nil {
			b.stmt(id, t.Finally, false)
		}
		return id
	case *js.ReturnStmt:
		id := b.add(KindReturn, parent, t)
		b.expr(id, t.Value, func(e js.IExpr) { t.Value = e })
		return id
	case *js.ThrowStmt:
		id := b.add(KindThrow, parent, t)
		b.expr(id, t.Value, func(e js.IExpr) { t.Value = e })
		return id
	case *js.BranchStmt:
		id := b.add(KindBranch, parent, t)
		b.f.nodes[id].Op = t.Type
		return id
	case *js.LabelledStmt:
		id := b.add(KindLabelled, parent, t)
		b.stmt(id, t.Value, false)
		return id
	case *js.WithStmt:
		id := b.add(KindOtherStmt, parent, t)
		b.expr(id, t.Cond, func(e js.IExpr) { t.Cond = e })
		b.stmt(id, t.Body, false)
		return id
	case *js.ImportStmt:
		return b.importStmt(parent, t)
	case *js.ExportStmt:
		return b.exportStmt(parent, t, top)
	default:
		return b.add(KindOtherStmt, parent, s)
	}
}

func (b *builder) varDecl(parent NodeID, d *js.VarDecl, top bool) NodeID {
	id := b.add(KindVarDecl, parent, d)
	b.f.nodes[id].Op = d.TokenType
	ids := make([]NodeID, len(d.List))
	for i := range d.List {
		el := &d.List[i]
		did := b.add(KindDeclarator, id, el)
		b.f.nodes[did].slot = slotDeclarator
		ids[i] = did
		if el.Binding != nil {
			b.binding(did, el.Binding, did, top)
		}
		b.expr(did, el.Default, func(e js.IExpr) { el.Default = e })
	}
	owner := id
	if parent != NoNode && b.f.nodes[parent].Kind == KindExportDecl {
		owner = parent
	}
	f := b.f
	f.containers = append(f.containers, container{owner: owner, apply: func() bool {
		out := make([]js.BindingElement, 0, len(d.List))
		for i, el := range d.List {
			if !f.removed[ids[i]] {
				out = append(out, el)
			}
		}
		d.List = out
		return len(ids) > 0 && len(out) == 0
	}})
	return id
}

// binding registers every name bound by bnd. decl is the node that owns the
// declaration; NoNode makes each binding its own declaration.
func (b *builder) binding(parent NodeID, bnd js.IBinding, decl NodeID, top bool) {
	switch t := bnd.(type) {
	case *js.Var:
		id := b.add(KindBinding, parent, t)
		v := resolve(t)
		name := string(t.Name())
		b.f.nodes[id].Var = v
		b.f.nodes[id].Name = name
		target := decl
		if target == NoNode {
			target = id
		}
		b.f.declOf[v] = target
		if top {
			b.f.topLevel[name] = target
		}
	case *js.BindingArray:
		for i := range t.List {
			el := &t.List[i]
			if el.Binding != nil {
				b.binding(parent, el.Binding, decl, top)
			}
			b.expr(parent, el.Default, func(e js.IExpr) { el.Default = e })
		}
		if t.Rest != nil {
			b.binding(parent, t.Rest, decl, top)
		}
	case *js.BindingObject:
		for i := range t.List {
			item := &t.List[i]
			if item.Key != nil && item.Key.Computed != nil {
				b.expr(parent, item.Key.Computed, func(e js.IExpr) { item.Key.Computed = e })
			}
			if item.Value.Binding != nil {
				b.binding(parent, item.Value.Binding, decl, top)
			}
			b.expr(parent, item.Value.Default, func(e js.IExpr) { item.Value.Default = e })
		}
		if t.Rest != nil {
			b.binding(parent, t.Rest, decl, top)
		}
	}
}

func (b *builder) function(parent NodeID, raw js.INode, name *js.Var, params *js.Params, body *js.BlockStmt, top bool) NodeID {
	id := b.add(KindFunction, parent, raw)
	if name != nil {
		v := resolve(name)
		b.f.nodes[id].Var = v
		b.f.nodes[id].Name = string(name.Name())
		b.f.declOf[v] = id
		if top {
			b.f.topLevel[string(name.Name())] = id
		}
	}
	prev := b.fn
	b.fn = id
	for i := range params.List {
		el := &params.List[i]
		if el.Binding != nil {
			b.binding(id, el.Binding, NoNode, false)
		}
		b.expr(id, el.Default, func(e js.IExpr) { el.Default = e })
	}
	if params.Rest != nil {
		b.binding(id, params.Rest, NoNode, false)
	}
	b.stmtList(id, &body.List, false)
	b.fn = prev
	return id
}

func (b *builder) class(parent NodeID, c *js.ClassDecl, top bool) NodeID {
	id := b.add(KindClass, parent, c)
	if c.Name != nil {
		v := resolve(c.Name)
		b.f.nodes[id].Var = v
		b.f.nodes[id].Name = string(c.Name.Name())
		b.f.declOf[v] = id
		if top {
			b.f.topLevel[string(c.Name.Name())] = id
		}
	}
	b.expr(id, c.Extends, func(e js.IExpr) { c.Extends = e })
	for i := range c.List {
		el := &c.List[i]
		switch {
		case el.StaticBlock != nil:
			b.stmt(id, el.StaticBlock, false)
		case el.Method != nil:
			m := el.Method
			if m.Name.Computed != nil {
				b.expr(id, m.Name.Computed, func(e js.IExpr) { m.Name.Computed = e })
			}
			b.function(id, m, nil, &m.Params, &m.Body, false)
		default:
			if el.Name.Computed != nil {
				b.expr(id, el.Name.Computed, func(e js.IExpr) { el.Name.Computed = e })
			}
			b.expr(id, el.Init, func(e js.IExpr) { el.Init = e })
		}
	}
	return id
}

func (b *builder) expr(parent NodeID, e js.IExpr, set func(js.IExpr)) NodeID {
	if e == nil {
		return NoNode
	}
	var id NodeID
	switch t := e.(type) {
	case *js.Var:
		id = b.add(KindIdentifier, parent, t)
		b.f.nodes[id].Var = resolve(t)
		b.f.nodes[id].Name = string(t.Name())
	case *js.LiteralExpr:
		id = b.add(KindLiteral, parent, t)
		b.f.nodes[id].Name = string(t.Data)
		b.f.nodes[id].Op = t.TokenType
	case js.LiteralExpr:
		id = b.add(KindLiteral, parent, t)
		b.f.nodes[id].Name = string(t.Data)
		b.f.nodes[id].Op = t.TokenType
	case *js.ArrayExpr:
		id = b.add(KindArray, parent, t)
		for i := range t.List {
			el := &t.List[i]
			b.expr(id, el.Value, func(x js.IExpr) { el.Value = x })
		}
	case *js.ObjectExpr:
		id = b.add(KindObject, parent, t)
		for i := range t.List {
			p := &t.List[i]
			if p.Name != nil && p.Name.Computed != nil {
				b.expr(id, p.Name.Computed, func(x js.IExpr) { p.Name.Computed = x })
			}
			b.expr(id, p.Value, func(x js.IExpr) { p.Value = x })
			b.expr(id, p.Init, func(x js.IExpr) { p.Init = x })
		}
	case *js.MethodDecl:
		id = b.function(parent, t, nil, &t.Params, &t.Body, false)
	case *js.TemplateExpr:
		id = b.add(KindTemplate, parent, t)
		b.f.templates = append(b.f.templates, id)
		b.expr(id, t.Tag, func(x js.IExpr) { t.Tag = x })
		for i := range t.List {
			part := &t.List[i]
			b.expr(id, part.Expr, func(x js.IExpr) { part.Expr = x })
		}
	case *js.GroupExpr:
		id = b.add(KindExpr, parent, t)
		b.expr(id, t.X, func(x js.IExpr) { t.X = x })
	case *js.DotExpr:
		id = b.add(KindMember, parent, t)
		switch y := t.Y.(type) {
		case js.LiteralExpr:
			b.f.nodes[id].Name = string(y.Data)
		case *js.LiteralExpr:
			b.f.nodes[id].Name = string(y.Data)
		}
		b.expr(id, t.X, func(x js.IExpr) { t.X = x })
	case *js.IndexExpr:
		id = b.add(KindMember, parent, t)
		if lit, ok := t.Y.(*js.LiteralExpr); ok && lit.TokenType == js.StringToken {
			b.f.nodes[id].Name = unquote(lit.Data)
		}
		b.expr(id, t.X, func(x js.IExpr) { t.X = x })
		b.expr(id, t.Y, func(x js.IExpr) { t.Y = x })
	case *js.NewExpr:
		id = b.add(KindCall, parent, t)
		b.expr(id, t.X, func(x js.IExpr) { t.X = x })
		if t.Args != nil {
			b.args(id, t.Args)
		}
	case *js.CallExpr:
		id = b.add(KindCall, parent, t)
		if callee, ok := t.X.(*js.Var); ok && string(callee.Name()) == "require" && resolve(callee).Decl == js.NoDecl {
			if spec, ok := requireSpecifier(t.Args); ok {
				b.f.nodes[id].Require = spec
				b.f.requires = append(b.f.requires, id)
			} else {
				b.f.nodes[id].dynamic = true
			}
		}
		b.expr(id, t.X, func(x js.IExpr) { t.X = x })
		b.args(id, &t.Args)
	case *js.UnaryExpr:
		kind := KindExpr
		if isUpdate(t.Op) {
			kind = KindAssign
		}
		id = b.add(kind, parent, t)
		b.f.nodes[id].Op = t.Op
		b.expr(id, t.X, func(x js.IExpr) { t.X = x })
	case *js.BinaryExpr:
		kind := KindExpr
		if isAssign(t.Op) {
			kind = KindAssign
		}
		id = b.add(kind, parent, t)
		b.f.nodes[id].Op = t.Op
		b.expr(id, t.X, func(x js.IExpr) { t.X = x })
		b.expr(id, t.Y, func(x js.IExpr) { t.Y = x })
	case *js.CondExpr:
		id = b.add(KindExpr, parent, t)
		b.expr(id, t.Cond, func(x js.IExpr) { t.Cond = x })
		b.expr(id, t.X, func(x js.IExpr) { t.X = x })
		b.expr(id, t.Y, func(x js.IExpr) { t.Y = x })
	case *js.YieldExpr:
		id = b.add(KindExpr, parent, t)
		b.expr(id, t.X, func(x js.IExpr) { t.X = x })
	case *js.ArrowFunc:
		id = b.function(parent, t, nil, &t.Params, &t.Body, false)
	case *js.FuncDecl:
		id = b.function(parent, t, t.Name, &t.Params, &t.Body, false)
	case *js.ClassDecl:
		id = b.class(parent, t, false)
	case *js.CommaExpr:
		id = b.add(KindSequence, parent, t)
		ids := make([]NodeID, len(t.List))
		for i := range t.List {
			cid := b.expr(id, t.List[i], func(x js.IExpr) { t.List[i] = x })
			b.f.nodes[cid].slot = slotSequence
			ids[i] = cid
		}
		f := b.f
		f.containers = append(f.containers, container{owner: id, apply: func() bool {
			out := make([]js.IExpr, 0, len(t.List))
			for i, x := range t.List {
				if !f.removed[ids[i]] {
					out = append(out, x)
				}
			}
			t.List = out
			return false
		}})
	case *js.VarDecl:
		id = b.varDecl(parent, t, false)
	default:
		id = b.add(KindExpr, parent, e)
	}
	b.f.nodes[id].set = set
	return id
}

func (b *builder) args(parent NodeID, a *js.Args) {
	for i := range a.List {
		arg := &a.List[i]
		b.expr(parent, arg.Value, func(x js.IExpr) { arg.Value = x })
	}
}

func (b *builder) importStmt(parent NodeID, s *js.ImportStmt) NodeID {
	id := b.add(KindImport, parent, s)
	src := unquote(s.Module)
	b.f.nodes[id].Spec = &Specifier{Source: src}

	defID := NoNode
	if s.Default != nil {
		local := string(s.Default)
		defID = b.specifier(KindImportSpecifier, id, &Specifier{Source: src, Imported: ir.DefaultExport, Local: local}, local)
		b.f.imports[local] = defID
	}
	ids := make([]NodeID, len(s.List))
	had := defID != NoNode
	for i, a := range s.List {
		ids[i] = NoNode
		if a.Binding == nil {
			continue
		}
		local := string(a.Binding)
		imported := local
		if a.Name != nil {
			imported = unquoteName(a.Name)
		}
		ids[i] = b.specifier(KindImportSpecifier, id, &Specifier{Source: src, Imported: imported, Local: local}, local)
		b.f.imports[local] = ids[i]
		had = true
	}

	f := b.f
	f.containers = append(f.containers, container{owner: id, apply: func() bool {
		if defID != NoNode && f.removed[defID] {
			s.Default = nil
		}
		if s.List != nil {
			out := make([]js.Alias, 0, len(s.List))
			for i, a := range s.List {
				if ids[i] == NoNode || f.removed[ids[i]] {
					continue
				}
				out = append(out, a)
			}
			if len(out) == 0 {
				s.List = nil
			} else {
				s.List = out
			}
		}
		return had && s.Default == nil && s.List == nil
	}})
	return id
}

func (b *builder) exportStmt(parent NodeID, s *js.ExportStmt, top bool) NodeID {
	switch {
	case s.Decl != nil && s.Default:
		id := b.add(KindExportDefault, parent, s)
		b.f.nodes[id].Spec = &Specifier{Exported: ir.DefaultExport}
		b.f.exports[ir.DefaultExport] = id
		switch d := s.Decl.(type) {
		case *js.FuncDecl:
			b.function(id, d, d.Name, &d.Params, &d.Body, top)
		case *js.ClassDecl:
			b.class(id, d, top)
		default:
			b.expr(id, s.Decl, func(x js.IExpr) { s.Decl = x })
		}
		return id
	case s.Decl != nil:
		id := b.add(KindExportDecl, parent, s)
		switch d := s.Decl.(type) {
		case *js.VarDecl:
			vid := b.varDecl(id, d, top)
			for _, did := range b.f.nodes[vid].Children {
				for _, c := range b.f.nodes[did].Children {
					if b.f.nodes[c].Kind == KindBinding {
						b.f.exports[b.f.nodes[c].Name] = did
					}
				}
			}
		case *js.FuncDecl:
			fid := b.function(id, d, d.Name, &d.Params, &d.Body, top)
			if d.Name != nil {
				b.f.exports[string(d.Name.Name())] = fid
			}
		case *js.ClassDecl:
			cid := b.class(id, d, top)
			if d.Name != nil {
				b.f.exports[string(d.Name.Name())] = cid
			}
		default:
			b.expr(id, s.Decl, func(x js.IExpr) { s.Decl = x })
		}
		return id
	case isExportAll(s):
		id := b.add(KindExportAll, parent, s)
		b.f.nodes[id].Spec = &Specifier{Source: unquote(s.Module), Imported: ir.Wildcard}
		b.f.exportAll = append(b.f.exportAll, id)
		return id
	}

	id := b.add(KindExportNamed, parent, s)
	src := ""
	if s.Module != nil {
		src = unquote(s.Module)
	}
	b.f.nodes[id].Spec = &Specifier{Source: src}
	ids := make([]NodeID, len(s.List))
	had := false
	for i, a := range s.List {
		ids[i] = NoNode
		if a.Binding == nil {
			continue
		}
		exported := unquoteName(a.Binding)
		local := exported
		if a.Name != nil {
			local = unquoteName(a.Name)
		}
		spec := &Specifier{Source: src, Exported: exported}
		if src != "" {
			spec.Imported = local
		} else {
			spec.Local = local
		}
		ids[i] = b.specifier(KindExportSpecifier, id, spec, exported)
		b.f.exports[exported] = ids[i]
		had = true
	}

	f := b.f
	f.containers = append(f.containers, container{owner: id, apply: func() bool {
		out := make([]js.Alias, 0, len(s.List))
		for i, a := range s.List {
			if ids[i] == NoNode || f.removed[ids[i]] {
				continue
			}
			out = append(out, a)
		}
		s.List = out
		return had && len(out) == 0
	}})
	return id
}

func (b *builder) specifier(kind Kind, parent NodeID, spec *Specifier, name string) NodeID {
	id := b.add(kind, parent, nil)
	n := &b.f.nodes[id]
	n.Spec = spec
	n.Name = name
	n.slot = slotSpecifier
	return id
}

// commonJSExport records `exports.a = exports.b = value` statements as
// export definitions.
func (b *builder) commonJSExport(id NodeID, s *js.ExprStmt) {
	var names []string
	e := s.Value
	for {
		bin, ok := e.(*js.BinaryExpr)
		if !ok || bin.Op != js.EqToken {
			break
		}
		name, ok := exportsTarget(bin.X)
		if !ok {
			break
		}
		names = append(names, name)
		e = bin.Y
	}
	if len(names) == 0 {
		return
	}
	b.f.cjsChains[id] = names
	for _, n := range names {
		b.f.exports[n] = id
	}
}

func exportsTarget(x js.IExpr) (string, bool) {
	var obj js.IExpr
	var name string
	switch t := x.(type) {
	case *js.DotExpr:
		lit, ok := t.Y.(js.LiteralExpr)
		if !ok {
			return "", false
		}
		obj, name = t.X, string(lit.Data)
	case *js.IndexExpr:
		lit, ok := t.Y.(*js.LiteralExpr)
		if !ok || lit.TokenType != js.StringToken {
			return "", false
		}
		obj, name = t.X, unquote(lit.Data)
	default:
		return "", false
	}
	if isGlobal(obj, "exports") {
		return name, true
	}
	if dot, ok := obj.(*js.DotExpr); ok && isGlobal(dot.X, "module") {
		if lit, ok := dot.Y.(js.LiteralExpr); ok && string(lit.Data) == "exports" {
			return name, true
		}
	}
	return "", false
}

func isGlobal(e js.IExpr, name string) bool {
	v, ok := e.(*js.Var)
	return ok && string(v.Name()) == name && resolve(v).Decl == js.NoDecl
}

func isExportAll(s *js.ExportStmt) bool {
	return s.Decl == nil && len(s.List) == 1 && s.List[0].Name == nil && string(s.List[0].Binding) == "*"
}

func requireSpecifier(a js.Args) (string, bool) {
	if len(a.List) != 1 || a.List[0].Rest {
		return "", false
	}
	lit, ok := a.List[0].Value.(*js.LiteralExpr)
	if !ok || lit.TokenType != js.StringToken {
		return "", false
	}
	return unquote(lit.Data), true
}

func isUpdate(op js.TokenType) bool {
	switch op {
	case js.PreIncrToken, js.PreDecrToken, js.PostIncrToken, js.PostDecrToken, js.DeleteToken:
		return true
	}
	return false
}

func isAssign(op js.TokenType) bool {
	switch op {
	case js.EqToken, js.AddEqToken, js.SubEqToken, js.MulEqToken, js.ExpEqToken, js.DivEqToken,
		js.ModEqToken, js.LtLtEqToken, js.GtGtEqToken, js.GtGtGtEqToken, js.BitAndEqToken,
		js.BitOrEqToken, js.BitXorEqToken, js.AndEqToken, js.OrEqToken, js.NullishEqToken:
		return true
	}
	return false
}

// unquote strips the quotes of a string literal and resolves the escapes
// that occur in module specifiers.
func unquote(b []byte) string {
	if len(b) < 2 || (b[0] != '"' && b[0] != '\'') {
		return string(b)
	}
	inner := b[1 : len(b)-1]
	if !bytes.ContainsRune(inner, '\\') {
		return string(inner)
	}
	r := strings.NewReplacer(`\\`, `\`, `\'`, `'`, `\"`, `"`, `\n`, "\n", `\t`, "\t")
	return r.Replace(string(inner))
}

func unquoteName(b []byte) string {
	if len(b) > 0 && (b[0] == '"' || b[0] == '\'') {
		return unquote(b)
	}
	return string(b)
}
