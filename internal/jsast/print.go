package jsast

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/js"
)

// PrintESM prints the current AST as an ES module.
func (f *File) PrintESM() string {
	return f.AST.JSString()
}

// PrintExpr prints a detached expression.
func PrintExpr(e js.IExpr) string {
	var sb strings.Builder
	e.JS(&sb)
	return sb.String()
}

// Quote returns s as a double-quoted JavaScript string literal.
func Quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}

// Ident returns a reference to name.
func Ident(name string) *js.Var {
	return &js.Var{Data: []byte(name)}
}

// String returns a string literal.
func String(s string) *js.LiteralExpr {
	return &js.LiteralExpr{TokenType: js.StringToken, Data: []byte(Quote(s))}
}

// Member returns x.name, or x["name"] when name is not an identifier.
func Member(x js.IExpr, name string) js.IExpr {
	if js.AsIdentifierName([]byte(name)) {
		return &js.DotExpr{X: x, Y: js.LiteralExpr{TokenType: js.IdentifierToken, Data: []byte(name)}}
	}
	return &js.IndexExpr{X: x, Y: String(name)}
}

// Call returns callee(args...).
func Call(callee js.IExpr, args ...js.IExpr) *js.CallExpr {
	call := &js.CallExpr{X: callee}
	for _, a := range args {
		call.Args.List = append(call.Args.List, js.Arg{Value: a})
	}
	return call
}

// Prop is one key of an object literal built with Object.
type Prop struct {
	Key   string
	Value js.IExpr
}

// Object returns an object literal with props in order.
func Object(props ...Prop) *js.ObjectExpr {
	obj := &js.ObjectExpr{}
	for _, p := range props {
		name := &js.PropertyName{Literal: js.LiteralExpr{TokenType: js.IdentifierToken, Data: []byte(p.Key)}}
		if !js.AsIdentifierName([]byte(p.Key)) {
			name.Literal = js.LiteralExpr{TokenType: js.StringToken, Data: []byte(Quote(p.Key))}
		}
		obj.List = append(obj.List, js.Property{Name: name, Value: p.Value})
	}
	return obj
}

// Array returns an array literal.
func Array(items ...js.IExpr) *js.ArrayExpr {
	arr := &js.ArrayExpr{}
	for _, it := range items {
		arr.List = append(arr.List, js.Element{Value: it})
	}
	return arr
}

// Thunk wraps expr in a zero-argument arrow function.
func Thunk(expr js.IExpr) *js.ArrowFunc {
	return &js.ArrowFunc{Body: js.BlockStmt{List: []js.IStmt{&js.ReturnStmt{Value: expr}}}}
}

// ConstDecl returns `const name = value`.
func ConstDecl(name string, value js.IExpr) *js.VarDecl {
	return &js.VarDecl{
		TokenType: js.ConstToken,
		List: []js.BindingElement{{
			Binding: &js.Var{Data: []byte(name), Decl: js.LexicalDecl},
			Default: value,
		}},
	}
}

// ExportConst returns `export const name = value`.
func ExportConst(name string, value js.IExpr) *js.ExportStmt {
	return &js.ExportStmt{Decl: ConstDecl(name, value)}
}

// ExportFrom returns `export { names } from module`, where module is the
// quoted specifier as it appeared in the source.
func ExportFrom(module []byte, names []string) *js.ExportStmt {
	stmt := &js.ExportStmt{Module: module}
	for _, n := range names {
		b := []byte(n)
		if !js.AsIdentifierName(b) {
			b = []byte(Quote(n))
		}
		stmt.List = append(stmt.List, js.Alias{Binding: b})
	}
	return stmt
}

// ExprStmt wraps an expression as a statement.
func ExprStmt(e js.IExpr) *js.ExprStmt {
	return &js.ExprStmt{Value: e}
}

// ParseExpr parses a standalone expression. Identifiers in the result are
// not linked to any file's scope.
func ParseExpr(src string) (js.IExpr, error) {
	ast, err := js.Parse(parse.NewInputString("("+src+");"), js.Options{})
	if err != nil {
		return nil, fmt.Errorf("parse expression: %w", err)
	}
	if len(ast.List) != 1 {
		return nil, fmt.Errorf("parse expression: %q is not a single expression", src)
	}
	stmt, ok := ast.List[0].(*js.ExprStmt)
	if !ok {
		return nil, fmt.Errorf("parse expression: %q is not an expression", src)
	}
	if g, ok := stmt.Value.(*js.GroupExpr); ok {
		return g.X, nil
	}
	return stmt.Value, nil
}
