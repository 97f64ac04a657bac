package jsast

import "github.com/tdewolff/parse/v2/js"

// NodeID addresses a node in a File's arena. IDs are stable until the next
// Reindex.
type NodeID int32

// NoNode is the absent node.
const NoNode NodeID = -1

// Specifier describes one module-level import or export binding.
type Specifier struct {
	// Source is the unquoted module specifier, empty for local exports.
	Source string

	// Imported is the name read from Source: an export name, "default" or "*".
	Imported string

	// Local is the binding name inside this file.
	Local string

	// Exported is the name other files see.
	Exported string
}

// Node is one record of the arena.
type Node struct {
	ID       NodeID
	Kind     Kind
	Parent   NodeID
	Fn       NodeID // enclosing function, NoNode at module level
	Children []NodeID

	// Raw is the parser node, nil for synthetic records such as default
	// import specifiers.
	Raw js.INode

	// Var is the resolved variable of Binding and Identifier nodes.
	Var *js.Var

	// Name is the identifier for Binding and Identifier nodes, the property
	// name for Member nodes and the literal text for Literal nodes.
	Name string

	Spec *Specifier
	Op   js.TokenType

	// Require holds the specifier of a require("...") call.
	Require string

	// TopLevel marks statements that sit directly in the program body.
	TopLevel bool

	set     func(js.IExpr)
	slot    slot
	dynamic bool
}

// slot records which kind of removable list a node is an entry of.
type slot uint8

const (
	slotNone slot = iota
	slotStmt
	slotDeclarator
	slotSpecifier
	slotSequence
)

// IsRequire reports whether the node is a require call with a literal
// specifier.
func (n *Node) IsRequire() bool {
	return n.Kind == KindCall && n.Require != ""
}

// IsDynamicRequire reports whether the node is a require call whose
// specifier is not a string literal.
func (n *Node) IsDynamicRequire() bool {
	return n.Kind == KindCall && n.dynamic
}

// Replaceable reports whether the node sits in an expression slot that
// Replace can overwrite.
func (n *Node) Replaceable() bool {
	return n.set != nil
}

// InList reports whether the node is an entry of a removable list.
func (n *Node) InList() bool {
	return n.slot != slotNone
}

// IsStatementEntry reports whether the node is an entry of a statement list.
func (n *Node) IsStatementEntry() bool {
	return n.slot == slotStmt
}

func resolve(v *js.Var) *js.Var {
	for v != nil && v.Link != nil {
		v = v.Link
	}
	return v
}
