package shaker

import (
	"github.com/roach88/bakecss/internal/jsast"
)

// Graph holds "requires" edges over one file's arena: an edge a→b means
// keeping a requires keeping b. It never refers to nodes of another file.
type Graph struct {
	file     *jsast.File
	requires [][]jsast.NodeID
}

type edgeRule func(g *Graph, n *jsast.Node)

// edgeRules has one entry per node kind.
var edgeRules = map[jsast.Kind]edgeRule{
	jsast.KindProgram:         noEdges,
	jsast.KindImport:          noEdges,
	jsast.KindImportSpecifier: noEdges,
	jsast.KindExportNamed:     noEdges,
	jsast.KindExportSpecifier: exportSpecifierEdges,
	jsast.KindExportAll:       noEdges,
	jsast.KindExportDecl:      noEdges,
	jsast.KindExportDefault:   allChildren,
	jsast.KindVarDecl:         noEdges,
	jsast.KindDeclarator:      allChildren,
	jsast.KindFunction:        functionEdges,
	jsast.KindClass:           allChildren,
	jsast.KindBlock:           allChildren,
	jsast.KindExprStmt:        allChildren,
	jsast.KindIf:              allChildren,
	jsast.KindLoop:            allChildren,
	jsast.KindSwitch:          allChildren,
	jsast.KindTry:             allChildren,
	jsast.KindReturn:          controlFlowEdges,
	jsast.KindThrow:           controlFlowEdges,
	jsast.KindBranch:          controlFlowEdges,
	jsast.KindLabelled:        allChildren,
	jsast.KindOtherStmt:       allChildren,
	jsast.KindBinding:         noEdges,
	jsast.KindIdentifier:      identifierEdges,
	jsast.KindCall:            allChildren,
	jsast.KindMember:          allChildren,
	jsast.KindAssign:          assignEdges,
	jsast.KindSequence:        sequenceEdges,
	jsast.KindTemplate:        allChildren,
	jsast.KindObject:          allChildren,
	jsast.KindArray:           allChildren,
	jsast.KindLiteral:         noEdges,
	jsast.KindExpr:            allChildren,
}

// BuildGraph traverses f once and collects its edges.
func BuildGraph(f *jsast.File) *Graph {
	g := &Graph{file: f, requires: make([][]jsast.NodeID, f.Len())}
	f.Walk(f.Program(), func(n *jsast.Node) bool {
		edgeRules[n.Kind](g, n)
		return true
	})
	return g
}

func (g *Graph) edge(from, to jsast.NodeID) {
	if from == jsast.NoNode || to == jsast.NoNode || from == to {
		return
	}
	g.requires[from] = append(g.requires[from], to)
}

// Requires returns the direct dependencies of id.
func (g *Graph) Requires(id jsast.NodeID) []jsast.NodeID {
	return g.requires[id]
}

// Reachable returns the alive set: roots, everything they require, and the
// structural ancestors of every alive node.
func (g *Graph) Reachable(roots []jsast.NodeID) []bool {
	alive := make([]bool, g.file.Len())
	stack := append([]jsast.NodeID(nil), roots...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == jsast.NoNode || alive[id] {
			continue
		}
		alive[id] = true
		for _, r := range g.requires[id] {
			if !alive[r] {
				stack = append(stack, r)
			}
		}
		if p := g.file.Node(id).Parent; p != jsast.NoNode && !alive[p] {
			stack = append(stack, p)
		}
	}
	return alive
}

func noEdges(*Graph, *jsast.Node) {}

func allChildren(g *Graph, n *jsast.Node) {
	for _, c := range n.Children {
		g.edge(n.ID, c)
	}
}

// A function keeps its parameters and every statement of its body except
// local declarations, which survive only when referenced.
func functionEdges(g *Graph, n *jsast.Node) {
	for _, c := range n.Children {
		child := g.file.Node(c)
		if child.IsStatementEntry() {
			switch child.Kind {
			case jsast.KindVarDecl, jsast.KindFunction, jsast.KindClass:
				continue
			}
		}
		g.edge(n.ID, c)
	}
}

func controlFlowEdges(g *Graph, n *jsast.Node) {
	allChildren(g, n)
	g.edge(n.Fn, n.ID)
}

func identifierEdges(g *Graph, n *jsast.Node) {
	g.edge(n.ID, g.file.Declaration(n.ID))
}

func exportSpecifierEdges(g *Graph, n *jsast.Node) {
	if n.Spec.Source == "" {
		g.edge(n.ID, g.file.LookupLocal(n.Spec.Local))
	}
}

// Only the last element of a sequence is its value. A sequence used as a
// statement runs for its effects, so every element is kept.
func sequenceEdges(g *Graph, n *jsast.Node) {
	if len(n.Children) == 0 {
		return
	}
	if g.file.Node(n.Parent).Kind == jsast.KindExprStmt {
		allChildren(g, n)
		return
	}
	g.edge(n.ID, n.Children[len(n.Children)-1])
}

// A write to a binding, at any depth, is required by the binding's
// declaration: `x = v`, `x++` and `obj.a.b = v` survive whenever x or obj
// does. The whole enclosing statement is kept.
func assignEdges(g *Graph, n *jsast.Node) {
	allChildren(g, n)
	if len(n.Children) == 0 {
		return
	}
	stmt := g.file.Statement(n.ID)
	if stmt == jsast.NoNode {
		return
	}
	for _, id := range g.written(n.Children[0]) {
		g.edge(g.file.Declaration(id), stmt)
	}
}

// written returns the identifiers whose bindings a write to target changes:
// the identifier itself, the object at the root of a member chain, or every
// name of a destructuring pattern.
func (g *Graph) written(target jsast.NodeID) []jsast.NodeID {
	n := g.file.Node(target)
	switch n.Kind {
	case jsast.KindIdentifier:
		return []jsast.NodeID{target}
	case jsast.KindMember:
		root := n
		for root.Kind == jsast.KindMember && len(root.Children) > 0 {
			root = g.file.Node(root.Children[0])
		}
		if root.Kind == jsast.KindIdentifier {
			return []jsast.NodeID{root.ID}
		}
	case jsast.KindAssign:
		// a default inside a pattern: `[a = 1] = list`
		if len(n.Children) > 0 {
			return g.written(n.Children[0])
		}
	case jsast.KindArray, jsast.KindObject, jsast.KindExpr:
		var out []jsast.NodeID
		for _, c := range n.Children {
			out = append(out, g.written(c)...)
		}
		return out
	}
	return nil
}
