package jsast

import (
	"fmt"

	"github.com/tdewolff/parse/v2/js"
)

// Remove marks a list entry for deletion: a statement, declarator, import or
// export specifier, or sequence element. Marks on other nodes are ignored by
// Apply.
func (f *File) Remove(id NodeID) {
	f.removed[id] = true
}

// IsRemoved reports whether id is marked for deletion.
func (f *File) IsRemoved(id NodeID) bool {
	return f.removed[id]
}

// Replace overwrites the expression slot holding id. The AST changes
// immediately; the arena still describes the old tree until Reindex.
func (f *File) Replace(id NodeID, e js.IExpr) error {
	n := &f.nodes[id]
	if n.set == nil {
		return fmt.Errorf("%s: node %d (%s) is not in an expression slot", f.Name, id, n.Kind)
	}
	n.set(e)
	return nil
}

// ReplaceStmt substitutes stmts for the statement id when Apply runs. An
// empty stmts removes the statement.
func (f *File) ReplaceStmt(id NodeID, stmts ...js.IStmt) error {
	n := &f.nodes[id]
	if n.slot != slotStmt {
		return fmt.Errorf("%s: node %d (%s) is not a statement list entry", f.Name, id, n.Kind)
	}
	if len(stmts) == 0 {
		f.removed[id] = true
		return nil
	}
	f.splices[id] = stmts
	return nil
}

// AppendStmt adds statements at the end of the program. Call Reindex to see
// them in the arena.
func (f *File) AppendStmt(stmts ...js.IStmt) {
	f.AST.BlockStmt.List = append(f.AST.BlockStmt.List, stmts...)
}

// Apply writes every pending removal and statement splice into the AST and
// reindexes. Lists that become empty take their owning statement with them:
// a declaration without declarators, an import or export without
// specifiers. It returns the number of entries removed.
func (f *File) Apply() int {
	removed := 0
	for id := range f.removed {
		if f.nodes[id].slot != slotNone {
			removed++
		}
	}
	for _, c := range f.containers {
		if c.apply() && !f.removed[c.owner] {
			f.removed[c.owner] = true
			removed++
		}
	}
	f.Reindex()
	return removed
}
