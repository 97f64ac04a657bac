package jsast

// Kind classifies arena nodes. The set is closed: every parser node maps to
// exactly one Kind, and tables keyed by Kind can be checked for completeness
// against KindCount.
type Kind uint8

const (
	KindProgram Kind = iota
	KindImport
	KindImportSpecifier
	KindExportNamed
	KindExportSpecifier
	KindExportAll
	KindExportDecl
	KindExportDefault
	KindVarDecl
	KindDeclarator
	KindFunction
	KindClass
	KindBlock
	KindExprStmt
	KindIf
	KindLoop
	KindSwitch
	KindTry
	KindReturn
	KindThrow
	KindBranch
	KindLabelled
	KindOtherStmt
	KindBinding
	KindIdentifier
	KindCall
	KindMember
	KindAssign
	KindSequence
	KindTemplate
	KindObject
	KindArray
	KindLiteral
	KindExpr

	// KindCount is the number of kinds.
	KindCount
)

var kindNames = [KindCount]string{
	KindProgram:         "Program",
	KindImport:          "Import",
	KindImportSpecifier: "ImportSpecifier",
	KindExportNamed:     "ExportNamed",
	KindExportSpecifier: "ExportSpecifier",
	KindExportAll:       "ExportAll",
	KindExportDecl:      "ExportDecl",
	KindExportDefault:   "ExportDefault",
	KindVarDecl:         "VarDecl",
	KindDeclarator:      "Declarator",
	KindFunction:        "Function",
	KindClass:           "Class",
	KindBlock:           "Block",
	KindExprStmt:        "ExprStmt",
	KindIf:              "If",
	KindLoop:            "Loop",
	KindSwitch:          "Switch",
	KindTry:             "Try",
	KindReturn:          "Return",
	KindThrow:           "Throw",
	KindBranch:          "Branch",
	KindLabelled:        "Labelled",
	KindOtherStmt:       "OtherStmt",
	KindBinding:         "Binding",
	KindIdentifier:      "Identifier",
	KindCall:            "Call",
	KindMember:          "Member",
	KindAssign:          "Assign",
	KindSequence:        "Sequence",
	KindTemplate:        "Template",
	KindObject:          "Object",
	KindArray:           "Array",
	KindLiteral:         "Literal",
	KindExpr:            "Expr",
}

func (k Kind) String() string {
	if k < KindCount {
		return kindNames[k]
	}
	return "Kind(?)"
}

// IsStatement reports whether nodes of this kind occupy a statement slot.
func (k Kind) IsStatement() bool {
	switch k {
	case KindImport, KindExportNamed, KindExportAll, KindExportDecl, KindExportDefault,
		KindVarDecl, KindBlock, KindExprStmt, KindIf, KindLoop, KindSwitch, KindTry,
		KindReturn, KindThrow, KindBranch, KindLabelled, KindOtherStmt:
		return true
	}
	return false
}

// IsControlFlow reports whether the kind transfers control out of its block.
func (k Kind) IsControlFlow() bool {
	return k == KindReturn || k == KindThrow || k == KindBranch
}
