package ir

import "sort"

// Location is a position in a source file.
// Line is 1-based, Column is 0-based, matching source map conventions.
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// IsZero reports whether the location is unknown.
func (l Location) IsZero() bool {
	return l.Line == 0
}

// TransformResult is the cached output of shaking one file for an export set.
type TransformResult struct {
	// File is the absolute path of the shaken file.
	File string `json:"file"`

	// Only is the export set the code was computed for.
	Only ExportSet `json:"only"`

	// Code is the shaken file as CommonJS, ready for the sandbox.
	Code string `json:"code"`

	// ESM is the shaken file printed as an ES module, for inspection.
	ESM string `json:"esm"`

	// Imports maps each remaining import specifier to the names still used.
	Imports map[string][]string `json:"imports"`

	// ContentHash identifies the source text the result was computed from.
	ContentHash string `json:"content_hash"`

	// HasPreval is set when the code defines the preval export.
	HasPreval bool `json:"has_preval"`

	// Evaluator is the strategy that produced the result.
	Evaluator string `json:"evaluator"`
}

// Specifiers returns the import specifiers in sorted order.
func (r *TransformResult) Specifiers() []string {
	out := make([]string, 0, len(r.Imports))
	for spec := range r.Imports {
		out = append(out, spec)
	}
	sort.Strings(out)
	return out
}

// IsEmpty reports whether shaking left nothing to evaluate.
func (r *TransformResult) IsEmpty() bool {
	return r == nil || r.Code == ""
}

// Rule is one extracted CSS rule.
type Rule struct {
	Selector    string   `json:"selector"`
	ClassName   string   `json:"class_name"`
	DisplayName string   `json:"display_name"`
	CSSText     string   `json:"css_text"`
	File        string   `json:"file"`
	Start       Location `json:"start"`
}

// Replacement maps an extracted class back to the template it replaced.
type Replacement struct {
	ClassName string   `json:"class_name"`
	Start     Location `json:"start"`
	End       Location `json:"end"`
	Length    int      `json:"length"`
}
