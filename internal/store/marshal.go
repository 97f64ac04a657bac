package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/bakecss/internal/ir"
)

// marshalResult converts a TransformResult to canonical JSON TEXT.
func marshalResult(r *ir.TransformResult) (string, error) {
	imports := r.Imports
	if imports == nil {
		imports = map[string][]string{}
	}
	only := r.Only
	if only == nil {
		only = ir.ExportSet{}
	}
	data, err := ir.MarshalCanonical(map[string]any{
		"file":         r.File,
		"only":         only,
		"code":         r.Code,
		"esm":          r.ESM,
		"imports":      imports,
		"content_hash": r.ContentHash,
		"has_preval":   r.HasPreval,
		"evaluator":    r.Evaluator,
	})
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	return string(data), nil
}

// unmarshalResult parses TEXT written by marshalResult.
func unmarshalResult(data string) (*ir.TransformResult, error) {
	var r ir.TransformResult
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	if r.Imports == nil {
		r.Imports = map[string][]string{}
	}
	return &r, nil
}
