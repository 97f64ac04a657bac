// Package extract builds the stylesheet of a compiled file from its
// collected rules.
package extract

import (
	"path"
	"sort"
	"strings"

	"github.com/roach88/bakecss/internal/ir"
)

// Input is what extraction needs from the earlier stages.
type Input struct {
	// File is the compiled file; it is the single source of the map.
	File string
	// Source is its original text, embedded as sourcesContent.
	Source string
	// CSSFile names the generated stylesheet in the map.
	CSSFile      string
	Rules        []ir.Rule
	Dependencies []string
}

// Output is the stylesheet and its metadata.
type Output struct {
	CSSText      string
	SourceMap    string
	Rules        []ir.Rule
	Dependencies []string
}

// Extract dedupes rules by selector, runs each through pp and joins them
// into a stylesheet with a source map pointing at each rule's template.
//
// A duplicate selector keeps the position of its first occurrence and the
// text of its last.
func Extract(in Input, pp Preprocessor) (*Output, error) {
	if pp == nil {
		pp = Douceur{}
	}
	rules := dedupe(in.Rules)

	var (
		sb       strings.Builder
		mappings []mapping
		line     int
	)
	for _, r := range rules {
		text, err := pp.Preprocess(r.Selector, r.CSSText)
		if err != nil {
			return nil, err
		}
		text = strings.TrimRight(text, "\n")
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
			line++
		}
		sb.WriteString(text)
		for i := 0; i <= strings.Count(text, "\n"); i++ {
			mappings = append(mappings, mapping{
				genLine: line + i,
				srcLine: max(r.Start.Line-1, 0),
				srcCol:  r.Start.Column,
			})
		}
		line += strings.Count(text, "\n")
	}

	out := &Output{
		CSSText:      sb.String(),
		Rules:        rules,
		Dependencies: dependencies(in.File, in.Dependencies),
	}
	if out.CSSText != "" {
		out.CSSText += "\n"
		sm := &SourceMap{
			Version:  3,
			File:     cssFile(in),
			Sources:  []string{in.File},
			Names:    []string{},
			Mappings: encodeMappings(mappings),
		}
		if in.Source != "" {
			sm.SourcesContent = []string{in.Source}
		}
		out.SourceMap = sm.String()
	}
	return out, nil
}

func dedupe(rules []ir.Rule) []ir.Rule {
	index := make(map[string]int, len(rules))
	out := make([]ir.Rule, 0, len(rules))
	for _, r := range rules {
		if i, ok := index[r.Selector]; ok {
			start := out[i].Start
			out[i] = r
			out[i].Start = start
			continue
		}
		index[r.Selector] = len(out)
		out = append(out, r)
	}
	return out
}

// dependencies returns deps sorted and deduplicated, without the root.
func dependencies(root string, deps []string) []string {
	seen := map[string]bool{root: true}
	out := []string{}
	for _, d := range deps {
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func cssFile(in Input) string {
	if in.CSSFile != "" {
		return in.CSSFile
	}
	return strings.TrimSuffix(path.Base(in.File), path.Ext(in.File)) + ".css"
}
