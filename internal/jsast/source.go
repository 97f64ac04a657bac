package jsast

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tdewolff/parse/v2/js"

	"github.com/roach88/bakecss/internal/ir"
)

// Span is a byte range of the original source.
type Span struct {
	Start, End int
}

// The parser does not keep offsets, so template spans are recovered by
// searching the raw template text forward from the previous match.
// Templates are visited in source order, which keeps the search monotone.
func (f *File) locateTemplates() {
	f.spans = make(map[NodeID]Span, len(f.templates))
	cursor := 0
	for _, id := range f.templates {
		t, ok := f.nodes[id].Raw.(*js.TemplateExpr)
		if !ok {
			continue
		}
		parts := make([]string, 0, len(t.List)+1)
		for _, p := range t.List {
			parts = append(parts, string(p.Value))
		}
		parts = append(parts, string(t.Tail))

		idx := strings.Index(f.Source[cursor:], parts[0])
		if idx < 0 {
			continue
		}
		start := cursor + idx
		end := start + len(parts[0])
		for _, p := range parts[1:] {
			j := strings.Index(f.Source[end:], p)
			if j < 0 {
				break
			}
			end += j + len(p)
		}
		f.spans[id] = Span{Start: start, End: end}
		cursor = start + 1
	}
}

// TemplateSpan returns the source range of a template literal, from the
// opening backtick to the closing one. It is only available on a freshly
// parsed file.
func (f *File) TemplateSpan(id NodeID) (Span, bool) {
	s, ok := f.spans[id]
	return s, ok
}

// Location converts a byte offset into a line and column.
func (f *File) Location(offset int) ir.Location {
	if offset > len(f.Source) {
		offset = len(f.Source)
	}
	prefix := f.Source[:offset]
	line := strings.Count(prefix, "\n") + 1
	lineStart := strings.LastIndexByte(prefix, '\n') + 1
	return ir.Location{Line: line, Column: utf8.RuneCountInString(prefix[lineStart:])}
}

// Frame renders the source lines around loc with a caret under the column.
func (f *File) Frame(loc ir.Location) string {
	if loc.IsZero() {
		return ""
	}
	lines := strings.Split(f.Source, "\n")
	var sb strings.Builder
	from, to := loc.Line-2, loc.Line+1
	if from < 1 {
		from = 1
	}
	if to > len(lines) {
		to = len(lines)
	}
	width := len(strconv.Itoa(to))
	for i := from; i <= to; i++ {
		marker := "  "
		if i == loc.Line {
			marker = "> "
		}
		num := strconv.Itoa(i)
		sb.WriteString(marker + strings.Repeat(" ", width-len(num)) + num + " | " + lines[i-1] + "\n")
		if i == loc.Line {
			sb.WriteString("  " + strings.Repeat(" ", width) + " | " + strings.Repeat(" ", loc.Column) + "^\n")
		}
	}
	return sb.String()
}
