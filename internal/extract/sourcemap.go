package extract

import (
	"encoding/json"
	"strings"
)

// SourceMap is a version 3 source map.
type SourceMap struct {
	Version        int      `json:"version"`
	File           string   `json:"file,omitempty"`
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent,omitempty"`
	Names          []string `json:"names"`
	Mappings       string   `json:"mappings"`
}

// mapping ties a generated line to a source position. Lines are 0-based
// here; ir.Location lines are converted by the caller.
type mapping struct {
	genLine int
	srcLine int
	srcCol  int
}

// encodeMappings builds the mappings string for a single source. Every
// mapping starts at generated column 0.
func encodeMappings(ms []mapping) string {
	var sb strings.Builder
	line := 0
	prevSrcLine, prevSrcCol := 0, 0
	for i, m := range ms {
		for line < m.genLine {
			sb.WriteByte(';')
			line++
		}
		if i > 0 && ms[i-1].genLine == m.genLine {
			continue
		}
		writeVLQ(&sb, 0)
		writeVLQ(&sb, 0)
		writeVLQ(&sb, m.srcLine-prevSrcLine)
		writeVLQ(&sb, m.srcCol-prevSrcCol)
		prevSrcLine, prevSrcCol = m.srcLine, m.srcCol
	}
	return sb.String()
}

const base64Digits = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// writeVLQ appends n as a base64 VLQ: sign in the lowest bit, five bits
// per digit, continuation in bit six.
func writeVLQ(sb *strings.Builder, n int) {
	v := n << 1
	if n < 0 {
		v = (-n << 1) | 1
	}
	for {
		digit := v & 0x1f
		v >>= 5
		if v > 0 {
			digit |= 0x20
		}
		sb.WriteByte(base64Digits[digit])
		if v == 0 {
			return
		}
	}
}

func (m *SourceMap) String() string {
	data, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(data)
}
