package ir

import (
	"sort"
	"strings"
)

// Reserved export tokens.
const (
	// Wildcard requests every export of a file.
	Wildcard = "*"

	// PrevalExport is the hidden export carrying build-time thunks.
	PrevalExport = "__bakePreval"

	// SideEffectExport requests a file only for its side effects.
	SideEffectExport = "side-effect"

	// DefaultExport is the name of the ES default export.
	DefaultExport = "default"
)

// ExportSet is a sorted, duplicate-free set of export names.
//
// The zero value is the empty set. ExportSet values are never mutated in
// place; every operation returns a new set.
type ExportSet []string

// NewExportSet builds a set from names, dropping empty strings.
func NewExportSet(names ...string) ExportSet {
	if len(names) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(names))
	out := make(ExportSet, 0, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Has reports whether name is a member of the set.
func (s ExportSet) Has(name string) bool {
	i := sort.SearchStrings(s, name)
	return i < len(s) && s[i] == name
}

// IsWildcard reports whether the set requests every export.
func (s ExportSet) IsWildcard() bool {
	return s.Has(Wildcard)
}

// IsEmpty reports whether the set has no members.
func (s ExportSet) IsEmpty() bool {
	return len(s) == 0
}

// Union returns s ∪ o.
func (s ExportSet) Union(o ExportSet) ExportSet {
	if len(o) == 0 {
		return s
	}
	if len(s) == 0 {
		return o
	}
	all := make([]string, 0, len(s)+len(o))
	all = append(all, s...)
	all = append(all, o...)
	return NewExportSet(all...)
}

// Without returns s with names removed.
func (s ExportSet) Without(names ...string) ExportSet {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	out := make(ExportSet, 0, len(s))
	for _, n := range s {
		if !drop[n] {
			out = append(out, n)
		}
	}
	return out
}

// Covers reports whether s satisfies a request for o.
//
// A wildcard covers every request. A wildcard request is covered only by a
// wildcard. The side-effect token is covered by any non-empty set, because
// every shaken file keeps its side effects.
func (s ExportSet) Covers(o ExportSet) bool {
	if s.IsWildcard() {
		return true
	}
	if o.IsWildcard() {
		return false
	}
	for _, n := range o {
		if n == SideEffectExport && len(s) > 0 {
			continue
		}
		if !s.Has(n) {
			return false
		}
	}
	return true
}

// Equal reports whether both sets have the same members.
func (s ExportSet) Equal(o ExportSet) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// Names returns a copy of the members.
func (s ExportSet) Names() []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// Key returns a stable string form usable as a map key.
func (s ExportSet) Key() string {
	return strings.Join(s, ",")
}

func (s ExportSet) String() string {
	return "[" + s.Key() + "]"
}
