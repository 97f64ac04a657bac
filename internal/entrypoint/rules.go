package entrypoint

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Action is what a rule decides for a file.
type Action string

const (
	// ActionShaker processes the file and keeps only the requested exports.
	ActionShaker Action = "shaker"

	// ActionPassthrough processes the file without removing any code.
	ActionPassthrough Action = "passthrough"

	// ActionIgnore leaves the file out of the pipeline. The sandbox loads
	// it as written.
	ActionIgnore Action = "ignore"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionShaker, ActionPassthrough, ActionIgnore:
		return true
	}
	return false
}

// Test selects the files a rule applies to. An empty Test matches every
// file. When several fields are set, all of them must match.
type Test struct {
	// Regex is matched against the file name.
	Regex string `yaml:"regex,omitempty" json:"regex,omitempty"`

	// Ext lists file extensions, with the leading dot.
	Ext []string `yaml:"ext,omitempty" json:"ext,omitempty"`

	// Contains is a substring the code must contain.
	Contains string `yaml:"contains,omitempty" json:"contains,omitempty"`
}

// Rule pairs a Test with the Action applied to matching files.
type Rule struct {
	Test   Test   `yaml:"test,omitempty" json:"test,omitempty"`
	Action Action `yaml:"action" json:"action"`
}

// Rules is an ordered rule list. Later rules take precedence.
type Rules []Rule

// DefaultRules shakes every file except installed packages, which are
// loaded as written.
func DefaultRules() Rules {
	return Rules{
		{Action: ActionShaker},
		{Test: Test{Regex: `[\\/]node_modules[\\/]`}, Action: ActionIgnore},
	}
}

// Compile validates the rules and prepares their patterns.
func (rs Rules) Compile() (*Matcher, error) {
	m := &Matcher{rules: rs, patterns: make([]*regexp.Regexp, len(rs))}
	for i, r := range rs {
		if !r.Action.Valid() {
			return nil, fmt.Errorf("rule %d: unknown action %q", i, r.Action)
		}
		if r.Test.Regex == "" {
			continue
		}
		re, err := regexp.Compile(r.Test.Regex)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		m.patterns[i] = re
	}
	return m, nil
}

// Matcher evaluates compiled rules.
type Matcher struct {
	rules    Rules
	patterns []*regexp.Regexp
}

// Match returns the action of the last rule that matches the file. Files
// no rule matches are shaken.
func (m *Matcher) Match(name, code string) Action {
	for i := len(m.rules) - 1; i >= 0; i-- {
		if m.matches(i, name, code) {
			return m.rules[i].Action
		}
	}
	return ActionShaker
}

func (m *Matcher) matches(i int, name, code string) bool {
	t := m.rules[i].Test
	if re := m.patterns[i]; re != nil && !re.MatchString(name) {
		return false
	}
	if len(t.Ext) > 0 {
		ext := filepath.Ext(name)
		found := false
		for _, e := range t.Ext {
			if e == ext {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if t.Contains != "" && !strings.Contains(code, t.Contains) {
		return false
	}
	return true
}
