package harness

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/bakecss/internal/config"
	"github.com/roach88/bakecss/internal/shaker"
)

// Scenario defines a compilation test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Entry is the absolute virtual path of the file to compile.
	Entry string `yaml:"entry"`

	// Only lists the exports to compile. Empty compiles every export.
	Only []string `yaml:"only,omitempty"`

	// Mode is "sync" (default) or "async".
	Mode string `yaml:"mode,omitempty"`

	// UnknownExport overrides the policy for missing requested exports.
	UnknownExport string `yaml:"unknown_export,omitempty"`

	// Files maps absolute virtual paths to file contents.
	Files map[string]string `yaml:"files"`

	// Include maps absolute virtual paths to files on disk, relative to
	// the scenario file. They are read into Files on load.
	Include map[string]string `yaml:"include,omitempty"`

	// Assertions validate the compile output.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates one aspect of the compile output.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Value is the substring looked for by the *_contains assertions.
	Value string `yaml:"value,omitempty"`

	// File is the virtual path used by shaken_*, dependency and exports.
	File string `yaml:"file,omitempty"`

	// Count is the expected number of rules (rule_count).
	Count int `yaml:"count,omitempty"`

	// Code is the expected build error code (error_code).
	Code string `yaml:"code,omitempty"`

	// Names are the expected export names (exports).
	Names []string `yaml:"names,omitempty"`
}

// Assertion type constants
const (
	AssertCSSContains       = "css_contains"
	AssertCodeContains      = "code_contains"
	AssertCodeNotContains   = "code_not_contains"
	AssertShakenContains    = "shaken_contains"
	AssertShakenNotContains = "shaken_not_contains"
	AssertRuleCount         = "rule_count"
	AssertDependency        = "dependency"
	AssertErrorCode         = "error_code"
	AssertExports           = "exports"
	AssertIdempotent        = "idempotent"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, filepath.Dir(path))
}

// ParseScenario parses scenario YAML. Include paths are resolved relative
// to baseDir.
func ParseScenario(data []byte, baseDir string) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Files == nil {
		scenario.Files = make(map[string]string)
	}
	for virtual, onDisk := range scenario.Include {
		if !filepath.IsAbs(onDisk) {
			onDisk = filepath.Join(baseDir, onDisk)
		}
		content, err := os.ReadFile(onDisk)
		if err != nil {
			return nil, fmt.Errorf("include %s: %w", virtual, err)
		}
		scenario.Files[virtual] = string(content)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Entry == "" {
		return fmt.Errorf("entry is required")
	}
	if !path.IsAbs(s.Entry) {
		return fmt.Errorf("entry must be an absolute path, got %q", s.Entry)
	}
	if _, ok := s.Files[s.Entry]; !ok {
		return fmt.Errorf("entry %s is not among the files", s.Entry)
	}
	for p := range s.Files {
		if !path.IsAbs(p) {
			return fmt.Errorf("file path must be absolute, got %q", p)
		}
	}
	switch config.Mode(s.Mode) {
	case "", config.ModeSync, config.ModeAsync:
	default:
		return fmt.Errorf("mode must be sync or async, got %q", s.Mode)
	}
	if s.UnknownExport != "" && !shaker.Policy(s.UnknownExport).Valid() {
		return fmt.Errorf("unknown_export: invalid policy %q", s.UnknownExport)
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

var assertionTypes = []string{
	AssertCSSContains, AssertCodeContains, AssertCodeNotContains,
	AssertShakenContains, AssertShakenNotContains, AssertRuleCount,
	AssertDependency, AssertErrorCode, AssertExports, AssertIdempotent,
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if !slices.Contains(assertionTypes, a.Type) {
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	switch a.Type {
	case AssertCSSContains, AssertCodeContains, AssertCodeNotContains,
		AssertShakenContains, AssertShakenNotContains:
		if a.Value == "" {
			return fmt.Errorf("assertions[%d]: value is required for %s", index, a.Type)
		}
	case AssertRuleCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for rule_count", index)
		}
	case AssertDependency:
		if a.File == "" {
			return fmt.Errorf("assertions[%d]: file is required for dependency", index)
		}
	case AssertErrorCode:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for error_code", index)
		}
	}
	return nil
}

// wants reports whether the scenario has an assertion of the given type.
func (s *Scenario) wants(assertionType string) bool {
	for _, a := range s.Assertions {
		if a.Type == assertionType {
			return true
		}
	}
	return false
}
