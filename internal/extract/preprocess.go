package extract

import (
	"fmt"
	"strings"

	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
)

// Preprocessor turns one rule body into stylesheet text.
type Preprocessor interface {
	Preprocess(selector, body string) (string, error)
}

// Preprocessor names accepted by NewPreprocessor.
const (
	PreprocessorNone    = "none"
	PreprocessorDouceur = "douceur"
)

// NewPreprocessor returns the preprocessor registered under name. An empty
// name selects douceur.
func NewPreprocessor(name string) (Preprocessor, error) {
	switch name {
	case PreprocessorNone:
		return None{}, nil
	case PreprocessorDouceur, "":
		return Douceur{}, nil
	default:
		return nil, fmt.Errorf("unknown preprocessor %q", name)
	}
}

// None wraps the body in the selector without looking at it.
type None struct{}

func (None) Preprocess(selector, body string) (string, error) {
	return selector + " {" + body + "}", nil
}

// Douceur flattens nested blocks and reformats the result with douceur.
//
// Nested blocks are expanded against the rule selector: "&" is replaced by
// it, a prelude without "&" becomes a descendant selector and at-rules
// (@media, @supports) wrap the rule.
type Douceur struct{}

func (Douceur) Preprocess(selector, body string) (string, error) {
	var sb strings.Builder
	if err := flatten(&sb, selector, "", stripComments(body)); err != nil {
		return "", err
	}
	sheet, err := parser.Parse(sb.String())
	if err != nil {
		return "", fmt.Errorf("%s: %w", selector, err)
	}
	dropEmpty(sheet)
	return sheet.String(), nil
}

// flatten writes the declarations of body under selector, followed by its
// nested blocks. wrap is the enclosing at-rule prelude, if any.
func flatten(sb *strings.Builder, selector, wrap, body string) error {
	decls, blocks, err := split(body)
	if err != nil {
		return fmt.Errorf("%s: %w", selector, err)
	}
	if len(decls) > 0 {
		openWrap(sb, wrap)
		sb.WriteString(selector + " {\n")
		for _, d := range decls {
			sb.WriteString(d + ";\n")
		}
		sb.WriteString("}\n")
		closeWrap(sb, wrap)
	}
	for _, b := range blocks {
		switch {
		case strings.HasPrefix(b.prelude, "@"):
			if wrap != "" {
				return fmt.Errorf("%s: nested at-rule %s inside %s", selector, b.prelude, wrap)
			}
			if err := flatten(sb, selector, b.prelude, b.body); err != nil {
				return err
			}
		default:
			if err := flatten(sb, nest(selector, b.prelude), wrap, b.body); err != nil {
				return err
			}
		}
	}
	return nil
}

func openWrap(sb *strings.Builder, wrap string) {
	if wrap != "" {
		sb.WriteString(wrap + " {\n")
	}
}

func closeWrap(sb *strings.Builder, wrap string) {
	if wrap != "" {
		sb.WriteString("}\n")
	}
}

// nest combines parent with each selector of a nested prelude.
func nest(parent, prelude string) string {
	parts := strings.Split(prelude, ",")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if strings.Contains(p, "&") {
			parts[i] = strings.ReplaceAll(p, "&", parent)
		} else {
			parts[i] = parent + " " + p
		}
	}
	return strings.Join(parts, ", ")
}

type block struct {
	prelude string
	body    string
}

// split separates the top-level declarations of body from its nested
// blocks. Quotes and parentheses are respected.
func split(body string) ([]string, []block, error) {
	var (
		decls  []string
		blocks []block
		start  int
		depth  int
		parens int
		quote  byte
		brace  int
	)
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(':
			parens++
		case c == ')':
			parens--
		case parens > 0:
		case c == '{':
			if depth == 0 {
				brace = i
			}
			depth++
		case c == '}':
			depth--
			if depth < 0 {
				return nil, nil, fmt.Errorf("unexpected } at offset %d", i)
			}
			if depth == 0 {
				blocks = append(blocks, block{
					prelude: strings.TrimSpace(body[start:brace]),
					body:    body[brace+1 : i],
				})
				start = i + 1
			}
		case c == ';' && depth == 0:
			if d := strings.TrimSpace(body[start:i]); d != "" {
				decls = append(decls, d)
			}
			start = i + 1
		}
	}
	if depth != 0 {
		return nil, nil, fmt.Errorf("unclosed block")
	}
	if d := strings.TrimSpace(body[start:]); d != "" {
		decls = append(decls, d)
	}
	return decls, blocks, nil
}

func stripComments(s string) string {
	for {
		i := strings.Index(s, "/*")
		if i < 0 {
			return s
		}
		j := strings.Index(s[i+2:], "*/")
		if j < 0 {
			return s[:i]
		}
		s = s[:i] + s[i+2+j+2:]
	}
}

func dropEmpty(sheet *css.Stylesheet) {
	rules := sheet.Rules[:0]
	for _, r := range sheet.Rules {
		if len(r.Declarations) > 0 || len(r.Rules) > 0 {
			rules = append(rules, r)
		}
	}
	sheet.Rules = rules
}
