package processor

import (
	"fmt"
	"strings"

	"github.com/roach88/bakecss/internal/ir"
)

// ToCSS converts an evaluated interpolation into CSS text. Strings and
// numbers are inserted verbatim, objects become declaration blocks, style
// references become class selectors, and null, undefined and booleans
// produce nothing.
func ToCSS(v ir.Value) (string, error) {
	switch val := v.(type) {
	case nil, ir.Null, ir.Bool:
		return "", nil
	case ir.String:
		return string(val), nil
	case ir.Number:
		return ir.FormatNumber(float64(val)), nil
	case ir.StyleRef:
		return "." + val.ClassName, nil
	case ir.Array:
		var sb strings.Builder
		for i, el := range val {
			s, err := ToCSS(el)
			if err != nil {
				return "", fmt.Errorf("[%d]: %w", i, err)
			}
			sb.WriteString(s)
		}
		return sb.String(), nil
	case ir.Object:
		var sb strings.Builder
		if err := writeObject(&sb, val); err != nil {
			return "", err
		}
		return sb.String(), nil
	case ir.Function:
		return "", fmt.Errorf("function %q has no static value", val.Name)
	default:
		return "", fmt.Errorf("unsupported value %T", v)
	}
}

func writeObject(sb *strings.Builder, obj ir.Object) error {
	for _, p := range obj {
		switch val := p.Value.(type) {
		case ir.Object:
			sb.WriteString(p.Key + " { ")
			if err := writeObject(sb, val); err != nil {
				return fmt.Errorf("%s: %w", p.Key, err)
			}
			sb.WriteString("} ")
		case nil, ir.Null, ir.Bool:
		case ir.Function:
			return fmt.Errorf("%s: function %q has no static value", p.Key, val.Name)
		default:
			prop := Kebab(p.Key)
			s, err := ToCSS(val)
			if err != nil {
				return fmt.Errorf("%s: %w", p.Key, err)
			}
			sb.WriteString(prop + ": " + s + "; ")
		}
	}
	return nil
}

// Kebab converts a camelCase property name to its CSS form. Vendor
// prefixes written as WebkitX or msX gain a leading dash.
func Kebab(name string) string {
	if strings.HasPrefix(name, "--") {
		return name
	}
	var sb strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 || isVendor(name) {
				sb.WriteByte('-')
			}
			sb.WriteRune(r + ('a' - 'A'))
			continue
		}
		sb.WriteRune(r)
	}
	out := sb.String()
	if strings.HasPrefix(out, "ms-") {
		out = "-" + out
	}
	return out
}

func isVendor(name string) bool {
	for _, p := range []string{"Webkit", "Moz", "O"} {
		if strings.HasPrefix(name, p) && len(name) > len(p) && name[len(p)] >= 'A' && name[len(p)] <= 'Z' {
			return true
		}
	}
	return false
}
