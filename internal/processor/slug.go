package processor

import (
	"strconv"
	"strings"

	"github.com/roach88/bakecss/internal/ir"
)

const hashLength = 8

// ClassName expands a slug template for one template of file.
func ClassName(slug, file, displayName string, index int) (string, error) {
	hash, err := ir.SlugHash(file, displayName, index)
	if err != nil {
		return "", err
	}
	r := strings.NewReplacer(
		"[title]", sanitize(displayName),
		"[hash]", hash[:hashLength],
		"[file]", sanitize(fileTitle(file)),
		"[index]", strconv.Itoa(index),
	)
	name := r.Replace(slug)
	if name == "" || (name[0] >= '0' && name[0] <= '9') || name[0] == '-' {
		name = "_" + name
	}
	return name, nil
}

// sanitize keeps characters that are valid in a class name without escaping.
func sanitize(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}
