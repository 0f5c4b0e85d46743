package table

import (
	"fmt"
	"strings"

	"github.com/aymerick/douceur/parser"
)

// normalizeStyle parses inline CSS declarations and prints them back in a
// canonical "prop: value" form.
func normalizeStyle(style string) (string, error) {
	style = strings.TrimSpace(style)
	if style == "" {
		return "", nil
	}
	decls, err := parser.ParseDeclarations(style)
	if err != nil {
		return "", fmt.Errorf("table style %q: %w", style, err)
	}
	parts := make([]string, 0, len(decls))
	for _, d := range decls {
		if d == nil {
			continue
		}
		prop := strings.ToLower(strings.TrimSpace(d.Property))
		val := strings.TrimSpace(d.Value)
		if prop == "" || val == "" {
			continue
		}
		if d.Important {
			val += " !important"
		}
		parts = append(parts, prop+": "+val)
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("table style %q: no declarations", style)
	}
	return strings.Join(parts, "; "), nil
}
