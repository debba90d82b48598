package actions

import (
	"regexp"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// RenderTemplate substitutes {{field}} placeholders with lead fields.
// Field names are case-insensitive; unknown placeholders are removed so a
// half-filled template never leaks braces into a sent message.
func RenderTemplate(tmpl string, fields map[string]string) string {
	lowered := make(map[string]string, len(fields))
	for k, v := range fields {
		lowered[strings.ToLower(k)] = v
	}

	out := placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := strings.ToLower(placeholderRe.FindStringSubmatch(m)[1])
		return lowered[name]
	})
	return strings.TrimSpace(out)
}
