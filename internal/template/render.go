// Package template implements the {{field}} personalization renderer used
// for campaign subjects and bodies.
package template

import "strings"

// Render substitutes every {{name}} placeholder with fields[name].
// Placeholders with no matching field are left verbatim so a missing
// upload column never aborts a send. Pure and safe for concurrent use.
func Render(tmpl string, fields map[string]string) string {
	if len(fields) == 0 || !strings.Contains(tmpl, "{{") {
		return tmpl
	}

	var b strings.Builder
	b.Grow(len(tmpl))

	for {
		start := strings.Index(tmpl, "{{")
		if start < 0 {
			b.WriteString(tmpl)
			return b.String()
		}
		end := strings.Index(tmpl[start+2:], "}}")
		if end < 0 {
			b.WriteString(tmpl)
			return b.String()
		}

		name := tmpl[start+2 : start+2+end]
		b.WriteString(tmpl[:start])
		if val, ok := fields[name]; ok {
			b.WriteString(val)
		} else {
			// Unresolved placeholder stays as-is.
			b.WriteString(tmpl[start : start+2+end+2])
		}
		tmpl = tmpl[start+2+end+2:]
	}
}

// RenderAll renders subject, HTML body, and text body against one field
// map, the per-recipient step of the dispatch loop.
func RenderAll(subject, bodyHTML, bodyText string, fields map[string]string) (string, string, string) {
	return Render(subject, fields), Render(bodyHTML, fields), Render(bodyText, fields)
}
