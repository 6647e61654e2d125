package outreach

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/mact/ops-server/internal/domain"
)

// placeholderRe matches {{ key }} with optional surrounding whitespace.
var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// Rendered holds the output of rendering one template.
type Rendered struct {
	Subject string
	Body    string
}

// RenderString substitutes every {{key}} occurrence in s with the matching
// value from data, applying type-specific formatting for known variables.
// Missing, empty, or whitespace-only values fall back to the variable's
// registered default. Unknown keys are left as literal placeholders.
func RenderString(s string, data map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(s, func(match string) string {
		key := strings.TrimSpace(strings.Trim(match, "{}"))
		spec, known := knownVariables[key]
		if !known {
			return match
		}
		val, ok := data[key]
		if !ok || strings.TrimSpace(val) == "" {
			return spec.Fallback
		}
		return formatValue(spec, val)
	})
}

// Render renders a template's subject and body against the given
// personalization map.
func Render(t *domain.Template, data map[string]string) Rendered {
	return Rendered{
		Subject: RenderString(t.Subject, data),
		Body:    RenderString(t.Body, data),
	}
}

// ExtractVariables returns the distinct {{key}} tokens found in the given
// template strings, in sorted order.
func ExtractVariables(parts ...string) []string {
	seen := map[string]bool{}
	for _, part := range parts {
		for _, m := range placeholderRe.FindAllStringSubmatch(part, -1) {
			seen[m[1]] = true
		}
	}
	vars := make([]string, 0, len(seen))
	for v := range seen {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	return vars
}

// ValidateTemplate flags any placeholder not present in the known-variable
// registry. Returns ErrValidation listing the offenders, or nil.
func ValidateTemplate(t *domain.Template) error {
	var unknown []string
	for _, v := range ExtractVariables(t.Subject, t.Body) {
		if !IsKnownVariable(v) {
			unknown = append(unknown, v)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("%w: unknown template variables: %s", ErrValidation, strings.Join(unknown, ", "))
	}
	return nil
}
