// Package queryengine renders conditional SQL query templates against a
// boolean-only context and extracts their named parameters.
//
// Templates contain plain SQL plus conditional blocks:
//
//	SELECT category, SUM(amount) AS total
//	FROM orders
//	WHERE 1=1
//	{% if date_start %} AND created_at >= :date_start {% endif %}
//	{% if status %} AND status = :status {% endif %}
//	GROUP BY category
//
// The grammar is closed on purpose: the only recognized constructs are
// `{% if <flag> %}` and `{% endif %}`, and the rendering context is a map of
// parameter name to boolean. No value ever reaches the template text, so
// user-supplied strings cannot be evaluated as template logic — only
// conditional inclusion of literal SQL fragments is possible.
package queryengine

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// Matches {% if name %} and {% endif %} tokens. Group 1 is the whole
	// keyword clause, group 2 the flag name (empty for endif).
	tokenRe = regexp.MustCompile(`\{%\s*(if\s+([A-Za-z_][A-Za-z0-9_]*)|endif)\s*%\}`)

	// Any template-block opener; its presence distinguishes conditional
	// templates from legacy plain-SQL ones.
	blockRe = regexp.MustCompile(`\{[%{#]`)

	paramRe = regexp.MustCompile(`:([A-Za-z_][A-Za-z0-9_]*)`)

	blankRe = regexp.MustCompile(`\n\s*\n`)
)

// HasConditionals reports whether the template contains conditional-block
// syntax. Legacy templates without it pass through Render unchanged so that
// their always-true phrasing (`:param IS NULL OR ...`) applies at execution
// time.
func HasConditionals(template string) bool {
	return blockRe.MatchString(template)
}

// Normalize fixes double-escaped block delimiters some models produce,
// turning `{%% if x %%}` into `{% if x %}`.
func Normalize(template string) string {
	template = strings.ReplaceAll(template, "{%%", "{%")
	return strings.ReplaceAll(template, "%%}", "%}")
}

// Render evaluates the template's conditional blocks against flags and
// returns the resulting SQL. Flags absent from the map are false. Rendering
// is a pure function: the same template and flags always yield the same
// text.
func Render(template string, flags map[string]bool) (string, error) {
	template = Normalize(template)
	if !HasConditionals(template) {
		return template, nil
	}

	var out strings.Builder
	// Stack of active conditional flags; text is emitted only while every
	// enclosing flag is true.
	var stack []bool
	emitting := func() bool {
		for _, on := range stack {
			if !on {
				return false
			}
		}
		return true
	}

	pos := 0
	for _, m := range tokenRe.FindAllStringSubmatchIndex(template, -1) {
		if emitting() {
			out.WriteString(template[pos:m[0]])
		}
		pos = m[1]

		// Group 2 is the flag name; present only for `if` tokens.
		if m[4] >= 0 {
			name := template[m[4]:m[5]]
			stack = append(stack, flags[name])
		} else {
			if len(stack) == 0 {
				return "", fmt.Errorf("template has endif without matching if")
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) != 0 {
		return "", fmt.Errorf("template has unterminated if block")
	}
	if emitting() {
		out.WriteString(template[pos:])
	}

	// Collapse blank lines left behind by removed blocks and strip the
	// trailing semicolons some models add.
	rendered := blankRe.ReplaceAllString(out.String(), "\n")
	rendered = strings.TrimSpace(rendered)
	rendered = strings.TrimSpace(strings.TrimRight(rendered, ";"))
	return rendered, nil
}

// ExtractParams returns the distinct `:name` placeholders of sql in first-use
// order.
func ExtractParams(sql string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range paramRe.FindAllStringSubmatch(sql, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

// AllParams returns every placeholder of the raw template, including those
// inside conditional blocks. Used to enumerate all parameters a template can
// ever bind.
func AllParams(template string) []string {
	return ExtractParams(Normalize(template))
}
