package queryengine

import (
	"strconv"
	"strings"

	"github.com/bizmatters/agent-builder/widget-studio/internal/models"
)

// BindParams renders the template against the supplied filter values and
// returns the final SQL plus the bound parameter set.
//
// Only booleans reach the template: each supplied non-empty value activates
// the flag of the same name. For a date_range filter the caller supplies
// `<param>_start` / `<param>_end` values independently, so a user may set
// only one bound. The returned parameter map contains exactly the values the
// rendered SQL references; values for number and slider filters are coerced
// to int, then float, and a non-numeric value is a caller-facing error.
func BindParams(template string, values map[string]string, filters []models.FilterSpec) (string, map[string]interface{}, error) {
	flags := make(map[string]bool, len(values))
	for k, v := range values {
		flags[k] = v != ""
	}

	rendered, err := Render(template, flags)
	if err != nil {
		return "", nil, err
	}

	numeric := make(map[string]bool)
	for _, f := range filters {
		if f.FilterType.IsNumeric() {
			numeric[f.ParamName] = true
		}
	}

	conditional := HasConditionals(Normalize(template))
	params := make(map[string]interface{})
	for _, name := range ExtractParams(rendered) {
		v, ok := values[name]
		if !ok || v == "" {
			if conditional {
				// A conditional template only keeps a placeholder when its
				// flag was active, so a missing value means the template
				// references a parameter outside any conditional block.
				return "", nil, &TemplateError{Kind: ErrUnresolvedPlaceholder, Param: name}
			}
			// Legacy `(:param IS NULL OR ...)` templates expect missing
			// params bound as NULL.
			params[name] = nil
			continue
		}
		if numeric[name] {
			n, err := CoerceNumeric(v)
			if err != nil {
				return "", nil, &TemplateError{Kind: ErrCoercionFailure, Param: name, Value: v}
			}
			params[name] = n
			continue
		}
		params[name] = v
	}

	return rendered, params, nil
}

// CoerceNumeric converts a textual value to an int64, falling back to a
// float64. It never silently defaults: a non-numeric value is an error.
func CoerceNumeric(value string) (interface{}, error) {
	value = strings.TrimSpace(value)
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Rebind converts named `:name` placeholders to positional `?` markers and
// returns the argument list in placeholder order. A parameter that appears
// more than once contributes one argument per occurrence.
func Rebind(sql string, params map[string]interface{}) (string, []interface{}, error) {
	var args []interface{}
	var missing string

	rebound := paramRe.ReplaceAllStringFunc(sql, func(m string) string {
		name := m[1:]
		v, ok := params[name]
		if !ok {
			if missing == "" {
				missing = name
			}
			return m
		}
		args = append(args, v)
		return "?"
	})

	if missing != "" {
		return "", nil, &TemplateError{Kind: ErrUnresolvedPlaceholder, Param: missing}
	}
	return rebound, args, nil
}
