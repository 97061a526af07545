package queryengine

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

	dangerousRe = regexp.MustCompile(`(?i)\b(DROP|DELETE|TRUNCATE|UPDATE|INSERT|ALTER|CREATE|REPLACE|GRANT|REVOKE|EXEC|EXECUTE|CALL|LOAD|INTO\s+OUTFILE)\b`)
)

// ValidIdentifier reports whether name is safe to interpolate as a SQL
// identifier. Anything else must be rejected before it reaches a query.
func ValidIdentifier(name string) bool {
	return identifierRe.MatchString(name)
}

// ValidateReadOnly rejects SQL containing statements or keywords that could
// mutate data or schema. The generated queries are SELECT-only by contract;
// this is the backstop when that contract is broken.
func ValidateReadOnly(sql string) error {
	if m := dangerousRe.FindString(sql); m != "" {
		return fmt.Errorf("query contains forbidden keyword %q", strings.ToUpper(m))
	}
	return nil
}

// ValidateOptionsQuery checks that a filter options query is a single SELECT
// statement, suitable for wrapping as a subselect.
func ValidateOptionsQuery(sql string) error {
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(sql), ";"))
	if trimmed == "" {
		return fmt.Errorf("options query is empty")
	}
	if strings.Contains(trimmed, ";") {
		return fmt.Errorf("options query must be a single statement")
	}
	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT ") && !strings.HasPrefix(upper, "WITH ") {
		return fmt.Errorf("options query must be a SELECT statement")
	}
	return ValidateReadOnly(trimmed)
}
