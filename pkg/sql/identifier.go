package sql

import (
	"fmt"
	"regexp"
	"strings"
)

// unquotedIdentifierPattern matches identifiers Snowflake accepts without
// quoting.
var unquotedIdentifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// ValidIdentifier reports whether name can be embedded unquoted in a
// statement.
func ValidIdentifier(name string) bool {
	return unquotedIdentifierPattern.MatchString(name)
}

// QuoteIdentifier renders name safely for interpolation into SQL text.
// Plain identifiers pass through; anything else is double-quoted with
// embedded quotes doubled.
func QuoteIdentifier(name string) string {
	if ValidIdentifier(name) {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QualifiedName joins non-empty identifier parts into a dotted, quoted path
// such as DB."My Schema".TBL.
func QualifiedName(parts ...string) string {
	quoted := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		quoted = append(quoted, QuoteIdentifier(p))
	}
	return strings.Join(quoted, ".")
}

// ValidateIdentifier rejects names that are empty or contain control
// characters; quoting handles the rest.
func ValidateIdentifier(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("identifier must not be empty")
	}
	for _, r := range name {
		if r < 0x20 {
			return fmt.Errorf("identifier contains control characters")
		}
	}
	return nil
}
