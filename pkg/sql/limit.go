package sql

import (
	"fmt"
	"regexp"
	"strings"
)

var limitPattern = regexp.MustCompile(`(?i)\bLIMIT\s+\d+`)

// HasLimit reports whether the query already carries a LIMIT clause.
func HasLimit(sqlQuery string) bool {
	return limitPattern.MatchString(sqlQuery)
}

// ApplyLimit appends a LIMIT clause when the query has none. SHOW and
// DESCRIBE statements pass through untouched since Snowflake caps their
// output server-side.
func ApplyLimit(sqlQuery string, limit int) string {
	if limit <= 0 || HasLimit(sqlQuery) {
		return sqlQuery
	}
	switch DetectStatementType(sqlQuery) {
	case StatementSelect:
		return fmt.Sprintf("%s LIMIT %d", strings.TrimSpace(sqlQuery), limit)
	default:
		return sqlQuery
	}
}
