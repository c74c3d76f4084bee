// Package sql provides the read-only query guard for Snowflake queries:
// normalization, statement type detection, and identifier safety.
package sql

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrMultipleStatements indicates the query contains multiple SQL statements.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")
)

// StatementType classifies a SQL statement by its leading keyword.
type StatementType string

const (
	StatementSelect   StatementType = "SELECT"
	StatementShow     StatementType = "SHOW"
	StatementDescribe StatementType = "DESCRIBE"
	StatementExplain  StatementType = "EXPLAIN"
	StatementModify   StatementType = "MODIFY"  // INSERT, UPDATE, DELETE, MERGE, CALL
	StatementDDL      StatementType = "DDL"     // CREATE, ALTER, DROP, TRUNCATE
	StatementUnknown  StatementType = "UNKNOWN" // unrecognized or blocked
)

// modifyingCTEPattern matches CTEs that contain data-modifying operations,
// e.g. WITH deleted AS (DELETE FROM ...) SELECT * FROM deleted.
var modifyingCTEPattern = regexp.MustCompile(`(?i)\bAS\s*\(\s*(INSERT|UPDATE|DELETE|MERGE)\b`)

// DetectStatementType determines the statement type from the first keyword.
// WITH queries count as SELECT unless a CTE body modifies data.
func DetectStatementType(sql string) StatementType {
	normalized := strings.ToUpper(strings.TrimSpace(stripComments(sql)))

	switch {
	case strings.HasPrefix(normalized, "SELECT"):
		return StatementSelect

	case strings.HasPrefix(normalized, "WITH"):
		if modifyingCTEPattern.MatchString(sql) {
			return StatementUnknown
		}
		return StatementSelect

	case strings.HasPrefix(normalized, "SHOW"):
		return StatementShow

	case strings.HasPrefix(normalized, "DESCRIBE"), strings.HasPrefix(normalized, "DESC "):
		return StatementDescribe

	case strings.HasPrefix(normalized, "EXPLAIN"):
		return StatementExplain

	case strings.HasPrefix(normalized, "INSERT"),
		strings.HasPrefix(normalized, "UPDATE"),
		strings.HasPrefix(normalized, "DELETE"),
		strings.HasPrefix(normalized, "MERGE"),
		strings.HasPrefix(normalized, "CALL"):
		return StatementModify

	case strings.HasPrefix(normalized, "CREATE"),
		strings.HasPrefix(normalized, "ALTER"),
		strings.HasPrefix(normalized, "DROP"),
		strings.HasPrefix(normalized, "TRUNCATE"):
		return StatementDDL

	default:
		return StatementUnknown
	}
}

// ReadOnly reports whether the statement type can be executed against a
// catalog connection without modifying data.
func ReadOnly(t StatementType) bool {
	switch t {
	case StatementSelect, StatementShow, StatementDescribe, StatementExplain:
		return true
	default:
		return false
	}
}

// GuardError describes a rejected statement.
type GuardError struct {
	Type    StatementType
	Message string
}

func (e *GuardError) Error() string {
	return e.Message
}

// ValidationResult contains the normalized SQL and any validation errors.
type ValidationResult struct {
	NormalizedSQL string
	Type          StatementType
	Error         error
}

// ValidateReadOnly normalizes a query and rejects anything that is not a
// single read-only statement.
//
// The validation order is:
//  1. Strip trailing semicolon and whitespace (normalize)
//  2. Check for multiple statements (any remaining semicolon outside string
//     literals and comments)
//  3. Classify the statement and require a read-only type
func ValidateReadOnly(sqlQuery string) ValidationResult {
	sqlQuery = strings.TrimSpace(sqlQuery)
	if sqlQuery == "" {
		return ValidationResult{Type: StatementUnknown, Error: &GuardError{
			Type:    StatementUnknown,
			Message: "empty query",
		}}
	}

	normalized := stripTrailingSemicolon(sqlQuery)

	if hasSemicolonOutsideStrings(normalized) {
		return ValidationResult{Error: ErrMultipleStatements}
	}

	stmtType := DetectStatementType(normalized)
	if !ReadOnly(stmtType) {
		return ValidationResult{Type: stmtType, Error: &GuardError{
			Type:    stmtType,
			Message: "only read-only statements (SELECT, SHOW, DESCRIBE, EXPLAIN) are allowed",
		}}
	}

	return ValidationResult{NormalizedSQL: normalized, Type: stmtType}
}

// hasSemicolonOutsideStrings returns true if the SQL contains any semicolon
// outside of string literals and comments.
func hasSemicolonOutsideStrings(sqlQuery string) bool {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
		stateLineComment
		stateBlockComment
	)

	state := stateNormal
	prevChar := rune(0)

	for _, char := range sqlQuery {
		switch state {
		case stateNormal:
			switch char {
			case ';':
				return true
			case '\'':
				state = stateSingleQuote
			case '"':
				state = stateDoubleQuote
			case '-':
				if prevChar == '-' {
					state = stateLineComment
				}
			case '*':
				if prevChar == '/' {
					state = stateBlockComment
				}
			}
		case stateSingleQuote:
			// Handle both backslash escape (\') and SQL standard escape ('').
			// A doubled quote exits here and immediately re-enters on the next
			// character, which keeps us inside the string.
			if char == '\'' && prevChar != '\\' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if char == '"' && prevChar != '\\' {
				state = stateNormal
			}
		case stateLineComment:
			if char == '\n' {
				state = stateNormal
			}
		case stateBlockComment:
			if char == '/' && prevChar == '*' {
				state = stateNormal
			}
		}
		prevChar = char
	}

	return false
}

// stripTrailingSemicolon removes a trailing semicolon and surrounding whitespace.
func stripTrailingSemicolon(sqlQuery string) string {
	sqlQuery = strings.TrimRight(sqlQuery, " \t\n\r")
	if strings.HasSuffix(sqlQuery, ";") {
		sqlQuery = strings.TrimRight(strings.TrimSuffix(sqlQuery, ";"), " \t\n\r")
	}
	return sqlQuery
}

// stripComments removes leading comments so type detection sees the first
// real keyword. Only leading comments matter here.
func stripComments(sqlQuery string) string {
	s := strings.TrimSpace(sqlQuery)
	for {
		switch {
		case strings.HasPrefix(s, "--"):
			idx := strings.IndexByte(s, '\n')
			if idx < 0 {
				return ""
			}
			s = strings.TrimSpace(s[idx+1:])
		case strings.HasPrefix(s, "/*"):
			idx := strings.Index(s, "*/")
			if idx < 0 {
				return ""
			}
			s = strings.TrimSpace(s[idx+2:])
		default:
			return s
		}
	}
}
