package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult contains the result of an injection check on a
// user-supplied value.
type InjectionCheckResult struct {
	IsSQLi      bool   // true if a SQL injection pattern was detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	Name        string // name of the input that failed the check
	Value       any    // the value that was checked
}

// CheckValueForInjection uses libinjection to detect SQL injection patterns
// in a user-supplied value (database, schema, and table names arriving on
// the API, filter values, and similar).
//
// Only string values are checked since numbers and booleans cannot carry
// injection patterns. Returns nil when the value is clean.
func CheckValueForInjection(name string, value any) *InjectionCheckResult {
	strValue, ok := value.(string)
	if !ok {
		return nil
	}

	isSQLi, fingerprint := libinjection.IsSQLi(strValue)
	if isSQLi {
		return &InjectionCheckResult{
			IsSQLi:      true,
			Fingerprint: string(fingerprint),
			Name:        name,
			Value:       value,
		}
	}
	return nil
}

// CheckAllValues runs the injection check over a set of named inputs and
// returns one result per offending value. An empty result means every input
// is clean.
func CheckAllValues(values map[string]any) []*InjectionCheckResult {
	var results []*InjectionCheckResult
	for name, value := range values {
		if result := CheckValueForInjection(name, value); result != nil {
			results = append(results, result)
		}
	}
	return results
}
