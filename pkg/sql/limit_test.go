package sql

import "testing"

func TestHasLimit(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want bool
	}{
		{"upper", "SELECT * FROM t LIMIT 10", true},
		{"lower", "select * from t limit 5", true},
		{"no limit", "SELECT * FROM t", false},
		{"limit in identifier", "SELECT rate_limit FROM t", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasLimit(tt.sql); got != tt.want {
				t.Errorf("HasLimit(%q) = %v, want %v", tt.sql, got, tt.want)
			}
		})
	}
}

func TestApplyLimit(t *testing.T) {
	tests := []struct {
		name  string
		sql   string
		limit int
		want  string
	}{
		{"appends to select", "SELECT * FROM t", 100, "SELECT * FROM t LIMIT 100"},
		{"keeps existing limit", "SELECT * FROM t LIMIT 5", 100, "SELECT * FROM t LIMIT 5"},
		{"show untouched", "SHOW DATABASES", 100, "SHOW DATABASES"},
		{"describe untouched", "DESCRIBE TABLE t", 100, "DESCRIBE TABLE t"},
		{"zero limit noop", "SELECT * FROM t", 0, "SELECT * FROM t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ApplyLimit(tt.sql, tt.limit); got != tt.want {
				t.Errorf("ApplyLimit(%q, %d) = %q, want %q", tt.sql, tt.limit, got, tt.want)
			}
		})
	}
}
