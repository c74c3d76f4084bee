package sql

import "testing"

func TestValidIdentifier(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"simple", "CUSTOMERS", true},
		{"lowercase", "orders", true},
		{"underscore prefix", "_staging", true},
		{"dollar sign", "TMP$1", true},
		{"digits", "T2024", true},
		{"leading digit", "2024_T", false},
		{"space", "my table", false},
		{"hyphen", "my-table", false},
		{"quote", `my"table`, false},
		{"semicolon", "t;drop", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidIdentifier(tt.input); got != tt.want {
				t.Errorf("ValidIdentifier(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain passes through", "CUSTOMERS", "CUSTOMERS"},
		{"space gets quoted", "my table", `"my table"`},
		{"embedded quote doubled", `we"ird`, `"we""ird"`},
		{"hyphen gets quoted", "my-db", `"my-db"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := QuoteIdentifier(tt.input); got != tt.want {
				t.Errorf("QuoteIdentifier(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestQualifiedName(t *testing.T) {
	tests := []struct {
		name  string
		parts []string
		want  string
	}{
		{"full path", []string{"DB", "SCH", "TBL"}, "DB.SCH.TBL"},
		{"quoted middle", []string{"DB", "my schema", "TBL"}, `DB."my schema".TBL`},
		{"empty parts skipped", []string{"DB", "", "TBL"}, "DB.TBL"},
		{"single", []string{"DB"}, "DB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := QualifiedName(tt.parts...); got != tt.want {
				t.Errorf("QualifiedName(%v) = %q, want %q", tt.parts, got, tt.want)
			}
		})
	}
}

func TestValidateIdentifier(t *testing.T) {
	if err := ValidateIdentifier("CUSTOMERS"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateIdentifier("my table"); err != nil {
		t.Errorf("quotable names are fine: %v", err)
	}
	if err := ValidateIdentifier(""); err == nil {
		t.Error("expected error for empty identifier")
	}
	if err := ValidateIdentifier("a\x00b"); err == nil {
		t.Error("expected error for control characters")
	}
}
