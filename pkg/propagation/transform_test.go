package propagation

import (
	"strings"
	"testing"

	"github.com/gregmartell-atlan/mdlh-engine/pkg/models"
)

func TestTransform_MostRestrictiveHierarchy(t *testing.T) {
	spec := &models.TransformationSpec{
		Kind:      models.TransformMostRestrictiveHierarchy,
		Hierarchy: PIIHierarchy,
	}

	tests := []struct {
		name    string
		source  any
		want    any
		wantErr bool
	}{
		// Aggregating column classifications up to the table picks the
		// most sensitive label.
		{"array picks higher position", []any{"None", "Sensitive"}, "Sensitive", false},
		{"string slice", []string{"Pseudo", "Health", "None"}, "Health", false},
		{"scalar passes through", "Financial", "Financial", false},
		{"single element array", []any{"None"}, "None", false},
		{"unknown label fails", []any{"None", "TopSecret"}, nil, true},
		{"non-string element fails", []any{"None", 42}, nil, true},
		{"nil source fails", nil, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := applyTransformation(spec, tt.source, nil, models.PropagationContext{}, nil)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTransform_MinNumeric(t *testing.T) {
	spec := &models.TransformationSpec{Kind: models.TransformMinNumeric}

	tests := []struct {
		name   string
		source any
		target any
		want   float64
	}{
		{"source smaller", 90, 365, 90},
		{"target smaller", 365, 90, 90},
		{"no target keeps source", 30, nil, 30},
		{"float inputs", 12.5, 7.25, 7.25},
		{"string number coerces", "45", 60, 45},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := applyTransformation(spec, tt.source, tt.target, models.PropagationContext{}, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			n, ok := maybeNumber(got)
			if !ok || n != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTransform_MinNumeric_NonNumericSource(t *testing.T) {
	spec := &models.TransformationSpec{Kind: models.TransformMinNumeric}
	if _, err := applyTransformation(spec, "forever", 90, models.PropagationContext{}, nil); err == nil {
		t.Fatal("expected error for non-numeric source")
	}
}

func TestTransform_MaxNumeric(t *testing.T) {
	spec := &models.TransformationSpec{Kind: models.TransformMaxNumeric}
	got, err := applyTransformation(spec, 10, 99, models.PropagationContext{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n, _ := maybeNumber(got); n != 99 {
		t.Errorf("got %v, want 99", got)
	}
}

func TestTransform_AllowedValues(t *testing.T) {
	spec := &models.TransformationSpec{
		Kind:     models.TransformAllowedValues,
		Allowed:  LifecycleValues,
		Fallback: "draft",
	}

	got, err := applyTransformation(spec, "active", nil, models.PropagationContext{}, nil)
	if err != nil || got != "active" {
		t.Errorf("allowed value: got %v, %v", got, err)
	}

	got, err = applyTransformation(spec, "bogus", nil, models.PropagationContext{}, nil)
	if err != nil || got != "draft" {
		t.Errorf("fallback: got %v, %v", got, err)
	}
}

func TestTransform_AllowedValues_NoFallbackFails(t *testing.T) {
	spec := &models.TransformationSpec{
		Kind:    models.TransformAllowedValues,
		Allowed: []string{"active"},
	}
	if _, err := applyTransformation(spec, "bogus", nil, models.PropagationContext{}, nil); err == nil {
		t.Fatal("expected error when no fallback configured")
	}
}

func TestTransform_Scorer(t *testing.T) {
	spec := &models.TransformationSpec{Kind: models.TransformScorer}

	// Default neutral scorer is deterministic.
	got, err := applyTransformation(spec, "anything", nil, models.PropagationContext{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0.0 {
		t.Errorf("neutral scorer: got %v, want 0", got)
	}

	// Injected scorers are dispatched.
	custom := ScorerFunc(func(models.PropagationContext, any, any) (float64, error) {
		return 0.87, nil
	})
	got, err = applyTransformation(spec, "anything", nil, models.PropagationContext{}, custom)
	if err != nil || got != 0.87 {
		t.Errorf("custom scorer: got %v, %v", got, err)
	}
}

func TestTransform_NilSpecIsPlainCopy(t *testing.T) {
	got, err := applyTransformation(nil, "value", "existing", models.PropagationContext{}, nil)
	if err != nil || got != "value" {
		t.Errorf("plain copy: got %v, %v", got, err)
	}
}

func TestTransform_UnknownKind(t *testing.T) {
	spec := &models.TransformationSpec{Kind: "quantum-entangle"}
	_, err := applyTransformation(spec, "x", nil, models.PropagationContext{}, nil)
	if err == nil || !strings.Contains(err.Error(), "unknown transformation kind") {
		t.Fatalf("expected unknown-kind error, got %v", err)
	}
}
