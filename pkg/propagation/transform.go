package propagation

import (
	"fmt"
	"strconv"

	"github.com/gregmartell-atlan/mdlh-engine/pkg/models"
)

// Scorer computes a quality/readiness score for scorer-kind transformations.
// The reference implementation stubbed this with random numbers; keeping it an
// injectable capability lets an external data-quality scorer plug in while the
// default stays deterministic and replayable.
type Scorer interface {
	Score(ctx models.PropagationContext, sourceValue, targetValue any) (float64, error)
}

// ScorerFunc adapts a plain function to the Scorer interface.
type ScorerFunc func(ctx models.PropagationContext, sourceValue, targetValue any) (float64, error)

func (f ScorerFunc) Score(ctx models.PropagationContext, sourceValue, targetValue any) (float64, error) {
	return f(ctx, sourceValue, targetValue)
}

// NeutralScorer is the deterministic default: every asset scores 0.
// A production deployment injects a real data-quality scorer instead.
func NeutralScorer() Scorer {
	return ScorerFunc(func(models.PropagationContext, any, any) (float64, error) {
		return 0, nil
	})
}

// transformFunc derives the result value for one rule execution.
type transformFunc func(spec *models.TransformationSpec, sourceValue, targetValue any, ctx models.PropagationContext, scorer Scorer) (any, error)

// transformTable dispatches the closed set of transformation kinds.
// Rules carry only the kind name plus parameters, so the rule set stays
// serializable data rather than opaque code.
var transformTable = map[models.TransformKind]transformFunc{
	models.TransformIdentity:                 transformIdentity,
	models.TransformMostRestrictiveHierarchy: transformMostRestrictiveHierarchy,
	models.TransformMinNumeric:               transformMinNumeric,
	models.TransformMaxNumeric:               transformMaxNumeric,
	models.TransformAllowedValues:            transformAllowedValues,
	models.TransformScorer:                   transformScorer,
}

// applyTransformation computes the rule's result value. A nil spec means
// plain copy semantics: the result is the source value.
func applyTransformation(spec *models.TransformationSpec, sourceValue, targetValue any, ctx models.PropagationContext, scorer Scorer) (any, error) {
	if spec == nil {
		return sourceValue, nil
	}
	fn, ok := transformTable[spec.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown transformation kind %q", spec.Kind)
	}
	return fn(spec, sourceValue, targetValue, ctx, scorer)
}

func transformIdentity(_ *models.TransformationSpec, sourceValue, _ any, _ models.PropagationContext, _ Scorer) (any, error) {
	return sourceValue, nil
}

// transformMostRestrictiveHierarchy picks the source value highest in the
// ordered label hierarchy. Slice sources (aggregate rules fed by many
// children) reduce over their elements; any mismatch with the existing
// target value is the conflict resolver's business, not the transform's.
func transformMostRestrictiveHierarchy(spec *models.TransformationSpec, sourceValue, _ any, _ models.PropagationContext, _ Scorer) (any, error) {
	if len(spec.Hierarchy) == 0 {
		return nil, fmt.Errorf("most-restrictive-hierarchy requires an ordered hierarchy")
	}

	candidates, err := stringCandidates(sourceValue)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no values to compare against hierarchy")
	}

	best := -1
	var bestLabel string
	for _, c := range candidates {
		pos := hierarchyPosition(spec.Hierarchy, c)
		if pos < 0 {
			return nil, fmt.Errorf("value %q is not in the defined hierarchy", c)
		}
		if pos > best {
			best = pos
			bestLabel = c
		}
	}
	return bestLabel, nil
}

func transformMinNumeric(_ *models.TransformationSpec, sourceValue, targetValue any, _ models.PropagationContext, _ Scorer) (any, error) {
	src, err := asNumber(sourceValue)
	if err != nil {
		return nil, err
	}
	tgt, ok := maybeNumber(targetValue)
	if !ok {
		return src, nil
	}
	if tgt < src {
		return tgt, nil
	}
	return src, nil
}

func transformMaxNumeric(_ *models.TransformationSpec, sourceValue, targetValue any, _ models.PropagationContext, _ Scorer) (any, error) {
	src, err := asNumber(sourceValue)
	if err != nil {
		return nil, err
	}
	tgt, ok := maybeNumber(targetValue)
	if !ok {
		return src, nil
	}
	if tgt > src {
		return tgt, nil
	}
	return src, nil
}

// transformAllowedValues constrains the derived value to a closed set.
// Disallowed sources fall back to the configured fallback, or fail the rule
// when no fallback is configured.
func transformAllowedValues(spec *models.TransformationSpec, sourceValue, _ any, _ models.PropagationContext, _ Scorer) (any, error) {
	s, ok := asString(sourceValue)
	if !ok {
		return nil, fmt.Errorf("allowed-values requires a string source, got %T", sourceValue)
	}
	for _, allowed := range spec.Allowed {
		if s == allowed {
			return s, nil
		}
	}
	if spec.Fallback != nil {
		return spec.Fallback, nil
	}
	return nil, fmt.Errorf("value %q is not in the allowed set", s)
}

func transformScorer(_ *models.TransformationSpec, sourceValue, targetValue any, ctx models.PropagationContext, scorer Scorer) (any, error) {
	if scorer == nil {
		scorer = NeutralScorer()
	}
	score, err := scorer.Score(ctx, sourceValue, targetValue)
	if err != nil {
		return nil, fmt.Errorf("scorer failed: %w", err)
	}
	return score, nil
}

// hierarchyPosition returns the index of label in the ordered hierarchy, -1 if absent.
func hierarchyPosition(hierarchy []string, label string) int {
	for i, h := range hierarchy {
		if h == label {
			return i
		}
	}
	return -1
}

// stringCandidates flattens a scalar or slice value into its string members.
func stringCandidates(value any) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := asString(item)
			if !ok {
				return nil, fmt.Errorf("non-string element %v in aggregate source", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported source type %T for hierarchy comparison", value)
	}
}

func asString(value any) (string, bool) {
	s, ok := value.(string)
	return s, ok
}

// asNumber coerces JSON-ish numeric values. Decoded JSON gives float64,
// YAML gives int, tests pass native Go ints.
func asNumber(value any) (float64, error) {
	n, ok := maybeNumber(value)
	if !ok {
		return 0, fmt.Errorf("value %v (%T) is not numeric", value, value)
	}
	return n, nil
}

func maybeNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case string:
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
