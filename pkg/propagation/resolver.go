package propagation

import (
	"reflect"

	"github.com/gregmartell-atlan/mdlh-engine/pkg/models"
)

// resolution is the outcome of applying a conflict policy to a
// (sourceValue, targetValue) mismatch.
type resolution struct {
	value    any
	resolved bool   // false only under the custom policy
	by       string // policy that produced the value
}

// resolveConflict maps (sourceValue, targetValue, policy) to a resolved
// value. It never fails: an unusable comparator degrades to the parent-wins
// default rather than surfacing an error, because conflict resolution must
// stay a total function over already-detected mismatches.
func resolveConflict(rule *models.RuleDefinition, sourceValue, targetValue any) resolution {
	switch rule.ConflictResolution {
	case models.ConflictChildWins:
		return resolution{value: targetValue, resolved: true, by: string(models.ConflictChildWins)}
	case models.ConflictCustom:
		// Deliberately unresolved: an external actor fills
		// resolvedBy/resolvedAt/resolvedValue later.
		return resolution{resolved: false}
	case models.ConflictMostRestrictive:
		if v, ok := mostRestrictive(rule.Restrictiveness, sourceValue, targetValue); ok {
			return resolution{value: v, resolved: true, by: string(models.ConflictMostRestrictive)}
		}
		// Comparator missing or values incomparable: fall through to the default.
		return resolution{value: sourceValue, resolved: true, by: string(models.ConflictParentWins)}
	default:
		// parent-wins, also the default when the policy names no known strategy.
		return resolution{value: sourceValue, resolved: true, by: string(models.ConflictParentWins)}
	}
}

// mostRestrictive applies the rule's field-specific comparator.
// Restrictiveness direction is field-semantic: a shorter retention period is
// more restrictive (numeric-min) while a higher sensitivity tier is more
// restrictive (hierarchy), so there is no global max/min here.
func mostRestrictive(spec *models.RestrictivenessSpec, sourceValue, targetValue any) (any, bool) {
	if spec == nil {
		return nil, false
	}

	switch spec.Kind {
	case models.RestrictiveHierarchy:
		src, okSrc := asString(sourceValue)
		tgt, okTgt := asString(targetValue)
		if !okSrc || !okTgt {
			return nil, false
		}
		srcPos := hierarchyPosition(spec.Hierarchy, src)
		tgtPos := hierarchyPosition(spec.Hierarchy, tgt)
		if srcPos < 0 || tgtPos < 0 {
			return nil, false
		}
		if tgtPos > srcPos {
			return tgt, true
		}
		return src, true

	case models.RestrictiveNumericMin:
		src, okSrc := maybeNumber(sourceValue)
		tgt, okTgt := maybeNumber(targetValue)
		if !okSrc || !okTgt {
			return nil, false
		}
		if tgt < src {
			return targetValue, true
		}
		return sourceValue, true

	case models.RestrictiveNumericMax:
		src, okSrc := maybeNumber(sourceValue)
		tgt, okTgt := maybeNumber(targetValue)
		if !okSrc || !okTgt {
			return nil, false
		}
		if tgt > src {
			return targetValue, true
		}
		return sourceValue, true
	}

	return nil, false
}

// resolutionOptions lists the policies a reviewer may pick from for a
// conflict detected under the given policy. The detected policy always
// leads; custom is always available as an escape hatch.
func resolutionOptions(policy models.ConflictPolicy) []models.ConflictPolicy {
	switch policy {
	case models.ConflictMostRestrictive:
		return []models.ConflictPolicy{models.ConflictMostRestrictive, models.ConflictParentWins, models.ConflictChildWins, models.ConflictCustom}
	case models.ConflictChildWins:
		return []models.ConflictPolicy{models.ConflictChildWins, models.ConflictParentWins, models.ConflictCustom}
	case models.ConflictCustom:
		return []models.ConflictPolicy{models.ConflictCustom, models.ConflictParentWins, models.ConflictChildWins, models.ConflictMostRestrictive}
	default:
		return []models.ConflictPolicy{models.ConflictParentWins, models.ConflictChildWins, models.ConflictCustom}
	}
}

// valuesEqual is the mismatch test used for conflict detection. Values come
// from JSON payloads and YAML rules, so numeric types are normalized before
// deep comparison.
func valuesEqual(a, b any) bool {
	if an, ok := maybeNumber(a); ok {
		if bn, ok := maybeNumber(b); ok {
			return an == bn
		}
	}
	return reflect.DeepEqual(a, b)
}
