package propagation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gregmartell-atlan/mdlh-engine/pkg/models"
)

// PIIHierarchy is the sensitivity ordering used by the standard PII rules,
// least sensitive first.
var PIIHierarchy = []string{"None", "Pseudo", "Sensitive", "Health", "Financial"}

// CriticalityHierarchy orders criticality tiers, least severe first.
var CriticalityHierarchy = []string{"tier3", "tier2", "tier1"}

// LifecycleValues is the closed set of lifecycle states cascaded down the
// asset hierarchy.
var LifecycleValues = []string{"draft", "active", "deprecated", "archived"}

// StandardRules returns the canonical startup rule set. Loaded once at
// process start; rules are toggled via SetRuleEnabled, never deleted.
func StandardRules() []models.RuleDefinition {
	lifecycleHop := func(id string, source, target models.AssetType) models.RuleDefinition {
		return models.RuleDefinition{
			RuleID:             id,
			SourceAsset:        source,
			TargetAsset:        target,
			FieldID:            "lifecycle_status",
			FieldName:          "Lifecycle Status",
			PropagationType:    models.PropagationCopy,
			ConflictResolution: models.ConflictParentWins,
			AllowOverride:      true,
			Enabled:            true,
			Priority:           100,
		}
	}

	return []models.RuleDefinition{
		lifecycleHop("lifecycle_cascade_database_to_schema", models.AssetDatabase, models.AssetSchema),
		lifecycleHop("lifecycle_cascade_schema_to_table", models.AssetSchema, models.AssetTable),
		lifecycleHop("lifecycle_cascade_table_to_column", models.AssetTable, models.AssetColumn),
		{
			RuleID:          "lifecycle_status_allowed_values",
			SourceAsset:     models.AssetDatabase,
			TargetAsset:     models.AssetSchema,
			FieldID:         "lifecycle_status",
			FieldName:       "Lifecycle Status",
			PropagationType: models.PropagationFilter,
			Transformation: &models.TransformationSpec{
				Kind:     models.TransformAllowedValues,
				Allowed:  LifecycleValues,
				Fallback: "draft",
			},
			AllowOverride: true,
			Enabled:       true,
			Priority:      50,
		},
		{
			RuleID:          "pii_aggregate_columns_to_table",
			SourceAsset:     models.AssetColumn,
			TargetAsset:     models.AssetTable,
			FieldID:         "pii_classification",
			FieldName:       "PII Classification",
			PropagationType: models.PropagationAggregate,
			Transformation: &models.TransformationSpec{
				Kind:      models.TransformMostRestrictiveHierarchy,
				Hierarchy: PIIHierarchy,
			},
			ConflictResolution: models.ConflictMostRestrictive,
			Restrictiveness: &models.RestrictivenessSpec{
				Kind:      models.RestrictiveHierarchy,
				Hierarchy: PIIHierarchy,
			},
			Enabled:  true,
			Priority: 90,
		},
		{
			RuleID:          "pii_cascade_table_to_schema",
			SourceAsset:     models.AssetTable,
			TargetAsset:     models.AssetSchema,
			FieldID:         "pii_classification",
			FieldName:       "PII Classification",
			PropagationType: models.PropagationAggregate,
			Transformation: &models.TransformationSpec{
				Kind:      models.TransformMostRestrictiveHierarchy,
				Hierarchy: PIIHierarchy,
			},
			ConflictResolution: models.ConflictMostRestrictive,
			Restrictiveness: &models.RestrictivenessSpec{
				Kind:      models.RestrictiveHierarchy,
				Hierarchy: PIIHierarchy,
			},
			Enabled:  true,
			Priority: 80,
		},
		{
			RuleID:          "retention_days_most_strict",
			SourceAsset:     models.AssetSchema,
			TargetAsset:     models.AssetTable,
			FieldID:         "retention_days",
			FieldName:       "Retention Period (days)",
			PropagationType: models.PropagationTransform,
			Transformation: &models.TransformationSpec{
				Kind: models.TransformMinNumeric,
			},
			ConflictResolution: models.ConflictMostRestrictive,
			// Shorter retention is the more restrictive policy.
			Restrictiveness: &models.RestrictivenessSpec{
				Kind: models.RestrictiveNumericMin,
			},
			Enabled:  true,
			Priority: 85,
		},
		{
			RuleID:             "criticality_tier_most_restrictive",
			SourceAsset:        models.AssetTable,
			TargetAsset:        models.AssetColumn,
			FieldID:            "criticality_tier",
			FieldName:          "Criticality Tier",
			PropagationType:    models.PropagationCopy,
			ConflictResolution: models.ConflictMostRestrictive,
			// tier1 is the most severe tier.
			Restrictiveness: &models.RestrictivenessSpec{
				Kind:      models.RestrictiveHierarchy,
				Hierarchy: CriticalityHierarchy,
			},
			Enabled:  true,
			Priority: 75,
		},
		{
			RuleID:             "certificate_status_local_override",
			SourceAsset:        models.AssetSchema,
			TargetAsset:        models.AssetTable,
			FieldID:            "certificate_status",
			FieldName:          "Certificate Status",
			PropagationType:    models.PropagationOverride,
			ConflictResolution: models.ConflictChildWins,
			AllowOverride:      true,
			Enabled:            true,
			Priority:           70,
		},
		{
			RuleID:             "ownership_review_custom",
			SourceAsset:        models.AssetDatabase,
			TargetAsset:        models.AssetSchema,
			FieldID:            "owner_groups",
			FieldName:          "Owner Groups",
			PropagationType:    models.PropagationCopy,
			ConflictResolution: models.ConflictCustom,
			Enabled:            true,
			Priority:           60,
		},
		{
			RuleID:          "ml_ready_scorer",
			SourceAsset:     models.AssetTable,
			TargetAsset:     models.AssetGeneric,
			FieldID:         "ml_ready",
			FieldName:       "ML Readiness Score",
			PropagationType: models.PropagationTransform,
			Transformation: &models.TransformationSpec{
				Kind: models.TransformScorer,
			},
			Enabled:  true,
			Priority: 40,
		},
	}
}

// ruleFile is the on-disk shape of a declarative rule configuration file.
type ruleFile struct {
	Rules []models.RuleDefinition `yaml:"rules"`
}

// LoadRulesFile reads additional rule definitions from a YAML file.
// Entries are merged over the standard set by rule_id at registry load time.
func LoadRulesFile(path string) ([]models.RuleDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	for i := range file.Rules {
		if err := validateRule(&file.Rules[i]); err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, file.Rules[i].RuleID, err)
		}
	}
	return file.Rules, nil
}

// NewStandardRegistry builds a registry holding the standard rules, with the
// optional rules file merged over them.
func NewStandardRegistry(rulesPath string) (Registry, error) {
	reg := NewRegistryWithRules(StandardRules())
	if rulesPath == "" {
		return reg, nil
	}

	extra, err := LoadRulesFile(rulesPath)
	if err != nil {
		return nil, err
	}
	for _, rule := range extra {
		reg.AddRule(rule)
	}
	return reg, nil
}

// ValidateRule checks a rule definition for structural soundness: required
// fields, a known asset pair and propagation type, and a recognized
// transformation kind when one is declared.
func ValidateRule(rule *models.RuleDefinition) error {
	return validateRule(rule)
}

func validateRule(rule *models.RuleDefinition) error {
	if rule.RuleID == "" {
		return fmt.Errorf("rule_id is required")
	}
	if !rule.SourceAsset.Valid() {
		return fmt.Errorf("unknown source asset type %q", rule.SourceAsset)
	}
	if !rule.TargetAsset.Valid() {
		return fmt.Errorf("unknown target asset type %q", rule.TargetAsset)
	}
	if rule.FieldID == "" {
		return fmt.Errorf("field_id is required")
	}
	switch rule.PropagationType {
	case models.PropagationCopy, models.PropagationAggregate, models.PropagationFilter,
		models.PropagationTransform, models.PropagationOverride:
	default:
		return fmt.Errorf("unknown propagation type %q", rule.PropagationType)
	}
	if rule.Transformation != nil {
		if _, ok := transformTable[rule.Transformation.Kind]; !ok {
			return fmt.Errorf("unknown transformation kind %q", rule.Transformation.Kind)
		}
	}
	return nil
}
