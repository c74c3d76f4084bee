package models

import (
	"time"
)

// PropagationType is the semantic category of a rule.
type PropagationType string

const (
	PropagationCopy      PropagationType = "copy"
	PropagationAggregate PropagationType = "aggregate" // many children -> one parent
	PropagationFilter    PropagationType = "filter"    // constrain a derived value
	PropagationTransform PropagationType = "transform" // pure function of the inputs
	PropagationOverride  PropagationType = "override"  // explicit local replacement allowed
)

// ConflictPolicy names a conflict resolution strategy.
type ConflictPolicy string

const (
	// ConflictNone means the rule records no conflicts.
	ConflictNone ConflictPolicy = ""
	// ConflictMostRestrictive resolves via the rule's field-specific comparator.
	ConflictMostRestrictive ConflictPolicy = "most-restrictive"
	// ConflictChildWins preserves the existing local value.
	ConflictChildWins ConflictPolicy = "child-wins"
	// ConflictParentWins takes the inherited value. Default on mismatch.
	ConflictParentWins ConflictPolicy = "parent-wins"
	// ConflictCustom defers resolution to an external actor.
	ConflictCustom ConflictPolicy = "custom"
)

// TransformKind names a member of the closed transformation set.
// Rules stay serializable data: the kind is dispatched through a lookup
// table at execution time instead of embedding function values in rules.
type TransformKind string

const (
	TransformIdentity                 TransformKind = "identity"
	TransformMostRestrictiveHierarchy TransformKind = "most-restrictive-hierarchy"
	TransformMinNumeric               TransformKind = "min-numeric"
	TransformMaxNumeric               TransformKind = "max-numeric"
	TransformAllowedValues            TransformKind = "allowed-values"
	TransformScorer                   TransformKind = "scorer"
)

// TransformationSpec declares how a rule derives its result value.
type TransformationSpec struct {
	Kind TransformKind `json:"kind" yaml:"kind"`

	// Hierarchy is the ordered label set for most-restrictive-hierarchy,
	// least restrictive first (e.g. [None, Pseudo, Sensitive, Health, Financial]).
	Hierarchy []string `json:"hierarchy,omitempty" yaml:"hierarchy,omitempty"`

	// Allowed constrains filter rules to a closed value set.
	Allowed []string `json:"allowed,omitempty" yaml:"allowed,omitempty"`

	// Fallback is used by allowed-values when the source value is not allowed.
	// Nil fallback means a disallowed value fails the rule.
	Fallback any `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// RestrictivenessKind selects the comparison direction for most-restrictive
// resolution. "More restrictive" is field-semantic: shorter retention and
// higher sensitivity tier point in opposite numeric directions, so each rule
// carries its own comparator instead of a global max/min.
type RestrictivenessKind string

const (
	// RestrictiveHierarchy: higher position in the ordered label list wins.
	RestrictiveHierarchy RestrictivenessKind = "hierarchy"
	// RestrictiveNumericMin: the smaller number wins (e.g. retention days).
	RestrictiveNumericMin RestrictivenessKind = "numeric-min"
	// RestrictiveNumericMax: the larger number wins.
	RestrictiveNumericMax RestrictivenessKind = "numeric-max"
)

// RestrictivenessSpec is the per-field comparator carried by rules that use
// the most-restrictive conflict policy.
type RestrictivenessSpec struct {
	Kind      RestrictivenessKind `json:"kind" yaml:"kind"`
	Hierarchy []string            `json:"hierarchy,omitempty" yaml:"hierarchy,omitempty"`
}

// RuleDefinition describes one propagation hop for one field.
// Treated as immutable by convention once registered; only Enabled and
// LastModified change, through Registry.SetRuleEnabled.
type RuleDefinition struct {
	RuleID      string    `json:"rule_id" yaml:"rule_id"`
	SourceAsset AssetType `json:"source_asset" yaml:"source_asset"`
	TargetAsset AssetType `json:"target_asset" yaml:"target_asset"`
	FieldID     string    `json:"field_id" yaml:"field_id"`
	FieldName   string    `json:"field_name" yaml:"field_name"`

	PropagationType PropagationType     `json:"propagation_type" yaml:"propagation_type"`
	Transformation  *TransformationSpec `json:"transformation,omitempty" yaml:"transformation,omitempty"`

	ConflictResolution ConflictPolicy       `json:"conflict_resolution,omitempty" yaml:"conflict_resolution,omitempty"`
	Restrictiveness    *RestrictivenessSpec `json:"restrictiveness,omitempty" yaml:"restrictiveness,omitempty"`

	// AllowOverride marks whether a locally-set target value may later be
	// overwritten by this rule.
	AllowOverride bool `json:"allow_override" yaml:"allow_override"`
	Enabled       bool `json:"enabled" yaml:"enabled"`

	// Priority orders rules within one (field, source, target) hop;
	// higher runs first, ties broken by registration order.
	Priority int `json:"priority" yaml:"priority"`

	CreatedDate  time.Time `json:"created_date" yaml:"created_date,omitempty"`
	LastModified time.Time `json:"last_modified" yaml:"last_modified,omitempty"`
}

// EventStatus is the outcome of one rule execution attempt.
type EventStatus string

const (
	EventPending  EventStatus = "pending"
	EventSuccess  EventStatus = "success"
	EventFailed   EventStatus = "failed"
	EventConflict EventStatus = "conflict"
)

// PropagationEvent records one rule execution attempt. Created fresh per
// invocation and owned by the caller; the engine never persists events.
type PropagationEvent struct {
	EventID     string      `json:"event_id"`
	RuleID      string      `json:"rule_id"`
	SourceAsset AssetType   `json:"source_asset"`
	TargetAsset AssetType   `json:"target_asset"`
	FieldID     string      `json:"field_id"`
	SourceValue any         `json:"source_value"`
	TargetValue any         `json:"target_value"`
	ResultValue any         `json:"result_value"`
	Status      EventStatus `json:"status"`
	Timestamp   time.Time   `json:"timestamp"`
	Error       string      `json:"error,omitempty"`
}

// PropagationConflict records a detected divergence between an inherited
// value and an existing local value at the target asset.
// Under the custom policy ResolvedValue/ResolvedBy/ResolvedAt stay empty
// pending external resolution.
type PropagationConflict struct {
	ConflictID        string           `json:"conflict_id"`
	RuleID            string           `json:"rule_id"`
	SourceAsset       AssetType        `json:"source_asset"`
	TargetAsset       AssetType        `json:"target_asset"`
	FieldID           string           `json:"field_id"`
	SourceValue       any              `json:"source_value"`
	TargetValue       any              `json:"target_value"`
	Reason            string           `json:"reason"`
	ResolutionOptions []ConflictPolicy `json:"resolution_options"`
	ResolvedValue     any              `json:"resolved_value,omitempty"`
	ResolvedBy        string           `json:"resolved_by,omitempty"`
	ResolvedAt        *time.Time       `json:"resolved_at,omitempty"`
}

// Resolved reports whether the conflict carries an auto-computed or
// externally supplied resolution.
func (c *PropagationConflict) Resolved() bool {
	return c.ResolvedValue != nil
}

// PropagationContext is ephemeral per-call metadata. Never persisted by the
// engine; it parameterizes transformations and marks simulation mode.
type PropagationContext struct {
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
	BatchID   string    `json:"batch_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	DryRun    bool      `json:"dry_run"`
}

// ExecutionResult aggregates one ExecutePropagation/SimulatePropagation call.
// JSON-serializable so callers and audit viewers can inspect it before
// committing resultant values back to the metadata store.
type ExecutionResult struct {
	ExecutionID   string                `json:"execution_id"`
	Context       PropagationContext    `json:"context"`
	TotalRules    int                   `json:"total_rules"`
	ExecutedRules int                   `json:"executed_rules"`
	SuccessCount  int                   `json:"success_count"`
	FailureCount  int                   `json:"failure_count"`
	ConflictCount int                   `json:"conflict_count"`
	Events        []PropagationEvent    `json:"events"`
	Conflicts     []PropagationConflict `json:"conflicts"`
	Duration      time.Duration         `json:"duration"`
	Summary       string                `json:"summary"`
}
