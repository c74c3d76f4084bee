package propagation

import (
	"sort"
	"sync"
	"time"

	"github.com/gregmartell-atlan/mdlh-engine/pkg/apperrors"
	"github.com/gregmartell-atlan/mdlh-engine/pkg/models"
)

// Registry is an addressable collection of propagation rules.
// It is an explicit, constructible object owned by whoever wires the
// Executor - never a process-wide singleton - so test suites can build
// isolated registries per test.
type Registry interface {
	// GetRule returns the rule with the given id, or nil if unknown.
	GetRule(ruleID string) *models.RuleDefinition

	// GetRulesForField returns all enabled rules touching the field,
	// any hop direction, in registration order.
	GetRulesForField(fieldID string) []models.RuleDefinition

	// GetPropagationPath returns enabled rules matching exactly this
	// (field, source, target) triple, sorted by priority descending with
	// ties broken by registration order. This ordering establishes
	// deterministic first-rule-wins semantics for overlapping rules.
	GetPropagationPath(fieldID string, source, target models.AssetType) []models.RuleDefinition

	// AddRule upserts a rule keyed by RuleID. Re-adding an existing id
	// replaces the definition but keeps its registration position.
	AddRule(rule models.RuleDefinition)

	// SetRuleEnabled toggles the enabled flag and refreshes LastModified.
	// An unknown ruleID leaves the registry untouched and returns
	// apperrors.ErrNotFound; the stored rule set is never mutated on a miss.
	SetRuleEnabled(ruleID string, enabled bool) error

	// GetAllRulesOrderedByPriority returns the full enabled set, priority
	// descending, for batch propagate-everything operations.
	GetAllRulesOrderedByPriority() []models.RuleDefinition
}

type registry struct {
	mu    sync.RWMutex
	rules map[string]*models.RuleDefinition
	order []string // registration order, the tiebreak for equal priorities
	now   func() time.Time
}

// NewRegistry creates an empty rule registry.
func NewRegistry() Registry {
	return &registry{
		rules: make(map[string]*models.RuleDefinition),
		now:   time.Now,
	}
}

// NewRegistryWithRules creates a registry pre-loaded with the given rules,
// registered in slice order.
func NewRegistryWithRules(rules []models.RuleDefinition) Registry {
	r := &registry{
		rules: make(map[string]*models.RuleDefinition, len(rules)),
		now:   time.Now,
	}
	for _, rule := range rules {
		r.AddRule(rule)
	}
	return r
}

var _ Registry = (*registry)(nil)

func (r *registry) GetRule(ruleID string) *models.RuleDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rule, ok := r.rules[ruleID]
	if !ok {
		return nil
	}
	copied := *rule
	return &copied
}

func (r *registry) GetRulesForField(fieldID string) []models.RuleDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.RuleDefinition
	for _, id := range r.order {
		rule := r.rules[id]
		if rule.Enabled && rule.FieldID == fieldID {
			out = append(out, *rule)
		}
	}
	return out
}

func (r *registry) GetPropagationPath(fieldID string, source, target models.AssetType) []models.RuleDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.RuleDefinition
	for _, id := range r.order {
		rule := r.rules[id]
		if rule.Enabled && rule.FieldID == fieldID && rule.SourceAsset == source && rule.TargetAsset == target {
			out = append(out, *rule)
		}
	}
	// Stable sort keeps registration order among equal priorities.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}

func (r *registry) AddRule(rule models.RuleDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if rule.CreatedDate.IsZero() {
		rule.CreatedDate = now
	}
	if rule.LastModified.IsZero() {
		rule.LastModified = now
	}

	if _, exists := r.rules[rule.RuleID]; !exists {
		r.order = append(r.order, rule.RuleID)
	}
	copied := rule
	r.rules[rule.RuleID] = &copied
}

func (r *registry) SetRuleEnabled(ruleID string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rule, ok := r.rules[ruleID]
	if !ok {
		return apperrors.ErrNotFound
	}
	rule.Enabled = enabled
	rule.LastModified = r.now()
	return nil
}

func (r *registry) GetAllRulesOrderedByPriority() []models.RuleDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.RuleDefinition
	for _, id := range r.order {
		rule := r.rules[id]
		if rule.Enabled {
			out = append(out, *rule)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}
