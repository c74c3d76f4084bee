package propagation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gregmartell-atlan/mdlh-engine/pkg/models"
)

// Executor orchestrates rule lookup, per-rule execution, conflict detection
// and aggregation for one propagation hop. It is synchronous and pure: no
// metadata-store reads or writes happen here in either mode - the caller
// supplies the current target value before the call and commits resultant
// values after inspecting the result. Multi-hop cascades are the caller's
// responsibility: invoke ExecutePropagation once per hop, feeding hop N's
// result value (or the conflict's resolved value) as hop N+1's source value.
type Executor interface {
	// ExecuteRule is the atomic, never-throwing building block: one rule,
	// one event. Transformation failures become status=failed events.
	ExecuteRule(rule models.RuleDefinition, sourceValue, targetValue any, ctx models.PropagationContext) models.PropagationEvent

	// ExecutePropagation runs all rules for one hop and always returns an
	// ExecutionResult; callers inspect FailureCount/ConflictCount instead of
	// handling errors.
	ExecutePropagation(fieldID string, source, target models.AssetType, sourceValue, targetValue any, ctx models.PropagationContext) *models.ExecutionResult

	// SimulatePropagation is ExecutePropagation with DryRun forced on.
	// Given identical inputs it produces structurally identical events and
	// conflicts; only the context's dry-run flag differs.
	SimulatePropagation(fieldID string, source, target models.AssetType, sourceValue, targetValue any, ctx models.PropagationContext) *models.ExecutionResult

	// GetExecutionSummary renders a markdown report of one result for
	// human review.
	GetExecutionSummary(result *models.ExecutionResult) string
}

type executor struct {
	registry Registry
	scorer   Scorer
	logger   *zap.Logger
}

// ExecutorOption customizes an Executor at construction time.
type ExecutorOption func(*executor)

// WithScorer injects the Scorer backing scorer-kind transformations.
func WithScorer(s Scorer) ExecutorOption {
	return func(e *executor) { e.scorer = s }
}

// NewExecutor creates an Executor over the given registry.
func NewExecutor(registry Registry, logger *zap.Logger, opts ...ExecutorOption) Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &executor{
		registry: registry,
		scorer:   NeutralScorer(),
		logger:   logger.Named("propagation-executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ Executor = (*executor)(nil)

func (e *executor) ExecuteRule(rule models.RuleDefinition, sourceValue, targetValue any, ctx models.PropagationContext) models.PropagationEvent {
	event := models.PropagationEvent{
		EventID:     uuid.NewString(),
		RuleID:      rule.RuleID,
		SourceAsset: rule.SourceAsset,
		TargetAsset: rule.TargetAsset,
		FieldID:     rule.FieldID,
		SourceValue: sourceValue,
		TargetValue: targetValue,
		Status:      models.EventPending,
		Timestamp:   time.Now().UTC(),
	}

	result, err := e.runTransformation(&rule, sourceValue, targetValue, ctx)
	if err != nil {
		event.Status = models.EventFailed
		event.Error = err.Error()
		e.logger.Debug("rule execution failed",
			zap.String("rule_id", rule.RuleID),
			zap.String("field_id", rule.FieldID),
			zap.Error(err))
		return event
	}

	event.ResultValue = result
	event.Status = models.EventSuccess
	return event
}

// runTransformation contains the rule's only user-supplied computation, so
// panics are confined here and converted to ordinary errors.
func (e *executor) runTransformation(rule *models.RuleDefinition, sourceValue, targetValue any, ctx models.PropagationContext) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transformation panicked: %v", r)
		}
	}()
	return applyTransformation(rule.Transformation, sourceValue, targetValue, ctx, e.scorer)
}

func (e *executor) ExecutePropagation(fieldID string, source, target models.AssetType, sourceValue, targetValue any, ctx models.PropagationContext) *models.ExecutionResult {
	return e.run(fieldID, source, target, sourceValue, targetValue, ctx)
}

func (e *executor) SimulatePropagation(fieldID string, source, target models.AssetType, sourceValue, targetValue any, ctx models.PropagationContext) *models.ExecutionResult {
	ctx.DryRun = true
	return e.run(fieldID, source, target, sourceValue, targetValue, ctx)
}

func (e *executor) run(fieldID string, source, target models.AssetType, sourceValue, targetValue any, ctx models.PropagationContext) *models.ExecutionResult {
	started := time.Now()
	if ctx.Timestamp.IsZero() {
		ctx.Timestamp = started.UTC()
	}

	result := &models.ExecutionResult{
		ExecutionID: uuid.NewString(),
		Context:     ctx,
		Events:      []models.PropagationEvent{},
		Conflicts:   []models.PropagationConflict{},
	}

	rules := e.registry.GetPropagationPath(fieldID, source, target)
	result.TotalRules = len(rules)

	for i := range rules {
		rule := rules[i]

		event := e.ExecuteRule(rule, sourceValue, targetValue, ctx)
		result.ExecutedRules++

		// Conflicts are detected against the value that would actually be
		// committed: the transformation result when the rule succeeded, the
		// raw source value when it failed (detection stays independent of
		// per-rule success).
		inherited := sourceValue
		if event.Status == models.EventSuccess {
			inherited = event.ResultValue
		}
		if rule.ConflictResolution != models.ConflictNone &&
			targetValue != nil && !valuesEqual(inherited, targetValue) {
			conflict := e.buildConflict(&rule, inherited, targetValue)
			result.Conflicts = append(result.Conflicts, conflict)
			result.ConflictCount++
			if event.Status == models.EventSuccess {
				event.Status = models.EventConflict
			}
		}

		switch event.Status {
		case models.EventFailed:
			result.FailureCount++
		default:
			result.SuccessCount++
		}
		result.Events = append(result.Events, event)
	}

	result.Duration = time.Since(started)
	result.Summary = renderSummary(result)

	e.logger.Info("propagation hop executed",
		zap.String("execution_id", result.ExecutionID),
		zap.String("field_id", fieldID),
		zap.String("source", string(source)),
		zap.String("target", string(target)),
		zap.Bool("dry_run", ctx.DryRun),
		zap.Int("rules", result.TotalRules),
		zap.Int("failures", result.FailureCount),
		zap.Int("conflicts", result.ConflictCount))

	return result
}

// buildConflict records one mismatch between the inherited value (already
// transformed when the rule's transformation succeeded) and the existing
// local value, and applies the rule's resolution policy to it.
func (e *executor) buildConflict(rule *models.RuleDefinition, inherited, targetValue any) models.PropagationConflict {
	conflict := models.PropagationConflict{
		ConflictID:  uuid.NewString(),
		RuleID:      rule.RuleID,
		SourceAsset: rule.SourceAsset,
		TargetAsset: rule.TargetAsset,
		FieldID:     rule.FieldID,
		SourceValue: inherited,
		TargetValue: targetValue,
		Reason: fmt.Sprintf("inherited value %v differs from existing %s value %v",
			inherited, rule.TargetAsset, targetValue),
		ResolutionOptions: resolutionOptions(rule.ConflictResolution),
	}

	res := resolveConflict(rule, inherited, targetValue)
	if res.resolved {
		now := time.Now().UTC()
		conflict.ResolvedValue = res.value
		conflict.ResolvedBy = res.by
		conflict.ResolvedAt = &now
	}
	return conflict
}

func (e *executor) GetExecutionSummary(result *models.ExecutionResult) string {
	return renderSummary(result)
}
