package propagation

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gregmartell-atlan/mdlh-engine/pkg/models"
)

func newTestExecutor(t *testing.T, opts ...ExecutorOption) Executor {
	t.Helper()
	return NewExecutor(NewRegistryWithRules(StandardRules()), zap.NewNop(), opts...)
}

func testContext() models.PropagationContext {
	return models.PropagationContext{UserID: "steward@example.com", Reason: "quarterly audit"}
}

func TestExecutePropagation_PIIAggregation(t *testing.T) {
	exec := newTestExecutor(t)

	// Aggregating ['None', 'Sensitive'] from columns up to the table must
	// resolve to 'Sensitive', the higher position in the PII hierarchy.
	result := exec.ExecutePropagation("pii_classification", models.AssetColumn, models.AssetTable,
		[]any{"None", "Sensitive"}, nil, testContext())

	require.Equal(t, 1, result.TotalRules)
	require.Len(t, result.Events, 1)
	event := result.Events[0]
	assert.Equal(t, "pii_aggregate_columns_to_table", event.RuleID)
	assert.Equal(t, models.EventSuccess, event.Status)
	assert.Equal(t, "Sensitive", event.ResultValue)
	assert.Empty(t, result.Conflicts)
}

func TestExecutePropagation_PIIAggregationConflict(t *testing.T) {
	exec := newTestExecutor(t)

	// When the table already carries a classification, the conflict is
	// judged against the aggregated result, not the raw column list:
	// ['None', 'Sensitive'] reduces to 'Sensitive', which outranks the
	// existing 'Pseudo' in the hierarchy.
	result := exec.ExecutePropagation("pii_classification", models.AssetColumn, models.AssetTable,
		[]any{"None", "Sensitive"}, "Pseudo", testContext())

	require.Len(t, result.Events, 1)
	event := result.Events[0]
	assert.Equal(t, models.EventConflict, event.Status)
	assert.Equal(t, "Sensitive", event.ResultValue)

	require.Len(t, result.Conflicts, 1)
	conflict := result.Conflicts[0]
	assert.Equal(t, "Sensitive", conflict.SourceValue, "conflict carries the aggregated value")
	assert.Equal(t, "Sensitive", conflict.ResolvedValue)
	assert.Equal(t, string(models.ConflictMostRestrictive), conflict.ResolvedBy)
}

func TestExecutePropagation_PIIAggregationMatchingTargetNoConflict(t *testing.T) {
	exec := newTestExecutor(t)

	// The aggregated result equals the target, so no conflict is raised
	// even though the raw source list differs from the target.
	result := exec.ExecutePropagation("pii_classification", models.AssetColumn, models.AssetTable,
		[]any{"None", "Sensitive"}, "Sensitive", testContext())

	require.Len(t, result.Events, 1)
	assert.Equal(t, models.EventSuccess, result.Events[0].Status)
	assert.Empty(t, result.Conflicts)
}

func TestExecutePropagation_RetentionMostStrict(t *testing.T) {
	exec := newTestExecutor(t)

	result := exec.ExecutePropagation("retention_days", models.AssetSchema, models.AssetTable,
		90, 365, testContext())

	require.Len(t, result.Events, 1)
	event := result.Events[0]
	assert.Equal(t, "retention_days_most_strict", event.RuleID)
	assert.Equal(t, models.EventConflict, event.Status)
	assert.Equal(t, float64(90), event.ResultValue)

	require.Len(t, result.Conflicts, 1)
	conflict := result.Conflicts[0]
	assert.Equal(t, float64(90), conflict.ResolvedValue, "min resolves the shorter retention")
	assert.Equal(t, float64(90), conflict.SourceValue, "conflict carries the computed result")
	assert.Equal(t, string(models.ConflictMostRestrictive), conflict.ResolvedBy)
	assert.NotNil(t, conflict.ResolvedAt)
}

func TestExecutePropagation_CriticalityConflictDeterministic(t *testing.T) {
	exec := newTestExecutor(t)

	// Repeated runs must resolve identically: tier1 is the more severe
	// tier per the comparator ordering.
	for i := 0; i < 5; i++ {
		result := exec.ExecutePropagation("criticality_tier", models.AssetTable, models.AssetColumn,
			"tier2", "tier1", testContext())

		require.Len(t, result.Conflicts, 1, "run %d", i)
		assert.Equal(t, "tier1", result.Conflicts[0].ResolvedValue, "run %d", i)
	}
}

func TestExecutePropagation_NoConflictOnEqualValues(t *testing.T) {
	exec := newTestExecutor(t)

	// Conflicts require an actual value mismatch, even when the rule
	// configures a resolution policy.
	result := exec.ExecutePropagation("criticality_tier", models.AssetTable, models.AssetColumn,
		"tier1", "tier1", testContext())

	assert.Equal(t, 0, result.ConflictCount)
	assert.Empty(t, result.Conflicts)
	require.Len(t, result.Events, 1)
	assert.Equal(t, models.EventSuccess, result.Events[0].Status)
}

func TestExecutePropagation_NoConflictOnNilTarget(t *testing.T) {
	exec := newTestExecutor(t)

	result := exec.ExecutePropagation("criticality_tier", models.AssetTable, models.AssetColumn,
		"tier1", nil, testContext())

	assert.Equal(t, 0, result.ConflictCount)
}

func TestExecutePropagation_TransformFailureIsNonFatal(t *testing.T) {
	exec := newTestExecutor(t)

	// 'TopSecret' is not in the PII hierarchy, so the transformation fails;
	// the call still returns a result rather than raising.
	result := exec.ExecutePropagation("pii_classification", models.AssetColumn, models.AssetTable,
		[]any{"TopSecret"}, nil, testContext())

	require.Len(t, result.Events, 1)
	assert.Equal(t, models.EventFailed, result.Events[0].Status)
	assert.Contains(t, result.Events[0].Error, "not in the defined hierarchy")
	assert.GreaterOrEqual(t, result.FailureCount, 1)
}

func TestExecutePropagation_PanickingScorerIsContained(t *testing.T) {
	panicky := ScorerFunc(func(models.PropagationContext, any, any) (float64, error) {
		panic("scorer exploded")
	})
	exec := newTestExecutor(t, WithScorer(panicky))

	result := exec.ExecutePropagation("ml_ready", models.AssetTable, models.AssetGeneric,
		"tbl", nil, testContext())

	require.Len(t, result.Events, 1)
	assert.Equal(t, models.EventFailed, result.Events[0].Status)
	assert.Contains(t, result.Events[0].Error, "panicked")
}

func TestExecutePropagation_ScorerErrorBecomesFailedEvent(t *testing.T) {
	failing := ScorerFunc(func(models.PropagationContext, any, any) (float64, error) {
		return 0, errors.New("upstream scorer unavailable")
	})
	exec := newTestExecutor(t, WithScorer(failing))

	result := exec.ExecutePropagation("ml_ready", models.AssetTable, models.AssetGeneric,
		"tbl", nil, testContext())

	require.Len(t, result.Events, 1)
	assert.Equal(t, models.EventFailed, result.Events[0].Status)
	assert.Equal(t, 1, result.FailureCount)
}

func TestExecutePropagation_CustomPolicyStaysUnresolved(t *testing.T) {
	exec := newTestExecutor(t)

	result := exec.ExecutePropagation("owner_groups", models.AssetDatabase, models.AssetSchema,
		[]any{"team-analytics"}, []any{"team-legacy"}, testContext())

	require.Len(t, result.Conflicts, 1)
	conflict := result.Conflicts[0]
	assert.Nil(t, conflict.ResolvedValue)
	assert.Empty(t, conflict.ResolvedBy)
	assert.Nil(t, conflict.ResolvedAt)
	assert.False(t, conflict.Resolved())
	assert.Contains(t, conflict.ResolutionOptions, models.ConflictCustom)
}

func TestExecutePropagation_Idempotent(t *testing.T) {
	exec := newTestExecutor(t)
	ctx := testContext()

	first := exec.ExecutePropagation("retention_days", models.AssetSchema, models.AssetTable, 90, 365, ctx)
	second := exec.ExecutePropagation("retention_days", models.AssetSchema, models.AssetTable, 90, 365, ctx)

	require.Equal(t, len(first.Events), len(second.Events))
	for i := range first.Events {
		assert.Equal(t, first.Events[i].Status, second.Events[i].Status, "event %d status", i)
		assert.Equal(t, first.Events[i].ResultValue, second.Events[i].ResultValue, "event %d result", i)
		assert.Equal(t, first.Events[i].RuleID, second.Events[i].RuleID, "event %d rule", i)
	}
	assert.Equal(t, first.ConflictCount, second.ConflictCount)
}

func TestSimulatePropagation_StructurallyIdenticalToLiveRun(t *testing.T) {
	exec := newTestExecutor(t)
	ctx := testContext()

	live := exec.ExecutePropagation("retention_days", models.AssetSchema, models.AssetTable, 90, 365, ctx)
	dry := exec.SimulatePropagation("retention_days", models.AssetSchema, models.AssetTable, 90, 365, ctx)

	assert.True(t, dry.Context.DryRun)
	assert.False(t, live.Context.DryRun)

	require.Equal(t, len(live.Events), len(dry.Events))
	for i := range live.Events {
		assert.Equal(t, live.Events[i].Status, dry.Events[i].Status)
		assert.Equal(t, live.Events[i].ResultValue, dry.Events[i].ResultValue)
	}
	require.Equal(t, len(live.Conflicts), len(dry.Conflicts))
	for i := range live.Conflicts {
		assert.Equal(t, live.Conflicts[i].ResolvedValue, dry.Conflicts[i].ResolvedValue)
		assert.Equal(t, live.Conflicts[i].Reason, dry.Conflicts[i].Reason)
	}
}

func TestExecutePropagation_NoMatchingRules(t *testing.T) {
	exec := newTestExecutor(t)

	result := exec.ExecutePropagation("nonexistent_field", models.AssetTable, models.AssetColumn,
		"x", nil, testContext())

	assert.Equal(t, 0, result.TotalRules)
	assert.Empty(t, result.Events)
	assert.NotEmpty(t, result.Summary)
}

func TestGetExecutionSummary(t *testing.T) {
	exec := newTestExecutor(t)

	result := exec.ExecutePropagation("retention_days", models.AssetSchema, models.AssetTable,
		90, 365, testContext())

	summary := exec.GetExecutionSummary(result)
	assert.True(t, strings.HasPrefix(summary, "## Propagation Execution"))
	assert.Contains(t, summary, "conflicts: 1")
	assert.Contains(t, summary, "retention_days_most_strict")
	assert.Contains(t, summary, "resolved to `90`")
}

func TestExecutionResult_JSONSerializable(t *testing.T) {
	exec := newTestExecutor(t)

	result := exec.ExecutePropagation("pii_classification", models.AssetColumn, models.AssetTable,
		[]any{"None", "Sensitive"}, "None", testContext())

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "execution_id")
	assert.Contains(t, decoded, "events")
	assert.Contains(t, decoded, "conflicts")
	assert.Contains(t, decoded, "summary")
}

func TestExecuteRule_StandaloneNeverThrows(t *testing.T) {
	exec := newTestExecutor(t)

	rule := models.RuleDefinition{
		RuleID:          "adhoc",
		SourceAsset:     models.AssetTable,
		TargetAsset:     models.AssetColumn,
		FieldID:         "anything",
		PropagationType: models.PropagationTransform,
		Transformation:  &models.TransformationSpec{Kind: "does-not-exist"},
		Enabled:         true,
	}

	event := exec.ExecuteRule(rule, "v", nil, testContext())
	assert.Equal(t, models.EventFailed, event.Status)
	assert.NotEmpty(t, event.Error)
	assert.NotEmpty(t, event.EventID)
}
