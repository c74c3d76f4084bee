package propagation

import (
	"fmt"
	"strings"

	"github.com/gregmartell-atlan/mdlh-engine/pkg/models"
)

// renderSummary renders a markdown report of one execution for human review
// (review UI, audit log viewer).
func renderSummary(result *models.ExecutionResult) string {
	var b strings.Builder

	mode := "live"
	if result.Context.DryRun {
		mode = "dry run"
	}

	fmt.Fprintf(&b, "## Propagation Execution %s\n\n", result.ExecutionID)
	fmt.Fprintf(&b, "- Mode: %s\n", mode)
	if result.Context.UserID != "" {
		fmt.Fprintf(&b, "- Requested by: %s\n", result.Context.UserID)
	}
	if result.Context.Reason != "" {
		fmt.Fprintf(&b, "- Reason: %s\n", result.Context.Reason)
	}
	fmt.Fprintf(&b, "- Rules matched: %d, executed: %d\n", result.TotalRules, result.ExecutedRules)
	fmt.Fprintf(&b, "- Succeeded: %d, failed: %d, conflicts: %d\n",
		result.SuccessCount, result.FailureCount, result.ConflictCount)
	fmt.Fprintf(&b, "- Duration: %s\n", result.Duration)

	if result.FailureCount > 0 {
		b.WriteString("\n### Failures\n\n")
		for _, event := range result.Events {
			if event.Status != models.EventFailed {
				continue
			}
			fmt.Fprintf(&b, "- `%s`: %s\n", event.RuleID, event.Error)
		}
	}

	if len(result.Conflicts) > 0 {
		b.WriteString("\n### Conflicts\n\n")
		for _, conflict := range result.Conflicts {
			fmt.Fprintf(&b, "- `%s` on field `%s` (%s -> %s): inherited `%v` vs existing `%v`",
				conflict.RuleID, conflict.FieldID, conflict.SourceAsset, conflict.TargetAsset,
				conflict.SourceValue, conflict.TargetValue)
			if conflict.Resolved() {
				fmt.Fprintf(&b, " - resolved to `%v` by %s\n", conflict.ResolvedValue, conflict.ResolvedBy)
			} else {
				b.WriteString(" - unresolved, pending external review\n")
			}
		}
	}

	return b.String()
}
