package models

// PivotFeedback is one user rating of a pivot recommendation.
type PivotFeedback struct {
	PivotID         string         `json:"pivot_id"`
	Rating          *int           `json:"rating,omitempty"` // 1-5
	Helpful         *bool          `json:"helpful,omitempty"`
	Comment         string         `json:"comment,omitempty"`
	ContextDatabase string         `json:"context_database,omitempty"`
	ContextSchema   string         `json:"context_schema,omitempty"`
	ContextTable    string         `json:"context_table,omitempty"`
	QueryID         string         `json:"query_id,omitempty"`
	SQL             string         `json:"sql,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// Validate rejects out-of-range ratings.
func (f *PivotFeedback) Validate() bool {
	if f.PivotID == "" {
		return false
	}
	if f.Rating != nil && (*f.Rating < 1 || *f.Rating > 5) {
		return false
	}
	return true
}

// PivotFeedbackSummary aggregates stored feedback for one pivot.
type PivotFeedbackSummary struct {
	PivotID        string   `json:"pivot_id"`
	TotalFeedback  int64    `json:"total_feedback"`
	AvgRating      *float64 `json:"avg_rating,omitempty"`
	HelpfulCount   int64    `json:"helpful_count"`
	LastFeedbackAt string   `json:"last_feedback_at,omitempty"`
}
