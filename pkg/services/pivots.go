package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gregmartell-atlan/mdlh-engine/pkg/apperrors"
	"github.com/gregmartell-atlan/mdlh-engine/pkg/models"
)

const pivotSchema = `
CREATE TABLE IF NOT EXISTS pivot_feedback (
	feedback_id      TEXT PRIMARY KEY,
	pivot_id         TEXT NOT NULL,
	rating           INTEGER,
	helpful          INTEGER,
	comment          TEXT,
	context_database TEXT,
	context_schema   TEXT,
	context_table    TEXT,
	query_id         TEXT,
	sql_text         TEXT,
	metadata         TEXT,
	created_at       TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pivot_feedback_pivot_id ON pivot_feedback(pivot_id);
`

// PivotFeedbackService records user ratings of pivot recommendations and
// aggregates them per pivot.
type PivotFeedbackService interface {
	// Record stores one feedback entry and returns its ID.
	Record(ctx context.Context, feedback models.PivotFeedback) (string, error)

	// Summary aggregates all feedback for one pivot.
	Summary(ctx context.Context, pivotID string) (*models.PivotFeedbackSummary, error)
}

type pivotFeedbackService struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPivotFeedbackService creates the service over the shared local store.
// The feedback table lives alongside query history.
func NewPivotFeedbackService(db *sql.DB, logger *zap.Logger) (PivotFeedbackService, error) {
	if _, err := db.Exec(pivotSchema); err != nil {
		return nil, fmt.Errorf("migrate pivot feedback table: %w", err)
	}
	return &pivotFeedbackService{
		db:     db,
		logger: logger.Named("pivot-feedback-service"),
	}, nil
}

var _ PivotFeedbackService = (*pivotFeedbackService)(nil)

func (s *pivotFeedbackService) Record(ctx context.Context, feedback models.PivotFeedback) (string, error) {
	if !feedback.Validate() {
		return "", fmt.Errorf("%w: pivot_id required, rating must be 1-5", apperrors.ErrInvalidRequest)
	}

	var metadata *string
	if len(feedback.Metadata) > 0 {
		data, err := json.Marshal(feedback.Metadata)
		if err != nil {
			return "", fmt.Errorf("encode feedback metadata: %w", err)
		}
		encoded := string(data)
		metadata = &encoded
	}

	var helpful *int
	if feedback.Helpful != nil {
		v := 0
		if *feedback.Helpful {
			v = 1
		}
		helpful = &v
	}

	feedbackID := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pivot_feedback
			(feedback_id, pivot_id, rating, helpful, comment,
			 context_database, context_schema, context_table,
			 query_id, sql_text, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		feedbackID, feedback.PivotID, feedback.Rating, helpful, feedback.Comment,
		feedback.ContextDatabase, feedback.ContextSchema, feedback.ContextTable,
		feedback.QueryID, feedback.SQL, metadata, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("record pivot feedback: %w", err)
	}

	s.logger.Info("pivot feedback recorded",
		zap.String("feedback_id", feedbackID),
		zap.String("pivot_id", feedback.PivotID))
	return feedbackID, nil
}

func (s *pivotFeedbackService) Summary(ctx context.Context, pivotID string) (*models.PivotFeedbackSummary, error) {
	var (
		total     int64
		avgRating sql.NullFloat64
		helpful   int64
		lastAt    sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       AVG(rating),
		       COALESCE(SUM(CASE WHEN helpful = 1 THEN 1 ELSE 0 END), 0),
		       MAX(created_at)
		FROM pivot_feedback WHERE pivot_id = ?`, pivotID).
		Scan(&total, &avgRating, &helpful, &lastAt)
	if err != nil {
		return nil, fmt.Errorf("summarize pivot feedback: %w", err)
	}

	summary := &models.PivotFeedbackSummary{
		PivotID:       pivotID,
		TotalFeedback: total,
		HelpfulCount:  helpful,
	}
	if avgRating.Valid {
		summary.AvgRating = &avgRating.Float64
	}
	if lastAt.Valid {
		summary.LastFeedbackAt = lastAt.Time.UTC().Format(time.RFC3339)
	}
	return summary, nil
}
