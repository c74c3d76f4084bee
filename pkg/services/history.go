package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/gregmartell-atlan/mdlh-engine/pkg/config"
	"github.com/gregmartell-atlan/mdlh-engine/pkg/models"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS query_history (
	query_id      TEXT PRIMARY KEY,
	sql_text      TEXT NOT NULL,
	database_name TEXT,
	schema_name   TEXT,
	warehouse     TEXT,
	status        TEXT NOT NULL,
	row_count     INTEGER,
	error_message TEXT,
	started_at    TIMESTAMP NOT NULL,
	completed_at  TIMESTAMP,
	duration_ms   INTEGER
);
CREATE INDEX IF NOT EXISTS idx_query_history_started_at ON query_history(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_query_history_status ON query_history(status);
`

// HistoryService persists executed queries locally so history survives
// session expiry and process restarts.
type HistoryService interface {
	// Record inserts or updates one history entry.
	Record(ctx context.Context, item models.QueryHistoryItem) error

	// List returns entries newest first, optionally filtered by status.
	List(ctx context.Context, status string, limit, offset int) (*models.QueryHistoryPage, error)

	// Get returns one entry by query ID.
	Get(ctx context.Context, queryID string) (*models.QueryHistoryItem, error)

	// Clear removes all entries and returns the number removed.
	Clear(ctx context.Context) (int64, error)

	// Prune removes entries older than the retention window.
	Prune(ctx context.Context) (int64, error)

	// RunScheduler starts a background goroutine that prunes on the given
	// interval. It runs immediately on startup, then repeats every
	// interval. Cancel the context to stop the scheduler.
	RunScheduler(ctx context.Context, interval time.Duration)

	// DB exposes the underlying store for sibling services sharing the
	// same local database file.
	DB() *sql.DB

	Close() error
}

type historyService struct {
	db        *sql.DB
	retention time.Duration
	logger    *zap.Logger
}

// NewHistoryService opens (and migrates) the history database.
func NewHistoryService(cfg config.HistoryConfig, logger *zap.Logger) (HistoryService, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if _, err := db.Exec(historySchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate history database: %w", err)
	}

	return &historyService{
		db:        db,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		logger:    logger.Named("history-service"),
	}, nil
}

var _ HistoryService = (*historyService)(nil)

func (s *historyService) Record(ctx context.Context, item models.QueryHistoryItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO query_history
			(query_id, sql_text, database_name, schema_name, warehouse, status,
			 row_count, error_message, started_at, completed_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(query_id) DO UPDATE SET
			status = excluded.status,
			row_count = excluded.row_count,
			error_message = excluded.error_message,
			completed_at = excluded.completed_at,
			duration_ms = excluded.duration_ms`,
		item.QueryID, item.SQL, item.Database, item.Schema, item.Warehouse,
		string(item.Status), item.RowCount, item.ErrorMessage,
		item.StartedAt, item.CompletedAt, item.DurationMs)
	if err != nil {
		return fmt.Errorf("record history entry: %w", err)
	}
	return nil
}

func (s *historyService) List(ctx context.Context, status string, limit, offset int) (*models.QueryHistoryPage, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	where := ""
	args := []any{}
	if status != "" {
		where = "WHERE status = ?"
		args = append(args, status)
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM query_history %s", where), args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count history entries: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT query_id, sql_text, database_name, schema_name, warehouse, status,
		       row_count, error_message, started_at, completed_at, duration_ms
		FROM query_history %s
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?`, where)
	rows, err := s.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("list history entries: %w", err)
	}
	defer rows.Close()

	page := &models.QueryHistoryPage{
		Items:  []models.QueryHistoryItem{},
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}
	for rows.Next() {
		item, err := scanHistoryItem(rows)
		if err != nil {
			return nil, err
		}
		page.Items = append(page.Items, item)
	}
	return page, rows.Err()
}

func (s *historyService) Get(ctx context.Context, queryID string) (*models.QueryHistoryItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT query_id, sql_text, database_name, schema_name, warehouse, status,
		       row_count, error_message, started_at, completed_at, duration_ms
		FROM query_history WHERE query_id = ?`, queryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	item, err := scanHistoryItem(rows)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *historyService) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM query_history")
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	return res.RowsAffected()
}

func (s *historyService) Prune(ctx context.Context) (int64, error) {
	if s.retention <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().Add(-s.retention)
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM query_history WHERE started_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	removed, err := res.RowsAffected()
	if err == nil && removed > 0 {
		s.logger.Info("history pruned",
			zap.Int64("removed", removed),
			zap.Time("cutoff", cutoff))
	}
	return removed, err
}

// RunScheduler starts a background loop that prunes expired history entries.
func (s *historyService) RunScheduler(ctx context.Context, interval time.Duration) {
	go func() {
		s.logger.Info("history retention scheduler started",
			zap.Duration("interval", interval),
			zap.Duration("retention", s.retention))

		// Run immediately on startup, then at each interval.
		if _, err := s.Prune(ctx); err != nil {
			s.logger.Error("history retention scheduler: prune failed", zap.Error(err))
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("history retention scheduler stopped")
				return
			case <-ticker.C:
				if _, err := s.Prune(ctx); err != nil {
					s.logger.Error("history retention scheduler: prune failed", zap.Error(err))
				}
			}
		}
	}()
}

func (s *historyService) DB() *sql.DB {
	return s.db
}

func (s *historyService) Close() error {
	return s.db.Close()
}

func scanHistoryItem(rows *sql.Rows) (models.QueryHistoryItem, error) {
	var (
		item         models.QueryHistoryItem
		database     sql.NullString
		schema       sql.NullString
		warehouse    sql.NullString
		status       string
		rowCount     sql.NullInt64
		errorMessage sql.NullString
		completedAt  sql.NullTime
		durationMs   sql.NullInt64
	)
	if err := rows.Scan(&item.QueryID, &item.SQL, &database, &schema, &warehouse,
		&status, &rowCount, &errorMessage, &item.StartedAt, &completedAt, &durationMs); err != nil {
		return item, fmt.Errorf("scan history entry: %w", err)
	}

	item.Database = database.String
	item.Schema = schema.String
	item.Warehouse = warehouse.String
	item.Status = models.QueryStatus(status)
	item.ErrorMessage = errorMessage.String
	if rowCount.Valid {
		n := int(rowCount.Int64)
		item.RowCount = &n
	}
	if completedAt.Valid {
		t := completedAt.Time
		item.CompletedAt = &t
	}
	if durationMs.Valid {
		d := durationMs.Int64
		item.DurationMs = &d
	}
	return item, nil
}
