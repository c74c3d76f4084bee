package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gregmartell-atlan/mdlh-engine/pkg/apperrors"
	"github.com/gregmartell-atlan/mdlh-engine/pkg/config"
	"github.com/gregmartell-atlan/mdlh-engine/pkg/logging"
	"github.com/gregmartell-atlan/mdlh-engine/pkg/models"
	sqlguard "github.com/gregmartell-atlan/mdlh-engine/pkg/sql"
)

const (
	defaultRowLimit = 1000
	maxRowLimit     = 10000
	defaultPageSize = 100
)

// QueryService validates, executes and paginates read-only queries within a
// session.
type QueryService interface {
	// Execute runs one guarded query and stores its full result on the
	// session for pagination.
	Execute(ctx context.Context, session *Session, req models.QueryRequest) (*models.QuerySubmitResponse, error)

	// Status reports the lifecycle state of a stored query.
	Status(session *Session, queryID string) (*models.QueryStatusResponse, error)

	// Results returns one page of a stored result set.
	Results(session *Session, queryID string, page, pageSize int) (*models.QueryResultsPage, error)

	// Cancel aborts a running query.
	Cancel(session *Session, queryID string) error
}

type queryService struct {
	cache   MetadataCache
	history HistoryService
	timeout time.Duration
	logger  *zap.Logger
}

// NewQueryService creates a QueryService.
func NewQueryService(cfg config.SnowflakeConfig, cache MetadataCache, history HistoryService, logger *zap.Logger) QueryService {
	return &queryService{
		cache:   cache,
		history: history,
		timeout: time.Duration(cfg.StatementTimeoutSeconds) * time.Second,
		logger:  logger.Named("query-service"),
	}
}

var _ QueryService = (*queryService)(nil)

func (s *queryService) Execute(ctx context.Context, session *Session, req models.QueryRequest) (*models.QuerySubmitResponse, error) {
	if session == nil || session.Conn == nil {
		return nil, apperrors.ErrNotConnected
	}

	// Guard before touching Snowflake: identifiers clean, single read-only
	// statement.
	if offenders := sqlguard.CheckAllValues(map[string]any{
		"database":  req.Database,
		"schema":    req.Schema,
		"warehouse": req.Warehouse,
	}); len(offenders) > 0 {
		return nil, fmt.Errorf("%w: suspicious value for %s", apperrors.ErrQueryBlocked, offenders[0].Name)
	}

	validation := sqlguard.ValidateReadOnly(req.SQL)
	if validation.Error != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrQueryBlocked, validation.Error)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultRowLimit
	}
	if limit > maxRowLimit {
		limit = maxRowLimit
	}
	statement := sqlguard.ApplyLimit(validation.NormalizedSQL, limit)

	queryID := uuid.NewString()
	started := time.Now().UTC()

	scope := session.Details.CacheScope()
	if cached, ok := s.cache.GetQueryResult(scope, statement); ok {
		completed := time.Now().UTC()
		rowCount := len(cached.Rows)
		session.storeResult(&storedResult{
			QueryID:     queryID,
			SQL:         statement,
			Status:      models.QuerySuccess,
			Columns:     cached.Columns,
			Rows:        cached.Rows,
			StartedAt:   started,
			CompletedAt: &completed,
			FromCache:   true,
		})
		return &models.QuerySubmitResponse{
			QueryID:   queryID,
			Status:    models.QuerySuccess,
			Message:   "query served from cache",
			RowCount:  &rowCount,
			FromCache: true,
		}, nil
	}

	timeout := s.timeout
	if req.Timeout > 0 {
		timeout = time.Duration(req.Timeout) * time.Second
	}
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stored := &storedResult{
		QueryID:   queryID,
		SQL:       statement,
		Status:    models.QueryRunning,
		StartedAt: started,
		cancel:    cancel,
	}
	session.storeResult(stored)

	columns, rows, err := s.fetch(queryCtx, session.Conn, statement)
	completed := time.Now().UTC()
	durationMs := completed.Sub(started).Milliseconds()

	stored.CompletedAt = &completed
	stored.DurationMs = durationMs

	if err != nil {
		stored.Status = models.QueryFailed
		if errors.Is(queryCtx.Err(), context.Canceled) {
			stored.Status = models.QueryCancelled
		}
		stored.ErrorMessage = logging.SanitizeError(err)
		s.record(session, stored, req)
		s.logger.Warn("query failed",
			zap.String("query_id", queryID),
			zap.String("sql", logging.SanitizeQuery(statement)),
			zap.String("error", stored.ErrorMessage))
		return &models.QuerySubmitResponse{
			QueryID: queryID,
			Status:  stored.Status,
			Message: stored.ErrorMessage,
		}, nil
	}

	stored.Status = models.QuerySuccess
	stored.Columns = columns
	stored.Rows = rows
	s.record(session, stored, req)
	s.cache.SetQueryResult(scope, statement, &cachedQueryResult{Columns: columns, Rows: rows})

	rowCount := len(rows)
	s.logger.Info("query executed",
		zap.String("query_id", queryID),
		zap.String("sql", logging.SanitizeQuery(statement)),
		zap.Int("rows", rowCount),
		zap.Int64("duration_ms", durationMs))
	return &models.QuerySubmitResponse{
		QueryID:         queryID,
		Status:          models.QuerySuccess,
		Message:         "query completed",
		ExecutionTimeMs: durationMs,
		RowCount:        &rowCount,
	}, nil
}

func (s *queryService) fetch(ctx context.Context, conn Connection, statement string) ([]models.ColumnMeta, [][]any, error) {
	rows, err := conn.QueryContext(ctx, statement)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, nil, err
	}
	columns := make([]models.ColumnMeta, len(types))
	for i, t := range types {
		columns[i] = models.ColumnMeta{Name: t.Name(), Type: t.DatabaseTypeName()}
	}

	var out [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out = append(out, values)
	}
	return columns, out, rows.Err()
}

func (s *queryService) record(session *Session, stored *storedResult, req models.QueryRequest) {
	item := models.QueryHistoryItem{
		QueryID:      stored.QueryID,
		SQL:          stored.SQL,
		Database:     req.Database,
		Schema:       req.Schema,
		Warehouse:    req.Warehouse,
		Status:       stored.Status,
		ErrorMessage: stored.ErrorMessage,
		StartedAt:    stored.StartedAt,
		CompletedAt:  stored.CompletedAt,
	}
	if stored.Status == models.QuerySuccess {
		n := len(stored.Rows)
		item.RowCount = &n
	}
	if stored.DurationMs > 0 {
		d := stored.DurationMs
		item.DurationMs = &d
	}

	// History writes must not fail the query itself.
	if err := s.history.Record(context.Background(), item); err != nil {
		s.logger.Warn("recording query history failed",
			zap.String("query_id", stored.QueryID),
			zap.Error(err))
	}
}

func (s *queryService) Status(session *Session, queryID string) (*models.QueryStatusResponse, error) {
	stored, ok := session.result(queryID)
	if !ok {
		return nil, apperrors.ErrNotFound
	}

	resp := &models.QueryStatusResponse{
		QueryID:      stored.QueryID,
		Status:       stored.Status,
		ErrorMessage: stored.ErrorMessage,
		StartedAt:    &stored.StartedAt,
		CompletedAt:  stored.CompletedAt,
	}
	if stored.Status == models.QuerySuccess {
		n := len(stored.Rows)
		resp.RowCount = &n
	}
	if stored.DurationMs > 0 {
		d := stored.DurationMs
		resp.ExecutionTimeMs = &d
	}
	return resp, nil
}

func (s *queryService) Results(session *Session, queryID string, page, pageSize int) (*models.QueryResultsPage, error) {
	stored, ok := session.result(queryID)
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	if stored.Status != models.QuerySuccess {
		return nil, fmt.Errorf("query %s is %s, results unavailable", queryID, stored.Status)
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > maxRowLimit {
		pageSize = defaultPageSize
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	total := len(stored.Rows)
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return &models.QueryResultsPage{
		QueryID:   queryID,
		Columns:   stored.Columns,
		Rows:      stored.Rows[start:end],
		TotalRows: total,
		Page:      page,
		PageSize:  pageSize,
		HasMore:   end < total,
	}, nil
}

func (s *queryService) Cancel(session *Session, queryID string) error {
	stored, ok := session.result(queryID)
	if !ok {
		return apperrors.ErrNotFound
	}
	if stored.Status != models.QueryRunning {
		return fmt.Errorf("query %s is %s, nothing to cancel", queryID, stored.Status)
	}
	if stored.cancel != nil {
		stored.cancel()
	}
	return nil
}
