package models

import "time"

// QueryStatus is the lifecycle state of a submitted query.
type QueryStatus string

const (
	QueryPending   QueryStatus = "PENDING"
	QueryRunning   QueryStatus = "RUNNING"
	QuerySuccess   QueryStatus = "SUCCESS"
	QueryFailed    QueryStatus = "FAILED"
	QueryCancelled QueryStatus = "CANCELLED"
)

// ValidQueryStatus reports whether s names a known query status.
func ValidQueryStatus(s string) bool {
	switch QueryStatus(s) {
	case QueryPending, QueryRunning, QuerySuccess, QueryFailed, QueryCancelled:
		return true
	}
	return false
}

// QueryRequest is a request to execute a SQL query.
type QueryRequest struct {
	SQL       string `json:"sql"`
	Database  string `json:"database,omitempty"`
	Schema    string `json:"schema,omitempty"`
	Warehouse string `json:"warehouse,omitempty"`
	Timeout   int    `json:"timeout,omitempty"` // seconds
	Limit     int    `json:"limit,omitempty"`   // max rows to return
}

// ColumnMeta is column metadata attached to query results.
type ColumnMeta struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// QuerySubmitResponse is returned after submitting a query.
type QuerySubmitResponse struct {
	QueryID         string      `json:"query_id"`
	Status          QueryStatus `json:"status"`
	Message         string      `json:"message"`
	ExecutionTimeMs int64       `json:"execution_time_ms,omitempty"`
	RowCount        *int        `json:"row_count,omitempty"`
	FromCache       bool        `json:"from_cache,omitempty"`
}

// QueryStatusResponse reports the state of one query.
type QueryStatusResponse struct {
	QueryID         string      `json:"query_id"`
	Status          QueryStatus `json:"status"`
	RowCount        *int        `json:"row_count,omitempty"`
	ExecutionTimeMs *int64      `json:"execution_time_ms,omitempty"`
	ErrorMessage    string      `json:"error_message,omitempty"`
	StartedAt       *time.Time  `json:"started_at,omitempty"`
	CompletedAt     *time.Time  `json:"completed_at,omitempty"`
}

// QueryResultsPage is one page of stored query results.
type QueryResultsPage struct {
	QueryID   string       `json:"query_id"`
	Columns   []ColumnMeta `json:"columns"`
	Rows      [][]any      `json:"rows"`
	TotalRows int          `json:"total_rows"`
	Page      int          `json:"page"`
	PageSize  int          `json:"page_size"`
	HasMore   bool         `json:"has_more"`
}

// QueryHistoryItem is a single persisted history entry.
type QueryHistoryItem struct {
	QueryID      string      `json:"query_id"`
	SQL          string      `json:"sql"`
	Database     string      `json:"database,omitempty"`
	Schema       string      `json:"schema,omitempty"`
	Warehouse    string      `json:"warehouse,omitempty"`
	Status       QueryStatus `json:"status"`
	RowCount     *int        `json:"row_count,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
	StartedAt    time.Time   `json:"started_at"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
	DurationMs   *int64      `json:"duration_ms,omitempty"`
}

// QueryHistoryPage is a paginated history listing.
type QueryHistoryPage struct {
	Items  []QueryHistoryItem `json:"items"`
	Total  int                `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}
