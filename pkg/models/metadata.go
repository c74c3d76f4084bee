package models

// DatabaseInfo describes one accessible Snowflake database.
type DatabaseInfo struct {
	Name    string  `json:"name"`
	Owner   *string `json:"owner,omitempty"`
	Created *string `json:"created,omitempty"`
	Comment *string `json:"comment,omitempty"`
}

// SchemaInfo describes one schema within a database.
type SchemaInfo struct {
	Name     string  `json:"name"`
	Database string  `json:"database"`
	Owner    *string `json:"owner,omitempty"`
	Comment  *string `json:"comment,omitempty"`
}

// TableInfo describes a table or view. RowCount comes from
// INFORMATION_SCHEMA.TABLES, which is more accurate than SHOW TABLES.
type TableInfo struct {
	Name     string  `json:"name"`
	Database string  `json:"database"`
	Schema   string  `json:"schema"`
	Kind     string  `json:"kind"` // TABLE or VIEW
	Owner    *string `json:"owner,omitempty"`
	RowCount *int64  `json:"row_count,omitempty"`
	Bytes    *int64  `json:"bytes,omitempty"`
	Comment  *string `json:"comment,omitempty"`
}

// ColumnInfo describes one column of a table.
type ColumnInfo struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Kind       string  `json:"kind"`
	Nullable   bool    `json:"nullable"`
	Default    *string `json:"default,omitempty"`
	PrimaryKey bool    `json:"primary_key"`
	UniqueKey  bool    `json:"unique_key"`
	Comment    *string `json:"comment,omitempty"`
}
