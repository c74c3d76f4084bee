package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gregmartell-atlan/mdlh-engine/pkg/apperrors"
	"github.com/gregmartell-atlan/mdlh-engine/pkg/config"
)

func testSnowflakeConfig() config.SnowflakeConfig {
	return config.SnowflakeConfig{
		Account:                 "acme-prod",
		User:                    "svc_mdlh",
		Password:                "hunter2",
		Warehouse:               "COMPUTE_WH",
		Database:                "ATLAN_MDLH",
		Schema:                  "PUBLIC",
		Role:                    "GOVERNANCE",
		StatementTimeoutSeconds: 30,
	}
}

func TestResolve_MergesDefaults(t *testing.T) {
	s := NewSnowflakeService(testSnowflakeConfig(), zap.NewNop()).(*snowflakeService)

	resolved := s.resolve(ConnectionParams{})
	assert.Equal(t, "acme-prod", resolved.Account)
	assert.Equal(t, "svc_mdlh", resolved.User)
	assert.Equal(t, "COMPUTE_WH", resolved.Warehouse)
	assert.Equal(t, "password", resolved.Authenticator)

	resolved = s.resolve(ConnectionParams{Account: "other", Warehouse: "LOADING_WH"})
	assert.Equal(t, "other", resolved.Account)
	assert.Equal(t, "LOADING_WH", resolved.Warehouse)
	assert.Equal(t, "svc_mdlh", resolved.User, "unset fields still fall back")
}

func TestResolve_AuthenticatorInference(t *testing.T) {
	s := NewSnowflakeService(config.SnowflakeConfig{Account: "a", User: "u"}, zap.NewNop()).(*snowflakeService)

	assert.Equal(t, "oauth", s.resolve(ConnectionParams{Token: "tok"}).Authenticator)
	assert.Equal(t, "password", s.resolve(ConnectionParams{Password: "pw"}).Authenticator)
	assert.Equal(t, "externalbrowser", s.resolve(ConnectionParams{}).Authenticator)
}

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name    string
		params  ConnectionParams
		wantErr string
	}{
		{
			name: "password auth",
			params: ConnectionParams{
				Account: "acme", User: "bob", Password: "pw",
				Authenticator: "password", Warehouse: "WH", Database: "DB", Schema: "SCH",
			},
		},
		{
			name: "oauth auth",
			params: ConnectionParams{
				Account: "acme", User: "bob", Token: "tok", Authenticator: "oauth",
			},
		},
		{
			name: "external browser",
			params: ConnectionParams{
				Account: "acme", User: "bob", Authenticator: "externalbrowser",
			},
		},
		{
			name:    "missing account",
			params:  ConnectionParams{User: "bob", Password: "pw", Authenticator: "password"},
			wantErr: "account is required",
		},
		{
			name:    "missing user",
			params:  ConnectionParams{Account: "acme", Password: "pw", Authenticator: "password"},
			wantErr: "user is required",
		},
		{
			name:    "oauth without token",
			params:  ConnectionParams{Account: "acme", User: "bob", Authenticator: "oauth"},
			wantErr: "requires a token",
		},
		{
			name:    "password auth without password",
			params:  ConnectionParams{Account: "acme", User: "bob", Authenticator: "password"},
			wantErr: "requires a password",
		},
		{
			name:    "unsupported authenticator",
			params:  ConnectionParams{Account: "acme", User: "bob", Authenticator: "kerberos"},
			wantErr: "unsupported authenticator",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn, details, err := buildDSN(tt.params, 30)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, dsn)
			assert.Equal(t, tt.params.Account, details.Account)
			assert.Equal(t, tt.params.User, details.User)
		})
	}
}

func TestClassify(t *testing.T) {
	s := NewSnowflakeService(testSnowflakeConfig(), zap.NewNop()).(*snowflakeService)

	err := s.classify(errors.New("dial tcp: lookup acme.snowflakecomputing.com: no such host"))
	assert.ErrorIs(t, err, apperrors.ErrSnowflakeUnavailable)

	err = s.classify(errors.New("i/o timeout"))
	assert.ErrorIs(t, err, apperrors.ErrSnowflakeUnavailable)

	other := errors.New("SQL compilation error")
	assert.Equal(t, other, s.classify(other))
	assert.NoError(t, s.classify(nil))
}

func TestIsPermissionError(t *testing.T) {
	assert.True(t, isPermissionError(errors.New("Database 'X' does not exist or not authorized.")))
	assert.True(t, isPermissionError(errors.New("Insufficient privileges to operate on schema")))
	assert.False(t, isPermissionError(errors.New("syntax error")))
}

func TestResultRowHelpers(t *testing.T) {
	row := resultRow{
		"name":   "ASSETS",
		"bytes":  int64(2048),
		"count":  "17",
		"raw":    []byte("hello"),
		"absent": nil,
	}

	assert.Equal(t, "ASSETS", row.str("name"))
	assert.Equal(t, "hello", row.str("raw"))
	assert.Equal(t, "", row.str("absent"))

	require.NotNil(t, row.intPtr("bytes"))
	assert.Equal(t, int64(2048), *row.intPtr("bytes"))
	require.NotNil(t, row.intPtr("count"))
	assert.Equal(t, int64(17), *row.intPtr("count"))
	assert.Nil(t, row.intPtr("absent"))

	assert.Nil(t, row.strPtr("absent"))
	require.NotNil(t, row.strPtr("name"))
}

func TestEscapeLiteral(t *testing.T) {
	assert.Equal(t, "PUBLIC", escapeLiteral("PUBLIC"))
	assert.Equal(t, "O''BRIEN", escapeLiteral("O'BRIEN"))
	assert.True(t, strings.Contains(escapeLiteral("a'b'c"), "''"))
}

// cannedConn replays one fixed statement against an embedded database no
// matter what SQL the service builds, so catalog listings can run without a
// live warehouse while keeping the driver's real column metadata.
type cannedConn struct {
	db        *sql.DB
	statement string
}

func (c *cannedConn) QueryContext(ctx context.Context, _ string, _ ...any) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, c.statement)
}

func (c *cannedConn) PingContext(ctx context.Context) error { return c.db.PingContext(ctx) }
func (c *cannedConn) Close() error                          { return c.db.Close() }

func TestListTables_UppercaseResultColumns(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	// Snowflake uppercases unquoted result identifiers; the aliases here
	// reproduce the column names INFORMATION_SCHEMA.TABLES actually returns.
	conn := &cannedConn{db: db, statement: `
		SELECT 'ASSETS' AS TABLE_NAME, 'BASE TABLE' AS TABLE_TYPE,
		       42 AS ROW_COUNT, 2048 AS BYTES, NULL AS COMMENT
		UNION ALL
		SELECT 'V_DAILY_USAGE', 'VIEW', NULL, NULL, 'daily rollup'
		ORDER BY TABLE_NAME`}

	s := NewSnowflakeService(testSnowflakeConfig(), zap.NewNop())
	tables, err := s.ListTables(context.Background(), conn, "ATLAN_MDLH", "PUBLIC")
	require.NoError(t, err)
	require.Len(t, tables, 2)

	assert.Equal(t, "ASSETS", tables[0].Name)
	assert.Equal(t, "TABLE", tables[0].Kind)
	require.NotNil(t, tables[0].RowCount)
	assert.Equal(t, int64(42), *tables[0].RowCount)
	require.NotNil(t, tables[0].Bytes)
	assert.Equal(t, int64(2048), *tables[0].Bytes)
	assert.Nil(t, tables[0].Comment)

	assert.Equal(t, "V_DAILY_USAGE", tables[1].Name)
	assert.Equal(t, "VIEW", tables[1].Kind)
	assert.Nil(t, tables[1].RowCount)
	require.NotNil(t, tables[1].Comment)
	assert.Equal(t, "daily rollup", *tables[1].Comment)
}

func TestRawRows_LowercasesColumnKeys(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := rawRows(context.Background(), db,
		"SELECT 'CUSTOMERS' AS TABLE_NAME, 42 AS ROW_COUNT")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "CUSTOMERS", rows[0].str("table_name"))
	require.NotNil(t, rows[0].intPtr("row_count"))
	assert.Equal(t, int64(42), *rows[0].intPtr("row_count"))
}
