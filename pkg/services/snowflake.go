package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/snowflakedb/gosnowflake"
	"go.uber.org/zap"

	"github.com/gregmartell-atlan/mdlh-engine/pkg/apperrors"
	"github.com/gregmartell-atlan/mdlh-engine/pkg/config"
	"github.com/gregmartell-atlan/mdlh-engine/pkg/logging"
	"github.com/gregmartell-atlan/mdlh-engine/pkg/models"
	sqlguard "github.com/gregmartell-atlan/mdlh-engine/pkg/sql"
)

// Connection is the surface a live Snowflake connection exposes to the
// service layer. *sql.DB satisfies it.
type Connection interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	PingContext(ctx context.Context) error
	Close() error
}

// ConnectionParams describes one connection request. Empty fields fall back
// to the server-side configuration defaults.
type ConnectionParams struct {
	Account       string `json:"account,omitempty"`
	User          string `json:"user,omitempty"`
	Password      string `json:"-"`
	Token         string `json:"-"`
	Authenticator string `json:"authenticator,omitempty"` // password, oauth, externalbrowser
	Warehouse     string `json:"warehouse,omitempty"`
	Database      string `json:"database,omitempty"`
	Schema        string `json:"schema,omitempty"`
	Role          string `json:"role,omitempty"`
}

// ConnectionDetails are the resolved, non-secret connection attributes of an
// established session.
type ConnectionDetails struct {
	Account   string `json:"account"`
	User      string `json:"user"`
	Warehouse string `json:"warehouse"`
	Database  string `json:"database"`
	Schema    string `json:"schema"`
	Role      string `json:"role,omitempty"`
}

// CacheScope keys cached metadata so two sessions share entries only when
// they would see identical catalog contents.
func (d ConnectionDetails) CacheScope() string {
	return strings.ToUpper(fmt.Sprintf("%s:%s:%s:%s", d.Account, d.User, d.Role, d.Warehouse))
}

// SnowflakeService opens connections and reads catalog metadata.
type SnowflakeService interface {
	// Connect opens and verifies a connection, merging params over the
	// configured defaults.
	Connect(ctx context.Context, params ConnectionParams) (Connection, *ConnectionDetails, error)

	// TestConnection verifies an existing connection is still usable.
	TestConnection(ctx context.Context, conn Connection) error

	// ListDatabases returns the databases visible to the connection's role.
	ListDatabases(ctx context.Context, conn Connection) ([]models.DatabaseInfo, error)

	// ListSchemas returns the schemas of one database.
	ListSchemas(ctx context.Context, conn Connection, database string) ([]models.SchemaInfo, error)

	// ListTables returns tables and views of one schema with row counts,
	// largest first.
	ListTables(ctx context.Context, conn Connection, database, schema string) ([]models.TableInfo, error)

	// ListColumns describes the columns of one table.
	ListColumns(ctx context.Context, conn Connection, database, schema, table string) ([]models.ColumnInfo, error)
}

type snowflakeService struct {
	cfg    config.SnowflakeConfig
	open   func(dsn string) (Connection, error)
	logger *zap.Logger
}

// SnowflakeOption customizes the service at construction time.
type SnowflakeOption func(*snowflakeService)

// WithConnectionOpener replaces the driver-backed opener, for tests.
func WithConnectionOpener(open func(dsn string) (Connection, error)) SnowflakeOption {
	return func(s *snowflakeService) { s.open = open }
}

// NewSnowflakeService creates a SnowflakeService over the gosnowflake driver.
func NewSnowflakeService(cfg config.SnowflakeConfig, logger *zap.Logger, opts ...SnowflakeOption) SnowflakeService {
	s := &snowflakeService{
		cfg: cfg,
		open: func(dsn string) (Connection, error) {
			return sql.Open("snowflake", dsn)
		},
		logger: logger.Named("snowflake-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ SnowflakeService = (*snowflakeService)(nil)

func (s *snowflakeService) Connect(ctx context.Context, params ConnectionParams) (Connection, *ConnectionDetails, error) {
	resolved := s.resolve(params)

	dsn, details, err := buildDSN(resolved, s.cfg.StatementTimeoutSeconds)
	if err != nil {
		return nil, nil, fmt.Errorf("build connection string: %w", err)
	}

	conn, err := s.open(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open connection: %w", err)
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		s.logger.Warn("connection verification failed",
			zap.String("account", details.Account),
			zap.String("user", details.User),
			zap.String("error", logging.SanitizeError(err)))
		return nil, nil, s.classify(err)
	}

	s.logger.Info("snowflake connection established",
		zap.String("account", details.Account),
		zap.String("user", details.User),
		zap.String("warehouse", details.Warehouse),
		zap.String("role", details.Role))
	return conn, details, nil
}

// resolve merges request params over the configured defaults.
func (s *snowflakeService) resolve(params ConnectionParams) ConnectionParams {
	if params.Account == "" {
		params.Account = s.cfg.Account
	}
	if params.User == "" {
		params.User = s.cfg.User
	}
	if params.Password == "" {
		params.Password = s.cfg.Password
	}
	if params.Token == "" {
		params.Token = s.cfg.Token
	}
	if params.Warehouse == "" {
		params.Warehouse = s.cfg.Warehouse
	}
	if params.Database == "" {
		params.Database = s.cfg.Database
	}
	if params.Schema == "" {
		params.Schema = s.cfg.Schema
	}
	if params.Role == "" {
		params.Role = s.cfg.Role
	}
	if params.Authenticator == "" {
		switch {
		case params.Token != "":
			params.Authenticator = "oauth"
		case params.Password != "":
			params.Authenticator = "password"
		default:
			params.Authenticator = "externalbrowser"
		}
	}
	return params
}

func buildDSN(params ConnectionParams, statementTimeoutSeconds int) (string, *ConnectionDetails, error) {
	if params.Account == "" {
		return "", nil, fmt.Errorf("account is required")
	}
	if params.User == "" {
		return "", nil, fmt.Errorf("user is required")
	}

	sfCfg := &gosnowflake.Config{
		Account:   params.Account,
		User:      params.User,
		Warehouse: params.Warehouse,
		Database:  params.Database,
		Schema:    params.Schema,
		Role:      params.Role,
		Params:    map[string]*string{},
	}
	if statementTimeoutSeconds > 0 {
		timeout := fmt.Sprintf("%d", statementTimeoutSeconds)
		sfCfg.Params["STATEMENT_TIMEOUT_IN_SECONDS"] = &timeout
	}

	switch params.Authenticator {
	case "oauth":
		if params.Token == "" {
			return "", nil, fmt.Errorf("oauth authenticator requires a token")
		}
		sfCfg.Authenticator = gosnowflake.AuthTypeOAuth
		sfCfg.Token = params.Token
	case "externalbrowser":
		sfCfg.Authenticator = gosnowflake.AuthTypeExternalBrowser
	case "password", "":
		if params.Password == "" {
			return "", nil, fmt.Errorf("password authenticator requires a password")
		}
		sfCfg.Authenticator = gosnowflake.AuthTypeSnowflake
		sfCfg.Password = params.Password
	default:
		return "", nil, fmt.Errorf("unsupported authenticator %q", params.Authenticator)
	}

	dsn, err := gosnowflake.DSN(sfCfg)
	if err != nil {
		return "", nil, err
	}

	return dsn, &ConnectionDetails{
		Account:   params.Account,
		User:      params.User,
		Warehouse: params.Warehouse,
		Database:  params.Database,
		Schema:    params.Schema,
		Role:      params.Role,
	}, nil
}

func (s *snowflakeService) TestConnection(ctx context.Context, conn Connection) error {
	if conn == nil {
		return apperrors.ErrNotConnected
	}
	if err := conn.PingContext(ctx); err != nil {
		return s.classify(err)
	}
	return nil
}

func (s *snowflakeService) ListDatabases(ctx context.Context, conn Connection) ([]models.DatabaseInfo, error) {
	rows, err := s.query(ctx, conn, "SHOW DATABASES")
	if err != nil {
		return nil, err
	}

	databases := make([]models.DatabaseInfo, 0, len(rows))
	for _, row := range rows {
		databases = append(databases, models.DatabaseInfo{
			Name:    row.str("name"),
			Owner:   row.strPtr("owner"),
			Created: row.strPtr("created_on"),
			Comment: row.strPtr("comment"),
		})
	}
	return databases, nil
}

func (s *snowflakeService) ListSchemas(ctx context.Context, conn Connection, database string) ([]models.SchemaInfo, error) {
	if err := sqlguard.ValidateIdentifier(database); err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrInvalidIdentifier, database)
	}

	rows, err := s.query(ctx, conn, fmt.Sprintf("SHOW SCHEMAS IN DATABASE %s", sqlguard.QuoteIdentifier(database)))
	if err != nil {
		return nil, err
	}

	schemas := make([]models.SchemaInfo, 0, len(rows))
	for _, row := range rows {
		schemas = append(schemas, models.SchemaInfo{
			Name:     row.str("name"),
			Database: database,
			Owner:    row.strPtr("owner"),
			Comment:  row.strPtr("comment"),
		})
	}
	return schemas, nil
}

func (s *snowflakeService) ListTables(ctx context.Context, conn Connection, database, schema string) ([]models.TableInfo, error) {
	for _, name := range []string{database, schema} {
		if err := sqlguard.ValidateIdentifier(name); err != nil {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrInvalidIdentifier, name)
		}
	}

	// INFORMATION_SCHEMA row counts are maintained by Snowflake and beat
	// SHOW TABLES output; largest tables first so exploration starts with
	// the interesting ones.
	query := fmt.Sprintf(
		`SELECT table_name, table_type, row_count, bytes, comment
		 FROM %s.INFORMATION_SCHEMA.TABLES
		 WHERE table_schema = '%s' AND table_type IN ('BASE TABLE', 'VIEW')
		 ORDER BY row_count DESC NULLS LAST`,
		sqlguard.QuoteIdentifier(database), escapeLiteral(schema))

	rows, err := s.query(ctx, conn, query)
	if err != nil {
		return nil, err
	}

	tables := make([]models.TableInfo, 0, len(rows))
	for _, row := range rows {
		kind := "TABLE"
		if strings.EqualFold(row.str("table_type"), "VIEW") {
			kind = "VIEW"
		}
		tables = append(tables, models.TableInfo{
			Name:     row.str("table_name"),
			Database: database,
			Schema:   schema,
			Kind:     kind,
			RowCount: row.intPtr("row_count"),
			Bytes:    row.intPtr("bytes"),
			Comment:  row.strPtr("comment"),
		})
	}
	return tables, nil
}

func (s *snowflakeService) ListColumns(ctx context.Context, conn Connection, database, schema, table string) ([]models.ColumnInfo, error) {
	for _, name := range []string{database, schema, table} {
		if err := sqlguard.ValidateIdentifier(name); err != nil {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrInvalidIdentifier, name)
		}
	}

	query := fmt.Sprintf("DESCRIBE TABLE %s", sqlguard.QualifiedName(database, schema, table))
	rows, err := s.query(ctx, conn, query)
	if err != nil {
		return nil, err
	}

	columns := make([]models.ColumnInfo, 0, len(rows))
	for _, row := range rows {
		columns = append(columns, models.ColumnInfo{
			Name:       row.str("name"),
			Type:       row.str("type"),
			Kind:       row.str("kind"),
			Nullable:   strings.EqualFold(row.str("null?"), "Y"),
			Default:    row.strPtr("default"),
			PrimaryKey: strings.EqualFold(row.str("primary key"), "Y"),
			UniqueKey:  strings.EqualFold(row.str("unique key"), "Y"),
			Comment:    row.strPtr("comment"),
		})
	}
	return columns, nil
}

// query runs a statement and materializes the rows keyed by column name.
// Permission errors degrade to an empty result so a restricted role sees an
// empty catalog instead of a failure.
func (s *snowflakeService) query(ctx context.Context, conn Connection, query string) ([]resultRow, error) {
	if conn == nil {
		return nil, apperrors.ErrNotConnected
	}

	started := time.Now()
	out, err := rawRows(ctx, conn, query)
	if err != nil {
		if isPermissionError(err) {
			s.logger.Debug("catalog query not authorized, returning empty result",
				zap.String("query", logging.SanitizeQuery(query)))
			return nil, nil
		}
		return nil, s.classify(err)
	}

	s.logger.Debug("catalog query executed",
		zap.String("query", logging.SanitizeQuery(query)),
		zap.Int("rows", len(out)),
		zap.Duration("duration", time.Since(started)))
	return out, nil
}

// classify maps driver failures onto service-level sentinels.
func (s *snowflakeService) classify(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"no such host", "connection refused", "i/o timeout",
		"failed to connect", "network error", "context deadline exceeded",
	} {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %s", apperrors.ErrSnowflakeUnavailable, logging.SanitizeError(err))
		}
	}
	return err
}

func isPermissionError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not authorized") ||
		strings.Contains(msg, "insufficient privileges") ||
		strings.Contains(msg, "does not exist or not authorized")
}

// escapeLiteral doubles single quotes so a value is safe inside a SQL
// string literal.
func escapeLiteral(value string) string {
	return strings.ReplaceAll(value, "'", "''")
}

// resultRow is one materialized row keyed by lowercased column name.
type resultRow map[string]any

func (r resultRow) str(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (r resultRow) strPtr(key string) *string {
	if r[key] == nil {
		return nil
	}
	s := r.str(key)
	if s == "" {
		return nil
	}
	return &s
}

func (r resultRow) intPtr(key string) *int64 {
	switch v := r[key].(type) {
	case int64:
		return &v
	case int:
		n := int64(v)
		return &n
	case float64:
		n := int64(v)
		return &n
	case []byte:
		var n int64
		if _, err := fmt.Sscanf(string(v), "%d", &n); err == nil {
			return &n
		}
	case string:
		var n int64
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return &n
		}
	}
	return nil
}
