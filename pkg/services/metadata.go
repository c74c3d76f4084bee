package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/gregmartell-atlan/mdlh-engine/pkg/models"
)

// MetadataService serves catalog listings for a session, consulting the
// cache before Snowflake.
type MetadataService interface {
	ListDatabases(ctx context.Context, session *Session) ([]models.DatabaseInfo, error)
	ListSchemas(ctx context.Context, session *Session, database string) ([]models.SchemaInfo, error)
	ListTables(ctx context.Context, session *Session, database, schema string) ([]models.TableInfo, error)
	ListColumns(ctx context.Context, session *Session, database, schema, table string) ([]models.ColumnInfo, error)

	// Refresh drops every cached entry for the session's scope.
	Refresh(session *Session)
}

type metadataService struct {
	snowflake SnowflakeService
	cache     MetadataCache
	logger    *zap.Logger
}

// NewMetadataService creates a MetadataService.
func NewMetadataService(snowflake SnowflakeService, cache MetadataCache, logger *zap.Logger) MetadataService {
	return &metadataService{
		snowflake: snowflake,
		cache:     cache,
		logger:    logger.Named("metadata-service"),
	}
}

var _ MetadataService = (*metadataService)(nil)

func (s *metadataService) ListDatabases(ctx context.Context, session *Session) ([]models.DatabaseInfo, error) {
	scope := session.Details.CacheScope()
	if cached, ok := s.cache.GetDatabases(scope); ok {
		return cached, nil
	}

	databases, err := s.snowflake.ListDatabases(ctx, session.Conn)
	if err != nil {
		return nil, err
	}
	s.cache.SetDatabases(scope, databases)
	return databases, nil
}

func (s *metadataService) ListSchemas(ctx context.Context, session *Session, database string) ([]models.SchemaInfo, error) {
	scope := session.Details.CacheScope()
	if cached, ok := s.cache.GetSchemas(scope, database); ok {
		return cached, nil
	}

	schemas, err := s.snowflake.ListSchemas(ctx, session.Conn, database)
	if err != nil {
		return nil, err
	}
	s.cache.SetSchemas(scope, database, schemas)
	return schemas, nil
}

func (s *metadataService) ListTables(ctx context.Context, session *Session, database, schema string) ([]models.TableInfo, error) {
	scope := session.Details.CacheScope()
	if cached, ok := s.cache.GetTables(scope, database, schema); ok {
		return cached, nil
	}

	tables, err := s.snowflake.ListTables(ctx, session.Conn, database, schema)
	if err != nil {
		return nil, err
	}
	s.cache.SetTables(scope, database, schema, tables)
	return tables, nil
}

func (s *metadataService) ListColumns(ctx context.Context, session *Session, database, schema, table string) ([]models.ColumnInfo, error) {
	scope := session.Details.CacheScope()
	if cached, ok := s.cache.GetColumns(scope, database, schema, table); ok {
		return cached, nil
	}

	columns, err := s.snowflake.ListColumns(ctx, session.Conn, database, schema, table)
	if err != nil {
		return nil, err
	}
	s.cache.SetColumns(scope, database, schema, table, columns)
	return columns, nil
}

func (s *metadataService) Refresh(session *Session) {
	scope := session.Details.CacheScope()
	s.cache.Invalidate(scope)
	s.logger.Info("metadata cache refreshed", zap.String("scope", scope))
}
