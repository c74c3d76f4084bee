package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"

	"github.com/gregmartell-atlan/mdlh-engine/pkg/config"
	"github.com/gregmartell-atlan/mdlh-engine/pkg/models"
)

// CacheStats counts lookups across all cache segments.
type CacheStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
}

// cachedQueryResult is the payload stored per executed query.
type cachedQueryResult struct {
	Columns []models.ColumnMeta
	Rows    [][]any
}

// MetadataCache holds catalog listings and query results with per-kind TTLs.
// Keys are scoped by connection identity so sessions with different roles
// never see each other's entries.
type MetadataCache interface {
	GetDatabases(scope string) ([]models.DatabaseInfo, bool)
	SetDatabases(scope string, v []models.DatabaseInfo)

	GetSchemas(scope, database string) ([]models.SchemaInfo, bool)
	SetSchemas(scope, database string, v []models.SchemaInfo)

	GetTables(scope, database, schema string) ([]models.TableInfo, bool)
	SetTables(scope, database, schema string, v []models.TableInfo)

	GetColumns(scope, database, schema, table string) ([]models.ColumnInfo, bool)
	SetColumns(scope, database, schema, table string, v []models.ColumnInfo)

	GetQueryResult(scope, sql string) (*cachedQueryResult, bool)
	SetQueryResult(scope, sql string, v *cachedQueryResult)

	// Invalidate drops every entry for one connection scope.
	Invalidate(scope string)

	Stats() CacheStats
	Close()
}

type metadataCache struct {
	databases *ttlcache.Cache[string, []models.DatabaseInfo]
	schemas   *ttlcache.Cache[string, []models.SchemaInfo]
	tables    *ttlcache.Cache[string, []models.TableInfo]
	columns   *ttlcache.Cache[string, []models.ColumnInfo]
	queries   *ttlcache.Cache[string, *cachedQueryResult]

	hits   atomic.Int64
	misses atomic.Int64
	logger *zap.Logger
}

// NewMetadataCache creates the cache segments and starts their expiration
// loops.
func NewMetadataCache(cfg config.CacheConfig, logger *zap.Logger) MetadataCache {
	c := &metadataCache{
		databases: ttlcache.New(
			ttlcache.WithTTL[string, []models.DatabaseInfo](time.Duration(cfg.DatabasesTTLSeconds) * time.Second)),
		schemas: ttlcache.New(
			ttlcache.WithTTL[string, []models.SchemaInfo](time.Duration(cfg.SchemasTTLSeconds) * time.Second)),
		tables: ttlcache.New(
			ttlcache.WithTTL[string, []models.TableInfo](time.Duration(cfg.TablesTTLSeconds) * time.Second)),
		columns: ttlcache.New(
			ttlcache.WithTTL[string, []models.ColumnInfo](time.Duration(cfg.ColumnsTTLSeconds) * time.Second)),
		queries: ttlcache.New(
			ttlcache.WithTTL[string, *cachedQueryResult](time.Duration(cfg.QueryResultTTLSeconds)*time.Second),
			ttlcache.WithCapacity[string, *cachedQueryResult](uint64(cfg.QueryResultMaxEntries))),
		logger: logger.Named("metadata-cache"),
	}

	go c.databases.Start()
	go c.schemas.Start()
	go c.tables.Start()
	go c.columns.Start()
	go c.queries.Start()
	return c
}

var _ MetadataCache = (*metadataCache)(nil)

func (c *metadataCache) GetDatabases(scope string) ([]models.DatabaseInfo, bool) {
	return lookup(c, c.databases, scope)
}

func (c *metadataCache) SetDatabases(scope string, v []models.DatabaseInfo) {
	c.databases.Set(scope, v, ttlcache.DefaultTTL)
}

func (c *metadataCache) GetSchemas(scope, database string) ([]models.SchemaInfo, bool) {
	return lookup(c, c.schemas, scope+"|"+database)
}

func (c *metadataCache) SetSchemas(scope, database string, v []models.SchemaInfo) {
	c.schemas.Set(scope+"|"+database, v, ttlcache.DefaultTTL)
}

func (c *metadataCache) GetTables(scope, database, schema string) ([]models.TableInfo, bool) {
	return lookup(c, c.tables, fmt.Sprintf("%s|%s|%s", scope, database, schema))
}

func (c *metadataCache) SetTables(scope, database, schema string, v []models.TableInfo) {
	c.tables.Set(fmt.Sprintf("%s|%s|%s", scope, database, schema), v, ttlcache.DefaultTTL)
}

func (c *metadataCache) GetColumns(scope, database, schema, table string) ([]models.ColumnInfo, bool) {
	return lookup(c, c.columns, fmt.Sprintf("%s|%s|%s|%s", scope, database, schema, table))
}

func (c *metadataCache) SetColumns(scope, database, schema, table string, v []models.ColumnInfo) {
	c.columns.Set(fmt.Sprintf("%s|%s|%s|%s", scope, database, schema, table), v, ttlcache.DefaultTTL)
}

func (c *metadataCache) GetQueryResult(scope, sql string) (*cachedQueryResult, bool) {
	return lookup(c, c.queries, queryCacheKey(scope, sql))
}

func (c *metadataCache) SetQueryResult(scope, sql string, v *cachedQueryResult) {
	c.queries.Set(queryCacheKey(scope, sql), v, ttlcache.DefaultTTL)
}

func (c *metadataCache) Invalidate(scope string) {
	prefix := scope + "|"
	dropScoped(c.databases, scope, prefix)
	dropScoped(c.schemas, scope, prefix)
	dropScoped(c.tables, scope, prefix)
	dropScoped(c.columns, scope, prefix)
	dropScoped(c.queries, scope, prefix)
	c.logger.Debug("cache scope invalidated", zap.String("scope", scope))
}

func (c *metadataCache) Stats() CacheStats {
	return CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Entries: c.databases.Len() + c.schemas.Len() + c.tables.Len() +
			c.columns.Len() + c.queries.Len(),
	}
}

func (c *metadataCache) Close() {
	c.databases.Stop()
	c.schemas.Stop()
	c.tables.Stop()
	c.columns.Stop()
	c.queries.Stop()
}

// lookup wraps a typed cache read with hit/miss accounting.
func lookup[V any](c *metadataCache, cache *ttlcache.Cache[string, V], key string) (V, bool) {
	item := cache.Get(key)
	if item == nil {
		var zero V
		c.misses.Add(1)
		return zero, false
	}
	c.hits.Add(1)
	return item.Value(), true
}

// dropScoped removes the scope's bare key and every key under its prefix.
func dropScoped[V any](cache *ttlcache.Cache[string, V], scope, prefix string) {
	cache.Delete(scope)
	var doomed []string
	cache.Range(func(item *ttlcache.Item[string, V]) bool {
		if len(item.Key()) >= len(prefix) && item.Key()[:len(prefix)] == prefix {
			doomed = append(doomed, item.Key())
		}
		return true
	})
	for _, key := range doomed {
		cache.Delete(key)
	}
}

// queryCacheKey hashes the SQL so arbitrarily long statements produce fixed
// size keys.
func queryCacheKey(scope, sql string) string {
	sum := sha256.Sum256([]byte(sql))
	return scope + "|" + hex.EncodeToString(sum[:])
}
