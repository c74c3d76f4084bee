package handlers

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/gregmartell-atlan/mdlh-engine/pkg/config"
	"github.com/gregmartell-atlan/mdlh-engine/pkg/models"
	"github.com/gregmartell-atlan/mdlh-engine/pkg/services"
)

// newSessions returns a live session manager plus one registered session for
// handler tests. The janitor is disabled so tests stay deterministic.
func newSessions(t *testing.T) (services.SessionManager, *services.Session) {
	t.Helper()
	mgr := services.NewSessionManager(config.SessionConfig{IdleTTLMinutes: 60}, zap.NewNop())
	t.Cleanup(mgr.Close)
	session := mgr.Create(nil, services.ConnectionDetails{
		Account:   "acme",
		User:      "bob",
		Warehouse: "wh1",
		Role:      "analyst",
	})
	return mgr, session
}

type fakeQueryService struct {
	submit  *models.QuerySubmitResponse
	status  *models.QueryStatusResponse
	results *models.QueryResultsPage
	err     error

	lastRequest models.QueryRequest
	cancelled   []string
}

func (f *fakeQueryService) Execute(_ context.Context, _ *services.Session, req models.QueryRequest) (*models.QuerySubmitResponse, error) {
	f.lastRequest = req
	return f.submit, f.err
}

func (f *fakeQueryService) Status(_ *services.Session, _ string) (*models.QueryStatusResponse, error) {
	return f.status, f.err
}

func (f *fakeQueryService) Results(_ *services.Session, _ string, _, _ int) (*models.QueryResultsPage, error) {
	return f.results, f.err
}

func (f *fakeQueryService) Cancel(_ *services.Session, queryID string) error {
	f.cancelled = append(f.cancelled, queryID)
	return f.err
}

type fakeHistoryService struct {
	page    *models.QueryHistoryPage
	cleared int64
	err     error

	lastStatus string
}

func (f *fakeHistoryService) Record(context.Context, models.QueryHistoryItem) error { return f.err }

func (f *fakeHistoryService) List(_ context.Context, status string, _, _ int) (*models.QueryHistoryPage, error) {
	f.lastStatus = status
	return f.page, f.err
}

func (f *fakeHistoryService) Get(context.Context, string) (*models.QueryHistoryItem, error) {
	return nil, f.err
}

func (f *fakeHistoryService) Clear(context.Context) (int64, error)        { return f.cleared, f.err }
func (f *fakeHistoryService) RunScheduler(context.Context, time.Duration) {}
func (f *fakeHistoryService) Prune(context.Context) (int64, error)        { return 0, f.err }
func (f *fakeHistoryService) DB() *sql.DB                                 { return nil }
func (f *fakeHistoryService) Close() error                                { return nil }

type fakeMetadataService struct {
	databases []models.DatabaseInfo
	schemas   []models.SchemaInfo
	tables    []models.TableInfo
	columns   []models.ColumnInfo
	err       error

	refreshed int
}

func (f *fakeMetadataService) ListDatabases(context.Context, *services.Session) ([]models.DatabaseInfo, error) {
	return f.databases, f.err
}

func (f *fakeMetadataService) ListSchemas(context.Context, *services.Session, string) ([]models.SchemaInfo, error) {
	return f.schemas, f.err
}

func (f *fakeMetadataService) ListTables(context.Context, *services.Session, string, string) ([]models.TableInfo, error) {
	return f.tables, f.err
}

func (f *fakeMetadataService) ListColumns(context.Context, *services.Session, string, string, string) ([]models.ColumnInfo, error) {
	return f.columns, f.err
}

func (f *fakeMetadataService) Refresh(*services.Session) { f.refreshed++ }

type fakeSnowflakeService struct {
	details *services.ConnectionDetails
	connErr error
	testErr error
}

func (f *fakeSnowflakeService) Connect(context.Context, services.ConnectionParams) (services.Connection, *services.ConnectionDetails, error) {
	if f.connErr != nil {
		return nil, nil, f.connErr
	}
	return nil, f.details, nil
}

func (f *fakeSnowflakeService) TestConnection(context.Context, services.Connection) error {
	return f.testErr
}

func (f *fakeSnowflakeService) ListDatabases(context.Context, services.Connection) ([]models.DatabaseInfo, error) {
	return nil, nil
}

func (f *fakeSnowflakeService) ListSchemas(context.Context, services.Connection, string) ([]models.SchemaInfo, error) {
	return nil, nil
}

func (f *fakeSnowflakeService) ListTables(context.Context, services.Connection, string, string) ([]models.TableInfo, error) {
	return nil, nil
}

func (f *fakeSnowflakeService) ListColumns(context.Context, services.Connection, string, string, string) ([]models.ColumnInfo, error) {
	return nil, nil
}

type fakeTenantConfigService struct {
	snapshot *models.SchemaSnapshot
	cfg      *models.TenantConfig
	err      error

	lastTenantID string
}

func (f *fakeTenantConfigService) DiscoverSchema(context.Context, services.Connection, string, string) (*models.SchemaSnapshot, error) {
	return f.snapshot, f.err
}

func (f *fakeTenantConfigService) ReconcileFields(*models.SchemaSnapshot) []models.FieldMapping {
	return nil
}

func (f *fakeTenantConfigService) BuildTenantConfig(_ context.Context, _ services.Connection, tenantID, _, _, _ string) (*models.TenantConfig, error) {
	f.lastTenantID = tenantID
	return f.cfg, f.err
}
