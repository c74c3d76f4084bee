package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gregmartell-atlan/mdlh-engine/pkg/models"
	sqlguard "github.com/gregmartell-atlan/mdlh-engine/pkg/sql"
)

// primaryAssetTable is the table canonical fields reconcile against.
const primaryAssetTable = "ASSETS"

// CanonicalFields is the MDLH Foundation canonical field catalog, in stable
// presentation order.
func CanonicalFields() []models.CanonicalField {
	return []models.CanonicalField{
		{ID: "guid", DisplayName: "GUID", Description: "Universal primary key for joins", MDLHColumns: []string{"GUID"}, Category: "identity"},
		{ID: "asset_name", DisplayName: "Asset Name", Description: "Name of the asset", MDLHColumns: []string{"ASSET_NAME", "NAME"}, Category: "identity"},
		{ID: "asset_type", DisplayName: "Asset Type", Description: "Type of asset (Table, View, Column, etc.)", MDLHColumns: []string{"ASSET_TYPE", "TYPE_NAME"}, Category: "identity"},
		{ID: "asset_qualified_name", DisplayName: "Qualified Name", Description: "Fully qualified name of the asset", MDLHColumns: []string{"ASSET_QUALIFIED_NAME", "QUALIFIED_NAME"}, Category: "identity"},
		{ID: "description", DisplayName: "Description", Description: "Short prose description of the asset", MDLHColumns: []string{"DESCRIPTION", "USER_DESCRIPTION"}, Category: "documentation"},
		{ID: "owner_users", DisplayName: "Owner Users", Description: "Individual users accountable for the asset", MDLHColumns: []string{"OWNER_USERS", "OWNERUSERS"}, Category: "ownership"},
		{ID: "owner_groups", DisplayName: "Owner Groups", Description: "Teams or groups accountable for the asset", MDLHColumns: []string{"OWNER_GROUPS", "OWNERGROUPS"}, Category: "ownership"},
		{ID: "tags", DisplayName: "Tags", Description: "Tags assigned to the asset", MDLHColumns: []string{"TAGS"}, Category: "governance"},
		{ID: "term_guids", DisplayName: "Term GUIDs", Description: "GUIDs of glossary terms linked to the asset", MDLHColumns: []string{"TERM_GUIDS", "TERMGUIDS"}, Category: "governance"},
		{ID: "has_lineage", DisplayName: "Has Lineage", Description: "Asset has upstream or downstream lineage", MDLHColumns: []string{"HAS_LINEAGE", "HASLINEAGE"}, Category: "lineage"},
		{ID: "certificate_status", DisplayName: "Certificate Status", Description: "Certification status of the asset", MDLHColumns: []string{"CERTIFICATE_STATUS", "CERTIFICATESTATUS"}, Category: "governance"},
		{ID: "popularity_score", DisplayName: "Popularity Score", Description: "Usage popularity score", MDLHColumns: []string{"POPULARITY_SCORE", "POPULARITYSCORE"}, Category: "usage"},
		{ID: "readme_guid", DisplayName: "README GUID", Description: "GUID of linked README documentation", MDLHColumns: []string{"README_GUID", "READMEGUID"}, Category: "documentation"},
		{ID: "connector_name", DisplayName: "Connector Name", Description: "Name of the data source connector", MDLHColumns: []string{"CONNECTOR_NAME", "CONNECTORNAME"}, Category: "identity"},
		{ID: "status", DisplayName: "Status", Description: "Asset status (ACTIVE, DELETED, etc.)", MDLHColumns: []string{"STATUS"}, Category: "identity"},
		{ID: "query_count", DisplayName: "Query Count", Description: "Number of queries executed against this asset", MDLHColumns: []string{"QUERY_COUNT", "QUERYCOUNT"}, Category: "usage"},
		{ID: "query_user_count", DisplayName: "Query User Count", Description: "Number of unique users who queried this asset", MDLHColumns: []string{"QUERY_USER_COUNT", "QUERYUSERCOUNT"}, Category: "usage"},
	}
}

// TenantConfigService discovers the MDLH dictionary schema and reconciles
// canonical fields against it.
type TenantConfigService interface {
	// DiscoverSchema inventories tables, columns, custom metadata,
	// classifications and domains in one MDLH schema.
	DiscoverSchema(ctx context.Context, conn Connection, database, schema string) (*models.SchemaSnapshot, error)

	// ReconcileFields maps canonical fields to discovered columns with a
	// confidence per match.
	ReconcileFields(snapshot *models.SchemaSnapshot) []models.FieldMapping

	// BuildTenantConfig runs discovery plus reconciliation and assembles
	// the frontend configuration.
	BuildTenantConfig(ctx context.Context, conn Connection, tenantID, baseURL, database, schema string) (*models.TenantConfig, error)
}

type tenantConfigService struct {
	snowflake SnowflakeService
	logger    *zap.Logger
	now       func() time.Time
}

// NewTenantConfigService creates a TenantConfigService.
func NewTenantConfigService(snowflake SnowflakeService, logger *zap.Logger) TenantConfigService {
	return &tenantConfigService{
		snowflake: snowflake,
		logger:    logger.Named("tenant-config-service"),
		now:       time.Now,
	}
}

var _ TenantConfigService = (*tenantConfigService)(nil)

func (s *tenantConfigService) DiscoverSchema(ctx context.Context, conn Connection, database, schema string) (*models.SchemaSnapshot, error) {
	s.logger.Info("discovering MDLH schema",
		zap.String("database", database),
		zap.String("schema", schema))

	tables, err := s.snowflake.ListTables(ctx, conn, database, schema)
	if err != nil {
		return nil, fmt.Errorf("discover tables: %w", err)
	}

	snapshot := &models.SchemaSnapshot{
		Tables:          make([]models.DiscoveredTable, 0, len(tables)),
		Columns:         make(map[string][]models.DiscoveredColumn, len(tables)),
		CustomMetadata:  []models.CustomMetadataSet{},
		Classifications: []models.Classification{},
		Domains:         []models.Domain{},
		DiscoveredAt:    s.now().UTC().Format(time.RFC3339),
	}

	tableNames := make(map[string]bool, len(tables))
	for _, table := range tables {
		tableNames[table.Name] = true
		snapshot.Tables = append(snapshot.Tables, models.DiscoveredTable{
			Name:     table.Name,
			Type:     table.Kind,
			RowCount: table.RowCount,
			Comment:  table.Comment,
		})

		columns, err := s.snowflake.ListColumns(ctx, conn, database, schema, table.Name)
		if err != nil {
			// One undescribable table must not sink the whole discovery.
			s.logger.Warn("describing table failed",
				zap.String("table", table.Name),
				zap.Error(err))
			snapshot.Columns[table.Name] = []models.DiscoveredColumn{}
			continue
		}
		discovered := make([]models.DiscoveredColumn, 0, len(columns))
		for _, col := range columns {
			discovered = append(discovered, models.DiscoveredColumn{
				Name:     col.Name,
				Type:     col.Type,
				Nullable: col.Nullable,
				Default:  col.Default,
				Comment:  col.Comment,
			})
		}
		snapshot.Columns[table.Name] = discovered
	}
	snapshot.NativeAttributes = nativeAttributes(snapshot.Columns)

	// The relationship tables are optional; missing ones just leave their
	// section empty.
	if tableNames["CUSTOMMETADATA_RELATIONSHIP"] {
		snapshot.CustomMetadata = s.discoverCustomMetadata(ctx, conn, database, schema)
	}
	if tableNames["TAG_RELATIONSHIP"] {
		snapshot.Classifications = s.discoverClassifications(ctx, conn, database, schema)
	}
	if tableNames["ATLASGLOSSARY_ENTITY"] {
		snapshot.Domains = s.discoverDomains(ctx, conn, database, schema)
	}

	return snapshot, nil
}

func (s *tenantConfigService) ReconcileFields(snapshot *models.SchemaSnapshot) []models.FieldMapping {
	columnNames := make(map[string]bool)
	for _, col := range snapshot.Columns[primaryAssetTable] {
		columnNames[strings.ToUpper(col.Name)] = true
	}

	fields := CanonicalFields()
	mappings := make([]models.FieldMapping, 0, len(fields))
	for _, field := range fields {
		mapping := models.FieldMapping{
			CanonicalFieldID:     field.ID,
			CanonicalFieldName:   field.DisplayName,
			Status:               "pending",
			ReconciliationStatus: models.ReconciliationNotFound,
			ExpectedColumns:      field.MDLHColumns,
		}

		for _, expected := range field.MDLHColumns {
			if columnNames[strings.ToUpper(expected)] {
				mapping.MatchedColumn = strings.ToUpper(expected)
				mapping.ReconciliationStatus = models.ReconciliationMatched
				mapping.Confidence = 1.0
				mapping.Status = "auto"
				break
			}
		}

		// Fuzzy pass: strip separators and look for containment either way.
		if mapping.MatchedColumn == "" {
			compact := strings.ReplaceAll(strings.ToUpper(field.ID), "_", "")
			for name := range columnNames {
				clean := strings.NewReplacer("_", "", "-", "").Replace(name)
				if strings.Contains(clean, compact) || strings.Contains(compact, clean) {
					mapping.MatchedColumn = name
					mapping.ReconciliationStatus = models.ReconciliationAliasMatched
					mapping.Confidence = 0.7
					break
				}
			}
		}

		if mapping.MatchedColumn != "" {
			mapping.TenantSource = &models.FieldSource{Type: "native", Attribute: mapping.MatchedColumn}
		}
		mappings = append(mappings, mapping)
	}
	return mappings
}

func (s *tenantConfigService) BuildTenantConfig(ctx context.Context, conn Connection, tenantID, baseURL, database, schema string) (*models.TenantConfig, error) {
	s.logger.Info("building tenant config", zap.String("tenant_id", tenantID))

	snapshot, err := s.DiscoverSchema(ctx, conn, database, schema)
	if err != nil {
		return nil, err
	}
	snapshot.TenantID = tenantID

	now := s.now().UTC().Format(time.RFC3339)
	return &models.TenantConfig{
		TenantID:               tenantID,
		BaseURL:                baseURL,
		Version:                1,
		CreatedAt:              now,
		UpdatedAt:              now,
		FieldMappings:          s.ReconcileFields(snapshot),
		CustomFields:           []models.FieldMapping{},
		ClassificationMappings: []any{},
		ExcludedFields:         []string{},
		LastSnapshotAt:         snapshot.DiscoveredAt,
		SchemaSnapshot:         *snapshot,
	}, nil
}

func (s *tenantConfigService) discoverCustomMetadata(ctx context.Context, conn Connection, database, schema string) []models.CustomMetadataSet {
	query := fmt.Sprintf(`
		SELECT DISTINCT SETDISPLAYNAME, ATTRIBUTEDISPLAYNAME, ATTRIBUTENAME
		FROM %s.%s."CUSTOMMETADATA_RELATIONSHIP"
		WHERE SETDISPLAYNAME IS NOT NULL
		ORDER BY SETDISPLAYNAME, ATTRIBUTEDISPLAYNAME`,
		sqlguard.QuoteIdentifier(database), sqlguard.QuoteIdentifier(schema))

	rows, err := s.relationshipRows(ctx, conn, query, "custom metadata")
	if err != nil {
		return []models.CustomMetadataSet{}
	}

	byName := make(map[string]*models.CustomMetadataSet)
	var order []string
	for _, row := range rows {
		setName := row.str("setdisplayname")
		if setName == "" {
			setName = "Unknown"
		}
		attrName := row.str("attributename")
		attrDisplay := row.str("attributedisplayname")
		if attrDisplay == "" {
			attrDisplay = attrName
		}
		if attrName == "" {
			attrName = attrDisplay
		}

		set, ok := byName[setName]
		if !ok {
			set = &models.CustomMetadataSet{
				Name:        strings.ToUpper(strings.ReplaceAll(setName, " ", "_")),
				DisplayName: setName,
				Attributes:  []models.CustomMetadataAttribute{},
			}
			byName[setName] = set
			order = append(order, setName)
		}

		exists := false
		for _, attr := range set.Attributes {
			if attr.Name == attrName {
				exists = true
				break
			}
		}
		if !exists {
			set.Attributes = append(set.Attributes, models.CustomMetadataAttribute{
				Name:        attrName,
				DisplayName: attrDisplay,
				Type:        "STRING",
			})
		}
	}

	sets := make([]models.CustomMetadataSet, 0, len(order))
	for _, name := range order {
		sets = append(sets, *byName[name])
	}
	return sets
}

func (s *tenantConfigService) discoverClassifications(ctx context.Context, conn Connection, database, schema string) []models.Classification {
	query := fmt.Sprintf(`
		SELECT TAGNAME, COUNT(DISTINCT ENTITYGUID) AS usage_count
		FROM %s.%s."TAG_RELATIONSHIP"
		WHERE TAGNAME IS NOT NULL
		GROUP BY TAGNAME
		ORDER BY usage_count DESC, TAGNAME`,
		sqlguard.QuoteIdentifier(database), sqlguard.QuoteIdentifier(schema))

	rows, err := s.relationshipRows(ctx, conn, query, "classifications")
	if err != nil {
		return []models.Classification{}
	}

	classifications := make([]models.Classification, 0, len(rows))
	for _, row := range rows {
		var usage int64
		if n := row.intPtr("usage_count"); n != nil {
			usage = *n
		}
		name := row.str("tagname")
		classifications = append(classifications, models.Classification{
			Name:        name,
			DisplayName: name,
			Description: fmt.Sprintf("Used on %d assets", usage),
			UsageCount:  usage,
		})
	}
	return classifications
}

func (s *tenantConfigService) discoverDomains(ctx context.Context, conn Connection, database, schema string) []models.Domain {
	query := fmt.Sprintf(`
		SELECT DISTINCT GUID, NAME, QUALIFIEDNAME
		FROM %s.%s."ATLASGLOSSARY_ENTITY"
		WHERE STATUS = 'ACTIVE'
		ORDER BY NAME
		LIMIT 100`,
		sqlguard.QuoteIdentifier(database), sqlguard.QuoteIdentifier(schema))

	rows, err := s.relationshipRows(ctx, conn, query, "domains")
	if err != nil {
		return []models.Domain{}
	}

	domains := make([]models.Domain, 0, len(rows))
	for _, row := range rows {
		name := row.str("name")
		if name == "" {
			name = "Unknown"
		}
		domains = append(domains, models.Domain{
			GUID:          row.str("guid"),
			Name:          name,
			QualifiedName: row.str("qualifiedname"),
		})
	}
	return domains
}

// relationshipRows runs one optional-table query, logging failures instead
// of propagating them.
func (s *tenantConfigService) relationshipRows(ctx context.Context, conn Connection, query, what string) ([]resultRow, error) {
	rows, err := rawRows(ctx, conn, query)
	if err != nil {
		s.logger.Warn("discovery query failed",
			zap.String("target", what),
			zap.Error(err))
		return nil, err
	}
	return rows, nil
}

// rawRows materializes a result set keyed by lowercased column name.
func rawRows(ctx context.Context, conn Connection, query string) ([]resultRow, error) {
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []resultRow
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(resultRow, len(columns))
		for i, col := range columns {
			row[strings.ToLower(col)] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func nativeAttributes(columnsByTable map[string][]models.DiscoveredColumn) []string {
	seen := make(map[string]bool)
	for _, columns := range columnsByTable {
		for _, col := range columns {
			seen[col.Name] = true
		}
	}
	attributes := make([]string, 0, len(seen))
	for name := range seen {
		attributes = append(attributes, name)
	}
	sort.Strings(attributes)
	return attributes
}
