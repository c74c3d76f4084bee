package models

// CanonicalField is one entry of the MDLH Foundation canonical field catalog.
type CanonicalField struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName"`
	Description string   `json:"description"`
	MDLHColumns []string `json:"mdlhColumns"`
	Category    string   `json:"category"`
}

// ReconciliationStatus describes how a canonical field was matched to a
// discovered MDLH column.
type ReconciliationStatus string

const (
	ReconciliationMatched      ReconciliationStatus = "MATCHED"
	ReconciliationAliasMatched ReconciliationStatus = "ALIAS_MATCHED"
	ReconciliationNotFound     ReconciliationStatus = "NOT_FOUND"
)

// FieldSource points a canonical field at a tenant attribute.
type FieldSource struct {
	Type      string `json:"type"` // "native"
	Attribute string `json:"attribute"`
}

// FieldMapping is one reconciled canonical-field-to-column mapping.
type FieldMapping struct {
	CanonicalFieldID     string               `json:"canonicalFieldId"`
	CanonicalFieldName   string               `json:"canonicalFieldName"`
	TenantSource         *FieldSource         `json:"tenantSource"`
	Status               string               `json:"status"` // "auto" or "pending"
	ReconciliationStatus ReconciliationStatus `json:"reconciliationStatus"`
	Confidence           float64              `json:"confidence"`
	ExpectedColumns      []string             `json:"expectedColumns"`
	MatchedColumn        string               `json:"matchedColumn,omitempty"`
}

// DiscoveredTable is one table found during schema discovery.
type DiscoveredTable struct {
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	RowCount *int64  `json:"rowCount"`
	Comment  *string `json:"comment"`
}

// DiscoveredColumn is one column found during schema discovery.
type DiscoveredColumn struct {
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Nullable bool    `json:"nullable"`
	Default  *string `json:"default"`
	Comment  *string `json:"comment"`
}

// CustomMetadataAttribute is one attribute of a custom metadata set.
type CustomMetadataAttribute struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Type        string `json:"type"`
}

// CustomMetadataSet groups attributes discovered from CUSTOMMETADATA_RELATIONSHIP.
type CustomMetadataSet struct {
	Name        string                    `json:"name"`
	DisplayName string                    `json:"displayName"`
	Attributes  []CustomMetadataAttribute `json:"attributes"`
}

// Classification is a tag discovered from TAG_RELATIONSHIP.
type Classification struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	UsageCount  int64  `json:"usageCount"`
}

// Domain is a glossary discovered from ATLASGLOSSARY_ENTITY.
type Domain struct {
	GUID          string `json:"guid"`
	Name          string `json:"name"`
	QualifiedName string `json:"qualifiedName"`
}

// SchemaSnapshot is the full result of one MDLH schema discovery pass.
type SchemaSnapshot struct {
	TenantID         string                        `json:"tenantId,omitempty"`
	Tables           []DiscoveredTable             `json:"tables"`
	Columns          map[string][]DiscoveredColumn `json:"columns"`
	NativeAttributes []string                      `json:"nativeAttributes,omitempty"`
	CustomMetadata   []CustomMetadataSet           `json:"customMetadata"`
	Classifications  []Classification              `json:"classifications"`
	Domains          []Domain                      `json:"domains"`
	DiscoveredAt     string                        `json:"discoveredAt"`
}

// TenantConfig is the assembled configuration handed to the frontend.
type TenantConfig struct {
	TenantID               string         `json:"tenantId"`
	BaseURL                string         `json:"baseUrl"`
	Version                int            `json:"version"`
	CreatedAt              string         `json:"createdAt"`
	UpdatedAt              string         `json:"updatedAt"`
	FieldMappings          []FieldMapping `json:"fieldMappings"`
	CustomFields           []FieldMapping `json:"customFields"`
	ClassificationMappings []any          `json:"classificationMappings"`
	ExcludedFields         []string       `json:"excludedFields"`
	LastSnapshotAt         string         `json:"lastSnapshotAt"`
	SchemaSnapshot         SchemaSnapshot `json:"schemaSnapshot"`
}
