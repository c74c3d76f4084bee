package models

// AssetType identifies a level in the MDLH asset hierarchy.
// The primary chain is linear Database > Schema > Table > Column;
// README, Asset and Process are non-hierarchical leaves attachable at any level.
type AssetType string

const (
	AssetDatabase AssetType = "Database"
	AssetSchema   AssetType = "Schema"
	AssetTable    AssetType = "Table"
	AssetColumn   AssetType = "Column"
	AssetReadme   AssetType = "README"
	AssetGeneric  AssetType = "Asset"
	AssetProcess  AssetType = "Process"
)

// hierarchyDepth maps the linear chain to depths; leaves are absent.
var hierarchyDepth = map[AssetType]int{
	AssetDatabase: 0,
	AssetSchema:   1,
	AssetTable:    2,
	AssetColumn:   3,
}

// Valid reports whether t is a member of the closed asset type set.
func (t AssetType) Valid() bool {
	switch t {
	case AssetDatabase, AssetSchema, AssetTable, AssetColumn, AssetReadme, AssetGeneric, AssetProcess:
		return true
	}
	return false
}

// Hierarchical reports whether t belongs to the linear Database>Schema>Table>Column chain.
func (t AssetType) Hierarchical() bool {
	_, ok := hierarchyDepth[t]
	return ok
}

// Depth returns the position in the linear chain (Database=0 .. Column=3)
// and false for non-hierarchical leaves.
func (t AssetType) Depth() (int, bool) {
	d, ok := hierarchyDepth[t]
	return d, ok
}
