package schema

// FeatureFlagTable represents the 'platform.feature_flag' table.
type FeatureFlagTable struct {
	Table        string
	ID           string
	Name         string
	Enabled      string
	Category     string
	Description  string
	DefaultValue string
	CreatedAt    string
	UpdatedAt    string
}

// FeatureFlag is the schema definition for platform.feature_flag.
var FeatureFlag = FeatureFlagTable{
	Table:        "platform.feature_flag",
	ID:           "id",
	Name:         "name",
	Enabled:      "enabled",
	Category:     "category",
	Description:  "description",
	DefaultValue: "defaultvalue",
	CreatedAt:    "createdat",
	UpdatedAt:    "updatedat",
}

// Columns returns all standard column names.
func (t FeatureFlagTable) Columns() []string {
	return []string{
		t.ID, t.Name, t.Enabled, t.Category, t.Description,
		t.DefaultValue, t.CreatedAt, t.UpdatedAt,
	}
}
