package schema

// CanaryStageRecordTable represents the 'platform.canary_stage_record' table.
type CanaryStageRecordTable struct {
	Table          string
	ID             string
	Stage          string
	RolloutPercent string
	UpdatedAt      string
	UpdatedBy      string
	Notes          string
}

// CanaryStageRecord is the schema definition for platform.canary_stage_record.
var CanaryStageRecord = CanaryStageRecordTable{
	Table:          "platform.canary_stage_record",
	ID:             "id",
	Stage:          "stage",
	RolloutPercent: "rolloutpercent",
	UpdatedAt:      "updatedat",
	UpdatedBy:      "updatedby",
	Notes:          "notes",
}

// Columns returns all standard column names.
func (t CanaryStageRecordTable) Columns() []string {
	return []string{
		t.ID, t.Stage, t.RolloutPercent, t.UpdatedAt, t.UpdatedBy, t.Notes,
	}
}
