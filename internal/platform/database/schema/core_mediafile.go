package schema

// GeneratedImageTable represents the 'core.generatedimage' table.
type GeneratedImageTable struct {
	Table             string
	ID                string
	DescriptionID     string
	UserID            string
	ImageRef          string
	LocalPath         string
	Prompt            string
	GenerationSeconds string
	Width             string
	Height            string
	CreatedAt         string
}

// CoreGeneratedImage is the schema definition for core.generatedimage.
var CoreGeneratedImage = GeneratedImageTable{
	Table:             "core.generatedimage",
	ID:                "id",
	DescriptionID:     "descriptionid",
	UserID:            "userid",
	ImageRef:          "imageref",
	LocalPath:         "localpath",
	Prompt:            "prompt",
	GenerationSeconds: "generationtimeseconds",
	Width:             "width",
	Height:            "height",
	CreatedAt:         "createdat",
}

// Columns returns all standard column names.
func (t GeneratedImageTable) Columns() []string {
	return []string{
		t.ID, t.DescriptionID, t.UserID, t.ImageRef, t.LocalPath,
		t.Prompt, t.GenerationSeconds, t.Width, t.Height, t.CreatedAt,
	}
}
