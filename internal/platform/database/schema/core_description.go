package schema

// DescriptionTable represents the 'core.description' table.
type DescriptionTable struct {
	Table             string
	ID                string
	BookID            string
	ChapterID         string
	Type              string
	Content           string
	Context           string
	ConfidenceScore   string
	PriorityScore     string
	PositionInChapter string
	WordCount         string
	CreatedAt         string
}

// CoreDescription is the schema definition for core.description.
var CoreDescription = DescriptionTable{
	Table:             "core.description",
	ID:                "id",
	BookID:            "bookid",
	ChapterID:         "chapterid",
	Type:              "type",
	Content:           "content",
	Context:           "context",
	ConfidenceScore:   "confidencescore",
	PriorityScore:     "priorityscore",
	PositionInChapter: "positioninchapter",
	WordCount:         "wordcount",
	CreatedAt:         "createdat",
}

// Columns returns all standard column names.
func (t DescriptionTable) Columns() []string {
	return []string{
		t.ID, t.BookID, t.ChapterID, t.Type, t.Content, t.Context,
		t.ConfidenceScore, t.PriorityScore, t.PositionInChapter, t.WordCount, t.CreatedAt,
	}
}
