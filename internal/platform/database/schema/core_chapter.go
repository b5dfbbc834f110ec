package schema

// ChapterTable represents the 'core.chapter' table.
type ChapterTable struct {
	Table               string
	ID                  string
	BookID              string
	ChapterNumber       string
	Title               string
	Content             string
	HTMLContent         string
	WordCount           string
	IsDescriptionParsed string
	DescriptionsFound   string
}

// CoreChapter is the schema definition for core.chapter.
var CoreChapter = ChapterTable{
	Table:               "core.chapter",
	ID:                  "id",
	BookID:              "bookid",
	ChapterNumber:       "chapternumber",
	Title:               "title",
	Content:             "content",
	HTMLContent:         "htmlcontent",
	WordCount:           "wordcount",
	IsDescriptionParsed: "isdescriptionparsed",
	DescriptionsFound:   "descriptionsfound",
}

// Columns returns all standard column names.
func (t ChapterTable) Columns() []string {
	return []string{
		t.ID, t.BookID, t.ChapterNumber, t.Title, t.Content, t.HTMLContent,
		t.WordCount, t.IsDescriptionParsed, t.DescriptionsFound,
	}
}
