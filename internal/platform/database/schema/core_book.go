package schema

// BookTable represents the 'core.book' table.
type BookTable struct {
	Table            string
	ID               string
	OwnerUserID      string
	Title            string
	Author           string
	Genre            string
	Language         string
	FileFormat       string
	FilePath         string
	FileSize         string
	CoverPath        string
	Metadata         string
	TotalPages       string
	EstimatedMinutes string
	IsParsed         string
	ParsingProgress  string
	ParsingError     string
	CreatedAt        string
	UpdatedAt        string
	LastAccessedAt   string
}

// CoreBook is the schema definition for core.book.
var CoreBook = BookTable{
	Table:            "core.book",
	ID:               "id",
	OwnerUserID:      "owneruserid",
	Title:            "title",
	Author:           "author",
	Genre:            "genre",
	Language:         "language",
	FileFormat:       "fileformat",
	FilePath:         "filepath",
	FileSize:         "filesize",
	CoverPath:        "coverpath",
	Metadata:         "metadata",
	TotalPages:       "totalpages",
	EstimatedMinutes: "estimatedreadminutes",
	IsParsed:         "isparsed",
	ParsingProgress:  "parsingprogress",
	ParsingError:     "parsingerror",
	CreatedAt:        "createdat",
	UpdatedAt:        "updatedat",
	LastAccessedAt:   "lastaccessedat",
}

// Columns returns all standard column names.
func (t BookTable) Columns() []string {
	return []string{
		t.ID, t.OwnerUserID, t.Title, t.Author, t.Genre, t.Language, t.FileFormat,
		t.FilePath, t.FileSize, t.CoverPath, t.Metadata, t.TotalPages, t.EstimatedMinutes,
		t.IsParsed, t.ParsingProgress, t.ParsingError, t.CreatedAt, t.UpdatedAt, t.LastAccessedAt,
	}
}
