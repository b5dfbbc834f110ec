package schema

// ReadingSessionTable represents the 'library.readingsession' table.
type ReadingSessionTable struct {
	Table           string
	ID              string
	UserID          string
	BookID          string
	StartedAt       string
	EndedAt         string
	DurationMinutes string
	StartPosition   string
	EndPosition     string
	IsActive        string
}

// LibraryReadingSession is the schema definition for library.readingsession.
var LibraryReadingSession = ReadingSessionTable{
	Table:           "library.readingsession",
	ID:              "id",
	UserID:          "userid",
	BookID:          "bookid",
	StartedAt:       "startedat",
	EndedAt:         "endedat",
	DurationMinutes: "durationminutes",
	StartPosition:   "startposition",
	EndPosition:     "endposition",
	IsActive:        "isactive",
}

// Columns returns all standard column names.
func (t ReadingSessionTable) Columns() []string {
	return []string{
		t.ID, t.UserID, t.BookID, t.StartedAt, t.EndedAt, t.DurationMinutes,
		t.StartPosition, t.EndPosition, t.IsActive,
	}
}
