package schema

// ContentPageTable represents the 'content.page' table
type ContentPageTable struct {
	Table       string
	ID          string
	ChapterID   string
	FileOrder   string
	FilePath    string
	FileName    string
	ContentType string
	SizeBytes   string
	CreatedAt   string
}

// ContentPage is the schema definition for content.page
var ContentPage = ContentPageTable{
	Table:       "content.page",
	ID:          "id",
	ChapterID:   "chapterid",
	FileOrder:   "fileorder",
	FilePath:    "filepath",
	FileName:    "filename",
	ContentType: "contenttype",
	SizeBytes:   "sizebytes",
	CreatedAt:   "createdat",
}

func (t ContentPageTable) Columns() []string {
	return []string{t.ID, t.ChapterID, t.FileOrder, t.FilePath, t.FileName, t.ContentType, t.SizeBytes, t.CreatedAt}
}
