package schema

// ContentChapterTable represents the 'content.chapter' table
type ContentChapterTable struct {
	Table           string
	ID              string
	TitleID         string
	Title           string
	Volume          string
	ChapterNumber   string
	ChapterTitle    string
	Language        string
	IsOneshot       string
	Status          string
	RejectionReason string
	UploaderID      string
	ViewCount       string
	CreatedAt       string
	UpdatedAt       string
}

// ContentChapter is the schema definition for content.chapter
var ContentChapter = ContentChapterTable{
	Table:           "content.chapter",
	ID:              "id",
	TitleID:         "titleid",
	Title:           "title",
	Volume:          "volume",
	ChapterNumber:   "chapternumber",
	ChapterTitle:    "chaptertitle",
	Language:        "language",
	IsOneshot:       "isoneshot",
	Status:          "status",
	RejectionReason: "rejectionreason",
	UploaderID:      "uploaderid",
	ViewCount:       "viewcount",
	CreatedAt:       "createdat",
	UpdatedAt:       "updatedat",
}

func (t ContentChapterTable) Columns() []string {
	return []string{
		t.ID, t.TitleID, t.Title, t.Volume, t.ChapterNumber, t.ChapterTitle, t.Language,
		t.IsOneshot, t.Status, t.RejectionReason, t.UploaderID, t.ViewCount,
		t.CreatedAt, t.UpdatedAt,
	}
}
