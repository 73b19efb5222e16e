// Copyright (c) 2026 Koma. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package chapter implements the chaptered-content pipeline: ingestion of page
batches into the content-addressed store, the chapter ledger, moderation, and
reader retrieval.

# Core Responsibility

  - Ingestion: Uploads staged pages with bounded retries and records the survivors as one [Chapter].
  - Ledger: Persists a chapter row and its ordered [Page] rows in one transaction.
  - Moderation: Moves a chapter between pending, approved and rejected.
  - Retrieval: Serves approved chapters to readers and any status to reviewers.

Pages only ever reference their bytes by CID. Turning a CID into a fetchable
URL is left to the HTTP layer.
*/
package chapter

import "time"

// # Chapter Aggregate

// Chapter is one logical chapter and, when loaded with them, its pages.
//
// Every page shares the chapter's metadata and moderation state because those
// live on the chapter row.
type Chapter struct {
	ID              string
	TitleID         *string // External catalog key; nil when the uploader gave none
	Title           string
	Volume          *int
	ChapterNumber   *int
	ChapterTitle    *string // Forced to "Oneshot" for oneshots
	Language        string
	IsOneshot       bool
	Status          Status
	RejectionReason *string // Non-nil iff Status is rejected
	UploaderID      string
	ViewCount       int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Pages           []*Page
}

// Page is one stored page image of a [Chapter].
type Page struct {
	ID          int64
	ChapterID   string
	FileOrder   int    // Zero-based and contiguous within a chapter
	FilePath    string // CID returned by the content store, not a filesystem path
	FileName    string // Display name supplied by the uploader
	ContentType string
	SizeBytes   int64
	CreatedAt   time.Time
}

// # Read Models

// Summary is one table-of-contents entry. It never carries pages.
type Summary struct {
	ID            string    `json:"id"`
	Volume        *int      `json:"volume"`
	ChapterNumber *int      `json:"chapterNumber"`
	ChapterTitle  *string   `json:"chapterTitle"`
	Language      string    `json:"language"`
	IsOneshot     bool      `json:"isOneshot"`
	UploaderID    string    `json:"uploader"`
	ViewCount     int64     `json:"viewCount"`
	UploadedAt    time.Time `json:"uploadedAt"`
	PageCount     int       `json:"pageCount"`
}

// # Ingestion

// Metadata is the uploader-supplied description of a chapter.
type Metadata struct {
	TitleID       *string
	Title         string
	Volume        *int
	ChapterNumber *int
	ChapterTitle  *string
	Language      string
	IsOneshot     bool
}

// FileError reports one file that could not be uploaded after all retries.
type FileError struct {
	FileName string `json:"filename"`
	Message  string `json:"error"`
}

// IngestResult is the outcome of a successful ingestion.
//
// FileErrors lists the files that were dropped from the chapter; it is empty,
// never nil, when every file made it.
type IngestResult struct {
	ChapterID  string
	Pages      []*Page
	FileErrors []FileError
}
