// Copyright (c) 2026 Koma. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package chapter

import (
	"context"
	"io"
)

// # Chapter Ledger Data Access

// ChapterRepository defines the data access contract for the chapter ledger.
//
// Implementations return [apperr.AppError] values: NOT_FOUND for missing
// chapters and PERSISTENCE_ERROR for any storage failure.
type ChapterRepository interface {

	/*
		CreateChapter persists a chapter row and all of its pages atomically.

		Parameters:
		  - ctx: context.Context
		  - chapter: *Chapter (with Pages populated, FileOrder already assigned)

		Returns:
		  - error: Storage failure; no row is left behind on failure

		On success the page IDs and timestamps are filled in.
	*/
	CreateChapter(ctx context.Context, chapter *Chapter) error

	/*
		FindChapter loads a chapter with its pages ordered by fileOrder.

		Parameters:
		  - ctx: context.Context
		  - titleID: string (External catalog key)
		  - chapterID: string (UUID)
		  - statuses: []Status (Visible states)
		  - countView: bool (Increment viewCount before reading)

		Returns:
		  - *Chapter: Hydrated chapter, including pages
		  - error: apperr.NotFound if nothing matches the status filter
	*/
	FindChapter(ctx context.Context, titleID, chapterID string, statuses []Status, countView bool) (*Chapter, error)

	/*
		ListSummaries returns the table of contents of a title.

		Parameters:
		  - ctx: context.Context
		  - titleID: string
		  - status: Status

		Returns:
		  - []*Summary: Ordered by volume then chapter number, missing numbers last
		  - error: Storage failures
	*/
	ListSummaries(ctx context.Context, titleID string, status Status) ([]*Summary, error)

	/*
		ListByStatus returns every chapter in a status across all titles, pages included.

		Parameters:
		  - ctx: context.Context
		  - status: Status

		Returns:
		  - []*Chapter: Ordered by chapter ID, pages by fileOrder
		  - error: Storage failures
	*/
	ListByStatus(ctx context.Context, status Status) ([]*Chapter, error)

	/*
		UpdateStatus sets the moderation state of a chapter in one statement.

		Parameters:
		  - ctx: context.Context
		  - chapterID: string (UUID)
		  - status: Status
		  - reason: *string (nil clears the reason)

		Returns:
		  - *string: The chapter's title ID, for cache invalidation
		  - error: apperr.NotFound if the chapter does not exist
	*/
	UpdateStatus(ctx context.Context, chapterID string, status Status, reason *string) (*string, error)

	/*
		ChapterIDsByPages maps each known page ID to its chapter ID.

		Parameters:
		  - ctx: context.Context
		  - pageIDs: []int64

		Returns:
		  - map[int64]string: Unknown page IDs are absent
		  - error: Storage failures
	*/
	ChapterIDsByPages(ctx context.Context, pageIDs []int64) (map[int64]string, error)
}

// # Table of Contents Cache

// ChapterCache holds volatile reader state next to the ledger.
//
// Every method is best effort: callers log failures and fall back to the ledger.
type ChapterCache interface {

	// Summaries returns a cached table of contents, reporting whether it was found.
	Summaries(ctx context.Context, titleID string) ([]*Summary, bool, error)

	// StoreSummaries caches a table of contents.
	StoreSummaries(ctx context.Context, titleID string, summaries []*Summary) error

	// InvalidateSummaries drops the cached table of contents of a title.
	InvalidateSummaries(ctx context.Context, titleID string) error

	// MarkViewed reports whether a view of chapterID by viewer should be counted.
	MarkViewed(ctx context.Context, viewer, chapterID string) (bool, error)

	// ReleaseView drops a claim taken by MarkViewed for a read that did not happen.
	ReleaseView(ctx context.Context, viewer, chapterID string) error
}

// # Content Store

// ContentStore publishes page bytes and returns their CID.
//
// Identical bytes yield the same CID, so Put is safe to retry.
type ContentStore interface {
	Put(ctx context.Context, name, contentType string, content io.Reader) (string, error)
}
