// Copyright (c) 2026 Koma. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package chapter

import (
	"context"
	"log/slog"

	"github.com/taibuivan/koma/internal/platform/apperr"
	"github.com/taibuivan/koma/internal/platform/validate"
)

// # Reader Retrieval

/*
GetChapter resolves a chapter of a title under a status filter.

Description: A filter of exactly {approved} is the public read. It counts a
view before reading, unless view dedupe is enabled and this viewer already
counted inside the window. Any other filter is a preview and never counts.
Chapters outside the filter are reported as not found.

Parameters:
  - ctx: context.Context
  - titleID: string
  - chapterID: string (UUID)
  - filter: []Status
  - viewer: string (User ID or client IP; only used for view dedupe)

Returns:
  - *Chapter: Chapter with pages ordered by fileOrder
  - error: apperr.NotFound, apperr.ValidationError or apperr.Persistence
*/
func (service *Service) GetChapter(ctx context.Context, titleID, chapterID string, filter []Status, viewer string) (*Chapter, error) {

	// 1. Filter validation
	if len(filter) == 0 {
		return nil, apperr.ValidationError("Validation failed", apperr.FieldError{
			Field:   FieldStatus,
			Message: "At least one status is required",
		})
	}
	for _, status := range filter {
		if !status.Valid() {
			return nil, apperr.ValidationError("Validation failed", apperr.FieldError{
				Field:   FieldStatus,
				Message: "Must be one of: pending, approved, rejected",
			})
		}
	}

	if !validate.IsUUID(chapterID) {
		return nil, apperr.NotFound(resourceChapter)
	}

	// 2. View accounting decision
	logger := service.requestLogger(ctx)
	countView := false
	if isPublicFilter(filter) {
		counted, err := service.cache.MarkViewed(ctx, viewer, chapterID)
		if err != nil {
			logger.Warn("chapter_view_dedupe_failed",
				slog.String("chapter_id", chapterID),
				slog.Any("error", err),
			)
		}
		countView = counted
	}

	// 3. Ledger read
	chapter, err := service.chapterRepo.FindChapter(ctx, titleID, chapterID, filter, countView)
	if err != nil {
		// A claim for a chapter that was not read must not eat the viewer's window
		if countView {
			if releaseErr := service.cache.ReleaseView(ctx, viewer, chapterID); releaseErr != nil {
				logger.Warn("chapter_view_release_failed",
					slog.String("chapter_id", chapterID),
					slog.Any("error", releaseErr),
				)
			}
		}
		return nil, err
	}

	if countView {
		chapterViewsTotal.Inc()
	}

	return chapter, nil
}

/*
ListChapters returns the table of contents of a title.

Description: Only approved chapters are listed, ordered by volume then chapter
number with missing numbers last. Results are served from the cache when
possible; cache failures fall back to the ledger.

Parameters:
  - ctx: context.Context
  - titleID: string

Returns:
  - []*Summary: Table of contents, empty when the title has no approved chapter
  - error: apperr.Persistence
*/
func (service *Service) ListChapters(ctx context.Context, titleID string) ([]*Summary, error) {
	logger := service.requestLogger(ctx)

	// 1. Cache lookup
	cached, found, err := service.cache.Summaries(ctx, titleID)
	if err != nil {
		logger.Warn("chapter_list_cache_read_failed", slog.String("title_id", titleID), slog.Any("error", err))
	}
	if found {
		return cached, nil
	}

	// 2. Ledger read
	summaries, err := service.chapterRepo.ListSummaries(ctx, titleID, StatusApproved)
	if err != nil {
		return nil, err
	}
	if summaries == nil {
		summaries = []*Summary{}
	}

	// 3. Cache fill
	if err := service.cache.StoreSummaries(ctx, titleID, summaries); err != nil {
		logger.Warn("chapter_list_cache_write_failed", slog.String("title_id", titleID), slog.Any("error", err))
	}

	return summaries, nil
}

/*
ListModerationQueue returns every chapter in a status across all titles.

Parameters:
  - ctx: context.Context
  - status: Status

Returns:
  - []*Chapter: Chapters ordered by ID, each with its full page list
  - error: apperr.ValidationError or apperr.Persistence
*/
func (service *Service) ListModerationQueue(ctx context.Context, status Status) ([]*Chapter, error) {
	if !status.Valid() {
		return nil, apperr.ValidationError("Validation failed", apperr.FieldError{
			Field:   FieldStatus,
			Message: "Must be one of: pending, approved, rejected",
		})
	}

	chapters, err := service.chapterRepo.ListByStatus(ctx, status)
	if err != nil {
		return nil, err
	}
	if chapters == nil {
		chapters = []*Chapter{}
	}

	return chapters, nil
}
