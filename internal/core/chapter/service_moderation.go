// Copyright (c) 2026 Koma. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package chapter

import (
	"context"
	"log/slog"

	"github.com/taibuivan/koma/internal/platform/apperr"
	"github.com/taibuivan/koma/internal/platform/validate"
)

// # Moderation

/*
ReviewChapter moves a chapter to approved or rejected.

Description: Approval clears any earlier rejection reason; rejection stores
the given reason verbatim. The update is one statement, so every page of the
chapter observes the new state at once. The title's cached table of contents
is dropped afterwards.

Parameters:
  - ctx: context.Context
  - chapterID: string (UUID)
  - target: Status (approved or rejected)
  - reason: string (Required when rejecting)

Returns:
  - error: apperr.InvalidState, apperr.NotFound or apperr.Persistence
*/
func (service *Service) ReviewChapter(ctx context.Context, chapterID string, target Status, reason string) error {

	// 1. Decision validation
	storedReason, err := decide(target, reason)
	if err != nil {
		return err
	}

	// Anything that is not a UUID cannot name a chapter
	if !validate.IsUUID(chapterID) {
		return apperr.NotFound(resourceChapter)
	}

	// 2. Atomic state change
	titleID, err := service.chapterRepo.UpdateStatus(ctx, chapterID, target, storedReason)
	if err != nil {
		return err
	}

	// 3. Reader cache invalidation
	logger := service.requestLogger(ctx)
	if titleID != nil {
		if err := service.cache.InvalidateSummaries(ctx, *titleID); err != nil {
			logger.Warn("chapter_list_invalidate_failed",
				slog.String("title_id", *titleID),
				slog.Any("error", err),
			)
		}
	}

	chapterReviewsTotal.WithLabelValues(string(target)).Inc()
	logger.Info("chapter_reviewed",
		slog.String("chapter_id", chapterID),
		slog.String("status", string(target)),
	)

	return nil
}

/*
ReviewPages applies a moderation decision addressed by page IDs.

Description: The pages must all exist and all belong to the same chapter; the
decision is then applied to that whole chapter.

Parameters:
  - ctx: context.Context
  - pageIDs: []int64
  - target: Status
  - reason: string

Returns:
  - string: The reviewed chapter ID
  - error: apperr.ValidationError, apperr.InvalidState, apperr.NotFound or apperr.Persistence
*/
func (service *Service) ReviewPages(ctx context.Context, pageIDs []int64, target Status, reason string) (string, error) {
	if len(pageIDs) == 0 {
		return "", apperr.ValidationError("Validation failed", apperr.FieldError{
			Field:   FieldPageIDs,
			Message: "At least one page ID is required",
		})
	}

	// Fail on a bad decision before touching the ledger
	if _, err := decide(target, reason); err != nil {
		return "", err
	}

	owners, err := service.chapterRepo.ChapterIDsByPages(ctx, pageIDs)
	if err != nil {
		return "", err
	}

	// Every page must be known and share one chapter
	chapterID := ""
	for _, pageID := range pageIDs {
		owner, found := owners[pageID]
		if !found {
			return "", apperr.NotFound("Page")
		}
		if chapterID != "" && owner != chapterID {
			return "", apperr.InvalidState("Pages belong to more than one chapter")
		}
		chapterID = owner
	}

	if err := service.ReviewChapter(ctx, chapterID, target, reason); err != nil {
		return "", err
	}
	return chapterID, nil
}
