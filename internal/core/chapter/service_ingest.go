// Copyright (c) 2026 Koma. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package chapter

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/taibuivan/koma/internal/platform/apperr"
	"github.com/taibuivan/koma/internal/platform/constants"
	"github.com/taibuivan/koma/internal/platform/staging"
	"github.com/taibuivan/koma/internal/platform/validate"
	"github.com/taibuivan/koma/pkg/pointer"
	"github.com/taibuivan/koma/pkg/retry"
	"github.com/taibuivan/koma/pkg/slice"
	"github.com/taibuivan/koma/pkg/uuid"
)

// # Upload Outcome

// uploadResult is what happened to one file, tagged with its submission index.
type uploadResult struct {
	index int
	file  *staging.File
	cid   string
	err   error
}

// uploadedFile is a file that reached the content store.
type uploadedFile struct {
	file *staging.File
	cid  string
}

// uploadOutcome partitions a batch into survivors and failures, both in
// submission order.
type uploadOutcome struct {
	successes []uploadedFile
	failures  []FileError
}

// foldOutcome restores submission order and reduces the results into an [uploadOutcome].
func foldOutcome(results []uploadResult) uploadOutcome {
	slices.SortStableFunc(results, func(left, right uploadResult) int {
		return cmp.Compare(left.index, right.index)
	})

	return slice.Reduce(results, uploadOutcome{failures: []FileError{}}, func(outcome uploadOutcome, result uploadResult) uploadOutcome {
		if result.err != nil {
			outcome.failures = append(outcome.failures, FileError{FileName: result.file.Name, Message: result.err.Error()})
			return outcome
		}
		outcome.successes = append(outcome.successes, uploadedFile{file: result.file, cid: result.cid})
		return outcome
	})
}

// # Ingestion

/*
IngestChapter publishes a batch of staged pages and records them as one chapter.

Description: Every file is uploaded independently through the retry executor;
a file that exhausts its retries is reported in FileErrors and dropped, the
others carry on. Survivors get contiguous zero-based fileOrder values in
submission order and are written with the chapter in one transaction.

Staged files are removed as soon as their upload settles, and a final sweep
over every received file runs on every return path.

Parameters:
  - ctx: context.Context
  - files: []*staging.File (In submission order)
  - metadata: Metadata
  - uploaderID: string (Authenticated uploader)

Returns:
  - *IngestResult: Chapter ID, created pages, per-file failures
  - error: apperr.ValidationError, apperr.AllUploadsFailed or apperr.Persistence
*/
func (service *Service) IngestChapter(ctx context.Context, files []*staging.File, metadata Metadata, uploaderID string) (*IngestResult, error) {
	logger := service.requestLogger(ctx)

	defer func() {
		if failed := staging.Sweep(files); failed > 0 {
			logger.Warn("staging_sweep_incomplete", slog.Int("failed", failed))
		}
	}()

	// 1. Input validation
	files = slice.Filter(files, func(file *staging.File) bool { return file != nil })

	validator := &validate.Validator{}
	validator.Custom(FieldFiles, len(files) == 0, "At least one page file is required")
	validator.Required(FieldLanguage, metadata.Language)
	validator.MaxLen(FieldLanguage, metadata.Language, maxLanguageLength)
	validator.MaxLen(FieldTitle, metadata.Title, maxTitleLength)
	if metadata.ChapterTitle != nil {
		validator.MaxLen(FieldChapterTitle, *metadata.ChapterTitle, maxTitleLength)
	}
	validator.Required(FieldUploader, uploaderID)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	// 2. Content-store uploads
	outcome := foldOutcome(service.uploadAll(ctx, files))

	// 3. Nothing survived
	if len(outcome.successes) == 0 {
		logger.Warn("chapter_ingest_all_failed", slog.Int("files", len(files)))
		return nil, apperr.AllUploadsFailed(slice.Map(outcome.failures, func(failure FileError) apperr.FieldError {
			return apperr.FieldError{Field: failure.FileName, Message: failure.Message}
		})...)
	}

	// 4. Ledger write
	chapter := newChapter(metadata, uploaderID, outcome.successes)
	if err := service.chapterRepo.CreateChapter(ctx, chapter); err != nil {
		logger.Error("chapter_persist_failed",
			slog.String("chapter_id", chapter.ID),
			slog.Int("orphaned_blobs", len(chapter.Pages)),
			slog.Any("error", err),
		)
		return nil, err
	}

	chaptersIngestedTotal.Inc()
	logger.Info("chapter_ingested",
		slog.String("chapter_id", chapter.ID),
		slog.String("uploader_id", uploaderID),
		slog.Int("pages", len(chapter.Pages)),
		slog.Int("failed_files", len(outcome.failures)),
	)

	return &IngestResult{
		ChapterID:  chapter.ID,
		Pages:      chapter.Pages,
		FileErrors: outcome.failures,
	}, nil
}

// # Upload Orchestration

/*
uploadAll uploads every file and returns the results in submission order.

Description: With a concurrency of 1 files go one after another. Above that,
uploads run on an errgroup bounded by the limit and finish in any order;
[foldOutcome] sorts them back by index before fileOrder is assigned.
*/
func (service *Service) uploadAll(ctx context.Context, files []*staging.File) []uploadResult {
	results := make([]uploadResult, len(files))

	if service.options.UploadConcurrency <= 1 {
		for index, file := range files {
			results[index] = service.uploadOne(ctx, index, file)
		}
		return results
	}

	var group errgroup.Group
	group.SetLimit(service.options.UploadConcurrency)

	for index, file := range files {
		group.Go(func() error {
			results[index] = service.uploadOne(ctx, index, file)
			return nil
		})
	}

	// Goroutines never return errors; failures are recorded per result
	_ = group.Wait()

	return results
}

// uploadOne pushes one staged file through the retry executor and releases it.
func (service *Service) uploadOne(ctx context.Context, index int, file *staging.File) uploadResult {
	logger := service.requestLogger(ctx).With(
		slog.String("file", file.Name),
		slog.Int("index", index),
	)

	policy := service.options.RetryPolicy
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		pageUploadRetriesTotal.Inc()
		logger.Warn("page_upload_retry",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.Any("error", err),
		)
	}

	cid, err := retry.Value(ctx, policy, func(ctx context.Context) (string, error) {
		content, err := file.Open()
		if err != nil {
			// The staged bytes are gone; another attempt cannot succeed
			return "", retry.Permanent(err)
		}
		defer content.Close()

		return service.store.Put(ctx, file.Name, file.ContentType, content)
	})

	// Release the staged bytes as soon as the upload settles
	if removeErr := file.Remove(); removeErr != nil {
		logger.Warn("staging_remove_failed", slog.Any("error", removeErr))
	}

	if err != nil {
		pageUploadsTotal.WithLabelValues(outcomeFailed).Inc()
		logger.Error("page_upload_failed", slog.Any("error", err))
		return uploadResult{index: index, file: file, err: err}
	}

	pageUploadsTotal.WithLabelValues(outcomeUploaded).Inc()
	logger.Debug("page_uploaded", slog.String("cid", cid))
	return uploadResult{index: index, file: file, cid: cid}
}

// # Chapter Assembly

// newChapter builds the pending chapter row and its pages from the survivors.
func newChapter(metadata Metadata, uploaderID string, successes []uploadedFile) *Chapter {
	chapterTitle := metadata.ChapterTitle
	if metadata.IsOneshot {
		chapterTitle = pointer.To(constants.OneshotChapterTitle)
	}

	chapter := &Chapter{
		ID:            uuid.New(),
		TitleID:       metadata.TitleID,
		Title:         metadata.Title,
		Volume:        metadata.Volume,
		ChapterNumber: metadata.ChapterNumber,
		ChapterTitle:  chapterTitle,
		Language:      metadata.Language,
		IsOneshot:     metadata.IsOneshot,
		Status:        StatusPending,
		UploaderID:    uploaderID,
	}

	// fileOrder is the position among survivors, so failed files leave no gaps
	chapter.Pages = make([]*Page, len(successes))
	for order, success := range successes {
		chapter.Pages[order] = &Page{
			ChapterID:   chapter.ID,
			FileOrder:   order,
			FilePath:    success.cid,
			FileName:    success.file.Name,
			ContentType: success.file.ContentType,
			SizeBytes:   success.file.Size,
		}
	}

	return chapter
}
