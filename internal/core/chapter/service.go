// Copyright (c) 2026 Koma. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package chapter

import (
	"context"
	"log/slog"

	"github.com/taibuivan/koma/internal/platform/ctxutil"
	"github.com/taibuivan/koma/pkg/retry"
)

// Field names reported in validation details.
const (
	FieldFiles           = "files"
	FieldTitle           = "title"
	FieldChapterTitle    = "chapterTitle"
	FieldLanguage        = "language"
	FieldUploader        = "uploader"
	FieldStatus          = "status"
	FieldRejectionReason = "rejectionReason"
	FieldPageIDs         = "pageIds"
	FieldChapterID       = "chapterId"
)

// Metadata length limits, in characters.
const (
	maxTitleLength    = 255
	maxLanguageLength = 35
)

// # Service Layer

// Options tunes the ingestion pipeline.
type Options struct {
	// RetryPolicy is applied to every page upload.
	RetryPolicy retry.Policy

	// UploadConcurrency bounds parallel uploads within one batch. 1 is sequential.
	UploadConcurrency int
}

// DefaultOptions returns sequential uploads with the default retry policy.
func DefaultOptions() Options {
	return Options{
		RetryPolicy:       retry.DefaultPolicy(),
		UploadConcurrency: 1,
	}
}

// Service orchestrates the business logic for chapters.
type Service struct {
	chapterRepo ChapterRepository
	cache       ChapterCache
	store       ContentStore
	options     Options
	logger      *slog.Logger
}

/*
NewService constructs a new [Service] with its collaborators.

Parameters:
  - chapterRepo: ChapterRepository (The ledger)
  - cache: ChapterCache (nil disables caching and view dedupe)
  - store: ContentStore (Where page bytes go)
  - options: Options
  - logger: *slog.Logger
*/
func NewService(chapterRepo ChapterRepository, cache ChapterCache, store ContentStore, options Options, logger *slog.Logger) *Service {
	if cache == nil {
		cache = noCache{}
	}
	if options.UploadConcurrency < 1 {
		options.UploadConcurrency = 1
	}

	return &Service{
		chapterRepo: chapterRepo,
		cache:       cache,
		store:       store,
		options:     options,
		logger:      logger,
	}
}

// # Internal Helpers

// requestLogger tags the service logger with the request ID carried by ctx.
func (service *Service) requestLogger(ctx context.Context) *slog.Logger {
	if requestID := ctxutil.GetRequestID(ctx); requestID != "" {
		return service.logger.With(slog.String("request_id", requestID))
	}
	return service.logger
}
