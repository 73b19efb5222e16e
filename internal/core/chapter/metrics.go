// Copyright (c) 2026 Koma. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package chapter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Upload outcomes recorded by pageUploadsTotal.
const (
	outcomeUploaded = "uploaded"
	outcomeFailed   = "failed"
)

// # Pipeline Metrics

var (
	// pageUploadsTotal counts per-file upload results after retries.
	pageUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "koma_page_uploads_total",
			Help: "Page uploads to the content store by final outcome",
		},
		[]string{"outcome"},
	)

	// pageUploadRetriesTotal counts every retry wait taken by the upload executor.
	pageUploadRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "koma_page_upload_retries_total",
			Help: "Retries of page uploads to the content store",
		},
	)

	// chaptersIngestedTotal counts chapters written to the ledger.
	chaptersIngestedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "koma_chapters_ingested_total",
			Help: "Chapters ingested into the ledger",
		},
	)

	// chapterViewsTotal counts reads that incremented a view counter.
	chapterViewsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "koma_chapter_views_total",
			Help: "Chapter views counted on the public read path",
		},
	)

	// chapterReviewsTotal counts moderation decisions by target status.
	chapterReviewsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "koma_chapter_reviews_total",
			Help: "Moderation decisions applied to chapters",
		},
		[]string{"status"},
	)
)
