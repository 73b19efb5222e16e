// Copyright (c) 2026 Koma. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package chapter_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/taibuivan/koma/internal/core/chapter"
	"github.com/taibuivan/koma/internal/platform/apperr"
	"github.com/taibuivan/koma/internal/platform/database/schema"
	"github.com/taibuivan/koma/internal/platform/migration"
	pgstore "github.com/taibuivan/koma/internal/platform/postgres"
	"github.com/taibuivan/koma/pkg/pointer"
	"github.com/taibuivan/koma/pkg/uuid"
)

// setupLedger starts PostgreSQL in a container and applies the migrations.
func setupLedger(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION is not set")
	}

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("koma_test"),
		postgres.WithUsername("koma"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, migration.RunUp(dsn, logger))

	pool, err := pgstore.NewPool(ctx, dsn, logger)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}

func newLedgerChapter(titleID *string, volume, number *int, pages ...string) *chapter.Chapter {
	entry := &chapter.Chapter{
		ID:            uuid.New(),
		TitleID:       titleID,
		Title:         "Foo",
		Volume:        volume,
		ChapterNumber: number,
		Language:      "en",
		Status:        chapter.StatusPending,
		UploaderID:    "uploader-1",
	}
	for order, name := range pages {
		entry.Pages = append(entry.Pages, &chapter.Page{
			FileOrder:   order,
			FilePath:    "cid-" + name,
			FileName:    name,
			ContentType: "image/png",
			SizeBytes:   int64(100 + order),
		})
	}
	return entry
}

/*
TestChapterRepository_Lifecycle exercises every ledger operation against PostgreSQL.
*/
func TestChapterRepository_Lifecycle(t *testing.T) {
	pool := setupLedger(t)
	repo := chapter.NewChapterRepository(pool)
	ctx := context.Background()
	titleID := pointer.To("title-foo")

	// Ingestion write
	first := newLedgerChapter(titleID, pointer.To(1), pointer.To(1), "001.png", "002.png", "003.png")
	require.NoError(t, repo.CreateChapter(ctx, first))
	for _, page := range first.Pages {
		assert.NotZero(t, page.ID)
		assert.Equal(t, first.ID, page.ChapterID)
	}
	assert.False(t, first.CreatedAt.IsZero())

	second := newLedgerChapter(titleID, nil, nil, "a.png")
	require.NoError(t, repo.CreateChapter(ctx, second))

	orphan := newLedgerChapter(nil, nil, nil, "x.png")
	require.NoError(t, repo.CreateChapter(ctx, orphan))

	// Status visibility
	_, err := repo.FindChapter(ctx, "title-foo", first.ID, []chapter.Status{chapter.StatusApproved}, true)
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))

	found, err := repo.FindChapter(ctx, "title-foo", first.ID, chapter.PreviewFilter(), false)
	require.NoError(t, err)
	require.Len(t, found.Pages, 3)
	assert.Equal(t, "cid-003.png", found.Pages[2].FilePath)
	assert.Equal(t, int64(0), found.ViewCount)

	// Moderation
	returnedTitle, err := repo.UpdateStatus(ctx, first.ID, chapter.StatusRejected, pointer.To("blurry scans"))
	require.NoError(t, err)
	assert.Equal(t, "title-foo", *returnedTitle)

	rejected, err := repo.ListByStatus(ctx, chapter.StatusRejected)
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.Equal(t, "blurry scans", *rejected[0].RejectionReason)
	assert.Len(t, rejected[0].Pages, 3)

	_, err = repo.UpdateStatus(ctx, first.ID, chapter.StatusApproved, nil)
	require.NoError(t, err)
	_, err = repo.UpdateStatus(ctx, second.ID, chapter.StatusApproved, nil)
	require.NoError(t, err)

	_, err = repo.UpdateStatus(ctx, uuid.New(), chapter.StatusApproved, nil)
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))

	// Public read counts a view
	viewed, err := repo.FindChapter(ctx, "title-foo", first.ID, []chapter.Status{chapter.StatusApproved}, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), viewed.ViewCount)
	assert.Nil(t, viewed.RejectionReason)

	_, err = repo.FindChapter(ctx, "title-bar", first.ID, []chapter.Status{chapter.StatusApproved}, true)
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))

	// Table of contents
	summaries, err := repo.ListSummaries(ctx, "title-foo", chapter.StatusApproved)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, first.ID, summaries[0].ID)
	assert.Equal(t, 3, summaries[0].PageCount)
	assert.Equal(t, int64(1), summaries[0].ViewCount)
	assert.Equal(t, second.ID, summaries[1].ID)

	// Moderation queue spans titles, including chapters without one
	pending, err := repo.ListByStatus(ctx, chapter.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, orphan.ID, pending[0].ID)
	assert.Nil(t, pending[0].TitleID)

	// Page ownership
	owners, err := repo.ChapterIDsByPages(ctx, []int64{first.Pages[0].ID, second.Pages[0].ID, 999999})
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{
		first.Pages[0].ID:  first.ID,
		second.Pages[0].ID: second.ID,
	}, owners)
}

/*
TestChapterRepository_ListSummaries orders by volume then chapter number and
reports the earliest page upload.
*/
func TestChapterRepository_ListSummaries(t *testing.T) {
	pool := setupLedger(t)
	repo := chapter.NewChapterRepository(pool)
	ctx := context.Background()
	titleID := pointer.To("title-foo")

	// Inserted out of reading order
	volumeOneTwo := newLedgerChapter(titleID, pointer.To(1), pointer.To(2), "001.png", "002.png")
	volumeTwoOne := newLedgerChapter(titleID, pointer.To(2), pointer.To(1), "001.png")
	volumeOneOne := newLedgerChapter(titleID, pointer.To(1), pointer.To(1), "001.png")
	unnumbered := newLedgerChapter(titleID, nil, nil, "001.png")

	for _, entry := range []*chapter.Chapter{volumeOneTwo, volumeTwoOne, volumeOneOne, unnumbered} {
		require.NoError(t, repo.CreateChapter(ctx, entry))
		_, err := repo.UpdateStatus(ctx, entry.ID, chapter.StatusApproved, nil)
		require.NoError(t, err)
	}

	// Pages of one chapter share a transaction timestamp; spread them apart
	earliest := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	backdate := "UPDATE " + schema.ContentPage.Table + " SET " + schema.ContentPage.CreatedAt + " = $1 WHERE " + schema.ContentPage.ID + " = $2"
	_, err := pool.Exec(ctx, backdate, earliest.Add(time.Hour), volumeOneTwo.Pages[0].ID)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, backdate, earliest, volumeOneTwo.Pages[1].ID)
	require.NoError(t, err)

	summaries, err := repo.ListSummaries(ctx, "title-foo", chapter.StatusApproved)
	require.NoError(t, err)
	require.Len(t, summaries, 4)

	assert.Equal(t, volumeOneOne.ID, summaries[0].ID)
	assert.Equal(t, volumeOneTwo.ID, summaries[1].ID)
	assert.Equal(t, volumeTwoOne.ID, summaries[2].ID)
	assert.Equal(t, unnumbered.ID, summaries[3].ID)

	assert.Equal(t, 2, summaries[1].PageCount)
	assert.True(t, earliest.Equal(summaries[1].UploadedAt), "uploadedAt = %s", summaries[1].UploadedAt)
}

/*
TestChapterRepository_AtomicCreate leaves nothing behind when a page insert fails.
*/
func TestChapterRepository_AtomicCreate(t *testing.T) {
	pool := setupLedger(t)
	repo := chapter.NewChapterRepository(pool)
	ctx := context.Background()

	broken := newLedgerChapter(pointer.To("title-foo"), nil, nil, "001.png", "002.png")
	broken.Pages[1].FileOrder = 0 // Violates UNIQUE (chapterid, fileorder)

	err := repo.CreateChapter(ctx, broken)
	assert.True(t, apperr.HasCode(err, apperr.CodePersistence))

	_, err = repo.FindChapter(ctx, "title-foo", broken.ID, chapter.PreviewFilter(), false)
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
}

/*
TestChapterRepository_RejectionReasonConstraint enforces the reason invariant in the schema.
*/
func TestChapterRepository_RejectionReasonConstraint(t *testing.T) {
	pool := setupLedger(t)
	repo := chapter.NewChapterRepository(pool)
	ctx := context.Background()

	entry := newLedgerChapter(pointer.To("title-foo"), nil, nil, "001.png")
	require.NoError(t, repo.CreateChapter(ctx, entry))

	_, err := repo.UpdateStatus(ctx, entry.ID, chapter.StatusRejected, nil)
	assert.True(t, apperr.HasCode(err, apperr.CodePersistence))
}
