// Copyright (c) 2026 Koma. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package chapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/koma/internal/platform/database/schema"
	"github.com/taibuivan/koma/internal/platform/dberr"
	"github.com/taibuivan/koma/pkg/slice"
)

const resourceChapter = "Chapter"

// chapterColumns is the select list shared by every chapter read, in [scanChapter] order.
var chapterColumns = strings.Join([]string{
	schema.ContentChapter.ID,
	schema.ContentChapter.TitleID,
	schema.ContentChapter.Title,
	schema.ContentChapter.Volume,
	schema.ContentChapter.ChapterNumber,
	schema.ContentChapter.ChapterTitle,
	schema.ContentChapter.Language,
	schema.ContentChapter.IsOneshot,
	schema.ContentChapter.Status,
	schema.ContentChapter.RejectionReason,
	schema.ContentChapter.UploaderID,
	schema.ContentChapter.ViewCount,
	schema.ContentChapter.CreatedAt,
	schema.ContentChapter.UpdatedAt,
}, ", ")

// pageColumns is the select list for pages, in [Page] field order.
var pageColumns = strings.Join([]string{
	schema.ContentPage.ID,
	schema.ContentPage.ChapterID,
	schema.ContentPage.FileOrder,
	schema.ContentPage.FilePath,
	schema.ContentPage.FileName,
	schema.ContentPage.ContentType,
	schema.ContentPage.SizeBytes,
	schema.ContentPage.CreatedAt,
}, ", ")

// # PostgreSQL Repository

// chapterRepository implements the [ChapterRepository] interface using pgx.
type chapterRepository struct {
	pool *pgxpool.Pool
}

// NewChapterRepository constructs a PostgreSQL backed chapter ledger.
func NewChapterRepository(pool *pgxpool.Pool) ChapterRepository {
	return &chapterRepository{pool: pool}
}

// # Ingestion Writes

/*
CreateChapter inserts the chapter row and its pages in one transaction.

Description: Pages are queued in a single pgx.Batch so a long chapter costs
one round-trip. Any failure rolls the whole chapter back, so readers never see
a chapter with a partial page set.

Parameters:
  - ctx: context.Context
  - chapter: *Chapter (Pages populated)

Returns:
  - error: apperr.Persistence on any failure
*/
func (repository *chapterRepository) CreateChapter(ctx context.Context, chapter *Chapter) error {
	err := pgx.BeginFunc(ctx, repository.pool, func(tx pgx.Tx) error {

		// 1. Chapter row
		chapterQuery := fmt.Sprintf(`
			INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING %s, %s
		`,
			schema.ContentChapter.Table,
			schema.ContentChapter.ID, schema.ContentChapter.TitleID, schema.ContentChapter.Title,
			schema.ContentChapter.Volume, schema.ContentChapter.ChapterNumber, schema.ContentChapter.ChapterTitle,
			schema.ContentChapter.Language, schema.ContentChapter.IsOneshot, schema.ContentChapter.Status,
			schema.ContentChapter.UploaderID,
			schema.ContentChapter.CreatedAt, schema.ContentChapter.UpdatedAt,
		)

		err := tx.QueryRow(ctx, chapterQuery,
			chapter.ID, chapter.TitleID, chapter.Title,
			chapter.Volume, chapter.ChapterNumber, chapter.ChapterTitle,
			chapter.Language, chapter.IsOneshot, string(chapter.Status),
			chapter.UploaderID,
		).Scan(&chapter.CreatedAt, &chapter.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert chapter: %w", err)
		}

		// 2. Page rows, pipelined
		pageQuery := fmt.Sprintf(`
			INSERT INTO %s (%s, %s, %s, %s, %s, %s)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING %s, %s
		`,
			schema.ContentPage.Table,
			schema.ContentPage.ChapterID, schema.ContentPage.FileOrder, schema.ContentPage.FilePath,
			schema.ContentPage.FileName, schema.ContentPage.ContentType, schema.ContentPage.SizeBytes,
			schema.ContentPage.ID, schema.ContentPage.CreatedAt,
		)

		batch := &pgx.Batch{}
		for _, page := range chapter.Pages {
			batch.Queue(pageQuery,
				chapter.ID, page.FileOrder, page.FilePath,
				page.FileName, page.ContentType, page.SizeBytes,
			)
		}

		results := tx.SendBatch(ctx, batch)
		for index, page := range chapter.Pages {
			if err := results.QueryRow().Scan(&page.ID, &page.CreatedAt); err != nil {
				_ = results.Close()
				return fmt.Errorf("insert page %d: %w", index, err)
			}
			page.ChapterID = chapter.ID
		}

		// Results must be drained before the transaction commits
		return results.Close()
	})

	return dberr.Wrap(err, resourceChapter, "postgres: create chapter")
}

// # Reader Queries

/*
FindChapter loads a chapter and its ordered pages under a status filter.

Description: In public mode the view counter is bumped first, inside the same
transaction, so the returned count includes this read. The increment only hits
rows the filter can see, so a hidden chapter is never counted.

Parameters:
  - ctx: context.Context
  - titleID: string
  - chapterID: string (UUID)
  - statuses: []Status
  - countView: bool

Returns:
  - *Chapter: Chapter with pages sorted by fileOrder
  - error: apperr.NotFound or apperr.Persistence
*/
func (repository *chapterRepository) FindChapter(ctx context.Context, titleID, chapterID string, statuses []Status, countView bool) (*Chapter, error) {
	filter := statusStrings(statuses)

	var chapter *Chapter
	err := pgx.BeginFunc(ctx, repository.pool, func(tx pgx.Tx) error {

		// 1. Atomic view increment
		if countView {
			incrementQuery := fmt.Sprintf(`
				UPDATE %s SET %s = %s + 1
				WHERE %s = $1 AND %s = $2 AND %s = ANY($3)
			`,
				schema.ContentChapter.Table,
				schema.ContentChapter.ViewCount, schema.ContentChapter.ViewCount,
				schema.ContentChapter.ID, schema.ContentChapter.TitleID, schema.ContentChapter.Status,
			)
			if _, err := tx.Exec(ctx, incrementQuery, chapterID, titleID, filter); err != nil {
				return fmt.Errorf("increment view count: %w", err)
			}
		}

		// 2. Chapter row
		chapterQuery := fmt.Sprintf(`
			SELECT %s FROM %s
			WHERE %s = $1 AND %s = $2 AND %s = ANY($3)
		`,
			chapterColumns, schema.ContentChapter.Table,
			schema.ContentChapter.ID, schema.ContentChapter.TitleID, schema.ContentChapter.Status,
		)

		found, err := scanChapter(tx.QueryRow(ctx, chapterQuery, chapterID, titleID, filter))
		if err != nil {
			return err
		}

		// 3. Ordered pages
		pages, err := listPages(ctx, tx, []string{found.ID})
		if err != nil {
			return err
		}

		found.Pages = pages
		chapter = found
		return nil
	})

	if err != nil {
		return nil, dberr.Wrap(err, resourceChapter, "postgres: find chapter")
	}
	return chapter, nil
}

/*
ListSummaries builds the table of contents of a title without loading pages.

Description: uploadedAt is the earliest page timestamp, falling back to the
chapter row for a chapter without pages.
*/
func (repository *chapterRepository) ListSummaries(ctx context.Context, titleID string, status Status) ([]*Summary, error) {
	query := fmt.Sprintf(`
		SELECT
			c.%s, c.%s, c.%s, c.%s, c.%s, c.%s, c.%s, c.%s,
			COALESCE(MIN(p.%s), c.%s) AS uploadedat,
			COUNT(p.%s) AS pagecount
		FROM %s c
		LEFT JOIN %s p ON p.%s = c.%s
		WHERE c.%s = $1 AND c.%s = $2
		GROUP BY c.%s
		ORDER BY c.%s ASC NULLS LAST, c.%s ASC NULLS LAST, c.%s ASC
	`,
		schema.ContentChapter.ID, schema.ContentChapter.Volume, schema.ContentChapter.ChapterNumber,
		schema.ContentChapter.ChapterTitle, schema.ContentChapter.Language, schema.ContentChapter.IsOneshot,
		schema.ContentChapter.UploaderID, schema.ContentChapter.ViewCount,
		schema.ContentPage.CreatedAt, schema.ContentChapter.CreatedAt,
		schema.ContentPage.ID,
		schema.ContentChapter.Table,
		schema.ContentPage.Table, schema.ContentPage.ChapterID, schema.ContentChapter.ID,
		schema.ContentChapter.TitleID, schema.ContentChapter.Status,
		schema.ContentChapter.ID,
		schema.ContentChapter.Volume, schema.ContentChapter.ChapterNumber, schema.ContentChapter.ID,
	)

	rows, err := repository.pool.Query(ctx, query, titleID, string(status))
	if err != nil {
		return nil, dberr.Wrap(err, resourceChapter, "postgres: list summaries")
	}

	summaries, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByPos[Summary])
	if err != nil {
		return nil, dberr.Wrap(err, resourceChapter, "postgres: scan summaries")
	}

	return summaries, nil
}

/*
ListByStatus returns every chapter in a moderation state with its pages.

Description: Both reads run in one read-only repeatable-read transaction so
the page set matches the chapter set even while ingestion is running.
*/
func (repository *chapterRepository) ListByStatus(ctx context.Context, status Status) ([]*Chapter, error) {
	var chapters []*Chapter

	options := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	err := pgx.BeginTxFunc(ctx, repository.pool, options, func(tx pgx.Tx) error {

		// 1. Chapters
		query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 ORDER BY %s ASC`,
			chapterColumns, schema.ContentChapter.Table,
			schema.ContentChapter.Status, schema.ContentChapter.ID,
		)

		rows, err := tx.Query(ctx, query, string(status))
		if err != nil {
			return fmt.Errorf("list chapters: %w", err)
		}

		chapters, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Chapter, error) {
			return scanChapter(row)
		})
		if err != nil || len(chapters) == 0 {
			return err
		}

		// 2. Pages of every chapter, grouped in memory
		pages, err := listPages(ctx, tx, slice.Map(chapters, func(chapter *Chapter) string { return chapter.ID }))
		if err != nil {
			return err
		}

		byChapter := make(map[string][]*Page, len(chapters))
		for _, page := range pages {
			byChapter[page.ChapterID] = append(byChapter[page.ChapterID], page)
		}
		for _, chapter := range chapters {
			chapter.Pages = byChapter[chapter.ID]
		}

		return nil
	})

	if err != nil {
		return nil, dberr.Wrap(err, resourceChapter, "postgres: list chapters by status")
	}
	return chapters, nil
}

// # Moderation Writes

/*
UpdateStatus applies a moderation decision with a single UPDATE.

Description: Concurrent reviews of the same chapter are last-write-wins.
*/
func (repository *chapterRepository) UpdateStatus(ctx context.Context, chapterID string, status Status, reason *string) (*string, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = $1, %s = $2, %s = NOW()
		WHERE %s = $3
		RETURNING %s
	`,
		schema.ContentChapter.Table,
		schema.ContentChapter.Status, schema.ContentChapter.RejectionReason, schema.ContentChapter.UpdatedAt,
		schema.ContentChapter.ID,
		schema.ContentChapter.TitleID,
	)

	var titleID *string
	if err := repository.pool.QueryRow(ctx, query, string(status), reason, chapterID).Scan(&titleID); err != nil {
		return nil, dberr.Wrap(err, resourceChapter, "postgres: update chapter status")
	}

	return titleID, nil
}

// ChapterIDsByPages resolves the owning chapter of each page.
func (repository *chapterRepository) ChapterIDsByPages(ctx context.Context, pageIDs []int64) (map[int64]string, error) {
	query := fmt.Sprintf(`SELECT %s, %s FROM %s WHERE %s = ANY($1)`,
		schema.ContentPage.ID, schema.ContentPage.ChapterID,
		schema.ContentPage.Table,
		schema.ContentPage.ID,
	)

	rows, err := repository.pool.Query(ctx, query, pageIDs)
	if err != nil {
		return nil, dberr.Wrap(err, "Page", "postgres: resolve pages")
	}
	defer rows.Close()

	owners := make(map[int64]string, len(pageIDs))
	for rows.Next() {
		var pageID int64
		var chapterID string
		if err := rows.Scan(&pageID, &chapterID); err != nil {
			return nil, dberr.Wrap(err, "Page", "postgres: scan page owner")
		}
		owners[pageID] = chapterID
	}

	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(err, "Page", "postgres: resolve pages")
	}
	return owners, nil
}

// # Internal Helpers

// listPages loads the pages of the given chapters ordered by chapter then fileOrder.
func listPages(ctx context.Context, tx pgx.Tx, chapterIDs []string) ([]*Page, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE %s = ANY($1)
		ORDER BY %s ASC, %s ASC, %s ASC
	`,
		pageColumns, schema.ContentPage.Table,
		schema.ContentPage.ChapterID,
		schema.ContentPage.ChapterID, schema.ContentPage.FileOrder, schema.ContentPage.ID,
	)

	rows, err := tx.Query(ctx, query, chapterIDs)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}

	pages, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByPos[Page])
	if err != nil {
		return nil, fmt.Errorf("scan pages: %w", err)
	}
	return pages, nil
}

// scanChapter maps one row selected with [chapterColumns].
func scanChapter(row pgx.Row) (*Chapter, error) {
	var chapter Chapter
	var status string

	err := row.Scan(
		&chapter.ID,
		&chapter.TitleID,
		&chapter.Title,
		&chapter.Volume,
		&chapter.ChapterNumber,
		&chapter.ChapterTitle,
		&chapter.Language,
		&chapter.IsOneshot,
		&status,
		&chapter.RejectionReason,
		&chapter.UploaderID,
		&chapter.ViewCount,
		&chapter.CreatedAt,
		&chapter.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	chapter.Status = Status(status)
	return &chapter, nil
}

// statusStrings converts a filter into the text[] parameter Postgres expects.
func statusStrings(statuses []Status) []string {
	return slice.Map(statuses, func(status Status) string { return string(status) })
}
