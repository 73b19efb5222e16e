// Copyright (c) 2026 Koma. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package chapter_test

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taibuivan/koma/internal/core/chapter"
	"github.com/taibuivan/koma/internal/platform/apperr"
	"github.com/taibuivan/koma/internal/platform/staging"
	"github.com/taibuivan/koma/pkg/retry"
)

// # In-memory Ledger

// fakeRepository is an in-memory [chapter.ChapterRepository].
type fakeRepository struct {
	mu         sync.Mutex
	chapters   map[string]*chapter.Chapter
	nextPageID int64
	createErr  error
	creates    int
	lists      int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{chapters: map[string]*chapter.Chapter{}}
}

func (repo *fakeRepository) CreateChapter(_ context.Context, entry *chapter.Chapter) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	repo.creates++
	if repo.createErr != nil {
		return repo.createErr
	}

	now := time.Now()
	entry.CreatedAt, entry.UpdatedAt = now, now
	for _, page := range entry.Pages {
		repo.nextPageID++
		page.ID = repo.nextPageID
		page.CreatedAt = now
	}

	stored := *entry
	stored.Pages = slices.Clone(entry.Pages)
	repo.chapters[entry.ID] = &stored
	return nil
}

func (repo *fakeRepository) FindChapter(_ context.Context, titleID, chapterID string, statuses []chapter.Status, countView bool) (*chapter.Chapter, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	stored, found := repo.chapters[chapterID]
	if !found || stored.TitleID == nil || *stored.TitleID != titleID || !slices.Contains(statuses, stored.Status) {
		return nil, apperr.NotFound("Chapter")
	}
	if countView {
		stored.ViewCount++
	}

	copied := *stored
	return &copied, nil
}

func (repo *fakeRepository) ListSummaries(_ context.Context, titleID string, status chapter.Status) ([]*chapter.Summary, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	repo.lists++
	var summaries []*chapter.Summary
	for _, stored := range repo.chapters {
		if stored.TitleID == nil || *stored.TitleID != titleID || stored.Status != status {
			continue
		}
		summaries = append(summaries, &chapter.Summary{
			ID:            stored.ID,
			Volume:        stored.Volume,
			ChapterNumber: stored.ChapterNumber,
			ChapterTitle:  stored.ChapterTitle,
			Language:      stored.Language,
			IsOneshot:     stored.IsOneshot,
			UploaderID:    stored.UploaderID,
			ViewCount:     stored.ViewCount,
			UploadedAt:    stored.CreatedAt,
			PageCount:     len(stored.Pages),
		})
	}

	slices.SortFunc(summaries, func(left, right *chapter.Summary) int {
		return cmp.Or(
			compareNullable(left.Volume, right.Volume),
			compareNullable(left.ChapterNumber, right.ChapterNumber),
			cmp.Compare(left.ID, right.ID),
		)
	})
	return summaries, nil
}

func (repo *fakeRepository) ListByStatus(_ context.Context, status chapter.Status) ([]*chapter.Chapter, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	var chapters []*chapter.Chapter
	for _, stored := range repo.chapters {
		if stored.Status == status {
			copied := *stored
			chapters = append(chapters, &copied)
		}
	}
	slices.SortFunc(chapters, func(left, right *chapter.Chapter) int {
		return cmp.Compare(left.ID, right.ID)
	})
	return chapters, nil
}

func (repo *fakeRepository) UpdateStatus(_ context.Context, chapterID string, status chapter.Status, reason *string) (*string, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	stored, found := repo.chapters[chapterID]
	if !found {
		return nil, apperr.NotFound("Chapter")
	}
	stored.Status = status
	stored.RejectionReason = reason
	return stored.TitleID, nil
}

func (repo *fakeRepository) ChapterIDsByPages(_ context.Context, pageIDs []int64) (map[int64]string, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	owners := map[int64]string{}
	for _, stored := range repo.chapters {
		for _, page := range stored.Pages {
			if slices.Contains(pageIDs, page.ID) {
				owners[page.ID] = stored.ID
			}
		}
	}
	return owners, nil
}

// get returns the stored chapter without side effects.
func (repo *fakeRepository) get(chapterID string) *chapter.Chapter {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	return repo.chapters[chapterID]
}

// compareNullable orders nil after every value.
func compareNullable(left, right *int) int {
	switch {
	case left == nil && right == nil:
		return 0
	case left == nil:
		return 1
	case right == nil:
		return -1
	default:
		return cmp.Compare(*left, *right)
	}
}

// # Content Store

var errStoreUnavailable = errors.New("ipfs: node unavailable")

// fakeStore is a [chapter.ContentStore] that can fail or stall per file name.
type fakeStore struct {
	mu sync.Mutex

	// failures is how many attempts fail before success; negative fails forever.
	failures map[string]int
	delays   map[string]time.Duration
	calls    map[string]int
	bodies   map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		failures: map[string]int{},
		delays:   map[string]time.Duration{},
		calls:    map[string]int{},
		bodies:   map[string]string{},
	}
}

func (store *fakeStore) Put(ctx context.Context, name, _ string, content io.Reader) (string, error) {
	body, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}

	store.mu.Lock()
	store.calls[name]++
	attempt := store.calls[name]
	remaining := store.failures[name]
	delay := store.delays[name]
	store.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if remaining < 0 || attempt <= remaining {
		return "", errStoreUnavailable
	}

	store.mu.Lock()
	store.bodies[name] = string(body)
	store.mu.Unlock()
	return "cid-" + name, nil
}

func (store *fakeStore) callsFor(name string) int {
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.calls[name]
}

// # Cache

// fakeCache is an in-memory [chapter.ChapterCache] with optional view dedupe.
type fakeCache struct {
	mu          sync.Mutex
	summaries   map[string][]*chapter.Summary
	viewed      map[string]bool
	dedupe      bool
	markErr     error
	released    int
	invalidated []string
}

func newFakeCache(dedupe bool) *fakeCache {
	return &fakeCache{
		summaries: map[string][]*chapter.Summary{},
		viewed:    map[string]bool{},
		dedupe:    dedupe,
	}
}

func (cache *fakeCache) Summaries(_ context.Context, titleID string) ([]*chapter.Summary, bool, error) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	summaries, found := cache.summaries[titleID]
	return summaries, found, nil
}

func (cache *fakeCache) StoreSummaries(_ context.Context, titleID string, summaries []*chapter.Summary) error {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	cache.summaries[titleID] = summaries
	return nil
}

func (cache *fakeCache) InvalidateSummaries(_ context.Context, titleID string) error {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	delete(cache.summaries, titleID)
	cache.invalidated = append(cache.invalidated, titleID)
	return nil
}

func (cache *fakeCache) MarkViewed(_ context.Context, viewer, chapterID string) (bool, error) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	if cache.markErr != nil {
		return true, cache.markErr
	}
	if !cache.dedupe {
		return true, nil
	}
	key := chapterID + ":" + viewer
	if cache.viewed[key] {
		return false, nil
	}
	cache.viewed[key] = true
	return true, nil
}

func (cache *fakeCache) ReleaseView(_ context.Context, viewer, chapterID string) error {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	delete(cache.viewed, chapterID+":"+viewer)
	cache.released++
	return nil
}

// # Fixtures

// fixture bundles a service with its fakes and a real staging area.
type fixture struct {
	service *chapter.Service
	repo    *fakeRepository
	store   *fakeStore
	cache   *fakeCache
	area    *staging.Area
}

func newFixture(t *testing.T, concurrency int) *fixture {
	t.Helper()

	area, err := staging.New(filepath.Join(t.TempDir(), "staging"))
	require.NoError(t, err)

	fixture := &fixture{
		repo:  newFakeRepository(),
		store: newFakeStore(),
		cache: newFakeCache(false),
		area:  area,
	}
	fixture.service = chapter.NewService(fixture.repo, fixture.cache, fixture.store, chapter.Options{
		RetryPolicy:       retry.Policy{MaxRetries: 3, BaseDelay: 0},
		UploadConcurrency: concurrency,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	return fixture
}

// stage writes one staged file per name, with the name as content.
func (fixture *fixture) stage(t *testing.T, names ...string) []*staging.File {
	t.Helper()

	files := make([]*staging.File, 0, len(names))
	for _, name := range names {
		file, err := fixture.area.Stage(name, bytes.NewReader([]byte("page "+name)))
		require.NoError(t, err)
		files = append(files, file)
	}
	return files
}

// stagedCount reports how many files remain in the staging area.
func (fixture *fixture) stagedCount(t *testing.T) int {
	t.Helper()

	entries, err := filepath.Glob(filepath.Join(fixture.area.Dir(), "*"))
	require.NoError(t, err)
	return len(entries)
}

// seed ingests a chapter for titleID and returns its ID.
func (fixture *fixture) seed(t *testing.T, titleID string, names ...string) string {
	t.Helper()

	result, err := fixture.service.IngestChapter(context.Background(), fixture.stage(t, names...), chapter.Metadata{
		TitleID:  &titleID,
		Title:    "Foo",
		Language: "en",
	}, "uploader-1")
	require.NoError(t, err)
	return result.ChapterID
}
