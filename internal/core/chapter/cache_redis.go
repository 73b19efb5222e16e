// Copyright (c) 2026 Koma. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package chapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/koma/internal/platform/constants"
)

// RedisChapterCache implements [ChapterCache] using Redis.
type RedisChapterCache struct {
	client     *redis.Client
	summaryTTL time.Duration
	viewWindow time.Duration
}

// NewRedisChapterCache creates a Redis-backed [ChapterCache].
//
// A zero summaryTTL disables table-of-contents caching and a zero viewWindow
// counts every view.
func NewRedisChapterCache(client *redis.Client, summaryTTL, viewWindow time.Duration) *RedisChapterCache {
	return &RedisChapterCache{
		client:     client,
		summaryTTL: summaryTTL,
		viewWindow: viewWindow,
	}
}

// # Table of Contents

/*
Summaries returns the cached table of contents of a title.

Parameters:
  - ctx: context.Context
  - titleID: string

Returns:
  - []*Summary: Cached entries
  - bool: false on a cache miss
  - error: Connectivity or decoding failures
*/
func (cache *RedisChapterCache) Summaries(ctx context.Context, titleID string) ([]*Summary, bool, error) {
	if cache.summaryTTL <= 0 {
		return nil, false, nil
	}

	payload, err := cache.client.Get(ctx, summaryKey(titleID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis_chapter_list_get_failed: %w", err)
	}

	var summaries []*Summary
	if err := json.Unmarshal(payload, &summaries); err != nil {
		return nil, false, fmt.Errorf("redis_chapter_list_decode_failed: %w", err)
	}

	return summaries, true, nil
}

// StoreSummaries caches a table of contents for the configured TTL.
func (cache *RedisChapterCache) StoreSummaries(ctx context.Context, titleID string, summaries []*Summary) error {
	if cache.summaryTTL <= 0 {
		return nil
	}

	payload, err := json.Marshal(summaries)
	if err != nil {
		return fmt.Errorf("redis_chapter_list_encode_failed: %w", err)
	}

	if err := cache.client.Set(ctx, summaryKey(titleID), payload, cache.summaryTTL).Err(); err != nil {
		return fmt.Errorf("redis_chapter_list_set_failed: %w", err)
	}

	return nil
}

// InvalidateSummaries drops the cached table of contents of a title.
func (cache *RedisChapterCache) InvalidateSummaries(ctx context.Context, titleID string) error {
	if err := cache.client.Del(ctx, summaryKey(titleID)).Err(); err != nil {
		return fmt.Errorf("redis_chapter_list_delete_failed: %w", err)
	}
	return nil
}

// # View Accounting

/*
MarkViewed decides whether a read counts as a new view.

Description: With a zero window every read counts. Otherwise the first read
of a chapter by a viewer inside the window claims a SETNX key and counts;
later reads inside the window do not.

Parameters:
  - ctx: context.Context
  - viewer: string (User ID or client IP)
  - chapterID: string

Returns:
  - bool: true when the view should be counted
  - error: Connectivity failures
*/
func (cache *RedisChapterCache) MarkViewed(ctx context.Context, viewer, chapterID string) (bool, error) {
	if cache.viewWindow <= 0 || viewer == "" {
		return true, nil
	}

	claimed, err := cache.client.SetNX(ctx, viewKey(viewer, chapterID), 1, cache.viewWindow).Result()
	if err != nil {
		return true, fmt.Errorf("redis_chapter_view_claim_failed: %w", err)
	}

	return claimed, nil
}

// ReleaseView deletes the view claim of a viewer so the next read counts again.
func (cache *RedisChapterCache) ReleaseView(ctx context.Context, viewer, chapterID string) error {
	if cache.viewWindow <= 0 || viewer == "" {
		return nil
	}

	if err := cache.client.Del(ctx, viewKey(viewer, chapterID)).Err(); err != nil {
		return fmt.Errorf("redis_chapter_view_release_failed: %w", err)
	}
	return nil
}

func viewKey(viewer, chapterID string) string {
	return constants.RedisPrefixChapterView + chapterID + ":" + viewer
}

// summaryKey is the cache key of a title's table of contents.
func summaryKey(titleID string) string {
	return constants.RedisPrefixChapterList + titleID
}

// # No-op Cache

// noCache is used when no cache is wired: nothing is cached and every view counts.
type noCache struct{}

func (noCache) Summaries(context.Context, string) ([]*Summary, bool, error) { return nil, false, nil }

func (noCache) StoreSummaries(context.Context, string, []*Summary) error { return nil }

func (noCache) InvalidateSummaries(context.Context, string) error { return nil }

func (noCache) MarkViewed(context.Context, string, string) (bool, error) { return true, nil }

func (noCache) ReleaseView(context.Context, string, string) error { return nil }
