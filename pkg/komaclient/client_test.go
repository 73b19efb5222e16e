// Copyright (c) 2026 Koma. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package komaclient_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/koma/pkg/komaclient"
	"github.com/taibuivan/koma/pkg/retry"
)

var fastRetry = komaclient.WithRetryPolicy(retry.Policy{MaxRetries: 3, BaseDelay: 0})

func newTestClient(t *testing.T, handler http.HandlerFunc, options ...komaclient.Option) *komaclient.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := komaclient.New(server.URL+"/", append([]komaclient.Option{fastRetry}, options...)...)
	require.NoError(t, err)
	return client
}

/*
TestClient_Chapter retries server errors and orders pages.
*/
func TestClient_Chapter(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "/api/v1/titles/title-foo/chapters/chapter-1", request.URL.Path)

		if calls.Add(1) < 3 {
			writer.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(writer, `{"data":{"id":"chapter-1","status":"approved","viewCount":7,"pages":[
			{"id":11,"fileOrder":1,"filePath":"cid-b","url":"https://gw/ipfs/cid-b"},
			{"id":10,"fileOrder":0,"filePath":"cid-a","url":"https://gw/ipfs/cid-a"}
		]}}`)
	})

	chapter, err := client.Chapter(context.Background(), "title-foo", "chapter-1")
	require.NoError(t, err)

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, int64(7), chapter.ViewCount)
	assert.Equal(t, []string{"https://gw/ipfs/cid-a", "https://gw/ipfs/cid-b"}, chapter.PageURLs())
}

/*
TestClient_NotFoundIsFinal does not retry a missing chapter.
*/
func TestClient_NotFoundIsFinal(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(writer http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writer.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(writer, `{"error":"Chapter not found","code":"NOT_FOUND"}`)
	})

	_, err := client.Chapter(context.Background(), "title-foo", "missing")
	assert.ErrorIs(t, err, komaclient.ErrNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

/*
TestClient_Exhausted returns the last API error after the retry budget.
*/
func TestClient_Exhausted(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(writer http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writer.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(writer, `{"error":"Failed to persist data","code":"PERSISTENCE_ERROR"}`)
	})

	_, err := client.Chapters(context.Background(), "title-foo")

	var apiErr *komaclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "PERSISTENCE_ERROR", apiErr.Code)
	assert.Equal(t, int32(4), calls.Load())
}

/*
TestClient_Preview sends the bearer token.
*/
func TestClient_Preview(t *testing.T) {
	client := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
		if request.Header.Get("Authorization") != "Bearer mod-token" {
			writer.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(writer, `{"error":"Authentication required","code":"UNAUTHORIZED"}`)
			return
		}
		assert.Equal(t, "/api/v1/titles/title-foo/chapters/chapter-1/preview", request.URL.Path)
		_, _ = io.WriteString(writer, `{"data":{"id":"chapter-1","status":"rejected","rejectionReason":"blurry scans","pages":[]}}`)
	}, komaclient.WithToken("mod-token"))

	chapter, err := client.Preview(context.Background(), "title-foo", "chapter-1")
	require.NoError(t, err)
	assert.Equal(t, "rejected", chapter.Status)
	assert.Equal(t, "blurry scans", *chapter.RejectionReason)
}

/*
TestClient_Chapters decodes the table of contents.
*/
func TestClient_Chapters(t *testing.T) {
	client := newTestClient(t, func(writer http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(writer, `{"data":[{"id":"chapter-1","volume":1,"chapterNumber":2,"pageCount":12,"uploadedAt":"2026-01-02T03:04:05Z"}],"meta":{"total":1}}`)
	})

	summaries, err := client.Chapters(context.Background(), "title-foo")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 2, *summaries[0].ChapterNumber)
	assert.Equal(t, 12, summaries[0].PageCount)
}

/*
TestNew rejects unusable base URLs.
*/
func TestNew(t *testing.T) {
	_, err := komaclient.New("not a url")
	assert.Error(t, err)
}
