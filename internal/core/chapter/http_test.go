// Copyright (c) 2026 Koma. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package chapter_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/koma/internal/core/chapter"
	"github.com/taibuivan/koma/internal/platform/ipfs"
	"github.com/taibuivan/koma/internal/platform/middleware"
	"github.com/taibuivan/koma/internal/platform/sec"
)

// stubVerifier maps bearer tokens to fixed identities.
type stubVerifier map[string]*sec.AuthClaims

func (verifier stubVerifier) VerifyToken(token string) (*sec.AuthClaims, error) {
	if claims, found := verifier[token]; found {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

var testTokens = stubVerifier{
	"member":    {UserID: "member-1", Role: string(sec.RoleMember)},
	"moderator": {UserID: "mod-1", Role: string(sec.RoleModerator)},
	"admin":     {UserID: "admin-1", Role: string(sec.RoleAdmin)},
}

func newTestRouter(fixture *fixture) http.Handler {
	handler := chapter.NewHandler(fixture.service, fixture.area, ipfs.NewGateway("https://gw.test/ipfs"), 1<<20)

	router := chi.NewRouter()
	router.Use(middleware.Authenticate(testTokens))
	router.Route("/api/v1", handler.RegisterRoutes)
	return router
}

// envelope mirrors the response wrappers of the respond package.
type envelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Meta    struct {
		Total int `json:"total"`
	} `json:"meta"`
	Code    string `json:"code"`
	Details []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"details"`
}

func serve(t *testing.T, router http.Handler, request *http.Request, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	var body envelope
	if recorder.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body), recorder.Body.String())
	}
	return recorder, body
}

func uploadRequest(t *testing.T, fields map[string]string, files ...string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	for key, value := range fields {
		require.NoError(t, form.WriteField(key, value))
	}
	for _, name := range files {
		part, err := form.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = io.WriteString(part, "page "+name)
		require.NoError(t, err)
	}
	require.NoError(t, form.Close())

	request := httptest.NewRequest(http.MethodPost, "/api/v1/chapters", &body)
	request.Header.Set("Content-Type", form.FormDataContentType())
	return request
}

func jsonRequest(method, target, body string) *http.Request {
	request := httptest.NewRequest(method, target, strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	return request
}

/*
TestHTTP_IngestChapter creates a chapter from a multipart batch.
*/
func TestHTTP_IngestChapter(t *testing.T) {
	fixture := newFixture(t, 1)
	router := newTestRouter(fixture)

	request := uploadRequest(t, map[string]string{
		"title":         "Foo",
		"titleId":       "title-foo",
		"volume":        "1",
		"chapterNumber": "5",
		"chapterTitle":  "  ",
		"language":      "en",
	}, "001.png", "002.png")

	recorder, body := serve(t, router, request, "member")
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())
	assert.Empty(t, body.Message)

	var created struct {
		ChapterID string `json:"chapterId"`
		Pages     []struct {
			FileOrder int    `json:"fileOrder"`
			FilePath  string `json:"filePath"`
			URL       string `json:"url"`
		} `json:"pages"`
		FileErrors []chapter.FileError `json:"fileErrors"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &created))

	require.Len(t, created.Pages, 2)
	assert.Equal(t, "cid-002.png", created.Pages[1].FilePath)
	assert.Equal(t, "https://gw.test/ipfs/cid-002.png", created.Pages[1].URL)
	assert.NotNil(t, created.FileErrors)

	stored := fixture.repo.get(created.ChapterID)
	require.NotNil(t, stored)
	assert.Equal(t, "member-1", stored.UploaderID)
	assert.Equal(t, "title-foo", *stored.TitleID)
	assert.Equal(t, 5, *stored.ChapterNumber)
	assert.Nil(t, stored.ChapterTitle)
	assert.Zero(t, fixture.stagedCount(t))
}

/*
TestHTTP_IngestChapter_PartialFailure reports dropped files with a message.
*/
func TestHTTP_IngestChapter_PartialFailure(t *testing.T) {
	fixture := newFixture(t, 1)
	fixture.store.failures["002.png"] = -1
	router := newTestRouter(fixture)

	request := uploadRequest(t, map[string]string{"language": "en"}, "001.png", "002.png", "003.png")
	recorder, body := serve(t, router, request, "member")

	require.Equal(t, http.StatusCreated, recorder.Code)
	assert.Equal(t, "1 of 3 files failed to upload", body.Message)
	assert.Contains(t, string(body.Data), `"filename":"002.png"`)
}

/*
TestHTTP_IngestChapter_Errors maps failures to status codes.
*/
func TestHTTP_IngestChapter_Errors(t *testing.T) {
	fixture := newFixture(t, 1)
	fixture.store.failures["bad.png"] = -1
	router := newTestRouter(fixture)

	t.Run("anonymous", func(t *testing.T) {
		recorder, _ := serve(t, router, uploadRequest(t, map[string]string{"language": "en"}, "001.png"), "")
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("missing language", func(t *testing.T) {
		recorder, body := serve(t, router, uploadRequest(t, nil, "001.png"), "member")
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.Equal(t, "VALIDATION_ERROR", body.Code)
	})

	t.Run("negative volume", func(t *testing.T) {
		recorder, body := serve(t, router, uploadRequest(t, map[string]string{"language": "en", "volume": "-1"}, "001.png"), "member")
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		require.NotEmpty(t, body.Details)
		assert.Equal(t, "volume", body.Details[0].Field)
	})

	t.Run("all uploads failed", func(t *testing.T) {
		recorder, body := serve(t, router, uploadRequest(t, map[string]string{"language": "en"}, "bad.png"), "member")
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.Equal(t, "ALL_UPLOADS_FAILED", body.Code)
	})

	t.Run("not multipart", func(t *testing.T) {
		recorder, _ := serve(t, router, jsonRequest(http.MethodPost, "/api/v1/chapters", `{}`), "member")
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	assert.Zero(t, fixture.stagedCount(t))
}

/*
TestHTTP_ReaderAndModerationFlow walks a chapter from upload to publication.
*/
func TestHTTP_ReaderAndModerationFlow(t *testing.T) {
	fixture := newFixture(t, 1)
	router := newTestRouter(fixture)
	chapterID := fixture.seed(t, "title-foo", "001.png", "002.png")
	chapterPath := "/api/v1/titles/title-foo/chapters/" + chapterID

	// Pending chapters are invisible to readers
	recorder, _ := serve(t, router, httptest.NewRequest(http.MethodGet, chapterPath, nil), "")
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	// Preview needs a moderator
	recorder, _ = serve(t, router, httptest.NewRequest(http.MethodGet, chapterPath+"/preview", nil), "member")
	assert.Equal(t, http.StatusForbidden, recorder.Code)

	recorder, body := serve(t, router, httptest.NewRequest(http.MethodGet, chapterPath+"/preview", nil), "moderator")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, string(body.Data), `"status":"pending"`)

	recorder, _ = serve(t, router, httptest.NewRequest(http.MethodGet, chapterPath+"/preview?status=approved,bogus", nil), "moderator")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	// Moderation queue
	recorder, body = serve(t, router, httptest.NewRequest(http.MethodGet, "/api/v1/moderation/chapters", nil), "moderator")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, 1, body.Meta.Total)
	assert.Contains(t, string(body.Data), `"uploadedAt"`)

	// Decisions need an admin
	recorder, _ = serve(t, router, jsonRequest(http.MethodPatch, "/api/v1/moderation/chapters/"+chapterID, `{"status":"approved"}`), "moderator")
	assert.Equal(t, http.StatusForbidden, recorder.Code)

	recorder, body = serve(t, router, jsonRequest(http.MethodPatch, "/api/v1/moderation/chapters/"+chapterID, `{"status":"rejected"}`), "admin")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "INVALID_STATE", body.Code)

	recorder, _ = serve(t, router, jsonRequest(http.MethodPatch, "/api/v1/moderation/chapters/"+chapterID, `{"status":"Approved"}`), "admin")
	require.Equal(t, http.StatusOK, recorder.Code)

	// Published
	recorder, body = serve(t, router, httptest.NewRequest(http.MethodGet, chapterPath, nil), "")
	require.Equal(t, http.StatusOK, recorder.Code)

	var view struct {
		ViewCount int64 `json:"viewCount"`
		Pages     []struct {
			FileOrder int    `json:"fileOrder"`
			URL       string `json:"url"`
		} `json:"pages"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &view))
	assert.Equal(t, int64(1), view.ViewCount)
	require.Len(t, view.Pages, 2)
	assert.Equal(t, 1, view.Pages[1].FileOrder)
	assert.Equal(t, "https://gw.test/ipfs/cid-002.png", view.Pages[1].URL)

	// Table of contents
	recorder, body = serve(t, router, httptest.NewRequest(http.MethodGet, "/api/v1/titles/title-foo/chapters", nil), "")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, 1, body.Meta.Total)
	assert.Contains(t, string(body.Data), `"pageCount":2`)
}

/*
TestHTTP_ReviewPages applies a decision through page IDs.
*/
func TestHTTP_ReviewPages(t *testing.T) {
	fixture := newFixture(t, 1)
	router := newTestRouter(fixture)
	chapterID := fixture.seed(t, "title-foo", "001.png", "002.png")
	pages := fixture.repo.get(chapterID).Pages

	payload, err := json.Marshal(map[string]any{
		"pageIds":         []int64{pages[0].ID, pages[1].ID},
		"status":          "rejected",
		"rejectionReason": "blurry scans",
	})
	require.NoError(t, err)

	recorder, body := serve(t, router, jsonRequest(http.MethodPatch, "/api/v1/moderation/pages", string(payload)), "admin")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, string(body.Data), chapterID)
	assert.Equal(t, "blurry scans", *fixture.repo.get(chapterID).RejectionReason)

	recorder, _ = serve(t, router, jsonRequest(http.MethodPatch, "/api/v1/moderation/pages", `{"pageIds":[424242],"status":"approved"}`), "admin")
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	recorder, _ = serve(t, router, jsonRequest(http.MethodPatch, "/api/v1/moderation/pages", `not json`), "admin")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}
