// Copyright (c) 2026 Koma. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package chapter

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/taibuivan/koma/internal/platform/apperr"
	"github.com/taibuivan/koma/internal/platform/constants"
	"github.com/taibuivan/koma/internal/platform/ipfs"
	"github.com/taibuivan/koma/internal/platform/middleware"
	requestutil "github.com/taibuivan/koma/internal/platform/request"
	"github.com/taibuivan/koma/internal/platform/respond"
	"github.com/taibuivan/koma/internal/platform/sec"
	"github.com/taibuivan/koma/internal/platform/staging"
	"github.com/taibuivan/koma/internal/platform/validate"
	"github.com/taibuivan/koma/pkg/convert"
	"github.com/taibuivan/koma/pkg/pointer"
	"github.com/taibuivan/koma/pkg/query"
	"github.com/taibuivan/koma/pkg/slice"
)

// Multipart and URL parameter names.
const (
	formTitle         = "title"
	formTitleID       = "titleId"
	formVolume        = "volume"
	formChapterNumber = "chapterNumber"
	formChapterTitle  = "chapterTitle"
	formLanguage      = "language"
	formIsOneshot     = "isOneshot"

	paramTitleID   = "titleID"
	paramChapterID = "chapterID"
)

// # Handler Implementation

// Handler implements the HTTP layer for chapters.
type Handler struct {
	service   *Service
	area      *staging.Area
	gateway   ipfs.Gateway
	maxMemory int64
}

/*
NewHandler constructs a new chapter [Handler].

Parameters:
  - service: *Service
  - area: *staging.Area (Where uploaded parts are staged)
  - gateway: ipfs.Gateway (Builds page URLs)
  - maxMemory: int64 (Multipart bytes kept in memory before spilling to disk)
*/
func NewHandler(service *Service, area *staging.Area, gateway ipfs.Gateway, maxMemory int64) *Handler {
	return &Handler{service: service, area: area, gateway: gateway, maxMemory: maxMemory}
}

// RegisterRoutes attaches chapter endpoints to the versioned API router.
//
// Uploads get their own deadline because a batch may spend minutes in retries.
func (handler *Handler) RegisterRoutes(api chi.Router) {

	// Ingestion
	api.Group(func(upload chi.Router) {
		upload.Use(chimw.Timeout(constants.IngestRequestTimeout))
		upload.Use(middleware.RequireAuth)
		upload.Post("/chapters", handler.IngestChapter)
	})

	api.Group(func(reader chi.Router) {
		reader.Use(chimw.Timeout(constants.GlobalRequestTimeout))

		// Reader endpoints
		reader.Get("/titles/{titleID}/chapters", handler.ListChapters)
		reader.Get("/titles/{titleID}/chapters/{chapterID}", handler.GetChapter)

		// Reviewer endpoints
		reader.Group(func(moderator chi.Router) {
			moderator.Use(middleware.RequireRole(sec.RoleModerator))
			moderator.Get("/titles/{titleID}/chapters/{chapterID}/preview", handler.PreviewChapter)
			moderator.Get("/moderation/chapters", handler.ListModerationQueue)
		})

		// Decisions
		reader.Group(func(admin chi.Router) {
			admin.Use(middleware.RequireRole(sec.RoleAdmin))
			admin.Patch("/moderation/chapters/{chapterID}", handler.ReviewChapter)
			admin.Patch("/moderation/pages", handler.ReviewPages)
		})
	})
}

// # Response Views

// pageView is one page as served to clients.
type pageView struct {
	ID        int64  `json:"id"`
	FileOrder int    `json:"fileOrder"`
	FilePath  string `json:"filePath"`
	URL       string `json:"url,omitempty"`
}

// chapterView is a chapter with its ordered pages.
type chapterView struct {
	ID              string     `json:"id"`
	TitleID         *string    `json:"titleId"`
	Title           string     `json:"title"`
	ChapterNumber   *int       `json:"chapterNumber"`
	Volume          *int       `json:"volume"`
	ChapterTitle    *string    `json:"chapterTitle"`
	Language        string     `json:"language"`
	IsOneshot       bool       `json:"isOneshot"`
	Uploader        string     `json:"uploader"`
	ViewCount       int64      `json:"viewCount"`
	Status          Status     `json:"status"`
	RejectionReason *string    `json:"rejectionReason"`
	Pages           []pageView `json:"pages"`
}

// chapterGroup is a moderation queue entry.
type chapterGroup struct {
	chapterView
	UploadedAt time.Time `json:"uploadedAt"`
}

// ingestView is the body of a successful upload.
type ingestView struct {
	ChapterID  string      `json:"chapterId"`
	Pages      []pageView  `json:"pages"`
	FileErrors []FileError `json:"fileErrors"`
}

// reviewView is the body of a successful review.
type reviewView struct {
	ChapterID string `json:"chapterId"`
	Status    Status `json:"status"`
}

func (handler *Handler) toPageViews(pages []*Page) []pageView {
	views := slice.Map(pages, func(page *Page) pageView {
		return pageView{
			ID:        page.ID,
			FileOrder: page.FileOrder,
			FilePath:  page.FilePath,
			URL:       handler.gateway.URL(page.FilePath),
		}
	})
	if views == nil {
		views = []pageView{}
	}
	return views
}

func (handler *Handler) toChapterView(chapter *Chapter) chapterView {
	return chapterView{
		ID:              chapter.ID,
		TitleID:         chapter.TitleID,
		Title:           chapter.Title,
		ChapterNumber:   chapter.ChapterNumber,
		Volume:          chapter.Volume,
		ChapterTitle:    chapter.ChapterTitle,
		Language:        chapter.Language,
		IsOneshot:       chapter.IsOneshot,
		Uploader:        chapter.UploaderID,
		ViewCount:       chapter.ViewCount,
		Status:          chapter.Status,
		RejectionReason: chapter.RejectionReason,
		Pages:           handler.toPageViews(chapter.Pages),
	}
}

// # Chapter Ingestion

/*
POST /api/v1/chapters.

Description: Accepts a multipart batch of page files for one chapter. Files
that still fail after retries are listed in fileErrors; the chapter is created
from the rest.

Request:
  - files: file[] (Page images, in reading order; "files[]" is accepted too)
  - title, titleId, volume, chapterNumber, chapterTitle, language, isOneshot: form values

Response:
  - 201: ingestView: Created chapter (message set when some files failed)
  - 400: ErrValidation/ALL_UPLOADS_FAILED: No usable file or bad metadata
  - 401: ErrUnauthorized: Authentication required
  - 500: PERSISTENCE_ERROR: Ledger write failed
*/
func (handler *Handler) IngestChapter(writer http.ResponseWriter, request *http.Request) {
	uploaderID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	// 1. Multipart parsing
	if err := request.ParseMultipartForm(handler.maxMemory); err != nil {
		respond.Error(writer, request, apperr.ValidationError("Invalid multipart form"))
		return
	}
	defer func() { _ = request.MultipartForm.RemoveAll() }()

	// 2. Metadata
	metadata, err := parseMetadata(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	// 3. Staging
	files, err := handler.stageParts(partsOf(request.MultipartForm))
	if err != nil {
		respond.Error(writer, request, apperr.Internal(err))
		return
	}

	// 4. Ingestion (owns the staged files from here on)
	result, err := handler.service.IngestChapter(request.Context(), files, metadata, uploaderID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	view := ingestView{
		ChapterID:  result.ChapterID,
		Pages:      handler.toPageViews(result.Pages),
		FileErrors: result.FileErrors,
	}

	if failed := len(result.FileErrors); failed > 0 {
		respond.CreatedWithMessage(writer, view, fmt.Sprintf("%d of %d files failed to upload", failed, failed+len(result.Pages)))
		return
	}
	respond.Created(writer, view)
}

// partsOf returns the uploaded page parts in submission order.
func partsOf(form *multipart.Form) []*multipart.FileHeader {
	parts := form.File[constants.FormFieldFiles]
	return append(parts, form.File[constants.FormFieldFiles+"[]"]...)
}

// stageParts copies every part into the staging area, sweeping on failure.
func (handler *Handler) stageParts(parts []*multipart.FileHeader) ([]*staging.File, error) {
	files := make([]*staging.File, 0, len(parts))

	for _, part := range parts {
		file, err := handler.stagePart(part)
		if err != nil {
			staging.Sweep(files)
			return nil, err
		}
		files = append(files, file)
	}

	return files, nil
}

func (handler *Handler) stagePart(part *multipart.FileHeader) (*staging.File, error) {
	content, err := part.Open()
	if err != nil {
		return nil, fmt.Errorf("chapter: failed to open part %s: %w", part.Filename, err)
	}
	defer content.Close()

	return handler.area.Stage(part.Filename, content)
}

// parseMetadata reads the chapter description from the form values.
func parseMetadata(request *http.Request) (Metadata, error) {
	metadata := Metadata{
		TitleID:       pointer.NonBlank(request.FormValue(formTitleID)),
		Title:         strings.TrimSpace(request.FormValue(formTitle)),
		Volume:        convert.ToIntPtr(request.FormValue(formVolume)),
		ChapterNumber: convert.ToIntPtr(request.FormValue(formChapterNumber)),
		ChapterTitle:  pointer.NonBlank(request.FormValue(formChapterTitle)),
		Language:      strings.TrimSpace(request.FormValue(formLanguage)),
		IsOneshot:     convert.ToBool(request.FormValue(formIsOneshot)),
	}

	validator := &validate.Validator{}
	validator.NonNegative(formVolume, metadata.Volume)
	validator.NonNegative(formChapterNumber, metadata.ChapterNumber)
	if err := validator.Err(); err != nil {
		return Metadata{}, err
	}

	return metadata, nil
}

// # Reader Retrieval

/*
GET /api/v1/titles/{titleID}/chapters.

Description: Returns the table of contents of a title: approved chapters only,
ordered by volume then chapter number, without pages.

Response:
  - 200: []Summary
*/
func (handler *Handler) ListChapters(writer http.ResponseWriter, request *http.Request) {
	titleID := requestutil.Param(request, paramTitleID)

	summaries, err := handler.service.ListChapters(request.Context(), titleID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.List(writer, summaries, len(summaries))
}

/*
GET /api/v1/titles/{titleID}/chapters/{chapterID}.

Description: Returns an approved chapter with its ordered pages and counts a view.

Response:
  - 200: chapterView
  - 404: ErrNotFound: Unknown, unapproved, or belongs to another title
*/
func (handler *Handler) GetChapter(writer http.ResponseWriter, request *http.Request) {
	handler.serveChapter(writer, request, []Status{StatusApproved})
}

/*
GET /api/v1/titles/{titleID}/chapters/{chapterID}/preview.

Description: Returns a chapter awaiting or failing review. No view is counted.

Request:
  - status: string (Comma-separated filter; defaults to pending,rejected)

Response:
  - 200: chapterView
  - 400: ErrValidation: Unknown status in filter
  - 403: ErrForbidden: Moderator role required
  - 404: ErrNotFound: Not in the requested statuses
*/
func (handler *Handler) PreviewChapter(writer http.ResponseWriter, request *http.Request) {
	filter := PreviewFilter()

	if raw := query.Values(request.URL.Query()[FieldStatus]); len(raw) > 0 {
		filter = make([]Status, 0, len(raw))
		for _, value := range raw {
			status, ok := ParseStatus(value)
			if !ok {
				respond.Error(writer, request, apperr.ValidationError("Validation failed", apperr.FieldError{
					Field:   FieldStatus,
					Message: "Must be one of: pending, approved, rejected",
				}))
				return
			}
			filter = append(filter, status)
		}
	}

	handler.serveChapter(writer, request, filter)
}

func (handler *Handler) serveChapter(writer http.ResponseWriter, request *http.Request, filter []Status) {
	titleID := requestutil.Param(request, paramTitleID)
	chapterID := requestutil.Param(request, paramChapterID)

	chapter, err := handler.service.GetChapter(request.Context(), titleID, chapterID, filter, viewerOf(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, handler.toChapterView(chapter))
}

// viewerOf identifies the reader for view dedupe: the user when signed in, else the client IP.
func viewerOf(request *http.Request) string {
	if claims := requestutil.Claims(request); claims != nil {
		return claims.UserID
	}
	return middleware.RealIP(request)
}

// # Moderation

/*
GET /api/v1/moderation/chapters.

Description: Lists every chapter in one status across all titles, each with
its full page list.

Request:
  - status: string (Defaults to pending)

Response:
  - 200: []chapterGroup
  - 400: ErrValidation: Unknown status
  - 403: ErrForbidden: Moderator role required
*/
func (handler *Handler) ListModerationQueue(writer http.ResponseWriter, request *http.Request) {
	status := StatusPending
	if raw := request.URL.Query().Get(FieldStatus); raw != "" {
		status, _ = ParseStatus(raw)
	}

	chapters, err := handler.service.ListModerationQueue(request.Context(), status)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	groups := slice.Map(chapters, func(chapter *Chapter) chapterGroup {
		return chapterGroup{chapterView: handler.toChapterView(chapter), UploadedAt: chapter.CreatedAt}
	})
	if groups == nil {
		groups = []chapterGroup{}
	}

	respond.List(writer, groups, len(groups))
}

// reviewRequest is the decision body of the review endpoints.
type reviewRequest struct {
	PageIDs         []int64 `json:"pageIds"`
	Status          string  `json:"status"`
	RejectionReason string  `json:"rejectionReason"`
}

// target converts the raw status. Unknown values are left for the state machine to refuse.
func (input reviewRequest) target() Status {
	status, _ := ParseStatus(input.Status)
	return status
}

/*
PATCH /api/v1/moderation/chapters/{chapterID}.

Description: Approves or rejects a whole chapter.

Request:
  - body: {status, rejectionReason}

Response:
  - 200: reviewView
  - 400: INVALID_STATE: Bad target or missing reason
  - 403: ErrForbidden: Admin role required
  - 404: ErrNotFound: Unknown chapter
*/
func (handler *Handler) ReviewChapter(writer http.ResponseWriter, request *http.Request) {
	chapterID := requestutil.Param(request, paramChapterID)

	var input reviewRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.ReviewChapter(request.Context(), chapterID, input.target(), input.RejectionReason); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, reviewView{ChapterID: chapterID, Status: input.target()})
}

/*
PATCH /api/v1/moderation/pages.

Description: Applies a decision to the chapter owning the given pages.

Request:
  - body: {pageIds, status, rejectionReason}

Response:
  - 200: reviewView
  - 400: ErrValidation/INVALID_STATE: No pages, pages of several chapters, bad target
  - 403: ErrForbidden: Admin role required
  - 404: ErrNotFound: Unknown page
*/
func (handler *Handler) ReviewPages(writer http.ResponseWriter, request *http.Request) {
	var input reviewRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	chapterID, err := handler.service.ReviewPages(request.Context(), input.PageIDs, input.target(), input.RejectionReason)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, reviewView{ChapterID: chapterID, Status: input.target()})
}
