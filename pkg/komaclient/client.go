// Copyright (c) 2026 Koma. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package komaclient is a reader-side client for the Koma API.

It fetches a title's table of contents and individual chapters, retrying
transient failures with the same linear policy the server uses for uploads.

Usage:

	client, err := komaclient.New("https://api.koma.app")
	chapter, err := client.Chapter(ctx, titleID, chapterID)
	for _, url := range chapter.PageURLs() { ... }

A retried chapter fetch may count more than one view when the server does not
deduplicate views.
*/
package komaclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/taibuivan/koma/pkg/retry"
)

const (
	defaultTimeout = 30 * time.Second

	// maxErrorBody bounds how much of an error response is decoded.
	maxErrorBody = 16 << 10
)

// ErrNotFound is returned when the chapter is unknown or not visible to the caller.
var ErrNotFound = errors.New("komaclient: not found")

// # Response Types

// Page is one page of a chapter.
type Page struct {
	ID        int64  `json:"id"`
	FileOrder int    `json:"fileOrder"`
	FilePath  string `json:"filePath"`
	URL       string `json:"url"`
}

// Chapter is a chapter with its pages.
type Chapter struct {
	ID              string  `json:"id"`
	TitleID         *string `json:"titleId"`
	Title           string  `json:"title"`
	ChapterNumber   *int    `json:"chapterNumber"`
	Volume          *int    `json:"volume"`
	ChapterTitle    *string `json:"chapterTitle"`
	Language        string  `json:"language"`
	IsOneshot       bool    `json:"isOneshot"`
	Uploader        string  `json:"uploader"`
	ViewCount       int64   `json:"viewCount"`
	Status          string  `json:"status"`
	RejectionReason *string `json:"rejectionReason"`
	Pages           []Page  `json:"pages"`
}

// PageURLs returns the page URLs in reading order.
func (chapter *Chapter) PageURLs() []string {
	urls := make([]string, len(chapter.Pages))
	for index, page := range chapter.Pages {
		urls[index] = page.URL
	}
	return urls
}

// Summary is one table-of-contents entry.
type Summary struct {
	ID            string    `json:"id"`
	Volume        *int      `json:"volume"`
	ChapterNumber *int      `json:"chapterNumber"`
	ChapterTitle  *string   `json:"chapterTitle"`
	Language      string    `json:"language"`
	IsOneshot     bool      `json:"isOneshot"`
	Uploader      string    `json:"uploader"`
	ViewCount     int64     `json:"viewCount"`
	UploadedAt    time.Time `json:"uploadedAt"`
	PageCount     int       `json:"pageCount"`
}

// APIError is a non-success response from the API.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"error"`
}

func (err *APIError) Error() string {
	return fmt.Sprintf("komaclient: %d %s: %s", err.StatusCode, err.Code, err.Message)
}

// # Client

// Client talks to one Koma API deployment.
type Client struct {
	baseURL    string
	httpClient *http.Client
	policy     retry.Policy
	token      string
}

// Option customizes a [Client].
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(client *Client) { client.httpClient = httpClient }
}

// WithRetryPolicy replaces [retry.DefaultPolicy].
func WithRetryPolicy(policy retry.Policy) Option {
	return func(client *Client) { client.policy = policy }
}

// WithToken sends a bearer token, e.g. for moderator previews.
func WithToken(token string) Option {
	return func(client *Client) { client.token = token }
}

// New builds a client for the API at baseURL.
func New(baseURL string, options ...Option) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("komaclient: invalid base URL %q", baseURL)
	}

	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		policy:     retry.DefaultPolicy(),
	}
	for _, option := range options {
		option(client)
	}

	return client, nil
}

/*
Chapter fetches an approved chapter.

Parameters:
  - ctx: context.Context
  - titleID: string
  - chapterID: string

Returns:
  - *Chapter: Pages sorted by fileOrder
  - error: ErrNotFound, *APIError, or the last transport error
*/
func (client *Client) Chapter(ctx context.Context, titleID, chapterID string) (*Chapter, error) {
	return client.fetchChapter(ctx, "/api/v1/titles/"+url.PathEscape(titleID)+"/chapters/"+url.PathEscape(chapterID))
}

// Preview fetches a chapter awaiting review. It needs a moderator token.
func (client *Client) Preview(ctx context.Context, titleID, chapterID string) (*Chapter, error) {
	return client.fetchChapter(ctx, "/api/v1/titles/"+url.PathEscape(titleID)+"/chapters/"+url.PathEscape(chapterID)+"/preview")
}

// Chapters fetches the table of contents of a title.
func (client *Client) Chapters(ctx context.Context, titleID string) ([]Summary, error) {
	var summaries []Summary
	if err := client.get(ctx, "/api/v1/titles/"+url.PathEscape(titleID)+"/chapters", &summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}

func (client *Client) fetchChapter(ctx context.Context, path string) (*Chapter, error) {
	var chapter Chapter
	if err := client.get(ctx, path, &chapter); err != nil {
		return nil, err
	}

	slices.SortStableFunc(chapter.Pages, func(left, right Page) int {
		return left.FileOrder - right.FileOrder
	})
	return &chapter, nil
}

// # Transport

// envelope is the success wrapper of every API response.
type envelope struct {
	Data json.RawMessage `json:"data"`
}

// get performs a retried GET and decodes the envelope data into target.
//
// Server errors and transport failures are retried; other statuses are final.
func (client *Client) get(ctx context.Context, path string, target any) error {
	return retry.Do(ctx, client.policy, func(ctx context.Context) error {
		err := client.getOnce(ctx, path, target)

		var apiErr *APIError
		if errors.Is(err, ErrNotFound) || (errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError) {
			return retry.Permanent(err)
		}
		return err
	})
}

func (client *Client) getOnce(ctx context.Context, path string, target any) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, client.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("komaclient: build request: %w", err)
	}
	request.Header.Set("Accept", "application/json")
	if client.token != "" {
		request.Header.Set("Authorization", "Bearer "+client.token)
	}

	response, err := client.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("komaclient: GET %s: %w", path, err)
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if response.StatusCode != http.StatusOK {
		return decodeAPIError(response)
	}

	var body envelope
	if err := json.NewDecoder(response.Body).Decode(&body); err != nil {
		return fmt.Errorf("komaclient: decode response: %w", err)
	}
	if err := json.Unmarshal(body.Data, target); err != nil {
		return fmt.Errorf("komaclient: decode data: %w", err)
	}

	return nil
}

func decodeAPIError(response *http.Response) error {
	apiErr := &APIError{StatusCode: response.StatusCode}
	if err := json.NewDecoder(io.LimitReader(response.Body, maxErrorBody)).Decode(apiErr); err != nil {
		apiErr.Message = http.StatusText(response.StatusCode)
	}
	return apiErr
}
