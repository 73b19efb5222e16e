// Copyright (c) 2026 Koma. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package ipfs provides the content-addressed blob store used for chapter pages.

It talks to a Kubo node over its HTTP RPC API and returns a content identifier
(CID) per uploaded stream. The client holds no business logic.

Core Responsibilities:

  - Put: stream bytes to /api/v0/add and return the canonical CID string.
  - Ping: check node reachability for readiness probes.
  - Gateway: turn a CID into a fetchable URL (presentation only).

Re-uploading identical bytes yields the same CID, so callers may retry Put freely.
*/
package ipfs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/ipfs/go-cid"
)

// Opinionated defaults for the RPC transport.
const (
	addPath     = "/api/v0/add"
	versionPath = "/api/v0/version"
	pingTimeout = 2 * time.Second

	// maxErrorBody bounds how much of an error response is read into memory.
	maxErrorBody = 4 << 10
)

// Client uploads page bytes to a Kubo node.
type Client struct {
	apiURL     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient builds a client for the Kubo RPC endpoint at apiURL.
//
// # Parameters
//   - apiURL: Base RPC URL (e.g. http://127.0.0.1:5001).
//   - timeout: Per-call HTTP timeout.
//   - logger: Structured logger for transport events.
func NewClient(apiURL string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	parsed, err := url.Parse(apiURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("ipfs: invalid API URL %q", apiURL)
	}

	return &Client{
		apiURL: strings.TrimRight(apiURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{MaxIdleConnsPerHost: 10},
		},
		logger: logger.With(slog.String("component", "ipfs_client")),
	}, nil
}

// addResponse is the JSON object Kubo streams back for each added file.
type addResponse struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

// rpcError is the JSON body Kubo returns on failures.
type rpcError struct {
	Message string `json:"Message"`
	Code    int    `json:"Code"`
}

/*
Put streams content to the node and returns its CID.

Description: Sends a single-part multipart body to /api/v0/add with CIDv1
and pinning enabled. The returned hash is parsed and re-encoded so that
callers always store the canonical string form.

Parameters:
  - ctx: context.Context
  - name: string (Display name recorded by the node)
  - contentType: string (MIME type of the part, may be empty)
  - content: io.Reader

Returns:
  - string: Canonical CID
  - error: Transport, RPC or decoding failures
*/
func (client *Client) Put(ctx context.Context, name, contentType string, content io.Reader) (string, error) {
	bodyReader, bodyWriter := io.Pipe()
	form := multipart.NewWriter(bodyWriter)

	// Stream the part instead of buffering whole page scans in memory
	go func() {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)

		part, err := form.CreatePart(header)
		if err == nil {
			_, err = io.Copy(part, content)
		}
		if err == nil {
			err = form.Close()
		}
		bodyWriter.CloseWithError(err)
	}()

	query := url.Values{}
	query.Set("cid-version", "1")
	query.Set("pin", "true")
	query.Set("quiet", "true")

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, client.apiURL+addPath+"?"+query.Encode(), bodyReader)
	if err != nil {
		_ = bodyReader.Close()
		return "", fmt.Errorf("ipfs: failed to build add request: %w", err)
	}
	request.Header.Set("Content-Type", form.FormDataContentType())

	response, err := client.httpClient.Do(request)
	if err != nil {
		_ = bodyReader.Close()
		return "", fmt.Errorf("ipfs: add request failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return "", decodeRPCError(response)
	}

	var added addResponse
	if err := json.NewDecoder(response.Body).Decode(&added); err != nil {
		return "", fmt.Errorf("ipfs: failed to decode add response: %w", err)
	}

	parsed, err := cid.Decode(added.Hash)
	if err != nil {
		return "", fmt.Errorf("ipfs: node returned invalid cid %q: %w", added.Hash, err)
	}

	client.logger.Debug("ipfs_content_added",
		slog.String("name", name),
		slog.String("cid", parsed.String()),
		slog.String("size", added.Size),
	)

	return parsed.String(), nil
}

// Ping verifies that the Kubo node answers RPC calls.
func (client *Client) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	request, err := http.NewRequestWithContext(pingCtx, http.MethodPost, client.apiURL+versionPath, http.NoBody)
	if err != nil {
		return fmt.Errorf("ipfs: failed to build version request: %w", err)
	}

	response, err := client.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("ipfs: ping failed: %w", err)
	}
	defer response.Body.Close()
	_, _ = io.Copy(io.Discard, response.Body)

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("ipfs: ping failed: status %d", response.StatusCode)
	}

	return nil
}

// decodeRPCError turns a non-200 Kubo response into an error.
func decodeRPCError(response *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBody))

	var rpcErr rpcError
	if err := json.Unmarshal(raw, &rpcErr); err == nil && rpcErr.Message != "" {
		return fmt.Errorf("ipfs: add failed with status %d: %s", response.StatusCode, rpcErr.Message)
	}

	return fmt.Errorf("ipfs: add failed with status %d: %s", response.StatusCode, strings.TrimSpace(string(raw)))
}
