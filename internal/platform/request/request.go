// Copyright (c) 2026 Koma. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package requestutil extracts route parameters, JSON bodies and the caller's
identity from incoming HTTP requests.

Every failure is already an [apperr.AppError], so handlers can pass it
straight to respond.Error.
*/
package requestutil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/koma/internal/platform/apperr"
	"github.com/taibuivan/koma/internal/platform/ctxutil"
	"github.com/taibuivan/koma/internal/platform/sec"
	"github.com/taibuivan/koma/internal/platform/validate"
)

// maxJSONBody bounds review payloads. Page ID lists stay far below it.
const maxJSONBody = 1 << 20

/*
DecodeJSON decodes a single JSON document from the request body into target.

Parameters:
  - writer: http.ResponseWriter (Needed to enforce the body limit)
  - request: *http.Request
  - target: any (Pointer to the destination struct)

Returns:
  - error: validate.ErrInvalidJSON for malformed, oversized or trailing input
*/
func DecodeJSON(writer http.ResponseWriter, request *http.Request, target any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(writer, request.Body, maxJSONBody))

	if err := decoder.Decode(target); err != nil {
		return validate.ErrInvalidJSON
	}

	// A second document in the body is a client bug, not something to ignore
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return validate.ErrInvalidJSON
	}

	return nil
}

// Param retrieves a named chi URL parameter.
func Param(request *http.Request, name string) string {
	return chi.URLParam(request, name)
}

// Claims returns the caller's verified claims, or nil for anonymous requests.
func Claims(request *http.Request) *sec.AuthClaims {
	return ctxutil.GetAuthUser(request.Context())
}

/*
RequiredUserID returns the ID of the authenticated caller.

Returns:
  - string: User ID from the token subject
  - error: apperr.Unauthorized if the request is anonymous
*/
func RequiredUserID(request *http.Request) (string, error) {
	claims := Claims(request)
	if claims == nil {
		return "", apperr.Unauthorized("Authentication required")
	}
	return claims.UserID, nil
}
