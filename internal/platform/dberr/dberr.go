// Copyright (c) 2026 Koma. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package dberr provides a bridge between low-level database errors and
// higher-level application errors.
package dberr

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taibuivan/koma/internal/platform/apperr"
)

// Wrap inspects a database error and wraps it into a meaningful [apperr.AppError].
// It hides internal database details from the client while classifying the error type.
//
// # Mapping
//   - pgx.ErrNoRows: NOT_FOUND for the named resource.
//   - anything else: PERSISTENCE_ERROR, with the action kept for server logs.
//
// An integrity violation names the violated constraint in the logged action,
// e.g. "create chapter: violates content.page_chapter_order_key (23505)".
func Wrap(err error, resource, action string) error {
	if err == nil {
		return nil
	}

	// 1. Already classified upstream
	if apperr.IsAppError(err) {
		return err
	}

	// 2. Not Found mapping
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(resource)
	}

	// 3. Every other failure is a ledger failure
	if pgError, ok := IntegrityViolation(err); ok {
		action = fmt.Sprintf("%s: violates %s.%s (%s)", action, pgError.SchemaName, pgError.ConstraintName, pgError.Code)
	}
	return apperr.Persistence(action, err)
}

// IntegrityViolation returns the driver error when err is a class 23 SQLSTATE
// (unique, check, foreign key or not-null violation).
func IntegrityViolation(err error) (*pgconn.PgError, bool) {
	var pgError *pgconn.PgError
	if errors.As(err, &pgError) && pgerrcode.IsIntegrityConstraintViolation(pgError.Code) {
		return pgError, true
	}
	return nil, false
}
