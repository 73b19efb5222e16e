// Copyright (c) 2026 Koma. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package pointer builds the optional values used by nullable ledger columns.

A nil pointer means "absent" all the way from the multipart form to the
NULL stored in PostgreSQL.
*/
package pointer

import "strings"

// To returns a pointer to a copy of v.
func To[T any](v T) *T {
	return &v
}

// NonBlank returns the trimmed string, or nil when nothing is left.
func NonBlank(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
