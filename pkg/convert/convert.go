// Copyright (c) 2026 Koma. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package convert coerces multipart form values into typed chapter metadata.

Coercion is lenient: a malformed number reads as "absent" and a malformed
boolean reads as false. Upload forms are filled in by scanlation tools that
send empty strings for unset fields, and the ingestion contract treats
unparseable optional metadata the same way.
*/
package convert

import (
	"strconv"
	"strings"
)

// ToIntPtr converts a string to an optional integer.
// It returns nil if the string is empty, blank or cannot be parsed.
func ToIntPtr(s string) *int {

	// Blank input means the caller omitted the value
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}

// ToBool parses a boolean string ("true", "1", "false", "0").
// It returns false on empty string or parse error.
func ToBool(s string) bool {

	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}

	v, _ := strconv.ParseBool(s)
	return v
}
