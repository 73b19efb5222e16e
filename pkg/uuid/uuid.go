// Copyright (c) 2026 Koma. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package uuid generates the identifiers of chapters and staged files.

Version 7 values are time-ordered, so chapter primary keys inserted by
concurrent uploads still land at the right edge of the B-tree index.
*/
package uuid

import "github.com/google/uuid"

// New returns a UUIDv7 string. It panics only when the entropy source fails.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		panic("uuid: failed to generate UUIDv7: " + err.Error())
	}
	return id.String()
}
