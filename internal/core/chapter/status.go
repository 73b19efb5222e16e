// Copyright (c) 2026 Koma. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package chapter

import (
	"strings"

	"github.com/taibuivan/koma/internal/platform/apperr"
)

// # Moderation Status

// Status is the moderation state of a chapter.
type Status string

const (
	// Initial state of every ingested chapter
	StatusPending Status = "pending"

	// Visible to readers
	StatusApproved Status = "approved"

	// Hidden from readers; always carries a reason
	StatusRejected Status = "rejected"
)

// ParseStatus converts a raw value into a [Status].
func ParseStatus(raw string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(raw)))
	return status, status.Valid()
}

// Valid reports whether the status is one of the three known states.
func (status Status) Valid() bool {
	switch status {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

// # Transitions

/*
decide validates a moderation decision and returns the reason to store.

Description: Only approved and rejected are valid targets. Approval clears
any earlier reason. Rejection needs a reason that is not blank, which is
stored verbatim. The current state is not consulted: re-reviewing an approved
or rejected chapter is allowed.

Parameters:
  - target: Status
  - reason: string

Returns:
  - *string: Reason to persist (nil for approval)
  - error: apperr.InvalidState for a pending/unknown target or a missing reason
*/
func decide(target Status, reason string) (*string, error) {
	switch target {
	case StatusApproved:
		return nil, nil
	case StatusRejected:
		if strings.TrimSpace(reason) == "" {
			return nil, apperr.InvalidState("A rejection reason is required")
		}
		return &reason, nil
	default:
		return nil, apperr.InvalidState("Status must be approved or rejected")
	}
}

// isPublicFilter reports whether filter is exactly {approved}, the reader mode.
func isPublicFilter(filter []Status) bool {
	if len(filter) == 0 {
		return false
	}
	for _, status := range filter {
		if status != StatusApproved {
			return false
		}
	}
	return true
}

// PreviewFilter is the status filter used by reviewers by default.
func PreviewFilter() []Status {
	return []Status{StatusPending, StatusRejected}
}
