// Copyright (c) 2026 Koma. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package slug turns arbitrary Unicode names into short ASCII tokens.

Uploaded page names come from scanlators' file systems ("Chapitre été 01.PNG",
"第1話 p.03.jpg"). The staging area keeps a slug of the name so that files on
disk stay readable in logs and safe on every file system.
*/
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// separators matches every run of characters that cannot appear in a slug.
var separators = regexp.MustCompile(`[^a-z0-9]+`)

/*
From converts s into a lowercase ASCII slug of at most maxLength bytes.

Accents are stripped ("été" becomes "ete"), anything else outside [a-z0-9]
collapses into single hyphens, and the result never starts or ends with one.
A maxLength of zero or less means no limit. The result may be empty.
*/
func From(s string, maxLength int) string {
	stripAccents := transform.Chain(norm.NFD, transform.RemoveFunc(isMark))
	result, _, err := transform.String(stripAccents, s)
	if err != nil {
		result = s
	}

	result = separators.ReplaceAllString(strings.ToLower(result), "-")
	result = strings.Trim(result, "-")

	if maxLength > 0 && len(result) > maxLength {
		result = strings.TrimRight(result[:maxLength], "-")
	}

	return result
}

// isMark reports whether r is a combining mark left over by NFD decomposition.
func isMark(r rune) bool {
	return unicode.Is(unicode.Mn, r)
}
