// Copyright (c) 2026 Koma. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package query reads list-valued URL query parameters.
package query

import "strings"

/*
Values flattens a query parameter that may be repeated, comma-separated, or both.

	?status=pending&status=rejected
	?status=pending,rejected

Both forms yield ["pending", "rejected"]. Blank entries are dropped and the
order of first appearance is kept. Duplicates are removed.
*/
func Values(raw []string) []string {
	var result []string
	seen := make(map[string]struct{})

	for _, value := range raw {
		for _, part := range strings.Split(value, ",") {
			clean := strings.TrimSpace(part)
			if clean == "" {
				continue
			}
			if _, ok := seen[clean]; ok {
				continue
			}
			seen[clean] = struct{}{}
			result = append(result, clean)
		}
	}

	return result
}
