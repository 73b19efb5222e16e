// Copyright (c) 2026 Koma. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ipfs

import "strings"

// # Gateway URLs

// Gateway builds public URLs for stored CIDs.
//
// Only the bare CID is persisted; the prefix is configuration so the gateway
// can be switched at runtime without touching stored data.
type Gateway struct {
	prefix string
}

// NewGateway returns a [Gateway] for the given prefix (e.g. https://ipfs.io/ipfs/).
// An empty prefix disables URL construction.
func NewGateway(prefix string) Gateway {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return Gateway{prefix: prefix}
}

// URL returns the fetchable URL for cid, or "" when no gateway is configured.
func (gateway Gateway) URL(cid string) string {
	if gateway.prefix == "" || cid == "" {
		return ""
	}
	return gateway.prefix + cid
}
