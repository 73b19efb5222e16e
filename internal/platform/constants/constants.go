// Copyright (c) 2026 Koma. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package constants provides centralized, immutable values for the entire platform.

It defines default timeouts, rate limits, and cross-cutting keys that are shared
between different layers of the system.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Rate Limiting: Burst capacities and IP tracking TTLs.
  - Security: JWT issuer.
  - Ingestion: Multipart field names and sentinel values.

Using this package ensures Magic Strings and Magic Numbers are eliminated
from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "koma-api"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	// Chapter uploads carry many page scans, so this is generous.
	DefaultReadTimeout = 2 * time.Minute

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	// It covers the whole ingestion pipeline, retries included.
	DefaultWriteTimeout = 11 * time.Minute

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	GlobalRequestTimeout = 30 * time.Second

	// IngestRequestTimeout is the deadline for a chapter upload request.
	IngestRequestTimeout = 10 * time.Minute

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second
)

// # Rate Limiting

const (
	// DefaultRateLimitRPS is the requests per second allowed per IP.
	DefaultRateLimitRPS = 100.0

	// DefaultRateLimitBurst is the maximum burst allowed for the rate limiter.
	DefaultRateLimitBurst = 150

	// RateLimitMaxClients bounds how many client limiters are tracked at once.
	RateLimitMaxClients = 10000

	// RateLimitClientTTL is how long a client must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute
)

// # HTTP Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderRetryAfter    = "Retry-After"
	HeaderOrigin        = "Origin"
)

// # Authentication

const (
	// AuthIssuer is the standard 'iss' claim in JWTs.
	AuthIssuer = "koma.app"

	// TrustedOriginSuffix is accepted by CORS outside development.
	TrustedOriginSuffix = "koma.app"
)

// # Redis Prefixes (Cache Taxonomy)

const (
	// RedisPrefixChapterList caches a title's table of contents.
	RedisPrefixChapterList = "chapter:list:"

	// RedisPrefixChapterView marks a (viewer, chapter) pair as already counted.
	RedisPrefixChapterView = "chapter:view:"
)

// # Ingestion

const (
	// OneshotChapterTitle replaces the caller's chapter title for oneshots.
	OneshotChapterTitle = "Oneshot"

	// FormFieldFiles is the multipart field carrying page files.
	FormFieldFiles = "files"
)
