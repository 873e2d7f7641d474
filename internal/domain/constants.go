package domain

// ==== Room Constants ====

// DefaultRoom is joined when an auth message names no room
const DefaultRoom = "sala1"

// ==== WebSocket Constants ====

// MaxMessageSize is the maximum allowed WebSocket message size in bytes
const MaxMessageSize = 4096

// SendBufferSize is the per-connection outbound queue length
const SendBufferSize = 256

// ==== Persistence Constants ====

// LocationQueueSize bounds the pending location appends behind the
// serial writer; updates beyond this are dropped, not blocked on
const LocationQueueSize = 256

// ==== Rate Limit Constants ====

const (
	// DefaultRateLimitAPI is the default rate limit for API endpoints (requests/sec)
	DefaultRateLimitAPI = 10

	// DefaultRateLimitWS is the default rate limit for WebSocket connections (req/sec)
	DefaultRateLimitWS = 5

	// DefaultRateLimitStrict is the stricter rate limit for registration
	DefaultRateLimitStrict = 2
)
