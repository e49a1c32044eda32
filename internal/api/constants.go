package api

// API limits and constants.
const (
	// MaxImportSize is the maximum accepted import payload (5 MB).
	MaxImportSize = 5 << 20

	// DefaultSearchLimit is used when a search omits limit.
	DefaultSearchLimit = 20
)

// CachePublicShort is the Cache-Control value for public node responses.
const CachePublicShort = "public, max-age=60"
