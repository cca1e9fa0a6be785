package cache

// SQL schemas for cache tables
// All cache tables use "cache_key" as the primary key column for consistency

// LookupCacheSchema defines the schema for resolved book metadata,
// keyed by the raw scanned code or search query
// A ttl_seconds of 0 means the entry has no TTL of its own and expires
// after the configured default.
const LookupCacheSchema = `
CREATE TABLE IF NOT EXISTS lookup_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	ttl_seconds INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_lookup_cached_at ON lookup_cache(cached_at);
`

// CoverCacheSchema defines the schema for validated cover URLs, keyed by ISBN
const CoverCacheSchema = `
CREATE TABLE IF NOT EXISTS cover_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	ttl_seconds INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_cover_cached_at ON cover_cache(cached_at);
`

// AllCacheSchemas contains all cache table schemas for easy initialization
var AllCacheSchemas = []string{
	LookupCacheSchema,
	CoverCacheSchema,
}

// ValidCacheTableNames is the whitelist of allowed cache table names
// Used to prevent SQL injection when interpolating table names
var ValidCacheTableNames = map[string]bool{
	"lookup_cache": true,
	"cover_cache":  true,
}
