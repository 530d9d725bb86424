package harvest

import (
	"context"
	"time"
)

// Extractor fetches and normalizes records for one source type. Extractors
// hold no state shared with the rest of the system and never touch the cache.
type Extractor interface {
	Type() SourceType
	Fetch(ctx context.Context, source SourceConfig) ([]ContentRecord, error)
}

// Cache is the cache-aside contract used by the scheduler and processor.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Put(ctx context.Context, key string, payload []byte, ttl time.Duration)
	Invalidate(ctx context.Context, key string)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
