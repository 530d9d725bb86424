// Package extractor implements harvest.Extractor for every supported source
// type. Extractors share one HTTP harness that owns rate limiting, transient
// retries and the mapping of HTTP failures onto harvest error kinds. They do
// not touch the cache; the scheduler owns caching.
package extractor
