// Package cache implements the two-tier cache used to shield extraction
// tasks: a networked primary backend (see package redis) and an in-process
// fallback store (see package memory). The Manager hides backend selection
// and degradation from callers; an unreachable backend is a routing decision,
// never a cache miss or an error.
package cache
