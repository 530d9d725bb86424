// Package harvest defines the core types and contracts shared by the cache,
// extractor, scheduler and processor subsystems of the content harvester.
package harvest
