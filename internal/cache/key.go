package cache

import (
	"net/url"
	"strings"

	"github.com/JakeFAU/content-harvester/internal/harvest"
	"github.com/JakeFAU/content-harvester/internal/hash/sha256"
)

// Class separates the key namespaces of the two TTL classes so raw content
// and derived payloads for the same source never collide.
type Class string

// TTL classes.
const (
	ClassContent Class = "content"
	ClassDerived Class = "derived"
)

const keySep = ":"

// Key derives the cache key for a source. The same type, identifier and
// params always produce the same key regardless of map iteration order.
func Key(class Class, source harvest.SourceConfig) string {
	params := url.Values{}
	for name, value := range source.Params {
		params.Set(name, value)
	}
	// Encode sorts by name and escapes separators.
	digest := sha256.Fingerprint(string(source.Type), source.Identifier, params.Encode())
	return string(class) + keySep + string(source.Type) + keySep + digest
}

// DerivedKey builds a key in the derived namespace for payloads that are not
// tied to a single source, e.g. DerivedKey("history", "2026-10-16").
func DerivedKey(prefix string, parts ...string) string {
	return string(ClassDerived) + keySep + prefix + keySep + strings.Join(parts, keySep)
}

// PrefixOf returns the stats prefix of a key: the segment after the class,
// which is the source type for content keys. Keys that do not follow the
// class:prefix:rest layout are grouped under "other".
func PrefixOf(key string) string {
	parts := strings.SplitN(key, keySep, 3)
	if len(parts) < 3 || parts[1] == "" {
		return "other"
	}
	return parts[1]
}
