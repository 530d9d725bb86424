package processor

import (
	"sort"
	"strings"

	"github.com/JakeFAU/content-harvester/internal/harvest"
	"github.com/JakeFAU/content-harvester/internal/hash/sha256"
)

// DefaultPriority ranks source types from most to least authoritative. A
// primary source of record beats an aggregator that links to it.
var DefaultPriority = []harvest.SourceType{
	harvest.SourceResearch,
	harvest.SourceNewsFeed,
	harvest.SourceBlogFeed,
	harvest.SourceVideo,
	harvest.SourceShortVideo,
	harvest.SourceForum,
}

// DedupKey identifies the content behind a record: its normalized URL when it
// has one, otherwise a fingerprint of the lowercased title and body.
func DedupKey(r harvest.ContentRecord) string {
	if r.URL != "" {
		if normalized, err := NormalizeURL(r.URL); err == nil {
			return "url:" + normalized
		}
	}
	return "fp:" + sha256.Fingerprint(strings.ToLower(r.Title), strings.ToLower(r.Body))
}

// ranking maps a source type to its position in a priority list. Types not in
// the list rank after every listed type.
type ranking map[harvest.SourceType]int

func newRanking(priority []harvest.SourceType) ranking {
	if len(priority) == 0 {
		priority = DefaultPriority
	}
	r := make(ranking, len(priority))
	for i, t := range priority {
		if _, dup := r[t]; !dup {
			r[t] = i
		}
	}
	return r
}

func (r ranking) of(t harvest.SourceType) int {
	if rank, ok := r[t]; ok {
		return rank
	}
	return len(r)
}

// dedup stable-sorts records by source priority and keeps the first record
// seen for each DedupKey. It returns the kept records and their keys.
func dedup(records []harvest.ContentRecord, rank ranking) ([]harvest.ContentRecord, []string) {
	sorted := append([]harvest.ContentRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return rank.of(sorted[i].SourceType) < rank.of(sorted[j].SourceType)
	})

	seen := make(map[string]struct{}, len(sorted))
	kept := make([]harvest.ContentRecord, 0, len(sorted))
	keys := make([]string, 0, len(sorted))
	for _, r := range sorted {
		key := DedupKey(r)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, r)
		keys = append(keys, key)
	}
	return kept, keys
}
