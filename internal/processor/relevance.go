package processor

import (
	"regexp"
	"strings"

	"github.com/JakeFAU/content-harvester/internal/harvest"
)

// Predicate is a case-insensitive keyword filter over title and body.
// Keywords match whole words only, so "go" does not match "good".
// Excludes win over includes; an empty include list accepts everything not
// excluded.
type Predicate struct {
	include []keyword
	exclude []keyword
}

type keyword struct {
	word string
	re   *regexp.Regexp
}

// NewPredicate builds a Predicate, dropping blank keywords.
func NewPredicate(include, exclude []string) Predicate {
	return Predicate{include: compile(clean(include)), exclude: compile(clean(exclude))}
}

// Match reports whether r passes and which include keywords it matched.
func (p Predicate) Match(r harvest.ContentRecord) ([]string, bool) {
	text := strings.ToLower(r.Title + "\n" + r.Body)
	for _, kw := range p.exclude {
		if kw.re.MatchString(text) {
			return nil, false
		}
	}
	var hits []string
	for _, kw := range p.include {
		if kw.re.MatchString(text) {
			hits = append(hits, kw.word)
		}
	}
	if len(p.include) > 0 && len(hits) == 0 {
		return nil, false
	}
	return hits, true
}

// annotate merges hits into the record's tags without duplicates and sets
// its relevance to the number of distinct hits.
func annotate(r harvest.ContentRecord, hits []string) harvest.ContentRecord {
	tags := append([]string(nil), r.Tags...)
	have := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		have[strings.ToLower(tag)] = struct{}{}
	}
	for _, hit := range hits {
		if _, ok := have[hit]; ok {
			continue
		}
		have[hit] = struct{}{}
		tags = append(tags, hit)
	}
	r.Tags = tags
	r.Relevance = len(hits)
	return r
}

func clean(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	seen := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}

// compile anchors each keyword between non-alphanumeric runes or the ends of
// the text, so keywords like "c++" work too.
func compile(words []string) []keyword {
	out := make([]keyword, 0, len(words))
	for _, w := range words {
		re := regexp.MustCompile(`(?:^|[^\p{L}\p{N}_])` + regexp.QuoteMeta(w) + `(?:$|[^\p{L}\p{N}_])`)
		out = append(out, keyword{word: w, re: re})
	}
	return out
}
