// Package frontier owns the crawl frontier: the set of known links with their
// estimated relevance, the choice of the next page to visit, and the visit itself.
package frontier

import (
	"net/url"
	"sort"
	"strings"
	"sync"
)

// Relevance bounds for a LinkRecord.
const (
	MinRelevance = 0
	MaxRelevance = 100
)

// LinkRecord is a candidate URL with the model's estimate of how likely it
// leads to a schema document. Relevance 0 means unscored.
type LinkRecord struct {
	URL        string `json:"url"`
	AnchorText string `json:"anchor_text,omitempty"`
	Relevance  int    `json:"relevance"`
}

type entry struct {
	record  LinkRecord
	seq     uint64
	visited bool
}

// Frontier is a relevance ranked set of LinkRecords keyed by normalized URL.
//
// Selection ignores visited entries. Among unvisited entries with equal
// relevance the one inserted first wins. New URLs merged in a single call are
// inserted in lexical order so that this rule does not depend on map iteration.
//
// When maxEntries is positive the frontier is pruned after every insertion:
// visited entries go first, then the lowest relevance, then the oldest.
type Frontier struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	nextSeq    uint64
	maxEntries int
}

// New returns an empty frontier holding at most maxEntries records (zero for no cap).
func New(maxEntries int) *Frontier {
	return &Frontier{
		entries:    make(map[string]*entry),
		maxEntries: maxEntries,
	}
}

// Merge inserts or overwrites the records in estimations, last write wins per
// URL. Keys are URLs; a record's own URL field is ignored in favor of its key.
// URLs that are not absolute http(s) URLs are skipped. It returns the number
// of records applied.
func (f *Frontier) Merge(estimations map[string]LinkRecord) int {
	if len(estimations) == 0 {
		return 0
	}

	keys := make([]string, 0, len(estimations))
	for k := range estimations {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	f.mu.Lock()
	defer f.mu.Unlock()

	applied := 0
	for _, raw := range keys {
		key, ok := Normalize(raw)
		if !ok {
			continue
		}
		rec := estimations[raw]
		rec.URL = key
		rec.Relevance = clampRelevance(rec.Relevance)

		if e, exists := f.entries[key]; exists {
			e.record.Relevance = rec.Relevance
			if rec.AnchorText != "" {
				e.record.AnchorText = rec.AnchorText
			}
		} else {
			f.insert(rec, false)
		}
		applied++
	}
	f.prune()
	return applied
}

// Observe adds links discovered on a page. Unlike Merge it never overwrites
// an existing entry, so links seen again do not lose their estimate.
func (f *Frontier) Observe(links []LinkRecord) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	added := 0
	for _, l := range links {
		key, ok := Normalize(l.URL)
		if !ok {
			continue
		}
		if _, exists := f.entries[key]; exists {
			continue
		}
		l.URL = key
		l.Relevance = clampRelevance(l.Relevance)
		f.insert(l, false)
		added++
	}
	f.prune()
	return added
}

// MarkVisited records that rawURL has been visited, adding it when unknown.
func (f *Frontier) MarkVisited(rawURL string) {
	key, ok := Normalize(rawURL)
	if !ok {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if e, exists := f.entries[key]; exists {
		e.visited = true
		return
	}
	f.insert(LinkRecord{URL: key}, true)
	f.prune()
}

// Best returns the unvisited record with the highest relevance. The second
// result is false when no unvisited record exists.
func (f *Frontier) Best() (LinkRecord, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var best *entry
	for _, e := range f.entries {
		if e.visited {
			continue
		}
		if best == nil || ranksAbove(e, best) {
			best = e
		}
	}
	if best == nil {
		return LinkRecord{}, false
	}
	return best.record, true
}

// Top returns up to n unvisited records in selection order.
func (f *Frontier) Top(n int) []LinkRecord {
	f.mu.RLock()
	candidates := make([]*entry, 0, len(f.entries))
	for _, e := range f.entries {
		if !e.visited {
			candidates = append(candidates, e)
		}
	}
	f.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool { return ranksAbove(candidates[i], candidates[j]) })
	if n >= 0 && len(candidates) > n {
		candidates = candidates[:n]
	}
	out := make([]LinkRecord, len(candidates))
	for i, e := range candidates {
		out[i] = e.record
	}
	return out
}

// Lookup returns the record stored for rawURL and whether it was visited.
func (f *Frontier) Lookup(rawURL string) (rec LinkRecord, visited bool, ok bool) {
	key, valid := Normalize(rawURL)
	if !valid {
		return LinkRecord{}, false, false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	e, exists := f.entries[key]
	if !exists {
		return LinkRecord{}, false, false
	}
	return e.record, e.visited, true
}

// Stats summarizes the frontier.
type Stats struct {
	Known     int `json:"known"`
	Unvisited int `json:"unvisited"`
	Scored    int `json:"scored"`
}

// Stats counts known, unvisited and scored records.
func (f *Frontier) Stats() Stats {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s := Stats{Known: len(f.entries)}
	for _, e := range f.entries {
		if !e.visited {
			s.Unvisited++
		}
		if e.record.Relevance > MinRelevance {
			s.Scored++
		}
	}
	return s
}

// Len reports the number of known records, visited or not.
func (f *Frontier) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}

func (f *Frontier) insert(rec LinkRecord, visited bool) {
	f.entries[rec.URL] = &entry{record: rec, seq: f.nextSeq, visited: visited}
	f.nextSeq++
}

func (f *Frontier) prune() {
	excess := len(f.entries) - f.maxEntries
	if f.maxEntries <= 0 || excess <= 0 {
		return
	}

	victims := make([]*entry, 0, len(f.entries))
	for _, e := range f.entries {
		victims = append(victims, e)
	}
	sort.Slice(victims, func(i, j int) bool {
		a, b := victims[i], victims[j]
		if a.visited != b.visited {
			return a.visited
		}
		if a.record.Relevance != b.record.Relevance {
			return a.record.Relevance < b.record.Relevance
		}
		return a.seq < b.seq
	})
	for _, e := range victims[:excess] {
		delete(f.entries, e.record.URL)
	}
}

// ranksAbove orders by relevance descending, then insertion order ascending.
func ranksAbove(a, b *entry) bool {
	if a.record.Relevance != b.record.Relevance {
		return a.record.Relevance > b.record.Relevance
	}
	return a.seq < b.seq
}

func clampRelevance(r int) int {
	if r < MinRelevance {
		return MinRelevance
	}
	if r > MaxRelevance {
		return MaxRelevance
	}
	return r
}

// Normalize returns the frontier key for rawURL: an absolute http or https
// URL with a lower-cased host and no fragment.
func Normalize(rawURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Host == "" {
		return "", false
	}
	u.Scheme = scheme
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), true
}
