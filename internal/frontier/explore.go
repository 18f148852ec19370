package frontier

import (
	_ "embed"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/net/publicsuffix"
)

//go:embed words.txt
var wordList string

// DefaultWords is the dictionary exploration draws from.
var DefaultWords = parseWords(wordList)

// ExploreKind says how an exploration candidate was produced.
type ExploreKind string

const (
	ExploreSearch    ExploreKind = "search"
	ExploreSynthetic ExploreKind = "synthetic"
)

// Candidate is a URL produced by the exploration fallback.
type Candidate struct {
	URL  string      `json:"url"`
	Kind ExploreKind `json:"kind"`
	Word string      `json:"word"`
}

// Explorer generates URLs to visit when the frontier has nothing left to
// offer. It never touches the network.
type Explorer struct {
	mu                sync.Mutex
	rng               *rand.Rand
	words             []string
	tlds              []string
	searchURL         string
	searchProbability float64
}

// ExplorerConfig configures an Explorer. SearchURL must contain one %s verb
// that receives the query-escaped word.
type ExplorerConfig struct {
	Words             []string
	TLDs              []string
	SearchURL         string
	SearchProbability float64
}

// NewExplorer validates cfg and returns an Explorer drawing from rng.
// TLDs that are not ICANN public suffixes are dropped.
func NewExplorer(cfg ExplorerConfig, rng *rand.Rand) (*Explorer, error) {
	words := cfg.Words
	if len(words) == 0 {
		words = DefaultWords
	}

	tlds := make([]string, 0, len(cfg.TLDs))
	for _, tld := range cfg.TLDs {
		tld = strings.ToLower(strings.Trim(strings.TrimSpace(tld), "."))
		if isPublicTLD(tld) {
			tlds = append(tlds, tld)
		}
	}
	if len(tlds) == 0 {
		return nil, fmt.Errorf("no usable top-level domains in %v", cfg.TLDs)
	}

	if strings.Count(cfg.SearchURL, "%s") != 1 {
		return nil, fmt.Errorf("search url %q must contain exactly one %%s", cfg.SearchURL)
	}
	if cfg.SearchProbability < 0 || cfg.SearchProbability > 1 {
		return nil, fmt.Errorf("search probability %v outside [0,1]", cfg.SearchProbability)
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return &Explorer{
		rng:               rng,
		words:             words,
		tlds:              tlds,
		searchURL:         cfg.SearchURL,
		searchProbability: cfg.SearchProbability,
	}, nil
}

// Next returns a fresh exploration candidate. With the configured probability
// it is a search engine query for a random word; otherwise it is
// http://<word>.<tld>.
func (e *Explorer) Next() Candidate {
	e.mu.Lock()
	defer e.mu.Unlock()

	word := e.words[e.rng.IntN(len(e.words))]
	if e.rng.Float64() < e.searchProbability {
		return Candidate{
			URL:  fmt.Sprintf(e.searchURL, url.QueryEscape(word)),
			Kind: ExploreSearch,
			Word: word,
		}
	}
	tld := e.tlds[e.rng.IntN(len(e.tlds))]
	return Candidate{
		URL:  "http://" + word + "." + tld,
		Kind: ExploreSynthetic,
		Word: word,
	}
}

// TLDs returns the top-level domains the explorer draws from.
func (e *Explorer) TLDs() []string {
	return append([]string(nil), e.tlds...)
}

func isPublicTLD(tld string) bool {
	if tld == "" || strings.Contains(tld, ".") {
		return false
	}
	suffix, icann := publicsuffix.PublicSuffix("example." + tld)
	return icann && suffix == tld
}

// SiteOf returns the registrable domain of rawURL, or its host when that
// cannot be determined.
func SiteOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := u.Hostname()
	site, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return site
}

func parseWords(raw string) []string {
	var words []string
	for _, line := range strings.Split(raw, "\n") {
		w := strings.TrimSpace(line)
		if w != "" && !strings.HasPrefix(w, "#") {
			words = append(words, w)
		}
	}
	return words
}
