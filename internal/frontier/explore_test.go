package frontier

import (
	"math/rand/v2"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExplorer(t *testing.T, probability float64, seed uint64) *Explorer {
	t.Helper()
	e, err := NewExplorer(ExplorerConfig{
		TLDs:              []string{"com", "org", "io"},
		SearchURL:         "https://duckduckgo.com/html/?q=%s",
		SearchProbability: probability,
	}, rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
	require.NoError(t, err)
	return e
}

var syntheticPattern = regexp.MustCompile(`^http://[a-z]+\.(com|org|io)$`)

func TestExplorer_AlwaysValidURL(t *testing.T) {
	e := newTestExplorer(t, 0.1, 7)
	for i := 0; i < 2000; i++ {
		c := e.Next()
		u, err := url.Parse(c.URL)
		require.NoError(t, err, c.URL)
		assert.NotEmpty(t, u.Host, c.URL)
		_, ok := Normalize(c.URL)
		assert.True(t, ok, c.URL)

		switch c.Kind {
		case ExploreSynthetic:
			assert.Regexp(t, syntheticPattern, c.URL)
		case ExploreSearch:
			assert.True(t, strings.HasPrefix(c.URL, "https://duckduckgo.com/html/?q="), c.URL)
			assert.Equal(t, c.Word, u.Query().Get("q"))
		default:
			t.Fatalf("unexpected kind %q", c.Kind)
		}
	}
}

func TestExplorer_SearchProbability(t *testing.T) {
	const draws = 20000
	e := newTestExplorer(t, 0.1, 42)

	searches := 0
	for i := 0; i < draws; i++ {
		if e.Next().Kind == ExploreSearch {
			searches++
		}
	}
	// p=0.1, n=20000: sd is about 42, so this window is roughly six sigma wide.
	assert.InDelta(t, 2000, searches, 250)
}

func TestExplorer_Extremes(t *testing.T) {
	never := newTestExplorer(t, 0, 1)
	always := newTestExplorer(t, 1, 1)
	for i := 0; i < 200; i++ {
		assert.Equal(t, ExploreSynthetic, never.Next().Kind)
		assert.Equal(t, ExploreSearch, always.Next().Kind)
	}
}

func TestNewExplorer_Validation(t *testing.T) {
	t.Run("drops non public suffixes", func(t *testing.T) {
		e, err := NewExplorer(ExplorerConfig{
			TLDs:      []string{".COM", "notatld", "co.uk", "org"},
			SearchURL: "https://search.example/?q=%s",
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"com", "org"}, e.TLDs())
	})

	t.Run("rejects an empty tld list", func(t *testing.T) {
		_, err := NewExplorer(ExplorerConfig{TLDs: []string{"notatld"}, SearchURL: "https://s.example/?q=%s"}, nil)
		assert.ErrorContains(t, err, "no usable top-level domains")
	})

	t.Run("rejects a search url without a verb", func(t *testing.T) {
		_, err := NewExplorer(ExplorerConfig{TLDs: []string{"com"}, SearchURL: "https://s.example/"}, nil)
		assert.ErrorContains(t, err, "must contain exactly one %s")
	})

	t.Run("rejects a probability outside the unit interval", func(t *testing.T) {
		_, err := NewExplorer(ExplorerConfig{TLDs: []string{"com"}, SearchURL: "https://s.example/?q=%s", SearchProbability: 2}, nil)
		assert.ErrorContains(t, err, "outside [0,1]")
	})
}

func TestDefaultWords(t *testing.T) {
	require.NotEmpty(t, DefaultWords)
	for _, w := range DefaultWords {
		assert.Regexp(t, `^[a-z]+$`, w)
	}
}

func TestSiteOf(t *testing.T) {
	assert.Equal(t, "example.co.uk", SiteOf("https://docs.api.example.co.uk/v1"))
	assert.Equal(t, "example.com", SiteOf("http://example.com"))
	assert.Equal(t, "localhost", SiteOf("http://localhost:8080/"))
}
