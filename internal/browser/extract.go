package browser

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/xkilldash9x/openapi-seeker/internal/frontier"
)

// Document is the text and links of a parsed HTML page.
type Document struct {
	Title   string
	Text    string
	Anchors []frontier.Anchor
}

// Article is the readable main content of a page.
type Article struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Byline   string `json:"byline,omitempty"`
	SiteName string `json:"site_name,omitempty"`
	Excerpt  string `json:"excerpt,omitempty"`
	Text     string `json:"text"`
}

// elements whose text is never visible
var invisible = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Head:     true,
}

// ParseDocument extracts the visible body text and every anchor of rawHTML.
// Relative hrefs are resolved against pageURL.
func ParseDocument(rawHTML, pageURL string) (*Document, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page url %q: %w", pageURL, err)
	}
	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	doc := &Document{Anchors: []frontier.Anchor{}}
	var words []string

	var walk func(n *html.Node, inBody bool)
	walk = func(n *html.Node, inBody bool) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Title:
				if doc.Title == "" {
					doc.Title = strings.TrimSpace(nodeText(n))
				}
				return
			case atom.Body:
				inBody = true
			case atom.A:
				if href, ok := attr(n, "href"); ok && inBody {
					if resolved, err := base.Parse(strings.TrimSpace(href)); err == nil {
						doc.Anchors = append(doc.Anchors, frontier.Anchor{
							Href: resolved.String(),
							Text: strings.Join(strings.Fields(nodeText(n)), " "),
						})
					}
				}
			}
			if invisible[n.DataAtom] && n.DataAtom != atom.Head {
				return
			}
		}
		if n.Type == html.TextNode && inBody {
			words = append(words, strings.Fields(n.Data)...)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inBody)
		}
	}
	walk(root, false)

	doc.Text = strings.Join(words, " ")
	return doc, nil
}

// ExtractArticle runs readability over rawHTML and returns the main content.
func ExtractArticle(rawHTML, pageURL string) (*Article, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page url %q: %w", pageURL, err)
	}
	article, err := readability.FromReader(strings.NewReader(rawHTML), base)
	if err != nil {
		return nil, fmt.Errorf("readability failed for %s: %w", pageURL, err)
	}
	return &Article{
		URL:      pageURL,
		Title:    strings.TrimSpace(article.Title),
		Byline:   strings.TrimSpace(article.Byline),
		SiteName: strings.TrimSpace(article.SiteName),
		Excerpt:  strings.TrimSpace(article.Excerpt),
		Text:     strings.TrimSpace(article.TextContent),
	}, nil
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		if n.Type == html.ElementNode && invisible[n.DataAtom] {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
