package events

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/wayfarer-ai/wayfarer/internal/buildinfo"
	"github.com/wayfarer-ai/wayfarer/internal/httpkit"
)

// DefaultBaseURL is the public listings site.
const DefaultBaseURL = "https://www.wasgehtapp.de"

// maxPerCategory caps how many listings one category contributes.
const maxPerCategory = 10

// HTTPScraper scrapes the listings site over HTTP.
type HTTPScraper struct {
	baseURL    string
	httpClient *http.Client
}

// scraperUserAgent identifies the scraper to the listings site. The
// browser-style prefix matches what the site serves full markup to.
func scraperUserAgent() string {
	return "Mozilla/5.0 (compatible; " + buildinfo.UserAgent() + ")"
}

// NewHTTPScraper creates a scraper for the listings site at baseURL.
func NewHTTPScraper(baseURL string) *HTTPScraper {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &HTTPScraper{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(20 * time.Second),
			httpkit.WithUserAgent(scraperUserAgent()),
		),
	}
}

var _ Scraper = (*HTTPScraper)(nil)

// CityEvents fetches and parses today's listing page for a city.
//
// Each listing is a div.termin containing a category marker div whose
// class list carries the category slug, an h3.titel, a span.zeit, an
// a.location, and an a.target linking to the detail page. Categories
// contribute at most maxPerCategory listings each.
func (s *HTTPScraper) CityEvents(ctx context.Context, city string) ([]Event, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return nil, fmt.Errorf("city must not be empty")
	}

	pageURL := s.baseURL + "/?" + url.Values{"city": {city}}.Encode()
	doc, err := s.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	perCategory := make(map[string]int)
	var events []Event
	walk(doc, func(n *html.Node) {
		if !isDivWithClass(n, "termin") {
			return
		}
		ev := parseListing(n, s.baseURL)
		if ev.Title == "" || perCategory[ev.Category] >= maxPerCategory {
			return
		}
		perCategory[ev.Category]++
		events = append(events, ev)
	})
	return events, nil
}

// Description fetches an event detail page and returns the first two
// paragraphs of its description block.
func (s *HTTPScraper) Description(ctx context.Context, eventURL string) (string, error) {
	doc, err := s.fetchDocument(ctx, eventURL)
	if err != nil {
		return "", err
	}

	var descDiv *html.Node
	walk(doc, func(n *html.Node) {
		if descDiv == nil && isDivWithClass(n, "beschreibung") {
			descDiv = n
		}
	})
	if descDiv == nil {
		return "No description available", nil
	}

	var paragraphs []string
	for c := descDiv.FirstChild; c != nil && len(paragraphs) < 2; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.P {
			if text := strings.TrimSpace(textContent(c)); text != "" {
				paragraphs = append(paragraphs, text)
			}
		}
	}
	if len(paragraphs) == 0 {
		return strings.TrimSpace(textContent(descDiv)), nil
	}
	return strings.Join(paragraphs, " "), nil
}

func (s *HTTPScraper) fetchDocument(ctx context.Context, pageURL string) (*html.Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpkit.DrainAndClose(resp.Body, 1<<20)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s: status %d", pageURL, resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	return doc, nil
}

// parseListing extracts one Event from a div.termin subtree.
func parseListing(n *html.Node, baseURL string) Event {
	ev := Event{Category: "sonstige"}
	var anyHref, targetHref string
	walk(n, func(c *html.Node) {
		switch {
		case isDivWithClass(c, "kat_ind"):
			// The category slug is the third class token, after the
			// marker class and the icon class.
			classes := strings.Fields(attr(c, "class"))
			if len(classes) >= 3 {
				ev.Category = classes[2]
			}
		case c.Type == html.ElementNode && c.DataAtom == atom.H3 && hasClass(c, "titel"):
			ev.Title = strings.Join(strings.Fields(textContent(c)), " ")
		case c.Type == html.ElementNode && c.DataAtom == atom.Span && hasClass(c, "zeit"):
			ev.Time = strings.TrimSpace(textContent(c))
		case c.Type == html.ElementNode && c.DataAtom == atom.A && hasClass(c, "location"):
			ev.Location = strings.Join(strings.Fields(textContent(c)), " ")
		case c.Type == html.ElementNode && c.DataAtom == atom.A:
			if href := attr(c, "href"); href != "" {
				if anyHref == "" {
					anyHref = href
				}
				if hasClass(c, "target") && targetHref == "" {
					targetHref = href
				}
			}
		}
	})

	href := targetHref
	if href == "" {
		href = anyHref
	}
	if href != "" {
		ev.URL = resolveURL(baseURL, href)
	}
	return ev
}

// walk visits every node of the subtree rooted at n.
func walk(n *html.Node, visit func(*html.Node)) {
	visit(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func isDivWithClass(n *html.Node, class string) bool {
	return n.Type == html.ElementNode && n.DataAtom == atom.Div && hasClass(n, class)
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func resolveURL(baseURL, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return baseURL + "/" + strings.TrimLeft(href, "/")
}

// textContent returns concatenated text of all children.
func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
	}
	return b.String()
}
