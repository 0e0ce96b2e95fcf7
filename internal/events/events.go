// Package events provides local event listings scraped from a regional
// listings site, with category filtering, description enrichment, and a
// time-bucketed cache so repeated queries within the TTL hit the
// network at most once.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// DefaultCacheTTL bounds how long a city's scraped listing is reused.
const DefaultCacheTTL = time.Hour

// descriptionLimit caps enriched descriptions.
const descriptionLimit = 300

// DefaultMaxEvents bounds how many events one Detailed call returns.
const DefaultMaxEvents = 5

// ValidCategories are the category slugs the listings site knows.
var ValidCategories = []string{
	"disco", "konzert", "theater", "medien", "sonstige",
	"kino", "literatur", "comedy", "vortrag", "kunst",
}

// Event is one listing entry.
type Event struct {
	Title       string `json:"title"`
	Category    string `json:"category"`
	Time        string `json:"time"`
	Location    string `json:"location"`
	URL         string `json:"url,omitempty"`
	Description string `json:"description,omitempty"`
}

// Scraper fetches listings. It is an interface so tests can substitute
// a canned implementation.
type Scraper interface {
	// CityEvents returns every listing for the city's current day.
	CityEvents(ctx context.Context, city string) ([]Event, error)
	// Description fetches the long description behind an event URL.
	Description(ctx context.Context, eventURL string) (string, error)
}

// Service wraps a Scraper with caching and category logic.
type Service struct {
	scraper Scraper
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger

	mu    sync.Mutex
	cache map[string][]Event
}

// NewService creates an event service. ttl <= 0 uses DefaultCacheTTL.
func NewService(scraper Scraper, ttl time.Duration, logger *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		scraper: scraper,
		ttl:     ttl,
		now:     time.Now,
		logger:  logger.With("component", "events"),
		cache:   make(map[string][]Event),
	}
}

// cacheKey buckets time into TTL-sized epochs so every caller inside
// one epoch shares a single scrape.
func (s *Service) cacheKey(city string) string {
	epoch := s.now().Unix() / int64(s.ttl.Seconds())
	return strings.ToLower(strings.TrimSpace(city)) + ":" + strconv.FormatInt(epoch, 10)
}

// Reset drops all cached listings.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string][]Event)
}

// cityEvents returns the cached listing for city, scraping on miss.
func (s *Service) cityEvents(ctx context.Context, city string, forceRefresh bool) ([]Event, error) {
	key := s.cacheKey(city)

	s.mu.Lock()
	if !forceRefresh {
		if cached, ok := s.cache[key]; ok {
			s.mu.Unlock()
			return cached, nil
		}
	}
	s.mu.Unlock()

	events, err := s.scraper.CityEvents(ctx, city)
	if err != nil {
		return nil, fmt.Errorf("events: scrape %s: %w", city, err)
	}

	s.mu.Lock()
	s.cache[key] = events
	s.mu.Unlock()

	s.logger.Debug("scraped city listing", "city", city, "events", len(events))
	return events, nil
}

// IsValidCategory reports whether category names a known listing slug.
func IsValidCategory(category string) bool {
	category = strings.ToLower(strings.TrimSpace(category))
	for _, v := range ValidCategories {
		if category == v {
			return true
		}
	}
	return false
}

// Detailed returns up to max of the city's events for one category,
// each enriched with its long description. Movie listings ("kino") are
// returned without enrichment since their detail pages hold only
// showtimes.
func (s *Service) Detailed(ctx context.Context, city, category string, max int, forceRefresh bool) ([]Event, error) {
	category = strings.ToLower(strings.TrimSpace(category))
	if !IsValidCategory(category) {
		return nil, fmt.Errorf("events: invalid category %q, valid categories are: %s",
			category, strings.Join(ValidCategories, ", "))
	}
	if max <= 0 {
		max = DefaultMaxEvents
	}

	all, err := s.cityEvents(ctx, city, forceRefresh)
	if err != nil {
		return nil, err
	}

	var matched []Event
	for _, ev := range all {
		if strings.EqualFold(ev.Category, category) {
			matched = append(matched, ev)
			if len(matched) == max {
				break
			}
		}
	}

	if category == "kino" {
		return matched, nil
	}

	for i := range matched {
		if matched[i].URL == "" {
			continue
		}
		desc, err := s.scraper.Description(ctx, matched[i].URL)
		if err != nil {
			s.logger.Warn("event description fetch failed",
				"title", matched[i].Title,
				"error", err,
			)
			matched[i].Description = "Description could not be loaded"
			continue
		}
		matched[i].Description = truncate(desc, descriptionLimit)
	}
	return matched, nil
}

// Categories returns the count of today's events per category for a
// city. An empty listing is an error so the model reports it instead
// of inventing categories.
func (s *Service) Categories(ctx context.Context, city string, forceRefresh bool) (map[string]int, error) {
	all, err := s.cityEvents(ctx, city, forceRefresh)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, ev := range all {
		if ev.Category == "" {
			continue
		}
		counts[strings.ToLower(ev.Category)]++
	}
	if len(counts) == 0 {
		return nil, fmt.Errorf("events: no event categories found for %s", city)
	}
	return counts, nil
}

// SearchKeyword returns events whose title, location, or description
// contains the keyword, across all categories.
func (s *Service) SearchKeyword(ctx context.Context, city, keyword string) ([]Event, error) {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return nil, fmt.Errorf("events: keyword must not be empty")
	}

	all, err := s.cityEvents(ctx, city, false)
	if err != nil {
		return nil, err
	}

	var matched []Event
	for _, ev := range all {
		haystack := strings.ToLower(ev.Title + " " + ev.Location + " " + ev.Description)
		if strings.Contains(haystack, keyword) {
			matched = append(matched, ev)
			if len(matched) == DefaultMaxEvents*2 {
				break
			}
		}
	}
	return matched, nil
}

// SortedCategories returns the category names of counts in stable order.
func SortedCategories(counts map[string]int) []string {
	out := make([]string, 0, len(counts))
	for k := range counts {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	cut := s[:limit]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	} else {
		// No space to break on. Back up to a rune boundary so the cut
		// never splits a multi-byte character.
		for len(cut) > 0 && !utf8.RuneStart(s[len(cut)]) {
			cut = cut[:len(cut)-1]
		}
	}
	return cut + "..."
}
