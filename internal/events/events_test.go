package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"
)

// fakeScraper serves canned listings and counts scrapes.
type fakeScraper struct {
	events       []Event
	err          error
	descriptions map[string]string
	descErr      map[string]error
	scrapes      atomic.Int32
	descFetches  atomic.Int32
}

func (f *fakeScraper) CityEvents(_ context.Context, _ string) ([]Event, error) {
	f.scrapes.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]Event, len(f.events))
	copy(out, f.events)
	return out, nil
}

func (f *fakeScraper) Description(_ context.Context, url string) (string, error) {
	f.descFetches.Add(1)
	if err := f.descErr[url]; err != nil {
		return "", err
	}
	return f.descriptions[url], nil
}

func listingFixture() []Event {
	return []Event{
		{Title: "Jazz Night", Category: "konzert", Time: "20:00", Location: "Blue Hall", URL: "https://example.test/e/1"},
		{Title: "Open Mic", Category: "comedy", Time: "21:00", Location: "Laugh Bar", URL: "https://example.test/e/2"},
		{Title: "Matinee", Category: "kino", Time: "15:00", Location: "Cinema One", URL: "https://example.test/e/3"},
		{Title: "Indie Band", Category: "konzert", Time: "22:00", Location: "Cellar Club", URL: "https://example.test/e/4"},
	}
}

func TestDetailed(t *testing.T) {
	scraper := &fakeScraper{
		events: listingFixture(),
		descriptions: map[string]string{
			"https://example.test/e/1": "An evening of modern jazz.",
			"https://example.test/e/4": "Up-and-coming indie acts.",
		},
	}
	s := NewService(scraper, time.Hour, nil)

	evs, err := s.Detailed(context.Background(), "Berlin", "konzert", 0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(evs) != 2 {
		t.Fatalf("expected 2 konzert events, got %d", len(evs))
	}
	if evs[0].Description != "An evening of modern jazz." {
		t.Errorf("expected enriched description, got %q", evs[0].Description)
	}
}

func TestDetailedInvalidCategory(t *testing.T) {
	s := NewService(&fakeScraper{}, time.Hour, nil)

	_, err := s.Detailed(context.Background(), "Berlin", "underwater-basket-weaving", 0, false)
	if err == nil {
		t.Fatal("expected error for invalid category")
	}
	for _, valid := range ValidCategories {
		if !strings.Contains(err.Error(), valid) {
			t.Errorf("error should list valid category %q: %v", valid, err)
		}
	}
}

func TestDetailedSkipsKinoDescriptions(t *testing.T) {
	scraper := &fakeScraper{events: listingFixture()}
	s := NewService(scraper, time.Hour, nil)

	evs, err := s.Detailed(context.Background(), "Berlin", "kino", 0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(evs) != 1 {
		t.Fatalf("expected 1 kino event, got %d", len(evs))
	}
	if scraper.descFetches.Load() != 0 {
		t.Error("kino events must not trigger description fetches")
	}
}

func TestDetailedDescriptionFailurePlaceholder(t *testing.T) {
	scraper := &fakeScraper{
		events: listingFixture(),
		descriptions: map[string]string{
			"https://example.test/e/1": "An evening of modern jazz.",
		},
		descErr: map[string]error{
			"https://example.test/e/4": fmt.Errorf("connection reset"),
		},
	}
	s := NewService(scraper, time.Hour, nil)

	evs, err := s.Detailed(context.Background(), "Berlin", "konzert", 0, false)
	if err != nil {
		t.Fatalf("a single description failure must not fail the call: %v", err)
	}
	if evs[1].Description != "Description could not be loaded" {
		t.Errorf("expected placeholder, got %q", evs[1].Description)
	}
	if evs[0].Description == "" {
		t.Error("other events must still be enriched")
	}
}

func TestDetailedTruncatesDescriptions(t *testing.T) {
	long := strings.Repeat("wort ", 100)
	scraper := &fakeScraper{
		events:       listingFixture(),
		descriptions: map[string]string{"https://example.test/e/1": long, "https://example.test/e/4": "short"},
	}
	s := NewService(scraper, time.Hour, nil)

	evs, err := s.Detailed(context.Background(), "Berlin", "konzert", 0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(evs[0].Description) > descriptionLimit+3 {
		t.Errorf("description not truncated: %d chars", len(evs[0].Description))
	}
	if !strings.HasSuffix(evs[0].Description, "...") {
		t.Errorf("truncated description should end with ellipsis: %q", evs[0].Description)
	}
}

func TestTruncateBreaksAtRuneBoundary(t *testing.T) {
	// One long unbroken word full of two-byte umlauts, offset by a
	// single ASCII byte so the byte limit lands inside a rune.
	long := "a" + strings.Repeat("ü", 2*descriptionLimit)

	got := truncate(long, descriptionLimit)
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected ellipsis suffix, got %q", got)
	}
	if !utf8.ValidString(got) {
		t.Errorf("truncation split a multi-byte character: %q", got)
	}
	if len(got) > descriptionLimit+3 {
		t.Errorf("truncated text too long: %d bytes", len(got))
	}
}

func TestCategoriesToolHandlerSortedPayload(t *testing.T) {
	scraper := &fakeScraper{events: listingFixture()}
	s := NewService(scraper, time.Hour, nil)

	out, err := CategoriesToolHandler(s)(context.Background(), map[string]any{"city": "Berlin"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var payload struct {
		City       string `json:"city"`
		Categories []struct {
			Category string `json:"category"`
			Count    int    `json:"count"`
		} `json:"categories"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}

	got := make([]string, len(payload.Categories))
	for i, c := range payload.Categories {
		got[i] = c.Category
	}
	want := []string{"comedy", "kino", "konzert"}
	if len(got) != len(want) {
		t.Fatalf("categories = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("category %d = %q, want %q (sorted)", i, got[i], want[i])
		}
	}
	for _, c := range payload.Categories {
		if c.Category == "konzert" && c.Count != 2 {
			t.Errorf("konzert count = %d, want 2", c.Count)
		}
	}
}

func TestCacheSharesOneScrape(t *testing.T) {
	scraper := &fakeScraper{events: listingFixture()}
	s := NewService(scraper, time.Hour, nil)

	if _, err := s.Categories(context.Background(), "Berlin", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Detailed(context.Background(), "berlin", "kino", 0, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Detailed(context.Background(), "BERLIN", "comedy", 0, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if scraper.scrapes.Load() != 1 {
		t.Errorf("expected one scrape within the TTL window, got %d", scraper.scrapes.Load())
	}
}

func TestCacheExpiresWithEpoch(t *testing.T) {
	scraper := &fakeScraper{events: listingFixture()}
	s := NewService(scraper, time.Hour, nil)

	base := time.Now()
	s.now = func() time.Time { return base }

	s.Categories(context.Background(), "Berlin", false)
	s.now = func() time.Time { return base.Add(2 * time.Hour) }
	s.Categories(context.Background(), "Berlin", false)

	if scraper.scrapes.Load() != 2 {
		t.Errorf("expected a fresh scrape after the epoch rolled, got %d", scraper.scrapes.Load())
	}
}

func TestForceRefreshBypassesCache(t *testing.T) {
	scraper := &fakeScraper{events: listingFixture()}
	s := NewService(scraper, time.Hour, nil)

	s.Categories(context.Background(), "Berlin", false)
	s.Categories(context.Background(), "Berlin", true)

	if scraper.scrapes.Load() != 2 {
		t.Errorf("expected force_refresh to re-scrape, got %d scrapes", scraper.scrapes.Load())
	}
}

func TestCategories(t *testing.T) {
	scraper := &fakeScraper{events: listingFixture()}
	s := NewService(scraper, time.Hour, nil)

	counts, err := s.Categories(context.Background(), "Berlin", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counts["konzert"] != 2 || counts["comedy"] != 1 || counts["kino"] != 1 {
		t.Errorf("unexpected counts: %v", counts)
	}
}

func TestCategoriesEmptyListing(t *testing.T) {
	scraper := &fakeScraper{}
	s := NewService(scraper, time.Hour, nil)

	_, err := s.Categories(context.Background(), "Nirgendwo", false)
	if err == nil {
		t.Fatal("expected error for a city with no listings")
	}
	if !strings.Contains(err.Error(), "Nirgendwo") {
		t.Errorf("error should name the city: %v", err)
	}
}

func TestSearchKeyword(t *testing.T) {
	scraper := &fakeScraper{events: listingFixture()}
	s := NewService(scraper, time.Hour, nil)

	evs, err := s.SearchKeyword(context.Background(), "Berlin", "jazz")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(evs) != 1 || evs[0].Title != "Jazz Night" {
		t.Errorf("unexpected matches: %+v", evs)
	}

	if _, err := s.SearchKeyword(context.Background(), "Berlin", "  "); err == nil {
		t.Error("expected error for empty keyword")
	}
}

func TestIsValidCategory(t *testing.T) {
	if !IsValidCategory("Konzert") {
		t.Error("category check must be case-insensitive")
	}
	if IsValidCategory("techno") {
		t.Error("unknown categories must be rejected")
	}
}
