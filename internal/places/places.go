// Package places provides nearby place search backed by a Google
// Places-style API: a bounded nearby search, parallel per-place detail
// fetches, one batched distance-matrix call, and review summarization.
//
// The adapter is deliberately forgiving: a missing detail record or a
// failed distance lookup degrades that one field, never the whole
// request. Only the initial nearby search can fail the call outright.
package places

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/wayfarer-ai/wayfarer/internal/httpkit"
	"github.com/wayfarer-ai/wayfarer/internal/summarize"
)

// DefaultBaseURL is the public places API endpoint.
const DefaultBaseURL = "https://maps.googleapis.com"

// Defaults applied when the model omits optional parameters.
const (
	DefaultRadiusMeters = 1000
	DefaultMaxResults   = 10
	DefaultOpenNow      = true
)

// detailWorkers bounds the detail-fetch fan-out so a single search
// cannot overwhelm the upstream API.
const detailWorkers = 5

// summarySentences is the review summary length per place.
const summarySentences = 3

// Client performs place searches.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	summarizer summarize.Summarizer
	logger     *slog.Logger
}

// New creates a places client. baseURL may be empty to use the public
// API; summarizer may be nil to always use the join-reviews fallback.
func New(apiKey, baseURL string, summarizer summarize.Summarizer, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if summarizer == nil {
		summarizer = summarize.Unavailable{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(20 * time.Second),
		),
		summarizer: summarizer,
		logger:     logger.With("component", "places"),
	}
}

// Query are the search parameters, after defaulting.
type Query struct {
	Latitude     float64
	Longitude    float64
	Topics       string
	RadiusMeters int
	MaxResults   int
	// MaxResultsSet marks MaxResults as explicitly supplied, so an
	// explicit zero means "no places" instead of DefaultMaxResults.
	MaxResultsSet bool
	OpenNow       bool
}

// Place is one search result with its enrichments.
type Place struct {
	Name          string  `json:"name"`
	Rating        float64 `json:"rating,omitempty"`
	PriceLevel    int     `json:"price_level,omitempty"`
	PlaceID       string  `json:"place_id"`
	MapsLink      string  `json:"maps_link,omitempty"`
	Distance      string  `json:"distance"`
	DineIn        *bool   `json:"dine_in_available,omitempty"`
	Description   string  `json:"description,omitempty"`
	ReviewCount   int     `json:"review_count"`
	ReviewSummary string  `json:"review_summary"`
	Coordinates   *LatLng `json:"coordinates,omitempty"`
}

// LatLng is a coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Result is the search response. Zero matches is a success with an
// explanatory note, not an error.
type Result struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Topics    string  `json:"topics"`
	Places    []Place `json:"places"`
	Note      string  `json:"note,omitempty"`
}

// nearbyResponse mirrors the nearby-search API payload.
type nearbyResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Name       string  `json:"name"`
		Rating     float64 `json:"rating"`
		PriceLevel int     `json:"price_level"`
		PlaceID    string  `json:"place_id"`
	} `json:"results"`
}

// detailResponse mirrors the place-details API payload.
type detailResponse struct {
	Result placeDetail `json:"result"`
}

type placeDetail struct {
	Reviews []struct {
		Text string `json:"text"`
	} `json:"reviews"`
	EditorialSummary struct {
		Overview string `json:"overview"`
	} `json:"editorial_summary"`
	Geometry struct {
		Location *LatLng `json:"location"`
	} `json:"geometry"`
	DineIn *bool `json:"dine_in"`
}

// distanceResponse mirrors the distance-matrix API payload.
type distanceResponse struct {
	Status string `json:"status"`
	Rows   []struct {
		Elements []struct {
			Status   string `json:"status"`
			Distance struct {
				Text string `json:"text"`
			} `json:"distance"`
		} `json:"elements"`
	} `json:"rows"`
}

// Search runs a nearby place search and enriches each result.
func (c *Client) Search(ctx context.Context, q Query) (*Result, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("places: API key not configured")
	}
	if q.Latitude < -90 || q.Latitude > 90 {
		return nil, fmt.Errorf("places: latitude %v out of range [-90, 90]", q.Latitude)
	}
	if q.Longitude < -180 || q.Longitude > 180 {
		return nil, fmt.Errorf("places: longitude %v out of range [-180, 180]", q.Longitude)
	}
	if q.RadiusMeters <= 0 {
		q.RadiusMeters = DefaultRadiusMeters
	}
	if q.MaxResults < 0 {
		q.MaxResults = 0
	}
	if q.MaxResults == 0 && !q.MaxResultsSet {
		q.MaxResults = DefaultMaxResults
	}

	result := &Result{
		Latitude:  q.Latitude,
		Longitude: q.Longitude,
		Topics:    q.Topics,
		Places:    []Place{},
	}

	// An explicit zero bound is a success with nothing to look up.
	if q.MaxResults == 0 {
		result.Note = "max_results is 0, so no places were looked up."
		return result, nil
	}

	candidates, err := c.nearbySearch(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		result.Note = "No places found matching your criteria. Try a larger radius or different keywords."
		return result, nil
	}

	names := make([]string, len(candidates))
	for i, cand := range candidates {
		names[i] = cand.name
	}
	names = uniqueNames(names)

	details := c.fetchDetails(ctx, candidates, names)
	distances := c.batchDistances(ctx, q, names, details)

	reviewsByName := make(map[string][]string, len(names))
	for i, name := range names {
		cand := candidates[i]
		detail := details[name]

		var reviews []string
		for _, r := range detail.Reviews {
			if r.Text != "" {
				reviews = append(reviews, r.Text)
			}
		}
		reviewsByName[name] = reviews

		place := Place{
			Name:        name,
			Rating:      cand.rating,
			PriceLevel:  cand.priceLevel,
			PlaceID:     cand.placeID,
			Distance:    distances[name],
			DineIn:      detail.DineIn,
			Description: detail.EditorialSummary.Overview,
			ReviewCount: len(reviews),
			Coordinates: detail.Geometry.Location,
		}
		if cand.placeID != "" {
			place.MapsLink = "https://www.google.com/maps?q=place_id:" + url.QueryEscape(cand.placeID)
		}
		if place.Distance == "" {
			place.Distance = "Distance unavailable"
		}
		result.Places = append(result.Places, place)
	}

	summaries := c.summarizeReviews(reviewsByName)
	for i := range result.Places {
		result.Places[i].ReviewSummary = summaries[result.Places[i].Name]
	}

	return result, nil
}

type candidate struct {
	name       string
	rating     float64
	priceLevel int
	placeID    string
}

// nearbySearch performs the initial bounded search. This is the only
// step whose failure fails the whole call.
func (c *Client) nearbySearch(ctx context.Context, q Query) ([]candidate, error) {
	params := url.Values{
		"keyword":  {q.Topics},
		"location": {fmt.Sprintf("%v,%v", q.Latitude, q.Longitude)},
		"radius":   {strconv.Itoa(q.RadiusMeters)},
		"key":      {c.apiKey},
	}
	if q.OpenNow {
		params.Set("opennow", "true")
	}

	var nr nearbyResponse
	err := httpkit.GetJSON(ctx, c.httpClient, c.baseURL+"/maps/api/place/nearbysearch/json?"+params.Encode(), &nr)
	if err != nil {
		return nil, fmt.Errorf("places: nearby search: %w", err)
	}
	if nr.Status != "OK" && nr.Status != "ZERO_RESULTS" {
		return nil, fmt.Errorf("places: nearby search returned status %s", nr.Status)
	}

	results := nr.Results
	if len(results) > q.MaxResults {
		results = results[:q.MaxResults]
	}

	out := make([]candidate, 0, len(results))
	for _, r := range results {
		out = append(out, candidate{
			name:       r.Name,
			rating:     r.Rating,
			priceLevel: r.PriceLevel,
			placeID:    r.PlaceID,
		})
	}
	return out, nil
}

// fetchDetails fans out one detail request per candidate over a fixed
// worker pool. Each fetch retries independently and is independently
// allowed to fail: a missing detail record degrades to empty fields.
func (c *Client) fetchDetails(ctx context.Context, candidates []candidate, names []string) map[string]placeDetail {
	type job struct {
		placeID string
		name    string
	}

	jobs := make(chan job)
	var mu sync.Mutex
	details := make(map[string]placeDetail, len(candidates))

	var wg sync.WaitGroup
	for range detailWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				detail, err := c.fetchDetail(ctx, j.placeID)
				if err != nil {
					c.logger.Warn("place detail fetch failed",
						"place", j.name,
						"error", err,
					)
					detail = placeDetail{}
				}
				mu.Lock()
				details[j.name] = detail
				mu.Unlock()
			}
		}()
	}

	for i, cand := range candidates {
		if cand.placeID == "" {
			continue
		}
		jobs <- job{placeID: cand.placeID, name: names[i]}
	}
	close(jobs)
	wg.Wait()

	return details
}

func (c *Client) fetchDetail(ctx context.Context, placeID string) (placeDetail, error) {
	params := url.Values{
		"place_id": {placeID},
		"key":      {c.apiKey},
		"fields":   {"reviews,editorial_summary,geometry,dine_in"},
	}

	var dr detailResponse
	err := httpkit.GetJSON(ctx, c.httpClient, c.baseURL+"/maps/api/place/details/json?"+params.Encode(), &dr)
	if err != nil {
		return placeDetail{}, err
	}
	return dr.Result, nil
}

// batchDistances issues one distance-matrix request covering every
// place with known coordinates. Partial failures fall back to
// "Distance unavailable" per destination.
func (c *Client) batchDistances(ctx context.Context, q Query, names []string, details map[string]placeDetail) map[string]string {
	distances := make(map[string]string, len(names))

	var coordNames []string
	var coords []string
	for _, name := range names {
		loc := details[name].Geometry.Location
		if loc == nil {
			continue
		}
		coordNames = append(coordNames, name)
		coords = append(coords, fmt.Sprintf("%v,%v", loc.Lat, loc.Lng))
	}
	if len(coords) == 0 {
		return distances
	}

	params := url.Values{
		"origins":      {fmt.Sprintf("%v,%v", q.Latitude, q.Longitude)},
		"destinations": {strings.Join(coords, "|")},
		"mode":         {"walking"},
		"key":          {c.apiKey},
	}

	var dr distanceResponse
	err := httpkit.GetJSON(ctx, c.httpClient, c.baseURL+"/maps/api/distancematrix/json?"+params.Encode(), &dr)
	if err != nil || dr.Status != "OK" || len(dr.Rows) == 0 {
		c.logger.Warn("distance matrix unavailable",
			"status", dr.Status,
			"error", err,
		)
		for _, name := range coordNames {
			distances[name] = "Distance unavailable"
		}
		return distances
	}

	elements := dr.Rows[0].Elements
	for i, name := range coordNames {
		if i >= len(elements) {
			distances[name] = "Distance unavailable"
			continue
		}
		el := elements[i]
		if el.Status == "OK" && el.Distance.Text != "" {
			distances[name] = el.Distance.Text
		} else {
			distances[name] = fmt.Sprintf("Distance unavailable (%s)", el.Status)
		}
	}
	return distances
}

// summarizeReviews condenses each place's reviews. When the summarizer
// is unavailable or fails, the fallback joins the first two reviews.
func (c *Client) summarizeReviews(reviewsByName map[string][]string) map[string]string {
	summaries := make(map[string]string, len(reviewsByName))
	for name, reviews := range reviewsByName {
		if len(reviews) == 0 {
			summaries[name] = "No reviews available"
			continue
		}
		if !c.summarizer.Available() {
			summaries[name] = summarize.JoinFirst(reviews, 2)
			continue
		}
		summary, err := c.summarizer.Summarize(strings.Join(reviews, " "), summarySentences)
		if err != nil || strings.TrimSpace(summary) == "" {
			summaries[name] = summarize.JoinFirst(reviews, 1)
			continue
		}
		summaries[name] = summary
	}
	return summaries
}

// uniqueNames de-duplicates repeated place names by appending an
// occurrence counter: "Cafe X", "Cafe X (2)", "Cafe X (3)".
func uniqueNames(names []string) []string {
	counts := make(map[string]int, len(names))
	out := make([]string, len(names))
	for i, name := range names {
		counts[name]++
		if counts[name] == 1 {
			out[i] = name
		} else {
			out[i] = fmt.Sprintf("%s (%d)", name, counts[name])
		}
	}
	return out
}
