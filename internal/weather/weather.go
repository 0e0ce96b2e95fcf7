// Package weather provides current-conditions lookup via the
// Open-Meteo forecast API. No credential is required.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/wayfarer-ai/wayfarer/internal/httpkit"
)

// DefaultBaseURL is the public Open-Meteo endpoint.
const DefaultBaseURL = "https://api.open-meteo.com"

// Client fetches current weather conditions.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a weather client. baseURL may be empty to use the public API.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(15 * time.Second),
		),
	}
}

// Conditions is the normalized current-weather record.
type Conditions struct {
	TimeObserved     string  `json:"time_observed"`
	TemperatureC     float64 `json:"temperature_celsius"`
	WindspeedKmh     float64 `json:"windspeed_kmh"`
	WindDirectionDeg float64 `json:"wind_direction_degrees"`
	Description      string  `json:"weather_description"`
	IsDay            bool    `json:"is_day"`
}

// forecastResponse mirrors the current_weather block of the API response.
type forecastResponse struct {
	CurrentWeather struct {
		Time          string  `json:"time"`
		Temperature   float64 `json:"temperature"`
		Windspeed     float64 `json:"windspeed"`
		Winddirection float64 `json:"winddirection"`
		Weathercode   int     `json:"weathercode"`
		IsDay         int     `json:"is_day"`
	} `json:"current_weather"`
}

// Current returns current conditions at the given coordinates.
// A non-2xx upstream response is returned as an error carrying the
// status code; the tool layer converts it to an error payload.
func (c *Client) Current(ctx context.Context, latitude, longitude float64) (*Conditions, error) {
	if latitude < -90 || latitude > 90 {
		return nil, fmt.Errorf("latitude %v out of range [-90, 90]", latitude)
	}
	if longitude < -180 || longitude > 180 {
		return nil, fmt.Errorf("longitude %v out of range [-180, 180]", longitude)
	}

	params := url.Values{
		"latitude":         {strconv.FormatFloat(latitude, 'f', -1, 64)},
		"longitude":        {strconv.FormatFloat(longitude, 'f', -1, 64)},
		"current_weather":  {"true"},
		"temperature_unit": {"celsius"},
		"windspeed_unit":   {"kmh"},
		"timezone":         {"auto"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/forecast?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("weather: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("weather: upstream returned status %d: %s",
			resp.StatusCode, httpkit.ReadErrorBody(resp.Body, 256))
	}

	var fr forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return nil, fmt.Errorf("weather: decode response: %w", err)
	}

	cw := fr.CurrentWeather
	return &Conditions{
		TimeObserved:     cw.Time,
		TemperatureC:     cw.Temperature,
		WindspeedKmh:     cw.Windspeed,
		WindDirectionDeg: cw.Winddirection,
		Description:      DescribeCode(cw.Weathercode),
		IsDay:            cw.IsDay == 1,
	}, nil
}
