package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const forecastFixture = `{
	"current_weather": {
		"time": "2026-08-31T14:00",
		"temperature": 21.4,
		"windspeed": 12.3,
		"winddirection": 250,
		"weathercode": 3,
		"is_day": 1
	}
}`

func TestCurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/forecast" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("current_weather") != "true" {
			t.Error("expected current_weather=true")
		}
		w.Write([]byte(forecastFixture))
	}))
	defer srv.Close()

	c := New(srv.URL)
	got, err := c.Current(context.Background(), 52.52, 13.405)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TemperatureC != 21.4 {
		t.Errorf("temperature: got %v", got.TemperatureC)
	}
	if got.Description != "Overcast" {
		t.Errorf("expected code 3 to map to Overcast, got %q", got.Description)
	}
	if !got.IsDay {
		t.Error("expected is_day to be true")
	}
}

func TestCurrentUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Current(context.Background(), 52.52, 13.405)
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error should carry the status code, got: %v", err)
	}
}

func TestCurrentRejectsBadCoordinates(t *testing.T) {
	c := New("http://unused.invalid")

	if _, err := c.Current(context.Background(), 91, 0); err == nil {
		t.Error("expected error for latitude out of range")
	}
	if _, err := c.Current(context.Background(), 0, -181); err == nil {
		t.Error("expected error for longitude out of range")
	}
}

func TestDescribeCode(t *testing.T) {
	if got := DescribeCode(0); got != "Clear sky" {
		t.Errorf("code 0: got %q", got)
	}
	if got := DescribeCode(95); !strings.Contains(got, "Thunderstorm") {
		t.Errorf("code 95: got %q", got)
	}
	if got := DescribeCode(42); got != "Unknown weather condition" {
		t.Errorf("unmapped code must use the fallback, got %q", got)
	}
}

func TestToolHandlerRequiresCoordinates(t *testing.T) {
	h := ToolHandler(New("http://unused.invalid"))

	if _, err := h(context.Background(), map[string]any{"longitude": 13.4}); err == nil {
		t.Error("expected error for missing latitude")
	}
	if _, err := h(context.Background(), map[string]any{"latitude": "52.5", "longitude": 13.4}); err == nil {
		t.Error("expected error for non-numeric latitude")
	}
}

func TestToolHandler(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(forecastFixture))
	}))
	defer srv.Close()

	h := ToolHandler(New(srv.URL))
	out, err := h(context.Background(), map[string]any{"latitude": 52.52, "longitude": 13.405})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, `"temperature_celsius":21.4`) {
		t.Errorf("unexpected payload: %s", out)
	}
}
