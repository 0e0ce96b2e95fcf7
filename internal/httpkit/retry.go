package httpkit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// DefaultRetryAttempts is the retry budget for GetJSON.
const DefaultRetryAttempts = 3

// DefaultRetryBase is the base delay for the backoff between attempts.
// The delay doubles after each failed attempt.
const DefaultRetryBase = 500 * time.Millisecond

// GetJSON performs a GET request and decodes the JSON response into out,
// retrying on transport errors and 5xx responses with exponential
// backoff. 4xx responses are not retried; the request will not get
// better by repeating it.
func GetJSON(ctx context.Context, client *http.Client, url string, out any) error {
	return GetJSONRetry(ctx, client, url, out, DefaultRetryAttempts, DefaultRetryBase)
}

// GetJSONRetry is GetJSON with an explicit retry budget and backoff base.
func GetJSONRetry(ctx context.Context, client *http.Client, url string, out any, attempts int, base time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if !sleepCtx(ctx, base<<(attempt-2)) {
				return ctx.Err()
			}
		}

		lastErr = getJSONOnce(ctx, client, url, out)
		if lastErr == nil {
			return nil
		}

		var se *StatusError
		if errors.As(lastErr, &se) && se.Code >= 400 && se.Code < 500 {
			return lastErr
		}
	}

	return fmt.Errorf("request failed after %d attempts: %w", attempts, lastErr)
}

func getJSONOnce(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{
			Code: resp.StatusCode,
			Body: ReadErrorBody(resp.Body, 512),
		}
	}

	if out == nil {
		DrainAndClose(resp.Body, 4096)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.Code)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// sleepCtx sleeps for d or until ctx is cancelled. Returns true if the
// sleep completed, false if the context was cancelled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
