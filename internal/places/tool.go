package places

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wayfarer-ai/wayfarer/internal/tools"
)

// ToolHandler adapts the places client to the tool registry.
func ToolHandler(c *Client) tools.Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		lat, ok := args["latitude"].(float64)
		if !ok {
			return "", fmt.Errorf("latitude is required and must be a number")
		}
		lng, ok := args["longitude"].(float64)
		if !ok {
			return "", fmt.Errorf("longitude is required and must be a number")
		}
		topics, _ := args["search_topics"].(string)

		q := Query{
			Latitude:  lat,
			Longitude: lng,
			Topics:    topics,
			OpenNow:   DefaultOpenNow,
		}
		if v, ok := args["radius_meters"].(float64); ok {
			q.RadiusMeters = int(v)
		}
		if v, ok := args["max_results"].(float64); ok {
			q.MaxResults = int(v)
			q.MaxResultsSet = true
		}
		if v, ok := args["open_now"].(bool); ok {
			q.OpenNow = v
		}

		result, err := c.Search(ctx, q)
		if err != nil {
			return "", err
		}
		payload, err := json.Marshal(result)
		if err != nil {
			return "", fmt.Errorf("encode search result: %w", err)
		}
		return string(payload), nil
	}
}

// ToolDefinition describes the nearby place search tool.
func ToolDefinition() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"latitude": map[string]any{
				"type":        "number",
				"description": "Latitude of the search center, between -90 and 90.",
			},
			"longitude": map[string]any{
				"type":        "number",
				"description": "Longitude of the search center, between -180 and 180.",
			},
			"search_topics": map[string]any{
				"type":        "string",
				"description": "Keywords describing what to look for, e.g. 'vegan restaurant' or 'cocktail bar'.",
			},
			"radius_meters": map[string]any{
				"type":        "integer",
				"description": "Search radius in meters. Defaults to 1000.",
			},
			"max_results": map[string]any{
				"type":        "integer",
				"description": "Maximum number of places to return. Defaults to 10.",
			},
			"open_now": map[string]any{
				"type":        "boolean",
				"description": "Only return places that are currently open. Defaults to true.",
			},
		},
		"required": []string{"latitude", "longitude", "search_topics"},
	}
}
