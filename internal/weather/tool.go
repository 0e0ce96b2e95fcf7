package weather

import (
	"context"
	"encoding/json"
	"fmt"
)

// ToolHandler returns a function compatible with the tools.Tool Handler
// signature. It wraps the weather client for use as an agent tool.
func ToolHandler(c *Client) func(ctx context.Context, args map[string]any) (string, error) {
	return func(ctx context.Context, args map[string]any) (string, error) {
		lat, ok := args["latitude"].(float64)
		if !ok {
			return "", fmt.Errorf("get_weather: latitude is required")
		}
		lng, ok := args["longitude"].(float64)
		if !ok {
			return "", fmt.Errorf("get_weather: longitude is required")
		}

		conditions, err := c.Current(ctx, lat, lng)
		if err != nil {
			return "", err
		}

		out, err := json.Marshal(conditions)
		if err != nil {
			return "", fmt.Errorf("get_weather: encode result: %w", err)
		}
		return string(out), nil
	}
}

// ToolDefinition returns the JSON Schema parameters for the get_weather tool.
func ToolDefinition() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"latitude": map[string]any{
				"type":        "number",
				"description": "Latitude coordinate (-90 to 90).",
			},
			"longitude": map[string]any{
				"type":        "number",
				"description": "Longitude coordinate (-180 to 180).",
			},
		},
		"required": []string{"latitude", "longitude"},
	}
}
