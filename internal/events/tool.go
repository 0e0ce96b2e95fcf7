package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wayfarer-ai/wayfarer/internal/tools"
)

// DetailedToolHandler adapts Detailed to the tool registry.
func DetailedToolHandler(s *Service) tools.Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		city, _ := args["city"].(string)
		if strings.TrimSpace(city) == "" {
			return "", fmt.Errorf("city is required")
		}
		category, _ := args["category"].(string)
		forceRefresh, _ := args["force_refresh"].(bool)
		max := 0
		if v, ok := args["max_events"].(float64); ok {
			max = int(v)
		}

		evs, err := s.Detailed(ctx, city, category, max, forceRefresh)
		if err != nil {
			return "", err
		}

		payload, err := json.Marshal(map[string]any{
			"city":     city,
			"category": strings.ToLower(strings.TrimSpace(category)),
			"events":   evs,
		})
		if err != nil {
			return "", fmt.Errorf("encode events: %w", err)
		}
		return string(payload), nil
	}
}

// DetailedToolDefinition describes the detailed-events tool.
func DetailedToolDefinition() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"city": map[string]any{
				"type":        "string",
				"description": "City to look up events for.",
			},
			"category": map[string]any{
				"type":        "string",
				"description": "Event category. One of: " + strings.Join(ValidCategories, ", ") + ".",
				"enum":        ValidCategories,
			},
			"max_events": map[string]any{
				"type":        "integer",
				"description": "Maximum number of events to return. Defaults to 5.",
			},
			"force_refresh": map[string]any{
				"type":        "boolean",
				"description": "Bypass the cached listing and re-fetch. Defaults to false.",
			},
		},
		"required": []string{"city", "category"},
	}
}

// CategoriesToolHandler adapts Categories to the tool registry.
func CategoriesToolHandler(s *Service) tools.Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		city, _ := args["city"].(string)
		if strings.TrimSpace(city) == "" {
			return "", fmt.Errorf("city is required")
		}
		forceRefresh, _ := args["force_refresh"].(bool)

		counts, err := s.Categories(ctx, city, forceRefresh)
		if err != nil {
			return "", err
		}

		// Stable ordering so identical listings produce identical
		// payloads across calls.
		type categoryCount struct {
			Category string `json:"category"`
			Count    int    `json:"count"`
		}
		ordered := make([]categoryCount, 0, len(counts))
		for _, cat := range SortedCategories(counts) {
			ordered = append(ordered, categoryCount{Category: cat, Count: counts[cat]})
		}

		payload, err := json.Marshal(map[string]any{
			"city":       city,
			"categories": ordered,
		})
		if err != nil {
			return "", fmt.Errorf("encode categories: %w", err)
		}
		return string(payload), nil
	}
}

// CategoriesToolDefinition describes the category-listing tool.
func CategoriesToolDefinition() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"city": map[string]any{
				"type":        "string",
				"description": "City to list available event categories for.",
			},
			"force_refresh": map[string]any{
				"type":        "boolean",
				"description": "Bypass the cached listing and re-fetch. Defaults to false.",
			},
		},
		"required": []string{"city"},
	}
}
