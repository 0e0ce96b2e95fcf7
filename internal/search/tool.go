package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/wayfarer-ai/wayfarer/internal/tools"
)

// snippetCount is how many result snippets the tool returns.
const snippetCount = 3

// ToolHandler adapts the search manager to the tool registry. Provider
// failures come back as readable text so the model can tell the user
// the lookup did not work instead of aborting the turn.
func ToolHandler(m *Manager) tools.Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		query, _ := args["query"].(string)
		if strings.TrimSpace(query) == "" {
			return "", fmt.Errorf("query is required")
		}
		if !m.Configured() {
			return "", fmt.Errorf("web search is not configured")
		}

		results, err := m.Search(ctx, query, Options{Count: snippetCount})
		if err != nil {
			return fmt.Sprintf("Web search failed: %v", err), nil
		}
		if len(results) == 0 {
			return "Web search returned no results for: " + query, nil
		}

		snippets := make([]string, 0, snippetCount)
		for _, r := range results {
			if r.Snippet == "" {
				continue
			}
			snippets = append(snippets, r.Snippet)
			if len(snippets) == snippetCount {
				break
			}
		}
		if len(snippets) == 0 {
			return "Web search returned no usable snippets for: " + query, nil
		}
		return strings.Join(snippets, "\n\n"), nil
	}
}

// ToolDefinition describes the web search tool.
func ToolDefinition() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Search query for current information not covered by other tools.",
			},
		},
		"required": []string{"query"},
	}
}
