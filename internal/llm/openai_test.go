package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewOpenAIClientValidation(t *testing.T) {
	if _, err := NewOpenAIClient(OpenAIConfig{Model: "gpt-4.1"}, nil); err == nil {
		t.Error("expected error for missing api key")
	}
	if _, err := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test"}, nil); err == nil {
		t.Error("expected error for missing model name")
	}
	if _, err := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", Model: "gpt-4.1"}, nil); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestToOpenAIMessages(t *testing.T) {
	msgs := []Message{
		{Role: RoleSystem, Content: "policy"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "", ToolCalls: []ToolCall{
			{ID: "c1", Name: "get_weather", Arguments: `{"latitude":1}`},
		}},
		{Role: RoleTool, Content: `{"ok":true}`, ToolCallID: "c1"},
	}

	out := toOpenAIMessages(msgs)
	if len(out) != 4 {
		t.Fatalf("got %d messages, want 4", len(out))
	}

	if out[0].Role != "system" || out[1].Role != "user" {
		t.Errorf("roles = %q, %q", out[0].Role, out[1].Role)
	}
	if out[2].Role != "assistant" || len(out[2].ToolCalls) != 1 {
		t.Fatalf("assistant message = %+v", out[2])
	}
	tc := out[2].ToolCalls[0]
	if tc.ID != "c1" || tc.Function.Name != "get_weather" || tc.Function.Arguments != `{"latitude":1}` {
		t.Errorf("tool call = %+v", tc)
	}
	if out[3].Role != "tool" || out[3].ToolCallID != "c1" {
		t.Errorf("tool result = %+v", out[3])
	}
}

func TestChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("authorization = %q", got)
		}

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
			Tools []struct {
				Function struct {
					Name string `json:"name"`
				} `json:"function"`
			} `json:"tools"`
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "gpt-4.1" {
			t.Errorf("model = %q", req.Model)
		}
		if len(req.Tools) != 1 || req.Tools[0].Function.Name != "get_weather" {
			t.Errorf("tools = %+v", req.Tools)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"choices": [{
				"message": {"role": "assistant", "content": "It is sunny."},
				"finish_reason": "stop"
			}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 4}
		}`)
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(OpenAIConfig{
		APIKey:     "sk-test",
		BaseURL:    srv.URL,
		Model:      "gpt-4.1",
		HTTPClient: srv.Client(),
	}, nil)
	if err != nil {
		t.Fatalf("NewOpenAIClient: %v", err)
	}

	tools := []ToolDefinition{{Name: "get_weather", Description: "d", Parameters: map[string]any{"type": "object"}}}
	resp, err := client.Chat(context.Background(), []Message{{Role: RoleUser, Content: "weather?"}}, tools)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if resp.Message.Content != "It is sunny." {
		t.Errorf("content = %q", resp.Message.Content)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("finish reason = %q", resp.FinishReason)
	}
	if resp.InputTokens != 12 || resp.OutputTokens != 4 {
		t.Errorf("tokens = %d/%d", resp.InputTokens, resp.OutputTokens)
	}
}

func TestChatToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"choices": [{
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "get_weather", "arguments": "{\"latitude\":52.5}"}
					}]
				},
				"finish_reason": "tool_calls"
			}]
		}`)
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(OpenAIConfig{
		APIKey:     "sk-test",
		BaseURL:    srv.URL,
		Model:      "gpt-4.1",
		HTTPClient: srv.Client(),
	}, nil)
	if err != nil {
		t.Fatalf("NewOpenAIClient: %v", err)
	}

	resp, err := client.Chat(context.Background(), []Message{{Role: RoleUser, Content: "weather?"}}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if len(resp.Message.ToolCalls) != 1 {
		t.Fatalf("got %d tool calls, want 1", len(resp.Message.ToolCalls))
	}
	tc := resp.Message.ToolCalls[0]
	if tc.ID != "call_1" || tc.Name != "get_weather" || tc.Arguments != `{"latitude":52.5}` {
		t.Errorf("tool call = %+v", tc)
	}
}

func TestChatStreamAggregates(t *testing.T) {
	chunks := []string{
		`{"choices":[{"delta":{"content":"It is "}}]}`,
		`{"choices":[{"delta":{"content":"sunny."}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"get_weather","arguments":"{\"lat"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"itude\":1}"}}]}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(OpenAIConfig{
		APIKey:     "sk-test",
		BaseURL:    srv.URL,
		Model:      "gpt-4.1",
		HTTPClient: srv.Client(),
	}, nil)
	if err != nil {
		t.Fatalf("NewOpenAIClient: %v", err)
	}

	var fragments []string
	resp, err := client.ChatStream(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil, func(fragment string) {
		fragments = append(fragments, fragment)
	})
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}

	if got := strings.Join(fragments, ""); got != "It is sunny." {
		t.Errorf("streamed fragments = %q", got)
	}
	if resp.Message.Content != "It is sunny." {
		t.Errorf("content = %q", resp.Message.Content)
	}
	if len(resp.Message.ToolCalls) != 1 {
		t.Fatalf("got %d tool calls, want 1", len(resp.Message.ToolCalls))
	}
	tc := resp.Message.ToolCalls[0]
	if tc.ID != "call_1" || tc.Name != "get_weather" || tc.Arguments != `{"latitude":1}` {
		t.Errorf("aggregated tool call = %+v", tc)
	}
	if resp.FinishReason != "tool_calls" {
		t.Errorf("finish reason = %q", resp.FinishReason)
	}
}

func TestChatUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error": {"message": "invalid key", "type": "invalid_request_error"}}`)
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(OpenAIConfig{
		APIKey:     "sk-bad",
		BaseURL:    srv.URL,
		Model:      "gpt-4.1",
		HTTPClient: srv.Client(),
	}, nil)
	if err != nil {
		t.Fatalf("NewOpenAIClient: %v", err)
	}

	if _, err := client.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil); err == nil {
		t.Error("expected error from upstream 401")
	}
}
