package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig holds credentials and runtime options for the
// OpenAI-backed reasoning model client.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string // optional OpenAI-compatible endpoint
	Model       string
	Temperature float64
	HTTPClient  *http.Client
}

// OpenAIClient implements Client using the OpenAI chat completions API.
type OpenAIClient struct {
	client      *goopenai.Client
	model       string
	temperature float32
	logger      *slog.Logger
}

// NewOpenAIClient creates a reasoning model client. The API key is
// required; its absence is a configuration error caught at startup.
func NewOpenAIClient(cfg OpenAIConfig, logger *slog.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai: model name is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	apiCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		apiCfg.HTTPClient = cfg.HTTPClient
	}

	return &OpenAIClient{
		client:      goopenai.NewClientWithConfig(apiCfg),
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		logger:      logger.With("component", "llm"),
	}, nil
}

// Chat sends a chat completion request and returns the assistant message.
func (c *OpenAIClient) Chat(ctx context.Context, messages []Message, tools []ToolDefinition) (*ChatResponse, error) {
	req := c.buildRequest(messages, tools)

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: no choices returned")
	}

	choice := resp.Choices[0]
	return &ChatResponse{
		Message:      fromOpenAIMessage(choice.Message),
		FinishReason: string(choice.FinishReason),
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

// ChatStream sends a streaming chat request. Text fragments go to
// callback as they arrive; tool-call fragments are aggregated by index
// and surfaced only on the final response.
func (c *OpenAIClient) ChatStream(ctx context.Context, messages []Message, tools []ToolDefinition, callback StreamCallback) (*ChatResponse, error) {
	if callback == nil {
		return c.Chat(ctx, messages, tools)
	}

	req := c.buildRequest(messages, tools)
	req.Stream = true

	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai: open stream: %w", err)
	}
	defer stream.Close()

	var content []byte
	var finishReason string

	// Tool call fragments arrive interleaved, keyed by index within
	// the assistant message. Order of first appearance is preserved.
	type partialCall struct {
		id   string
		name string
		args []byte
	}
	var calls []*partialCall
	byIndex := make(map[int]*partialCall)

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("openai: stream recv: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}

		choice := resp.Choices[0]
		if choice.FinishReason != "" {
			finishReason = string(choice.FinishReason)
		}

		if choice.Delta.Content != "" {
			content = append(content, choice.Delta.Content...)
			callback(choice.Delta.Content)
		}

		for _, tc := range choice.Delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			pc, ok := byIndex[idx]
			if !ok {
				pc = &partialCall{}
				byIndex[idx] = pc
				calls = append(calls, pc)
			}
			if tc.ID != "" {
				pc.id = tc.ID
			}
			if tc.Function.Name != "" {
				pc.name = tc.Function.Name
			}
			pc.args = append(pc.args, tc.Function.Arguments...)
		}
	}

	msg := Message{
		Role:    RoleAssistant,
		Content: string(content),
	}
	for _, pc := range calls {
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{
			ID:        pc.id,
			Name:      pc.name,
			Arguments: string(pc.args),
		})
	}

	return &ChatResponse{
		Message:      msg,
		FinishReason: finishReason,
	}, nil
}

func (c *OpenAIClient) buildRequest(messages []Message, tools []ToolDefinition) goopenai.ChatCompletionRequest {
	req := goopenai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toOpenAIMessages(messages),
		Temperature: c.temperature,
	}

	for _, t := range tools {
		req.Tools = append(req.Tools, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	return req
}

func toOpenAIMessages(messages []Message) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		om := goopenai.ChatCompletionMessage{
			Content: m.Content,
		}
		switch m.Role {
		case RoleSystem:
			om.Role = goopenai.ChatMessageRoleSystem
		case RoleAssistant:
			om.Role = goopenai.ChatMessageRoleAssistant
			for _, tc := range m.ToolCalls {
				om.ToolCalls = append(om.ToolCalls, goopenai.ToolCall{
					ID:   tc.ID,
					Type: goopenai.ToolTypeFunction,
					Function: goopenai.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
		case RoleTool:
			om.Role = goopenai.ChatMessageRoleTool
			om.ToolCallID = m.ToolCallID
		default:
			om.Role = goopenai.ChatMessageRoleUser
		}
		out[i] = om
	}
	return out
}

func fromOpenAIMessage(m goopenai.ChatCompletionMessage) Message {
	msg := Message{
		Role:    RoleAssistant,
		Content: m.Content,
	}
	for _, tc := range m.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return msg
}

// Ensure interface compliance.
var _ Client = (*OpenAIClient)(nil)
