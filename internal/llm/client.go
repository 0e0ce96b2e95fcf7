package llm

import "context"

// Client is the interface the decision loop uses to talk to the
// reasoning model. Implementations must return exactly one assistant
// message per call; a transport or provider failure is returned as an
// error and is fatal to the calling loop run.
type Client interface {
	// Chat sends the ordered message history plus tool definitions and
	// returns the model's next assistant message.
	Chat(ctx context.Context, messages []Message, tools []ToolDefinition) (*ChatResponse, error)

	// ChatStream is Chat with incremental delivery: if callback is
	// non-nil, assistant text fragments are streamed to it as they
	// arrive. The returned response carries the complete message.
	ChatStream(ctx context.Context, messages []Message, tools []ToolDefinition, callback StreamCallback) (*ChatResponse, error)
}

// ToolDefinition is the schema-described contract for one tool,
// published to the model so it knows what it may call.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema object
}
