// Package llm provides reasoning model client implementations.
package llm

// Message roles. The conversation history is built entirely from these
// four; a tool message answers exactly one assistant tool call.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents one turn in a conversation as seen by the model.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // set only on tool results
}

// ToolCall represents a tool invocation request emitted by the model.
// Arguments is the raw JSON argument object; decoding is deferred to
// the tool registry so malformed arguments become tool errors, not
// transport errors.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ChatResponse is the unified response from the reasoning model.
type ChatResponse struct {
	Message      Message
	FinishReason string

	// Token usage (provider-neutral)
	InputTokens  int
	OutputTokens int
}

// StreamCallback receives incremental text fragments as the model
// produces them. It is only invoked for assistant text, never for
// tool-call payloads.
type StreamCallback func(fragment string)
