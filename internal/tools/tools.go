// Package tools provides the tool registry and execution framework.
//
// Tool dispatch is data-driven: the decision loop resolves tools by
// name-keyed lookup, so adding a tool never changes the loop's logic —
// only the registry contents.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/wayfarer-ai/wayfarer/internal/llm"
)

// Handler executes one tool call. It receives decoded arguments and
// returns the result payload serialized for the model. Handlers absorb
// their own faults: a returned error is converted to an error result
// by Execute, never propagated past the Acting step.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Tool is one registered, schema-described operation.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema object
	Handler     Handler
}

// Registry holds the fixed tool set. Registration happens at startup;
// there is no dynamic mutation during a conversation.
type Registry struct {
	tools map[string]*Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool. Re-registering a name replaces the previous
// entry; callers are expected to register each tool exactly once.
func (r *Registry) Register(t *Tool) {
	r.tools[t.Name] = t
}

// Get retrieves a tool by name, or nil when unregistered.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the model-facing declarations for every tool,
// in sorted name order so the system prompt is deterministic.
func (r *Registry) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(r.tools))
	for _, name := range r.Names() {
		t := r.tools[name]
		defs = append(defs, llm.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return defs
}

// Validate confirms that every named tool is registered. Called at
// startup so a misconfigured tool reference fails fast rather than at
// the first conversation that needs it.
func (r *Registry) Validate(names ...string) error {
	for _, name := range names {
		if _, ok := r.tools[name]; !ok {
			return fmt.Errorf("tool %q referenced at startup is not registered (have: %v)", name, r.Names())
		}
	}
	return nil
}

// Execute runs a tool by name with raw JSON arguments and always
// produces exactly one result string. Unknown names and handler faults
// become error payloads — the model sees them as data and decides how
// to react; the loop never aborts on a tool failure.
func (r *Registry) Execute(ctx context.Context, name string, argsJSON string) string {
	t := r.tools[name]
	if t == nil {
		return errorPayload((&UnknownToolError{Name: name, Known: r.Names()}).Error())
	}

	args := map[string]any{}
	if argsJSON != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return errorPayload(fmt.Sprintf("invalid arguments for %s: %v", name, err))
		}
	}

	result, err := t.Handler(ctx, args)
	if err != nil {
		return errorPayload(err.Error())
	}
	return result
}

// errorPayload wraps an error message in the uniform {"error": ...}
// shape every adapter uses.
func errorPayload(msg string) string {
	data, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return `{"error": "internal error"}`
	}
	return string(data)
}
