// Package agent implements the core agent loop.
//
// Each user message drives one run of the loop: the model reasons over
// the conversation, optionally requests tool calls, the loop executes
// them and feeds the results back, and the run ends when the model
// answers in plain text or the round cap is reached. Tool failures are
// data the model sees; model failures abort the run.
package agent

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wayfarer-ai/wayfarer/internal/conversation"
	"github.com/wayfarer-ai/wayfarer/internal/llm"
	"github.com/wayfarer-ai/wayfarer/internal/prompts"
	"github.com/wayfarer-ai/wayfarer/internal/tools"
)

// DefaultMaxRounds caps model round-trips per user message.
const DefaultMaxRounds = 8

// Loop is the agent execution loop.
type Loop struct {
	logger    *slog.Logger
	store     conversation.Store
	registry  *tools.Registry
	client    llm.Client
	maxRounds int
}

// NewLoop creates an agent loop. maxRounds <= 0 uses DefaultMaxRounds.
func NewLoop(logger *slog.Logger, store conversation.Store, registry *tools.Registry, client llm.Client, maxRounds int) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	return &Loop{
		logger:    logger.With("component", "agent"),
		store:     store,
		registry:  registry,
		client:    client,
		maxRounds: maxRounds,
	}
}

// Process runs the loop for one user message on a thread and returns
// the assistant's final reply. onFragment, if non-nil, receives the
// reply text incrementally as the model streams it.
//
// The user message and every assistant/tool exchange are recorded in
// the conversation store; a round's assistant message and all of its
// tool results land in a single append so a cancelled run never leaves
// a half-written round behind.
func (l *Loop) Process(ctx context.Context, threadID, userText string, onFragment llm.StreamCallback) (string, error) {
	start := time.Now()
	l.logger.Info("run started", "thread", threadID)

	err := l.store.Append(threadID, conversation.Message{
		Role:      llm.RoleUser,
		Content:   userText,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}

	defs := l.registry.Definitions()

	for round := 1; round <= l.maxRounds; round++ {
		history, err := l.store.Read(threadID)
		if err != nil {
			return "", err
		}

		messages := make([]llm.Message, 0, len(history)+1)
		messages = append(messages, llm.Message{
			Role:    llm.RoleSystem,
			Content: prompts.System(),
		})
		for _, m := range history {
			messages = append(messages, llm.Message{
				Role:       m.Role,
				Content:    m.Content,
				ToolCalls:  m.ToolCalls,
				ToolCallID: m.ToolCallID,
			})
		}

		resp, err := l.client.ChatStream(ctx, messages, defs, onFragment)
		if err != nil {
			l.logger.Error("model call failed", "thread", threadID, "round", round, "error", err)
			return "", &ModelError{Round: round, Err: err}
		}

		assistant := conversation.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Message.Content,
			ToolCalls: resp.Message.ToolCalls,
			Timestamp: time.Now().UTC(),
		}

		if len(resp.Message.ToolCalls) == 0 {
			if err := l.store.Append(threadID, assistant); err != nil {
				return "", err
			}
			l.logger.Info("run completed",
				"thread", threadID,
				"rounds", round,
				"duration", time.Since(start),
			)
			return resp.Message.Content, nil
		}

		// Some models omit call IDs; assign them before recording so
		// every tool result references an ID present on the assistant
		// message.
		for i := range assistant.ToolCalls {
			if assistant.ToolCalls[i].ID == "" {
				assistant.ToolCalls[i].ID = uuid.NewString()
			}
		}

		results := l.executeCalls(ctx, threadID, round, assistant.ToolCalls)

		batch := append([]conversation.Message{assistant}, results...)
		if err := l.store.Append(threadID, batch...); err != nil {
			return "", err
		}
	}

	l.logger.Warn("round cap reached", "thread", threadID, "rounds", l.maxRounds)

	fallback := conversation.Message{
		Role:      llm.RoleAssistant,
		Content:   prompts.MaxRoundsFallback,
		Timestamp: time.Now().UTC(),
	}
	if err := l.store.Append(threadID, fallback); err != nil {
		return "", err
	}
	return prompts.MaxRoundsFallback, nil
}

// executeCalls runs every tool call of one round concurrently and
// returns one tool message per call, in call order. Execution never
// fails the round: unknown tools, bad arguments, and handler errors
// all come back as error payloads the model can read.
func (l *Loop) executeCalls(ctx context.Context, threadID string, round int, calls []llm.ToolCall) []conversation.Message {
	results := make([]conversation.Message, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call llm.ToolCall) {
			defer wg.Done()

			start := time.Now()
			payload := l.registry.Execute(ctx, call.Name, call.Arguments)
			l.logger.Debug("tool executed",
				"thread", threadID,
				"round", round,
				"tool", call.Name,
				"duration", time.Since(start),
			)

			results[i] = conversation.Message{
				Role:       llm.RoleTool,
				Content:    payload,
				ToolCallID: call.ID,
				Timestamp:  time.Now().UTC(),
			}
		}(i, call)
	}
	wg.Wait()

	return results
}
