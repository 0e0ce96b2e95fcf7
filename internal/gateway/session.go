package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wayfarer-ai/wayfarer/internal/agent"
)

// maxInboundBytes bounds a single user message.
const maxInboundBytes = 64 * 1024

// genericErrorReply is sent when a run fails for reasons the user
// cannot act on.
const genericErrorReply = "Sorry, something went wrong while handling your message. Please try again."

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16 * 1024,
	WriteBufferSize: 16 * 1024,
	// Sessions are keyed by thread ID, not by origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Frame is one outbound session frame. Chunk frames carry incremental
// reply text; the done frame carries the complete reply and marks the
// end of a run; error frames end a run without a reply.
type Frame struct {
	Type    string `json:"type"` // "chunk", "done", "error"
	Content string `json:"content"`
}

// handleSession upgrades the connection and serves one session.
//
// A reader goroutine feeds inbound messages to the session loop so a
// disconnect is noticed even while a run is in flight; the run's
// context is cancelled and in-flight tool calls unwind.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	threadID := strings.TrimSpace(r.PathValue("thread_id"))
	if threadID == "" {
		http.Error(w, "thread_id required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "thread", threadID, "error", err)
		return
	}
	defer conn.Close()

	logger := s.logger.With("thread", threadID)
	logger.Info("session opened", "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadLimit(maxInboundBytes)

	inbound := make(chan string)
	go func() {
		defer close(inbound)
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				cancel()
				return
			}
			if msgType != websocket.TextMessage {
				continue
			}
			select {
			case inbound <- string(data):
			case <-ctx.Done():
				return
			}
		}
	}()

	for text := range inbound {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if !s.runOnce(ctx, conn, logger, threadID, text) {
			break
		}
	}

	logger.Info("session closed")
}

// runOnce drives one agent run for one inbound message and reports
// whether the session should continue.
func (s *Server) runOnce(ctx context.Context, conn *websocket.Conn, logger *slog.Logger, threadID, text string) bool {
	writeFrame := func(f Frame) bool {
		conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
		if err := conn.WriteJSON(f); err != nil {
			logger.Warn("session write failed", "error", err)
			return false
		}
		return true
	}

	streamOK := true
	reply, err := s.loop.Process(ctx, threadID, text, func(fragment string) {
		if !streamOK {
			return
		}
		streamOK = writeFrame(Frame{Type: "chunk", Content: fragment})
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return false
		}
		var me *agent.ModelError
		if errors.As(err, &me) {
			logger.Error("run failed at model", "error", err)
		} else {
			logger.Error("run failed", "error", err)
		}
		return writeFrame(Frame{Type: "error", Content: genericErrorReply})
	}
	if !streamOK {
		return false
	}
	return writeFrame(Frame{Type: "done", Content: reply})
}
