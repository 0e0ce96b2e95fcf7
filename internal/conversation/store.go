// Package conversation provides per-thread conversation state storage.
//
// A conversation is an ordered, append-only sequence of messages keyed
// by thread ID. The decision loop borrows a read/append view per run;
// it never holds long-lived ownership. Appends within one thread are
// serialized, reads may run concurrently, and different threads are
// fully independent.
package conversation

import (
	"sync"
	"time"

	"github.com/wayfarer-ai/wayfarer/internal/llm"
)

// Message is one stored conversation turn. It mirrors the model-facing
// message shape plus a timestamp for lifecycle bookkeeping.
type Message struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []llm.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Store is the interface the decision loop and gateway depend on.
type Store interface {
	// Append adds messages to the end of a thread's conversation,
	// creating the thread on first use. The whole batch is applied
	// atomically with respect to concurrent readers.
	Append(threadID string, msgs ...Message) error

	// Read returns a copy of the thread's ordered message history.
	// An unseen thread reads as empty, not as an error.
	Read(threadID string) ([]Message, error)
}

// MemoryStore is the in-memory Store. Conversations live for the
// process lifetime unless evicted by the idle TTL or the thread cap.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string]*thread

	idleTTL    time.Duration // zero disables eviction
	maxThreads int           // zero means unlimited

	janitorStop chan struct{}
	janitorOnce sync.Once
}

type thread struct {
	messages  []Message
	updatedAt time.Time
}

// MemoryOptions tune the in-memory store's lifecycle behavior.
type MemoryOptions struct {
	IdleTTL    time.Duration
	MaxThreads int
}

// NewMemoryStore creates an in-memory conversation store.
func NewMemoryStore(opts MemoryOptions) *MemoryStore {
	return &MemoryStore{
		threads:     make(map[string]*thread),
		idleTTL:     opts.IdleTTL,
		maxThreads:  opts.MaxThreads,
		janitorStop: make(chan struct{}),
	}
}

// Append implements Store.
func (s *MemoryStore) Append(threadID string, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[threadID]
	if !ok {
		if s.maxThreads > 0 && len(s.threads) >= s.maxThreads {
			s.evictOldestLocked()
		}
		t = &thread{}
		s.threads[threadID] = t
	}

	now := time.Now()
	for _, m := range msgs {
		if m.Timestamp.IsZero() {
			m.Timestamp = now
		}
		t.messages = append(t.messages, m)
	}
	t.updatedAt = now
	return nil
}

// Read implements Store.
func (s *MemoryStore) Read(threadID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.threads[threadID]
	if !ok {
		return nil, nil
	}

	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out, nil
}

// Len returns the number of live threads.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.threads)
}

// Stats returns store statistics for the status endpoint.
func (s *MemoryStore) Stats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, t := range s.threads {
		total += len(t.messages)
	}
	return map[string]any{
		"threads":  len(s.threads),
		"messages": total,
	}
}

// StartJanitor launches a background goroutine that evicts idle
// threads every interval. It is a no-op when the idle TTL is zero.
// Call Close to stop it.
func (s *MemoryStore) StartJanitor(interval time.Duration) {
	if s.idleTTL <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.janitorStop:
				return
			case <-ticker.C:
				s.evictIdle(time.Now())
			}
		}
	}()
}

// Close stops the janitor goroutine. The store remains usable.
func (s *MemoryStore) Close() error {
	s.janitorOnce.Do(func() { close(s.janitorStop) })
	return nil
}

// evictIdle removes threads idle longer than the TTL.
func (s *MemoryStore) evictIdle(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range s.threads {
		if now.Sub(t.updatedAt) > s.idleTTL {
			delete(s.threads, id)
		}
	}
}

// evictOldestLocked drops the least recently updated thread to make
// room for a new one. Caller holds the write lock.
func (s *MemoryStore) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, t := range s.threads {
		if oldestID == "" || t.updatedAt.Before(oldest) {
			oldestID = id
			oldest = t.updatedAt
		}
	}
	if oldestID != "" {
		delete(s.threads, oldestID)
	}
}

// Ensure interface compliance.
var _ Store = (*MemoryStore)(nil)
