package conversation

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wayfarer-ai/wayfarer/internal/llm"

	_ "modernc.org/sqlite" // SQLite driver for database/sql
)

// SQLiteStore is a SQLite-backed conversation store. It preserves the
// same append/read semantics as MemoryStore but survives restarts.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the conversation database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Appends within one thread must not interleave; a single writer
	// connection gives that without per-thread locks.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS messages (
		id           TEXT PRIMARY KEY,
		thread_id    TEXT NOT NULL,
		seq          INTEGER NOT NULL,
		role         TEXT NOT NULL,
		content      TEXT NOT NULL,
		tool_calls   TEXT,
		tool_call_id TEXT,
		created_at   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id, seq);
	`)
	return err
}

// Append implements Store. The batch is written in one transaction so
// readers never observe a partially applied Acting step.
func (s *SQLiteStore) Append(threadID string, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var seq int
	err = tx.QueryRow(`SELECT COALESCE(MAX(seq), 0) FROM messages WHERE thread_id = ?`, threadID).Scan(&seq)
	if err != nil {
		return fmt.Errorf("next seq: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO messages (id, thread_id, seq, role, content, tool_calls, tool_call_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, m := range msgs {
		seq++

		var toolCallsJSON sql.NullString
		if len(m.ToolCalls) > 0 {
			data, err := json.Marshal(m.ToolCalls)
			if err != nil {
				return fmt.Errorf("marshal tool calls: %w", err)
			}
			toolCallsJSON = sql.NullString{String: string(data), Valid: true}
		}

		ts := m.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}

		_, err = stmt.Exec(
			uuid.NewString(),
			threadID,
			seq,
			m.Role,
			m.Content,
			toolCallsJSON,
			nullString(m.ToolCallID),
			ts.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}

	return tx.Commit()
}

// Read implements Store.
func (s *SQLiteStore) Read(threadID string) ([]Message, error) {
	rows, err := s.db.Query(`
		SELECT role, content, tool_calls, tool_call_id, created_at
		FROM messages WHERE thread_id = ? ORDER BY seq
	`, threadID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var toolCallsJSON, toolCallID sql.NullString
		var createdAt string

		if err := rows.Scan(&m.Role, &m.Content, &toolCallsJSON, &toolCallID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}

		if toolCallsJSON.Valid {
			var calls []llm.ToolCall
			if err := json.Unmarshal([]byte(toolCallsJSON.String), &calls); err != nil {
				return nil, fmt.Errorf("unmarshal tool calls: %w", err)
			}
			m.ToolCalls = calls
		}
		m.ToolCallID = toolCallID.String
		m.Timestamp, _ = time.Parse(time.RFC3339Nano, createdAt)

		out = append(out, m)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Ensure interface compliance.
var _ Store = (*SQLiteStore)(nil)
