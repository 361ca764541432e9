package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"agentdeck/internal/agent"
)

var ErrNotFound = errors.New("not found")

// Store persists conversations, their ordered messages, and memory notes in
// a single sqlite database.
type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("store db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) init() error {
	stmts := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			provider TEXT NOT NULL,
			model TEXT NOT NULL DEFAULT '',
			working_dir TEXT NOT NULL DEFAULT '',
			mode TEXT NOT NULL DEFAULT 'sandboxed',
			session_id TEXT NOT NULL DEFAULT '',
			archived INTEGER NOT NULL DEFAULT 0,
			created_at_utc TEXT NOT NULL,
			updated_at_utc TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			role TEXT NOT NULL,
			text TEXT NOT NULL DEFAULT '',
			cost_usd REAL NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			input_tokens INTEGER NOT NULL DEFAULT 0,
			output_tokens INTEGER NOT NULL DEFAULT 0,
			incomplete INTEGER NOT NULL DEFAULT 0,
			session_id TEXT NOT NULL DEFAULT '',
			created_at_utc TEXT NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq);",
		`CREATE TABLE IF NOT EXISTS memory_notes (
			id TEXT PRIMARY KEY,
			scope TEXT NOT NULL,
			content TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at_utc TEXT NOT NULL
		);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// CreateConversation inserts a new conversation with defaults applied.
func (s *Store) CreateConversation(provider, model, workingDir string, mode agent.ExecMode) (*agent.Conversation, error) {
	if provider == "" {
		return nil, errors.New("provider is required")
	}
	if mode == "" {
		mode = agent.ModeSandboxed
	}
	now := time.Now().UTC()
	conv := &agent.Conversation{
		ID:         uuid.NewString(),
		Provider:   provider,
		Model:      model,
		WorkingDir: workingDir,
		Mode:       mode,
		Status:     agent.StatusIdle,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	_, err := s.db.Exec(
		`INSERT INTO conversations (id, title, provider, model, working_dir, mode, session_id, archived, created_at_utc, updated_at_utc)
		 VALUES (?, '', ?, ?, ?, ?, '', 0, ?, ?)`,
		conv.ID, conv.Provider, conv.Model, conv.WorkingDir, string(conv.Mode),
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	return conv, nil
}

// SaveConversation writes the conversation row and replaces its message
// list in one transaction. This is the save callback target for turns.
func (s *Store) SaveConversation(conv *agent.Conversation) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE conversations
		 SET title=?, provider=?, model=?, working_dir=?, mode=?, session_id=?, archived=?, updated_at_utc=?
		 WHERE id=?`,
		conv.Title, conv.Provider, conv.Model, conv.WorkingDir, string(conv.Mode),
		conv.SessionID, boolInt(conv.Archived), time.Now().UTC().Format(time.RFC3339),
		conv.ID,
	)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("conversation %s: %w", conv.ID, ErrNotFound)
	}

	if _, err := tx.Exec("DELETE FROM messages WHERE conversation_id=?", conv.ID); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	for i, m := range conv.Messages {
		if _, err := tx.Exec(
			`INSERT INTO messages (id, conversation_id, seq, role, text, cost_usd, duration_ms, input_tokens, output_tokens, incomplete, session_id, created_at_utc)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, conv.ID, i, m.Role, m.Text, m.CostUSD, m.DurationMs,
			m.InputTokens, m.OutputTokens, boolInt(m.Incomplete), m.SessionID,
			m.CreatedAt.UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}

	return tx.Commit()
}

// GetConversation loads one conversation with its messages in order.
func (s *Store) GetConversation(id string) (*agent.Conversation, error) {
	row := s.db.QueryRow(
		`SELECT id, title, provider, model, working_dir, mode, session_id, archived, created_at_utc, updated_at_utc
		 FROM conversations WHERE id=?`, id)
	conv, err := scanConversation(row)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT id, role, text, cost_usd, duration_ms, input_tokens, output_tokens, incomplete, session_id, created_at_utc
		 FROM messages WHERE conversation_id=? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var m agent.Message
		var incomplete int
		var createdAt string
		if err := rows.Scan(&m.ID, &m.Role, &m.Text, &m.CostUSD, &m.DurationMs,
			&m.InputTokens, &m.OutputTokens, &incomplete, &m.SessionID, &createdAt); err != nil {
			return nil, err
		}
		m.Incomplete = incomplete != 0
		m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		conv.Messages = append(conv.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return conv, nil
}

// ListConversations returns all conversations without messages, newest
// first. Archived ones are included only when requested.
func (s *Store) ListConversations(includeArchived bool) ([]*agent.Conversation, error) {
	query := `SELECT id, title, provider, model, working_dir, mode, session_id, archived, created_at_utc, updated_at_utc
		 FROM conversations`
	if !includeArchived {
		query += " WHERE archived=0"
	}
	query += " ORDER BY updated_at_utc DESC"

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*agent.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	return out, rows.Err()
}

// SetArchived flips a conversation's archival flag.
func (s *Store) SetArchived(id string, archived bool) error {
	res, err := s.db.Exec(
		"UPDATE conversations SET archived=?, updated_at_utc=? WHERE id=?",
		boolInt(archived), time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteConversation removes a conversation and its messages.
func (s *Store) DeleteConversation(id string) error {
	res, err := s.db.Exec("DELETE FROM conversations WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	return nil
}

// CreateMemoryNote adds an enabled note.
func (s *Store) CreateMemoryNote(scope, content string) (*agent.MemoryNote, error) {
	if scope != agent.MemoryScopeGlobal && scope != agent.MemoryScopeProject {
		return nil, fmt.Errorf("invalid memory scope %q", scope)
	}
	if content == "" {
		return nil, errors.New("memory content is required")
	}
	note := &agent.MemoryNote{
		ID:      uuid.NewString(),
		Scope:   scope,
		Content: content,
		Enabled: true,
	}
	_, err := s.db.Exec(
		"INSERT INTO memory_notes (id, scope, content, enabled, created_at_utc) VALUES (?, ?, ?, 1, ?)",
		note.ID, note.Scope, note.Content, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	return note, nil
}

// ListMemoryNotes returns all notes, oldest first.
func (s *Store) ListMemoryNotes() ([]agent.MemoryNote, error) {
	rows, err := s.db.Query("SELECT id, scope, content, enabled FROM memory_notes ORDER BY created_at_utc")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []agent.MemoryNote
	for rows.Next() {
		var n agent.MemoryNote
		var enabled int
		if err := rows.Scan(&n.ID, &n.Scope, &n.Content, &enabled); err != nil {
			return nil, err
		}
		n.Enabled = enabled != 0
		out = append(out, n)
	}
	return out, rows.Err()
}

// EnabledMemoryNotes returns only the notes injected into prompts.
func (s *Store) EnabledMemoryNotes() ([]agent.MemoryNote, error) {
	notes, err := s.ListMemoryNotes()
	if err != nil {
		return nil, err
	}
	out := notes[:0]
	for _, n := range notes {
		if n.Enabled {
			out = append(out, n)
		}
	}
	return out, nil
}

// SetMemoryNoteEnabled toggles a note.
func (s *Store) SetMemoryNoteEnabled(id string, enabled bool) error {
	res, err := s.db.Exec("UPDATE memory_notes SET enabled=? WHERE id=?", boolInt(enabled), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("memory note %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteMemoryNote removes a note.
func (s *Store) DeleteMemoryNote(id string) error {
	res, err := s.db.Exec("DELETE FROM memory_notes WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("memory note %s: %w", id, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*agent.Conversation, error) {
	var conv agent.Conversation
	var mode string
	var archived int
	var createdAt, updatedAt string
	err := row.Scan(&conv.ID, &conv.Title, &conv.Provider, &conv.Model, &conv.WorkingDir,
		&mode, &conv.SessionID, &archived, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	conv.Mode = agent.ExecMode(mode)
	conv.Status = agent.StatusIdle
	conv.Archived = archived != 0
	conv.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	conv.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &conv, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
