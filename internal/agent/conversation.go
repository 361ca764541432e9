package agent

import "time"

// Status is the lifecycle state of a conversation.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusThinking Status = "thinking"
)

// ExecMode controls how much the agent subprocess may touch on disk.
type ExecMode string

const (
	// ModeSandboxed restricts writes to the working directory and serializes
	// a permission policy for the agent CLI.
	ModeSandboxed ExecMode = "sandboxed"
	// ModeWrite runs the agent with write permissions pre-approved.
	ModeWrite ExecMode = "write"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one persisted chat message. Once appended and saved it is
// immutable, except for the one-time incomplete-tagged replacement written
// when a process dies mid-stream.
type Message struct {
	ID           string    `json:"id"`
	Role         string    `json:"role"`
	Text         string    `json:"text"`
	CreatedAt    time.Time `json:"created_at"`
	CostUSD      float64   `json:"cost_usd,omitempty"`
	DurationMs   int       `json:"duration_ms,omitempty"`
	InputTokens  int       `json:"input_tokens,omitempty"`
	OutputTokens int       `json:"output_tokens,omitempty"`
	// Incomplete marks an assistant message finalized from a partial stream
	// after the agent process exited abnormally.
	Incomplete bool `json:"incomplete,omitempty"`
	// SessionID is the provider-native session identifier captured at the
	// turn that produced this message, when the provider reports one.
	SessionID string `json:"session_id,omitempty"`
}

// Conversation is the unit of chat state. Status and SessionID are mutated
// only by the turn engine; Messages and Archived only by the persistence
// side. The one-active-process invariant keeps the two from racing.
type Conversation struct {
	ID         string    `json:"id"`
	Title      string    `json:"title,omitempty"`
	Provider   string    `json:"provider"`
	Model      string    `json:"model,omitempty"`
	WorkingDir string    `json:"working_dir,omitempty"`
	Mode       ExecMode  `json:"mode"`
	Status     Status    `json:"status"`
	SessionID  string    `json:"session_id,omitempty"`
	Archived   bool      `json:"archived,omitempty"`
	Messages   []Message `json:"messages,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// pendingRetry is transient turn state; it never survives a finalized
	// turn and is not persisted.
	pendingRetry RetryState
}

// Attachment is a file the user referenced in a turn request.
type Attachment struct {
	Path string `json:"path"`
	// Kind is "image" or "file", inferred from the extension when empty.
	Kind string `json:"kind,omitempty"`
}

// MemoryNote is a persistent instruction injected into the agent's system
// prompt. Scope is "global" or "project".
type MemoryNote struct {
	ID      string `json:"id"`
	Scope   string `json:"scope"`
	Content string `json:"content"`
	Enabled bool   `json:"enabled"`
}

const (
	MemoryScopeGlobal  = "global"
	MemoryScopeProject = "project"
)
