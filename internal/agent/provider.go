package agent

import (
	"context"
	"errors"
	"fmt"
)

const (
	ProviderClaude = "claude"
	ProviderCodex  = "codex"
	ProviderGemini = "gemini"
)

// TurnRequest is the normalized inbound turn sent to providers.
type TurnRequest struct {
	Text        string
	Attachments []Attachment
	Memory      []MemoryNote
	// Emit receives every stream event for the initiating transport.
	Emit func(Event)
	// OnSave persists the conversation's current message list.
	OnSave func(conversationID string)
	// BroadcastStatus fans status transitions out to all observers.
	BroadcastStatus func(conversationID string, status Status)
}

// ModelInfo describes one selectable model of a provider.
type ModelInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Default bool   `json:"default,omitempty"`
}

// Provider is the capability contract for agent CLI backends.
type Provider interface {
	Name() string
	Available() bool
	// Chat runs one full turn: spawn, stream, reconcile, retry, finalize.
	// It returns once the turn is finalized or failed to start.
	Chat(ctx context.Context, conv *Conversation, req TurnRequest) error
	Cancel(conversationID string) bool
	IsActive(conversationID string) bool
	Models() []ModelInfo
	// GenerateSummary produces a short conversation title via a one-shot
	// non-streaming invocation.
	GenerateSummary(ctx context.Context, conv *Conversation) (string, error)
}

// ProviderUnavailableError indicates a provider backend cannot currently
// execute, typically because its CLI binary is missing.
type ProviderUnavailableError struct {
	Provider string
	Reason   string
}

func (e *ProviderUnavailableError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("provider %q unavailable", e.Provider)
	}
	return fmt.Sprintf("provider %q unavailable: %s", e.Provider, e.Reason)
}

// IsProviderUnavailable returns whether err indicates an unavailable provider.
func IsProviderUnavailable(err error) bool {
	var target *ProviderUnavailableError
	return errors.As(err, &target)
}
