package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Saver persists a conversation's current state. Implemented by the store.
type Saver interface {
	SaveConversation(conv *Conversation) error
}

// ChatRequest is one inbound user turn.
type ChatRequest struct {
	Text        string
	Attachments []Attachment
	Memory      []MemoryNote
}

// StreamRun carries the event stream for one turn.
type StreamRun struct {
	Events <-chan Event
}

// ProviderStatus reports one provider's availability and models.
type ProviderStatus struct {
	Name      string      `json:"name"`
	Available bool        `json:"available"`
	Models    []ModelInfo `json:"models"`
}

// Service routes turns to providers and owns the cross-cutting turn
// bookkeeping: appending the user message, flipping status, persisting,
// and broadcasting.
type Service struct {
	providers map[string]Provider
	saver     Saver
	broadcast func(conversationID string, status Status)
}

// NewService builds the service. broadcast may be nil when no observers
// are wired (tests).
func NewService(providers map[string]Provider, saver Saver, broadcast func(string, Status)) *Service {
	return &Service{
		providers: providers,
		saver:     saver,
		broadcast: broadcast,
	}
}

// IsTurnActive returns whether err indicates a busy conversation.
func IsTurnActive(err error) bool {
	return errors.Is(err, ErrTurnActive)
}

func (s *Service) provider(name string) (Provider, error) {
	p, ok := s.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", name)
	}
	return p, nil
}

func (s *Service) save(conv *Conversation) {
	if s.saver == nil {
		return
	}
	if err := s.saver.SaveConversation(conv); err != nil {
		log.Printf("agent: save conversation %s: %v", conv.ID, err)
	}
}

func (s *Service) broadcastStatus(conversationID string, status Status) {
	if s.broadcast != nil {
		s.broadcast(conversationID, status)
	}
}

// ChatStream starts one turn and returns its event stream. The user message
// is appended here but persisted only once the turn engine has registered
// the subprocess: a request that loses the start race must not write a
// message the winning turn's save would erase.
func (s *Service) ChatStream(ctx context.Context, conv *Conversation, req ChatRequest) (*StreamRun, error) {
	provider, err := s.provider(conv.Provider)
	if err != nil {
		return nil, err
	}
	if !provider.Available() {
		return nil, &ProviderUnavailableError{Provider: conv.Provider, Reason: "binary not found in PATH"}
	}
	if provider.IsActive(conv.ID) {
		return nil, fmt.Errorf("%w: conversation %s", ErrTurnActive, conv.ID)
	}

	conv.Messages = append(conv.Messages, Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Text:      req.Text,
		CreatedAt: time.Now(),
	})
	conv.Status = StatusThinking
	conv.UpdatedAt = time.Now()
	s.broadcastStatus(conv.ID, StatusThinking)

	out := make(chan Event, 100)
	go func() {
		defer close(out)
		err := provider.Chat(ctx, conv, TurnRequest{
			Text:        req.Text,
			Attachments: req.Attachments,
			Memory:      req.Memory,
			Emit: func(ev Event) {
				out <- ev
			},
			OnSave: func(string) {
				s.save(conv)
			},
			BroadcastStatus: s.broadcastStatus,
		})
		if err != nil {
			if IsTurnActive(err) {
				// Lost a start race; the winning turn owns status and
				// persistence, we only report to this caller.
				out <- Event{Type: EventError, ConversationID: conv.ID, Message: err.Error()}
				return
			}
			log.Printf("agent: turn failed for conversation %s: %v", conv.ID, err)
		}
	}()

	return &StreamRun{Events: out}, nil
}

// Cancel signals the conversation's in-flight process, if any.
func (s *Service) Cancel(conv *Conversation) bool {
	provider, err := s.provider(conv.Provider)
	if err != nil {
		return false
	}
	return provider.Cancel(conv.ID)
}

// IsActive reports whether a turn is in flight for the conversation.
func (s *Service) IsActive(conv *Conversation) bool {
	provider, err := s.provider(conv.Provider)
	if err != nil {
		return false
	}
	return provider.IsActive(conv.ID)
}

// Providers lists every registered provider with availability and models,
// sorted by name for a stable API response.
func (s *Service) Providers() []ProviderStatus {
	out := make([]ProviderStatus, 0, len(s.providers))
	for name, p := range s.providers {
		out = append(out, ProviderStatus{
			Name:      name,
			Available: p.Available(),
			Models:    p.Models(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GenerateSummary produces a short title for the conversation and stores it.
func (s *Service) GenerateSummary(ctx context.Context, conv *Conversation) (string, error) {
	provider, err := s.provider(conv.Provider)
	if err != nil {
		return "", err
	}
	title, err := provider.GenerateSummary(ctx, conv)
	if err != nil {
		return "", err
	}
	if title != "" {
		conv.Title = title
		conv.UpdatedAt = time.Now()
		s.save(conv)
	}
	return title, nil
}
