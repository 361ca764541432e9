package agent

import (
	"context"
	"fmt"
	"testing"
	"time"
)

type stubProvider struct {
	name      string
	available bool
	active    map[string]bool
	cancelled []string
	chatFn    func(ctx context.Context, conv *Conversation, req TurnRequest) error
	summary   string
}

func (s *stubProvider) Name() string    { return s.name }
func (s *stubProvider) Available() bool { return s.available }

func (s *stubProvider) Chat(ctx context.Context, conv *Conversation, req TurnRequest) error {
	if s.chatFn != nil {
		return s.chatFn(ctx, conv, req)
	}
	return nil
}

func (s *stubProvider) Cancel(id string) bool {
	s.cancelled = append(s.cancelled, id)
	return s.active[id]
}

func (s *stubProvider) IsActive(id string) bool { return s.active[id] }

func (s *stubProvider) Models() []ModelInfo {
	return []ModelInfo{{ID: s.name + "-model", Default: true}}
}

func (s *stubProvider) GenerateSummary(ctx context.Context, conv *Conversation) (string, error) {
	return s.summary, nil
}

type stubSaver struct {
	saves int
}

func (s *stubSaver) SaveConversation(conv *Conversation) error {
	s.saves++
	return nil
}

func collectEvents(t *testing.T, run *StreamRun) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-run.Events:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("stream did not close")
		}
	}
}

func TestChatStreamAppendsUserMessageAndStreams(t *testing.T) {
	provider := &stubProvider{
		name:      "stub",
		available: true,
		active:    map[string]bool{},
		chatFn: func(ctx context.Context, conv *Conversation, req TurnRequest) error {
			// Mirror the turn engine: persist once the turn owns the process.
			req.OnSave(conv.ID)
			req.Emit(Event{Type: EventDelta, Delta: "hi"})
			req.Emit(Event{Type: EventResult, Text: "hi"})
			return nil
		},
	}
	saver := &stubSaver{}
	var statuses []Status
	svc := NewService(map[string]Provider{"stub": provider}, saver, func(id string, st Status) {
		statuses = append(statuses, st)
	})

	conv := &Conversation{ID: "c1", Provider: "stub"}
	run, err := svc.ChatStream(context.Background(), conv, ChatRequest{Text: "hello"})
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}

	events := collectEvents(t, run)
	if len(events) != 2 || events[0].Type != EventDelta || events[1].Type != EventResult {
		t.Fatalf("events = %+v", events)
	}

	if len(conv.Messages) != 1 || conv.Messages[0].Role != RoleUser || conv.Messages[0].Text != "hello" {
		t.Fatalf("user message not appended: %+v", conv.Messages)
	}
	if conv.Status != StatusThinking {
		t.Fatalf("status = %q, want thinking (stub never finalizes)", conv.Status)
	}
	if saver.saves == 0 {
		t.Fatal("conversation not persisted during the turn")
	}
	if len(statuses) == 0 || statuses[0] != StatusThinking {
		t.Fatalf("statuses = %v", statuses)
	}
}

func TestChatStreamRejectsBusyConversation(t *testing.T) {
	provider := &stubProvider{
		name:      "stub",
		available: true,
		active:    map[string]bool{"c1": true},
	}
	svc := NewService(map[string]Provider{"stub": provider}, nil, nil)

	conv := &Conversation{ID: "c1", Provider: "stub"}
	_, err := svc.ChatStream(context.Background(), conv, ChatRequest{Text: "hello"})
	if err == nil || !IsTurnActive(err) {
		t.Fatalf("err = %v, want ErrTurnActive", err)
	}
	if len(conv.Messages) != 0 {
		t.Fatalf("user message appended for rejected turn: %+v", conv.Messages)
	}
}

func TestChatStreamLostStartRaceDoesNotPersist(t *testing.T) {
	// Two requests can pass the IsActive check before one reaches the
	// supervisor. The loser must not leave a persisted user message behind
	// for the winner's finalize save to erase.
	provider := &stubProvider{
		name:      "stub",
		available: true,
		active:    map[string]bool{},
		chatFn: func(ctx context.Context, conv *Conversation, req TurnRequest) error {
			return fmt.Errorf("%w: conversation %s", ErrTurnActive, conv.ID)
		},
	}
	saver := &stubSaver{}
	svc := NewService(map[string]Provider{"stub": provider}, saver, nil)

	conv := &Conversation{ID: "c1", Provider: "stub"}
	run, err := svc.ChatStream(context.Background(), conv, ChatRequest{Text: "hello"})
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}

	events := collectEvents(t, run)
	if len(events) != 1 || events[0].Type != EventError {
		t.Fatalf("events = %+v", events)
	}
	if saver.saves != 0 {
		t.Fatalf("lost race persisted %d times, want 0", saver.saves)
	}
}

func TestChatStreamUnknownProvider(t *testing.T) {
	svc := NewService(map[string]Provider{}, nil, nil)
	conv := &Conversation{ID: "c1", Provider: "nope"}
	if _, err := svc.ChatStream(context.Background(), conv, ChatRequest{Text: "x"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestChatStreamUnavailableProvider(t *testing.T) {
	provider := &stubProvider{name: "stub", available: false, active: map[string]bool{}}
	svc := NewService(map[string]Provider{"stub": provider}, nil, nil)
	conv := &Conversation{ID: "c1", Provider: "stub"}
	_, err := svc.ChatStream(context.Background(), conv, ChatRequest{Text: "x"})
	if !IsProviderUnavailable(err) {
		t.Fatalf("err = %v, want ProviderUnavailableError", err)
	}
}

func TestCancelRoutesToProvider(t *testing.T) {
	provider := &stubProvider{name: "stub", available: true, active: map[string]bool{"c1": true}}
	svc := NewService(map[string]Provider{"stub": provider}, nil, nil)

	conv := &Conversation{ID: "c1", Provider: "stub"}
	if !svc.Cancel(conv) {
		t.Fatal("cancel returned false for active turn")
	}
	if len(provider.cancelled) != 1 || provider.cancelled[0] != "c1" {
		t.Fatalf("cancelled = %v", provider.cancelled)
	}
}

func TestProvidersSortedWithAvailability(t *testing.T) {
	svc := NewService(map[string]Provider{
		"zeta":  &stubProvider{name: "zeta", available: false},
		"alpha": &stubProvider{name: "alpha", available: true},
	}, nil, nil)

	got := svc.Providers()
	if len(got) != 2 || got[0].Name != "alpha" || got[1].Name != "zeta" {
		t.Fatalf("got %+v", got)
	}
	if !got[0].Available || got[1].Available {
		t.Fatalf("availability wrong: %+v", got)
	}
	if len(got[0].Models) != 1 {
		t.Fatalf("models missing: %+v", got[0])
	}
}

func TestGenerateSummarySetsTitle(t *testing.T) {
	provider := &stubProvider{name: "stub", available: true, summary: "Fix the login bug"}
	saver := &stubSaver{}
	svc := NewService(map[string]Provider{"stub": provider}, saver, nil)

	conv := &Conversation{ID: "c1", Provider: "stub"}
	title, err := svc.GenerateSummary(context.Background(), conv)
	if err != nil {
		t.Fatalf("GenerateSummary: %v", err)
	}
	if title != "Fix the login bug" || conv.Title != title {
		t.Fatalf("title = %q, conv.Title = %q", title, conv.Title)
	}
	if saver.saves != 1 {
		t.Fatalf("saves = %d, want 1", saver.saves)
	}
}
