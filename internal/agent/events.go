package agent

// EventType discriminates the NDJSON events pushed to observers.
type EventType string

const (
	EventDelta      EventType = "delta"
	EventThinking   EventType = "thinking"
	EventToolStart  EventType = "tool_start"
	EventToolResult EventType = "tool_result"
	EventResult     EventType = "result"
	EventError      EventType = "error"
	EventStderr     EventType = "stderr"
	EventStatus     EventType = "status"
)

// Event is the canonical NDJSON event schema for agent streaming.
type Event struct {
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Delta          string    `json:"delta,omitempty"`
	Tool           string    `json:"tool,omitempty"`
	ToolID         string    `json:"tool_id,omitempty"`
	IsError        bool      `json:"is_error,omitempty"`
	Text           string    `json:"text,omitempty"`
	Message        string    `json:"message,omitempty"`
	Status         Status    `json:"status,omitempty"`
	SessionID      string    `json:"session_id,omitempty"`
	CostUSD        float64   `json:"cost_usd,omitempty"`
	DurationMs     int       `json:"duration_ms,omitempty"`
	InputTokens    int       `json:"input_tokens,omitempty"`
	OutputTokens   int       `json:"output_tokens,omitempty"`
}

// Relay fans internal events out to the initiating transport, and status
// changes additionally to every connected observer. Each event is pushed
// exactly once, in emission order.
type Relay struct {
	conversationID  string
	emit            func(Event)
	onSave          func(conversationID string)
	broadcastStatus func(conversationID string, status Status)
}

// NewRelay builds a relay for one turn. Any of the callbacks may be nil.
func NewRelay(conversationID string, emit func(Event), onSave func(string), broadcastStatus func(string, Status)) *Relay {
	return &Relay{
		conversationID:  conversationID,
		emit:            emit,
		onSave:          onSave,
		broadcastStatus: broadcastStatus,
	}
}

func (r *Relay) push(ev Event) {
	if r == nil || r.emit == nil {
		return
	}
	ev.ConversationID = r.conversationID
	r.emit(ev)
}

func (r *Relay) Delta(text string) {
	r.push(Event{Type: EventDelta, Delta: text})
}

func (r *Relay) Thinking(text string) {
	r.push(Event{Type: EventThinking, Delta: text})
}

func (r *Relay) ToolStart(name, id string) {
	r.push(Event{Type: EventToolStart, Tool: name, ToolID: id})
}

func (r *Relay) ToolResult(id string, isError bool) {
	r.push(Event{Type: EventToolResult, ToolID: id, IsError: isError})
}

func (r *Relay) Stderr(line string) {
	r.push(Event{Type: EventStderr, Message: line})
}

func (r *Relay) Error(message string) {
	r.push(Event{Type: EventError, Message: message})
}

// Result reports the finalized turn to the initiating observer.
func (r *Relay) Result(text string, costUSD float64, durationMs, inputTokens, outputTokens int, sessionID string) {
	r.push(Event{
		Type:         EventResult,
		Text:         text,
		CostUSD:      costUSD,
		DurationMs:   durationMs,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		SessionID:    sessionID,
	})
}

// Status pushes a status event on the stream and broadcasts the change to
// all connected observers so multiple viewers stay in sync.
func (r *Relay) Status(status Status) {
	if r == nil {
		return
	}
	r.push(Event{Type: EventStatus, Status: status})
	if r.broadcastStatus != nil {
		r.broadcastStatus(r.conversationID, status)
	}
}

// Save triggers the persistence callback for the conversation.
func (r *Relay) Save() {
	if r != nil && r.onSave != nil {
		r.onSave(r.conversationID)
	}
}
