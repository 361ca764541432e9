package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"agentdeck/internal/textnorm"
)

const stderrExcerptLen = 400

// turnEventKind discriminates normalized provider events. Provider adapters
// translate their native JSON shapes into these at the parser boundary.
type turnEventKind int

const (
	evUnknown turnEventKind = iota
	evSessionInit
	evDelta
	evThinking
	evToolStart
	evToolResult
	evCompletion
)

// turnEvent is one normalized event from the subprocess stream.
type turnEvent struct {
	kind turnEventKind

	// evDelta / evThinking
	text string

	// evToolStart / evToolResult
	toolName    string
	toolID      string
	toolArg     string
	toolCommand string
	resultBody  string
	resultErr   bool

	// evSessionInit / evCompletion
	sessionID    string
	finalText    string
	inputTokens  int
	outputTokens int
	costUSD      float64
	durationMs   int
}

// turnState is the per-turn reconstruction state machine. It accumulates
// assistant text from deltas, renders tool invocations as inline trace
// spans, and reconciles the final authoritative text against the stream.
type turnState struct {
	conv  *Conversation
	relay *Relay
	model string

	text       strings.Builder
	trimmer    textnorm.LeadingBlankLineTrimmer
	openTraces int
	started    map[string]bool
	// toolCommands remembers the command argument of each started tool so
	// the result block can show what ran.
	toolCommands map[string]string

	sawEvent  bool
	completed bool
	startedAt time.Time

	sessionID    string
	finalText    string
	inputTokens  int
	outputTokens int
	costUSD      float64
	durationMs   int
}

func newTurnState(conv *Conversation, relay *Relay, model string) *turnState {
	return &turnState{
		conv:         conv,
		relay:        relay,
		model:        model,
		started:      make(map[string]bool),
		toolCommands: make(map[string]string),
		startedAt:    time.Now(),
	}
}

// apply dispatches one normalized event. Unknown kinds are a no-op, never
// an error: protocol tolerance keeps the turn alive across provider
// additions.
func (s *turnState) apply(ev turnEvent) {
	s.sawEvent = true

	switch ev.kind {
	case evSessionInit:
		if ev.sessionID != "" {
			s.sessionID = ev.sessionID
		}

	case evDelta:
		text := s.trimmer.Push(ev.text)
		if text == "" {
			return
		}
		s.text.WriteString(text)
		s.relay.Delta(text)

	case evThinking:
		if ev.text != "" {
			s.relay.Thinking(ev.text)
		}

	case evToolStart:
		if ev.toolID != "" && s.started[ev.toolID] {
			return
		}
		if ev.toolID != "" {
			s.started[ev.toolID] = true
			if ev.toolCommand != "" {
				s.toolCommands[ev.toolID] = ev.toolCommand
			}
		}
		s.relay.ToolStart(ev.toolName, ev.toolID)
		s.text.WriteString(traceOpen(ev.toolName, ev.toolArg))
		s.openTraces++

	case evToolResult:
		s.relay.ToolResult(ev.toolID, ev.resultErr)
		if s.openTraces == 0 {
			// Result without a matching start; nothing to close.
			return
		}
		s.text.WriteString(formatToolResultBlock(s.toolCommands[ev.toolID], ev.resultBody, ev.resultErr))
		s.text.WriteString(traceClose())
		s.openTraces--

	case evCompletion:
		s.completed = true
		s.finalText = textnorm.TrimLeadingBlankLines(ev.finalText)
		s.inputTokens = ev.inputTokens
		s.outputTokens = ev.outputTokens
		s.costUSD = ev.costUSD
		s.durationMs = ev.durationMs
		if ev.sessionID != "" {
			s.sessionID = ev.sessionID
		}

	default:
		// Unrecognized event kind: drop.
	}
}

// closeOpenTraces balances any trace spans the provider never closed. A
// provider may finalize a turn without explicit per-tool result events; the
// persisted text must still have matched markers.
func (s *turnState) closeOpenTraces() {
	for s.openTraces > 0 {
		s.text.WriteString("\n" + traceClose())
		s.openTraces--
	}
}

// reconciledText closes dangling spans and merges the streamed accumulation
// with the authoritative final text.
func (s *turnState) reconciledText() string {
	s.closeOpenTraces()
	return CombineWithOverlap(s.text.String(), s.finalText)
}

// exitInfo is what the process looked like when Wait returned.
type exitInfo struct {
	err    error
	code   int
	stderr string
}

// outcome condenses the turn for the retry decision.
func (s *turnState) outcome(exit exitInfo, text string) TurnOutcome {
	return TurnOutcome{
		Text:            text,
		InputTokens:     s.inputTokens,
		OutputTokens:    s.outputTokens,
		ExitedWithError: exit.err != nil,
		NoOutput:        !s.sawEvent,
		Stderr:          exit.stderr,
	}
}

// finalizeTurn ends the turn for good: persists the assistant message when
// there is text, emits exactly one result or error event, restores idle
// status, and clears the transient retry marker. Called only after the
// retry engine has declined to re-run.
func finalizeTurn(s *turnState, exit exitInfo, text string) {
	conv := s.conv
	conv.pendingRetry = RetryNone

	defer func() {
		conv.Status = StatusIdle
		conv.UpdatedAt = time.Now()
		s.relay.Status(StatusIdle)
		s.relay.Save()
	}()

	if s.sessionID != "" {
		conv.SessionID = s.sessionID
	}

	durationMs := s.durationMs
	if durationMs == 0 {
		durationMs = int(time.Since(s.startedAt).Milliseconds())
	}

	if text != "" {
		cost := s.costUSD
		if cost == 0 && (s.inputTokens > 0 || s.outputTokens > 0) {
			cost = estimateCost(s.model, s.inputTokens, s.outputTokens)
		}
		msg := Message{
			ID:           uuid.NewString(),
			Role:         RoleAssistant,
			Text:         text,
			CreatedAt:    time.Now(),
			CostUSD:      cost,
			DurationMs:   durationMs,
			InputTokens:  s.inputTokens,
			OutputTokens: s.outputTokens,
			Incomplete:   exit.err != nil && !s.completed,
			SessionID:    s.sessionID,
		}
		conv.Messages = append(conv.Messages, msg)
		s.relay.Result(text, cost, durationMs, s.inputTokens, s.outputTokens, s.sessionID)
		return
	}

	if exit.err != nil {
		s.relay.Error(fmt.Sprintf("agent process exited with code %d: %s", exit.code, stderrExcerpt(exit.stderr)))
		return
	}
	s.relay.Error("agent returned an empty response")
}

func stderrExcerpt(stderr string) string {
	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return "(no diagnostic output)"
	}
	if len(stderr) > stderrExcerptLen {
		return stderr[:stderrExcerptLen] + truncationMarker
	}
	return stderr
}
