package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// claudeProvider drives the claude CLI in stream-json mode. It is the one
// provider with native session resume: a prior session id turns into
// --resume and no inline history is replayed.
type claudeProvider struct {
	bin      string
	sup      *Supervisor
	overflow OverflowPredicate
}

// NewClaudeProvider wires the claude CLI behind the Provider interface.
func NewClaudeProvider(bin string, sup *Supervisor) Provider {
	if bin == "" {
		bin = "claude"
	}
	return &claudeProvider{bin: bin, sup: sup, overflow: DefaultOverflowPredicate}
}

func (p *claudeProvider) Name() string { return ProviderClaude }

func (p *claudeProvider) Available() bool {
	_, err := exec.LookPath(p.bin)
	return err == nil
}

func (p *claudeProvider) Cancel(conversationID string) bool {
	return p.sup.Cancel(conversationID)
}

func (p *claudeProvider) IsActive(conversationID string) bool {
	return p.sup.IsActive(conversationID)
}

func (p *claudeProvider) Models() []ModelInfo {
	return []ModelInfo{
		{ID: "claude-sonnet-4-5", Name: "Claude Sonnet 4.5", Default: true},
		{ID: "claude-opus-4-1", Name: "Claude Opus 4.1"},
		{ID: "claude-haiku-4-5", Name: "Claude Haiku 4.5"},
	}
}

func (p *claudeProvider) Chat(ctx context.Context, conv *Conversation, req TurnRequest) error {
	if !p.Available() {
		return &ProviderUnavailableError{Provider: ProviderClaude, Reason: fmt.Sprintf("binary %q not found in PATH", p.bin)}
	}

	relay := NewRelay(conv.ID, req.Emit, req.OnSave, req.BroadcastStatus)
	prompt, systemAppend := BuildPromptText(req.Text, req.Attachments, req.Memory)
	sessionAtStart := conv.SessionID

	makePlan := func(prior RetryState) (turnPlan, ContinuityFlags, error) {
		sessionID := sessionAtStart
		if prior != RetryNone {
			// Any retry abandons the native session.
			sessionID = ""
		}

		// Without a native session to resume, prior turns are replayed as
		// inline history, same as the stateless providers. This covers both a
		// conversation that never had a session and a retry that dropped one.
		fullPrompt := prompt
		hadHistory := false
		if sessionID == "" {
			budget := 0
			if prior == RetryCompactHistory {
				budget = CompactHistoryBudget
			}
			var history string
			history, hadHistory = BuildInlineHistory(conv.Messages, req.Text, budget)
			fullPrompt = history + prompt
		}

		args := []string{
			"--print",
			"--output-format", "stream-json",
			"--verbose",
			"--include-partial-messages",
		}
		if conv.Model != "" {
			args = append(args, "--model", conv.Model)
		}
		if sessionID != "" {
			args = append(args, "--resume", sessionID)
		}
		switch conv.Mode {
		case ModeWrite:
			args = append(args, "--dangerously-skip-permissions")
		default:
			policy, err := buildSandboxPolicy(conv.WorkingDir)
			if err != nil {
				return turnPlan{}, ContinuityFlags{}, fmt.Errorf("serialize sandbox policy: %w", err)
			}
			args = append(args, "--settings", policy)
		}
		if conv.WorkingDir != "" {
			args = append(args, "--add-dir", conv.WorkingDir)
		}
		if systemAppend != "" {
			args = append(args, "--append-system-prompt", systemAppend)
		}
		args = append(args, "--", fullPrompt)

		flags := ContinuityFlags{
			CanRetryFresh:   sessionID != "",
			CanRetryCompact: prior == RetryNone && sessionID == "" && hadHistory,
		}
		return turnPlan{
			argv:      append([]string{p.bin}, args...),
			dir:       conv.WorkingDir,
			normalize: normalizeClaudeLine,
		}, flags, nil
	}

	return runTurnLoop(ctx, p.sup, conv, relay, conv.Model, p.overflow, makePlan)
}

// GenerateSummary asks the CLI for a short title in plain text mode.
func (p *claudeProvider) GenerateSummary(ctx context.Context, conv *Conversation) (string, error) {
	if !p.Available() {
		return "", &ProviderUnavailableError{Provider: ProviderClaude, Reason: fmt.Sprintf("binary %q not found in PATH", p.bin)}
	}
	out, err := exec.CommandContext(ctx, p.bin,
		"--print",
		"--model", "claude-haiku-4-5",
		"--",
		summaryPrompt(conv),
	).Output()
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}
	return cleanSummary(string(out)), nil
}

// Claude CLI stream-json message shapes.

type claudeEnvelope struct {
	Type      string             `json:"type"`
	Subtype   string             `json:"subtype,omitempty"`
	SessionID string             `json:"session_id,omitempty"`
	Event     *claudeStreamEvent `json:"event,omitempty"`
	Message   *claudeMessage     `json:"message,omitempty"`
	Result    string             `json:"result,omitempty"`
	IsError   bool               `json:"is_error,omitempty"`
	Usage     *claudeUsage       `json:"usage,omitempty"`
	CostUSD   float64            `json:"total_cost_usd,omitempty"`
	Duration  int                `json:"duration_ms,omitempty"`
}

type claudeStreamEvent struct {
	Type         string              `json:"type"`
	ContentBlock *claudeContentBlock `json:"content_block,omitempty"`
	Delta        *struct {
		Type     string `json:"type"`
		Text     string `json:"text,omitempty"`
		Thinking string `json:"thinking,omitempty"`
	} `json:"delta,omitempty"`
}

type claudeMessage struct {
	Content []claudeContentBlock `json:"content"`
}

type claudeContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	Thinking  string          `json:"thinking,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
}

type claudeUsage struct {
	InputTokens          int `json:"input_tokens"`
	OutputTokens         int `json:"output_tokens"`
	CacheReadInputTokens int `json:"cache_read_input_tokens"`
}

// normalizeClaudeLine maps one stream-json line to normalized turn events.
// Malformed lines return nothing and are dropped.
func normalizeClaudeLine(line []byte) []turnEvent {
	var msg claudeEnvelope
	if err := json.Unmarshal(line, &msg); err != nil {
		return nil
	}

	switch msg.Type {
	case "system":
		if msg.Subtype == "init" && msg.SessionID != "" {
			return []turnEvent{{kind: evSessionInit, sessionID: msg.SessionID}}
		}

	case "stream_event":
		if msg.Event == nil {
			return nil
		}
		switch msg.Event.Type {
		case "content_block_delta":
			if msg.Event.Delta == nil {
				return nil
			}
			switch msg.Event.Delta.Type {
			case "text_delta":
				return []turnEvent{{kind: evDelta, text: msg.Event.Delta.Text}}
			case "thinking_delta":
				return []turnEvent{{kind: evThinking, text: msg.Event.Delta.Thinking}}
			}
		case "content_block_start":
			if cb := msg.Event.ContentBlock; cb != nil && cb.Type == "tool_use" {
				return []turnEvent{toolStartEvent(*cb)}
			}
		}

	case "assistant":
		// With partial messages enabled, text blocks here duplicate what the
		// stream deltas already carried; only tool_use blocks matter.
		if msg.Message == nil {
			return nil
		}
		var evs []turnEvent
		for _, cb := range msg.Message.Content {
			if cb.Type == "tool_use" {
				evs = append(evs, toolStartEvent(cb))
			}
		}
		return evs

	case "user":
		if msg.Message == nil {
			return nil
		}
		var evs []turnEvent
		for _, cb := range msg.Message.Content {
			if cb.Type == "tool_result" {
				evs = append(evs, turnEvent{
					kind:       evToolResult,
					toolID:     cb.ToolUseID,
					resultBody: toolResultText(cb.Content),
					resultErr:  cb.IsError,
				})
			}
		}
		return evs

	case "result":
		ev := turnEvent{
			kind:       evCompletion,
			finalText:  msg.Result,
			sessionID:  msg.SessionID,
			costUSD:    msg.CostUSD,
			durationMs: msg.Duration,
		}
		if msg.Usage != nil {
			ev.inputTokens = msg.Usage.InputTokens + msg.Usage.CacheReadInputTokens
			ev.outputTokens = msg.Usage.OutputTokens
		}
		return []turnEvent{ev}
	}

	return nil
}

func toolStartEvent(cb claudeContentBlock) turnEvent {
	var input map[string]any
	_ = json.Unmarshal(cb.Input, &input)
	ev := turnEvent{
		kind:     evToolStart,
		toolName: cb.Name,
		toolID:   cb.ID,
		toolArg:  primaryToolArg(input),
	}
	if cmd, ok := input["command"].(string); ok {
		ev.toolCommand = cmd
	}
	return ev
}

// toolResultText flattens a tool_result content payload, which the CLI
// emits either as a plain string or as an array of text blocks.
func toolResultText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &blocks); err == nil {
		var parts []string
		for _, b := range blocks {
			if b.Text != "" {
				parts = append(parts, b.Text)
			}
		}
		return strings.Join(parts, "\n")
	}
	return string(raw)
}

func summaryPrompt(conv *Conversation) string {
	var sb strings.Builder
	sb.WriteString("Write a short title (at most six words) for this conversation. Reply with the title only.\n\n")
	for _, m := range conv.Messages {
		if m.Role != RoleUser || m.Text == "" {
			continue
		}
		sb.WriteString(m.Text)
		sb.WriteString("\n")
		break
	}
	return sb.String()
}

func cleanSummary(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	if len(s) > 80 {
		s = s[:80]
	}
	return strings.TrimSpace(s)
}
