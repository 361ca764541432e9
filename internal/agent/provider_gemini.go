package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
)

// geminiProvider drives the gemini CLI in stream-json mode. The envelope is
// claude-shaped (assistant/user/result messages) but without fine-grained
// stream events: assistant text blocks are the deltas. Gemini runs
// stateless here with inline history.
type geminiProvider struct {
	bin      string
	sup      *Supervisor
	overflow OverflowPredicate
}

// NewGeminiProvider wires the gemini CLI behind the Provider interface.
func NewGeminiProvider(bin string, sup *Supervisor) Provider {
	if bin == "" {
		bin = "gemini"
	}
	return &geminiProvider{bin: bin, sup: sup, overflow: DefaultOverflowPredicate}
}

func (p *geminiProvider) Name() string { return ProviderGemini }

func (p *geminiProvider) Available() bool {
	_, err := exec.LookPath(p.bin)
	return err == nil
}

func (p *geminiProvider) Cancel(conversationID string) bool {
	return p.sup.Cancel(conversationID)
}

func (p *geminiProvider) IsActive(conversationID string) bool {
	return p.sup.IsActive(conversationID)
}

func (p *geminiProvider) Models() []ModelInfo {
	return []ModelInfo{
		{ID: "gemini-2.5-pro", Name: "Gemini 2.5 Pro", Default: true},
		{ID: "gemini-2.5-flash", Name: "Gemini 2.5 Flash"},
	}
}

func (p *geminiProvider) Chat(ctx context.Context, conv *Conversation, req TurnRequest) error {
	if !p.Available() {
		return &ProviderUnavailableError{Provider: ProviderGemini, Reason: fmt.Sprintf("binary %q not found in PATH", p.bin)}
	}

	relay := NewRelay(conv.ID, req.Emit, req.OnSave, req.BroadcastStatus)
	prompt, systemAppend := BuildPromptText(req.Text, req.Attachments, req.Memory)

	makePlan := func(prior RetryState) (turnPlan, ContinuityFlags, error) {
		budget := 0
		if prior == RetryCompactHistory {
			budget = CompactHistoryBudget
		}
		history, hadHistory := BuildInlineHistory(conv.Messages, req.Text, budget)
		fullPrompt := composeStatelessPrompt(history, systemAppend, prompt)

		args := []string{
			"--output-format", "stream-json",
			"--verbose",
		}
		if conv.Model != "" {
			args = append(args, "--model", conv.Model)
		}
		switch conv.Mode {
		case ModeWrite:
			args = append(args, "--yolo")
		default:
			args = append(args, "--sandbox")
		}
		args = append(args, "-p", fullPrompt)

		flags := ContinuityFlags{CanRetryCompact: prior == RetryNone && hadHistory}
		return turnPlan{
			argv:      append([]string{p.bin}, args...),
			dir:       conv.WorkingDir,
			normalize: normalizeGeminiLine,
		}, flags, nil
	}

	return runTurnLoop(ctx, p.sup, conv, relay, conv.Model, p.overflow, makePlan)
}

func (p *geminiProvider) GenerateSummary(ctx context.Context, conv *Conversation) (string, error) {
	if !p.Available() {
		return "", &ProviderUnavailableError{Provider: ProviderGemini, Reason: fmt.Sprintf("binary %q not found in PATH", p.bin)}
	}
	out, err := exec.CommandContext(ctx, p.bin, "-p", summaryPrompt(conv)).Output()
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}
	return cleanSummary(string(out)), nil
}

// normalizeGeminiLine maps one stream-json line to normalized turn events.
func normalizeGeminiLine(line []byte) []turnEvent {
	var msg claudeEnvelope
	if err := json.Unmarshal(line, &msg); err != nil {
		return nil
	}

	switch msg.Type {
	case "system":
		if msg.SessionID != "" {
			return []turnEvent{{kind: evSessionInit, sessionID: msg.SessionID}}
		}

	case "assistant":
		if msg.Message == nil {
			return nil
		}
		var evs []turnEvent
		for _, cb := range msg.Message.Content {
			switch cb.Type {
			case "text":
				evs = append(evs, turnEvent{kind: evDelta, text: cb.Text})
			case "thinking":
				evs = append(evs, turnEvent{kind: evThinking, text: cb.Thinking})
			case "tool_use":
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
