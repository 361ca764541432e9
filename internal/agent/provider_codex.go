package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// codexProvider drives the codex CLI in exec --json mode. Codex runs
// stateless here: every turn replays conversation context as inline
// history, which makes it exercise the compact-history retry path.
type codexProvider struct {
	bin      string
	sup      *Supervisor
	overflow OverflowPredicate
}

// NewCodexProvider wires the codex CLI behind the Provider interface.
func NewCodexProvider(bin string, sup *Supervisor) Provider {
	if bin == "" {
		bin = "codex"
	}
	return &codexProvider{bin: bin, sup: sup, overflow: DefaultOverflowPredicate}
}

func (p *codexProvider) Name() string { return ProviderCodex }

func (p *codexProvider) Available() bool {
	_, err := exec.LookPath(p.bin)
	return err == nil
}

func (p *codexProvider) Cancel(conversationID string) bool {
	return p.sup.Cancel(conversationID)
}

func (p *codexProvider) IsActive(conversationID string) bool {
	return p.sup.IsActive(conversationID)
}

func (p *codexProvider) Models() []ModelInfo {
	return []ModelInfo{
		{ID: "gpt-5-codex", Name: "GPT-5 Codex", Default: true},
		{ID: "gpt-5", Name: "GPT-5"},
	}
}

func (p *codexProvider) Chat(ctx context.Context, conv *Conversation, req TurnRequest) error {
	if !p.Available() {
		return &ProviderUnavailableError{Provider: ProviderCodex, Reason: fmt.Sprintf("binary %q not found in PATH", p.bin)}
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

		args := []string{"exec", "--json", "--skip-git-repo-check"}
		if conv.Model != "" {
			args = append(args, "-m", conv.Model)
		}
		switch conv.Mode {
		case ModeWrite:
			args = append(args, "-c", `sandbox_mode="workspace-write"`)
		default:
			args = append(args, "-c", `sandbox_mode="read-only"`)
		}
		if conv.WorkingDir != "" {
			args = append(args, "--cd", conv.WorkingDir)
		}
		args = append(args, "--", fullPrompt)

		flags := ContinuityFlags{CanRetryCompact: prior == RetryNone && hadHistory}
		return turnPlan{
			argv:      append([]string{p.bin}, args...),
			dir:       conv.WorkingDir,
			normalize: normalizeCodexLine,
		}, flags, nil
	}

	return runTurnLoop(ctx, p.sup, conv, relay, conv.Model, p.overflow, makePlan)
}

func (p *codexProvider) GenerateSummary(ctx context.Context, conv *Conversation) (string, error) {
	if !p.Available() {
		return "", &ProviderUnavailableError{Provider: ProviderCodex, Reason: fmt.Sprintf("binary %q not found in PATH", p.bin)}
	}
	out, err := exec.CommandContext(ctx, p.bin, "exec", "--skip-git-repo-check", "--", summaryPrompt(conv)).Output()
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}
	return cleanSummary(string(out)), nil
}

// composeStatelessPrompt stacks system appendix, inline history, and the
// user's prompt for providers without native resume.
func composeStatelessPrompt(history, systemAppend, prompt string) string {
	var sb strings.Builder
	if systemAppend != "" {
		sb.WriteString(systemAppend)
		sb.WriteString("\n\n")
	}
	if history != "" {
		sb.WriteString(history)
	}
	sb.WriteString(prompt)
	return sb.String()
}

// Codex exec --json event shapes.

type codexEnvelope struct {
	Type     string      `json:"type"`
	ThreadID string      `json:"thread_id,omitempty"`
	Item     *codexItem  `json:"item,omitempty"`
	Usage    *codexUsage `json:"usage,omitempty"`
}

type codexItem struct {
	ID               string `json:"id"`
	ItemType         string `json:"item_type"`
	Text             string `json:"text,omitempty"`
	Command          string `json:"command,omitempty"`
	AggregatedOutput string `json:"aggregated_output,omitempty"`
	ExitCode         *int   `json:"exit_code,omitempty"`
	Status           string `json:"status,omitempty"`
}

type codexUsage struct {
	InputTokens       int `json:"input_tokens"`
	CachedInputTokens int `json:"cached_input_tokens"`
	OutputTokens      int `json:"output_tokens"`
}

// normalizeCodexLine maps one JSONL event to normalized turn events.
// Codex does not stream text deltas in exec mode; the agent message
// arrives whole at item completion.
func normalizeCodexLine(line []byte) []turnEvent {
	var msg codexEnvelope
	if err := json.Unmarshal(line, &msg); err != nil {
		return nil
	}

	switch msg.Type {
	case "thread.started":
		if msg.ThreadID != "" {
			return []turnEvent{{kind: evSessionInit, sessionID: msg.ThreadID}}
		}

	case "item.started":
		if msg.Item != nil && msg.Item.ItemType == "command_execution" {
			return []turnEvent{{
				kind:        evToolStart,
				toolName:    "shell",
				toolID:      msg.Item.ID,
				toolArg:     primaryToolArg(map[string]any{"command": msg.Item.Command}),
				toolCommand: msg.Item.Command,
			}}
		}

	case "item.completed":
		if msg.Item == nil {
			return nil
		}
		switch msg.Item.ItemType {
		case "agent_message":
			return []turnEvent{{kind: evDelta, text: msg.Item.Text}}
		case "reasoning":
			return []turnEvent{{kind: evThinking, text: msg.Item.Text}}
		case "command_execution":
			failed := msg.Item.ExitCode != nil && *msg.Item.ExitCode != 0
			return []turnEvent{{
				kind:       evToolResult,
				toolID:     msg.Item.ID,
				resultBody: msg.Item.AggregatedOutput,
				resultErr:  failed,
			}}
		}

	case "turn.completed":
		ev := turnEvent{kind: evCompletion}
		if msg.Usage != nil {
			ev.inputTokens = msg.Usage.InputTokens + msg.Usage.CachedInputTokens
			ev.outputTokens = msg.Usage.OutputTokens
		}
		return []turnEvent{ev}
	}

	return nil
}
