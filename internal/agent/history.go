package agent

import "strings"

// CompactHistoryBudget is the character budget applied when a turn is
// retried with compacted inline history. Full mode is unbounded.
const CompactHistoryBudget = 12000

const (
	historyHeader = "Previous conversation:\n---\n"
	historyFooter = "---\nEnd of previous conversation.\n\n"
)

// BuildInlineHistory reconstructs conversation context as literal text for
// providers without native session resume. It walks messages newest to
// oldest, skips a trailing user message identical to the current prompt,
// accumulates [Role] blocks until the budget is hit (budget <= 0 means
// unbounded), then restores chronological order and wraps the result in
// history markers. Returns the rendered history (empty when there is
// nothing to replay) and whether any history was included.
func BuildInlineHistory(messages []Message, currentPrompt string, budget int) (string, bool) {
	msgs := messages
	if n := len(msgs); n > 0 && msgs[n-1].Role == RoleUser && msgs[n-1].Text == currentPrompt {
		msgs = msgs[:n-1]
	}
	if len(msgs) == 0 {
		return "", false
	}

	var blocks []string
	total := 0
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Text == "" {
			continue
		}
		block := "[" + roleLabel(m.Role) + "]\n" + m.Text
		if budget > 0 && total+len(block) > budget {
			break
		}
		blocks = append(blocks, block)
		total += len(block)
	}
	if len(blocks) == 0 {
		return "", false
	}

	// Restore chronological order.
	for i, j := 0, len(blocks)-1; i < j; i, j = i+1, j-1 {
		blocks[i], blocks[j] = blocks[j], blocks[i]
	}

	return historyHeader + strings.Join(blocks, "\n\n") + "\n" + historyFooter, true
}

func roleLabel(role string) string {
	switch role {
	case RoleUser:
		return "User"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return role
	}
}
