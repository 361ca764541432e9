// Package textnorm normalizes streamed assistant text before it reaches
// observers or the persisted transcript.
package textnorm

import "strings"

// LeadingBlankLineTrimmer withholds whitespace-only deltas at the start of a
// streamed response until real content arrives. Agent CLIs often open a turn
// with a bare newline or two; emitting those would make every reply start
// with a blank gap.
type LeadingBlankLineTrimmer struct {
	seenContent bool
	pending     strings.Builder
}

// Push ingests one streamed delta and returns what should be emitted
// downstream. Once content has been seen, deltas pass through untouched.
func (t *LeadingBlankLineTrimmer) Push(delta string) string {
	if delta == "" {
		return ""
	}
	if t.seenContent {
		return delta
	}

	t.pending.WriteString(delta)
	pending := t.pending.String()
	if strings.TrimSpace(pending) == "" {
		return ""
	}

	normalized := TrimLeadingBlankLines(pending)
	t.pending.Reset()
	t.seenContent = true
	return normalized
}

// TrimLeadingBlankLines drops whole blank lines from the start of text.
// Indentation on the first content line is kept; only lines that are
// entirely whitespace go.
func TrimLeadingBlankLines(text string) string {
	i := 0
	for i < len(text) {
		j := i
		for j < len(text) && (text[j] == ' ' || text[j] == '\t') {
			j++
		}
		if j >= len(text) {
			return text
		}

		switch text[j] {
		case '\n':
			i = j + 1
		case '\r':
			if j+1 < len(text) && text[j+1] == '\n' {
				i = j + 2
			} else {
				i = j + 1
			}
		default:
			return text[i:]
		}
	}
	return text[i:]
}
