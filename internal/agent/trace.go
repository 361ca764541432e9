package agent

import (
	"fmt"
	"strings"
)

const (
	// toolResultMaxLen caps how much tool output is inlined into the
	// reconstructed transcript.
	toolResultMaxLen = 1500

	truncationMarker = "… [truncated]"

	toolArgMaxLen = 80
)

// primaryToolArg picks the one argument worth showing inline for a tool
// invocation. Preference follows what reads best in a transcript: the shell
// command first, then file targets, then search terms.
func primaryToolArg(input map[string]any) string {
	for _, key := range []string{"command", "file_path", "path", "pattern", "query", "url", "description"} {
		v, ok := input[key]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok || s == "" {
			continue
		}
		s = strings.ReplaceAll(s, "\n", " ")
		if len(s) > toolArgMaxLen {
			s = s[:toolArgMaxLen] + "…"
		}
		return s
	}
	return ""
}

// traceOpen renders the opening marker of an inline tool trace span.
func traceOpen(name, arg string) string {
	if arg == "" {
		return fmt.Sprintf("\n\n[tool:%s]", name)
	}
	return fmt.Sprintf("\n\n[tool:%s %s]", name, arg)
}

// traceClose renders the closing marker. Every emitted open marker must be
// matched by exactly one of these before the transcript is finalized.
func traceClose() string {
	return "[/tool]\n\n"
}

// formatToolResultBlock renders a tool's output as a fenced block inside an
// open trace span: the command that ran (when known), then the truncated
// result body. Errors are prefixed so they read as failures even after
// truncation.
func formatToolResultBlock(command, body string, isError bool) string {
	body = strings.TrimRight(body, "\n")
	if len(body) > toolResultMaxLen {
		body = body[:toolResultMaxLen] + truncationMarker
	}
	if isError {
		body = "Error: " + body
	}

	var sb strings.Builder
	sb.WriteString("\n```\n")
	if command != "" {
		sb.WriteString("$ ")
		sb.WriteString(command)
		sb.WriteString("\n")
	}
	if body != "" {
		sb.WriteString(body)
		sb.WriteString("\n")
	}
	sb.WriteString("```\n")
	return sb.String()
}
