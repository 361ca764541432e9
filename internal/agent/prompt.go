package agent

import (
	"path/filepath"
	"strings"
)

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
	".svg":  true,
}

func attachmentKind(a Attachment) string {
	if a.Kind != "" {
		return a.Kind
	}
	if imageExts[strings.ToLower(filepath.Ext(a.Path))] {
		return "image"
	}
	return "file"
}

// BuildPromptText augments the user's text with attachment directives and
// renders enabled memory notes into a system-prompt appendix. Deterministic:
// identical inputs always produce identical output.
func BuildPromptText(text string, attachments []Attachment, memory []MemoryNote) (prompt, systemAppend string) {
	var images, files []string
	for _, a := range attachments {
		if a.Path == "" {
			continue
		}
		if attachmentKind(a) == "image" {
			images = append(images, a.Path)
		} else {
			files = append(files, a.Path)
		}
	}

	var sb strings.Builder
	sb.WriteString(text)
	if len(images) > 0 {
		sb.WriteString("\n\nView these files:\n")
		for _, p := range images {
			sb.WriteString("- " + p + "\n")
		}
	}
	if len(files) > 0 {
		sb.WriteString("\n\nRead these files for context:\n")
		for _, p := range files {
			sb.WriteString("- " + p + "\n")
		}
	}

	return sb.String(), renderMemory(memory)
}

// renderMemory produces the system-prompt appendix from enabled notes,
// grouped into a Global and a Project section. Empty when nothing is
// enabled.
func renderMemory(memory []MemoryNote) string {
	var global, project []string
	for _, n := range memory {
		if !n.Enabled || n.Content == "" {
			continue
		}
		switch n.Scope {
		case MemoryScopeProject:
			project = append(project, n.Content)
		default:
			global = append(global, n.Content)
		}
	}
	if len(global) == 0 && len(project) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Persistent user memory. Honor these notes in every response.\n")
	if len(global) > 0 {
		sb.WriteString("\n## Global\n")
		for _, c := range global {
			sb.WriteString("- " + c + "\n")
		}
	}
	if len(project) > 0 {
		sb.WriteString("\n## This project\n")
		for _, c := range project {
			sb.WriteString("- " + c + "\n")
		}
	}
	return sb.String()
}
