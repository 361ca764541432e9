package agent

import (
	"strings"
	"testing"
)

func TestBuildPromptTextNoExtras(t *testing.T) {
	prompt, sys := BuildPromptText("just a question", nil, nil)
	if prompt != "just a question" {
		t.Fatalf("got %q", prompt)
	}
	if sys != "" {
		t.Fatalf("unexpected system appendix: %q", sys)
	}
}

func TestBuildPromptTextAttachmentDirectives(t *testing.T) {
	atts := []Attachment{
		{Path: "/tmp/diagram.png"},
		{Path: "/tmp/notes.md"},
		{Path: "/tmp/photo.JPEG"},
	}
	prompt, _ := BuildPromptText("look at these", atts, nil)

	viewIdx := strings.Index(prompt, "View these files:")
	readIdx := strings.Index(prompt, "Read these files for context:")
	if viewIdx < 0 || readIdx < 0 {
		t.Fatalf("missing directives:\n%s", prompt)
	}
	viewSection := prompt[viewIdx:readIdx]
	if !strings.Contains(viewSection, "/tmp/diagram.png") || !strings.Contains(viewSection, "/tmp/photo.JPEG") {
		t.Fatalf("images missing from view directive:\n%s", prompt)
	}
	if !strings.Contains(prompt[readIdx:], "/tmp/notes.md") {
		t.Fatalf("file missing from read directive:\n%s", prompt)
	}
}

func TestBuildPromptTextExplicitKindWins(t *testing.T) {
	atts := []Attachment{{Path: "/tmp/image.bin", Kind: "image"}}
	prompt, _ := BuildPromptText("x", atts, nil)
	if !strings.Contains(prompt, "View these files:") {
		t.Fatalf("explicit image kind ignored:\n%s", prompt)
	}
}

func TestBuildPromptTextDeterministic(t *testing.T) {
	atts := []Attachment{{Path: "/a.png"}, {Path: "/b.txt"}}
	mem := []MemoryNote{{Scope: MemoryScopeGlobal, Content: "note", Enabled: true}}
	p1, s1 := BuildPromptText("hi", atts, mem)
	p2, s2 := BuildPromptText("hi", atts, mem)
	if p1 != p2 || s1 != s2 {
		t.Fatal("identical inputs produced different output")
	}
}

func TestRenderMemorySections(t *testing.T) {
	mem := []MemoryNote{
		{Scope: MemoryScopeGlobal, Content: "always use tabs", Enabled: true},
		{Scope: MemoryScopeProject, Content: "this repo uses sqlite", Enabled: true},
		{Scope: MemoryScopeGlobal, Content: "disabled note", Enabled: false},
	}
	_, sys := BuildPromptText("x", nil, mem)

	if !strings.Contains(sys, "## Global") || !strings.Contains(sys, "## This project") {
		t.Fatalf("missing sections:\n%s", sys)
	}
	if !strings.Contains(sys, "always use tabs") || !strings.Contains(sys, "this repo uses sqlite") {
		t.Fatalf("missing note content:\n%s", sys)
	}
	if strings.Contains(sys, "disabled note") {
		t.Fatalf("disabled note rendered:\n%s", sys)
	}
}

func TestRenderMemoryEmptyWhenAllDisabled(t *testing.T) {
	mem := []MemoryNote{{Scope: MemoryScopeGlobal, Content: "off", Enabled: false}}
	if _, sys := BuildPromptText("x", nil, mem); sys != "" {
		t.Fatalf("got %q, want empty", sys)
	}
}

func TestBuildSandboxPolicy(t *testing.T) {
	raw, err := buildSandboxPolicy("/home/user/project")
	if err != nil {
		t.Fatalf("buildSandboxPolicy: %v", err)
	}
	if !strings.Contains(raw, "/home/user/project") {
		t.Fatalf("working dir missing: %s", raw)
	}
	for _, denied := range []string{"~/.ssh", "~/.aws", "**/.env"} {
		if !strings.Contains(raw, denied) {
			t.Fatalf("deny list missing %q: %s", denied, raw)
		}
	}
	if !strings.Contains(raw, "github.com") {
		t.Fatalf("allow list missing github.com: %s", raw)
	}
}

func TestBuildSandboxPolicyNoWorkingDir(t *testing.T) {
	raw, err := buildSandboxPolicy("")
	if err != nil {
		t.Fatalf("buildSandboxPolicy: %v", err)
	}
	if strings.Contains(raw, `[""]`) {
		t.Fatalf("empty working dir serialized as a write grant: %s", raw)
	}
	if !strings.Contains(raw, `"allowed_write_paths":[]`) {
		t.Fatalf("write grant list not empty: %s", raw)
	}
}
