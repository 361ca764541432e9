package agent

import "testing"

func TestNormalizeGeminiLineAssistantTextIsDelta(t *testing.T) {
	line := `{"type":"assistant","message":{"content":[{"type":"text","text":"chunk of text"}]}}`
	evs := normalizeGeminiLine([]byte(line))
	if len(evs) != 1 || evs[0].kind != evDelta || evs[0].text != "chunk of text" {
		t.Fatalf("got %+v", evs)
	}
}

func TestNormalizeGeminiLineToolFlow(t *testing.T) {
	use := `{"type":"assistant","message":{"content":[{"type":"tool_use","id":"g1","name":"run_shell_command","input":{"command":"cat go.mod"}}]}}`
	evs := normalizeGeminiLine([]byte(use))
	if len(evs) != 1 || evs[0].kind != evToolStart || evs[0].toolID != "g1" {
		t.Fatalf("use: got %+v", evs)
	}

	result := `{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"g1","content":"module agentdeck"}]}}`
	evs = normalizeGeminiLine([]byte(result))
	if len(evs) != 1 || evs[0].kind != evToolResult || evs[0].resultBody != "module agentdeck" {
		t.Fatalf("result: got %+v", evs)
	}
}

func TestNormalizeGeminiLineResult(t *testing.T) {
	line := `{"type":"result","result":"done","usage":{"input_tokens":10,"output_tokens":5}}`
	evs := normalizeGeminiLine([]byte(line))
	if len(evs) != 1 || evs[0].kind != evCompletion || evs[0].finalText != "done" {
		t.Fatalf("got %+v", evs)
	}
	if evs[0].inputTokens != 10 || evs[0].outputTokens != 5 {
		t.Fatalf("tokens = %d/%d", evs[0].inputTokens, evs[0].outputTokens)
	}
}

func TestNormalizeGeminiLineMalformed(t *testing.T) {
	if evs := normalizeGeminiLine([]byte("]{[ not json")); len(evs) != 0 {
		t.Fatalf("got %+v", evs)
	}
}
