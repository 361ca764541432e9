package agent

import "testing"

func TestLookupPriceExactMatch(t *testing.T) {
	p := lookupPrice("gpt-5-codex")
	if p.InputPerMTok != 1.25 || p.OutputPerMTok != 10 {
		t.Fatalf("unexpected pricing: %+v", p)
	}
}

func TestLookupPriceSubstringFallback(t *testing.T) {
	// Dated model ids resolve to their family pricing.
	p := lookupPrice("claude-opus-4-1-20250805")
	want := priceTable["claude-opus-4-1"]
	if p != want {
		t.Fatalf("got %+v, want %+v", p, want)
	}
}

func TestLookupPriceCaseInsensitive(t *testing.T) {
	p := lookupPrice("Claude-Opus-4-1")
	want := priceTable["claude-opus-4-1"]
	if p != want {
		t.Fatalf("got %+v, want %+v", p, want)
	}
}

func TestLookupPriceUnknownFallsBackToDefault(t *testing.T) {
	p := lookupPrice("mystery-model-9000")
	want := priceTable[defaultPriceModel]
	if p != want {
		t.Fatalf("got %+v, want default %+v", p, want)
	}
}

func TestEstimateCost(t *testing.T) {
	// 1M input + 1M output at sonnet pricing.
	got := estimateCost("claude-sonnet-4-5", 1_000_000, 1_000_000)
	if got != 18 {
		t.Fatalf("got %v, want 18", got)
	}
	if c := estimateCost("claude-sonnet-4-5", 0, 0); c != 0 {
		t.Fatalf("zero tokens cost %v", c)
	}
}
