package agent

import "testing"

func TestDecideRetryEmptyResultFreshSession(t *testing.T) {
	outcome := TurnOutcome{}
	flags := ContinuityFlags{CanRetryFresh: true}
	if got := DecideRetry(outcome, flags, RetryNone, false, nil); got != RetryFreshSession {
		t.Fatalf("got %q, want fresh-session", got)
	}
}

func TestDecideRetryEmptyResultCompactFallback(t *testing.T) {
	outcome := TurnOutcome{}
	flags := ContinuityFlags{CanRetryCompact: true}
	if got := DecideRetry(outcome, flags, RetryNone, false, nil); got != RetryCompactHistory {
		t.Fatalf("got %q, want compact-history", got)
	}
}

func TestDecideRetryAtMostOnce(t *testing.T) {
	outcome := TurnOutcome{}
	flags := ContinuityFlags{CanRetryFresh: true, CanRetryCompact: true}
	for _, prior := range []RetryState{RetryFreshSession, RetryCompactHistory} {
		if got := DecideRetry(outcome, flags, prior, false, nil); got != RetryNone {
			t.Fatalf("prior %q: got %q, want none", prior, got)
		}
	}
}

func TestDecideRetryNonEmptyResultFinalizes(t *testing.T) {
	outcome := TurnOutcome{Text: "some answer", OutputTokens: 12}
	flags := ContinuityFlags{CanRetryFresh: true, CanRetryCompact: true}
	if got := DecideRetry(outcome, flags, RetryNone, false, nil); got != RetryNone {
		t.Fatalf("got %q, want none", got)
	}
}

func TestDecideRetryOverflowStderr(t *testing.T) {
	outcome := TurnOutcome{
		NoOutput:        true,
		ExitedWithError: true,
		Stderr:          "error: prompt exceeds maximum context length",
	}
	flags := ContinuityFlags{CanRetryCompact: true}
	if got := DecideRetry(outcome, flags, RetryNone, false, nil); got != RetryCompactHistory {
		t.Fatalf("got %q, want compact-history", got)
	}
}

func TestDecideRetryOverflowNeedsCompactEligibility(t *testing.T) {
	outcome := TurnOutcome{
		NoOutput:        true,
		ExitedWithError: true,
		Stderr:          "argument list too long (E2BIG)",
	}
	if got := DecideRetry(outcome, ContinuityFlags{}, RetryNone, false, nil); got != RetryNone {
		t.Fatalf("got %q, want none", got)
	}
}

func TestDecideRetryPendingMarker(t *testing.T) {
	outcome := TurnOutcome{NoOutput: true, ExitedWithError: true, Stderr: "killed"}
	flags := ContinuityFlags{CanRetryCompact: true}
	if got := DecideRetry(outcome, flags, RetryNone, true, nil); got != RetryCompactHistory {
		t.Fatalf("got %q, want compact-history from pending marker", got)
	}
}

func TestDecideRetryPlainFailureNoRetry(t *testing.T) {
	outcome := TurnOutcome{NoOutput: true, ExitedWithError: true, Stderr: "segmentation fault"}
	flags := ContinuityFlags{CanRetryCompact: true}
	if got := DecideRetry(outcome, flags, RetryNone, false, nil); got != RetryNone {
		t.Fatalf("got %q, want none", got)
	}
}

func TestDecideRetryCustomPredicate(t *testing.T) {
	outcome := TurnOutcome{NoOutput: true, ExitedWithError: true, Stderr: "XYZZY"}
	flags := ContinuityFlags{CanRetryCompact: true}
	custom := func(stderr string) bool { return stderr == "XYZZY" }
	if got := DecideRetry(outcome, flags, RetryNone, false, custom); got != RetryCompactHistory {
		t.Fatalf("got %q, want compact-history from custom predicate", got)
	}
}

func TestDefaultOverflowPredicate(t *testing.T) {
	positives := []string{
		"context length exceeded",
		"Prompt Too Large",
		"E2BIG: argument list too long",
		"output SIZE cap reached",
	}
	for _, s := range positives {
		if !DefaultOverflowPredicate(s) {
			t.Fatalf("predicate missed %q", s)
		}
	}
	if DefaultOverflowPredicate("segmentation fault") {
		t.Fatal("predicate matched unrelated diagnostic")
	}
}

func TestTurnOutcomeEmpty(t *testing.T) {
	if !(TurnOutcome{}).Empty() {
		t.Fatal("zero outcome should be empty")
	}
	if (TurnOutcome{Text: "x"}).Empty() {
		t.Fatal("text outcome should not be empty")
	}
	if (TurnOutcome{InputTokens: 1}).Empty() {
		t.Fatal("token outcome should not be empty")
	}
}
