package agent

import "regexp"

// RetryState tracks whether the current attempt is already a retry and, if
// so, which strategy produced it. Passed explicitly between attempts so the
// one-retry bound is visible in the call chain rather than hidden in shared
// state.
type RetryState string

const (
	RetryNone           RetryState = ""
	RetryFreshSession   RetryState = "fresh-session"
	RetryCompactHistory RetryState = "compact-history"
)

// ContinuityFlags records, at turn start, which retry strategies the
// continuity selection left available.
type ContinuityFlags struct {
	// CanRetryFresh is set when a native session id existed at turn start,
	// so the turn can be replayed after dropping it.
	CanRetryFresh bool
	// CanRetryCompact is set when full inline history was used and was
	// non-empty, so the turn can be replayed under the compact budget.
	CanRetryCompact bool
}

// TurnOutcome is what the turn looked like when the process closed.
type TurnOutcome struct {
	Text         string
	InputTokens  int
	OutputTokens int
	// ExitedWithError is set when the process exited non-zero or was killed.
	ExitedWithError bool
	// NoOutput is set when no event of any kind was parsed from stdout.
	NoOutput bool
	Stderr   string
}

// Empty reports the transient-failure shape: no text and zero token counts.
func (o TurnOutcome) Empty() bool {
	return o.Text == "" && o.InputTokens == 0 && o.OutputTokens == 0
}

// OverflowPredicate decides whether diagnostic text looks like a context
// overflow. It is heuristic and pluggable; it may both under- and
// over-trigger, so callers never treat it as authoritative.
type OverflowPredicate func(stderr string) bool

var overflowPattern = regexp.MustCompile(`(?i)limit|length|size|exceed|overflow|too large|E2BIG|context`)

// DefaultOverflowPredicate is the keyword heuristic used when no custom
// predicate is configured.
func DefaultOverflowPredicate(stderr string) bool {
	return overflowPattern.MatchString(stderr)
}

// DecideRetry returns the strategy for re-running the turn, or RetryNone to
// finalize. A turn retries at most once: any prior retry state forces
// finalization. pendingMarker is the conversation's transient retry marker,
// carried over from an earlier aborted attempt.
func DecideRetry(outcome TurnOutcome, flags ContinuityFlags, prior RetryState, pendingMarker bool, overflow OverflowPredicate) RetryState {
	if prior != RetryNone {
		return RetryNone
	}
	if overflow == nil {
		overflow = DefaultOverflowPredicate
	}

	if outcome.Empty() && !outcome.NoOutput {
		if flags.CanRetryFresh {
			return RetryFreshSession
		}
		if flags.CanRetryCompact {
			return RetryCompactHistory
		}
	}

	if outcome.NoOutput && outcome.ExitedWithError && flags.CanRetryCompact &&
		(pendingMarker || overflow(outcome.Stderr)) {
		return RetryCompactHistory
	}

	return RetryNone
}
