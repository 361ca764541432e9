package agent

import "strings"

// CombineWithOverlap reconciles text accumulated from streaming deltas
// against the authoritative final result text without duplicating the
// common region. Providers both stream text incrementally and re-send the
// full text in their final event, so a naive concatenation would double
// most of the response.
func CombineWithOverlap(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	if a == b {
		return a
	}
	if strings.Contains(a, b) {
		return a
	}
	if strings.Contains(b, a) {
		return b
	}

	// Longest suffix of a that is a prefix of b.
	max := len(a)
	if len(b) < max {
		max = len(b)
	}
	for n := max; n > 0; n-- {
		if a[len(a)-n:] == b[:n] {
			return a + b[n:]
		}
	}

	return a + "\n\n" + b
}
