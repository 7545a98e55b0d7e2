package topic

import (
	"errors"
	"fmt"
	"strings"
)

// MQTT-style topic patterns. Segments are '/'-delimited; '+' matches
// exactly one segment, a trailing '#' matches all remaining segments,
// including none. These semantics must stay identical to the broker's
// own wildcard matching because the same patterns are handed to the
// real subscribe call.

const (
	sep          = "/"
	wildcardOne  = "+"
	wildcardRest = "#"
)

var ErrInvalidPattern = errors.New("topic: invalid pattern")

// Match reports whether topic matches pattern. Pure and total; invalid
// patterns are rejected by Validate at registration time, not here.
func Match(pattern, topic string) bool {
	ps := strings.Split(pattern, sep)
	ts := strings.Split(topic, sep)

	for i, p := range ps {
		if p == wildcardRest {
			return i == len(ps)-1
		}
		if i >= len(ts) {
			return false
		}
		if p != wildcardOne && p != ts[i] {
			return false
		}
	}
	return len(ps) == len(ts)
}

// Validate rejects patterns that the broker would also reject:
// empty patterns, '#' anywhere but the final segment, and wildcards
// embedded inside a longer segment.
func Validate(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPattern)
	}
	segs := strings.Split(pattern, sep)
	for i, s := range segs {
		if s == wildcardRest && i != len(segs)-1 {
			return fmt.Errorf("%w: %q ('#' must be the final segment)", ErrInvalidPattern, pattern)
		}
		if len(s) > 1 && strings.ContainsAny(s, wildcardOne+wildcardRest) {
			return fmt.Errorf("%w: %q (wildcard must span a whole segment)", ErrInvalidPattern, pattern)
		}
	}
	return nil
}
