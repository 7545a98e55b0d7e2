package topic

import "sync"

// Registry tracks which patterns are currently of interest, coalescing
// duplicates. Add/Remove report the first-add and last-remove edges so
// the caller can drive the real bus subscribe/unsubscribe exactly once
// per distinct pattern, no matter how many consumers share it.
type Registry struct {
	mu   sync.Mutex
	refs map[string]int
}

func NewRegistry() *Registry {
	return &Registry{refs: map[string]int{}}
}

// Add registers interest in pattern. Returns true when this is the
// first active reference to it.
func (r *Registry) Add(pattern string) (bool, error) {
	if err := Validate(pattern); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refs[pattern]++
	return r.refs[pattern] == 1, nil
}

// Remove drops one reference to pattern. Returns true when no active
// reference remains. Removing an unknown pattern is a no-op.
func (r *Registry) Remove(pattern string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.refs[pattern]
	if !ok {
		return false
	}
	if n <= 1 {
		delete(r.refs, pattern)
		return true
	}
	r.refs[pattern] = n - 1
	return false
}

// MatchesAny reports whether any active pattern matches topic.
func (r *Registry) MatchesAny(topic string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for p := range r.refs {
		if Match(p, topic) {
			return true
		}
	}
	return false
}

// Patterns returns a snapshot of the active patterns.
func (r *Registry) Patterns() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.refs))
	for p := range r.refs {
		out = append(out, p)
	}
	return out
}
