package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNoSuchSession = errors.New("session: no such session")

type entry struct {
	id        string
	createdAt time.Time
}

// Registry maps caller-chosen names to correlation ids so two
// independently-arriving calls (start recording, then stop recording)
// can agree on one id without a connection spanning both. No bus
// interaction; last writer wins on a name collision.
type Registry struct {
	mu      sync.Mutex
	entries map[string]entry
}

func NewRegistry() *Registry {
	return &Registry{entries: map[string]entry{}}
}

// Start generates a fresh correlation id and stores it under name,
// overwriting any previous entry. The old id becomes unreachable by
// name but stays valid inside in-flight messages.
func (r *Registry) Start(name string) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.entries[name] = entry{id: id, createdAt: time.Now().UTC()}
	r.mu.Unlock()
	return id
}

// Finish looks up and removes the entry for name. A second Finish
// without an intervening Start fails rather than returning a stale id.
func (r *Registry) Finish(name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNoSuchSession, name)
	}
	delete(r.entries, name)
	return e.id, nil
}
