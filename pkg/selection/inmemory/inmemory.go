package inmemory

import (
	"context"
	"sync"
)

// InMemory implements selection.Store with copy-on-write slices. Each
// user's scope is an immutable slice swapped in as a whole.
type InMemory struct {
	scopes sync.Map // user -> *[]string
}

// New creates a new InMemory store.
func New() *InMemory {
	return &InMemory{}
}

// Replace installs ids as the user's scope.
func (m *InMemory) Replace(ctx context.Context, user string, ids []string) error {
	scope := make([]string, len(ids))
	copy(scope, ids)
	m.scopes.Store(user, &scope)
	return nil
}

// Load returns a copy of the user's scope.
func (m *InMemory) Load(ctx context.Context, user string) ([]string, error) {
	v, ok := m.scopes.Load(user)
	if !ok {
		return []string{}, nil
	}
	scope := *v.(*[]string)
	result := make([]string, len(scope))
	copy(result, scope)
	return result, nil
}

// Clear empties the user's scope.
func (m *InMemory) Clear(ctx context.Context, user string) error {
	m.scopes.Delete(user)
	return nil
}

// Forget removes documentID from every scope. A scope replaced concurrently
// is retried against its new value.
func (m *InMemory) Forget(ctx context.Context, documentID string) error {
	m.scopes.Range(func(key, value any) bool {
		for {
			old := value.(*[]string)
			next := without(*old, documentID)
			if len(next) == len(*old) {
				return true
			}
			if m.scopes.CompareAndSwap(key, old, &next) {
				return true
			}
			var ok bool
			if value, ok = m.scopes.Load(key); !ok {
				return true
			}
		}
	})
	return nil
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
