// Package selectiontest provides a conformance suite for selection.Store
// implementations.
package selectiontest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/barekit/docscope/pkg/selection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreTests exercises the selection.Store contract. newStore must return
// an empty store on every call.
func RunStoreTests(t *testing.T, newStore func(t *testing.T) selection.Store) {
	t.Helper()

	t.Run("EmptyScope", func(t *testing.T) {
		s := newStore(t)

		ids, err := s.Load(context.Background(), "alice")
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("ReplaceDoesNotUnion", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Replace(ctx, "alice", []string{"a", "b"}))
		ids, err := s.Load(ctx, "alice")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a", "b"}, ids)

		require.NoError(t, s.Replace(ctx, "alice", []string{"c"}))
		ids, err = s.Load(ctx, "alice")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"c"}, ids)
	})

	t.Run("UsersAreIsolated", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Replace(ctx, "alice", []string{"a"}))
		require.NoError(t, s.Replace(ctx, "bob", []string{"b"}))

		ids, err := s.Load(ctx, "alice")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a"}, ids)

		require.NoError(t, s.Clear(ctx, "bob"))
		ids, err = s.Load(ctx, "alice")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a"}, ids)
	})

	t.Run("ClearIsIdempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Replace(ctx, "alice", []string{"a"}))
		require.NoError(t, s.Clear(ctx, "alice"))
		require.NoError(t, s.Clear(ctx, "alice"))
		require.NoError(t, s.Clear(ctx, "nobody"))

		ids, err := s.Load(ctx, "alice")
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("Forget", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Replace(ctx, "alice", []string{"a", "b"}))
		require.NoError(t, s.Replace(ctx, "bob", []string{"a"}))
		require.NoError(t, s.Forget(ctx, "a"))
		require.NoError(t, s.Forget(ctx, "unknown"))

		ids, err := s.Load(ctx, "alice")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"b"}, ids)

		ids, err = s.Load(ctx, "bob")
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("ConcurrentReplaceIsAtomic", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		scopes := [][]string{{"a1", "a2", "a3"}, {"b1", "b2"}}
		require.NoError(t, s.Replace(ctx, "alice", scopes[0]))

		var wg sync.WaitGroup
		errs := make(chan error, 40)
		for i := 0; i < 20; i++ {
			wg.Add(2)
			go func(i int) {
				defer wg.Done()
				if err := s.Replace(ctx, "alice", scopes[i%2]); err != nil {
					errs <- err
				}
			}(i)
			go func() {
				defer wg.Done()
				ids, err := s.Load(ctx, "alice")
				if err != nil {
					errs <- err
					return
				}
				if !matchesOne(ids, scopes) {
					errs <- fmt.Errorf("observed partial scope %v", ids)
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			assert.NoError(t, err)
		}
	})
}

func matchesOne(ids []string, scopes [][]string) bool {
	for _, scope := range scopes {
		if sameSet(ids, scope) {
			return true
		}
	}
	return false
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := set[v]; !ok {
			return false
		}
	}
	return true
}
