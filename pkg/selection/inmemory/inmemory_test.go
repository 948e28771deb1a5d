package inmemory_test

import (
	"context"
	"testing"

	"github.com/barekit/docscope/pkg/selection"
	"github.com/barekit/docscope/pkg/selection/inmemory"
	"github.com/barekit/docscope/pkg/selection/selectiontest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemory(t *testing.T) {
	selectiontest.RunStoreTests(t, func(t *testing.T) selection.Store {
		return inmemory.New()
	})
}

func TestInMemory_CallerCannotMutateScope(t *testing.T) {
	s := inmemory.New()
	ctx := context.Background()

	ids := []string{"a", "b"}
	require.NoError(t, s.Replace(ctx, "alice", ids))
	ids[0] = "x"

	loaded, err := s.Load(ctx, "alice")
	require.NoError(t, err)
	loaded[1] = "y"

	again, err := s.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, again)
}
