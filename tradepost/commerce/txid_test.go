package commerce

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mkarlovic/tradepost/tradepost/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDGenerator_Generate(t *testing.T) {
	gen := NewIDGenerator("ORD", func(ctx context.Context, id string) (bool, error) {
		return false, nil
	})

	id, err := gen.Generate(context.Background())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(id, "ORD-"))
	assert.Len(t, id, len("ORD-")+config.EntityIDLength)
	assert.Equal(t, strings.ToUpper(id), id)
}

func TestIDGenerator_Generate_Unique(t *testing.T) {
	gen := NewIDGenerator("BTR", func(ctx context.Context, id string) (bool, error) {
		return false, nil
	})

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id, err := gen.Generate(context.Background())
		require.NoError(t, err)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestIDGenerator_Generate_RetriesOnCollision(t *testing.T) {
	calls := 0
	gen := NewIDGenerator("ORD", func(ctx context.Context, id string) (bool, error) {
		calls++
		return calls < 3, nil
	})

	id, err := gen.Generate(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 3, calls)
}

func TestIDGenerator_Generate_ExhaustsRetries(t *testing.T) {
	gen := NewIDGenerator("ORD", func(ctx context.Context, id string) (bool, error) {
		return true, nil
	})

	_, err := gen.Generate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "attempts")
}

func TestIDGenerator_Generate_ExistsError(t *testing.T) {
	boom := errors.New("connection reset")
	gen := NewIDGenerator("ORD", func(ctx context.Context, id string) (bool, error) {
		return false, boom
	})

	_, err := gen.Generate(context.Background())
	assert.ErrorIs(t, err, boom)
}
