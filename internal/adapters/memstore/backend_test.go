package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helmgate/sessiond/internal/ports"
)

func TestBackend_RoundTrip(t *testing.T) {
	t.Parallel()
	b := NewBackend()
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, "session:current", "payload"))

	got, err := b.Get(ctx, "session:current")
	require.NoError(t, err)
	assert.Equal(t, "payload", got)
	assert.Equal(t, 1, b.Len())
}

func TestBackend_GetMissingKey(t *testing.T) {
	t.Parallel()
	b := NewBackend()

	_, err := b.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ports.ErrKeyNotFound)
}

func TestBackend_SetOverwrites(t *testing.T) {
	t.Parallel()
	b := NewBackend()
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, "k", "first"))
	require.NoError(t, b.Set(ctx, "k", "second"))

	got, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "second", got)
	assert.Equal(t, 1, b.Len())
}

func TestBackend_RemoveIsIdempotent(t *testing.T) {
	t.Parallel()
	b := NewBackend()
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, "k", "v"))
	require.NoError(t, b.Remove(ctx, "k"))
	require.NoError(t, b.Remove(ctx, "k"))

	_, err := b.Get(ctx, "k")
	assert.ErrorIs(t, err, ports.ErrKeyNotFound)
	assert.Equal(t, 0, b.Len())
}
