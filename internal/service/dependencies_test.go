package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	l := NewLocalLocker()
	l.now = func() time.Time { return now }

	token, ok, err := l.AcquireLock(ctx, "product:1", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.AcquireLock(ctx, "product:1", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.ReleaseLock(ctx, "product:1", "someone-else"))
	_, ok, _ = l.AcquireLock(ctx, "product:1", time.Second)
	assert.False(t, ok)

	now = now.Add(2 * time.Second)
	stolen, ok, err := l.AcquireLock(ctx, "product:1", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	// the expired owner cannot release the new owner's lock
	require.NoError(t, l.ReleaseLock(ctx, "product:1", token))
	_, ok, _ = l.AcquireLock(ctx, "product:1", time.Second)
	assert.False(t, ok)

	require.NoError(t, l.ReleaseLock(ctx, "product:1", stolen))
	_, ok, _ = l.AcquireLock(ctx, "product:1", time.Second)
	assert.True(t, ok)
}
