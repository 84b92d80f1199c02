package redisclient

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/GemeenteUtrecht/Huwelijksplanner-producten-diensten/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("Integration test - requires TEST_REDIS_ADDR")
	}

	c, err := NewClient(addr, "", 15)
	require.NoError(t, err)
	t.Cleanup(func() {
		c.GetClient().FlushDB(context.Background())
		c.Close()
	})
	return c
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "product:12", productKey(12))
	assert.Equal(t, "lock:product:12", lockKey("product:12"))
}

func TestProductCache(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	miss, err := c.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, miss)

	p := models.NewProduct("123456789", models.ProductTypeSimple)
	p.ID = 1
	p.Name = "Eenvoudig Trouwen"
	p.SetPriceExcl(16300)
	require.NoError(t, c.SetProduct(ctx, p, time.Minute))

	hit, err := c.GetProduct(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "Eenvoudig Trouwen", hit.Name)
	assert.Equal(t, int64(16300), hit.PriceIncl)

	require.NoError(t, c.InvalidateProducts(ctx, 1, 2))
	gone, err := c.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestLockOwnership(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	token, ok, err := c.AcquireLock(ctx, "product:7", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = c.AcquireLock(ctx, "product:7", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// a foreign token must not release the lock
	require.NoError(t, c.ReleaseLock(ctx, "product:7", "not-the-owner"))
	_, ok, err = c.AcquireLock(ctx, "product:7", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.ReleaseLock(ctx, "product:7", token))
	_, ok, err = c.AcquireLock(ctx, "product:7", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
