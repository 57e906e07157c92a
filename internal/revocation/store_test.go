package revocation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, time.Hour), mr
}

func TestRevokeThenIsRevoked(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	revoked, err := store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, store.Revoke(ctx, "jti-1"))

	revoked, err = store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = store.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRevokeIsIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	first := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	store.now = func() time.Time { return first }
	require.NoError(t, store.Revoke(ctx, "jti-1"))

	store.now = func() time.Time { return first.Add(time.Minute) }
	require.NoError(t, store.Revoke(ctx, "jti-1"))

	revoked, err := store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	at, err := store.RevokedAt(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, first.Equal(at))
}

func TestConcurrentRevokeSucceeds(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.Revoke(ctx, "jti-shared")
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestRevocationExpiresAfterTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Revoke(ctx, "jti-1"))
	assert.Equal(t, time.Hour, mr.TTL(keyPrefix+"jti-1"))

	mr.FastForward(time.Hour + time.Second)

	revoked, err := store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestEmptyTokenID(t *testing.T) {
	store, _ := newTestStore(t)
	require.ErrorIs(t, store.Revoke(context.Background(), ""), ErrEmptyTokenID)
	_, err := store.IsRevoked(context.Background(), "")
	require.ErrorIs(t, err, ErrEmptyTokenID)
}

func TestStoreFailureSurfaces(t *testing.T) {
	store, mr := newTestStore(t)
	mr.SetError("LOADING redis is loading")

	_, err := store.IsRevoked(context.Background(), "jti-1")
	require.Error(t, err)
}
