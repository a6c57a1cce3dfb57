package shared

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	_ "github.com/meridian-grants/meridian/testing"
)

func newTestTokenStore(t *testing.T) (*TokenStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewTokenStore(client, time.Hour), mr
}

func TestTokenIssueAndResolve(t *testing.T) {
	store, _ := newTestTokenStore(t)
	ctx := context.Background()

	token, err := store.Issue(ctx, 42)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	id, err := store.Resolve(ctx, token)
	require.NoError(t, err)
	require.Equal(t, int64(42), id)
}

func TestResolveUnknownTokenIsUnauthenticated(t *testing.T) {
	store, _ := newTestTokenStore(t)

	_, err := store.Resolve(context.Background(), "no-such-token")
	require.ErrorIs(t, err, ErrUnauthenticated)

	_, err = store.Resolve(context.Background(), "")
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestResolveExpiredToken(t *testing.T) {
	store, mr := newTestTokenStore(t)
	ctx := context.Background()

	token, err := store.Issue(ctx, 7)
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)

	_, err = store.Resolve(ctx, token)
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestRevokeInvalidatesToken(t *testing.T) {
	store, _ := newTestTokenStore(t)
	ctx := context.Background()

	token, err := store.Issue(ctx, 7)
	require.NoError(t, err)
	require.NoError(t, store.Revoke(ctx, token))

	_, err = store.Resolve(ctx, token)
	require.ErrorIs(t, err, ErrUnauthenticated)

	require.NoError(t, store.Revoke(ctx, token), "revoking twice is fine")
}

func TestResolveBackendOutage(t *testing.T) {
	store, mr := newTestTokenStore(t)
	ctx := context.Background()

	token, err := store.Issue(ctx, 7)
	require.NoError(t, err)

	mr.Close()

	_, err = store.Resolve(ctx, token)
	require.ErrorIs(t, err, ErrBackendUnavailable, "an outage is never reported as a missing session")
}
