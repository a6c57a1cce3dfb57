package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-grants/meridian/internal/identity"
	"github.com/meridian-grants/meridian/internal/shared"
	_ "github.com/meridian-grants/meridian/testing"
)

type stubPrincipals struct {
	byEmail map[string]*identity.Principal
}

func (s stubPrincipals) FindByEmail(ctx context.Context, email string) (*identity.Principal, error) {
	p, ok := s.byEmail[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return p, nil
}

func newAuthService(t *testing.T, principals stubPrincipals) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(principals, shared.NewTokenStore(client, time.Hour))
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestLoginIssuesToken(t *testing.T) {
	svc := newAuthService(t, stubPrincipals{byEmail: map[string]*identity.Principal{
		"r@uni.edu": {ID: 7, Email: "r@uni.edu", PasswordHash: hashOf(t, "secret123"), IsActive: true},
	}})

	token, principal, err := svc.Login(context.Background(), "r@uni.edu", "secret123")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, int64(7), principal.ID)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	svc := newAuthService(t, stubPrincipals{byEmail: map[string]*identity.Principal{
		"r@uni.edu":    {ID: 7, Email: "r@uni.edu", PasswordHash: hashOf(t, "secret123"), IsActive: true},
		"gone@uni.edu": {ID: 8, Email: "gone@uni.edu", PasswordHash: hashOf(t, "secret123"), IsActive: false},
	}})
	ctx := context.Background()

	_, _, err := svc.Login(ctx, "r@uni.edu", "wrong")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody@uni.edu", "secret123")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "gone@uni.edu", "secret123")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials, "inactive accounts look like bad credentials")
}

func TestLogoutRevokesToken(t *testing.T) {
	principals := stubPrincipals{byEmail: map[string]*identity.Principal{
		"r@uni.edu": {ID: 7, Email: "r@uni.edu", PasswordHash: hashOf(t, "secret123"), IsActive: true},
	}}
	svc := newAuthService(t, principals)
	ctx := context.Background()

	token, _, err := svc.Login(ctx, "r@uni.edu", "secret123")
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, token))

	_, err = svc.tokens.Resolve(ctx, token)
	require.ErrorIs(t, err, shared.ErrUnauthenticated)
}
