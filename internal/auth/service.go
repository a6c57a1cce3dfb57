package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-grants/meridian/internal/identity"
	"github.com/meridian-grants/meridian/internal/shared"
)

// PrincipalSource looks up accounts for authentication.
type PrincipalSource interface {
	FindByEmail(ctx context.Context, email string) (*identity.Principal, error)
}

// Service wraps authentication business rules.
type Service struct {
	principals PrincipalSource
	tokens     *shared.TokenStore
}

// NewService constructs a new Service.
func NewService(principals PrincipalSource, tokens *shared.TokenStore) *Service {
	return &Service{principals: principals, tokens: tokens}
}

// Login validates credentials and issues a bearer token. Credential
// failures are deliberately indistinguishable from unknown accounts.
func (s *Service) Login(ctx context.Context, email, password string) (string, *identity.Principal, error) {
	principal, err := s.principals.FindByEmail(ctx, email)
	if err != nil {
		return "", nil, shared.ErrInvalidCredentials
	}
	if !principal.IsActive {
		return "", nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(principal.PasswordHash), []byte(password)); err != nil {
		return "", nil, shared.ErrInvalidCredentials
	}
	token, err := s.tokens.Issue(ctx, principal.ID)
	if err != nil {
		return "", nil, err
	}
	return token, principal, nil
}

// Logout revokes the bearer token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.tokens.Revoke(ctx, token)
}
