package authz

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/meridian-grants/meridian/internal/shared"
)

// Service wraps override administration. Every successful grant or
// revoke evicts the principal's cached permission set before the call
// returns, so an immediate re-check observes the new state.
type Service struct {
	overrides OverrideRepository
	resolver  *Resolver
	audit     shared.AuditPort
	logger    *slog.Logger
}

// NewService constructs the Service.
func NewService(overrides OverrideRepository, resolver *Resolver, audit shared.AuditPort, logger *slog.Logger) *Service {
	return &Service{overrides: overrides, resolver: resolver, audit: audit, logger: logger}
}

// GrantPermission records an override granting perm to the principal.
func (s *Service) GrantPermission(ctx context.Context, principalID int64, perm Permission, actorID int64) error {
	return s.setOverride(ctx, principalID, perm, true, actorID)
}

// RevokePermission records an override revoking perm from the
// principal. A revoke always wins over a role-derived grant.
func (s *Service) RevokePermission(ctx context.Context, principalID int64, perm Permission, actorID int64) error {
	return s.setOverride(ctx, principalID, perm, false, actorID)
}

func (s *Service) setOverride(ctx context.Context, principalID int64, perm Permission, granted bool, actorID int64) error {
	if !Known(perm) {
		return fmt.Errorf("authz: unknown permission %q: %w", perm, shared.ErrValidation)
	}
	if err := s.overrides.UpsertOverride(ctx, principalID, perm, granted, actorID); err != nil {
		return err
	}
	// Sequenced strictly before returning success: the caller must be
	// able to re-check permissions and see the override applied.
	s.resolver.Invalidate(principalID)

	action := "PERMISSION_GRANT"
	if !granted {
		action = "PERMISSION_REVOKE"
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "principal",
		EntityID: strconv.FormatInt(principalID, 10),
		Meta:     map[string]any{"permission": string(perm)},
	}); err != nil && s.logger != nil {
		s.logger.Error("record override audit", slog.Any("error", err))
	}
	return nil
}

// ListOverrides returns the live overrides for a principal.
func (s *Service) ListOverrides(ctx context.Context, principalID int64) ([]Override, error) {
	return s.overrides.ListOverrides(ctx, principalID)
}

// ResetCache clears every cached permission set, for administrative
// resets after a catalog change.
func (s *Service) ResetCache() {
	s.resolver.InvalidateAll()
}
