package authz

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-grants/meridian/internal/shared"
)

type memoryAudit struct {
	entries []shared.AuditLog
	err     error
}

func (m *memoryAudit) Record(ctx context.Context, entry shared.AuditLog) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entry)
	return nil
}

func newTestService(identity *memoryIdentity, overrides *memoryOverrides, audit *memoryAudit) (*Service, *Gate) {
	resolver := newTestResolver(identity, overrides)
	gate := NewGate(resolver, nil)
	svc := NewService(overrides, resolver, audit, slog.Default())
	return svc, gate
}

func TestGrantVisibleImmediately(t *testing.T) {
	identity := &memoryIdentity{access: map[int64]Access{
		9: {Role: RoleGeneral},
	}}
	overrides := &memoryOverrides{}
	audit := &memoryAudit{}
	svc, gate := newTestService(identity, overrides, audit)
	ctx := context.Background()

	ok, err := gate.HasPermission(ctx, 9, PermReportsView)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, svc.GrantPermission(ctx, 9, PermReportsView, 1))

	// The cache entry populated above must already be gone.
	ok, err = gate.HasPermission(ctx, 9, PermReportsView)
	require.NoError(t, err)
	require.True(t, ok)

	require.Len(t, audit.entries, 1)
	require.Equal(t, "PERMISSION_GRANT", audit.entries[0].Action)
}

func TestRevokeVisibleImmediately(t *testing.T) {
	identity := &memoryIdentity{access: map[int64]Access{
		4: {Role: RoleSupervisor},
	}}
	overrides := &memoryOverrides{}
	svc, gate := newTestService(identity, overrides, &memoryAudit{})
	ctx := context.Background()

	ok, err := gate.HasPermission(ctx, 4, PermProposalsApprove)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, svc.RevokePermission(ctx, 4, PermProposalsApprove, 1))

	ok, err = gate.HasPermission(ctx, 4, PermProposalsApprove)
	require.NoError(t, err)
	require.False(t, ok, "revoke wins over the role-derived grant")
}

func TestGrantThenRevokeLastWriteWins(t *testing.T) {
	identity := &memoryIdentity{access: map[int64]Access{
		2: {Role: RoleGeneral},
	}}
	overrides := &memoryOverrides{}
	svc, gate := newTestService(identity, overrides, &memoryAudit{})
	ctx := context.Background()

	require.NoError(t, svc.GrantPermission(ctx, 2, PermFinanceView, 1))
	require.NoError(t, svc.RevokePermission(ctx, 2, PermFinanceView, 1))

	ok, err := gate.HasPermission(ctx, 2, PermFinanceView)
	require.NoError(t, err)
	require.False(t, ok)

	list, err := svc.ListOverrides(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 1, "upsert keeps a single live override per permission")
	require.False(t, list[0].Granted)
}

func TestSetOverrideRejectsUnknownPermission(t *testing.T) {
	svc, _ := newTestService(&memoryIdentity{}, &memoryOverrides{}, &memoryAudit{})

	err := svc.GrantPermission(context.Background(), 1, Permission("proposals.delete"), 1)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestSetOverridePropagatesStorageFailure(t *testing.T) {
	overrides := &memoryOverrides{err: shared.ErrBackendUnavailable}
	svc, _ := newTestService(&memoryIdentity{}, overrides, &memoryAudit{})

	err := svc.GrantPermission(context.Background(), 1, PermReportsView, 1)
	require.ErrorIs(t, err, shared.ErrBackendUnavailable)
}

func TestAuditFailureDoesNotFailOverride(t *testing.T) {
	identity := &memoryIdentity{access: map[int64]Access{
		1: {Role: RoleGeneral},
	}}
	audit := &memoryAudit{err: errors.New("audit store down")}
	svc, gate := newTestService(identity, &memoryOverrides{}, audit)
	ctx := context.Background()

	require.NoError(t, svc.GrantPermission(ctx, 1, PermReportsView, 1))

	ok, err := gate.HasPermission(ctx, 1, PermReportsView)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestResetCacheClearsEveryPrincipal(t *testing.T) {
	identity := &memoryIdentity{access: map[int64]Access{
		1: {Role: RoleGeneral},
		2: {Role: RoleGeneral},
	}}
	svc, gate := newTestService(identity, &memoryOverrides{}, &memoryAudit{})
	ctx := context.Background()

	_, err := gate.HasPermission(ctx, 1, PermDashboardView)
	require.NoError(t, err)
	_, err = gate.HasPermission(ctx, 2, PermDashboardView)
	require.NoError(t, err)
	require.Equal(t, 2, identity.calls)

	svc.ResetCache()

	_, err = gate.HasPermission(ctx, 1, PermDashboardView)
	require.NoError(t, err)
	_, err = gate.HasPermission(ctx, 2, PermDashboardView)
	require.NoError(t, err)
	require.Equal(t, 4, identity.calls)
}
