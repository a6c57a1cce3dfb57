package authz

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-grants/meridian/internal/shared"
)

type memoryIdentity struct {
	access map[int64]Access
	err    error
	calls  int
}

func (m *memoryIdentity) Access(ctx context.Context, principalID int64) (Access, error) {
	m.calls++
	if m.err != nil {
		return Access{}, m.err
	}
	a, ok := m.access[principalID]
	if !ok {
		return Access{}, fmt.Errorf("principal %d: %w", principalID, shared.ErrNotFound)
	}
	return a, nil
}

type memoryOverrides struct {
	items map[int64][]Override
	err   error

	// onList fires after the snapshot is taken, simulating writes that
	// land while a resolve is still computing.
	onList func()
}

func (m *memoryOverrides) ListOverrides(ctx context.Context, principalID int64) ([]Override, error) {
	if m.err != nil {
		return nil, m.err
	}
	list := append([]Override(nil), m.items[principalID]...)
	if m.onList != nil {
		m.onList()
	}
	return list, nil
}

func (m *memoryOverrides) UpsertOverride(ctx context.Context, principalID int64, perm Permission, granted bool, actorID int64) error {
	if m.err != nil {
		return m.err
	}
	if m.items == nil {
		m.items = make(map[int64][]Override)
	}
	for i, o := range m.items[principalID] {
		if o.Permission == perm {
			m.items[principalID][i].Granted = granted
			m.items[principalID][i].ActorID = actorID
			m.items[principalID][i].UpdatedAt = time.Now()
			return nil
		}
	}
	m.items[principalID] = append(m.items[principalID], Override{
		PrincipalID: principalID,
		Permission:  perm,
		Granted:     granted,
		ActorID:     actorID,
		UpdatedAt:   time.Now(),
	})
	return nil
}

func newTestResolver(identity *memoryIdentity, overrides *memoryOverrides) *Resolver {
	return NewResolver(identity, overrides, DefaultTTL)
}

func TestResolveAppliesOverrides(t *testing.T) {
	identity := &memoryIdentity{access: map[int64]Access{
		7: {Role: RoleResearcher, HasProfile: true, Approved: true},
	}}
	overrides := &memoryOverrides{items: map[int64][]Override{
		7: {
			{PrincipalID: 7, Permission: PermReportsExport, Granted: true},
			{PrincipalID: 7, Permission: PermProjectsProgressUpdate, Granted: false},
		},
	}}
	resolver := newTestResolver(identity, overrides)

	set, err := resolver.Resolve(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, set.Has(PermReportsExport), "override grant must add")
	require.False(t, set.Has(PermProjectsProgressUpdate), "override revoke must remove")
	require.True(t, set.Has(PermProposalsCreate), "role-derived rights survive unrelated overrides")
}

func TestResolveSkipsUnknownOverrideTokens(t *testing.T) {
	identity := &memoryIdentity{access: map[int64]Access{
		3: {Role: RoleGeneral},
	}}
	overrides := &memoryOverrides{items: map[int64][]Override{
		3: {{PrincipalID: 3, Permission: Permission("proposals.delete"), Granted: true}},
	}}
	resolver := newTestResolver(identity, overrides)

	set, err := resolver.Resolve(context.Background(), 3)
	require.NoError(t, err)
	require.False(t, set.Has(Permission("proposals.delete")))
}

func TestResolveUnapprovedResearcherGuardBeatsOverrides(t *testing.T) {
	identity := &memoryIdentity{access: map[int64]Access{
		5: {Role: RoleResearcher, HasProfile: true, Approved: false},
	}}
	overrides := &memoryOverrides{items: map[int64][]Override{
		5: {
			{PrincipalID: 5, Permission: PermProposalsCreate, Granted: true},
			{PrincipalID: 5, Permission: PermProposalsEditOwn, Granted: true},
			{PrincipalID: 5, Permission: PermReportsExport, Granted: true},
		},
	}}
	resolver := newTestResolver(identity, overrides)

	set, err := resolver.Resolve(context.Background(), 5)
	require.NoError(t, err)
	require.False(t, set.Has(PermProposalsCreate), "unapproved researcher never creates, even via override")
	require.False(t, set.Has(PermProposalsEditOwn))
	require.True(t, set.Has(PermReportsExport), "guard only strips creation rights")
}

func TestResolveServesCachedSet(t *testing.T) {
	identity := &memoryIdentity{access: map[int64]Access{
		1: {Role: RoleGeneral},
	}}
	resolver := newTestResolver(identity, &memoryOverrides{})

	_, err := resolver.Resolve(context.Background(), 1)
	require.NoError(t, err)
	_, err = resolver.Resolve(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 1, identity.calls, "second resolve must be served from cache")
}

func TestResolveCacheExpires(t *testing.T) {
	identity := &memoryIdentity{access: map[int64]Access{
		1: {Role: RoleGeneral},
	}}
	resolver := newTestResolver(identity, &memoryOverrides{})

	now := time.Now()
	resolver.now = func() time.Time { return now }

	_, err := resolver.Resolve(context.Background(), 1)
	require.NoError(t, err)

	now = now.Add(DefaultTTL + time.Second)
	_, err = resolver.Resolve(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 2, identity.calls, "expired entry must be recomputed")
}

func TestInvalidateEvictsEntry(t *testing.T) {
	identity := &memoryIdentity{access: map[int64]Access{
		1: {Role: RoleGeneral},
	}}
	resolver := newTestResolver(identity, &memoryOverrides{})

	_, err := resolver.Resolve(context.Background(), 1)
	require.NoError(t, err)
	resolver.Invalidate(1)
	_, err = resolver.Resolve(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 2, identity.calls)
}

func TestInvalidateDuringResolveIsNotOverwritten(t *testing.T) {
	identity := &memoryIdentity{access: map[int64]Access{
		1: {Role: RoleGeneral},
	}}
	overrides := &memoryOverrides{}
	resolver := newTestResolver(identity, overrides)
	ctx := context.Background()

	// A grant lands after the in-flight resolve snapshotted the
	// override list but before it publishes.
	overrides.onList = func() {
		overrides.onList = nil
		require.NoError(t, overrides.UpsertOverride(ctx, 1, PermReportsView, true, 9))
		resolver.Invalidate(1)
	}

	stale, err := resolver.Resolve(ctx, 1)
	require.NoError(t, err)
	require.False(t, stale.Has(PermReportsView), "in-flight resolve computed before the grant")

	fresh, err := resolver.Resolve(ctx, 1)
	require.NoError(t, err)
	require.True(t, fresh.Has(PermReportsView), "grant must be visible on the first resolve after invalidation")
	require.Equal(t, 2, identity.calls, "the stale snapshot must not have been cached")
}

func TestInvalidateAllDuringResolveIsNotOverwritten(t *testing.T) {
	identity := &memoryIdentity{access: map[int64]Access{
		1: {Role: RoleGeneral},
	}}
	overrides := &memoryOverrides{}
	resolver := newTestResolver(identity, overrides)
	ctx := context.Background()

	overrides.onList = func() {
		overrides.onList = nil
		require.NoError(t, overrides.UpsertOverride(ctx, 1, PermReportsView, true, 9))
		resolver.InvalidateAll()
	}

	_, err := resolver.Resolve(ctx, 1)
	require.NoError(t, err)

	fresh, err := resolver.Resolve(ctx, 1)
	require.NoError(t, err)
	require.True(t, fresh.Has(PermReportsView))
	require.Equal(t, 2, identity.calls)
}

func TestResolveReturnsIndependentCopies(t *testing.T) {
	identity := &memoryIdentity{access: map[int64]Access{
		1: {Role: RoleGeneral},
	}}
	resolver := newTestResolver(identity, &memoryOverrides{})

	first, err := resolver.Resolve(context.Background(), 1)
	require.NoError(t, err)
	first.add(PermAdminPermissions)

	second, err := resolver.Resolve(context.Background(), 1)
	require.NoError(t, err)
	require.False(t, second.Has(PermAdminPermissions), "caller mutation must not poison the cache")
}

func TestResolvePropagatesBackendFailure(t *testing.T) {
	identity := &memoryIdentity{
		err: fmt.Errorf("identity lookup: %w", shared.ErrBackendUnavailable),
	}
	resolver := newTestResolver(identity, &memoryOverrides{})

	_, err := resolver.Resolve(context.Background(), 1)
	require.ErrorIs(t, err, shared.ErrBackendUnavailable)

	overrides := &memoryOverrides{err: fmt.Errorf("overrides: %w", shared.ErrBackendUnavailable)}
	resolver = newTestResolver(&memoryIdentity{access: map[int64]Access{1: {Role: RoleGeneral}}}, overrides)

	_, err = resolver.Resolve(context.Background(), 1)
	require.ErrorIs(t, err, shared.ErrBackendUnavailable)
}
