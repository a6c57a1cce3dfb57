package identity

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-grants/meridian/internal/authz"
	"github.com/meridian-grants/meridian/internal/shared"
)

type memoryIdentityRepo struct {
	principals map[int64]Principal
	profiles   map[int64]ResearcherProfile
	nextID     int64
}

func newMemoryIdentityRepo() *memoryIdentityRepo {
	return &memoryIdentityRepo{
		principals: make(map[int64]Principal),
		profiles:   make(map[int64]ResearcherProfile),
	}
}

func (r *memoryIdentityRepo) FindByEmail(ctx context.Context, email string) (*Principal, error) {
	for _, p := range r.principals {
		if p.Email == email {
			cp := p
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryIdentityRepo) FindByID(ctx context.Context, id int64) (*Principal, error) {
	p, ok := r.principals[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := p
	return &cp, nil
}

func (r *memoryIdentityRepo) GetAccess(ctx context.Context, principalID int64) (AccessRecord, error) {
	p, ok := r.principals[principalID]
	if !ok {
		return AccessRecord{}, shared.ErrNotFound
	}
	rec := AccessRecord{Role: p.Role}
	if profile, ok := r.profiles[principalID]; ok {
		rec.HasProfile = true
		rec.Approved = profile.IsApproved
		rec.ResearcherID = principalID
	}
	return rec, nil
}

func (r *memoryIdentityRepo) CreatePrincipal(ctx context.Context, p Principal, profile *ResearcherProfile) (int64, error) {
	for _, existing := range r.principals {
		if existing.Email == p.Email {
			return 0, fmt.Errorf("email taken: %w", shared.ErrConflict)
		}
	}
	r.nextID++
	p.ID = r.nextID
	p.IsActive = true
	r.principals[p.ID] = p
	if profile != nil {
		profile.PrincipalID = p.ID
		r.profiles[p.ID] = *profile
	}
	return p.ID, nil
}

func (r *memoryIdentityRepo) ApproveResearcher(ctx context.Context, principalID, actorID int64) error {
	profile, ok := r.profiles[principalID]
	if !ok {
		return shared.ErrNotFound
	}
	if profile.IsApproved || profile.ReviewedAt != nil {
		return fmt.Errorf("profile already reviewed: %w", shared.ErrConflict)
	}
	now := time.Now()
	profile.IsApproved = true
	profile.ReviewedAt = &now
	profile.ReviewedBy = &actorID
	r.profiles[principalID] = profile
	return nil
}

func (r *memoryIdentityRepo) DeclineResearcher(ctx context.Context, principalID, actorID int64) error {
	profile, ok := r.profiles[principalID]
	if !ok {
		return shared.ErrNotFound
	}
	if profile.IsApproved || profile.ReviewedAt != nil {
		return fmt.Errorf("profile already reviewed: %w", shared.ErrConflict)
	}
	now := time.Now()
	profile.ReviewedAt = &now
	profile.ReviewedBy = &actorID
	r.profiles[principalID] = profile
	return nil
}

func (r *memoryIdentityRepo) SetRole(ctx context.Context, principalID int64, role string) error {
	p, ok := r.principals[principalID]
	if !ok {
		return shared.ErrNotFound
	}
	p.Role = role
	r.principals[principalID] = p
	return nil
}

func (r *memoryIdentityRepo) ListPrincipals(ctx context.Context) ([]Principal, error) {
	out := make([]Principal, 0, len(r.principals))
	for _, p := range r.principals {
		out = append(out, p)
	}
	return out, nil
}

type recordingInvalidator struct {
	invalidated []int64
}

func (r *recordingInvalidator) Invalidate(principalID int64) {
	r.invalidated = append(r.invalidated, principalID)
}

type nullAudit struct{}

func (nullAudit) Record(ctx context.Context, entry shared.AuditLog) error { return nil }

func registerResearcher(t *testing.T, svc *Service) int64 {
	t.Helper()
	id, err := svc.Register(context.Background(), RegisterInput{
		Email:        "r@uni.edu",
		Name:         "R",
		Password:     "secret123",
		Role:         "RESEARCHER",
		DepartmentID: 1,
	})
	require.NoError(t, err)
	return id
}

func TestRegisterCreatesUnapprovedProfile(t *testing.T) {
	repo := newMemoryIdentityRepo()
	svc := NewService(repo, &recordingInvalidator{}, nullAudit{})

	id := registerResearcher(t, svc)

	access, err := svc.Access(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, authz.RoleResearcher, access.Role)
	require.True(t, access.HasProfile)
	require.False(t, access.Approved, "new profiles start unapproved")
}

func TestRegisterGeneralUserHasNoProfile(t *testing.T) {
	repo := newMemoryIdentityRepo()
	svc := NewService(repo, &recordingInvalidator{}, nullAudit{})

	id, err := svc.Register(context.Background(), RegisterInput{
		Email:    "g@uni.edu",
		Password: "secret123",
		Role:     "GENERAL_USER",
	})
	require.NoError(t, err)

	access, err := svc.Access(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, authz.RoleGeneral, access.Role)
	require.False(t, access.HasProfile)
}

func TestRegisterUnknownRoleFallsBackToGeneral(t *testing.T) {
	repo := newMemoryIdentityRepo()
	svc := NewService(repo, &recordingInvalidator{}, nullAudit{})

	id, err := svc.Register(context.Background(), RegisterInput{
		Email:    "x@uni.edu",
		Password: "secret123",
		Role:     "WIZARD",
	})
	require.NoError(t, err)

	access, err := svc.Access(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, authz.RoleGeneral, access.Role)
}

func TestApproveResearcherExactlyOnce(t *testing.T) {
	repo := newMemoryIdentityRepo()
	cache := &recordingInvalidator{}
	svc := NewService(repo, cache, nullAudit{})
	ctx := context.Background()

	id := registerResearcher(t, svc)

	require.NoError(t, svc.ApproveResearcher(ctx, id, 99))
	require.Contains(t, cache.invalidated, id, "approval must evict the cached permission set")

	access, err := svc.Access(ctx, id)
	require.NoError(t, err)
	require.True(t, access.Approved)

	err = svc.ApproveResearcher(ctx, id, 99)
	require.ErrorIs(t, err, shared.ErrConflict, "second approval is rejected")
}

func TestDeclineLeavesProfileUnapproved(t *testing.T) {
	repo := newMemoryIdentityRepo()
	svc := NewService(repo, &recordingInvalidator{}, nullAudit{})
	ctx := context.Background()

	id := registerResearcher(t, svc)
	require.NoError(t, svc.DeclineResearcher(ctx, id, 99))

	access, err := svc.Access(ctx, id)
	require.NoError(t, err)
	require.False(t, access.Approved)

	err = svc.ApproveResearcher(ctx, id, 99)
	require.ErrorIs(t, err, shared.ErrConflict, "a declined profile cannot be approved later without a new review")
}

func TestSetRoleInvalidatesCache(t *testing.T) {
	repo := newMemoryIdentityRepo()
	cache := &recordingInvalidator{}
	svc := NewService(repo, cache, nullAudit{})
	ctx := context.Background()

	id := registerResearcher(t, svc)
	require.NoError(t, svc.SetRole(ctx, id, "SUPERVISOR", 99))
	require.Contains(t, cache.invalidated, id)

	access, err := svc.Access(ctx, id)
	require.NoError(t, err)
	require.Equal(t, authz.RoleSupervisor, access.Role)
}

func TestEmailFor(t *testing.T) {
	repo := newMemoryIdentityRepo()
	svc := NewService(repo, &recordingInvalidator{}, nullAudit{})

	id := registerResearcher(t, svc)
	email, err := svc.EmailFor(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "r@uni.edu", email)

	_, err = svc.EmailFor(context.Background(), 9999)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
