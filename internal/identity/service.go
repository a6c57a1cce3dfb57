package identity

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-grants/meridian/internal/authz"
	"github.com/meridian-grants/meridian/internal/shared"
)

// Invalidator evicts cached permission sets after identity changes.
type Invalidator interface {
	Invalidate(principalID int64)
}

// AccessSource adapts the repository into the authorization identity
// port without dragging in the full service.
type AccessSource struct {
	repo Repository
}

// NewAccessSource builds AccessSource instance.
func NewAccessSource(repo Repository) *AccessSource {
	return &AccessSource{repo: repo}
}

// Access implements the authorization identity port.
func (a *AccessSource) Access(ctx context.Context, principalID int64) (authz.Access, error) {
	rec, err := a.repo.GetAccess(ctx, principalID)
	if err != nil {
		return authz.Access{}, err
	}
	return authz.Access{
		Role:         authz.ParseRole(rec.Role),
		HasProfile:   rec.HasProfile,
		Approved:     rec.Approved,
		ResearcherID: rec.ResearcherID,
	}, nil
}

var _ authz.IdentityPort = (*AccessSource)(nil)

// Service wraps identity business rules.
type Service struct {
	repo  Repository
	cache Invalidator
	audit shared.AuditPort
}

// NewService constructs a new Service.
func NewService(repo Repository, cache Invalidator, audit shared.AuditPort) *Service {
	return &Service{repo: repo, cache: cache, audit: audit}
}

// RegisterInput describes a registration payload.
type RegisterInput struct {
	Email        string
	Name         string
	Password     string
	Role         string
	DepartmentID int64
}

// Register creates a principal. Researcher and supervisor registrations
// carrying a department create an unapproved researcher profile.
func (s *Service) Register(ctx context.Context, input RegisterInput) (int64, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if input.Email == "" || input.Password == "" {
		return 0, fmt.Errorf("identity: email and password required: %w", shared.ErrValidation)
	}
	role := authz.ParseRole(input.Role)

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("identity: hash password: %w", err)
	}

	var profile *ResearcherProfile
	if (role == authz.RoleResearcher || role == authz.RoleSupervisor) && input.DepartmentID != 0 {
		profile = &ResearcherProfile{DepartmentID: input.DepartmentID}
	}

	return s.repo.CreatePrincipal(ctx, Principal{
		Email:        input.Email,
		Name:         strings.TrimSpace(input.Name),
		PasswordHash: string(hash),
		Role:         string(role),
	}, profile)
}

// Access implements the authorization identity port.
func (s *Service) Access(ctx context.Context, principalID int64) (authz.Access, error) {
	rec, err := s.repo.GetAccess(ctx, principalID)
	if err != nil {
		return authz.Access{}, err
	}
	return authz.Access{
		Role:         authz.ParseRole(rec.Role),
		HasProfile:   rec.HasProfile,
		Approved:     rec.Approved,
		ResearcherID: rec.ResearcherID,
	}, nil
}

// ApproveResearcher approves a researcher profile exactly once and
// evicts the principal's cached permissions so creation rights take
// effect immediately.
func (s *Service) ApproveResearcher(ctx context.Context, principalID, actorID int64) error {
	if err := s.repo.ApproveResearcher(ctx, principalID, actorID); err != nil {
		return err
	}
	s.cache.Invalidate(principalID)
	s.recordAudit(ctx, actorID, "RESEARCHER_APPROVE", principalID)
	return nil
}

// DeclineResearcher records a negative review. The profile stays
// unapproved; there is no distinct rejected state.
func (s *Service) DeclineResearcher(ctx context.Context, principalID, actorID int64) error {
	if err := s.repo.DeclineResearcher(ctx, principalID, actorID); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "RESEARCHER_DECLINE", principalID)
	return nil
}

// SetRole changes a principal's role and invalidates its cached
// permission set.
func (s *Service) SetRole(ctx context.Context, principalID int64, role string, actorID int64) error {
	parsed := authz.ParseRole(role)
	if err := s.repo.SetRole(ctx, principalID, string(parsed)); err != nil {
		return err
	}
	s.cache.Invalidate(principalID)
	s.recordAudit(ctx, actorID, "ROLE_CHANGE", principalID)
	return nil
}

// ListPrincipals returns all principals.
func (s *Service) ListPrincipals(ctx context.Context) ([]Principal, error) {
	return s.repo.ListPrincipals(ctx)
}

// FindByID fetches a single principal.
func (s *Service) FindByID(ctx context.Context, id int64) (*Principal, error) {
	return s.repo.FindByID(ctx, id)
}

// EmailFor resolves a principal's email address for notifications.
func (s *Service) EmailFor(ctx context.Context, principalID int64) (string, error) {
	p, err := s.repo.FindByID(ctx, principalID)
	if err != nil {
		return "", err
	}
	return p.Email, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, principalID int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "principal",
		EntityID: strconv.FormatInt(principalID, 10),
	})
}

var _ authz.IdentityPort = (*Service)(nil)
