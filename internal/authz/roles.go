package authz

// Role is the closed set of account roles.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleSupervisor Role = "SUPERVISOR"
	RoleResearcher Role = "RESEARCHER"
	RoleGeneral    Role = "GENERAL_USER"
)

// ParseRole maps a stored role string onto the closed set. Unrecognized
// values fall back to RoleGeneral so a corrupted row never grants more
// than the base permissions.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin
	case RoleSupervisor:
		return RoleSupervisor
	case RoleResearcher:
		return RoleResearcher
	default:
		return RoleGeneral
	}
}

// ResearcherState carries the researcher-profile facts that influence
// role derivation.
type ResearcherState struct {
	HasProfile bool
	Approved   bool
}

// Set is a resolved permission set.
type Set map[Permission]struct{}

// Has reports membership.
func (s Set) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Clone returns an independent copy.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for p := range s {
		out[p] = struct{}{}
	}
	return out
}

func (s Set) add(perms ...Permission) {
	for _, p := range perms {
		s[p] = struct{}{}
	}
}

// Derive computes the base permission set for a role and researcher
// state. It is pure: no I/O, no hidden state, identical output for
// identical input.
func Derive(role Role, state ResearcherState) Set {
	set := make(Set)
	set.add(GeneralScopes()...)

	switch role {
	case RoleAdmin:
		set.add(AllScopes()...)
	case RoleSupervisor:
		set.add(
			PermProposalsReview,
			PermProposalsApprove,
			PermProposalsViewAll,
			PermProjectsSupervise,
			PermProjectsEvaluate,
			PermProjectsViewAll,
			PermFinanceView,
			PermReportsView,
			PermReportsExport,
			PermFeedbackView,
			PermFeedbackGive,
			PermNotificationsView,
			PermNotificationsSend,
		)
		// A supervisor with a researcher profile can see their own
		// proposals and projects, but never gains create/edit rights
		// through this branch.
		if state.HasProfile {
			set.add(PermProposalsViewOwn, PermProjectsViewOwn)
		}
	case RoleResearcher:
		set.add(
			PermProposalsViewOwn,
			PermProjectsViewOwn,
			PermProjectsProgressUpdate,
			PermFeedbackView,
			PermReportsView,
			PermNotificationsView,
		)
		if state.Approved {
			set.add(PermProposalsCreate, PermProposalsEditOwn)
		}
	case RoleGeneral:
		// Base only.
	}

	return set
}
