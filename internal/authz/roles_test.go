package authz

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRoleFallsBackToGeneral(t *testing.T) {
	require.Equal(t, RoleAdmin, ParseRole("ADMIN"))
	require.Equal(t, RoleSupervisor, ParseRole("SUPERVISOR"))
	require.Equal(t, RoleResearcher, ParseRole("RESEARCHER"))
	require.Equal(t, RoleGeneral, ParseRole("GENERAL_USER"))
	require.Equal(t, RoleGeneral, ParseRole("SUPERUSER"))
	require.Equal(t, RoleGeneral, ParseRole(""))
}

func TestDeriveIsPure(t *testing.T) {
	state := ResearcherState{HasProfile: true, Approved: true}

	first := Derive(RoleResearcher, state)
	second := Derive(RoleResearcher, state)
	require.Equal(t, first, second)

	// Mutating one result must not leak into later derivations.
	delete(first, PermProposalsCreate)
	third := Derive(RoleResearcher, state)
	require.True(t, third.Has(PermProposalsCreate))
}

func TestDeriveAdminGetsFullCatalog(t *testing.T) {
	set := Derive(RoleAdmin, ResearcherState{})
	for _, p := range AllScopes() {
		require.True(t, set.Has(p), "admin missing %s", p)
	}
}

func TestDeriveGeneralGetsBaseOnly(t *testing.T) {
	set := Derive(RoleGeneral, ResearcherState{})
	require.Equal(t, len(GeneralScopes()), len(set))
	for _, p := range GeneralScopes() {
		require.True(t, set.Has(p))
	}
	require.False(t, set.Has(PermProposalsCreate))
	require.False(t, set.Has(PermUsersView))
}

func TestDeriveSupervisor(t *testing.T) {
	set := Derive(RoleSupervisor, ResearcherState{})
	require.True(t, set.Has(PermProposalsReview))
	require.True(t, set.Has(PermProposalsApprove))
	require.True(t, set.Has(PermProjectsSupervise))
	require.False(t, set.Has(PermProposalsViewOwn))
	require.False(t, set.Has(PermProposalsCreate))
	require.False(t, set.Has(PermAdminPermissions))

	// A supervisor with a researcher profile sees their own work but
	// still cannot create or edit proposals.
	withProfile := Derive(RoleSupervisor, ResearcherState{HasProfile: true, Approved: true})
	require.True(t, withProfile.Has(PermProposalsViewOwn))
	require.True(t, withProfile.Has(PermProjectsViewOwn))
	require.False(t, withProfile.Has(PermProposalsCreate))
	require.False(t, withProfile.Has(PermProposalsEditOwn))
}

func TestDeriveResearcherApprovalGatesCreation(t *testing.T) {
	pending := Derive(RoleResearcher, ResearcherState{HasProfile: true, Approved: false})
	require.True(t, pending.Has(PermProposalsViewOwn))
	require.True(t, pending.Has(PermProjectsProgressUpdate))
	require.False(t, pending.Has(PermProposalsCreate))
	require.False(t, pending.Has(PermProposalsEditOwn))

	approved := Derive(RoleResearcher, ResearcherState{HasProfile: true, Approved: true})
	require.True(t, approved.Has(PermProposalsCreate))
	require.True(t, approved.Has(PermProposalsEditOwn))
	require.False(t, approved.Has(PermProposalsReview))
}

func TestSetClone(t *testing.T) {
	set := Derive(RoleResearcher, ResearcherState{Approved: true})
	clone := set.Clone()
	delete(clone, PermProposalsCreate)
	require.True(t, set.Has(PermProposalsCreate))
}

func TestKnownRejectsUnlistedTokens(t *testing.T) {
	require.True(t, Known(PermProposalsCreate))
	require.False(t, Known(Permission("proposals.delete")))
	require.False(t, Known(Permission("")))
}
