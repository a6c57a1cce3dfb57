package authz

import "context"

// Gate answers authorization queries against resolved permission sets.
// All queries are read-only apart from the cache population performed
// by Resolve.
type Gate struct {
	resolver *Resolver
	routes   map[string][]Permission
}

// NewGate constructs a Gate. A nil route table means every route is
// unrestricted.
func NewGate(resolver *Resolver, routes map[string][]Permission) *Gate {
	return &Gate{resolver: resolver, routes: routes}
}

// HasPermission reports whether the principal holds the permission.
// Unknown tokens are denied. Resolution errors propagate: an
// inconclusive check is never reported as a plain deny.
func (g *Gate) HasPermission(ctx context.Context, principalID int64, perm Permission) (bool, error) {
	if !Known(perm) {
		return false, nil
	}
	set, err := g.resolver.Resolve(ctx, principalID)
	if err != nil {
		return false, err
	}
	return set.Has(perm), nil
}

// HasAnyPermission reports whether the principal holds at least one of
// the permissions.
func (g *Gate) HasAnyPermission(ctx context.Context, principalID int64, perms []Permission) (bool, error) {
	set, err := g.resolver.Resolve(ctx, principalID)
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if Known(p) && set.Has(p) {
			return true, nil
		}
	}
	return false, nil
}

// HasAllPermissions reports whether the principal holds every
// permission in the list.
func (g *Gate) HasAllPermissions(ctx context.Context, principalID int64, perms []Permission) (bool, error) {
	set, err := g.resolver.Resolve(ctx, principalID)
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if !Known(p) || !set.Has(p) {
			return false, nil
		}
	}
	return true, nil
}

// Missing returns the permissions from the list the principal does not
// hold, for diagnostics in denial messages.
func (g *Gate) Missing(ctx context.Context, principalID int64, perms []Permission) ([]Permission, error) {
	set, err := g.resolver.Resolve(ctx, principalID)
	if err != nil {
		return nil, err
	}
	var missing []Permission
	for _, p := range perms {
		if !Known(p) || !set.Has(p) {
			missing = append(missing, p)
		}
	}
	return missing, nil
}

// CanAccessRoute checks the static route table. Routes without an entry
// are allowed by default: most pages are unrestricted and the table
// only names the ones that are not. A listed route requires any one of
// its permissions.
func (g *Gate) CanAccessRoute(ctx context.Context, principalID int64, route string) (bool, error) {
	required, ok := g.routes[route]
	if !ok {
		return true, nil
	}
	return g.HasAnyPermission(ctx, principalID, required)
}

// DefaultRouteTable maps restricted routes to the permissions that
// unlock them.
func DefaultRouteTable() map[string][]Permission {
	return map[string][]Permission{
		"/api/v1/users":            {PermUsersView},
		"/api/v1/users/approve":    {PermUsersApprove},
		"/api/v1/permissions":      {PermAdminPermissions},
		"/api/v1/proposals/review": {PermProposalsReview, PermProposalsApprove},
		"/api/v1/finance":          {PermFinanceView, PermFinanceManage},
		"/api/v1/reports":          {PermReportsView},
		"/api/v1/audit":            {PermAuditView},
		"/api/v1/settings":         {PermAdminSettings},
	}
}
