package authz

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/meridian-grants/meridian/internal/observability"
)

// DefaultTTL bounds how long a resolved permission set may be served
// from cache without recomputation.
const DefaultTTL = 5 * time.Minute

// Access carries the identity facts required to derive permissions.
type Access struct {
	Role         Role
	HasProfile   bool
	Approved     bool
	ResearcherID int64
}

// IdentityPort looks up role and researcher-approval state for a
// principal. Implementations return shared.ErrNotFound when the
// principal does not exist and wrap shared.ErrBackendUnavailable when
// the lookup itself fails.
type IdentityPort interface {
	Access(ctx context.Context, principalID int64) (Access, error)
}

type cacheEntry struct {
	set     Set
	expires time.Time
}

// Resolver computes and caches resolved permission sets per principal.
// It is the only shared mutable state in the authorization core and is
// safe for concurrent use. Concurrent misses for the same principal are
// collapsed into a single recomputation, and a set is only published
// once the full override list has been applied.
type Resolver struct {
	identity  IdentityPort
	overrides OverrideRepository
	ttl       time.Duration
	metrics   *observability.Metrics

	mu      sync.Mutex
	entries map[int64]cacheEntry
	gens    map[int64]uint64
	epoch   uint64
	group   singleflight.Group

	now func() time.Time
}

// NewResolver constructs a Resolver. A non-positive ttl falls back to
// DefaultTTL.
func NewResolver(identity IdentityPort, overrides OverrideRepository, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Resolver{
		identity:  identity,
		overrides: overrides,
		ttl:       ttl,
		entries:   make(map[int64]cacheEntry),
		gens:      make(map[int64]uint64),
		now:       time.Now,
	}
}

// SetMetrics attaches cache event counters. Optional.
func (r *Resolver) SetMetrics(m *observability.Metrics) {
	r.metrics = m
}

// Resolve returns the principal's resolved permission set, serving a
// cached copy when one is still fresh.
func (r *Resolver) Resolve(ctx context.Context, principalID int64) (Set, error) {
	if set, ok := r.cached(principalID); ok {
		r.metrics.CacheEvent("hit")
		return set, nil
	}
	r.metrics.CacheEvent("miss")

	v, err, _ := r.group.Do(strconv.FormatInt(principalID, 10), func() (any, error) {
		return r.compute(ctx, principalID)
	})
	if err != nil {
		return nil, err
	}
	return v.(Set).Clone(), nil
}

func (r *Resolver) compute(ctx context.Context, principalID int64) (Set, error) {
	gen, epoch := r.generation(principalID)

	access, err := r.identity.Access(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("authz: resolve principal %d: %w", principalID, err)
	}

	overrides, err := r.overrides.ListOverrides(ctx, principalID)
	if err != nil {
		return nil, err
	}

	set := Derive(access.Role, ResearcherState{HasProfile: access.HasProfile, Approved: access.Approved})
	for _, o := range overrides {
		if !Known(o.Permission) {
			continue
		}
		if o.Granted {
			set[o.Permission] = struct{}{}
		} else {
			delete(set, o.Permission)
		}
	}

	// An unapproved researcher never holds proposal creation or edit
	// rights, not even through an explicit override grant.
	if access.Role == RoleResearcher && !access.Approved {
		delete(set, PermProposalsCreate)
		delete(set, PermProposalsEditOwn)
	}

	r.publish(principalID, set, gen, epoch)
	return set, nil
}

// Invalidate evicts the principal's cache entry. Callers that change
// overrides must invalidate before reporting success so an immediate
// re-check observes the new state.
func (r *Resolver) Invalidate(principalID int64) {
	r.mu.Lock()
	delete(r.entries, principalID)
	r.gens[principalID]++
	r.mu.Unlock()
	r.group.Forget(strconv.FormatInt(principalID, 10))
	r.metrics.CacheEvent("invalidate")
}

// InvalidateAll clears the entire cache, for administrative resets.
func (r *Resolver) InvalidateAll() {
	r.mu.Lock()
	r.entries = make(map[int64]cacheEntry)
	r.epoch++
	r.mu.Unlock()
	r.metrics.CacheEvent("reset")
}

func (r *Resolver) cached(principalID int64) (Set, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[principalID]
	if !ok || r.now().After(entry.expires) {
		return nil, false
	}
	return entry.set.Clone(), true
}

func (r *Resolver) generation(principalID int64) (uint64, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gens[principalID], r.epoch
}

// publish caches a computed set unless an invalidation landed while it
// was being computed. Storing it anyway would resurrect pre-write state
// past the eviction that Grant/Revoke perform before returning.
func (r *Resolver) publish(principalID int64, set Set, gen, epoch uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gens[principalID] != gen || r.epoch != epoch {
		return
	}
	r.entries[principalID] = cacheEntry{set: set.Clone(), expires: r.now().Add(r.ttl)}
}
