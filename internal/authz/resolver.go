package authz

import (
	"context"
	"strings"
	"sync"

	"github.com/amiezra1/mrg/internal/domain"
	"github.com/amiezra1/mrg/internal/logger"
)

// RoleSource supplies the directory group names of the active identity.
// It is an external collaborator: when absent or failing, the resolver
// falls back to the viewer role.
type RoleSource interface {
	Groups(ctx context.Context) ([]string, error)
}

// DefaultGroupRoles returns the built-in directory group to role mapping
func DefaultGroupRoles() map[string]domain.Role {
	return map[string]domain.Role{
		"owners":       domain.RoleAdmin,
		"contributors": domain.RoleContributor,
		"members":      domain.RoleContributor,
		"viewers":      domain.RoleViewer,
	}
}

// RoleResolver infers a default role from directory group membership when no
// explicit session user exists. Successful lookups are cached until Reset.
type RoleResolver struct {
	mu      sync.Mutex
	source  RoleSource
	mapping map[string]domain.Role
	cached  *domain.Role
	log     logger.Logger
}

// NewRoleResolver creates a resolver over the given source and mapping.
// A nil source means no directory environment: resolution yields viewer.
// A nil mapping uses DefaultGroupRoles.
func NewRoleResolver(source RoleSource, mapping map[string]domain.Role, log logger.Logger) *RoleResolver {
	if mapping == nil {
		mapping = DefaultGroupRoles()
	}
	if log == nil {
		log = logger.Get()
	}
	return &RoleResolver{
		source:  source,
		mapping: mapping,
		log:     log,
	}
}

// Resolve returns the inferred role. An admin group match wins outright;
// a contributor match keeps scanning in case a later group grants admin.
// Lookup failures resolve to viewer and are not cached.
func (r *RoleResolver) Resolve(ctx context.Context) domain.Role {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != nil {
		return *r.cached
	}

	if r.source == nil {
		r.log.Debug("no directory environment, defaulting to viewer role")
		return domain.RoleViewer
	}

	groups, err := r.source.Groups(ctx)
	if err != nil {
		r.log.Warn("failed to fetch directory groups, defaulting to viewer role", "error", err)
		return domain.RoleViewer
	}

	role := domain.RoleViewer
	for _, group := range groups {
		switch r.mapping[strings.ToLower(group)] {
		case domain.RoleAdmin:
			role = domain.RoleAdmin
		case domain.RoleContributor:
			if role != domain.RoleAdmin {
				role = domain.RoleContributor
			}
		}
		if role == domain.RoleAdmin {
			break
		}
	}

	r.cached = &role
	r.log.Debug("resolved directory role", "role", string(role))
	return role
}

// Reset clears the cached role so the next Resolve re-queries the source
func (r *RoleResolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cached = nil
}
