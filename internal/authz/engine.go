// Package authz resolves the active identity to a permission set and gates
// every guarded action behind yes/no predicates.
package authz

import (
	"context"
	"sync"

	"github.com/amiezra1/mrg/internal/domain"
	"github.com/amiezra1/mrg/internal/events"
	"github.com/amiezra1/mrg/internal/logger"
)

// SessionStore persists identity state across reloads. Sessions have no
// expiry; they are cleared only by explicit logout.
type SessionStore interface {
	SaveSession(session domain.Session) error
	LoadSession() (*domain.Session, error)
	ClearSession() error
}

// Credential is one row of the static credential table
type Credential struct {
	Username    string
	Password    string
	DisplayName string
	Role        domain.Role
	Permissions []domain.Capability
}

// User returns the session user this credential grants
func (c Credential) User() domain.User {
	perms := make([]domain.Capability, len(c.Permissions))
	copy(perms, c.Permissions)
	return domain.User{
		Username:    c.Username,
		DisplayName: c.DisplayName,
		Role:        c.Role,
		Permissions: perms,
	}
}

// DefaultCredentials returns the built-in credential table
func DefaultCredentials() []Credential {
	return []Credential{
		{
			Username:    "admin",
			Password:    "admin123",
			DisplayName: "Administrator",
			Role:        domain.RoleAdmin,
			Permissions: []domain.Capability{domain.CapView, domain.CapAdd, domain.CapDelete, domain.CapEditRoot},
		},
		{
			Username:    "contributor",
			Password:    "cont123",
			DisplayName: "Contributing User",
			Role:        domain.RoleContributor,
			Permissions: []domain.Capability{domain.CapView, domain.CapAdd, domain.CapDelete},
		},
		{
			Username:    "viewer",
			Password:    "view123",
			DisplayName: "Viewing User",
			Role:        domain.RoleViewer,
			Permissions: []domain.Capability{domain.CapView},
		},
	}
}

// Options configures an Engine. Zero values get sane defaults.
type Options struct {
	// Credentials is the static login table; nil uses DefaultCredentials
	Credentials []Credential

	// Sessions persists identity across reloads; nil disables persistence
	Sessions SessionStore

	// Resolver infers a fallback role for anonymous identities; nil means
	// every anonymous check resolves to viewer
	Resolver *RoleResolver

	// Bus receives login/logout events; nil disables notification
	Bus *events.Broadcaster

	// Logger defaults to the global logger
	Logger logger.Logger
}

// Engine is the authorization state machine over identity. States are
// anonymous and session-user, plus a single AdminOverride flag that both the
// role-derived path and the direct-flag path assign. Either grant alone
// bypasses all capability checks.
type Engine struct {
	mu            sync.RWMutex
	creds         []Credential
	current       *domain.User
	adminOverride bool
	resolver      *RoleResolver
	sessions      SessionStore
	bus           *events.Broadcaster
	log           logger.Logger
}

// NewEngine constructs an engine and restores any persisted session
func NewEngine(opts Options) *Engine {
	if opts.Credentials == nil {
		opts.Credentials = DefaultCredentials()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Get()
	}
	if opts.Resolver == nil {
		opts.Resolver = NewRoleResolver(nil, nil, opts.Logger)
	}

	e := &Engine{
		creds:    opts.Credentials,
		resolver: opts.Resolver,
		sessions: opts.Sessions,
		bus:      opts.Bus,
		log:      opts.Logger,
	}

	e.restore()
	return e
}

// restore loads the persisted session, if any
func (e *Engine) restore() {
	if e.sessions == nil {
		return
	}

	session, err := e.sessions.LoadSession()
	if err != nil {
		e.log.Warn("failed to restore session", "error", err)
		return
	}
	if session == nil {
		return
	}

	e.current = session.User
	e.adminOverride = session.AdminOverride
	if e.current != nil && e.current.Role == domain.RoleAdmin {
		e.adminOverride = true
	}
	e.log.Info("session restored", "adminOverride", e.adminOverride)
}

// Login authenticates against the static credential table. A miss is an
// expected outcome and returns false without an error.
func (e *Engine) Login(username, password string) bool {
	var matched *Credential
	for i := range e.creds {
		if e.creds[i].Username == username && e.creds[i].Password == password {
			matched = &e.creds[i]
			break
		}
	}
	if matched == nil {
		e.log.Info("login rejected", "username", username)
		return false
	}

	e.mu.Lock()
	user := matched.User()
	e.current = &user
	if user.Role == domain.RoleAdmin {
		e.adminOverride = true
	}
	e.persistLocked()
	e.mu.Unlock()

	e.log.Info("user logged in", "username", username, "role", string(user.Role))
	e.publish(events.EventLogin, username)
	return true
}

// Logout clears the session, the admin override, and the cached fallback role
func (e *Engine) Logout() {
	e.mu.Lock()
	var username string
	if e.current != nil {
		username = e.current.Username
	}
	e.current = nil
	e.adminOverride = false
	if e.sessions != nil {
		if err := e.sessions.ClearSession(); err != nil {
			e.log.Warn("failed to clear persisted session", "error", err)
		}
	}
	e.mu.Unlock()

	e.resolver.Reset()
	e.log.Info("user logged out", "username", username)
	e.publish(events.EventLogout, username)
}

// CurrentUser returns a copy of the active session user, or nil
func (e *Engine) CurrentUser() *domain.User {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.current == nil {
		return nil
	}
	user := *e.current
	return &user
}

// IsAdmin reports the unified admin override, regardless of whether it was
// granted by logging in as admin or by SetAdminOverride
func (e *Engine) IsAdmin() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.adminOverride
}

// SetAdminOverride grants or revokes the admin override directly.
// Granting with no active session adopts the built-in admin user so the
// session survives reloads. Revoking while an admin session is active logs
// that session out entirely.
func (e *Engine) SetAdminOverride(on bool) {
	if on {
		e.mu.Lock()
		e.adminOverride = true
		if e.current == nil {
			for i := range e.creds {
				if e.creds[i].Role == domain.RoleAdmin {
					user := e.creds[i].User()
					e.current = &user
					break
				}
			}
		}
		e.persistLocked()
		e.mu.Unlock()

		e.log.Info("admin override enabled")
		e.publish(events.EventLogin, "admin")
		return
	}

	e.mu.Lock()
	adminSession := e.current != nil && e.current.Role == domain.RoleAdmin
	e.mu.Unlock()

	if adminSession {
		e.Logout()
		return
	}

	e.mu.Lock()
	e.adminOverride = false
	e.persistLocked()
	e.mu.Unlock()

	e.resolver.Reset()
	e.log.Info("admin override disabled")
	e.publish(events.EventLogout, "")
}

// Check reports whether the active identity holds the given capability.
// Admin override passes everything; a session user is checked against its
// explicit permission set; an anonymous identity falls back to the resolved
// directory role and the static role table.
func (e *Engine) Check(ctx context.Context, cap domain.Capability) bool {
	e.mu.RLock()
	override := e.adminOverride
	user := e.current
	e.mu.RUnlock()

	if override {
		return true
	}
	if user != nil {
		return user.HasPermission(cap)
	}
	return e.resolver.Resolve(ctx).Allows(cap)
}

// CanCreateIn reports whether the identity may create an entry inside the
// given parent. Creating directly under the root makes a root-level item and
// therefore requires editRoot; everywhere else requires add.
func (e *Engine) CanCreateIn(ctx context.Context, parentID string) bool {
	if e.IsAdmin() {
		return true
	}
	if parentID == "" || parentID == domain.RootID {
		return e.Check(ctx, domain.CapEditRoot)
	}
	return e.Check(ctx, domain.CapAdd)
}

// CanDeleteItem reports whether the identity may delete the given item
func (e *Engine) CanDeleteItem(ctx context.Context, item domain.Entry) bool {
	return e.canMutateItem(ctx, item)
}

// CanRenameItem reports whether the identity may rename the given item.
// Rename requires the same capability level as delete.
func (e *Engine) CanRenameItem(ctx context.Context, item domain.Entry) bool {
	return e.canMutateItem(ctx, item)
}

func (e *Engine) canMutateItem(ctx context.Context, item domain.Entry) bool {
	if e.IsAdmin() {
		return true
	}
	if item.IsRootLevel() {
		return e.Check(ctx, domain.CapEditRoot)
	}
	return e.Check(ctx, domain.CapDelete)
}

// persistLocked saves the current session state; callers hold e.mu
func (e *Engine) persistLocked() {
	if e.sessions == nil {
		return
	}
	session := domain.Session{User: e.current, AdminOverride: e.adminOverride}
	if err := e.sessions.SaveSession(session); err != nil {
		e.log.Warn("failed to persist session", "error", err)
	}
}

func (e *Engine) publish(eventType, actor string) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(events.Event{Type: eventType, Actor: actor})
}
