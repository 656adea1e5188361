package access

import (
	"slices"

	"github.com/gestionnegocio/console/internal/session"
)

// Role identifiers as assigned by the backend
const (
	RoleSuperAdmin int64 = 1
	RoleAdmin      int64 = 2
	RoleEmployee   int64 = 3
)

// RoleName returns the display name of a role
func RoleName(role int64) string {
	switch role {
	case RoleSuperAdmin:
		return "Superadministrador"
	case RoleAdmin:
		return "Administrador"
	case RoleEmployee:
		return "Empleado"
	default:
		return "Sin rol"
	}
}

// Decision is what a protected view should do
type Decision int

const (
	ShowLoadingIndicator Decision = iota
	RedirectToLogin
	RedirectToForbidden
	RenderContent
)

func (d Decision) String() string {
	switch d {
	case ShowLoadingIndicator:
		return "ShowLoadingIndicator"
	case RedirectToLogin:
		return "RedirectToLogin"
	case RedirectToForbidden:
		return "RedirectToForbidden"
	case RenderContent:
		return "RenderContent"
	default:
		return "Unknown"
	}
}

// Decide maps a session snapshot and an allow-list to a decision.
// An empty allow-list admits any authenticated role.
func Decide(snap session.Snapshot, allowed []int64) Decision {
	switch snap.State {
	case session.StateInitializing, session.StateResolving:
		return ShowLoadingIndicator
	case session.StateReady:
		if snap.Identity == nil {
			return RedirectToLogin
		}
		if len(allowed) == 0 || slices.Contains(allowed, snap.Identity.RoleID) {
			return RenderContent
		}
		return RedirectToForbidden
	default:
		return RedirectToLogin
	}
}

// Source supplies the current session snapshot
type Source interface {
	Snapshot() session.Snapshot
}

// Guard evaluates decisions against a live session
type Guard struct {
	Source Source
}

// NewGuard creates a guard over the given session
func NewGuard(src Source) *Guard {
	return &Guard{Source: src}
}

// Check returns the decision for a view restricted to the allowed roles
func (g *Guard) Check(allowed []int64) Decision {
	return Decide(g.Source.Snapshot(), allowed)
}

// Allows reports whether the current session may render a view
func (g *Guard) Allows(allowed []int64) bool {
	return g.Check(allowed) == RenderContent
}
