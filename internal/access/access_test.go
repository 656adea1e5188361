package access

import (
	"context"
	"testing"

	"github.com/gestionnegocio/console/internal/credential"
	"github.com/gestionnegocio/console/internal/session"
	"github.com/gestionnegocio/console/pkg/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ready(role int64) session.Snapshot {
	return session.Snapshot{State: session.StateReady, Identity: &models.Identity{ID: 1, RoleID: role}}
}

func TestDecide(t *testing.T) {
	adminOnly := []int64{RoleSuperAdmin, RoleAdmin}

	tests := []struct {
		name    string
		snap    session.Snapshot
		allowed []int64
		want    Decision
	}{
		{"initializing", session.Snapshot{State: session.StateInitializing}, adminOnly, ShowLoadingIndicator},
		{"resolving", session.Snapshot{State: session.StateResolving}, adminOnly, ShowLoadingIndicator},
		{"unauthenticated", session.Snapshot{State: session.StateUnauthenticated}, adminOnly, RedirectToLogin},
		{"admin allowed", ready(RoleAdmin), adminOnly, RenderContent},
		{"employee forbidden", ready(RoleEmployee), adminOnly, RedirectToForbidden},
		{"empty allow-list admits any role", ready(RoleEmployee), nil, RenderContent},
		{"unknown role forbidden", ready(99), adminOnly, RedirectToForbidden},
		{"ready without identity", session.Snapshot{State: session.StateReady}, nil, RedirectToLogin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.snap, tt.allowed))
		})
	}
}

type stubBackend struct {
	identity models.Identity
}

func (s stubBackend) Authenticate(context.Context, string, string) (string, error) {
	return "tok", nil
}

func (s stubBackend) FetchIdentity(context.Context) (models.Identity, error) {
	return s.identity, nil
}

func TestGuard_FollowsSession(t *testing.T) {
	ctx := context.Background()
	ctrl := session.New(credential.NewMemoryStore(), stubBackend{identity: models.Identity{ID: 9, RoleID: RoleEmployee}}, zerolog.Nop())
	guard := NewGuard(ctrl)
	adminOnly := []int64{RoleSuperAdmin, RoleAdmin}

	assert.Equal(t, ShowLoadingIndicator, guard.Check(adminOnly))

	require.NoError(t, ctrl.Init(ctx))
	assert.Equal(t, RedirectToLogin, guard.Check(adminOnly))

	require.NoError(t, ctrl.Login(ctx, "emp@x.com", "pw"))
	assert.Equal(t, RedirectToForbidden, guard.Check(adminOnly))
	assert.True(t, guard.Allows([]int64{RoleEmployee}))

	require.NoError(t, ctrl.Logout(ctx))
	assert.False(t, guard.Allows(nil))
}

func TestRoleName(t *testing.T) {
	assert.Equal(t, "Administrador", RoleName(RoleAdmin))
	assert.Equal(t, "Sin rol", RoleName(0))
}
