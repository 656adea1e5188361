package session

import (
	"context"
	"net/http"

	"github.com/gestionnegocio/console/internal/gateway"
	"github.com/gestionnegocio/console/pkg/models"
)

const (
	// LoginPath is the password-grant token endpoint
	LoginPath = "/auth/login"
	// IdentityPath returns the user behind the bearer credential
	IdentityPath = "/users/me"
)

// currentUser is the backend representation of the identity endpoint
type currentUser struct {
	ID             int64  `json:"id"`
	Nombre         string `json:"nombre"`
	Email          string `json:"email"`
	RolID          *int64 `json:"rol_id"`
	OrganizacionID *int64 `json:"organizacion_id"`
}

// GatewayBackend talks to the backend through the gateway
type GatewayBackend struct {
	gw *gateway.Gateway
}

var _ Backend = (*GatewayBackend)(nil)

// NewGatewayBackend creates the production backend
func NewGatewayBackend(gw *gateway.Gateway) *GatewayBackend {
	return &GatewayBackend{gw: gw}
}

// Authenticate exchanges an identifier and secret for a credential
func (b *GatewayBackend) Authenticate(ctx context.Context, identifier, secret string) (string, error) {
	return b.gw.PasswordLogin(ctx, LoginPath, identifier, secret)
}

// FetchIdentity resolves the user behind the stored credential
func (b *GatewayBackend) FetchIdentity(ctx context.Context) (models.Identity, error) {
	var user currentUser
	if err := b.gw.Do(ctx, gateway.Call{Method: http.MethodGet, Path: IdentityPath}, &user); err != nil {
		return models.Identity{}, err
	}

	identity := models.Identity{
		ID:          user.ID,
		DisplayName: user.Nombre,
		Email:       user.Email,
	}
	if user.RolID != nil {
		identity.RoleID = *user.RolID
	}
	if user.OrganizacionID != nil {
		identity.OrganizationID = *user.OrganizacionID
	}
	return identity, nil
}
