package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gestionnegocio/console/internal/access"
	"github.com/gestionnegocio/console/internal/apierr"
	"github.com/gestionnegocio/console/internal/credential"
	"github.com/gestionnegocio/console/internal/gateway"
	"github.com/gestionnegocio/console/internal/mockapi"
	"github.com/gestionnegocio/console/internal/resource"
	"github.com/gestionnegocio/console/internal/session"
	"github.com/gestionnegocio/console/pkg/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUsers = []mockapi.User{
	{ID: 1, Name: "Ana Admin", Email: "user@x.com", Password: "pw", RoleID: access.RoleAdmin},
	{ID: 2, Name: "Eva Empleada", Email: "empleado@x.com", Password: "pw", RoleID: access.RoleEmployee, OrganizationID: 1},
	{ID: 3, Name: "Sara Super", Email: "super@x.com", Password: "pw", RoleID: access.RoleSuperAdmin},
}

// pageRecorder remembers the page parameter of every list request
type pageRecorder struct {
	mu    sync.Mutex
	pages []int
}

func (p *pageRecorder) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Query().Has("page") {
			n, _ := strconv.Atoi(r.URL.Query().Get("page"))
			p.mu.Lock()
			p.pages = append(p.pages, n)
			p.mu.Unlock()
		}
		next.ServeHTTP(w, r)
	})
}

func (p *pageRecorder) take() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.pages
	p.pages = nil
	return out
}

type testStack struct {
	backend *mockapi.Server
	pages   *pageRecorder
	store   *credential.MemoryStore
	gw      *gateway.Gateway
	session *session.Controller
	guard   *access.Guard
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	collections := make([]mockapi.Collection, 0, len(All()))
	for _, e := range All() {
		collections = append(collections, mockapi.Collection{Pattern: e.Path, Allowed: e.Allowed})
	}

	backend, err := mockapi.New(mockapi.Options{Collections: collections, Logger: zerolog.Nop()})
	require.NoError(t, err)
	for _, u := range testUsers {
		require.NoError(t, backend.AddUser(u))
	}

	pages := &pageRecorder{}
	srv := httptest.NewServer(pages.wrap(backend.Handler()))
	t.Cleanup(srv.Close)

	store := credential.NewMemoryStore()
	gw := gateway.New(gateway.Options{
		Environment: "development",
		Resolve:     func(string) string { return srv.URL },
		Store:       store,
		Timeout:     5 * time.Second,
		Logger:      zerolog.Nop(),
	})
	ctrl := session.New(store, session.NewGatewayBackend(gw), zerolog.Nop())
	gw.SetInvalidator(ctrl)
	require.NoError(t, ctrl.Init(context.Background()))

	return &testStack{
		backend: backend,
		pages:   pages,
		store:   store,
		gw:      gw,
		session: ctrl,
		guard:   access.NewGuard(ctrl),
	}
}

func (s *testStack) login(t *testing.T, email string) models.Identity {
	t.Helper()
	require.NoError(t, s.session.Login(context.Background(), email, "pw"))
	identity, ok := s.session.Identity()
	require.True(t, ok)
	return identity
}

func (s *testStack) adapter(t *testing.T, name string) *RESTAdapter {
	t.Helper()
	entity, ok := Lookup(name)
	require.True(t, ok)
	identity, _ := s.session.Identity()
	return NewAdapter(s.gw, entity, identity)
}

func TestE2E_NoCredentialRedirectsToLogin(t *testing.T) {
	s := newTestStack(t)

	assert.Equal(t, session.StateUnauthenticated, s.session.State())
	for _, e := range All() {
		assert.Equal(t, access.RedirectToLogin, s.guard.Check(e.Allowed), e.Name)
	}
}

func TestE2E_LoginAndRoleGating(t *testing.T) {
	s := newTestStack(t)

	identity := s.login(t, "user@x.com")
	assert.Equal(t, session.StateReady, s.session.State())
	assert.Equal(t, int64(1), identity.ID)
	assert.Equal(t, access.RoleAdmin, identity.RoleID)
	assert.Zero(t, identity.OrganizationID)

	assert.Equal(t, access.RenderContent, s.guard.Check([]int64{2, 3}))
	assert.Equal(t, access.RedirectToForbidden, s.guard.Check([]int64{3}))

	var names []string
	for _, e := range Visible(s.guard) {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, "bodegas")
	assert.NotContains(t, names, "planes")
}

func TestE2E_LoginRejected(t *testing.T) {
	s := newTestStack(t)

	err := s.session.Login(context.Background(), "user@x.com", "wrong")
	assert.True(t, apierr.IsAuthentication(err))
	assert.Equal(t, "Credenciales inválidas", err.(*apierr.Error).Detail)
	assert.Equal(t, session.StateUnauthenticated, s.session.State())
}

func TestE2E_DeleteLastItemStepsBackAPage(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t)
	s.login(t, "user@x.com")

	// The admin has no organization, so the default one is used
	for i := 1; i <= 21; i++ {
		_, err := s.backend.Seed("/organizations/1/bodegas", map[string]any{"nombre": "Bodega " + strconv.Itoa(i), "estado": true})
		require.NoError(t, err)
	}

	list := resource.New[models.Record, models.Payload](s.adapter(t, "bodegas"), 10, zerolog.Nop())
	require.NoError(t, list.Load(ctx, 3, ""))
	require.Len(t, list.Items(), 1)
	assert.Equal(t, "Bodega 21", list.Items()[0].Value("nombre"))
	s.pages.take()

	list.BeginDelete(list.Items()[0])
	require.NoError(t, list.ConfirmDelete(ctx))

	assert.Equal(t, []int{2}, s.pages.take(), "the emptied page must never be requested")
	info := list.PageInfo()
	assert.Equal(t, 2, info.CurrentPage)
	assert.Equal(t, 2, info.TotalPages)
	assert.Equal(t, 20, info.TotalCount)
	assert.False(t, list.Selection().Active())
}

func TestE2E_RevokedCredentialInvalidatesSession(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t)
	s.login(t, "user@x.com")

	list := resource.New[models.Record, models.Payload](s.adapter(t, "clientes"), 10, zerolog.Nop())
	require.NoError(t, list.Load(ctx, 1, ""))

	require.NoError(t, s.backend.RevokeTokens())
	err := list.Refresh(ctx)

	assert.True(t, apierr.IsAuthentication(err))
	assert.Equal(t, session.StateUnauthenticated, s.session.State())
	_, stored, _ := s.store.Get(ctx)
	assert.False(t, stored, "credential must be cleared from storage")
	assert.Equal(t, access.RedirectToLogin, s.guard.Check([]int64{access.RoleAdmin}))
}

func TestE2E_ForbiddenKeepsSession(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t)
	s.login(t, "empleado@x.com")

	_, err := s.adapter(t, "planes").FetchPage(ctx, "", 1, 10)

	assert.True(t, apierr.Is(err, apierr.KindForbidden))
	assert.Equal(t, session.StateReady, s.session.State())
}

func TestRESTAdapter_CRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t)
	s.login(t, "empleado@x.com")
	clientes := s.adapter(t, "clientes")

	err := clientes.Create(ctx, models.Payload{"nombre_razon_social": " "})
	require.Error(t, err)
	assert.Equal(t, apierr.KindValidation, apierr.KindOf(err))
	assert.Equal(t, "nombre_razon_social: Field required", err.(*apierr.Error).Detail)

	require.NoError(t, clientes.Create(ctx, models.Payload{"nombre_razon_social": "Ferretería Sol", "email": "sol@x.com"}))
	require.NoError(t, clientes.Create(ctx, models.Payload{"nombre_razon_social": "Panadería Luna"}))

	page, err := clientes.FetchPage(ctx, "LUNA", 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, 1, page.TotalCount)
	luna := page.Items[0]

	// Clientes are patched, so untouched fields survive
	require.NoError(t, clientes.Update(ctx, luna.ID, models.Payload{"email": "luna@x.com"}))
	got, err := clientes.Get(ctx, luna.ID)
	require.NoError(t, err)
	assert.Equal(t, "Panadería Luna", got.Value("nombre_razon_social"))
	assert.Equal(t, "luna@x.com", got.Value("email"))

	require.NoError(t, clientes.Remove(ctx, luna.ID))
	err = clientes.Remove(ctx, luna.ID)
	assert.Equal(t, apierr.KindNotFound, apierr.KindOf(err))
}

func TestRESTAdapter_PutReplacesAndFillsOrganization(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t)
	s.login(t, "super@x.com")

	bodegas := s.adapter(t, "bodegas")
	require.NoError(t, bodegas.Create(ctx, models.Payload{"nombre": "Central", "estado": true}))

	page, err := bodegas.FetchPage(ctx, "", 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	central := page.Items[0]
	assert.Equal(t, "1", central.Value("organizacion_id"))

	require.NoError(t, bodegas.Update(ctx, central.ID, models.Payload{"nombre": "Central Norte"}))
	got, err := bodegas.Get(ctx, central.ID)
	require.NoError(t, err)
	assert.Equal(t, "Central Norte", got.Value("nombre"))
	assert.Equal(t, "", got.Value("estado"), "PUT replaces the whole record")
}

func TestDecodePage(t *testing.T) {
	t.Run("envelope", func(t *testing.T) {
		raw := json.RawMessage(`{"data":[{"id":4,"nombre":"x"}],"page":2,"total_paginas":3,"total_registros":21}`)
		page, err := decodePage(raw, 10)
		require.NoError(t, err)
		assert.Equal(t, 2, page.Page)
		assert.Equal(t, 3, page.TotalPages)
		assert.Equal(t, 21, page.TotalCount)
		require.Len(t, page.Items, 1)
		assert.Equal(t, int64(4), page.Items[0].ID)
	})

	t.Run("bare array", func(t *testing.T) {
		page, err := decodePage(json.RawMessage(`[{"id":1},{"id":"2"}]`), 10)
		require.NoError(t, err)
		assert.Equal(t, resource.Page[models.Record]{
			Items:      page.Items,
			Page:       1,
			TotalPages: 1,
			TotalCount: 2,
		}, page)
		assert.Equal(t, int64(2), page.Items[1].ID)
	})

	t.Run("missing total pages", func(t *testing.T) {
		page, err := decodePage(json.RawMessage(`{"data":[],"page":1,"total_registros":25}`), 10)
		require.NoError(t, err)
		assert.Equal(t, 3, page.TotalPages)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := decodePage(json.RawMessage(`"nope"`), 10)
		assert.Equal(t, apierr.KindServer, apierr.KindOf(err))
	})
}
