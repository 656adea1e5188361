package commands

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/gestionnegocio/console/internal/access"
	"github.com/gestionnegocio/console/internal/catalog"
	"github.com/gestionnegocio/console/internal/db"
	"github.com/gestionnegocio/console/internal/mockapi"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cli struct {
	backend    *mockapi.Server
	url        string
	profileDir string
}

func newCLI(t *testing.T) *cli {
	t.Helper()

	collections := make([]mockapi.Collection, 0, len(catalog.All()))
	for _, e := range catalog.All() {
		collections = append(collections, mockapi.Collection{Pattern: e.Path, Allowed: e.Allowed})
	}
	backend, err := mockapi.New(mockapi.Options{Collections: collections, Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, backend.AddUser(mockapi.User{ID: 1, Name: "Ana Admin", Email: "user@x.com", Password: "pw", RoleID: access.RoleAdmin}))

	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	t.Setenv("NEGOCIO_PROFILE_DIR", dir)
	t.Setenv("NEGOCIO_ENVIRONMENT", "development")
	return &cli{backend: backend, url: srv.URL, profileDir: dir}
}

func (c *cli) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--profile-dir", c.profileDir, "--api-url", c.url, "--log-level", "error"))
	err := cmd.Execute()
	return out.String(), err
}

func (c *cli) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := c.run(t, args...)
	require.NoError(t, err, out)
	return out
}

func TestCommands_SessionLifecycle(t *testing.T) {
	c := newCLI(t)

	_, err := c.run(t, "whoami")
	assert.ErrorIs(t, err, errNotLoggedIn)

	out := c.mustRun(t, "login", "--email", "user@x.com", "--password", "pw")
	assert.Contains(t, out, "Sesión iniciada como Ana Admin (Administrador)")

	// The credential is read back from the profile database by the next process
	out = c.mustRun(t, "whoami")
	assert.Contains(t, out, "Ana Admin (#1)")
	assert.Contains(t, out, "Organización: ninguna (se usa 1)")
	assert.Contains(t, out, c.url)

	out = c.mustRun(t, "resources")
	assert.Contains(t, out, "bodegas")
	assert.NotContains(t, out, "planes")

	out = c.mustRun(t, "logout")
	assert.Contains(t, out, "Sesión cerrada")

	_, err = c.run(t, "whoami")
	assert.ErrorIs(t, err, errNotLoggedIn)
}

func TestCommands_LoginRejected(t *testing.T) {
	c := newCLI(t)

	_, err := c.run(t, "login", "--email", "user@x.com", "--password", "nope")
	require.Error(t, err)
	assert.Equal(t, "correo o contraseña incorrectos", err.Error())

	_, err = c.run(t, "whoami")
	assert.ErrorIs(t, err, errNotLoggedIn)
}

func TestCommands_ListShowDelete(t *testing.T) {
	c := newCLI(t)
	for i := 1; i <= 12; i++ {
		_, err := c.backend.Seed("/clientes", map[string]any{"nombre_razon_social": "Cliente " + strconv.Itoa(i)})
		require.NoError(t, err)
	}
	c.mustRun(t, "login", "--email", "user@x.com", "--password", "pw")

	out := c.mustRun(t, "list", "clientes")
	assert.Contains(t, out, "Página 1 de 2 · 12 registros")
	assert.Contains(t, out, "Cliente 10")
	assert.NotContains(t, out, "Cliente 11")

	out = c.mustRun(t, "list", "clientes", "--page", "5")
	assert.Contains(t, out, "Página 2 de 2", "pages past the end show the last one")
	assert.Contains(t, out, "Cliente 12")

	out = c.mustRun(t, "list", "clientes", "--search", "cliente 1")
	assert.Contains(t, out, "Página 1 de 1 · 4 registros")
	assert.Contains(t, out, `Búsqueda: "cliente 1"`)

	out = c.mustRun(t, "show", "clientes", "3")
	assert.Contains(t, out, "Nombre o razón social")
	assert.Contains(t, out, "Cliente 3")

	out = c.mustRun(t, "delete", "clientes", "3", "--yes")
	assert.Contains(t, out, "Registro 3 eliminado de Clientes")
	n, err := c.backend.Count("/clientes")
	require.NoError(t, err)
	assert.Equal(t, 11, n)

	_, err = c.run(t, "show", "clientes", "3")
	require.Error(t, err)
}

func TestCommands_ResourceChecks(t *testing.T) {
	c := newCLI(t)
	c.mustRun(t, "login", "--email", "user@x.com", "--password", "pw")

	_, err := c.run(t, "list", "planes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tu rol no tiene acceso a Planes")

	_, err = c.run(t, "list", "facturas")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recurso desconocido")

	_, err = c.run(t, "show", "clientes", "abc")
	require.Error(t, err)
}

func TestCommands_RevokedCredentialIsCleared(t *testing.T) {
	c := newCLI(t)
	c.mustRun(t, "login", "--email", "user@x.com", "--password", "pw")
	require.NoError(t, c.backend.RevokeTokens())

	_, err := c.run(t, "whoami")
	require.Error(t, err)

	// Resolution failed closed, so the stored credential is gone
	_, err = c.run(t, "whoami")
	assert.ErrorIs(t, err, errNotLoggedIn)
}

func TestCommands_ProfileDirFlag(t *testing.T) {
	c := newCLI(t)
	other := t.TempDir()
	t.Setenv("NEGOCIO_PROFILE_DIR", other)

	c.mustRun(t, "login", "--email", "user@x.com", "--password", "pw")

	assert.FileExists(t, filepath.Join(c.profileDir, db.ProfileFile))
	assert.NoFileExists(t, filepath.Join(other, db.ProfileFile))
	assert.Equal(t, other, os.Getenv("NEGOCIO_PROFILE_DIR"))
}

func TestParseID(t *testing.T) {
	id, err := parseID(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, raw := range []string{"", "0", "-3", "x"} {
		_, err := parseID(raw)
		assert.Error(t, err, raw)
	}
}
