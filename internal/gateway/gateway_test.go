package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gestionnegocio/console/internal/apierr"
	"github.com/gestionnegocio/console/internal/credential"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingInvalidator struct {
	mu     sync.Mutex
	causes []error
}

func (r *recordingInvalidator) Invalidate(_ context.Context, cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.causes = append(r.causes, cause)
}

func (r *recordingInvalidator) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.causes)
}

func newTestGateway(t *testing.T, handler http.Handler) (*Gateway, *credential.MemoryStore, *recordingInvalidator) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := credential.NewMemoryStore()
	gw := New(Options{
		Environment: "development",
		Resolve:     func(string) string { return srv.URL },
		Store:       store,
		Timeout:     2 * time.Second,
		Logger:      zerolog.Nop(),
	})
	inv := &recordingInvalidator{}
	gw.SetInvalidator(inv)
	return gw, store, inv
}

func TestDo_CredentialInjection(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	gw, store, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get("Authorization"))
		mu.Unlock()
		assert.NotEmpty(t, r.Header.Get(RequestIDHeader))
		w.WriteHeader(http.StatusNoContent)
	}))
	ctx := context.Background()

	require.NoError(t, gw.Do(ctx, Call{Method: http.MethodGet, Path: "/clientes"}, nil))
	require.NoError(t, store.Set(ctx, "tok-1"))
	require.NoError(t, gw.Do(ctx, Call{Method: http.MethodGet, Path: "/clientes"}, nil))
	require.NoError(t, gw.Do(ctx, Call{Method: http.MethodDelete, Path: "/clientes/3"}, nil))
	require.NoError(t, store.Clear(ctx))
	require.NoError(t, gw.Do(ctx, Call{Method: http.MethodGet, Path: "/clientes"}, nil))

	assert.Equal(t, []string{"", "Bearer tok-1", "Bearer tok-1", ""}, seen)
}

func TestDo_QueryBodyAndDecode(t *testing.T) {
	gw, _, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/organizations/1/bodegas", r.URL.Path)
		assert.Equal(t, "norte", r.URL.Query().Get("search"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var in map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "Bodega Norte", in["nombre"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 7, "nombre": "Bodega Norte"}`))
	}))

	var out struct {
		ID     int    `json:"id"`
		Nombre string `json:"nombre"`
	}
	err := gw.Do(context.Background(), Call{
		Method: http.MethodPost,
		Path:   "/organizations/1/bodegas",
		Query:  url.Values{"search": {"norte"}},
		Body:   map[string]any{"nombre": "Bodega Norte"},
	}, &out)

	require.NoError(t, err)
	assert.Equal(t, 7, out.ID)
}

func TestDo_FailureClassification(t *testing.T) {
	tests := []struct {
		name           string
		status         int
		body           string
		wantKind       apierr.Kind
		wantInvalidate int
	}{
		{name: "unauthorized invalidates", status: 401, body: `{"detail":"Token expirado"}`, wantKind: apierr.KindAuthentication, wantInvalidate: 1},
		{name: "forbidden keeps session", status: 403, wantKind: apierr.KindForbidden},
		{name: "not found", status: 404, wantKind: apierr.KindNotFound},
		{name: "validation", status: 422, body: `{"detail":"nombre requerido"}`, wantKind: apierr.KindValidation},
		{name: "server", status: 500, wantKind: apierr.KindServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw, _, inv := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))

			err := gw.Do(context.Background(), Call{Method: http.MethodGet, Path: "/users/me"}, nil)

			require.Error(t, err)
			assert.Equal(t, tt.wantKind, apierr.KindOf(err))
			assert.Equal(t, tt.wantInvalidate, inv.count())
		})
	}
}

func TestDo_InvalidatesBeforeReturning(t *testing.T) {
	gw, _, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	invalidated := false
	gw.SetInvalidator(invalidatorFunc(func(context.Context, error) { invalidated = true }))

	err := gw.Do(context.Background(), Call{Method: http.MethodGet, Path: "/clientes"}, nil)
	require.Error(t, err)
	assert.True(t, invalidated, "invalidation must have happened by the time the caller sees the error")
}

func TestDo_UnbuildableCallIsClassified(t *testing.T) {
	var hits atomic.Int32
	gw, _, inv := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))

	tests := []struct {
		name string
		call Call
	}{
		{name: "unencodable body", call: Call{Method: http.MethodPost, Path: "/clientes", Body: map[string]any{"x": make(chan int)}}},
		{name: "invalid method", call: Call{Method: "BAD METHOD", Path: "/clientes"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := gw.Do(context.Background(), tt.call, nil)

			require.Error(t, err)
			var apiErr *apierr.Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, apierr.KindValidation, apiErr.Kind)
			assert.Error(t, errors.Unwrap(err))
		})
	}
	assert.Zero(t, hits.Load(), "nothing may be sent")
	assert.Zero(t, inv.count())
}

type invalidatorFunc func(context.Context, error)

func (f invalidatorFunc) Invalidate(ctx context.Context, cause error) { f(ctx, cause) }

func TestDo_NetworkFailures(t *testing.T) {
	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		origin := srv.URL
		srv.Close()

		gw := New(Options{Resolve: func(string) string { return origin }, Store: credential.NewMemoryStore(), Logger: zerolog.Nop()})
		err := gw.Do(context.Background(), Call{Method: http.MethodGet, Path: "/clientes"}, nil)
		assert.Equal(t, apierr.KindNetwork, apierr.KindOf(err))
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		gw := New(Options{
			Resolve: func(string) string { return srv.URL },
			Store:   credential.NewMemoryStore(),
			Timeout: 50 * time.Millisecond,
			Logger:  zerolog.Nop(),
		})
		err := gw.Do(context.Background(), Call{Method: http.MethodGet, Path: "/clientes"}, nil)
		require.Error(t, err)
		assert.Equal(t, apierr.KindNetwork, apierr.KindOf(err))
	})

	t.Run("undecodable success body", func(t *testing.T) {
		gw, _, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>"))
		}))
		var out map[string]any
		err := gw.Do(context.Background(), Call{Method: http.MethodGet, Path: "/clientes"}, &out)
		assert.Equal(t, apierr.KindServer, apierr.KindOf(err))
	})
}

func TestPasswordLogin(t *testing.T) {
	gw, store, inv := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "/auth/login", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.Equal(t, "password", r.PostForm.Get("grant_type"))

		if r.PostForm.Get("username") != "user@x.com" || r.PostForm.Get("password") != "pw" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Credenciales inválidas"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-9","token_type":"bearer"}`))
	}))
	ctx := context.Background()

	tok, err := gw.PasswordLogin(ctx, "/auth/login", "user@x.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "tok-9", tok)

	_, err = gw.PasswordLogin(ctx, "/auth/login", "user@x.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, apierr.KindAuthentication, apierr.KindOf(err))
	assert.Zero(t, inv.count(), "a rejected login must not invalidate the session")

	_, ok, _ := store.Get(ctx)
	assert.False(t, ok, "the gateway never writes the credential itself")
}
