package mockapi

import (
	"context"
	"encoding/json"
	"net/http"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultPageSize = 10

// Collection is a CRUD endpoint served by the mock backend
type Collection struct {
	// Pattern is a chi route pattern such as /organizations/{org}/bodegas
	Pattern string
	// Allowed lists the roles that may use the endpoint; empty admits every signed-in user
	Allowed []int64
}

// Options configures the mock backend
type Options struct {
	Collections []Collection
	Logger      zerolog.Logger
}

// Server is an in-memory stand-in for the business API
type Server struct {
	store  *store
	router chi.Router
	logger zerolog.Logger
}

type ctxKey struct{}

// New creates a mock backend serving the given collections
func New(opts Options) (*Server, error) {
	st, err := newStore()
	if err != nil {
		return nil, err
	}

	s := &Server{store: st, logger: opts.Logger}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(middleware.RedirectSlashes)
	router.Use(s.logRequests)
	router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not Found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	router.Post("/auth/login", s.login)
	router.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Get("/users/me", s.me)

		for _, c := range opts.Collections {
			r.Group(func(r chi.Router) {
				r.Use(s.requireRoles(c.Allowed))
				r.Get(c.Pattern, s.listRecords)
				r.Post(c.Pattern, s.createRecord)
				r.Get(c.Pattern+"/{id}", s.getRecord)
				r.Put(c.Pattern+"/{id}", s.updateRecord(false))
				r.Patch(c.Pattern+"/{id}", s.updateRecord(true))
				r.Delete(c.Pattern+"/{id}", s.deleteRecord)
			})
		}
	})

	s.router = router
	return s, nil
}

// Handler returns the HTTP handler of the backend
func (s *Server) Handler() http.Handler {
	return s.router
}

// AddUser registers an account
func (s *Server) AddUser(u User) error {
	return s.store.insert(tableUsers, &u)
}

// Seed inserts a record into the collection at the concrete path and returns its id
func (s *Server) Seed(collection string, fields map[string]any) (int64, error) {
	rec, err := s.store.create(collection, fields)
	if err != nil {
		return 0, err
	}
	return rec.ID, nil
}

// Count returns how many records a collection holds
func (s *Server) Count(collection string) (int, error) {
	recs, err := s.store.list(collection, "")
	return len(recs), err
}

// RevokeTokens expires every issued credential
func (s *Server) RevokeTokens() error {
	return s.store.revokeTokens()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("request_id", r.Header.Get("X-Request-ID")).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("mock request")
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusBadRequest, "Formulario inválido")
		return
	}

	user, err := s.store.userByEmail(r.PostForm.Get("username"))
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	if user == nil || user.Password != r.PostForm.Get("password") {
		writeDetail(w, http.StatusUnauthorized, "Credenciales inválidas")
		return
	}

	raw := uuid.NewString()
	if err := s.store.insert(tableTokens, &token{Token: raw, UserID: user.ID}); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"access_token": raw, "token_type": "bearer"})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		user, err := s.store.userByToken(raw)
		if err != nil {
			writeDetail(w, http.StatusInternalServerError, err.Error())
			return
		}
		if user == nil {
			writeDetail(w, http.StatusUnauthorized, "Token inválido o expirado")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, user)))
	})
}

func (s *Server) requireRoles(allowed []int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := r.Context().Value(ctxKey{}).(*User)
			if len(allowed) > 0 && !slices.Contains(allowed, user.RoleID) {
				writeDetail(w, http.StatusForbidden, "No tiene permisos para este recurso")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	user := r.Context().Value(ctxKey{}).(*User)
	body := map[string]any{
		"id":              user.ID,
		"nombre":          user.Name,
		"email":           user.Email,
		"rol_id":          user.RoleID,
		"organizacion_id": nil,
	}
	if user.OrganizationID != 0 {
		body["organizacion_id"] = user.OrganizationID
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) listRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := positiveInt(q.Get("page"), 1)
	size := positiveInt(q.Get("page_size"), defaultPageSize)

	recs, err := s.store.list(r.URL.Path, q.Get("search"))
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	total := len(recs)
	start := min((page-1)*size, total)
	end := min(start+size, total)
	data := make([]map[string]any, 0, end-start)
	for _, rec := range recs[start:end] {
		data = append(data, rec.body())
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":            data,
		"page":            page,
		"total_paginas":   (total + size - 1) / size,
		"total_registros": total,
	})
}

func (s *Server) createRecord(w http.ResponseWriter, r *http.Request) {
	fields, ok := decodeFields(w, r)
	if !ok {
		return
	}
	rec, err := s.store.create(r.URL.Path, fields)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, rec.body())
}

func (s *Server) getRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	rec, err := s.store.get(path.Dir(r.URL.Path), id)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rec == nil {
		writeDetail(w, http.StatusNotFound, "Registro no encontrado")
		return
	}
	writeJSON(w, http.StatusOK, rec.body())
}

func (s *Server) updateRecord(merge bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := recordID(w, r)
		if !ok {
			return
		}
		fields, ok := decodeFields(w, r)
		if !ok {
			return
		}
		rec, err := s.store.replace(path.Dir(r.URL.Path), id, fields, merge)
		if err != nil {
			writeDetail(w, http.StatusInternalServerError, err.Error())
			return
		}
		if rec == nil {
			writeDetail(w, http.StatusNotFound, "Registro no encontrado")
			return
		}
		writeJSON(w, http.StatusOK, rec.body())
	}
}

func (s *Server) deleteRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	deleted, err := s.store.delete(path.Dir(r.URL.Path), id)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !deleted {
		writeDetail(w, http.StatusNotFound, "Registro no encontrado")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Registro eliminado con éxito"})
}

type validationItem struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// decodeFields reads a JSON object body and rejects blank names the way the real API does
func decodeFields(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil || len(fields) == 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []validationItem{{Loc: []string{"body"}, Msg: "Field required", Type: "missing"}},
		})
		return nil, false
	}
	delete(fields, "id")

	var problems []validationItem
	for key, v := range fields {
		if str, ok := v.(string); ok && strings.HasPrefix(key, "nombre") && strings.TrimSpace(str) == "" {
			problems = append(problems, validationItem{Loc: []string{"body", key}, Msg: "Field required", Type: "missing"})
		}
	}
	if len(problems) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": problems})
		return nil, false
	}
	return fields, true
}

func recordID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []validationItem{{Loc: []string{"path", "id"}, Msg: "Input should be a valid integer", Type: "int_parsing"}},
		})
		return 0, false
	}
	return id, true
}

func positiveInt(raw string, fallback int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]any{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
