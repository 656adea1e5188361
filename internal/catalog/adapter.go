package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gestionnegocio/console/internal/apierr"
	"github.com/gestionnegocio/console/internal/gateway"
	"github.com/gestionnegocio/console/internal/resource"
	"github.com/gestionnegocio/console/pkg/models"
)

// pageEnvelope is the paginated list shape of the backend
type pageEnvelope struct {
	Data           []models.Record `json:"data"`
	Page           int             `json:"page"`
	TotalPaginas   int             `json:"total_paginas"`
	TotalRegistros int             `json:"total_registros"`
}

// RESTAdapter serves one entity from the backend through the gateway
type RESTAdapter struct {
	gw       *gateway.Gateway
	entity   Entity
	identity models.Identity
}

var _ resource.Adapter[models.Record, models.Payload] = (*RESTAdapter)(nil)

// NewAdapter binds an entity to the signed-in identity
func NewAdapter(gw *gateway.Gateway, entity Entity, identity models.Identity) *RESTAdapter {
	return &RESTAdapter{gw: gw, entity: entity, identity: identity}
}

// Entity returns the entity the adapter serves
func (a *RESTAdapter) Entity() Entity {
	return a.entity
}

func (a *RESTAdapter) collection() string {
	return a.entity.CollectionPath(a.identity)
}

func (a *RESTAdapter) member(id int64) string {
	return a.collection() + "/" + strconv.FormatInt(id, 10)
}

// FetchPage requests one page of the list
func (a *RESTAdapter) FetchPage(ctx context.Context, search string, page, pageSize int) (resource.Page[models.Record], error) {
	query := url.Values{
		"search":    {search},
		"page":      {strconv.Itoa(page)},
		"page_size": {strconv.Itoa(pageSize)},
	}

	var raw json.RawMessage
	if err := a.gw.Do(ctx, gateway.Call{Method: http.MethodGet, Path: a.collection(), Query: query}, &raw); err != nil {
		return resource.Page[models.Record]{}, err
	}
	return decodePage(raw, pageSize)
}

// decodePage accepts the paginated envelope or, for endpoints without
// pagination, a bare array returned as a single page
func decodePage(raw json.RawMessage, pageSize int) (resource.Page[models.Record], error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return resource.Page[models.Record]{Page: 1}, nil
	}

	if trimmed[0] == '[' {
		var items []models.Record
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return resource.Page[models.Record]{}, &apierr.Error{Kind: apierr.KindServer, Detail: "unexpected list body", Cause: err}
		}
		totalPages := 0
		if len(items) > 0 {
			totalPages = 1
		}
		return resource.Page[models.Record]{Items: items, Page: 1, TotalPages: totalPages, TotalCount: len(items)}, nil
	}

	var env pageEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return resource.Page[models.Record]{}, &apierr.Error{Kind: apierr.KindServer, Detail: "unexpected list body", Cause: err}
	}
	totalPages := env.TotalPaginas
	if totalPages == 0 && env.TotalRegistros > 0 && pageSize > 0 {
		totalPages = (env.TotalRegistros + pageSize - 1) / pageSize
	}
	return resource.Page[models.Record]{
		Items:      env.Data,
		Page:       env.Page,
		TotalPages: totalPages,
		TotalCount: env.TotalRegistros,
	}, nil
}

// Get fetches a single record
func (a *RESTAdapter) Get(ctx context.Context, id int64) (models.Record, error) {
	var rec models.Record
	err := a.gw.Do(ctx, gateway.Call{Method: http.MethodGet, Path: a.member(id)}, &rec)
	return rec, err
}

// Create posts a new record
func (a *RESTAdapter) Create(ctx context.Context, payload models.Payload) error {
	return a.gw.Do(ctx, gateway.Call{Method: http.MethodPost, Path: a.collection(), Body: a.withOrganization(payload)}, nil)
}

// Update replaces or patches a record, depending on the entity
func (a *RESTAdapter) Update(ctx context.Context, id int64, payload models.Payload) error {
	method := a.entity.UpdateMethod
	if method == "" {
		method = http.MethodPut
	}
	return a.gw.Do(ctx, gateway.Call{Method: method, Path: a.member(id), Body: a.withOrganization(payload)}, nil)
}

// Remove deletes a record
func (a *RESTAdapter) Remove(ctx context.Context, id int64) error {
	return a.gw.Do(ctx, gateway.Call{Method: http.MethodDelete, Path: a.member(id)}, nil)
}

// withOrganization fills organizacion_id for entities that live under an organization
func (a *RESTAdapter) withOrganization(payload models.Payload) models.Payload {
	if !a.entity.OrgScoped() {
		return payload
	}
	if _, ok := payload["organizacion_id"]; ok {
		return payload
	}
	out := make(models.Payload, len(payload)+1)
	for k, v := range payload {
		out[k] = v
	}
	out["organizacion_id"] = OrganizationOf(a.identity)
	return out
}
