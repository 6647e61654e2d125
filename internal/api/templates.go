package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mact/ops-server/internal/domain"
	"github.com/mact/ops-server/internal/pkg/httputil"
	"github.com/mact/ops-server/internal/service/outreach"
)

type templateRequest struct {
	Name    string `json:"name" validate:"required"`
	Subject string `json:"subject" validate:"required"`
	Body    string `json:"body" validate:"required"`
}

// ListTemplates returns all templates for the tenant.
func (h *Handlers) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.deps.Templates.List(r.Context(), tenantID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"templates": templates})
}

// GetTemplate returns one template.
func (h *Handlers) GetTemplate(w http.ResponseWriter, r *http.Request) {
	template, err := h.deps.Templates.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, template)
}

// CreateTemplate stores a new template after checking every placeholder
// against the variable registry.
func (h *Handlers) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	template := &domain.Template{
		TenantID: tenantID(r),
		Name:     req.Name,
		Subject:  req.Subject,
		Body:     req.Body,
	}
	if err := outreach.ValidateTemplate(template); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	id, err := h.deps.Templates.Create(r.Context(), template)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	template.ID = id
	httputil.Created(w, template)
}

// UpdateTemplate replaces a template's content.
func (h *Handlers) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	template := &domain.Template{
		ID:       chi.URLParam(r, "id"),
		TenantID: tenantID(r),
		Name:     req.Name,
		Subject:  req.Subject,
		Body:     req.Body,
	}
	if err := outreach.ValidateTemplate(template); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := h.deps.Templates.Update(r.Context(), template); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, template)
}

// ValidateTemplate checks subject and body placeholders without persisting
// anything, returning the variables found.
func (h *Handlers) ValidateTemplate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}

	variables := outreach.ExtractVariables(req.Subject, req.Body)
	err := outreach.ValidateTemplate(&domain.Template{Subject: req.Subject, Body: req.Body})
	if err != nil && !errors.Is(err, outreach.ErrValidation) {
		httputil.InternalError(w, err)
		return
	}

	resp := map[string]any{"valid": err == nil, "variables": variables}
	if err != nil {
		resp["error"] = err.Error()
	}
	httputil.OK(w, resp)
}
