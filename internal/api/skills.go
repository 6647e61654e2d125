package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mact/ops-server/internal/domain"
	"github.com/mact/ops-server/internal/pkg/httputil"
)

type skillRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Prompt      string `json:"prompt" validate:"required"`
	Enabled     bool   `json:"enabled"`
}

// ListSkills returns the tenant's chat skills. ?enabled=true filters to
// enabled skills only.
func (h *Handlers) ListSkills(w http.ResponseWriter, r *http.Request) {
	enabledOnly := r.URL.Query().Get("enabled") == "true"
	skills, err := h.deps.Skills.List(r.Context(), tenantID(r), enabledOnly)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"skills": skills})
}

// GetSkill returns one skill.
func (h *Handlers) GetSkill(w http.ResponseWriter, r *http.Request) {
	skill, err := h.deps.Skills.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, skill)
}

// CreateSkill stores a new chat skill.
func (h *Handlers) CreateSkill(w http.ResponseWriter, r *http.Request) {
	var req skillRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	skill := &domain.Skill{
		TenantID:    tenantID(r),
		Name:        req.Name,
		Description: req.Description,
		Prompt:      req.Prompt,
		Enabled:     req.Enabled,
	}
	id, err := h.deps.Skills.Create(r.Context(), skill)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	skill.ID = id
	httputil.Created(w, skill)
}

// UpdateSkill replaces a skill's content.
func (h *Handlers) UpdateSkill(w http.ResponseWriter, r *http.Request) {
	var req skillRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	skill := &domain.Skill{
		ID:          chi.URLParam(r, "id"),
		TenantID:    tenantID(r),
		Name:        req.Name,
		Description: req.Description,
		Prompt:      req.Prompt,
		Enabled:     req.Enabled,
	}
	if err := h.deps.Skills.Update(r.Context(), skill); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, skill)
}

// DeleteSkill removes a skill.
func (h *Handlers) DeleteSkill(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Skills.Delete(r.Context(), tenantID(r), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.NoContent(w)
}
