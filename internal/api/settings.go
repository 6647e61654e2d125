package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mact/ops-server/internal/pkg/httputil"
)

// ListSettings returns all settings for the tenant.
func (h *Handlers) ListSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.deps.Settings.List(r.Context(), tenantID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"settings": settings})
}

// SetSetting upserts one setting value.
func (h *Handlers) SetSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var req struct {
		Value string `json:"value"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	if err := h.deps.Settings.Set(r.Context(), tenantID(r), key, req.Value); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"key": key, "value": req.Value})
}
