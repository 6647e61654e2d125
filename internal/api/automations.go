package api

import (
	"net/http"

	"github.com/mact/ops-server/internal/pkg/httputil"
)

// ListAutomations returns a page of order automations.
func (h *Handlers) ListAutomations(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r, 50)
	automations, total, err := h.deps.Automations.List(r.Context(), tenantID(r), limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"automations": automations, "total": total})
}

// ScanAutomations runs one scan pass against the ERP order feed: create
// automations for qualifying orders, retire ones whose order moved on.
func (h *Handlers) ScanAutomations(w http.ResponseWriter, r *http.Request) {
	result, err := h.deps.Engine.Scan(r.Context(), tenantID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, result)
}

// ProcessAutomations sends every due reminder.
func (h *Handlers) ProcessAutomations(w http.ResponseWriter, r *http.Request) {
	result, err := h.deps.Engine.ProcessDue(r.Context(), tenantID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, result)
}
