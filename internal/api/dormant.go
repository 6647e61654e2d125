package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mact/ops-server/internal/pkg/httputil"
	"github.com/mact/ops-server/internal/pkg/logger"
	"github.com/mact/ops-server/internal/service/dormant"
)

// DormantSync streams dormant-customer sync progress as server-sent events.
// The emit callback runs on the sync goroutine only, so writes to the
// response need no locking.
func (h *Handlers) DormantSync(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.Error(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	emit := func(ev dormant.Event) {
		data, err := json.Marshal(ev)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
		flusher.Flush()
	}

	if _, err := h.deps.Dormant.Run(r.Context(), emit); err != nil {
		// The error event already went down the stream; nothing else to
		// send on a committed SSE response.
		logger.Warn("dormant sync ended with error", "error", err.Error())
	}
}

// DormantSyncRun runs the sync synchronously and returns the final summary,
// for callers that don't want a stream.
func (h *Handlers) DormantSyncRun(w http.ResponseWriter, r *http.Request) {
	summary, err := h.deps.Dormant.Run(r.Context(), nil)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, summary)
}
