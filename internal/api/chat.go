package api

import (
	"net/http"

	"github.com/mact/ops-server/internal/chat"
	"github.com/mact/ops-server/internal/pkg/httputil"
)

// Chat answers one chat-widget message.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if !httputil.Decode(w, r, &req) {
		return
	}
	reply, err := h.deps.Chat.Chat(r.Context(), tenantID(r), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, reply)
}
