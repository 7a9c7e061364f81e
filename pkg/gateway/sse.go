package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/litlmike/anthropic-api-server/pkg/api"
)

// handleStreamMessage serves a streaming message call over server-sent
// events. Errors before the first frame produce a normal enveloped HTTP
// error; once framing starts, failures arrive as the terminal error event
// inside the stream.
func (h *Handler) handleStreamMessage(w http.ResponseWriter, r *http.Request) {
	if !h.allowMethod(w, r, http.MethodPost) {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, r, api.NewError(api.KindInternal, "streaming is not supported by this server"))
		return
	}

	var req api.MessageRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	sess, err := h.dispatcher.OpenStream(r.Context(), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer sess.Finish()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Each logical event is one data frame, flushed immediately. A failed
	// write means the client is gone; the session is canceled and the
	// channel drained so the terminal state is settled before Finish.
	clientGone := false
	for ev := range sess.Events() {
		if clientGone {
			continue
		}
		payload, merr := json.Marshal(ev)
		if merr != nil {
			h.logger.ErrorContext(r.Context(), "failed to encode stream event",
				"error", merr, "event_type", string(ev.Type))
			continue
		}
		if _, werr := fmt.Fprintf(w, "data: %s\n\n", payload); werr != nil {
			clientGone = true
			sess.Cancel()
			continue
		}
		flusher.Flush()
	}
}
