package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"dealora.org/internal/auth"
)

// handleNotificationStream pushes account notifications over SSE. The
// subscription is keyed by the authenticated email so a client only sees
// its own events.
func (a *API) handleNotificationStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.hub == nil {
		writeError(w, r, http.StatusNotFound, "notifications are not enabled")
		return
	}
	email, ok := auth.EmailFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, auth.MsgUnauthorized)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := a.hub.Subscribe(r.Context(), email)
	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case evt, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Kind, payload)
			flusher.Flush()
		}
	}
}
