package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const sseKeepAlive = 15 * time.Second

// serveSSE streams values from subscribe as Server-Sent Events named event.
// initial, when non-nil, is sent first so clients start from a snapshot.
func serveSSE[T any](w http.ResponseWriter, r *http.Request, event string, subscribe func(context.Context) <-chan T, initial *T) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	// Streams outlive the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ch := subscribe(ctx)

	// Send an initial comment to establish the stream
	_, _ = w.Write([]byte(": stream started\n\n"))
	if initial != nil {
		writeEvent(w, event, *initial)
	}
	flusher.Flush()

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case v, ok := <-ch:
			if !ok {
				return
			}
			writeEvent(w, event, v)
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
}
