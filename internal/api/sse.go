package api

import (
	"fmt"
	"net/http"

	"github.com/procureflow/procureflow/internal/message"
)

// sseWriter streams message events in Server-Sent Events format, one
// SSE event per stream event with a JSON data payload.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// newSSEWriter sets the streaming headers and returns the writer.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering

	return &sseWriter{w: w, flusher: flusher}, nil
}

// writeEvent sends one stream event. The event kind travels as the
// SSE event name, the payload as a single JSON data line.
func (s *sseWriter) writeEvent(ev message.Event) error {
	payload, err := ev.Payload()
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", ev.Kind, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", ev.Kind, payload); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	s.flusher.Flush()
	return nil
}
