package server

import (
	"fmt"
	"net/http"

	"github.com/ayusman/courtside/internal/live"
)

// StreamHandler serves the live annotated frames as MJPEG.
type StreamHandler struct {
	hub *live.Hub
}

// NewStreamHandler creates a new StreamHandler fed by hub.
func NewStreamHandler(hub *live.Hub) *StreamHandler {
	return &StreamHandler{hub: hub}
}

// ServeHTTP streams MJPEG frames to the client until it disconnects or the
// hub stops.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sub, cancel := h.hub.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	if latest := h.hub.Latest(); latest != nil {
		if writePart(w, latest) != nil {
			return
		}
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case jpeg, ok := <-sub.Frames():
			if !ok {
				return
			}
			if writePart(w, jpeg) != nil {
				return
			}
		}
	}
}

// writePart writes one multipart JPEG frame and flushes it.
func writePart(w http.ResponseWriter, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpeg)); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	if _, err := fmt.Fprint(w, "\r\n"); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
