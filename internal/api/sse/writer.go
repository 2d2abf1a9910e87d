// Package sse provides Server-Sent Events support for relaying session
// state to the embedding page.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/chatembed/session-service/internal/services/transcript"
)

// EventType represents the type of SSE event.
type EventType string

const (
	// EventMessages carries a full transcript snapshot.
	EventMessages EventType = "messages"
	// EventLoading carries the loading flag.
	EventLoading EventType = "loading"
	// EventInput carries the input buffer.
	EventInput EventType = "input"
	// EventFollowUpPrompts carries the active suggestion set.
	EventFollowUpPrompts EventType = "followUpPrompts"
	// EventNotify signals the receive cue for a new turn.
	EventNotify EventType = "notify"
	// EventError is an error event.
	EventError EventType = "error"
	// EventDone signals relay shutdown.
	EventDone EventType = "done"
)

// Writer writes Server-Sent Events to an HTTP response.
type Writer struct {
	writer  http.ResponseWriter
	flusher http.Flusher
}

// NewWriter creates a new SSE writer.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	return &Writer{
		writer:  w,
		flusher: flusher,
	}, nil
}

// WriteEvent writes an SSE event with the given type and data.
func (w *Writer) WriteEvent(eventType EventType, data string) error {
	_, err := fmt.Fprintf(w.writer, "event: %s\ndata: %s\n\n", eventType, data)
	if err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// WriteJSON writes an SSE event with JSON-encoded data.
func (w *Writer) WriteJSON(eventType EventType, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}
	return w.WriteEvent(eventType, string(jsonData))
}

// WriteMessages writes a transcript snapshot event.
func (w *Writer) WriteMessages(snap transcript.Snapshot) error {
	return w.WriteJSON(EventMessages, snap)
}

// WriteLoading writes a loading-flag event.
func (w *Writer) WriteLoading(loading bool) error {
	return w.WriteJSON(EventLoading, loading)
}

// WriteInput writes an input-buffer event.
func (w *Writer) WriteInput(text string) error {
	return w.WriteJSON(EventInput, text)
}

// WriteFollowUpPrompts writes the active suggestion set.
func (w *Writer) WriteFollowUpPrompts(prompts []string) error {
	if prompts == nil {
		prompts = []string{}
	}
	return w.WriteJSON(EventFollowUpPrompts, prompts)
}

// WriteNotify signals the receive cue.
func (w *Writer) WriteNotify() error {
	return w.WriteEvent(EventNotify, "{}")
}

// ErrorEvent represents an error event.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// WriteError writes an error event.
func (w *Writer) WriteError(code, message string, details string) error {
	return w.WriteJSON(EventError, &ErrorEvent{
		Code:    code,
		Message: message,
		Details: details,
	})
}

// WriteDone writes a done event to signal relay completion.
func (w *Writer) WriteDone() error {
	return w.WriteEvent(EventDone, "relay closed")
}

// Flush flushes the response writer.
func (w *Writer) Flush() {
	w.flusher.Flush()
}
