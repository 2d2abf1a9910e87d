// Package prediction provides the HTTP client for the prediction backend.
package prediction

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/chatembed/session-service/internal/domain/errors"
)

// EventStreamContentType is the content type the backend must answer with
// for a streaming prediction.
const EventStreamContentType = "text/event-stream"

// Fallback messages when an auth or rate-limit rejection carries no body.
const (
	msgTooManyRequests = "Too many requests. Please try again later."
	msgUnauthorized    = "Unauthorized"
	msgUnauthenticated = "Unauthenticated"
)

// StreamReader reads prediction stream events one at a time. Close is
// idempotent.
type StreamReader interface {
	Read() (*StreamEvent, error)
	Close() error
}

// OpenStream opens the persistent event channel for a prediction. The
// request is forced into streaming mode. The response status is inspected
// before any event is read: 200 with the event-stream content type
// proceeds; 401, 403 and 429 surface the response body as the error
// message; anything else is a generic failure.
func (c *Client) OpenStream(ctx context.Context, flowID string, req *PredictionRequest) (StreamReader, error) {
	req.Streaming = true

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/prediction/%s", c.apiHost, flowID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", EventStreamContentType)

	resp, err := c.do(httpReq)
	if err != nil {
		return nil, errors.NewTransportError("failed to open prediction stream", 0, err)
	}

	if err := checkStreamOpen(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}

	scanner := bufio.NewScanner(resp.Body)
	// Source-document and reasoning events can be large.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	return &streamReader{
		response: resp,
		scanner:  scanner,
	}, nil
}

// checkStreamOpen validates the stream handshake response.
func checkStreamOpen(resp *http.Response) error {
	contentType := resp.Header.Get("Content-Type")
	if resp.StatusCode == http.StatusOK && strings.HasPrefix(contentType, EventStreamContentType) {
		return nil
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return errors.NewTransportError(bodyOr(resp, msgTooManyRequests), resp.StatusCode, nil)
	case http.StatusForbidden:
		return errors.NewTransportError(bodyOr(resp, msgUnauthorized), resp.StatusCode, nil)
	case http.StatusUnauthorized:
		return errors.NewTransportError(bodyOr(resp, msgUnauthenticated), resp.StatusCode, nil)
	default:
		return errors.NewTransportError(fmt.Sprintf("unexpected stream response: status=%d, content-type=%s", resp.StatusCode, contentType), resp.StatusCode, nil)
	}
}

func bodyOr(resp *http.Response, fallback string) string {
	body, _ := io.ReadAll(resp.Body)
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return fallback
}

// streamReader implements the StreamReader interface over an SSE body.
type streamReader struct {
	response *http.Response
	scanner  *bufio.Scanner
	closed   bool
}

// Read returns the next event from the stream. Frames that do not decode as
// event payloads are skipped to stay forward-compatible with unknown frame
// kinds.
func (r *streamReader) Read() (*StreamEvent, error) {
	if r.closed {
		return nil, io.EOF
	}

	for r.scanner.Scan() {
		line := r.scanner.Text()
		if line == "" {
			continue
		}

		var jsonData string
		if strings.HasPrefix(line, "data:") {
			jsonData = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		} else if strings.HasPrefix(line, "{") {
			jsonData = line
		} else {
			// event:/id: prefixes and comments carry no payload here.
			continue
		}

		if jsonData == "" || jsonData == "[DONE]" {
			continue
		}

		var event StreamEvent
		if err := json.Unmarshal([]byte(jsonData), &event); err != nil {
			continue
		}
		if event.Event == "" {
			continue
		}
		return &event, nil
	}

	if err := r.scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanner error: %w", err)
	}
	return nil, io.EOF
}

// Close closes the underlying response body. Safe to call repeatedly.
func (r *streamReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.response != nil && r.response.Body != nil {
		return r.response.Body.Close()
	}
	return nil
}
