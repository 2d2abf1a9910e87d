// Package prediction provides the HTTP client for the prediction backend.
package prediction

import (
	"encoding/json"

	"github.com/chatembed/session-service/internal/domain/models"
)

// PredictionRequest is the body of a prediction call.
type PredictionRequest struct {
	Question       string                 `json:"question"`
	ChatID         string                 `json:"chatId"`
	Streaming      bool                   `json:"streaming,omitempty"`
	Uploads        []models.FileUpload    `json:"uploads,omitempty"`
	OverrideConfig map[string]interface{} `json:"overrideConfig,omitempty"`
	LeadEmail      string                 `json:"leadEmail,omitempty"`
	Action         *models.Action         `json:"action,omitempty"`
}

// Metadata carries the server-assigned identifiers and late corrections
// delivered either by a streaming metadata event or inline in a buffered
// response.
type Metadata struct {
	ChatID        string `json:"chatId,omitempty"`
	ChatMessageID string `json:"chatMessageId,omitempty"`
	// Question echoes the recognized question when the submission carried no
	// user-visible text (voice input).
	Question string `json:"question,omitempty"`
	// FollowUpPrompts is a JSON-encoded array of strings.
	FollowUpPrompts string `json:"followUpPrompts,omitempty"`
}

// PredictionResponse is the payload of a buffered prediction round trip.
type PredictionResponse struct {
	Metadata

	Text            string                  `json:"text,omitempty"`
	JSON            json.RawMessage         `json:"json,omitempty"`
	SourceDocuments []models.SourceDocument `json:"sourceDocuments,omitempty"`
	UsedTools       []models.ToolInvocation `json:"usedTools,omitempty"`
	FileAnnotations []models.FileAnnotation `json:"fileAnnotations,omitempty"`
	// AgentReasoning and Action may arrive structured or as JSON-encoded
	// strings; they are decoded lazily via the models parse helpers.
	AgentReasoning json.RawMessage     `json:"agentReasoning,omitempty"`
	Action         json.RawMessage     `json:"action,omitempty"`
	Artifacts      []models.FileUpload `json:"artifacts,omitempty"`

	// Raw keeps the whole response body so callers can render payloads
	// that carry neither a text nor a json field.
	Raw json.RawMessage `json:"-"`
}

// Stream event tags dispatched by the event router.
const (
	EventStart           = "start"
	EventToken           = "token"
	EventSourceDocuments = "sourceDocuments"
	EventUsedTools       = "usedTools"
	EventFileAnnotations = "fileAnnotations"
	EventAgentReasoning  = "agentReasoning"
	EventAction          = "action"
	EventArtifacts       = "artifacts"
	EventMetadata        = "metadata"
	EventError           = "error"
	EventAbort           = "abort"
	EventEnd             = "end"
)

// StreamEvent is one inbound event on the prediction stream: a type tag plus
// a JSON payload.
type StreamEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Text decodes the event payload as a plain string, falling back to the raw
// bytes when the payload is not a JSON string.
func (e *StreamEvent) Text() string {
	var s string
	if err := json.Unmarshal(e.Data, &s); err == nil {
		return s
	}
	return string(e.Data)
}

// StreamAvailabilityResponse is the payload of the streaming capability
// probe.
type StreamAvailabilityResponse struct {
	IsStreaming bool `json:"isStreaming"`
}
