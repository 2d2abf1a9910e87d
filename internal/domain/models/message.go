// Package models contains domain models for the chat session service.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Role represents the kind of a transcript message. A message's role never
// changes after creation.
type Role string

const (
	// RoleWelcome represents the seeded welcome message.
	RoleWelcome Role = "welcome"
	// RoleAssistant represents a message from the assistant.
	RoleAssistant Role = "assistant"
	// RoleUser represents a message typed (or recorded) by the user.
	RoleUser Role = "user"
	// RoleLeadCapture represents the lead-capture prompt message.
	RoleLeadCapture Role = "leadCapture"
)

// FeedbackRating is a user feedback tag on an assistant message.
type FeedbackRating string

const (
	// RatingThumbsUp marks a positively rated message.
	RatingThumbsUp FeedbackRating = "THUMBS_UP"
	// RatingThumbsDown marks a negatively rated message.
	RatingThumbsDown FeedbackRating = "THUMBS_DOWN"
)

// Message represents one transcript entry.
type Message struct {
	// ID is the server-assigned message identity. It may arrive after the
	// message was created locally (via a metadata event).
	ID   string `json:"id,omitempty"`
	Role Role   `json:"role"`
	// Text is the cumulative displayed content. For assistant messages under
	// streaming it is append-only during an active turn.
	Text string `json:"text"`
	// Rating is cleared whenever new stream tokens grow the message.
	Rating    FeedbackRating `json:"rating,omitempty"`
	Timestamp time.Time      `json:"timestamp,omitempty"`

	// Enrichment fields, each populated by its own asynchronous event.
	SourceDocuments []SourceDocument `json:"sourceDocuments,omitempty"`
	UsedTools       []ToolInvocation `json:"usedTools,omitempty"`
	FileAnnotations []FileAnnotation `json:"fileAnnotations,omitempty"`
	AgentReasoning  []AgentReasoning `json:"agentReasoning,omitempty"`
	Artifacts       []FileUpload     `json:"artifacts,omitempty"`
	// FollowUpPrompts is kept in its raw JSON-encoded form, matching the wire
	// format of the metadata event.
	FollowUpPrompts string  `json:"followUpPrompts,omitempty"`
	Action          *Action `json:"action,omitempty"`

	// FileUploads are the user-supplied upload descriptors attached at
	// creation time to a user message.
	FileUploads []FileUpload `json:"fileUploads,omitempty"`
}

// SourceDocument is one source citation attached to an assistant message.
// Unknown payload shapes are preserved verbatim in Raw.
type SourceDocument struct {
	PageContent string                 `json:"pageContent,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the known citation shape and retains the original
// payload for forward compatibility.
func (d *SourceDocument) UnmarshalJSON(data []byte) error {
	type plain SourceDocument
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		// Opaque payload: keep it verbatim.
		*d = SourceDocument{Raw: append(json.RawMessage(nil), data...)}
		return nil
	}
	*d = SourceDocument(p)
	d.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON emits the original payload when one was captured, so persisted
// citations round-trip fields this version does not model.
func (d SourceDocument) MarshalJSON() ([]byte, error) {
	if len(d.Raw) > 0 {
		return d.Raw, nil
	}
	type plain SourceDocument
	return json.Marshal(plain(d))
}

// ToolInvocation is one tool-call trace entry.
type ToolInvocation struct {
	Tool       string                 `json:"tool,omitempty"`
	ToolInput  map[string]interface{} `json:"toolInput,omitempty"`
	ToolOutput json.RawMessage        `json:"toolOutput,omitempty"`
}

// FileAnnotation references a backend-generated file attached to a response.
type FileAnnotation struct {
	FilePath string `json:"filePath,omitempty"`
	FileName string `json:"fileName,omitempty"`
}

// AgentReasoning is one step of a multi-agent reasoning trace.
type AgentReasoning struct {
	AgentName       string           `json:"agentName,omitempty"`
	Messages        []string         `json:"messages,omitempty"`
	UsedTools       []ToolInvocation `json:"usedTools,omitempty"`
	Artifacts       []FileUpload     `json:"artifacts,omitempty"`
	SourceDocuments []SourceDocument `json:"sourceDocuments,omitempty"`
	Instructions    string           `json:"instructions,omitempty"`
	// NextAgent declares a handoff continuation. Entries still carrying one
	// when a turn is aborted are speculative and get dropped.
	NextAgent string `json:"nextAgent,omitempty"`
}

// ActionElement is one selectable element of a pending action.
type ActionElement struct {
	Type  string `json:"type"`
	Label string `json:"label"`
}

// ActionMapping is the approve/reject form of a pending action.
type ActionMapping struct {
	Approve   string            `json:"approve,omitempty"`
	Reject    string            `json:"reject,omitempty"`
	ToolCalls []json.RawMessage `json:"toolCalls,omitempty"`
}

// Action is a structured prompt the assistant is waiting on. While attached
// to the last message and non-empty it disables free-text input.
type Action struct {
	ID       string          `json:"id,omitempty"`
	Elements []ActionElement `json:"elements,omitempty"`
	Mapping  *ActionMapping  `json:"mapping,omitempty"`
}

// IsEmpty reports whether the action carries no selectable content.
func (a *Action) IsEmpty() bool {
	return a == nil || (len(a.Elements) == 0 && a.Mapping == nil && a.ID == "")
}

// unquote unwraps a JSON-encoded string payload, returning the inner bytes.
// Payloads for agent reasoning, actions and follow-up prompts may arrive
// either structured or double-encoded as a string.
func unquote(data []byte) []byte {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return []byte(s)
		}
	}
	return trimmed
}

// ParseAgentReasoning decodes an agent-reasoning payload, accepting both the
// structured array form and the JSON-encoded string form.
func ParseAgentReasoning(data []byte) ([]AgentReasoning, error) {
	var entries []AgentReasoning
	if err := json.Unmarshal(unquote(data), &entries); err != nil {
		return nil, fmt.Errorf("failed to parse agent reasoning: %w", err)
	}
	return entries, nil
}

// ParseAction decodes an action payload, accepting both the structured form
// and the JSON-encoded string form.
func ParseAction(data []byte) (*Action, error) {
	var action Action
	if err := json.Unmarshal(unquote(data), &action); err != nil {
		return nil, fmt.Errorf("failed to parse action: %w", err)
	}
	return &action, nil
}

// ParseFollowUpPrompts decodes the JSON-encoded array of follow-up prompt
// strings carried by a metadata event.
func ParseFollowUpPrompts(raw string) ([]string, error) {
	var prompts []string
	if err := json.Unmarshal([]byte(raw), &prompts); err != nil {
		return nil, fmt.Errorf("failed to parse follow-up prompts: %w", err)
	}
	return prompts, nil
}

// NewMessage creates a message with the given role and text.
func NewMessage(role Role, text string) Message {
	return Message{
		Role:      role,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
}
