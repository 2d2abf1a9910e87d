package session

import (
	"context"
	"encoding/json"

	"github.com/chatembed/session-service/internal/domain/models"
	"github.com/chatembed/session-service/internal/services/prediction"
)

// handleStreamEvent applies one inbound stream event to the transcript and
// reports whether the event terminates the turn. Unknown tags are ignored so
// newer backends can add events without breaking older sessions. Events may
// arrive in any order apart from start preceding the turn's tokens, so every
// branch is safe against early or interleaved delivery.
func (c *Controller) handleStreamEvent(ctx context.Context, ev *prediction.StreamEvent, question string) bool {
	switch ev.Event {
	case prediction.EventStart:
		c.commit(ctx, func() { c.transcript.StartAssistantTurn() })

	case prediction.EventToken:
		text := ev.Text()
		if text == "" {
			return false
		}
		c.commit(ctx, func() { c.transcript.AppendToken(text) })

	case prediction.EventSourceDocuments:
		var docs []models.SourceDocument
		if err := json.Unmarshal(ev.Data, &docs); err != nil {
			c.logProtocolError(ev.Event, err)
			return false
		}
		c.commit(ctx, func() { c.transcript.SetSourceDocuments(docs) })

	case prediction.EventUsedTools:
		var tools []models.ToolInvocation
		if err := json.Unmarshal(ev.Data, &tools); err != nil {
			c.logProtocolError(ev.Event, err)
			return false
		}
		c.commit(ctx, func() { c.transcript.SetUsedTools(tools) })

	case prediction.EventFileAnnotations:
		var annotations []models.FileAnnotation
		if err := json.Unmarshal(ev.Data, &annotations); err != nil {
			c.logProtocolError(ev.Event, err)
			return false
		}
		c.commit(ctx, func() { c.transcript.SetFileAnnotations(annotations) })

	case prediction.EventAgentReasoning:
		entries, err := models.ParseAgentReasoning(ev.Data)
		if err != nil {
			c.logProtocolError(ev.Event, err)
			return false
		}
		c.commit(ctx, func() { c.transcript.SetAgentReasoning(entries) })

	case prediction.EventAction:
		action, err := models.ParseAction(ev.Data)
		if err != nil {
			c.logProtocolError(ev.Event, err)
			return false
		}
		if action.IsEmpty() {
			return false
		}
		c.commit(ctx, func() { c.transcript.SetAction(action) })

	case prediction.EventArtifacts:
		var artifacts []models.FileUpload
		if err := json.Unmarshal(ev.Data, &artifacts); err != nil {
			c.logProtocolError(ev.Event, err)
			return false
		}
		c.commit(ctx, func() { c.transcript.SetArtifacts(artifacts) })

	case prediction.EventMetadata:
		var meta prediction.Metadata
		if err := json.Unmarshal(ev.Data, &meta); err != nil {
			c.logProtocolError(ev.Event, err)
			return false
		}
		c.applyMetadata(ctx, &meta, question)

	case prediction.EventError:
		c.fail(ctx, decodeEventError(ev.Data))
		return true

	case prediction.EventAbort:
		c.commit(ctx, func() { c.transcript.AbortTurn() })
		return true

	case prediction.EventEnd:
		return true

	default:
		c.log.Debug().Str("event", ev.Event).Msg("Ignoring unknown stream event")
	}
	return false
}

// decodeEventError extracts a readable message from an error event payload,
// which may be a JSON string, an object with a message field, or anything
// else (in which case the generic fallback applies downstream).
func decodeEventError(data json.RawMessage) string {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		if obj.Message != "" {
			return obj.Message
		}
		if obj.Error != "" {
			return obj.Error
		}
	}
	return ""
}
