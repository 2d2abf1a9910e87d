// Package transcript holds the ordered message list of a conversation and
// the mutation operations applied to it while a response streams in.
//
// Every committed mutation produces a new slice identity with the changed
// entry replaced, so snapshots handed to observers and to the persistence
// write-through are never mutated afterwards. Only the last message (and,
// for one metadata correction, the second-to-last) is ever edited in place;
// everything older is append-only history.
package transcript

import (
	"time"

	"github.com/chatembed/session-service/internal/domain/models"
)

// Snapshot is a committed, immutable view of the transcript.
type Snapshot []models.Message

// NotifyFunc signals the one-shot receive cue on the first token of a turn.
type NotifyFunc func()

// Transcript is the transcript state machine. It is not safe for concurrent
// use; the session controller serializes all operations on its event loop.
type Transcript struct {
	messages []models.Message

	// soundPlayed is the per-turn notification latch. It belongs to this
	// instance, so two live sessions never share cue state.
	soundPlayed bool
	notify      NotifyFunc
}

// New creates an empty transcript. notify may be nil.
func New(notify NotifyFunc) *Transcript {
	return &Transcript{notify: notify}
}

// Messages returns the current committed snapshot.
func (t *Transcript) Messages() Snapshot {
	return t.messages
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	return len(t.messages)
}

// Last returns the last message, or false when the transcript is empty.
func (t *Transcript) Last() (models.Message, bool) {
	if len(t.messages) == 0 {
		return models.Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}

// lastIsUser reports whether the most recent entry is a user turn. Mutation
// operations targeting the in-flight assistant turn bail out in that case so
// a late event can never edit the wrong side of the conversation.
func (t *Transcript) lastIsUser() bool {
	if len(t.messages) == 0 {
		return true
	}
	return t.messages[len(t.messages)-1].Role == models.RoleUser
}

// assistantAuthored reports whether a role belongs to the assistant side of
// the transcript (welcome and assistant turns).
func assistantAuthored(role models.Role) bool {
	return role == models.RoleAssistant || role == models.RoleWelcome
}

// mutateLast commits a new snapshot with the last entry replaced.
func (t *Transcript) mutateLast(fn func(*models.Message)) Snapshot {
	msgs := make([]models.Message, len(t.messages))
	copy(msgs, t.messages)
	fn(&msgs[len(msgs)-1])
	t.messages = msgs
	return msgs
}

// appendMessage commits a new snapshot with one entry appended.
func (t *Transcript) appendMessage(msg models.Message) Snapshot {
	msgs := make([]models.Message, len(t.messages), len(t.messages)+1)
	copy(msgs, t.messages)
	msgs = append(msgs, msg)
	t.messages = msgs
	return msgs
}

// Seed resets the transcript to the welcome message, plus the lead-capture
// prompt when requested.
func (t *Transcript) Seed(welcomeText string, leadCapture bool) Snapshot {
	msgs := []models.Message{models.NewMessage(models.RoleWelcome, welcomeText)}
	if leadCapture {
		msgs = append(msgs, models.NewMessage(models.RoleLeadCapture, ""))
	}
	t.messages = msgs
	return msgs
}

// Restore replaces the transcript with persisted history. Lead-capture rows
// are never restored; when nothing usable remains the welcome message is
// seeded instead.
func (t *Transcript) Restore(history []models.Message, welcomeText string) Snapshot {
	msgs := make([]models.Message, 0, len(history))
	for _, msg := range history {
		if msg.Role == models.RoleLeadCapture {
			continue
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return t.Seed(welcomeText, false)
	}
	t.messages = msgs
	return msgs
}

// AppendUserTurn appends a user message carrying the upload descriptors
// attached at submission time.
func (t *Transcript) AppendUserTurn(text string, uploads []models.FileUpload) Snapshot {
	msg := models.NewMessage(models.RoleUser, text)
	msg.FileUploads = uploads
	return t.appendMessage(msg)
}

// StartAssistantTurn appends a new empty assistant message (stream start).
func (t *Transcript) StartAssistantTurn() Snapshot {
	return t.appendMessage(models.NewMessage(models.RoleAssistant, ""))
}

// AppendAssistant appends a fully built assistant message (buffered mode).
// Receiving a buffered response fires the same per-turn cue as the first
// streamed token.
func (t *Transcript) AppendAssistant(msg models.Message) Snapshot {
	msg.Role = models.RoleAssistant
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	snap := t.appendMessage(msg)
	t.fireReceiveCue()
	return snap
}

// AppendErrorTurn always appends a new assistant message carrying the error
// text; it never mutates an in-progress turn.
func (t *Transcript) AppendErrorTurn(text string) Snapshot {
	return t.appendMessage(models.NewMessage(models.RoleAssistant, text))
}

// AppendToken concatenates streamed text to the last message. Growing a
// message invalidates any rating it carried and refreshes its timestamp.
// The first token of a turn fires the receive cue exactly once.
func (t *Transcript) AppendToken(text string) (Snapshot, bool) {
	if t.lastIsUser() || text == "" {
		return t.messages, false
	}

	snap := t.mutateLast(func(msg *models.Message) {
		msg.Text += text
		msg.Rating = ""
		msg.Timestamp = time.Now().UTC()
	})

	t.fireReceiveCue()
	return snap, true
}

// fireReceiveCue invokes the notify hook at most once per turn.
func (t *Transcript) fireReceiveCue() {
	if t.soundPlayed {
		return
	}
	t.soundPlayed = true
	if t.notify != nil {
		t.notify()
	}
}

// ResetTokenLatch re-arms the receive cue for the next turn. Called on every
// path through stream cleanup.
func (t *Transcript) ResetTokenLatch() {
	t.soundPlayed = false
}

// SetSourceDocuments replaces the citations on the last message. Like the
// agent-reasoning and action setters, and unlike the other enrichment
// setters, this applies to whatever message is last regardless of its role.
func (t *Transcript) SetSourceDocuments(docs []models.SourceDocument) (Snapshot, bool) {
	if len(t.messages) == 0 {
		return t.messages, false
	}
	return t.mutateLast(func(msg *models.Message) {
		msg.SourceDocuments = docs
	}), true
}

// SetUsedTools replaces the tool-call trace on the last message unless the
// last message is a user turn.
func (t *Transcript) SetUsedTools(tools []models.ToolInvocation) (Snapshot, bool) {
	if t.lastIsUser() {
		return t.messages, false
	}
	return t.mutateLast(func(msg *models.Message) {
		msg.UsedTools = tools
	}), true
}

// SetFileAnnotations replaces the file annotations on the last message
// unless the last message is a user turn.
func (t *Transcript) SetFileAnnotations(annotations []models.FileAnnotation) (Snapshot, bool) {
	if t.lastIsUser() {
		return t.messages, false
	}
	return t.mutateLast(func(msg *models.Message) {
		msg.FileAnnotations = annotations
	}), true
}

// SetArtifacts replaces the generated artifacts on the last message unless
// the last message is a user turn.
func (t *Transcript) SetArtifacts(artifacts []models.FileUpload) (Snapshot, bool) {
	if t.lastIsUser() {
		return t.messages, false
	}
	return t.mutateLast(func(msg *models.Message) {
		msg.Artifacts = artifacts
	}), true
}

// SetAgentReasoning replaces the reasoning trace on the last message,
// regardless of its role.
func (t *Transcript) SetAgentReasoning(entries []models.AgentReasoning) (Snapshot, bool) {
	if len(t.messages) == 0 {
		return t.messages, false
	}
	return t.mutateLast(func(msg *models.Message) {
		msg.AgentReasoning = entries
	}), true
}

// SetAction replaces the pending action on the last message, regardless of
// its role.
func (t *Transcript) SetAction(action *models.Action) (Snapshot, bool) {
	if len(t.messages) == 0 {
		return t.messages, false
	}
	return t.mutateLast(func(msg *models.Message) {
		msg.Action = action
	}), true
}

// ClearAction removes the pending action from the last message once the
// user resolves it.
func (t *Transcript) ClearAction() (Snapshot, bool) {
	if len(t.messages) == 0 {
		return t.messages, false
	}
	return t.mutateLast(func(msg *models.Message) {
		msg.Action = nil
	}), true
}

// SetFollowUpPrompts stores the raw follow-up prompt payload on the last
// message unless the last message is a user turn.
func (t *Transcript) SetFollowUpPrompts(raw string) (Snapshot, bool) {
	if t.lastIsUser() {
		return t.messages, false
	}
	return t.mutateLast(func(msg *models.Message) {
		msg.FollowUpPrompts = raw
	}), true
}

// SetLastMessageID backfills the server-assigned id onto the last message
// when it is assistant-authored.
func (t *Transcript) SetLastMessageID(id string) (Snapshot, bool) {
	if len(t.messages) == 0 || !assistantAuthored(t.messages[len(t.messages)-1].Role) {
		return t.messages, false
	}
	return t.mutateLast(func(msg *models.Message) {
		msg.ID = id
	}), true
}

// CorrectPrecedingUserText backfills the second-to-last message's text with
// the question the backend recognized, for turns submitted with no visible
// text (voice input). No-op when the second-to-last message is
// assistant-authored, which guards against an unexpected transcript shape.
func (t *Transcript) CorrectPrecedingUserText(question string) (Snapshot, bool) {
	if len(t.messages) < 2 {
		return t.messages, false
	}
	idx := len(t.messages) - 2
	if assistantAuthored(t.messages[idx].Role) {
		return t.messages, false
	}

	msgs := make([]models.Message, len(t.messages))
	copy(msgs, t.messages)
	msgs[idx].Text = question
	t.messages = msgs
	return msgs, true
}

// RedactUploads strips inline payloads from the second-to-last message's
// uploads once the turn completes, so raw file data never lingers in the
// committed transcript.
func (t *Transcript) RedactUploads() (Snapshot, bool) {
	if len(t.messages) < 2 {
		return t.messages, false
	}
	idx := len(t.messages) - 2
	if t.messages[idx].Role != models.RoleUser || len(t.messages[idx].FileUploads) == 0 {
		return t.messages, false
	}

	msgs := make([]models.Message, len(t.messages))
	copy(msgs, t.messages)
	msgs[idx].FileUploads = models.LeanUploads(msgs[idx].FileUploads)
	t.messages = msgs
	return msgs, true
}

// AbortTurn drops in-progress reasoning entries that declare a next-agent
// continuation: handoffs that never completed are not worth keeping.
func (t *Transcript) AbortTurn() (Snapshot, bool) {
	if t.lastIsUser() {
		return t.messages, false
	}
	last := t.messages[len(t.messages)-1]
	if len(last.AgentReasoning) == 0 {
		return t.messages, false
	}

	kept := make([]models.AgentReasoning, 0, len(last.AgentReasoning))
	for _, entry := range last.AgentReasoning {
		if entry.NextAgent == "" {
			kept = append(kept, entry)
		}
	}
	return t.mutateLast(func(msg *models.Message) {
		msg.AgentReasoning = kept
	}), true
}

// SetRating records user feedback on the message with the given id.
func (t *Transcript) SetRating(messageID string, rating models.FeedbackRating) (Snapshot, bool) {
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].ID == messageID {
			msgs := make([]models.Message, len(t.messages))
			copy(msgs, t.messages)
			msgs[i].Rating = rating
			t.messages = msgs
			return msgs, true
		}
	}
	return t.messages, false
}

// PersistableHistory returns the snapshot with upload payloads stripped to
// their lean descriptors, the only form the store ever sees.
func PersistableHistory(snap Snapshot) []models.Message {
	out := make([]models.Message, len(snap))
	for i, msg := range snap {
		if len(msg.FileUploads) > 0 {
			msg.FileUploads = models.LeanUploads(msg.FileUploads)
		}
		out[i] = msg
	}
	return out
}
