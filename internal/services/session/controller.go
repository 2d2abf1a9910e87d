// Package session implements the conversation session controller: the state
// machine that owns a transcript, drives turns through the prediction
// backend in buffered or streaming mode, and mirrors every committed
// mutation into the conversation store.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chatembed/session-service/internal/core/store"
	"github.com/chatembed/session-service/internal/domain/errors"
	"github.com/chatembed/session-service/internal/domain/models"
	"github.com/chatembed/session-service/internal/services/prediction"
	"github.com/chatembed/session-service/internal/services/transcript"
)

const (
	// DefaultWelcomeMessage seeds a fresh transcript when the flow does not
	// configure its own greeting.
	DefaultWelcomeMessage = "Hi there! How can I help?"

	// genericErrorMessage surfaces failures whose payload carried nothing
	// readable.
	genericErrorMessage = "Oops! There seems to be an error. Please try again."

	// uploadErrorMessage surfaces a failed document ingestion.
	uploadErrorMessage = "Unable to upload documents"

	// defaultSettlingDelay gives the backend knowledge store time to index
	// freshly ingested documents before the question about them is asked.
	// A fixed wait is a heuristic carried over for timing compatibility;
	// the backend offers no indexing-complete signal to await instead.
	defaultSettlingDelay = 2500 * time.Millisecond

	// disclaimerFlag persists the one-time disclaimer acknowledgement.
	disclaimerFlag = "disclaimer"
	disclaimerTTL  = 365 * 24 * time.Hour
)

// Observer receives state-change notifications from a controller. Each hook
// is independent and optional; hooks run synchronously on the mutating call,
// so they must not call back into the controller.
type Observer struct {
	OnMessages        func(transcript.Snapshot)
	OnLoading         func(bool)
	OnInput           func(string)
	OnFollowUpPrompts func([]string)
	OnNotify          func()
}

// Config carries the dependencies and flow-level settings of a controller.
type Config struct {
	FlowID     string
	ChatID     string // empty requests a fresh conversation id
	CustomerID string // optional external id prefixed onto generated chat ids

	Backend *prediction.Client
	Store   store.Store

	WelcomeMessage string
	ErrorMessage   string // overrides every backend-provided error text
	OverrideConfig map[string]any
	SettlingDelay  time.Duration
	ClearOnStart   bool // wipe persisted history on mount instead of restoring it

	Logger zerolog.Logger
}

// Controller is the per-conversation session state machine. All exported
// methods are safe for concurrent use; mutations are serialized on an
// internal mutex and blocking I/O runs outside of it.
type Controller struct {
	mu  sync.Mutex
	cfg Config
	log zerolog.Logger

	chatID     string
	transcript *transcript.Transcript
	widget     models.WidgetConfig

	streamAvailable bool
	loading         bool
	input           string
	previews        []models.FileUpload
	ingestQueue     []prediction.IngestFile
	followUps       []string
	lead            *models.Lead

	cancelStream context.CancelFunc

	observers    map[int]Observer
	nextObserver int
}

// NewController creates a controller for one conversation. Call Mount before
// any other operation.
func NewController(cfg Config) (*Controller, error) {
	if cfg.FlowID == "" {
		return nil, errors.NewValidationError("flow id is required", "")
	}
	if cfg.Backend == nil {
		return nil, errors.NewInternalError("prediction backend is required", nil)
	}
	if cfg.Store == nil {
		return nil, errors.NewInternalError("conversation store is required", nil)
	}
	if cfg.WelcomeMessage == "" {
		cfg.WelcomeMessage = DefaultWelcomeMessage
	}
	if cfg.SettlingDelay == 0 {
		cfg.SettlingDelay = defaultSettlingDelay
	}

	c := &Controller{
		cfg:       cfg,
		log:       cfg.Logger.With().Str("component", "session").Str("flowId", cfg.FlowID).Logger(),
		chatID:    cfg.ChatID,
		observers: map[int]Observer{},
	}
	c.transcript = transcript.New(c.notifyObservers)
	return c, nil
}

// Mount initializes the session: restores persisted state (or seeds a fresh
// transcript), fetches the widget configuration, and probes the backend's
// streaming capability. Store and configuration failures degrade to defaults
// rather than failing the mount.
func (c *Controller) Mount(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.chatID == "" {
		c.chatID = newChatID(c.cfg.CustomerID)
	}

	if widget, err := c.cfg.Backend.FetchConfig(ctx, c.cfg.FlowID); err != nil {
		c.log.Warn().Err(err).Msg("Failed to fetch widget configuration, using defaults")
	} else if widget != nil {
		c.widget = *widget
	}

	available, err := c.cfg.Backend.IsStreamAvailable(ctx, c.cfg.FlowID)
	if err != nil {
		c.log.Warn().Err(err).Msg("Streaming capability probe failed, falling back to buffered mode")
	}
	c.streamAvailable = available

	var state *store.ConversationState
	if c.cfg.ClearOnStart {
		if err := c.cfg.Store.Delete(ctx, c.cfg.FlowID, c.chatID); err != nil {
			c.log.Warn().Err(err).Msg("Failed to clear persisted conversation on start")
		}
	} else {
		var err error
		state, err = c.cfg.Store.Load(ctx, c.cfg.FlowID, c.chatID)
		if err != nil {
			c.log.Warn().Err(err).Msg("Failed to load persisted conversation, starting fresh")
			state = nil
		}
	}

	if state != nil {
		c.transcript.Restore(state.ChatHistory, c.cfg.WelcomeMessage)
		c.lead = state.Lead
	} else {
		c.transcript.Seed(c.cfg.WelcomeMessage, c.leadCapturePending())
	}

	c.persistLocked(ctx)
	c.publishLocked()
	return nil
}

// ChatID returns the current conversation id. It can change mid-session when
// the backend assigns its own id via metadata.
func (c *Controller) ChatID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chatID
}

// Messages returns the current transcript snapshot.
func (c *Controller) Messages() transcript.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript.Messages()
}

// Loading reports whether a turn is in flight.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// FollowUpPrompts returns the active suggestion set.
func (c *Controller) FollowUpPrompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.followUps
}

// WidgetConfig returns the flow-level configuration fetched at mount.
func (c *Controller) WidgetConfig() models.WidgetConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.widget
}

// InputDisabled reports whether free-text input is currently gated: a turn
// in flight, or a pending action awaiting resolution.
func (c *Controller) InputDisabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading || !c.pendingActionLocked().IsEmpty()
}

// SetInput updates the input buffer and notifies input observers.
func (c *Controller) SetInput(text string) {
	c.mu.Lock()
	c.input = text
	c.mu.Unlock()
	c.publish()
}

// Subscribe registers an observer and returns its removal function. The
// observer immediately receives the current state.
func (c *Controller) Subscribe(obs Observer) func() {
	c.mu.Lock()
	id := c.nextObserver
	c.nextObserver++
	c.observers[id] = obs
	c.mu.Unlock()

	c.publish()
	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

// QueueUpload validates an attachment against the flow's upload constraints
// and stages it for the next submission.
func (c *Controller) QueueUpload(upload models.FileUpload) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if upload.Type == models.UploadTypeFile && !c.widget.Uploads.Allows(upload.Mime, upload.Name, int64(len(upload.Data))) {
		return errors.NewUploadError("file type or size not allowed for this flow", nil)
	}
	c.previews = append(c.previews, upload)
	return nil
}

// RemoveUpload discards a staged attachment by index.
func (c *Controller) RemoveUpload(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.previews) {
		return
	}
	c.previews = append(c.previews[:index], c.previews[index+1:]...)
}

// Previews returns the currently staged attachments.
func (c *Controller) Previews() []models.FileUpload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.FileUpload(nil), c.previews...)
}

// QueueIngestFile stages a raw document for ingestion into the backend
// knowledge store on the next submission.
func (c *Controller) QueueIngestFile(name string, content []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ingestQueue = append(c.ingestQueue, prediction.IngestFile{Name: name, Content: content})
}

// Submit runs one full turn: validate, append the user message, ingest any
// queued documents, dispatch to the backend in streaming or buffered mode,
// and clean up. It blocks until the turn completes or fails; transport
// failures surface on the transcript, not as a returned error.
func (c *Controller) Submit(ctx context.Context, text string) error {
	return c.submit(ctx, text, nil)
}

func (c *Controller) submit(ctx context.Context, text string, action *models.Action) error {
	c.mu.Lock()

	if c.loading {
		c.mu.Unlock()
		return errors.NewValidationError("a response is already in progress", "")
	}
	if action == nil && !c.pendingActionLocked().IsEmpty() {
		c.mu.Unlock()
		return errors.NewValidationError("a pending action must be resolved first", "")
	}

	text = strings.TrimSpace(text)
	if text == "" && !uploadsPermitEmptyText(c.previews) {
		c.mu.Unlock()
		return errors.NewValidationError("message text is required", "")
	}

	c.loading = true
	c.input = ""
	c.followUps = nil

	uploads := attachableUploads(c.previews)
	c.previews = nil
	ingest := c.ingestQueue
	c.ingestQueue = nil

	c.transcript.AppendUserTurn(text, uploads)
	c.persistLocked(ctx)

	req := &prediction.PredictionRequest{
		Question:       text,
		ChatID:         c.chatID,
		Uploads:        uploads,
		OverrideConfig: c.cfg.OverrideConfig,
		Action:         action,
	}
	if c.lead != nil && c.lead.Email != "" {
		req.LeadEmail = c.lead.Email
	}
	streaming := c.streamAvailable
	c.mu.Unlock()
	c.publish()

	if len(ingest) > 0 {
		c.ingestDocuments(ctx, ingest)
	}

	if streaming {
		c.streamTurn(ctx, req, text)
	} else {
		c.bufferedTurn(ctx, req, text)
	}

	c.closeResponse(ctx)
	return nil
}

// ingestDocuments uploads queued raw files through the vector-upsert
// side-channel. On success it waits the settling delay so indexing catches
// up before the main request; on failure the turn proceeds anyway with an
// error note on the transcript.
func (c *Controller) ingestDocuments(ctx context.Context, files []prediction.IngestFile) {
	c.mu.Lock()
	chatID := c.chatID
	c.mu.Unlock()

	if err := c.cfg.Backend.UpsertVectorStore(ctx, c.cfg.FlowID, chatID, files); err != nil {
		c.log.Error().Err(err).Msg("Document ingestion failed")
		c.commit(ctx, func() { c.transcript.AppendErrorTurn(c.errorText(uploadErrorMessage)) })
		return
	}

	select {
	case <-time.After(c.cfg.SettlingDelay):
	case <-ctx.Done():
	}
}

// streamTurn drives one turn over the event stream.
func (c *Controller) streamTurn(ctx context.Context, req *prediction.PredictionRequest, question string) {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	c.cancelStream = cancel
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.cancelStream = nil
		c.mu.Unlock()
	}()

	reader, err := c.cfg.Backend.OpenStream(streamCtx, c.cfg.FlowID, req)
	if err != nil {
		c.failErr(ctx, err)
		return
	}
	defer reader.Close()

	for {
		ev, err := reader.Read()
		if err != nil {
			if streamCtx.Err() != nil {
				// User-initiated cancel; truncate speculative handoffs
				// instead of reporting an error.
				c.commit(ctx, func() { c.transcript.AbortTurn() })
				return
			}
			if err != io.EOF {
				c.failErr(ctx, err)
			}
			return
		}
		if done := c.handleStreamEvent(ctx, ev, question); done {
			return
		}
	}
}

// bufferedTurn drives one turn through the single request/response path.
func (c *Controller) bufferedTurn(ctx context.Context, req *prediction.PredictionRequest, question string) {
	resp, err := c.cfg.Backend.SendMessage(ctx, c.cfg.FlowID, req)
	if err != nil {
		c.failErr(ctx, err)
		return
	}

	msg := models.NewMessage(models.RoleAssistant, resp.Text)
	if msg.Text == "" && len(resp.JSON) > 0 {
		msg.Text = renderJSON(resp.JSON)
	}
	if msg.Text == "" && len(resp.Raw) > 0 {
		// Flows without a text or json field still produce a visible
		// reply: the whole payload, pretty-printed.
		msg.Text = renderJSON(resp.Raw)
	}
	msg.SourceDocuments = resp.SourceDocuments
	msg.UsedTools = resp.UsedTools
	msg.FileAnnotations = resp.FileAnnotations
	msg.Artifacts = resp.Artifacts
	if len(resp.AgentReasoning) > 0 {
		if entries, err := models.ParseAgentReasoning(resp.AgentReasoning); err == nil {
			msg.AgentReasoning = entries
		} else {
			c.logProtocolError("agentReasoning", err)
		}
	}
	if len(resp.Action) > 0 {
		if action, err := models.ParseAction(resp.Action); err == nil && !action.IsEmpty() {
			msg.Action = action
		} else if err != nil {
			c.logProtocolError("action", err)
		}
	}

	c.commit(ctx, func() { c.transcript.AppendAssistant(msg) })
	c.applyMetadata(ctx, &resp.Metadata, question)
}

// applyMetadata merges the backend's turn metadata: server-assigned
// conversation id, assistant message id, recognized question backfill, and
// follow-up suggestions. Both the streaming metadata event and the buffered
// response funnel through here.
func (c *Controller) applyMetadata(ctx context.Context, meta *prediction.Metadata, question string) {
	c.mu.Lock()

	if meta.ChatID != "" && meta.ChatID != c.chatID {
		c.chatID = meta.ChatID
	}
	if meta.ChatMessageID != "" {
		c.transcript.SetLastMessageID(meta.ChatMessageID)
	}
	if question == "" && meta.Question != "" {
		c.transcript.CorrectPrecedingUserText(meta.Question)
	}
	if meta.FollowUpPrompts != "" {
		if _, changed := c.transcript.SetFollowUpPrompts(meta.FollowUpPrompts); changed {
			if prompts, err := models.ParseFollowUpPrompts(meta.FollowUpPrompts); err != nil {
				c.log.Warn().Err(err).Msg("Failed to parse follow-up prompts")
			} else {
				c.followUps = prompts
			}
		}
	}

	c.persistLocked(ctx)
	c.publishLocked()
	c.mu.Unlock()
}

// Abort cancels the in-flight stream. Cleanup runs on the submitting call's
// converged close path, so aborting twice or aborting an idle session is
// harmless.
func (c *Controller) Abort() {
	c.mu.Lock()
	cancel := c.cancelStream
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// closeResponse is the single cleanup path every turn ends through: normal
// end, abort event, user cancel, and transport error all converge here. It
// is idempotent.
func (c *Controller) closeResponse(ctx context.Context) {
	c.mu.Lock()
	c.loading = false
	c.input = ""
	c.previews = nil
	c.transcript.ResetTokenLatch()
	c.transcript.RedactUploads()
	c.persistLocked(ctx)
	c.publishLocked()
	c.mu.Unlock()
}

// Clear wipes the conversation: persisted history is deleted, a fresh
// conversation id is issued (keeping the customer-id prefix), and the
// transcript reseeds with the welcome message plus the lead-capture prompt
// when leads are enabled and still unsaved.
func (c *Controller) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.cfg.Store.Delete(ctx, c.cfg.FlowID, c.chatID); err != nil {
		c.log.Warn().Err(err).Msg("Failed to delete persisted conversation")
	}

	c.chatID = newChatID(c.cfg.CustomerID)
	c.followUps = nil
	c.previews = nil
	c.ingestQueue = nil
	c.transcript.Seed(c.cfg.WelcomeMessage, c.leadCapturePending())
	c.persistLocked(ctx)
	c.publishLocked()
	return nil
}

// SaveLead records the visitor's contact details; the lead email rides along
// on every subsequent prediction request.
func (c *Controller) SaveLead(ctx context.Context, lead models.Lead) error {
	if lead.Email == "" && lead.Name == "" && lead.Phone == "" {
		return errors.NewValidationError("lead must carry at least one contact field", "")
	}

	c.mu.Lock()
	c.lead = &lead
	c.persistLocked(ctx)
	c.publishLocked()
	c.mu.Unlock()
	return nil
}

// Lead returns the saved lead, if any.
func (c *Controller) Lead() *models.Lead {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lead
}

// RateMessage records feedback on a message by its server-assigned id.
// Requires the flow's chat-feedback feature to be enabled.
func (c *Controller) RateMessage(ctx context.Context, messageID string, rating models.FeedbackRating) error {
	if rating != models.RatingThumbsUp && rating != models.RatingThumbsDown {
		return errors.NewValidationError("rating must be THUMBS_UP or THUMBS_DOWN", "")
	}

	c.mu.Lock()
	if c.widget.ChatFeedback == nil || !c.widget.ChatFeedback.Status {
		c.mu.Unlock()
		return errors.NewValidationError("chat feedback is not enabled for this flow", "")
	}
	_, changed := c.transcript.SetRating(messageID, rating)
	if changed {
		c.persistLocked(ctx)
		c.publishLocked()
	}
	c.mu.Unlock()

	if !changed {
		return errors.NewNotFoundError("message", messageID)
	}
	return nil
}

// HandleActionClick resolves a pending action: the action clears from the
// last message and the chosen label is submitted as the next user turn with
// the action attached.
func (c *Controller) HandleActionClick(ctx context.Context, label string) error {
	c.mu.Lock()
	action := c.pendingActionLocked()
	if action.IsEmpty() {
		c.mu.Unlock()
		return errors.NewValidationError("no pending action to resolve", "")
	}
	c.input = label
	c.transcript.ClearAction()
	c.persistLocked(ctx)
	c.publishLocked()
	c.mu.Unlock()

	return c.submit(ctx, label, action)
}

// Unmount tears the session down: the in-flight stream is cancelled and all
// observers are dropped. Persisted state stays in the store.
func (c *Controller) Unmount() {
	c.Abort()
	c.mu.Lock()
	c.observers = map[int]Observer{}
	c.previews = nil
	c.ingestQueue = nil
	c.mu.Unlock()
}

// AcceptDisclaimer persists the one-time disclaimer acknowledgement for a
// year, mirroring the cookie lifetime the embedded widget uses.
func (c *Controller) AcceptDisclaimer(ctx context.Context) error {
	return c.cfg.Store.SetFlag(ctx, c.cfg.FlowID, disclaimerFlag, true, disclaimerTTL)
}

// DisclaimerAccepted reports whether the disclaimer was previously accepted.
func (c *Controller) DisclaimerAccepted(ctx context.Context) (bool, error) {
	return c.cfg.Store.GetFlag(ctx, c.cfg.FlowID, disclaimerFlag)
}

// commit runs a transcript mutation under the lock, then persists and
// publishes the resulting snapshot.
func (c *Controller) commit(ctx context.Context, mutate func()) {
	c.mu.Lock()
	mutate()
	c.persistLocked(ctx)
	c.publishLocked()
	c.mu.Unlock()
}

// failErr surfaces a transport or protocol failure as an error turn, using
// the failure's own message when it carries one.
func (c *Controller) failErr(ctx context.Context, err error) {
	message := ""
	if domainErr, ok := errors.GetDomainError(err); ok {
		message = domainErr.Message
	}
	c.log.Error().Err(err).Msg("Turn failed")
	c.fail(ctx, message)
}

// fail appends an error turn carrying message, the configured override, or
// the generic fallback, in that order of preference.
func (c *Controller) fail(ctx context.Context, message string) {
	c.commit(ctx, func() { c.transcript.AppendErrorTurn(c.errorText(message)) })
}

func (c *Controller) errorText(message string) string {
	if c.cfg.ErrorMessage != "" {
		return c.cfg.ErrorMessage
	}
	if message == "" {
		return genericErrorMessage
	}
	return message
}

// persistLocked overwrites the stored conversation with the current state.
// Callers hold c.mu. Storage failures are logged, never propagated.
func (c *Controller) persistLocked(ctx context.Context) {
	state := &store.ConversationState{
		ChatID:      c.chatID,
		ChatHistory: transcript.PersistableHistory(c.transcript.Messages()),
		Lead:        c.lead,
	}
	if err := c.cfg.Store.Save(ctx, c.cfg.FlowID, state); err != nil {
		c.log.Warn().Err(err).Msg("Failed to persist conversation")
	}
}

// publishLocked snapshots observer state under the lock and schedules
// delivery after release.
func (c *Controller) publishLocked() {
	observers := make([]Observer, 0, len(c.observers))
	for _, obs := range c.observers {
		observers = append(observers, obs)
	}
	snap := c.transcript.Messages()
	loading := c.loading
	input := c.input
	followUps := c.followUps

	for _, obs := range observers {
		if obs.OnMessages != nil {
			obs.OnMessages(snap)
		}
		if obs.OnLoading != nil {
			obs.OnLoading(loading)
		}
		if obs.OnInput != nil {
			obs.OnInput(input)
		}
		if obs.OnFollowUpPrompts != nil {
			obs.OnFollowUpPrompts(followUps)
		}
	}
}

func (c *Controller) publish() {
	c.mu.Lock()
	c.publishLocked()
	c.mu.Unlock()
}

// notifyObservers fires the receive cue hook. Invoked by the transcript's
// one-shot token latch while c.mu is held.
func (c *Controller) notifyObservers() {
	for _, obs := range c.observers {
		if obs.OnNotify != nil {
			obs.OnNotify()
		}
	}
}

func (c *Controller) leadCapturePending() bool {
	return c.widget.Leads != nil && c.widget.Leads.Status && c.lead == nil
}

// pendingActionLocked returns the action attached to the last message, if
// any. Callers hold c.mu.
func (c *Controller) pendingActionLocked() *models.Action {
	last, ok := c.transcript.Last()
	if !ok {
		return nil
	}
	return last.Action
}

func (c *Controller) logProtocolError(event string, err error) {
	c.log.Warn().Err(errors.NewStreamProtocolError(event, err)).Msg("Skipping malformed stream payload")
}

// uploadsPermitEmptyText reports whether an empty-text submission is
// acceptable: there must be staged uploads and every one of them must be an
// image or audio clip. A document-only submission still needs a question.
func uploadsPermitEmptyText(previews []models.FileUpload) bool {
	if len(previews) == 0 {
		return false
	}
	for _, p := range previews {
		if p.IsDocument() {
			return false
		}
	}
	return true
}

// attachableUploads strips local preview URLs before uploads ride on the
// request and land on the transcript.
func attachableUploads(previews []models.FileUpload) []models.FileUpload {
	if len(previews) == 0 {
		return nil
	}
	uploads := make([]models.FileUpload, len(previews))
	for i, p := range previews {
		p.Preview = ""
		uploads[i] = p
	}
	return uploads
}

// newChatID issues a conversation id, keeping the external customer id as a
// prefix when one is configured.
func newChatID(customerID string) string {
	id := uuid.NewString()
	if customerID != "" {
		return customerID + "+" + id
	}
	return id
}

// renderJSON pretty-prints a structured result for flows that answer with
// JSON instead of text.
func renderJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
