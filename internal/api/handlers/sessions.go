// Package handlers provides HTTP handlers for the API.
package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/chatembed/session-service/internal/api/dto"
	"github.com/chatembed/session-service/internal/api/middleware"
	"github.com/chatembed/session-service/internal/api/sse"
	"github.com/chatembed/session-service/internal/domain/errors"
	"github.com/chatembed/session-service/internal/domain/models"
	"github.com/chatembed/session-service/internal/services/session"
	"github.com/chatembed/session-service/internal/services/transcript"
)

// disclaimerCookie mirrors the store-backed disclaimer flag in the browser.
const (
	disclaimerCookie       = "chatbotDisclaimer"
	disclaimerCookieMaxAge = 365 * 24 * 60 * 60
)

// SessionsHandler handles conversation session endpoints.
type SessionsHandler struct {
	manager *session.Manager
}

// NewSessionsHandler creates a new SessionsHandler.
func NewSessionsHandler(manager *session.Manager) *SessionsHandler {
	return &SessionsHandler{manager: manager}
}

// SubmitMessage handles POST /sessions/{flowId}/messages
// @Summary Submit a message
// @Description Runs one conversation turn and returns the resulting session state
// @Tags Sessions
// @Accept json
// @Produce json
// @Param flowId path string true "Conversation flow ID"
// @Param request body dto.SubmitMessageRequest true "Message to submit"
// @Success 200 {object} dto.SessionResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /sessions/{flowId}/messages [post]
func (h *SessionsHandler) SubmitMessage(c *gin.Context) {
	ctx := c.Request.Context()
	flowID := c.Param("flowId")

	var req dto.SubmitMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, errors.NewValidationError("invalid request body", err.Error()))
		return
	}

	ctrl, err := h.manager.GetOrCreate(ctx, flowID, req.ChatID)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	oldChatID := ctrl.ChatID()
	for _, upload := range req.Uploads {
		if err := ctrl.QueueUpload(upload); err != nil {
			middleware.HandleError(c, err)
			return
		}
	}

	if err := ctrl.Submit(ctx, req.Text); err != nil {
		middleware.HandleError(c, err)
		return
	}

	// The backend may have assigned its own conversation id mid-turn.
	h.manager.Rekey(flowID, oldChatID, ctrl.ChatID())
	c.JSON(http.StatusOK, sessionState(ctrl))
}

// GetHistory handles GET /sessions/{flowId}/history
// @Summary Get conversation history
// @Description Returns the session state for a conversation, restoring it from the store when needed
// @Tags Sessions
// @Produce json
// @Param flowId path string true "Conversation flow ID"
// @Param chatId query string false "Conversation ID; omit to start a fresh conversation"
// @Success 200 {object} dto.SessionResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /sessions/{flowId}/history [get]
func (h *SessionsHandler) GetHistory(c *gin.Context) {
	ctrl, err := h.manager.GetOrCreate(c.Request.Context(), c.Param("flowId"), c.Query("chatId"))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionState(ctrl))
}

// ClearSession handles DELETE /sessions/{flowId}
// @Summary Clear a conversation
// @Description Deletes persisted history, issues a fresh conversation id and reseeds the transcript
// @Tags Sessions
// @Produce json
// @Param flowId path string true "Conversation flow ID"
// @Param chatId query string true "Conversation ID"
// @Success 200 {object} dto.SessionResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /sessions/{flowId} [delete]
func (h *SessionsHandler) ClearSession(c *gin.Context) {
	flowID := c.Param("flowId")
	chatID := c.Query("chatId")

	ctrl, ok := h.manager.Get(flowID, chatID)
	if !ok {
		middleware.HandleError(c, errors.NewNotFoundError("session", chatID))
		return
	}

	if err := ctrl.Clear(c.Request.Context()); err != nil {
		middleware.HandleError(c, err)
		return
	}
	h.manager.Rekey(flowID, chatID, ctrl.ChatID())
	c.JSON(http.StatusOK, sessionState(ctrl))
}

// AbortTurn handles POST /sessions/{flowId}/abort
// @Summary Abort the in-flight turn
// @Description Cancels the streaming response for a conversation
// @Tags Sessions
// @Produce json
// @Param flowId path string true "Conversation flow ID"
// @Param chatId query string true "Conversation ID"
// @Success 202 {object} map[string]string
// @Failure 404 {object} dto.ErrorResponse
// @Router /sessions/{flowId}/abort [post]
func (h *SessionsHandler) AbortTurn(c *gin.Context) {
	ctrl, ok := h.manager.Get(c.Param("flowId"), c.Query("chatId"))
	if !ok {
		middleware.HandleError(c, errors.NewNotFoundError("session", c.Query("chatId")))
		return
	}
	ctrl.Abort()
	c.JSON(http.StatusAccepted, gin.H{"status": "aborting"})
}

// ResolveAction handles POST /sessions/{flowId}/action
// @Summary Resolve a pending action
// @Description Clears the pending action and submits the chosen label as the next turn
// @Tags Sessions
// @Accept json
// @Produce json
// @Param flowId path string true "Conversation flow ID"
// @Param request body dto.ActionClickRequest true "Chosen action label"
// @Success 200 {object} dto.SessionResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /sessions/{flowId}/action [post]
func (h *SessionsHandler) ResolveAction(c *gin.Context) {
	var req dto.ActionClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, errors.NewValidationError("invalid request body", err.Error()))
		return
	}

	ctrl, ok := h.manager.Get(c.Param("flowId"), req.ChatID)
	if !ok {
		middleware.HandleError(c, errors.NewNotFoundError("session", req.ChatID))
		return
	}

	if err := ctrl.HandleActionClick(c.Request.Context(), req.Label); err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionState(ctrl))
}

// SaveLead handles POST /sessions/{flowId}/lead
// @Summary Save visitor contact details
// @Description Persists the lead next to the conversation; its email rides on later requests
// @Tags Sessions
// @Accept json
// @Produce json
// @Param flowId path string true "Conversation flow ID"
// @Param request body dto.SaveLeadRequest true "Lead contact details"
// @Success 200 {object} dto.LeadResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /sessions/{flowId}/lead [post]
func (h *SessionsHandler) SaveLead(c *gin.Context) {
	var req dto.SaveLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, errors.NewValidationError("invalid request body", err.Error()))
		return
	}

	ctrl, ok := h.manager.Get(c.Param("flowId"), req.ChatID)
	if !ok {
		middleware.HandleError(c, errors.NewNotFoundError("session", req.ChatID))
		return
	}

	lead := models.Lead{Name: req.Name, Email: req.Email, Phone: req.Phone}
	if err := ctrl.SaveLead(c.Request.Context(), lead); err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.LeadResponse{ChatID: ctrl.ChatID(), Lead: lead})
}

// RateMessage handles POST /sessions/{flowId}/feedback
// @Summary Rate a message
// @Description Records thumbs-up/thumbs-down feedback on an assistant message
// @Tags Sessions
// @Accept json
// @Produce json
// @Param flowId path string true "Conversation flow ID"
// @Param request body dto.RateMessageRequest true "Feedback"
// @Success 200 {object} dto.SessionResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /sessions/{flowId}/feedback [post]
func (h *SessionsHandler) RateMessage(c *gin.Context) {
	var req dto.RateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, errors.NewValidationError("invalid request body", err.Error()))
		return
	}

	ctrl, ok := h.manager.Get(c.Param("flowId"), req.ChatID)
	if !ok {
		middleware.HandleError(c, errors.NewNotFoundError("session", req.ChatID))
		return
	}

	if err := ctrl.RateMessage(c.Request.Context(), req.MessageID, models.FeedbackRating(req.Rating)); err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionState(ctrl))
}

// IngestFiles handles POST /sessions/{flowId}/ingest
// @Summary Queue documents for ingestion
// @Description Stages raw files for the backend knowledge store; they upload on the next submission
// @Tags Sessions
// @Accept multipart/form-data
// @Produce json
// @Param flowId path string true "Conversation flow ID"
// @Param chatId formData string true "Conversation ID"
// @Param files formData file true "Files to ingest"
// @Success 202 {object} map[string]int
// @Failure 400 {object} dto.ErrorResponse
// @Router /sessions/{flowId}/ingest [post]
func (h *SessionsHandler) IngestFiles(c *gin.Context) {
	var req dto.IngestFilesRequest
	if err := c.ShouldBind(&req); err != nil {
		middleware.HandleError(c, errors.NewValidationError("chatId form field is required", err.Error()))
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		middleware.HandleError(c, errors.NewValidationError("invalid multipart form", err.Error()))
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		middleware.HandleError(c, errors.NewValidationError("at least one file is required", ""))
		return
	}

	ctrl, err := h.manager.GetOrCreate(c.Request.Context(), c.Param("flowId"), req.ChatID)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	for _, header := range files {
		f, err := header.Open()
		if err != nil {
			middleware.HandleError(c, errors.NewUploadError("failed to read uploaded file", err))
			return
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			middleware.HandleError(c, errors.NewUploadError("failed to read uploaded file", err))
			return
		}
		ctrl.QueueIngestFile(header.Filename, content)
	}

	c.JSON(http.StatusAccepted, gin.H{"queued": len(files)})
}

// AcceptDisclaimer handles POST /sessions/{flowId}/disclaimer
// @Summary Accept the disclaimer
// @Description Persists the one-time disclaimer acknowledgement and sets its cookie
// @Tags Sessions
// @Produce json
// @Param flowId path string true "Conversation flow ID"
// @Param chatId query string false "Conversation ID"
// @Success 200 {object} dto.DisclaimerResponse
// @Router /sessions/{flowId}/disclaimer [post]
func (h *SessionsHandler) AcceptDisclaimer(c *gin.Context) {
	ctrl, err := h.manager.GetOrCreate(c.Request.Context(), c.Param("flowId"), c.Query("chatId"))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	if err := ctrl.AcceptDisclaimer(c.Request.Context()); err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.SetCookie(disclaimerCookie, "true", disclaimerCookieMaxAge, "/", "", false, false)
	c.JSON(http.StatusOK, dto.DisclaimerResponse{Accepted: true})
}

// GetDisclaimer handles GET /sessions/{flowId}/disclaimer
// @Summary Get disclaimer state
// @Description Reports whether the disclaimer was previously accepted
// @Tags Sessions
// @Produce json
// @Param flowId path string true "Conversation flow ID"
// @Param chatId query string false "Conversation ID"
// @Success 200 {object} dto.DisclaimerResponse
// @Router /sessions/{flowId}/disclaimer [get]
func (h *SessionsHandler) GetDisclaimer(c *gin.Context) {
	if cookie, err := c.Cookie(disclaimerCookie); err == nil && cookie == "true" {
		c.JSON(http.StatusOK, dto.DisclaimerResponse{Accepted: true})
		return
	}

	ctrl, err := h.manager.GetOrCreate(c.Request.Context(), c.Param("flowId"), c.Query("chatId"))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	accepted, err := ctrl.DisclaimerAccepted(c.Request.Context())
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.DisclaimerResponse{Accepted: accepted})
}

// StreamEvents handles GET /sessions/{flowId}/events
// @Summary Subscribe to session state
// @Description Relays transcript, loading, input and suggestion changes as Server-Sent Events
// @Tags Sessions
// @Produce text/event-stream
// @Param flowId path string true "Conversation flow ID"
// @Param chatId query string false "Conversation ID; omit to start a fresh conversation"
// @Success 200 {string} string "event stream"
// @Failure 500 {object} dto.ErrorResponse
// @Router /sessions/{flowId}/events [get]
func (h *SessionsHandler) StreamEvents(c *gin.Context) {
	ctrl, err := h.manager.GetOrCreate(c.Request.Context(), c.Param("flowId"), c.Query("chatId"))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	writer, err := sse.NewWriter(c.Writer)
	if err != nil {
		middleware.HandleError(c, errors.NewInternalError("streaming not supported", err))
		return
	}

	// Observer callbacks fire on the mutating goroutine; hand events to
	// this request's goroutine through a buffered channel so a slow client
	// never stalls a turn.
	events := make(chan func(*sse.Writer) error, 64)
	enqueue := func(write func(*sse.Writer) error) {
		select {
		case events <- write:
		default:
			log.Warn().Str("flowId", c.Param("flowId")).Msg("SSE relay buffer full, dropping event")
		}
	}

	unsubscribe := ctrl.Subscribe(session.Observer{
		OnMessages: func(snap transcript.Snapshot) {
			enqueue(func(w *sse.Writer) error { return w.WriteMessages(snap) })
		},
		OnLoading: func(loading bool) {
			enqueue(func(w *sse.Writer) error { return w.WriteLoading(loading) })
		},
		OnInput: func(text string) {
			enqueue(func(w *sse.Writer) error { return w.WriteInput(text) })
		},
		OnFollowUpPrompts: func(prompts []string) {
			enqueue(func(w *sse.Writer) error { return w.WriteFollowUpPrompts(prompts) })
		},
		OnNotify: func() {
			enqueue(func(w *sse.Writer) error { return w.WriteNotify() })
		},
	})
	defer unsubscribe()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case write := <-events:
			if err := write(writer); err != nil {
				return
			}
		}
	}
}

// sessionState builds the observable state payload for a controller.
func sessionState(ctrl *session.Controller) dto.SessionResponse {
	return dto.SessionResponse{
		ChatID:          ctrl.ChatID(),
		Messages:        ctrl.Messages(),
		Loading:         ctrl.Loading(),
		InputDisabled:   ctrl.InputDisabled(),
		FollowUpPrompts: ctrl.FollowUpPrompts(),
		StarterPrompts:  ctrl.WidgetConfig().StarterPrompts,
	}
}
