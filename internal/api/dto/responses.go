package dto

import "github.com/chatembed/session-service/internal/domain/models"

// SessionResponse represents the observable session state returned by the
// submit, history, action, and clear endpoints.
type SessionResponse struct {
	ChatID          string           `json:"chatId"`
	Messages        []models.Message `json:"messages"`
	Loading         bool             `json:"loading"`
	InputDisabled   bool             `json:"inputDisabled"`
	FollowUpPrompts []string         `json:"followUpPrompts,omitempty"`
	StarterPrompts  []string         `json:"starterPrompts,omitempty"`
}

// LeadResponse confirms a saved lead.
type LeadResponse struct {
	ChatID string      `json:"chatId"`
	Lead   models.Lead `json:"lead"`
}

// DisclaimerResponse reports the disclaimer acknowledgement state.
type DisclaimerResponse struct {
	Accepted bool `json:"accepted"`
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}
