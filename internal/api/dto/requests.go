// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import "github.com/chatembed/session-service/internal/domain/models"

// SubmitMessageRequest represents the request body for submitting a turn.
// Text may be empty when every attached upload is an image or audio clip.
type SubmitMessageRequest struct {
	ChatID  string              `json:"chatId"`
	Text    string              `json:"text"`
	Uploads []models.FileUpload `json:"uploads,omitempty"`
}

// ActionClickRequest represents the request body for resolving a pending
// action.
type ActionClickRequest struct {
	ChatID string `json:"chatId" binding:"required"`
	Label  string `json:"label" binding:"required"`
}

// SaveLeadRequest represents the request body for saving visitor contact
// details.
type SaveLeadRequest struct {
	ChatID string `json:"chatId" binding:"required"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
}

// RateMessageRequest represents the request body for rating a message.
type RateMessageRequest struct {
	ChatID    string `json:"chatId" binding:"required"`
	MessageID string `json:"messageId" binding:"required"`
	Rating    string `json:"rating" binding:"required,oneof=THUMBS_UP THUMBS_DOWN"`
}

// IngestFilesRequest is bound from the multipart form of the document
// ingestion endpoint; files arrive as form parts alongside the chat id.
type IngestFilesRequest struct {
	ChatID string `form:"chatId" binding:"required"`
}
