// Package models contains domain models for the chat session service.
package models

import "strings"

// Upload type tags, matching the descriptor types the backend accepts.
const (
	UploadTypeFile  = "file"
	UploadTypeAudio = "audio"
	UploadTypeURL   = "url"
)

// FileUpload describes a user-supplied upload. Data carries the inline
// payload (a data URI) and Preview a display reference; both are stripped
// before persistence.
type FileUpload struct {
	Data    string `json:"data,omitempty"`
	Preview string `json:"preview,omitempty"`
	Type    string `json:"type,omitempty"`
	Name    string `json:"name,omitempty"`
	Mime    string `json:"mime,omitempty"`
}

// Lean returns the descriptor without the raw payload and preview reference,
// the only form that is ever persisted.
func (u FileUpload) Lean() FileUpload {
	return FileUpload{
		Type: u.Type,
		Name: u.Name,
		Mime: u.Mime,
	}
}

// IsImage reports whether the upload carries image content.
func (u FileUpload) IsImage() bool {
	return strings.HasPrefix(u.Mime, "image")
}

// IsAudio reports whether the upload is an audio recording.
func (u FileUpload) IsAudio() bool {
	return u.Type == UploadTypeAudio || strings.HasPrefix(u.Mime, "audio")
}

// IsDocument reports whether the upload is a plain document, i.e. neither
// image nor audio content. A bare submission with empty text is rejected
// when any queued upload is a document.
func (u FileUpload) IsDocument() bool {
	return !u.IsImage() && !u.IsAudio()
}

// LeanUploads maps a slice of uploads to their lean form.
func LeanUploads(uploads []FileUpload) []FileUpload {
	if len(uploads) == 0 {
		return nil
	}
	lean := make([]FileUpload, len(uploads))
	for i, u := range uploads {
		lean[i] = u.Lean()
	}
	return lean
}
