// Package models contains domain models for the chat session service.
package models

import (
	"encoding/json"
	"sort"
	"strings"
)

// WidgetConfig is the flow-level configuration fetched once per session
// mount.
type WidgetConfig struct {
	StarterPrompts  StarterPrompts         `json:"starterPrompts,omitempty"`
	ChatFeedback    *FeatureFlag           `json:"chatFeedback,omitempty"`
	Uploads         *UploadsConfig         `json:"uploads,omitempty"`
	Leads           *LeadsConfig           `json:"leads,omitempty"`
	FollowUpPrompts *FeatureFlag           `json:"followUpPrompts,omitempty"`
	Extra           map[string]interface{} `json:"-"`
}

// FeatureFlag is a backend-togglable feature status.
type FeatureFlag struct {
	Status bool `json:"status"`
}

// StarterPrompts is the ordered list of starter prompts. The backend sends
// either a plain array of strings or an object keyed by position with
// {prompt} values; both decode into the ordered form with empties dropped.
type StarterPrompts []string

// UnmarshalJSON accepts both wire shapes of the starter prompt collection.
func (s *StarterPrompts) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*s = filterEmptyPrompts(list)
		return nil
	}

	var keyed map[string]struct {
		Prompt string `json:"prompt"`
	}
	if err := json.Unmarshal(data, &keyed); err != nil {
		return err
	}

	keys := make([]string, 0, len(keyed))
	for k := range keyed {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	prompts := make([]string, 0, len(keyed))
	for _, k := range keys {
		prompts = append(prompts, keyed[k].Prompt)
	}
	*s = filterEmptyPrompts(prompts)
	return nil
}

func filterEmptyPrompts(prompts []string) []string {
	out := prompts[:0]
	for _, p := range prompts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

// UploadConstraint describes one allowed upload class.
type UploadConstraint struct {
	FileTypes     []string `json:"fileTypes"`
	MaxUploadSize int      `json:"maxUploadSize"`
}

// UploadsConfig holds the upload constraints advertised by the backend.
type UploadsConfig struct {
	ImgUploadSizeAndTypes  []UploadConstraint `json:"imgUploadSizeAndTypes,omitempty"`
	FileUploadSizeAndTypes []UploadConstraint `json:"fileUploadSizeAndTypes,omitempty"`
	IsImageUploadAllowed   bool               `json:"isImageUploadAllowed"`
	IsSpeechToTextEnabled  bool               `json:"isSpeechToTextEnabled"`
	IsFileUploadAllowed    bool               `json:"isFileUploadAllowed"`
}

// Allows reports whether an upload with the given mime type, file name and
// size (in bytes) passes the advertised constraints.
func (c *UploadsConfig) Allows(mime, name string, sizeBytes int64) bool {
	if c == nil {
		return false
	}
	sizeMB := float64(sizeBytes) / 1024 / 1024

	if c.IsImageUploadAllowed {
		for _, allowed := range c.ImgUploadSizeAndTypes {
			if containsString(allowed.FileTypes, mime) && sizeMB <= float64(allowed.MaxUploadSize) {
				return true
			}
		}
	}

	if c.IsFileUploadAllowed {
		ext := ""
		if i := strings.LastIndex(name, "."); i >= 0 {
			ext = name[i:]
		}
		for _, allowed := range c.FileUploadSizeAndTypes {
			if len(allowed.FileTypes) == 1 && allowed.FileTypes[0] == "*" {
				return true
			}
			if ext != "" && containsString(allowed.FileTypes, ext) {
				return true
			}
		}
	}

	return false
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// LeadsConfig holds the lead-capture configuration for a flow.
type LeadsConfig struct {
	Status         bool   `json:"status"`
	Title          string `json:"title,omitempty"`
	Name           bool   `json:"name,omitempty"`
	Email          bool   `json:"email,omitempty"`
	Phone          bool   `json:"phone,omitempty"`
	SuccessMessage string `json:"successMessage,omitempty"`
}

// Lead holds the contact details collected by the lead-capture prompt.
type Lead struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}
