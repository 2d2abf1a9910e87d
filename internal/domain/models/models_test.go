package models_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatembed/session-service/internal/domain/models"
)

func TestParseAgentReasoning(t *testing.T) {
	t.Run("structured array", func(t *testing.T) {
		payload := `[{"agentName":"planner","nextAgent":"executor"},{"agentName":"executor"}]`

		entries, err := models.ParseAgentReasoning([]byte(payload))

		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "planner", entries[0].AgentName)
		assert.Equal(t, "executor", entries[0].NextAgent)
		assert.Empty(t, entries[1].NextAgent)
	})

	t.Run("JSON-encoded string form", func(t *testing.T) {
		payload := `"[{\"agentName\":\"planner\"}]"`

		entries, err := models.ParseAgentReasoning([]byte(payload))

		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "planner", entries[0].AgentName)
	})

	t.Run("malformed payload", func(t *testing.T) {
		_, err := models.ParseAgentReasoning([]byte(`{"not":"an array"`))
		assert.Error(t, err)
	})
}

func TestParseAction(t *testing.T) {
	t.Run("structured form", func(t *testing.T) {
		payload := `{"id":"a1","elements":[{"type":"agentflowv2-approve-button","label":"Yes"}]}`

		action, err := models.ParseAction([]byte(payload))

		require.NoError(t, err)
		assert.Equal(t, "a1", action.ID)
		require.Len(t, action.Elements, 1)
		assert.Equal(t, "Yes", action.Elements[0].Label)
		assert.False(t, action.IsEmpty())
	})

	t.Run("string form", func(t *testing.T) {
		payload := `"{\"id\":\"a2\"}"`

		action, err := models.ParseAction([]byte(payload))

		require.NoError(t, err)
		assert.Equal(t, "a2", action.ID)
	})

	t.Run("empty action detected", func(t *testing.T) {
		action, err := models.ParseAction([]byte(`{}`))

		require.NoError(t, err)
		assert.True(t, action.IsEmpty())
		assert.True(t, (*models.Action)(nil).IsEmpty())
	})
}

func TestParseFollowUpPrompts(t *testing.T) {
	prompts, err := models.ParseFollowUpPrompts(`["a","b"]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, prompts)

	_, err = models.ParseFollowUpPrompts(`not json`)
	assert.Error(t, err)
}

func TestSourceDocumentDecoding(t *testing.T) {
	t.Run("document shape", func(t *testing.T) {
		var doc models.SourceDocument
		err := json.Unmarshal([]byte(`{"pageContent":"text","metadata":{"source":"a.pdf"}}`), &doc)

		require.NoError(t, err)
		assert.Equal(t, "text", doc.PageContent)
	})

	t.Run("opaque payload survives a round trip", func(t *testing.T) {
		raw := `"just a string citation"`
		var doc models.SourceDocument
		require.NoError(t, json.Unmarshal([]byte(raw), &doc))

		out, err := json.Marshal(doc)
		require.NoError(t, err)
		assert.JSONEq(t, raw, string(out))
	})
}

func TestStarterPrompts(t *testing.T) {
	t.Run("array form", func(t *testing.T) {
		var prompts models.StarterPrompts
		require.NoError(t, json.Unmarshal([]byte(`["one","","two"]`), &prompts))
		assert.Equal(t, models.StarterPrompts{"one", "two"}, prompts)
	})

	t.Run("keyed object form preserves key order", func(t *testing.T) {
		payload := `{"1":{"prompt":"second"},"0":{"prompt":"first"},"2":{"prompt":""}}`

		var prompts models.StarterPrompts
		require.NoError(t, json.Unmarshal([]byte(payload), &prompts))

		assert.Equal(t, models.StarterPrompts{"first", "second"}, prompts)
	})
}

func TestFileUploadClassification(t *testing.T) {
	image := models.FileUpload{Type: models.UploadTypeFile, Mime: "image/png", Name: "a.png"}
	audio := models.FileUpload{Type: models.UploadTypeAudio, Mime: "audio/wav", Name: "a.wav"}
	document := models.FileUpload{Type: models.UploadTypeURL, Mime: "application/pdf", Name: "a.pdf"}

	assert.True(t, image.IsImage())
	assert.False(t, image.IsDocument())
	assert.True(t, audio.IsAudio())
	assert.False(t, audio.IsDocument())
	assert.True(t, document.IsDocument())
}

func TestFileUploadLean(t *testing.T) {
	upload := models.FileUpload{
		Data:    "data:application/pdf;base64,AAAA",
		Preview: "blob:http://host/xyz",
		Type:    models.UploadTypeFile,
		Name:    "doc.pdf",
		Mime:    "application/pdf",
	}

	lean := upload.Lean()

	assert.Empty(t, lean.Data)
	assert.Empty(t, lean.Preview)
	assert.Equal(t, models.UploadTypeFile, lean.Type)
	assert.Equal(t, "doc.pdf", lean.Name)
	assert.Equal(t, "application/pdf", lean.Mime)
}

func TestUploadsConfigAllows(t *testing.T) {
	cfg := &models.UploadsConfig{
		IsImageUploadAllowed: true,
		ImgUploadSizeAndTypes: []models.UploadConstraint{
			{FileTypes: []string{"image/png", "image/jpeg"}, MaxUploadSize: 5},
		},
		IsFileUploadAllowed: true,
		FileUploadSizeAndTypes: []models.UploadConstraint{
			{FileTypes: []string{".pdf", ".txt"}, MaxUploadSize: 10},
		},
	}

	assert.True(t, cfg.Allows("image/png", "shot.png", 1024*1024))
	assert.False(t, cfg.Allows("image/png", "shot.png", 20*1024*1024))
	assert.True(t, cfg.Allows("application/pdf", "doc.pdf", 1024))
	assert.False(t, cfg.Allows("video/mp4", "clip.mp4", 1024))

	var nilCfg *models.UploadsConfig
	assert.False(t, nilCfg.Allows("image/png", "shot.png", 10))
}

func TestNewMessage(t *testing.T) {
	msg := models.NewMessage(models.RoleAssistant, "hello")

	assert.Equal(t, models.RoleAssistant, msg.Role)
	assert.Equal(t, "hello", msg.Text)
	assert.False(t, msg.Timestamp.IsZero())
	assert.Empty(t, msg.Rating)
}
