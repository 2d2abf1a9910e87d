package prediction_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatembed/session-service/internal/domain/errors"
	"github.com/chatembed/session-service/internal/services/prediction"
)

func newTestClient(t *testing.T, handler http.Handler) *prediction.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := prediction.NewClient(&prediction.Config{APIHost: server.URL})
	require.NoError(t, err)
	return client
}

func TestNewClientValidation(t *testing.T) {
	_, err := prediction.NewClient(nil)
	assert.Error(t, err)

	_, err = prediction.NewClient(&prediction.Config{})
	assert.Error(t, err)
}

func TestSendMessage(t *testing.T) {
	var gotPath, gotContentType string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"answer","chatId":"chat-remote","chatMessageId":"msg-1"}`))
	}))

	resp, err := client.SendMessage(context.Background(), "flow-1", &prediction.PredictionRequest{
		Question: "hello",
		ChatID:   "chat-1",
	})

	require.NoError(t, err)
	assert.Equal(t, "/api/v1/prediction/flow-1", gotPath)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "answer", resp.Text)
	assert.Equal(t, "chat-remote", resp.ChatID)
	assert.Equal(t, "msg-1", resp.ChatMessageID)
}

func TestSendMessageErrorDecoding(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"object with message", http.StatusInternalServerError, `{"message":"flow is broken"}`, "flow is broken"},
		{"object with error", http.StatusBadRequest, `{"error":"bad input"}`, "bad input"},
		{"plain JSON string", http.StatusInternalServerError, `"something failed"`, "something failed"},
		{"raw text", http.StatusBadGateway, `upstream exploded`, "upstream exploded"},
		{"empty body", http.StatusServiceUnavailable, ``, "prediction backend returned status 503"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))

			_, err := client.SendMessage(context.Background(), "flow-1", &prediction.PredictionRequest{Question: "q"})

			require.Error(t, err)
			domainErr, ok := errors.GetDomainError(err)
			require.True(t, ok)
			assert.Equal(t, tt.message, domainErr.Message)
			assert.Equal(t, tt.status, domainErr.HTTPStatus)
		})
	}
}

func TestRequestHookRuns(t *testing.T) {
	var gotHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"isStreaming":true}`))
	}))
	defer server.Close()

	client, err := prediction.NewClient(&prediction.Config{
		APIHost: server.URL,
		RequestHook: func(req *http.Request) error {
			req.Header.Set("Authorization", "Bearer token")
			return nil
		},
	})
	require.NoError(t, err)

	streaming, err := client.IsStreamAvailable(context.Background(), "flow-1")

	require.NoError(t, err)
	assert.True(t, streaming)
	assert.Equal(t, "Bearer token", gotHeader)
}

func TestFetchConfig(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/public-chatbotConfig/flow-1", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"starterPrompts": ["Ask me anything"],
			"chatFeedback": {"status": true},
			"leads": {"status": true, "email": true}
		}`))
	}))

	cfg, err := client.FetchConfig(context.Background(), "flow-1")

	require.NoError(t, err)
	assert.Equal(t, []string{"Ask me anything"}, []string(cfg.StarterPrompts))
	require.NotNil(t, cfg.ChatFeedback)
	assert.True(t, cfg.ChatFeedback.Status)
	require.NotNil(t, cfg.Leads)
	assert.True(t, cfg.Leads.Email)
}

func TestUpsertVectorStore(t *testing.T) {
	var gotChatID string
	var gotFiles []string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/vector/upsert/flow-1", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotChatID = r.FormValue("chatId")
		for _, header := range r.MultipartForm.File["files"] {
			gotFiles = append(gotFiles, header.Filename)
		}
		w.WriteHeader(http.StatusOK)
	}))

	err := client.UpsertVectorStore(context.Background(), "flow-1", "chat-1", []prediction.IngestFile{
		{Name: "notes.txt", Content: []byte("hello")},
		{Name: "report.pdf", Content: []byte("%PDF")},
	})

	require.NoError(t, err)
	assert.Equal(t, "chat-1", gotChatID)
	assert.Equal(t, []string{"notes.txt", "report.pdf"}, gotFiles)
}

func TestUpsertVectorStoreFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`ingestion broke`))
	}))

	err := client.UpsertVectorStore(context.Background(), "flow-1", "chat-1", []prediction.IngestFile{
		{Name: "notes.txt", Content: []byte("hello")},
	})

	require.Error(t, err)
	assert.True(t, errors.IsDomainError(err))
}

func TestOpenStreamReadsEvents(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"streaming":true`)

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("event: message\n"))
		_, _ = w.Write([]byte("data: {\"event\":\"start\",\"data\":\"\"}\n\n"))
		_, _ = w.Write([]byte("data: {\"event\":\"token\",\"data\":\"Hel\"}\n\n"))
		_, _ = w.Write([]byte("data: not json at all\n\n"))
		_, _ = w.Write([]byte("{\"event\":\"token\",\"data\":\"lo\"}\n\n"))
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
		_, _ = w.Write([]byte("data: {\"event\":\"end\",\"data\":\"\"}\n\n"))
	}))

	stream, err := client.OpenStream(context.Background(), "flow-1", &prediction.PredictionRequest{Question: "q"})
	require.NoError(t, err)
	defer stream.Close()

	var events []string
	var text string
	for {
		ev, err := stream.Read()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		events = append(events, ev.Event)
		if ev.Event == prediction.EventToken {
			text += ev.Text()
		}
	}

	assert.Equal(t, []string{"start", "token", "token", "end"}, events)
	assert.Equal(t, "Hello", text)
}

func TestOpenStreamRejections(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"rate limited with body", http.StatusTooManyRequests, "slow down", "slow down"},
		{"rate limited without body", http.StatusTooManyRequests, "", "Too many requests. Please try again later."},
		{"forbidden without body", http.StatusForbidden, "", "Unauthorized"},
		{"unauthenticated without body", http.StatusUnauthorized, "", "Unauthenticated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))

			_, err := client.OpenStream(context.Background(), "flow-1", &prediction.PredictionRequest{Question: "q"})

			require.Error(t, err)
			domainErr, ok := errors.GetDomainError(err)
			require.True(t, ok)
			assert.Equal(t, tt.message, domainErr.Message)
			assert.Equal(t, tt.status, domainErr.HTTPStatus)
		})
	}
}

func TestOpenStreamRejectsNonStreamContentType(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"buffered anyway"}`))
	}))

	_, err := client.OpenStream(context.Background(), "flow-1", &prediction.PredictionRequest{Question: "q"})

	assert.Error(t, err)
}

func TestStreamCloseIsIdempotent(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: {\"event\":\"end\",\"data\":\"\"}\n\n"))
	}))

	stream, err := client.OpenStream(context.Background(), "flow-1", &prediction.PredictionRequest{Question: "q"})
	require.NoError(t, err)

	require.NoError(t, stream.Close())
	require.NoError(t, stream.Close())

	_, err = stream.Read()
	assert.Equal(t, io.EOF, err)
}
