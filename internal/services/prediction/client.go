// Package prediction provides the HTTP client for the prediction backend.
package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/chatembed/session-service/internal/domain/errors"
	"github.com/chatembed/session-service/internal/domain/models"
)

// RequestHook is invoked before every outbound request, letting the host
// application decorate it (auth headers, tracing).
type RequestHook func(req *http.Request) error

// Config holds the configuration for the prediction client.
type Config struct {
	APIHost     string
	RequestHook RequestHook
	HTTPClient  *http.Client
}

// Client talks to the prediction backend: buffered calls, the streaming
// channel, the capability probe, the widget configuration fetch and the
// document ingestion side-channel.
type Client struct {
	apiHost     string
	requestHook RequestHook
	httpClient  *http.Client
}

// NewClient creates a new prediction client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.APIHost == "" {
		return nil, fmt.Errorf("API host is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 5 * time.Minute, // Longer timeout for streaming
		}
	}

	return &Client{
		apiHost:     strings.TrimSuffix(cfg.APIHost, "/"),
		requestHook: cfg.RequestHook,
		httpClient:  httpClient,
	}, nil
}

// SendMessage performs the buffered prediction round trip.
func (c *Client) SendMessage(ctx context.Context, flowID string, req *PredictionRequest) (*PredictionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/prediction/%s", c.apiHost, flowID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.do(httpReq)
	if err != nil {
		return nil, errors.NewTransportError("failed to reach prediction backend", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readErrorResponse(resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewTransportError("failed to read prediction response", resp.StatusCode, err)
	}

	var prediction PredictionResponse
	if err := json.Unmarshal(raw, &prediction); err != nil {
		return nil, errors.NewTransportError("failed to decode prediction response", resp.StatusCode, err)
	}
	prediction.Raw = raw
	return &prediction, nil
}

// IsStreamAvailable probes whether the flow supports streaming. Consulted
// once per session mount.
func (c *Client) IsStreamAvailable(ctx context.Context, flowID string) (bool, error) {
	url := fmt.Sprintf("%s/api/v1/chatflows-streaming/%s", c.apiHost, flowID)

	var result StreamAvailabilityResponse
	if err := c.getJSON(ctx, url, &result); err != nil {
		return false, err
	}
	return result.IsStreaming, nil
}

// FetchConfig retrieves the flow-level widget configuration.
func (c *Client) FetchConfig(ctx context.Context, flowID string) (*models.WidgetConfig, error) {
	url := fmt.Sprintf("%s/api/v1/public-chatbotConfig/%s", c.apiHost, flowID)

	var cfg models.WidgetConfig
	if err := c.getJSON(ctx, url, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IngestFile is one raw file queued for the document-ingestion side-channel.
type IngestFile struct {
	Name    string
	Content []byte
}

// UpsertVectorStore uploads raw files plus the conversation id as a
// multi-part form, seeding the backend knowledge store before a question is
// asked about them.
func (c *Client) UpsertVectorStore(ctx context.Context, flowID, chatID string, files []IngestFile) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for _, file := range files {
		part, err := writer.CreateFormFile("files", file.Name)
		if err != nil {
			return fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := part.Write(file.Content); err != nil {
			return fmt.Errorf("failed to write form file: %w", err)
		}
	}
	if err := writer.WriteField("chatId", chatID); err != nil {
		return fmt.Errorf("failed to write chatId field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize form: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/vector/upsert/%s", c.apiHost, flowID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.do(httpReq)
	if err != nil {
		return errors.NewUploadError("failed to reach ingestion endpoint", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return errors.NewUploadError(fmt.Sprintf("ingestion failed: status=%d, body=%s", resp.StatusCode, string(body)), nil)
	}
	return nil
}

// do runs the request hook and executes the request.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.requestHook != nil {
		if err := c.requestHook(req); err != nil {
			return nil, fmt.Errorf("request hook failed: %w", err)
		}
	}
	return c.httpClient.Do(req)
}

// getJSON performs a GET round trip and decodes the JSON response.
func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.do(httpReq)
	if err != nil {
		return errors.NewTransportError("failed to reach prediction backend", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readErrorResponse(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.NewTransportError("failed to decode response", resp.StatusCode, err)
	}
	return nil
}

// readErrorResponse turns a non-success response into a transport error.
// The backend reports failures as an object with a message, a plain string,
// or something unknown; the unknown case falls back to a generic message.
func readErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return errors.NewTransportError(decodeErrorMessage(body, resp.StatusCode), resp.StatusCode, nil)
}

func decodeErrorMessage(body []byte, status int) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return fmt.Sprintf("prediction backend returned status %d", status)
	}

	var obj struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(trimmed, &obj); err == nil {
		if obj.Message != "" {
			return obj.Message
		}
		if obj.Error != "" {
			return obj.Error
		}
	}

	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil && s != "" {
		return s
	}

	return string(trimmed)
}
