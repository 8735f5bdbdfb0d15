// Package transcribe converts uploaded audio to text via the OpenAI
// transcription endpoint.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/procureflow/procureflow/internal/log"
)

const (
	// APIBase is the OpenAI API base URL.
	APIBase = "https://api.openai.com"

	transcriptionPath = "/v1/audio/transcriptions"

	// Model is the transcription model used for all requests.
	Model = "whisper-1"

	requestTimeout = 60 * time.Second
)

// ErrUnsupportedMedia is returned for non-audio uploads.
var ErrUnsupportedMedia = errors.New("unsupported media type")

// Transcriber converts audio bytes to text.
type Transcriber interface {
	Transcribe(ctx context.Context, filename, mediaType string, audio io.Reader) (string, error)
}

// Client is a thin OpenAI transcription client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     log.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithBaseURL overrides the API base, for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a transcription client.
func New(apiKey string, logger log.Logger, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	c := &Client{
		apiKey:     apiKey,
		baseURL:    APIBase,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Transcribe uploads the audio and returns the transcript text.
// The media type must be audio/*.
func (c *Client) Transcribe(ctx context.Context, filename, mediaType string, audio io.Reader) (string, error) {
	if !strings.HasPrefix(mediaType, "audio/") {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMedia, mediaType)
	}
	if filename == "" {
		filename = "audio"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("building form: %w", err)
	}
	if _, err := io.Copy(fw, audio); err != nil {
		return "", fmt.Errorf("reading audio: %w", err)
	}
	if err := mw.WriteField("model", Model); err != nil {
		return "", fmt.Errorf("building form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("closing form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+transcriptionPath, &body)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("transcription failed",
			"status", resp.StatusCode, "body", string(data))
		return "", fmt.Errorf("transcription API returned status %d", resp.StatusCode)
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding transcription response: %w", err)
	}

	c.logger.DebugContext(ctx, "transcription complete",
		"filename", filename, "duration", time.Since(start))
	return out.Text, nil
}
