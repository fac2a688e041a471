// Package transcribe turns recorded audio into text with the OpenAI
// transcription API.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"github.com/ticketdrop/ticketdrop/internal/debug"
	"github.com/ticketdrop/ticketdrop/internal/telemetry"
	"github.com/ticketdrop/ticketdrop/internal/types"
)

const (
	DefaultURL        = "https://api.openai.com/v1/audio/transcriptions"
	DefaultModel      = "gpt-4o-transcribe"
	DefaultMaxRetries = 2

	// MaxFileSize is the largest upload accepted.
	MaxFileSize = 25 << 20

	// MaxDuration is the longest recording accepted, estimated from size.
	MaxDuration = 65 * time.Second

	// bytes per second of 16 kHz 16-bit mono PCM
	bytesPerSecond = 16000 * 2

	// Keeps the model from hallucinating text on near-silent clips.
	shortAudioPrompt = "If the audio is short, do not add any Chinese characters, or arabic characters, just leave it blank"
)

// Options configures a Client.
type Options struct {
	APIKey     string
	Model      string
	URL        string
	MaxRetries int
	HTTPClient *http.Client

	// InitialInterval is the first retry delay; zero uses the backoff default.
	InitialInterval time.Duration
}

// Client calls the transcription endpoint.
type Client struct {
	apiKey     string
	model      string
	url        string
	maxRetries int
	initial    time.Duration
	http       *http.Client
}

// NewClient creates a client. Env var OPENAI_API_KEY takes precedence over
// opts.APIKey.
func NewClient(opts Options) (*Client, error) {
	apiKey := opts.APIKey
	if envKey := os.Getenv("OPENAI_API_KEY"); envKey != "" {
		apiKey = envKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("API key required: set OPENAI_API_KEY environment variable or provide via config")
	}

	c := &Client{
		apiKey:     apiKey,
		model:      opts.Model,
		url:        opts.URL,
		maxRetries: opts.MaxRetries,
		initial:    opts.InitialInterval,
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.url == "" {
		c.url = DefaultURL
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	}

	hc := &http.Client{Timeout: 60 * time.Second}
	if opts.HTTPClient != nil {
		cp := *opts.HTTPClient
		hc = &cp
	}
	hc.Transport = telemetry.WrapTransport("openai", hc.Transport)
	c.http = hc
	return c, nil
}

// EstimateDuration approximates a recording's length from its size.
func EstimateDuration(size int64) time.Duration {
	return time.Duration(float64(size) / bytesPerSecond * float64(time.Second))
}

// Validate checks an upload before it is sent anywhere.
func Validate(size int64) error {
	switch {
	case size <= 0:
		return &types.ValidationError{Field: "audio", Message: "No audio file provided"}
	case size > MaxFileSize:
		return &types.ValidationError{Field: "audio", Message: fmt.Sprintf("File size too large. Maximum allowed: %dMB", MaxFileSize>>20)}
	case EstimateDuration(size) > MaxDuration:
		return &types.ValidationError{Field: "audio", Message: "Audio file is too long"}
	}
	return nil
}

// Transcribe uploads audio and returns the recognized text, which may be
// empty for silent recordings. Upstream 429 and 5xx responses are retried
// with exponential backoff; other failures are returned as
// *types.GatewayError with the upstream status.
func (c *Client) Transcribe(ctx context.Context, filename string, audio []byte) (string, error) {
	if err := Validate(int64(len(audio))); err != nil {
		return "", err
	}
	if filename == "" {
		filename = "recording.webm"
	}

	body, contentType, err := c.encode(filename, audio)
	if err != nil {
		return "", err
	}

	bo := backoff.NewExponentialBackOff()
	if c.initial > 0 {
		bo.InitialInterval = c.initial
	}
	bo.MaxElapsedTime = 30 * time.Second

	var text string
	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		var err error
		text, err = c.post(ctx, body, contentType)
		if err == nil {
			return nil
		}
		if isRetryable(err) {
			debug.Logf("transcribe: attempt %d failed, retrying: %v\n", attempt, err)
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.maxRetries)), ctx))
	if err != nil {
		return "", err
	}
	return text, nil
}

func (c *Client) encode(filename string, audio []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to create form file")
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", errors.Wrap(err, "failed to write audio")
	}
	if err := w.WriteField("model", c.model); err != nil {
		return nil, "", errors.Wrap(err, "failed to write model field")
	}
	if err := w.WriteField("prompt", shortAudioPrompt); err != nil {
		return nil, "", errors.Wrap(err, "failed to write prompt field")
	}
	if err := w.Close(); err != nil {
		return nil, "", errors.Wrap(err, "failed to finish form")
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func (c *Client) post(ctx context.Context, body []byte, contentType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &types.GatewayError{Op: "transcribe", Err: errors.Wrap(err, "request failed")}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &types.GatewayError{Op: "transcribe", StatusCode: resp.StatusCode, Err: errors.Wrap(err, "failed to read response")}
	}

	if resp.StatusCode != http.StatusOK {
		msg := "Failed to transcribe audio"
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return "", &types.GatewayError{Op: "transcribe", StatusCode: resp.StatusCode, Message: msg}
	}

	var out transcriptionResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", errors.Wrap(err, "failed to parse transcription response")
	}
	return out.Text, nil
}

func isRetryable(err error) bool {
	var gw *types.GatewayError
	if !errors.As(err, &gw) {
		return false
	}
	return gw.StatusCode == http.StatusTooManyRequests || gw.StatusCode >= 500
}

// FriendlyMessage maps a transcription failure to text suitable for users.
func FriendlyMessage(err error) string {
	if err == nil {
		return ""
	}
	var vErr *types.ValidationError
	if errors.As(err, &vErr) {
		return vErr.Message
	}
	msg := "Failed to transcribe audio"
	var gw *types.GatewayError
	if errors.As(err, &gw) && gw.Message != "" {
		msg = gw.Message
	}
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "rate limit"):
		return "Rate limit exceeded. Please try again later."
	case strings.Contains(lower, "quota"):
		return "Service quota exceeded. Please contact support."
	case strings.Contains(lower, "invalid"):
		return "Invalid audio file format or content."
	}
	return msg
}
