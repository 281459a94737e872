// Package ai talks to the hosted transcription and chat-completion APIs.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	// DialTimeout is the connection timeout.
	DialTimeout = 10 * time.Second
	// TLSHandshakeTimeout is the TLS negotiation timeout.
	TLSHandshakeTimeout = 10 * time.Second
	// DefaultRequestTimeout bounds one upstream call end to end.
	DefaultRequestTimeout = 3 * time.Minute

	// maxErrorBody caps how much of a failed response is read for the message.
	maxErrorBody = 4096
	// maxReplyBody caps a successful reply.
	maxReplyBody = 8 << 20
)

// Service names used in errors and logs.
const (
	ServiceTranscribe = "transcribe"
	ServiceSummarize  = "summarize"
)

// Sentinel errors for AI operations.
var (
	ErrUpstream        = errors.New("upstream service unavailable")
	ErrPayloadTooLarge = errors.New("payload exceeds upstream size limit")
	ErrEmptyResponse   = errors.New("upstream returned empty result")
	ErrMissingAPIKey   = errors.New("AI API key not configured")
)

// UpstreamError describes a failed call to the AI provider.
type UpstreamError struct {
	Service    string
	StatusCode int // 0 for transport failures
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s upstream returned %d: %s", e.Service, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s upstream failed: %s", e.Service, e.Message)
}

// Is reports ErrUpstream for every UpstreamError.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Config configures the AI client.
type Config struct {
	APIKey             string
	BaseURL            string
	TranscribeModel    string
	SummaryModel       string
	LanguageHint       string
	SummaryLanguage    string
	RequestTimeout     time.Duration
	TranscribeMaxBytes int64
	SummaryMaxTokens   int
	SummaryTemperature float64
}

// Client implements transcription and summarization against an
// OpenAI-compatible API.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a Client. A nil httpClient gets NewHTTPClient.
func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if httpClient == nil {
		httpClient = NewHTTPClient(cfg.RequestTimeout)
	}
	return &Client{
		cfg:    cfg,
		http:   httpClient,
		logger: logger.With("component", "ai"),
	}
}

// NewHTTPClient creates an HTTP client for upstream AI calls.
// It does not follow redirects.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: TLSHandshakeTimeout,
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// do sends req with the bearer key and returns the reply body of a 2xx
// response. Everything else becomes an *UpstreamError.
func (c *Client) do(ctx context.Context, service string, req *http.Request) ([]byte, string, error) {
	if c.cfg.APIKey == "" {
		return nil, "", &UpstreamError{Service: service, Message: ErrMissingAPIKey.Error(), Err: ErrMissingAPIKey}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()
	req = req.WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("User-Agent", "tinote/1.0")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("upstream request failed", "service", service, "error", err)
		return nil, "", &UpstreamError{Service: service, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := decodeAPIError(body)
		c.logger.Warn("upstream returned error",
			"service", service,
			"http_status", resp.StatusCode,
			"message", msg,
		)
		return nil, "", &UpstreamError{Service: service, StatusCode: resp.StatusCode, Message: msg}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBody))
	if err != nil {
		return nil, "", &UpstreamError{Service: service, StatusCode: resp.StatusCode, Message: "read reply: " + err.Error(), Err: err}
	}

	c.logger.Debug("upstream request complete",
		"service", service,
		"http_status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return body, resp.Header.Get("Content-Type"), nil
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// decodeAPIError extracts the provider's error message, falling back to the
// raw body.
func decodeAPIError(body []byte) string {
	var parsed apiErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		if parsed.Error.Type != "" {
			return parsed.Error.Type + ": " + parsed.Error.Message
		}
		return parsed.Error.Message
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return "no response body"
	}
	return msg
}
