package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	defaultRetryBase   = 1 * time.Second
	defaultQuotaDelay  = 60 * time.Second
	defaultMaxRetries  = 3
)

// Config captures the runtime settings required to talk to the inference API.
type Config struct {
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// Client wraps the remote transcription/rewrite API.
type Client struct {
	cfg        Config
	httpClient *http.Client

	maxRetries int
	retryBase  time.Duration
	sleeper    func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithMaxRetries overrides the retry ceiling (defaults to 3).
func WithMaxRetries(retries int) Option {
	return func(c *Client) {
		c.maxRetries = retries
	}
}

// WithRetryBase overrides the first backoff delay (defaults to 1s).
func WithRetryBase(base time.Duration) Option {
	return func(c *Client) {
		c.retryBase = base
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs an inference client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			Model:          strings.TrimSpace(cfg.Model),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: defaultMaxRetries,
		retryBase:  defaultRetryBase,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

// Transcript is the result of a successful transcription call.
type Transcript struct {
	Text     string `json:"transcript"`
	Language string `json:"language"`
}

// NoteMetadata is the result of a metadata enrichment call.
type NoteMetadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

type transcribeRequest struct {
	Audio    string `json:"audio"`
	Language string `json:"language"`
	Model    string `json:"model,omitempty"`
}

type rewriteRequest struct {
	Text        string `json:"text"`
	Instruction string `json:"instruction"`
	Model       string `json:"model,omitempty"`
}

type rewriteResponse struct {
	RewrittenText string `json:"rewrittenText"`
}

type errorEnvelope struct {
	Error      string `json:"error"`
	Type       string `json:"type"`
	Retryable  bool   `json:"retryable"`
	RetryAfter int    `json:"retryAfter"`
}

const enrichInstruction = `Derive metadata for the following voice note transcript. ` +
	`Respond with JSON only: {"title": string, "description": string, "keywords": [string]}. ` +
	`The title is at most eight words; keywords are at most five lowercase terms.`

// Transcribe sends audio for transcription and returns the transcript. On
// failure the returned error carries a *ClassifiedError.
func (c *Client) Transcribe(ctx context.Context, audio []byte, language, credential string) (Transcript, error) {
	var result Transcript
	if len(audio) == 0 {
		return result, &ClassifiedError{Kind: KindUnknown, Message: "transcribe: audio required"}
	}
	payload := transcribeRequest{
		Audio:    base64.StdEncoding.EncodeToString(audio),
		Language: strings.TrimSpace(language),
		Model:    c.cfg.Model,
	}
	if err := c.postJSON(ctx, "/transcribe", credential, payload, &result); err != nil {
		return Transcript{}, err
	}
	result.Text = strings.TrimSpace(result.Text)
	return result, nil
}

// Rewrite sends text with a rewrite instruction and returns the rewritten text.
func (c *Client) Rewrite(ctx context.Context, text, instruction, credential string) (string, error) {
	text = strings.TrimSpace(text)
	instruction = strings.TrimSpace(instruction)
	if text == "" {
		return "", &ClassifiedError{Kind: KindUnknown, Message: "rewrite: text required"}
	}
	if instruction == "" {
		return "", &ClassifiedError{Kind: KindUnknown, Message: "rewrite: instruction required"}
	}
	var result rewriteResponse
	payload := rewriteRequest{Text: text, Instruction: instruction, Model: c.cfg.Model}
	if err := c.postJSON(ctx, "/rewrite", credential, payload, &result); err != nil {
		return "", err
	}
	return strings.TrimSpace(result.RewrittenText), nil
}

// EnrichMetadata derives a title, description, and keywords for a transcript.
func (c *Client) EnrichMetadata(ctx context.Context, transcript, credential string) (NoteMetadata, error) {
	var meta NoteMetadata
	raw, err := c.Rewrite(ctx, transcript, enrichInstruction, credential)
	if err != nil {
		return meta, err
	}
	if err := DecodeJSONPayload(raw, &meta); err != nil {
		return NoteMetadata{}, &ClassifiedError{
			Kind:    KindUnknown,
			Message: fmt.Sprintf("enrich: parse payload: %v", err),
		}
	}
	meta.Title = strings.TrimSpace(meta.Title)
	meta.Description = strings.TrimSpace(meta.Description)
	return meta, nil
}

func (c *Client) postJSON(ctx context.Context, path, credential string, payload, out any) error {
	if strings.TrimSpace(credential) == "" {
		return &ClassifiedError{Kind: KindAuth, Message: "credential required"}
	}

	for attempt := 0; ; attempt++ {
		err := c.sendOnce(ctx, path, credential, payload, out)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		classified := c.classify(err)
		if !classified.Retryable || attempt >= c.maxRetries {
			return classified
		}

		// An explicit retry-after hint replaces the computed backoff verbatim.
		delay := c.retryBase << attempt
		if classified.RetryAfter > 0 {
			delay = classified.RetryAfter
		}
		if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
			return classified
		}
	}
}

type httpStatusError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("inference request: http %d: %s", e.StatusCode, e.Message)
}

func (c *Client) sendOnce(ctx context.Context, path, credential string, payload, out any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		statusErr := &httpStatusError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
		if retryAfter, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
			statusErr.RetryAfter = retryAfter
		}
		var envelope errorEnvelope
		if json.Unmarshal(body, &envelope) == nil {
			if envelope.Error != "" {
				statusErr.Message = envelope.Error
			}
			if statusErr.RetryAfter == 0 && envelope.RetryAfter > 0 {
				statusErr.RetryAfter = time.Duration(envelope.RetryAfter) * time.Second
			}
		}
		return statusErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// classify maps a raw failure onto the error taxonomy. The kind switch is
// driven by status class; anything without a response is a network failure.
func (c *Client) classify(err error) *ClassifiedError {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden:
			return &ClassifiedError{Kind: KindAuth, Message: statusErr.Message}
		case statusErr.StatusCode == http.StatusTooManyRequests:
			retryAfter := statusErr.RetryAfter
			if retryAfter <= 0 {
				retryAfter = defaultQuotaDelay
			}
			return &ClassifiedError{Kind: KindQuota, Message: statusErr.Message, Retryable: true, RetryAfter: retryAfter}
		case statusErr.StatusCode >= http.StatusInternalServerError:
			return &ClassifiedError{Kind: KindServer, Message: statusErr.Message, Retryable: true, RetryAfter: statusErr.RetryAfter}
		default:
			return &ClassifiedError{Kind: KindUnknown, Message: statusErr.Message}
		}
	}

	var encodingErr *json.SyntaxError
	if errors.As(err, &encodingErr) {
		return &ClassifiedError{Kind: KindUnknown, Message: err.Error()}
	}
	if strings.Contains(err.Error(), "encode body") || strings.Contains(err.Error(), "decode response") {
		return &ClassifiedError{Kind: KindUnknown, Message: err.Error()}
	}

	// No response at all: transport-level failure.
	return &ClassifiedError{Kind: KindNetwork, Message: err.Error(), Retryable: true}
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}

// DecodeJSONPayload decodes JSON from a model response, handling common
// formatting quirks such as code fences and surrounding prose.
func DecodeJSONPayload(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}

	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}

	sanitized := sanitizeJSONPayload(trimmed)
	if sanitized == "" || sanitized == trimmed {
		return directErr
	}
	return json.Unmarshal([]byte(sanitized), target)
}

func sanitizeJSONPayload(content string) string {
	trimmed := strings.TrimSpace(stripCodeFence(content))
	if trimmed == "" {
		return ""
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return trimmed
	}
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	return trimmed
}

func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := strings.TrimLeft(trimmed[3:], " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}
