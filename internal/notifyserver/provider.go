package notifyserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/ShayCichocki/taskflow/pkg/models"
)

// DefaultBaseURL is the Testmail API root.
const DefaultBaseURL = "https://api.testmail.app"

// maxInboxLimit is the largest page the inbox endpoint is asked for.
const maxInboxLimit = 50

// previewLength bounds message bodies returned from the inbox.
const previewLength = 200

var (
	// ErrUnauthorized is returned when the provider rejects the credentials.
	ErrUnauthorized = errors.New("provider rejected credentials")
	// ErrRejected is returned when the provider refuses a message.
	ErrRejected = errors.New("provider rejected message")
)

// Message is one outgoing email. Text is always set; HTML only for HTML bodies.
type Message struct {
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
}

// InboxEmail is a message read back from the provider inbox.
type InboxEmail struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Timestamp int64  `json:"timestamp"`
	Preview   string `json:"preview"`
}

// Provider delivers email and reads the test inbox.
type Provider interface {
	// Send delivers msg with cfg's credentials and returns the provider message id.
	Send(ctx context.Context, cfg models.NotificationConfig, msg Message) (string, error)
	// Verify checks that apiKey and namespace are accepted.
	Verify(ctx context.Context, apiKey, namespace string) error
	// Inbox lists recent messages, optionally for one tag.
	Inbox(ctx context.Context, cfg models.NotificationConfig, tag string, limit int) ([]InboxEmail, error)
}

// TestmailOptions configures a TestmailProvider.
type TestmailOptions struct {
	BaseURL  string
	Timeout  time.Duration
	RetryMax int
	Logger   zerolog.Logger
}

// TestmailProvider talks to the Testmail HTTP API. Retries on 429 and 5xx
// are handled by the underlying retryable client.
type TestmailProvider struct {
	baseURL string
	client  *retryablehttp.Client
}

// NewTestmailProvider creates a provider from opts.
func NewTestmailProvider(opts TestmailOptions) *TestmailProvider {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RetryMax < 0 {
		opts.RetryMax = 0
	}

	c := retryablehttp.NewClient()
	c.HTTPClient = &http.Client{Timeout: opts.Timeout}
	c.RetryMax = opts.RetryMax
	c.RetryWaitMin = 200 * time.Millisecond
	c.RetryWaitMax = 2 * time.Second
	c.Logger = leveledLogger{opts.Logger.With().Str("component", "testmail").Logger()}

	return &TestmailProvider{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		client:  c,
	}
}

type sendPayload struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html,omitempty"`
	Text    string `json:"text"`
}

// Send posts msg to the send endpoint.
func (p *TestmailProvider) Send(ctx context.Context, cfg models.NotificationConfig, msg Message) (string, error) {
	body, err := json.Marshal(sendPayload{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return "", fmt.Errorf("encode message: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/send", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var result struct {
		MessageID string `json:"message_id"`
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &result); err != nil {
			return "", fmt.Errorf("decode send response: %w", err)
		}
	}
	return result.MessageID, nil
}

// Verify performs a live query against the namespace.
func (p *TestmailProvider) Verify(ctx context.Context, apiKey, namespace string) error {
	q := url.Values{}
	q.Set("apikey", apiKey)
	q.Set("namespace", namespace)
	q.Set("livequery", "true")

	resp, err := p.get(ctx, q)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	default:
		return fmt.Errorf("verify credentials: status %d", resp.StatusCode)
	}
}

// Inbox lists up to limit recent messages. limit is capped at 50.
func (p *TestmailProvider) Inbox(ctx context.Context, cfg models.NotificationConfig, tag string, limit int) ([]InboxEmail, error) {
	if limit <= 0 || limit > maxInboxLimit {
		limit = maxInboxLimit
	}

	q := url.Values{}
	q.Set("apikey", cfg.APIKey)
	q.Set("namespace", cfg.Namespace)
	q.Set("limit", strconv.Itoa(limit))
	if tag != "" {
		q.Set("tag", tag)
	}

	resp, err := p.get(ctx, q)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetch inbox: status %d", resp.StatusCode)
	}

	var result struct {
		Emails []struct {
			From      string `json:"from"`
			To        string `json:"to"`
			Subject   string `json:"subject"`
			Timestamp int64  `json:"timestamp"`
			HTML      string `json:"html"`
			Text      string `json:"text"`
		} `json:"emails"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode inbox: %w", err)
	}

	emails := make([]InboxEmail, 0, len(result.Emails))
	for _, e := range result.Emails {
		text := e.Text
		if text == "" {
			text = plainText(e.HTML)
		}
		emails = append(emails, InboxEmail{
			From:      e.From,
			To:        e.To,
			Subject:   e.Subject,
			Timestamp: e.Timestamp,
			Preview:   truncate(text, previewLength),
		})
	}
	return emails, nil
}

func (p *TestmailProvider) get(ctx context.Context, q url.Values) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/json?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build inbox request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inbox request: %w", err)
	}
	return resp, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// leveledLogger adapts zerolog to retryablehttp.LeveledLogger.
type leveledLogger struct {
	l zerolog.Logger
}

func (z leveledLogger) Error(msg string, kv ...interface{}) { z.l.Error().Fields(kv).Msg(msg) }
func (z leveledLogger) Warn(msg string, kv ...interface{})  { z.l.Warn().Fields(kv).Msg(msg) }
func (z leveledLogger) Info(msg string, kv ...interface{})  { z.l.Debug().Fields(kv).Msg(msg) }
func (z leveledLogger) Debug(msg string, kv ...interface{}) { z.l.Trace().Fields(kv).Msg(msg) }

var (
	_ Provider                    = (*TestmailProvider)(nil)
	_ retryablehttp.LeveledLogger = leveledLogger{}
)
