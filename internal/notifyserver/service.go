// Package notifyserver is the notification capability server: email
// provider configuration, delivery and inbox inspection.
package notifyserver

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ShayCichocki/taskflow/internal/registry"
	"github.com/ShayCichocki/taskflow/internal/toolerr"
	"github.com/ShayCichocki/taskflow/pkg/models"
)

// defaultInboxLimit is used when get_inbox_emails names no limit.
const defaultInboxLimit = 10

// Service holds the live provider configuration. Readers load it through an
// atomic pointer; Configure calls are serialized so the persisted record and
// the in-memory one never disagree.
type Service struct {
	store    ConfigStore
	provider Provider
	logger   zerolog.Logger

	cfg atomic.Pointer[models.NotificationConfig]
	mu  sync.Mutex

	ownerEmail string
	verify     bool
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithOwnerEmail sets the address "me" resolves to.
func WithOwnerEmail(addr string) Option {
	return func(s *Service) { s.ownerEmail = strings.TrimSpace(addr) }
}

// WithVerify makes Configure check credentials with the provider first.
func WithVerify(verify bool) Option {
	return func(s *Service) { s.verify = verify }
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a service and loads any persisted configuration.
func NewService(store ConfigStore, provider Provider, logger zerolog.Logger, opts ...Option) (*Service, error) {
	s := &Service{
		store:    store,
		provider: provider,
		logger:   logger.With().Str("component", "notifyserver").Logger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	cfg, err := store.Load()
	if err != nil {
		return nil, err
	}
	if cfg != nil {
		s.cfg.Store(cfg)
		s.logger.Debug().Str("namespace", cfg.Namespace).Uint64("version", cfg.Version).Msg("loaded email config")
	}
	return s, nil
}

// Bootstrap configures the service from startup credentials when nothing
// has been configured yet. It never verifies and never replaces a stored config.
func (s *Service) Bootstrap(apiKey, namespace string) error {
	if s.cfg.Load() != nil {
		return nil
	}
	_, err := s.apply(apiKey, namespace, "")
	return err
}

// Configure validates and installs new provider credentials. It reports
// whether the credentials were verified with the provider.
func (s *Service) Configure(ctx context.Context, apiKey, namespace, defaultFrom string) (models.NotificationConfig, bool, error) {
	apiKey = strings.TrimSpace(apiKey)
	namespace = strings.TrimSpace(namespace)
	defaultFrom = strings.TrimSpace(defaultFrom)
	if apiKey == "" {
		return models.NotificationConfig{}, false, toolerr.Missing("api_key")
	}
	if namespace == "" {
		return models.NotificationConfig{}, false, toolerr.Missing("namespace")
	}

	if s.verify {
		if err := s.provider.Verify(ctx, apiKey, namespace); err != nil {
			if errors.Is(err, ErrUnauthorized) {
				return models.NotificationConfig{}, false, toolerr.Invalid("api_key", "invalid API key or namespace")
			}
			if ctx.Err() != nil {
				return models.NotificationConfig{}, false, toolerr.Timeout(ctx.Err())
			}
			return models.NotificationConfig{}, false, toolerr.Wrap(toolerr.CapabilityUnavailable, err, "could not verify credentials")
		}
	}

	cfg, err := s.apply(apiKey, namespace, defaultFrom)
	if err != nil {
		return models.NotificationConfig{}, false, err
	}
	return cfg, s.verify, nil
}

func (s *Service) apply(apiKey, namespace, defaultFrom string) (models.NotificationConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := models.NewNotificationConfig(apiKey, namespace, defaultFrom)
	next.ConfiguredAt = s.now().UTC()
	if prev := s.cfg.Load(); prev != nil {
		next.Version = prev.Version + 1
	} else {
		next.Version = 1
	}

	if err := s.store.Save(next); err != nil {
		return models.NotificationConfig{}, toolerr.Wrap(toolerr.CapabilityUnavailable, err, "could not persist email config")
	}
	s.cfg.Store(&next)

	s.logger.Info().Str("namespace", namespace).Uint64("version", next.Version).Msg("email provider configured")
	return next, nil
}

// Current returns the live configuration, or nil if none is set.
func (s *Service) Current() *models.NotificationConfig {
	return s.cfg.Load()
}

func (s *Service) requireConfig() (*models.NotificationConfig, error) {
	cfg := s.cfg.Load()
	if cfg == nil {
		return nil, toolerr.New(toolerr.NotConfigured, "email provider is not configured; run configure_testmail first")
	}
	return cfg, nil
}

// resolveRecipient maps "me" to the owner address or the namespace inbox.
func (s *Service) resolveRecipient(cfg *models.NotificationConfig, to string) string {
	if !strings.EqualFold(strings.TrimSpace(to), registry.Me) {
		return strings.TrimSpace(to)
	}
	if s.ownerEmail != "" {
		return s.ownerEmail
	}
	return cfg.InboxAddress(registry.Me)
}

// Send delivers an email. A body containing HTML is sent with a plain-text
// alternative derived from it.
func (s *Service) Send(ctx context.Context, to, subject, body, from string) (*models.DeliveryReceipt, error) {
	cfg, err := s.requireConfig()
	if err != nil {
		return nil, err
	}

	msg := Message{
		To:      s.resolveRecipient(cfg, to),
		From:    strings.TrimSpace(from),
		Subject: subject,
		Text:    body,
	}
	if looksLikeHTML(body) {
		msg.HTML = body
		msg.Text = plainText(body)
	}
	return s.deliver(ctx, cfg, msg)
}

// SendNotification renders a typed notification and delivers it.
func (s *Service) SendNotification(ctx context.Context, to, title, message string, kind NotificationType) (*models.DeliveryReceipt, error) {
	if kind == "" {
		kind = NotificationInfo
	}
	if !kind.Valid() {
		return nil, toolerr.Invalid("type", "unknown notification type %q", kind)
	}

	cfg, err := s.requireConfig()
	if err != nil {
		return nil, err
	}

	body, err := renderNotification(kind, title, message, s.now())
	if err != nil {
		return nil, toolerr.Wrap(toolerr.CapabilityUnavailable, err, "could not render notification")
	}

	msg := Message{
		To:      s.resolveRecipient(cfg, to),
		Subject: kind.Subject(title),
		HTML:    body,
		Text:    message,
	}
	return s.deliver(ctx, cfg, msg)
}

// deliver sends msg with the config snapshot the caller already loaded, so
// a concurrent Configure cannot mix credentials from two versions.
func (s *Service) deliver(ctx context.Context, cfg *models.NotificationConfig, msg Message) (*models.DeliveryReceipt, error) {
	if msg.From == "" {
		msg.From = cfg.DefaultFrom
	}

	id, err := s.provider.Send(ctx, *cfg, msg)
	if err != nil {
		s.logger.Warn().Err(err).Str("to", msg.To).Msg("email delivery failed")
		switch {
		case errors.Is(err, ErrUnauthorized):
			return nil, toolerr.Wrap(toolerr.DeliveryFailed, err, "provider rejected the configured credentials")
		case ctx.Err() != nil:
			return nil, toolerr.Wrap(toolerr.DeliveryFailed, ctx.Err(), "delivery timed out")
		default:
			return nil, toolerr.Wrap(toolerr.DeliveryFailed, err, "provider did not accept the message")
		}
	}
	if id == "" {
		id = uuid.NewString()
	}

	s.logger.Info().Str("message_id", id).Str("to", msg.To).Msg("email sent")
	return &models.DeliveryReceipt{
		MessageID: id,
		To:        msg.To,
		From:      msg.From,
		Subject:   msg.Subject,
		SentAt:    s.now().UTC(),
	}, nil
}

// InboxResult is a page of inbox messages.
type InboxResult struct {
	Emails   []InboxEmail `json:"emails"`
	Count    int          `json:"count"`
	InboxURL string       `json:"inbox_url"`
}

// Inbox lists recent messages. limit defaults to 10 and is capped at 50.
func (s *Service) Inbox(ctx context.Context, tag string, limit int) (InboxResult, error) {
	cfg, err := s.requireConfig()
	if err != nil {
		return InboxResult{}, err
	}
	if limit <= 0 {
		limit = defaultInboxLimit
	}
	if limit > maxInboxLimit {
		limit = maxInboxLimit
	}

	emails, err := s.provider.Inbox(ctx, *cfg, tag, limit)
	if err != nil {
		if ctx.Err() != nil {
			return InboxResult{}, toolerr.Timeout(ctx.Err())
		}
		return InboxResult{}, toolerr.Wrap(toolerr.CapabilityUnavailable, err, "could not read inbox")
	}
	return InboxResult{Emails: emails, Count: len(emails), InboxURL: cfg.InboxURL(tag)}, nil
}

// TestAddress is a generated inbox address.
type TestAddress struct {
	Email    string `json:"email"`
	Tag      string `json:"tag"`
	InboxURL string `json:"inbox_url"`
}

// GenerateTestEmail returns the inbox address for tag, default "test".
func (s *Service) GenerateTestEmail(tag string) (TestAddress, error) {
	cfg, err := s.requireConfig()
	if err != nil {
		return TestAddress{}, err
	}
	tag = strings.TrimSpace(tag)
	if tag == "" {
		tag = "test"
	}
	return TestAddress{Email: cfg.InboxAddress(tag), Tag: tag, InboxURL: cfg.InboxURL(tag)}, nil
}
