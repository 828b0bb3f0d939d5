package models

import (
	"fmt"
	"time"
)

// NotificationConfig holds the email provider credentials.
// A config is replaced as a whole; fields are never updated in place.
type NotificationConfig struct {
	// APIKey authenticates against the provider.
	APIKey string `json:"api_key"`
	// Namespace is the provider account namespace.
	Namespace string `json:"namespace"`
	// DefaultFrom is the sender used when a message names none.
	DefaultFrom string `json:"default_from"`
	// ConfiguredAt is when this record was written.
	ConfiguredAt time.Time `json:"configured_at"`
	// Version increases by one on every reconfiguration.
	Version uint64 `json:"version"`
}

// NewNotificationConfig builds a config, defaulting the sender to the
// namespace's no-reply address.
func NewNotificationConfig(apiKey, namespace, defaultFrom string) NotificationConfig {
	if defaultFrom == "" {
		defaultFrom = fmt.Sprintf("noreply@%s.testmail.app", namespace)
	}
	return NotificationConfig{
		APIKey:       apiKey,
		Namespace:    namespace,
		DefaultFrom:  defaultFrom,
		ConfiguredAt: time.Now().UTC(),
	}
}

// InboxAddress returns the inbox address for a tag in this namespace.
func (c NotificationConfig) InboxAddress(tag string) string {
	return fmt.Sprintf("%s.%s@inbox.testmail.app", tag, c.Namespace)
}

// InboxURL returns the web inbox for the namespace, optionally for one tag.
func (c NotificationConfig) InboxURL(tag string) string {
	if tag == "" {
		return fmt.Sprintf("https://testmail.app/inbox/%s", c.Namespace)
	}
	return fmt.Sprintf("https://testmail.app/inbox/%s/%s", c.Namespace, tag)
}

// MaskedAPIKey returns the key with its middle hidden.
func (c NotificationConfig) MaskedAPIKey() string {
	if len(c.APIKey) > 16 {
		return c.APIKey[:8] + "..." + c.APIKey[len(c.APIKey)-8:]
	}
	return "***HIDDEN***"
}

// Masked returns a copy safe to show to a user.
func (c NotificationConfig) Masked() NotificationConfig {
	c.APIKey = c.MaskedAPIKey()
	return c
}

// DeliveryReceipt is returned for a message accepted by the provider.
type DeliveryReceipt struct {
	MessageID string    `json:"message_id"`
	To        string    `json:"to"`
	From      string    `json:"from"`
	Subject   string    `json:"subject"`
	SentAt    time.Time `json:"sent_at"`
}
