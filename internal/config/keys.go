package config

import (
	"errors"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when no API key is configured.
var ErrNoAPIKey = errors.New("no Anthropic API key configured")

// GetAPIKey returns the Anthropic API key, preferring ANTHROPIC_API_KEY over
// the config file.
func GetAPIKey(cfg *Config) (string, error) {
	key, source := LookupAPIKey(cfg)
	if source == KeySourceNone {
		return "", ErrNoAPIKey
	}
	return key, nil
}

// ValidateAPIKey performs basic validation on an API key.
// It checks format but does not verify the key with Anthropic's API.
func ValidateAPIKey(key string) error {
	if key == "" {
		return ErrNoAPIKey
	}

	// Anthropic API keys start with "sk-ant-"
	if !strings.HasPrefix(key, "sk-ant-") {
		return errors.New("invalid API key format: expected 'sk-ant-' prefix")
	}

	// Keys should be reasonably long
	if len(key) < 20 {
		return errors.New("invalid API key format: key too short")
	}

	return nil
}

// MaskAPIKey returns a masked version of the API key for display.
// Shows the first 7 characters (sk-ant-) and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}

	if len(key) <= 15 {
		return "***"
	}

	return key[:7] + "..." + key[len(key)-4:]
}

// ErrNoNotifyCredentials is returned when the email provider has no startup credentials.
var ErrNoNotifyCredentials = errors.New("no email provider credentials configured")

// NotifyCredentials returns the provider API key and namespace configured at
// startup through notify.api_key/notify.namespace or TESTMAIL_API_KEY and
// TESTMAIL_NAMESPACE. Both must be set.
func NotifyCredentials(cfg *Config) (apiKey, namespace string, err error) {
	if cfg == nil {
		return "", "", ErrNoNotifyCredentials
	}
	apiKey = strings.TrimSpace(os.ExpandEnv(cfg.Notify.APIKey))
	namespace = strings.TrimSpace(cfg.Notify.Namespace)
	if apiKey == "" || namespace == "" || strings.HasPrefix(apiKey, "${") {
		return "", "", ErrNoNotifyCredentials
	}
	return apiKey, namespace, nil
}

// KeySource says where the Anthropic credentials come from.
type KeySource string

const (
	KeySourceEnv     KeySource = "environment"
	KeySourceConfig  KeySource = "config file"
	KeySourceBedrock KeySource = "aws bedrock"
	KeySourceNone    KeySource = "none"
)

// LookupAPIKey returns the Anthropic API key and its source. An unexpanded
// ${VAR} reference in the config file counts as unset.
func LookupAPIKey(cfg *Config) (string, KeySource) {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return key, KeySourceEnv
	}
	if cfg != nil {
		if key := os.ExpandEnv(cfg.Anthropic.APIKey); key != "" && !strings.HasPrefix(key, "${") {
			return key, KeySourceConfig
		}
	}
	return "", KeySourceNone
}

// CredentialSource reports what the Claude classifier would authenticate
// with. Bedrock uses the AWS credential chain instead of an API key.
func CredentialSource(cfg *Config) KeySource {
	if cfg != nil && cfg.Anthropic.UseBedrock {
		return KeySourceBedrock
	}
	_, source := LookupAPIKey(cfg)
	return source
}
