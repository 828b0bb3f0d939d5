package config

import (
	"errors"
	"testing"
)

func TestLookupAPIKey(t *testing.T) {
	tests := []struct {
		name       string
		env        string
		configured string
		wantKey    string
		wantSource KeySource
	}{
		{"environment wins", "sk-ant-env-key", "sk-ant-config-key", "sk-ant-env-key", KeySourceEnv},
		{"config file", "", "sk-ant-config-key", "sk-ant-config-key", KeySourceConfig},
		{"unexpanded reference", "", "${TASKFLOW_UNSET_KEY}", "", KeySourceNone},
		{"nothing", "", "", "", KeySourceNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ANTHROPIC_API_KEY", tt.env)
			cfg := &Config{Anthropic: AnthropicConfig{APIKey: tt.configured}}

			key, source := LookupAPIKey(cfg)
			if key != tt.wantKey || source != tt.wantSource {
				t.Errorf("LookupAPIKey() = (%q, %q), want (%q, %q)", key, source, tt.wantKey, tt.wantSource)
			}

			got, err := GetAPIKey(cfg)
			if tt.wantSource == KeySourceNone {
				if !errors.Is(err, ErrNoAPIKey) {
					t.Errorf("GetAPIKey() error = %v, want ErrNoAPIKey", err)
				}
				return
			}
			if err != nil || got != tt.wantKey {
				t.Errorf("GetAPIKey() = %q, %v", got, err)
			}
		})
	}
}

func TestCredentialSource(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	bedrock := &Config{Anthropic: AnthropicConfig{UseBedrock: true}}
	if got := CredentialSource(bedrock); got != KeySourceBedrock {
		t.Errorf("CredentialSource(bedrock) = %q", got)
	}
	if got := CredentialSource(&Config{}); got != KeySourceNone {
		t.Errorf("CredentialSource(empty) = %q", got)
	}
}

func TestValidateAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid key", "sk-ant-REDACTED", false},
		{"empty key", "", true},
		{"wrong prefix", "sk-openai-12345678901234567890", true},
		{"too short", "sk-ant-abc", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAPIKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAPIKey() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		expected string
	}{
		{"valid key", "sk-ant-REDACTED", "sk-ant-...wxyz"},
		{"empty key", "", "(not set)"},
		{"short key", "short", "***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MaskAPIKey(tt.key)
			if result != tt.expected {
				t.Errorf("MaskAPIKey() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestNotifyCredentials(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantKey string
		wantNS  string
		wantErr bool
	}{
		{"nil config", nil, "", "", true},
		{"missing namespace", &Config{Notify: NotifyConfig{APIKey: "key"}}, "", "", true},
		{"missing key", &Config{Notify: NotifyConfig{Namespace: "abc12"}}, "", "", true},
		{"both set", &Config{Notify: NotifyConfig{APIKey: " key ", Namespace: "abc12"}}, "key", "abc12", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, ns, err := NotifyCredentials(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NotifyCredentials() error = %v, wantErr %v", err, tt.wantErr)
			}
			if key != tt.wantKey || ns != tt.wantNS {
				t.Errorf("NotifyCredentials() = (%q, %q), want (%q, %q)", key, ns, tt.wantKey, tt.wantNS)
			}
		})
	}
}
