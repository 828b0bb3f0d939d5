package notifyserver

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/ShayCichocki/taskflow/internal/capability"
	"github.com/ShayCichocki/taskflow/internal/registry"
)

// NewMCPServer builds the notification capability server.
func NewMCPServer(svc *Service, reg *registry.Registry, logger zerolog.Logger) (*server.MCPServer, error) {
	s := capability.NewServer(registry.ServerNotify)

	handlers := map[string]capability.HandlerFunc{
		"configure_testmail":  svc.handleConfigure,
		"send_email":          svc.handleSend,
		"send_notification":   svc.handleNotification,
		"get_inbox_emails":    svc.handleInbox,
		"get_email_config":    svc.handleConfig,
		"generate_test_email": svc.handleGenerate,
	}
	if err := capability.Register(s, reg, registry.ServerNotify, handlers, logger); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) handleConfigure(ctx context.Context, args map[string]any) (any, error) {
	apiKey, _ := args["api_key"].(string)
	namespace, _ := args["namespace"].(string)
	from, _ := args["default_from"].(string)

	cfg, verified, err := s.Configure(ctx, apiKey, namespace, from)
	if err != nil {
		return nil, err
	}
	return struct {
		Namespace    string    `json:"namespace"`
		DefaultFrom  string    `json:"default_from"`
		Version      uint64    `json:"version"`
		Verified     bool      `json:"verified"`
		ConfiguredAt time.Time `json:"configured_at"`
	}{cfg.Namespace, cfg.DefaultFrom, cfg.Version, verified, cfg.ConfiguredAt}, nil
}

func (s *Service) handleSend(ctx context.Context, args map[string]any) (any, error) {
	to, _ := args["to"].(string)
	subject, _ := args["subject"].(string)
	body, _ := args["body"].(string)
	from, _ := args["from"].(string)

	return s.Send(ctx, to, subject, body, from)
}

func (s *Service) handleNotification(ctx context.Context, args map[string]any) (any, error) {
	to, _ := args["to"].(string)
	title, _ := args["title"].(string)
	message, _ := args["message"].(string)
	kind, _ := args["type"].(string)

	return s.SendNotification(ctx, to, title, message, NotificationType(kind))
}

func (s *Service) handleInbox(ctx context.Context, args map[string]any) (any, error) {
	tag, _ := args["tag"].(string)
	limit, _ := args["limit"].(int64)

	return s.Inbox(ctx, tag, int(limit))
}

func (s *Service) handleConfig(context.Context, map[string]any) (any, error) {
	type view struct {
		Configured   bool       `json:"configured"`
		APIKey       string     `json:"api_key,omitempty"`
		Namespace    string     `json:"namespace,omitempty"`
		DefaultFrom  string     `json:"default_from,omitempty"`
		Version      uint64     `json:"version,omitempty"`
		ConfiguredAt *time.Time `json:"configured_at,omitempty"`
	}

	cfg := s.Current()
	if cfg == nil {
		return view{}, nil
	}
	m := cfg.Masked()
	return view{
		Configured:   true,
		APIKey:       m.APIKey,
		Namespace:    m.Namespace,
		DefaultFrom:  m.DefaultFrom,
		Version:      m.Version,
		ConfiguredAt: &m.ConfiguredAt,
	}, nil
}

func (s *Service) handleGenerate(_ context.Context, args map[string]any) (any, error) {
	tag, _ := args["tag"].(string)
	return s.GenerateTestEmail(tag)
}
