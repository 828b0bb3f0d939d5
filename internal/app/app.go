// Package app wires the stores, capability servers, classifier and
// orchestrator from a Config. Every command builds one App.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/ShayCichocki/taskflow/internal/api"
	"github.com/ShayCichocki/taskflow/internal/config"
	"github.com/ShayCichocki/taskflow/internal/dates"
	"github.com/ShayCichocki/taskflow/internal/notifyserver"
	"github.com/ShayCichocki/taskflow/internal/orchestrator"
	"github.com/ShayCichocki/taskflow/internal/planner"
	"github.com/ShayCichocki/taskflow/internal/registry"
	"github.com/ShayCichocki/taskflow/internal/state"
	"github.com/ShayCichocki/taskflow/internal/taskserver"
	"github.com/ShayCichocki/taskflow/pkg/models"
)

// Classifier names.
const (
	ClassifierRules  = "rules"
	ClassifierClaude = "claude"
)

// App is the assembled system.
type App struct {
	Config       *config.Config
	Registry     *registry.Registry
	Tasks        *taskserver.Service
	Notify       *notifyserver.Service
	Servers      map[registry.Server]*server.MCPServer
	Orchestrator *orchestrator.Orchestrator
	Metrics      *orchestrator.Metrics
	// Claude is set when the Claude classifier is in use.
	Claude *api.Client

	logger  zerolog.Logger
	closers []func() error
}

type options struct {
	events      *orchestrator.EventEmitter
	now         func() time.Time
	notifyStore notifyserver.ConfigStore
	provider    notifyserver.Provider
	messages    api.MessageCreator
}

// Option configures New.
type Option func(*options)

// WithEvents makes the orchestrator emit progress events to e.
func WithEvents(e *orchestrator.EventEmitter) Option {
	return func(o *options) { o.events = e }
}

// WithClock overrides the wall clock everywhere.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithNotifyStore replaces the bbolt config store.
func WithNotifyStore(s notifyserver.ConfigStore) Option {
	return func(o *options) { o.notifyStore = s }
}

// WithProvider replaces the Testmail provider.
func WithProvider(p notifyserver.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithMessages replaces the Anthropic Messages API used by the Claude classifier.
func WithMessages(m api.MessageCreator) Option {
	return func(o *options) { o.messages = m }
}

// New builds the system described by cfg. The caller must Close the App.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts ...Option) (*App, error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, logger: logger}
	if err := a.build(ctx, cfg, logger, o); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, cfg *config.Config, logger zerolog.Logger, o options) error {
	var err error
	parser := dates.NewWithClock(o.now)
	a.Registry, err = registry.Load(registry.WithDateParser(parser))
	if err != nil {
		return fmt.Errorf("loading tool registry: %w", err)
	}

	if err := a.openTasks(cfg, logger, o.now); err != nil {
		return err
	}
	if err := a.openNotify(cfg, logger, o); err != nil {
		return err
	}

	taskSrv, err := taskserver.NewMCPServer(a.Tasks, a.Registry, logger)
	if err != nil {
		return fmt.Errorf("building task server: %w", err)
	}
	notifySrv, err := notifyserver.NewMCPServer(a.Notify, a.Registry, logger)
	if err != nil {
		return fmt.Errorf("building notify server: %w", err)
	}
	a.Servers = map[registry.Server]*server.MCPServer{
		registry.ServerTasks:  taskSrv,
		registry.ServerNotify: notifySrv,
	}

	dispatcher, err := orchestrator.NewMCPDispatcher(ctx, a.Registry, a.Servers)
	if err != nil {
		return fmt.Errorf("connecting capability servers: %w", err)
	}
	a.closers = append(a.closers, dispatcher.Close)

	classifier, err := a.newClassifier(cfg, parser, o.messages)
	if err != nil {
		return err
	}

	a.Metrics = orchestrator.NewMetrics("taskflow")
	if a.Claude != nil {
		a.Metrics.TrackTokens(a.Claude.Tracker().Total)
	}
	orchOpts := []orchestrator.Option{
		orchestrator.WithStepTimeout(cfg.Orchestrator.StepTimeout),
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(a.Metrics),
		orchestrator.WithClock(o.now),
	}
	if o.events != nil {
		orchOpts = append(orchOpts, orchestrator.WithEvents(o.events))
	}
	a.Orchestrator = orchestrator.New(a.Registry, classifier, dispatcher, orchOpts...)

	logger.Debug().
		Str("classifier", cfg.Orchestrator.Classifier).
		Dur("step_timeout", cfg.Orchestrator.StepTimeout).
		Bool("email_configured", a.Notify.Current() != nil).
		Msg("taskflow ready")
	return nil
}

func (a *App) openTasks(cfg *config.Config, logger zerolog.Logger, now func() time.Time) error {
	db, err := state.Open(cfg.TasksDBPath())
	if err != nil {
		return fmt.Errorf("opening task database: %w", err)
	}
	a.closers = append(a.closers, db.Close)
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrating task database: %w", err)
	}
	a.Tasks = taskserver.NewService(db, logger, taskserver.WithClock(now))
	return nil
}

func (a *App) openNotify(cfg *config.Config, logger zerolog.Logger, o options) error {
	store := o.notifyStore
	if store == nil {
		bolt, err := notifyserver.NewBoltStore(cfg.NotifyDBPath())
		if err != nil {
			return fmt.Errorf("opening notification store: %w", err)
		}
		store = bolt
	}
	a.closers = append(a.closers, store.Close)

	provider := o.provider
	if provider == nil {
		provider = notifyserver.NewTestmailProvider(notifyserver.TestmailOptions{
			BaseURL:  cfg.Notify.BaseURL,
			Timeout:  cfg.Notify.Timeout,
			RetryMax: cfg.Notify.RetryMax,
			Logger:   logger,
		})
	}

	svc, err := notifyserver.NewService(store, provider, logger,
		notifyserver.WithOwnerEmail(cfg.Notify.OwnerEmail),
		notifyserver.WithVerify(cfg.Notify.VerifyOnConfigure),
		notifyserver.WithClock(o.now),
	)
	if err != nil {
		return fmt.Errorf("loading notification config: %w", err)
	}
	a.Notify = svc

	// Startup credentials only seed an empty store; configure_testmail wins.
	if apiKey, namespace, err := config.NotifyCredentials(cfg); err == nil {
		if err := svc.Bootstrap(apiKey, namespace); err != nil {
			return fmt.Errorf("applying startup email credentials: %w", err)
		}
	}
	return nil
}

func (a *App) newClassifier(cfg *config.Config, parser *dates.Parser, messages api.MessageCreator) (planner.Classifier, error) {
	switch cfg.Orchestrator.Classifier {
	case ClassifierRules, "":
		return planner.NewRuleClassifier(parser), nil
	case ClassifierClaude:
		var client *api.Client
		if messages != nil {
			client = api.NewClientWith(messages, anthropic.Model(cfg.Anthropic.Model))
		} else {
			clientCfg := api.ClientConfig{
				Model:         anthropic.Model(cfg.Anthropic.Model),
				UseAWSBedrock: cfg.Anthropic.UseBedrock,
				AWSRegion:     cfg.Anthropic.AWSRegion,
				AWSProfile:    cfg.Anthropic.AWSProfile,
			}
			if !cfg.Anthropic.UseBedrock {
				key, err := config.GetAPIKey(cfg)
				if err != nil {
					return nil, err
				}
				clientCfg.APIKey = key
			}
			var err error
			client, err = api.NewClient(clientCfg)
			if err != nil {
				return nil, fmt.Errorf("creating Anthropic client: %w", err)
			}
		}
		a.Claude = client
		return api.NewClaudeClassifier(client, a.Registry), nil
	default:
		return nil, fmt.Errorf("unknown classifier %q (want %s or %s)", cfg.Orchestrator.Classifier, ClassifierRules, ClassifierClaude)
	}
}

// Handle runs one instruction. It satisfies httpapi.Handler.
func (a *App) Handle(ctx context.Context, instruction string) *models.OutcomeReport {
	return a.Orchestrator.Handle(ctx, instruction)
}

// Close releases every resource in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if len(errs) > 0 {
		a.logger.Warn().Errs("errors", errs).Msg("closing taskflow")
	}
	return errors.Join(errs...)
}
