package main

import (
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/taskflow/internal/config"
	"github.com/ShayCichocki/taskflow/internal/httpapi"
	"github.com/ShayCichocki/taskflow/internal/logging"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP chat API",
	Long: `Serve the chat API over HTTP.

Endpoints:
  POST /api/chat   {"message": "...", "caller": "..."}
  GET  /api/tools  registered tools, optionally ?server=tasks|notify
  GET  /health     liveness and registry size
  GET  /metrics    Prometheus metrics

Changes to log.level in the user config file apply without a restart.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default server.addr)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, logger, err := openApp(ctx, logging.FormatJSON)
	if err != nil {
		return err
	}
	defer a.Close()

	watchLogLevel(logger)

	addr := serveAddr
	if addr == "" {
		addr = a.Config.Server.Addr
	}

	srv := httpapi.New(a, a.Registry,
		httpapi.WithMetrics(a.Metrics.Handler()),
		httpapi.WithCORSOrigins(a.Config.Server.CORSOrigins),
		httpapi.WithLogger(logging.Component(logger, "http")),
	)
	return srv.ListenAndServe(ctx, addr)
}

// watchLogLevel applies log.level changes from the user config file.
func watchLogLevel(logger zerolog.Logger) {
	path := config.GetUserConfigPath()
	err := config.Watch(path, func(cfg *config.Config, e fsnotify.Event, err error) {
		if err != nil {
			logger.Warn().Err(err).Str("file", e.Name).Msg("config reload failed")
			return
		}
		if flagLogLevel != "" {
			return
		}
		if err := logging.SetGlobalLevel(cfg.Log.Level); err != nil {
			logger.Warn().Err(err).Msg("config reload: bad log level")
			return
		}
		logger.Info().Str("level", cfg.Log.Level).Msg("log level reloaded")
	})
	if err != nil {
		logger.Debug().Err(err).Str("file", path).Msg("config file not watched")
	}
}
