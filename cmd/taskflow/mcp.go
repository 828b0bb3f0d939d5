package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/taskflow/internal/app"
	"github.com/ShayCichocki/taskflow/internal/config"
	"github.com/ShayCichocki/taskflow/internal/logging"
	"github.com/ShayCichocki/taskflow/internal/registry"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp <tasks|notify>",
	Short: "Serve one capability server over stdio",
	Long: `Run the task or notification capability server as a standalone MCP
server on stdin/stdout, for use by other MCP clients.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(registry.ServerTasks), string(registry.ServerNotify)},
	RunE:      runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	name := registry.Server(args[0])
	if !name.Valid() {
		return fmt.Errorf("unknown server %q", args[0])
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	// stdout carries the protocol.
	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: logging.FormatJSON, Out: os.Stderr})
	if err != nil {
		return err
	}

	a, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return server.ServeStdio(a.Servers[name])
}
