package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/taskflow/internal/registry"
)

var toolsServer string

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools instructions can use",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		reg, err := registry.Load()
		if err != nil {
			return err
		}

		tools := reg.List()
		if toolsServer != "" {
			s := registry.Server(toolsServer)
			if !s.Valid() {
				return fmt.Errorf("unknown server %q", toolsServer)
			}
			tools = reg.ForServer(s)
		}

		out := cmd.OutOrStdout()
		for _, t := range tools {
			fmt.Fprintf(out, "%s %s\n", color.CyanString(t.Name), color.HiBlackString("[%s]", t.Server))
			fmt.Fprintf(out, "  %s\n", t.Description)
			for _, p := range t.Params {
				req := ""
				if p.Required {
					req = color.YellowString(" required")
				}
				enum := ""
				if len(p.Enum) > 0 {
					enum = " one of " + strings.Join(p.Enum, ", ")
				}
				fmt.Fprintf(out, "    %s (%s)%s%s\n", p.Name, p.Type, req, enum)
			}
		}
		return nil
	},
}

func init() {
	toolsCmd.Flags().StringVar(&toolsServer, "server", "", "Only list tools of this server (tasks or notify)")
}
