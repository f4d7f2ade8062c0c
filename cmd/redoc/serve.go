package main

import (
	"fmt"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/HendryAvila/redoc/internal/server"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, cleanup, err := server.New(cmd.Context(), server.Options{
				Root:       flags.root,
				ConfigFile: flags.configFile,
				LogLevel:   flags.logLevel,
			})
			if err != nil {
				return fmt.Errorf("creating server: %w", err)
			}
			defer cleanup()

			// Logs go to stderr; stdout belongs to the protocol.
			return mcpserver.ServeStdio(s)
		},
	}
}
