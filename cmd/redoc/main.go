// redoc: documentation redundancy detection and consolidation.
//
// Usage:
//
//	redoc serve              # Start the MCP server (stdio transport)
//	redoc detect             # Print redundancy issues for the corpus
//	redoc validate           # Check every cross-reference
//	redoc report             # Render a health report in the terminal
//	redoc version
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/redoc/internal/server"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	root       string
	configFile string
	logLevel   string
	json       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:   "redoc",
		Short: "Find and consolidate redundant documentation",
		Long: `redoc scans a tree of markdown documents, groups the ones that repeat
each other, and consolidates them with a reversible plan. It runs as an MCP
server for AI coding tools or directly from the command line.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.root, "root", "r", ".", "corpus root directory")
	root.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "config file (default <root>/redoc.yaml)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		newServeCmd(flags),
		newDetectCmd(flags),
		newValidateCmd(flags),
		newReportCmd(flags),
		newVersionCmd(),
	)
	return root
}

// build wires a runtime from the global flags. Callers must Close it.
func build(cmd *cobra.Command, flags *globalFlags) (*server.Runtime, error) {
	return server.Build(cmd.Context(), server.Options{
		Root:       flags.root,
		ConfigFile: flags.configFile,
		LogLevel:   flags.logLevel,
	})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "redoc v%s\n", server.Version)
		},
	}
}
