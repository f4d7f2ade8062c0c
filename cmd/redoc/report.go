package main

import (
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/HendryAvila/redoc/internal/service"
)

func newReportCmd(flags *globalFlags) *cobra.Command {
	var (
		raw        bool
		width      int
		reportType string
		history    bool
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render a documentation health report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := build(cmd, flags)
			if err != nil {
				return err
			}
			defer rt.Close()

			resp, err := rt.Service.GenerateHealthReport(cmd.Context(), service.HealthRequest{
				ReportType: reportType,
				History:    history,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case flags.json:
				if history {
					return writeJSON(out, resp)
				}
				return writeJSON(out, resp.Report)
			case raw:
				_, err := fmt.Fprint(out, resp.Markdown)
				return err
			}

			rendered, err := renderMarkdown(resp.Markdown, width)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(out, rendered)
			return err
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print markdown without terminal styling")
	cmd.Flags().IntVar(&width, "width", 100, "word wrap width")
	cmd.Flags().StringVar(&reportType, "type", "", "snapshot series to compare against (default health)")
	cmd.Flags().BoolVar(&history, "history", false, "append the snapshot archive and recent runs")
	cmd.Flags().BoolVar(&flags.json, "json", false, "print the report as JSON")
	return cmd
}

// renderMarkdown styles markdown for the terminal.
func renderMarkdown(md string, width int) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", fmt.Errorf("creating renderer: %w", err)
	}
	return r.Render(md)
}
