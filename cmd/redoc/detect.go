package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/redoc/internal/service"
)

func newDetectCmd(flags *globalFlags) *cobra.Command {
	var threshold float64
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "List groups of redundant documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := build(cmd, flags)
			if err != nil {
				return err
			}
			defer rt.Close()

			resp, err := rt.Service.DetectRedundancy(cmd.Context(), service.DetectRequest{Threshold: threshold})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if flags.json {
				return writeJSON(out, resp)
			}

			fmt.Fprintln(out, resp.Summary)
			for _, issue := range resp.Detection.Issues {
				origin := string(issue.Origin)
				if issue.Pattern != "" {
					origin += " " + issue.Pattern
				}
				fmt.Fprintf(out, "\n%s  %.2f %s  (%s, strategy %s)\n",
					issue.ID, issue.Confidence, issue.Severity, origin, issue.Action.Strategy)
				for _, f := range issue.AffectedFiles {
					marker := " "
					if f == issue.PrimaryFile {
						marker = "*"
					}
					fmt.Fprintf(out, "  %s %s\n", marker, f)
				}
			}
			if len(resp.LoadErrors) > 0 {
				fmt.Fprintf(out, "\nskipped %d file(s):\n", len(resp.LoadErrors))
				for _, le := range resp.LoadErrors {
					fmt.Fprintf(out, "  %s: %s\n", le.Path, le.Err)
				}
			}
			return nil
		},
	}
	cmd.Flags().Float64VarP(&threshold, "threshold", "t", 0, "overlap threshold in (0,1] (default from config)")
	cmd.Flags().BoolVar(&flags.json, "json", false, "print the raw result as JSON")
	return cmd
}
