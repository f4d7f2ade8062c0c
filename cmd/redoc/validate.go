package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/redoc/internal/service"
)

// errBrokenReferences makes validate exit non-zero.
var errBrokenReferences = errors.New("broken references found")

func newValidateCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [files...]",
		Short: "Check every markdown link in the corpus",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := build(cmd, flags)
			if err != nil {
				return err
			}
			defer rt.Close()

			resp, err := rt.Service.ValidateReferences(cmd.Context(), service.ValidateRequest{Files: args})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if flags.json {
				if err := writeJSON(out, resp); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(out, resp.Summary)
				for _, ref := range resp.Report.BrokenReferences {
					fmt.Fprintf(out, "  %s:%d  %s  (%s)\n", ref.Source, ref.Line, ref.Target, ref.Error)
				}
			}
			if !resp.Valid {
				return errBrokenReferences
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&flags.json, "json", false, "print the raw result as JSON")
	return cmd
}
