package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/obsidianstack/funnelstack/server/internal/render"
	"github.com/obsidianstack/funnelstack/server/internal/termview"
)

func newReportCmd(g *globalFlags) *cobra.Command {
	var measure, format string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the stage table",
		Long: `Print every stage with incoming, lost and forwarded volume and its win rate,
followed by a totals row.

Formats:
  table  bordered terminal table (default)
  tsv    tab separated, ready to paste into a spreadsheet
  md     Markdown table`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := render.ParseMeasure(measure)
			if err != nil {
				return err
			}
			resp, err := g.pipeline(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case "table":
				fmt.Fprintln(out, termview.Render(resp, m))
			case "tsv":
				fmt.Fprintln(out, render.TSV(resp, m))
			case "md":
				fmt.Fprint(out, render.Markdown(resp, m))
			default:
				return fmt.Errorf("unknown format %q: want table|tsv|md", format)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&measure, "measure", "count", "volume to report: count|acv")
	cmd.Flags().StringVar(&format, "format", "table", "output format: table|tsv|md")
	return cmd
}
