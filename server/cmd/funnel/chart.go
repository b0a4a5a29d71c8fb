package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/obsidianstack/funnelstack/server/internal/render"
)

func newChartCmd(g *globalFlags) *cobra.Command {
	var measure, out string

	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Render the pipeline bar chart to a file",
		Long:  `Render one bar per stage, labelled with its win rate. The image format follows the --out extension (.svg or .png).`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := render.ParseMeasure(measure)
			if err != nil {
				return err
			}
			f, err := render.ParseChartFormat(strings.TrimPrefix(strings.ToLower(filepath.Ext(out)), "."))
			if err != nil {
				return err
			}
			resp, err := g.pipeline(cmd.Context())
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := render.Chart(&buf, resp, m, f); err != nil {
				return err
			}
			if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write chart: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d stages, win rate by %s)\n", out, len(resp.Stages), m)
			return nil
		},
	}
	cmd.Flags().StringVar(&measure, "measure", "count", "volume to chart: count|acv")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (.svg or .png)")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
