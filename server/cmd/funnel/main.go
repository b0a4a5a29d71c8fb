// Command funnel inspects a sales pipeline from the terminal: it prints the
// derived stage table, renders the chart to a file, and seeds the SQLite
// data source.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/obsidianstack/funnelstack/pkg/types"
	"github.com/obsidianstack/funnelstack/server/internal/config"
	"github.com/obsidianstack/funnelstack/server/internal/funnel"
	"github.com/obsidianstack/funnelstack/server/internal/source"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	dataPath   string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "funnel",
		Short: "Sales pipeline metrics from the command line",
		Long: `Derive win rates, losses and stage-to-stage movement for a sales pipeline.

Stages are read from the data source in config.yaml, or from a JSON/YAML file
given with --data.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "path to config file (default: built-in defaults)")
	root.PersistentFlags().StringVar(&g.dataPath, "data", "", "read stages from this JSON or YAML file instead of the configured source")

	root.AddCommand(newReportCmd(g), newChartCmd(g), newImportCmd(g))
	return root
}

// dataConfig resolves which source the command reads from.
func (g *globalFlags) dataConfig() (config.DataConfig, error) {
	cfg := config.Default()
	if g.configPath != "" {
		loaded, err := config.Load(g.configPath)
		if err != nil {
			return config.DataConfig{}, err
		}
		cfg = loaded
	}
	if g.dataPath != "" {
		cfg.Data = config.DataConfig{Driver: config.DriverFile, Path: g.dataPath}
	}
	return cfg.Data, nil
}

// stages reads the raw stage list from the resolved source.
func (g *globalFlags) stages(ctx context.Context) ([]types.StageRecord, error) {
	dc, err := g.dataConfig()
	if err != nil {
		return nil, err
	}
	src, closeSrc, err := source.New(dc)
	if err != nil {
		return nil, err
	}
	defer closeSrc() //nolint:errcheck

	return src.Stages(ctx)
}

// pipeline reads the stages and derives the metrics.
func (g *globalFlags) pipeline(ctx context.Context) (types.PipelineResponse, error) {
	stages, err := g.stages(ctx)
	if err != nil {
		return types.PipelineResponse{}, err
	}
	resp, err := funnel.Build(stages)
	if err != nil {
		return types.PipelineResponse{}, fmt.Errorf("derive metrics: %w", err)
	}
	return resp, nil
}
