package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/obsidianstack/funnelstack/server/internal/source"
)

func newImportCmd(g *globalFlags) *cobra.Command {
	var db string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Copy the stages into a SQLite database",
		Long: `Read the stages from the configured source (or --data) and write them into the
stages table of a SQLite database, replacing its contents. Point the server at
the database with data.driver: sqlite.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stages, err := g.stages(cmd.Context())
			if err != nil {
				return err
			}
			if len(stages) == 0 {
				return fmt.Errorf("no stages to import")
			}
			if err := source.Import(cmd.Context(), db, stages); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d stages into %s\n", len(stages), db)
			return nil
		},
	}
	cmd.Flags().StringVar(&db, "db", "", "SQLite database path")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}
