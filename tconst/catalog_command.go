package main

import (
	"fmt"

	"github.com/spf13/cobra"

	timeconst "github.com/scintfib/tconst_go/pkg"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect or publish the series catalog",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the series of the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			catalog, err := loadCatalog(cmd.Context(), config)
			if err != nil {
				return err
			}
			rows := make([][]string, 0)
			for _, id := range catalog.IDs() {
				s, _ := catalog.Lookup(id)
				mode := "positional"
				if s.Ordinal {
					mode = "ordinal"
				}
				rows = append(rows, []string{
					fmt.Sprintf("%d", s.ID),
					s.Description,
					mode,
					fmt.Sprintf("%t", s.Regular),
					fmt.Sprintf("%d", s.Npoints()),
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"Series", "Description", "Addressing", "Regular", "Points"}, rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight}, isTerminal(out)))
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "push",
		Short: "Write the series of the configuration file to the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if config.NoDB {
				return fmt.Errorf("%w: no_db is set", timeconst.ErrSeriesConfigInvalid)
			}
			if _, err := timeconst.NewSeriesCatalog(config.Series); err != nil {
				return err
			}
			db, err := openStore(cmd.Context(), config)
			if err != nil {
				return err
			}
			defer db.Close()
			for _, s := range config.Series {
				if err := db.SaveSeries(cmd.Context(), s); err != nil {
					return err
				}
			}
			logger.Info(fmt.Sprintf("%d series written to %s", len(config.Series), config.DBName), "catalog")
			return nil
		},
	})
	return cmd
}
