package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	timeconst "github.com/scintfib/tconst_go/pkg"
)

func newIndexCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "index <seriesNo> <position>",
		Short: "Print the measurement slot of a source position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			seriesID, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid series number %q: %w", args[0], err)
			}
			position, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid position %q: %w", args[1], err)
			}
			config, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			catalog, err := loadCatalog(cmd.Context(), config)
			if err != nil {
				return err
			}
			index, err := timeconst.NewMeasurementIndex(catalog).IndexOf(seriesID, position)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), index)
			return nil
		},
	}
}
