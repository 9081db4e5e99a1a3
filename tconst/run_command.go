package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	timeconst "github.com/scintfib/tconst_go/pkg"
	"github.com/scintfib/tconst_go/pkg/hdf5io"
	"github.com/scintfib/tconst_go/pkg/store"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var outDir string
	var dbName string
	var workers int
	var noDB bool

	cmd := &cobra.Command{
		Use:   "run <seriesNo>",
		Short: "Fit every measurement of a regular series and store the time constants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seriesID, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid series number %q: %w", args[0], err)
			}
			config, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if outDir != "" {
				config.OutputDir = outDir
			}
			if dbName != "" {
				config.DBName = dbName
			}
			if workers > 0 {
				config.NumWorkers = workers
			}
			if noDB {
				config.NoDB = true
			}
			if err := config.Validate(); err != nil {
				return err
			}
			return runSeries(cmd, config, seriesID)
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (overrides output_dir)")
	cmd.Flags().StringVar(&dbName, "db", "", "Database name or sqlite file (overrides dbname)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Number of fit workers (overrides num_workers)")
	cmd.Flags().BoolVar(&noDB, "no-db", false, "Do not write the time constants to the database")
	return cmd
}

func runSeries(cmd *cobra.Command, config timeconst.Configuration, seriesID int) (err error) {
	ctx := cmd.Context()
	runID := uuid.NewString()

	catalog, err := loadCatalog(ctx, config)
	if err != nil {
		return err
	}
	series, err := catalog.Regular(seriesID)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(config.OutputDir, 0o755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}
	lock := flock.New(config.LockFile(seriesID))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("series %d is already being analysed (%s)", seriesID, lock.Path())
	}
	defer func() {
		err = errors.Join(err, lock.Unlock())
	}()

	logger.Info(fmt.Sprintf("Series %d (%s): run %s", seriesID, series.Description, runID), "main")
	reader, err := hdf5io.OpenReader(config.InputFile(seriesID), seriesID)
	if err != nil {
		return err
	}
	if err := reader.CheckSeries(series); err != nil {
		return err
	}

	analysis, err := timeconst.NewAnalysis(series, reader, config.Analysis())
	if err != nil {
		return err
	}
	start := time.Now()
	res, fitErr := analysis.FitAllSignals()
	if config.Verbosity > 0 {
		logger.Info(fmt.Sprintf("Fitted %d measurements in %s", 2*series.Npoints(), time.Since(start)), "main")
	}
	renderResults(cmd.OutOrStdout(), res)

	outFile := config.OutputFile(seriesID)
	writer, err := hdf5io.NewWriter(outFile)
	if err != nil {
		return err
	}
	if err := writer.WriteResults(res, reader.Times); err != nil {
		return errors.Join(err, writer.Close())
	}
	if err := writer.Close(); err != nil {
		return err
	}
	logger.Info(fmt.Sprintf("Results written to %s", outFile), "main")

	if fitErr != nil {
		return fitErr
	}
	if config.NoDB {
		return nil
	}

	db, err := openStore(ctx, config)
	if err != nil {
		return err
	}
	defer db.Close()
	rec := store.NewTimeConstants(res.Aggregate, outFile, runID, time.Now().Unix())
	if err := db.SaveTimeConstants(ctx, rec); err != nil {
		return err
	}
	logger.Info(fmt.Sprintf("Time constants of series %d saved to %s", seriesID, config.DBName), "main")
	return nil
}
