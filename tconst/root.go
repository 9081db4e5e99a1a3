package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	timeconst "github.com/scintfib/tconst_go/pkg"
	"github.com/scintfib/tconst_go/pkg/store"
)

type commandContext struct {
	configFlag *string
	config     *timeconst.Configuration
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

// ensureConfig loads and validates the configuration once.
func (c *commandContext) ensureConfig() (timeconst.Configuration, error) {
	if c.config != nil {
		return *c.config, nil
	}
	config, err := LoadConfiguration(*c.configFlag)
	if err != nil {
		return config, fmt.Errorf("error reading configuration file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return config, err
	}
	timeconst.SetLogger(logger)
	if config.Verbosity > 0 {
		logger.Info(fmt.Sprintf("Reading configuration file: %s", *c.configFlag), "main")
		printConfiguration(config, logger)
	}
	c.config = &config
	return config, nil
}

func openStore(ctx context.Context, config timeconst.Configuration) (*store.Store, error) {
	db, err := store.ConnectToDatabase(config.DBDriver, config.User, config.Passwd, config.Host, config.DBName)
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// loadCatalog returns the series catalog from the configuration file or
// from the database when catalog_from_db is set.
func loadCatalog(ctx context.Context, config timeconst.Configuration) (*timeconst.SeriesCatalog, error) {
	if !config.CatalogFromDB {
		return timeconst.NewSeriesCatalog(config.Series)
	}
	db, err := openStore(ctx, config)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return db.LoadSeriesCatalog(ctx)
}

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:           "tconst",
		Short:         "Fast and slow decay time constants of averaged scintillation pulses",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newIndexCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))
	rootCmd.AddCommand(newCatalogCommand(ctx))
	return rootCmd
}
