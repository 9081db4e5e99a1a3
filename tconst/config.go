package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	timeconst "github.com/scintfib/tconst_go/pkg"
)

func LoadConfiguration(filename string) (timeconst.Configuration, error) {
	// Set default values
	config := timeconst.DefaultConfiguration()

	if filename == "" {
		return config, errors.New("no configuration file given, use --config")
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = json.Unmarshal(data, &config)
	if err != nil {
		return config, fmt.Errorf("error parsing %s: %w", filename, err)
	}
	return config, nil
}

func printConfiguration(config timeconst.Configuration, logger Logger) {
	logger.Info(fmt.Sprintf("Input: %s/%s", config.InputDir, config.InputPattern), "config")
	logger.Info(fmt.Sprintf("Output dir: %s", config.OutputDir), "config")
	logger.Info(fmt.Sprintf("No DB: %t", config.NoDB), "config")
	logger.Info(fmt.Sprintf("DB driver: %s", config.DBDriver), "config")
	logger.Info(fmt.Sprintf("Host: %s", config.Host), "config")
	logger.Info(fmt.Sprintf("DB name: %s", config.DBName), "config")
	logger.Info(fmt.Sprintf("Catalog from DB: %t", config.CatalogFromDB), "config")
	logger.Info(fmt.Sprintf("Series in catalog: %d", len(config.Series)), "config")
	logger.Info(fmt.Sprintf("Verbosity: %d", config.Verbosity), "config")
	logger.Info(fmt.Sprintf("Number of workers: %d", config.NumWorkers), "config")
	logger.Info(fmt.Sprintf("Solver: %s, max calls %d, tolerance %g", config.Solver.Name,
		config.Solver.MaxFunctionCalls, config.Solver.Tolerance), "config")
	fit := config.Fit
	logger.Info(fmt.Sprintf("Baseline window: [%g, %g)", fit.BaselineMin, fit.BaselineMax), "config")
	logger.Info(fmt.Sprintf("Fast window: [peak+%g, peak+%g), seeds %v", fit.FastStart, fit.FastEnd, fit.FastSeed), "config")
	logger.Info(fmt.Sprintf("Slow window: [%g, last], seeds %v", fit.SlowStart, fit.SlowSeed), "config")
	logger.Info(fmt.Sprintf("Combined window: [peak+%g, last]", fit.CombinedStart), "config")
}
