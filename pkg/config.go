package timeconst

import (
	"fmt"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

type Configuration struct {
	Verbosity     int          `json:"verbosity" validate:"gte=0"`
	NumWorkers    int          `json:"num_workers" validate:"gte=1"`
	InputDir      string       `json:"input_dir"`
	InputPattern  string       `json:"input_pattern" validate:"required"`
	OutputDir     string       `json:"output_dir" validate:"required"`
	NoDB          bool         `json:"no_db"`
	DBDriver      string       `json:"db_driver" validate:"oneof=sqlite mysql"`
	Host          string       `json:"host"`
	User          string       `json:"user"`
	Passwd        string       `json:"pass"`
	DBName        string       `json:"dbname" validate:"required_if=NoDB false"`
	CatalogFromDB bool         `json:"catalog_from_db"`
	Solver        SolverConfig `json:"solver"`
	Fit           FitConfig    `json:"fit"`
	Series        []Series     `json:"series"`
}

func DefaultConfiguration() Configuration {
	return Configuration{
		Verbosity:    0,
		NumWorkers:   1,
		InputDir:     ".",
		InputPattern: "series%d.h5",
		OutputDir:    ".",
		DBDriver:     "sqlite",
		DBName:       "tconst.db",
		Solver:       DefaultSolverConfig(),
		Fit:          DefaultFitConfig(),
	}
}

var validate = validator.New()

// Validate checks ranges and the series catalog source.
func (c Configuration) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.CatalogFromDB && c.NoDB {
		return fmt.Errorf("%w: catalog_from_db requires a database", ErrSeriesConfigInvalid)
	}
	if !c.CatalogFromDB && len(c.Series) == 0 {
		return fmt.Errorf("%w: no series defined and catalog_from_db not set", ErrSeriesConfigInvalid)
	}
	return nil
}

// Analysis returns the per series analysis settings.
func (c Configuration) Analysis() AnalysisConfig {
	return AnalysisConfig{
		Fit:        c.Fit,
		Solver:     c.Solver,
		NumWorkers: c.NumWorkers,
		Verbosity:  c.Verbosity,
	}
}

// InputFile is the averaged profile file of a series.
func (c Configuration) InputFile(seriesID int) string {
	return filepath.Join(c.InputDir, fmt.Sprintf(c.InputPattern, seriesID))
}

// OutputFile is the results file of a series.
func (c Configuration) OutputFile(seriesID int) string {
	return filepath.Join(c.OutputDir, fmt.Sprintf("tconst_series%d.h5", seriesID))
}

// LockFile guards the outputs of a series against concurrent runs.
func (c Configuration) LockFile(seriesID int) string {
	return filepath.Join(c.OutputDir, fmt.Sprintf("tconst_series%d.lock", seriesID))
}
