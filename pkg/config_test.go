package timeconst

import (
	"errors"
	"path/filepath"
	"testing"
)

func validConfiguration() Configuration {
	c := DefaultConfiguration()
	c.Series = []Series{{ID: 1, Regular: true, Positions: []float64{0, 5}}}
	return c
}

func TestConfigurationValidate(t *testing.T) {
	if err := validConfiguration().Validate(); err != nil {
		t.Fatalf("default configuration rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(c *Configuration)
	}{
		{"no workers", func(c *Configuration) { c.NumWorkers = 0 }},
		{"unknown solver", func(c *Configuration) { c.Solver.Name = "migrad" }},
		{"no call limit", func(c *Configuration) { c.Solver.MaxFunctionCalls = 0 }},
		{"baseline window", func(c *Configuration) { c.Fit.BaselineMax = c.Fit.BaselineMin }},
		{"fast window", func(c *Configuration) { c.Fit.FastEnd = 10 }},
		{"driver", func(c *Configuration) { c.DBDriver = "postgres" }},
		{"no series", func(c *Configuration) { c.Series = nil }},
		{"catalog without db", func(c *Configuration) { c.CatalogFromDB = true; c.NoDB = true }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := validConfiguration()
			tc.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Fatalf("configuration accepted")
			}
		})
	}
}

func TestConfigurationCatalogFromDB(t *testing.T) {
	c := validConfiguration()
	c.Series = nil
	c.CatalogFromDB = true
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	c.NoDB = true
	if err := c.Validate(); !errors.Is(err, ErrSeriesConfigInvalid) {
		t.Fatalf("error = %v, want ErrSeriesConfigInvalid", err)
	}
}

func TestConfigurationPaths(t *testing.T) {
	c := validConfiguration()
	c.InputDir = "data"
	c.OutputDir = "out"
	if got, want := c.InputFile(12), filepath.Join("data", "series12.h5"); got != want {
		t.Fatalf("InputFile = %s, want %s", got, want)
	}
	if got, want := c.OutputFile(12), filepath.Join("out", "tconst_series12.h5"); got != want {
		t.Fatalf("OutputFile = %s, want %s", got, want)
	}
	if got, want := c.LockFile(12), filepath.Join("out", "tconst_series12.lock"); got != want {
		t.Fatalf("LockFile = %s, want %s", got, want)
	}
	a := c.Analysis()
	if a.NumWorkers != c.NumWorkers || a.Solver != c.Solver || a.Fit != c.Fit {
		t.Fatalf("Analysis() = %+v", a)
	}
}
