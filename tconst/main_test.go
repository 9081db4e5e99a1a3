package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	timeconst "github.com/scintfib/tconst_go/pkg"
)

const testConfig = `{
	"verbosity": 0,
	"num_workers": 3,
	"output_dir": "out",
	"no_db": true,
	"solver": {"name": "simplex"},
	"fit": {"fast_end": 120},
	"series": [
		{"id": 2, "description": "scan", "regular": true, "positions": [0, 5, 10]},
		{"id": 6, "description": "repeated", "ordinal": true, "regular": true, "positions": [1, 1, 1]}
	]
}`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tconst.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigurationKeepsDefaults(t *testing.T) {
	config, err := LoadConfiguration(writeConfig(t, testConfig))
	if err != nil {
		t.Fatalf("LoadConfiguration: %v", err)
	}
	if config.NumWorkers != 3 || config.OutputDir != "out" || !config.NoDB {
		t.Fatalf("overrides not applied: %+v", config)
	}
	if config.Solver.Name != timeconst.SolverSimplex {
		t.Fatalf("solver = %q", config.Solver.Name)
	}
	if config.Solver.MaxFunctionCalls != timeconst.DefaultSolverConfig().MaxFunctionCalls {
		t.Fatalf("solver call limit default lost: %d", config.Solver.MaxFunctionCalls)
	}
	want := timeconst.DefaultFitConfig()
	want.FastEnd = 120
	if config.Fit != want {
		t.Fatalf("fit config = %+v, want %+v", config.Fit, want)
	}
	if config.InputPattern != "series%d.h5" {
		t.Fatalf("input pattern default lost: %q", config.InputPattern)
	}
	if err := config.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadConfigurationErrors(t *testing.T) {
	if _, err := LoadConfiguration(""); err == nil {
		t.Fatalf("expected an error without a file")
	}
	if _, err := LoadConfiguration(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
	if _, err := LoadConfiguration(writeConfig(t, "{")); err == nil {
		t.Fatalf("expected a parse error")
	}
}

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestIndexCommand(t *testing.T) {
	config := writeConfig(t, testConfig)

	tests := []struct {
		series   string
		position string
		want     string
	}{
		{"2", "5.4", "1"},
		{"2", "-0.6", "0"},
		{"6", "3", "2"},
	}
	for _, tt := range tests {
		out, err := executeCommand(t, "--config", config, "index", tt.series, tt.position)
		if err != nil {
			t.Fatalf("index %s %s: %v", tt.series, tt.position, err)
		}
		if strings.TrimSpace(out) != tt.want {
			t.Errorf("index %s %s = %q, want %s", tt.series, tt.position, out, tt.want)
		}
	}

	if _, err := executeCommand(t, "--config", config, "index", "2", "7.5"); err == nil {
		t.Fatalf("expected an error for a position outside the tolerance")
	}
	if _, err := executeCommand(t, "--config", config, "index", "9", "0"); err == nil {
		t.Fatalf("expected an error for an unknown series")
	}
}

func TestConfigCommandMasksPassword(t *testing.T) {
	config := writeConfig(t, strings.Replace(testConfig, `"no_db": true`, `"no_db": true, "pass": "secret"`, 1))
	out, err := executeCommand(t, "--config", config, "config")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if strings.Contains(out, "secret") || !strings.Contains(out, `"pass": "****"`) {
		t.Fatalf("password not masked:\n%s", out)
	}
}

func TestRenderResults(t *testing.T) {
	res := timeconst.TimeConstResults{
		Aggregate: timeconst.SeriesAggregate{
			SeriesID:      2,
			FastMean:      30,
			FastStdErr:    0.5,
			SlowMean:      250,
			AcceptedCount: 1,
			Failed: []timeconst.MeasurementRef{
				{Channel: 1, Position: 5, Index: 1, Status: timeconst.StatusCallLimit},
			},
		},
		ResultsCh0: []timeconst.FitResult{{SeriesID: 2, Channel: 0, Position: 5, Index: 1}},
	}
	var buf bytes.Buffer
	renderResults(&buf, res)
	out := buf.String()
	for _, want := range []string{"Accepted fits", "30.00 ± 0.50", "Rejected fits", timeconst.StatusCallLimit.String()} {
		if !strings.Contains(out, want) {
			t.Errorf("output misses %q:\n%s", want, out)
		}
	}
	if isTerminal(&buf) {
		t.Fatalf("a buffer is not a terminal")
	}
}

func TestRunRevalidatesFlagOverrides(t *testing.T) {
	out := t.TempDir()
	config := writeConfig(t, `{
	"output_dir": "`+out+`",
	"catalog_from_db": true,
	"dbname": "`+filepath.Join(out, "tconst.db")+`"
}`)
	_, err := executeCommand(t, "--config", config, "run", "2", "--no-db")
	if !errors.Is(err, timeconst.ErrSeriesConfigInvalid) {
		t.Fatalf("run --no-db with catalog_from_db error = %v, want ErrSeriesConfigInvalid", err)
	}
	if _, err := os.Stat(filepath.Join(out, "tconst.db")); !os.IsNotExist(err) {
		t.Fatalf("database touched before the configuration was rejected: %v", err)
	}
}
