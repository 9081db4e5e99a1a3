package timeconst

import (
	"errors"
	"math"
	"testing"
)

func testCatalog(t *testing.T) *SeriesCatalog {
	t.Helper()
	catalog, err := NewSeriesCatalog([]Series{
		{ID: 1, Description: "scan", Regular: true, Positions: []float64{0, 5, 10}},
		{ID: 2, Description: "narrow", Regular: true, Tolerance: 0.5, Positions: []float64{0, 5, 10}},
		{ID: 6, Description: "repeated", Ordinal: true, Regular: true, Positions: []float64{1, 2, 3, 4}},
		{ID: 7, Description: "calibration", Positions: []float64{0}},
	})
	if err != nil {
		t.Fatalf("NewSeriesCatalog: %v", err)
	}
	return catalog
}

func TestIndexOfPositional(t *testing.T) {
	index := NewMeasurementIndex(testCatalog(t))

	tests := []struct {
		name     string
		series   int
		position float64
		want     int
		wantErr  error
	}{
		{"exact first", 1, 0, 0, nil},
		{"within tolerance", 1, 4.8, 1, nil},
		{"below last", 1, 9.2, 2, nil},
		{"outside tolerance", 1, 4.0, -1, ErrNotFound},
		// with the default 1 mm tolerance 4.5 resolves to slot 1
		{"default tolerance", 1, 4.5, 1, nil},
		{"tolerance edge", 2, 4.5, -1, ErrNotFound},
		{"narrow inside", 2, 4.6, 1, nil},
		{"beyond list", 1, 20, -1, ErrNotFound},
		{"unknown series", 3, 0, -1, ErrSeriesConfigInvalid},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := index.IndexOf(tc.series, tc.position)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("IndexOf(%d, %g) error = %v, want %v", tc.series, tc.position, err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("IndexOf(%d, %g): %v", tc.series, tc.position, err)
			}
			if got != tc.want {
				t.Fatalf("IndexOf(%d, %g) = %d, want %d", tc.series, tc.position, got, tc.want)
			}
		})
	}
}

func TestIndexOfOrdinal(t *testing.T) {
	index := NewMeasurementIndex(testCatalog(t))

	got, err := index.IndexOf(6, 3.0)
	if err != nil {
		t.Fatalf("IndexOf: %v", err)
	}
	if got != 2 {
		t.Fatalf("IndexOf(6, 3.0) = %d, want 2", got)
	}
	for _, position := range []float64{0, 2.5, 5, -1, 1e30, math.Inf(1), math.Inf(-1), math.NaN()} {
		if _, err := index.IndexOf(6, position); !errors.Is(err, ErrNotFound) {
			t.Fatalf("IndexOf(6, %g) error = %v, want ErrNotFound", position, err)
		}
	}
}

func TestIndexOfIdempotent(t *testing.T) {
	index := NewMeasurementIndex(testCatalog(t))
	first, err := index.IndexOf(1, 10.3)
	if err != nil {
		t.Fatalf("IndexOf: %v", err)
	}
	for i := 0; i < 10; i++ {
		got, err := index.IndexOf(1, 10.3)
		if err != nil || got != first {
			t.Fatalf("call %d: IndexOf = %d, %v, want %d", i, got, err, first)
		}
	}
}

func TestCatalogValidation(t *testing.T) {
	tests := []struct {
		name   string
		series []Series
	}{
		{"close positions", []Series{{ID: 1, Positions: []float64{0, 0.5}}}},
		{"no positions", []Series{{ID: 1}}},
		{"bad id", []Series{{ID: 0, Positions: []float64{1}}}},
		{"duplicate", []Series{{ID: 1, Positions: []float64{1}}, {ID: 1, Positions: []float64{2}}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewSeriesCatalog(tc.series); !errors.Is(err, ErrSeriesConfigInvalid) {
				t.Fatalf("NewSeriesCatalog error = %v, want ErrSeriesConfigInvalid", err)
			}
		})
	}

	// ordinal series may repeat positions
	if _, err := NewSeriesCatalog([]Series{{ID: 8, Ordinal: true, Positions: []float64{0, 0, 0}}}); err != nil {
		t.Fatalf("ordinal series rejected: %v", err)
	}
}

func TestCatalogRegular(t *testing.T) {
	catalog := testCatalog(t)
	if _, err := catalog.Regular(1); err != nil {
		t.Fatalf("Regular(1): %v", err)
	}
	if _, err := catalog.Regular(7); !errors.Is(err, ErrSeriesConfigInvalid) {
		t.Fatalf("Regular(7) error = %v, want ErrSeriesConfigInvalid", err)
	}
	ids := catalog.IDs()
	want := []int{1, 2, 6, 7}
	if len(ids) != len(want) {
		t.Fatalf("IDs() = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("IDs() = %v, want %v", ids, want)
		}
	}
	s, _ := catalog.Lookup(1)
	if s.Tolerance != DefaultTolerance {
		t.Fatalf("default tolerance = %g, want %g", s.Tolerance, DefaultTolerance)
	}
}
