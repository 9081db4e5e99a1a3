package timeconst

import (
	"fmt"
	"math"
	"sort"

	"golang.org/x/exp/maps"
)

// DefaultTolerance is the position match tolerance in mm.
const DefaultTolerance = 1.0

// Series describes one measurement series. Ordinal series are addressed by
// 1-based measurement number instead of source position.
type Series struct {
	ID          int       `json:"id" db:"SERIES_ID"`
	Description string    `json:"description" db:"DESCRIPTION"`
	Fiber       string    `json:"fiber" db:"FIBER"`
	Ordinal     bool      `json:"ordinal" db:"ORDINAL"`
	Regular     bool      `json:"regular" db:"REGULAR"`
	Tolerance   float64   `json:"tolerance" db:"TOLERANCE"`
	Positions   []float64 `json:"positions" db:"-"`
}

func (s Series) Npoints() int {
	return len(s.Positions)
}

// IndexOf returns the slot of the measurement at position. Positional series
// return the first position closer than the tolerance; ordinal series
// interpret position as the 1-based measurement number.
func (s Series) IndexOf(position float64) (int, error) {
	if s.Ordinal {
		index := position - 1
		if math.IsInf(index, 0) || index != math.Trunc(index) || index < 0 || index >= float64(len(s.Positions)) {
			return -1, fmt.Errorf("%w: series %d has no measurement number %g", ErrNotFound, s.ID, position)
		}
		return int(index), nil
	}
	tolerance := s.tolerance()
	for i, p := range s.Positions {
		if math.Abs(p-position) < tolerance {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: series %d has no position %.2f mm", ErrNotFound, s.ID, position)
}

func (s Series) tolerance() float64 {
	if s.Tolerance > 0 {
		return s.Tolerance
	}
	return DefaultTolerance
}

func (s Series) validate() error {
	if s.ID < 1 {
		return fmt.Errorf("%w: series number %d", ErrSeriesConfigInvalid, s.ID)
	}
	if len(s.Positions) == 0 {
		return fmt.Errorf("%w: series %d has no measurements", ErrSeriesConfigInvalid, s.ID)
	}
	if s.Ordinal {
		return nil
	}
	tolerance := s.tolerance()
	for i := range s.Positions {
		for j := i + 1; j < len(s.Positions); j++ {
			if math.Abs(s.Positions[i]-s.Positions[j]) < tolerance {
				return fmt.Errorf("%w: series %d positions %.2f and %.2f are closer than %.2f mm",
					ErrSeriesConfigInvalid, s.ID, s.Positions[i], s.Positions[j], tolerance)
			}
		}
	}
	return nil
}

// SeriesCatalog holds the series metadata keyed by series number. It is
// built once and only read afterwards.
type SeriesCatalog struct {
	series map[int]Series
}

func NewSeriesCatalog(list []Series) (*SeriesCatalog, error) {
	catalog := &SeriesCatalog{series: make(map[int]Series, len(list))}
	for _, s := range list {
		if err := s.validate(); err != nil {
			return nil, err
		}
		if _, ok := catalog.series[s.ID]; ok {
			return nil, fmt.Errorf("%w: series %d defined twice", ErrSeriesConfigInvalid, s.ID)
		}
		positions := make([]float64, len(s.Positions))
		copy(positions, s.Positions)
		s.Positions = positions
		if s.Tolerance <= 0 {
			s.Tolerance = DefaultTolerance
		}
		catalog.series[s.ID] = s
	}
	return catalog, nil
}

func (c *SeriesCatalog) Lookup(seriesID int) (Series, error) {
	s, ok := c.series[seriesID]
	if !ok {
		return Series{}, fmt.Errorf("%w: unknown series %d", ErrSeriesConfigInvalid, seriesID)
	}
	return s, nil
}

// Regular returns the series only if it is flagged as a regular series.
func (c *SeriesCatalog) Regular(seriesID int) (Series, error) {
	s, err := c.Lookup(seriesID)
	if err != nil {
		return s, err
	}
	if !s.Regular {
		return s, fmt.Errorf("%w: series %d is not a regular series (%q)", ErrSeriesConfigInvalid, seriesID, s.Description)
	}
	return s, nil
}

// IDs returns the series numbers in ascending order.
func (c *SeriesCatalog) IDs() []int {
	ids := maps.Keys(c.series)
	sort.Ints(ids)
	return ids
}

// MeasurementIndex resolves source positions to measurement slots.
type MeasurementIndex struct {
	catalog *SeriesCatalog
}

func NewMeasurementIndex(catalog *SeriesCatalog) *MeasurementIndex {
	return &MeasurementIndex{catalog: catalog}
}

func (m *MeasurementIndex) IndexOf(seriesID int, position float64) (int, error) {
	s, err := m.catalog.Lookup(seriesID)
	if err != nil {
		return -1, err
	}
	return s.IndexOf(position)
}
