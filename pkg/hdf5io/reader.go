package hdf5io

import (
	"errors"
	"fmt"

	timeconst "github.com/scintfib/tconst_go/pkg"
)

// Reader holds the averaged profiles of one series file. The whole file is
// read at open; the HDF5 handle is closed before OpenReader returns.
type Reader struct {
	Filename  string
	SeriesID  int
	Positions []float64
	Times     []float64
	amps      [2][]float64
	errs      [2][]float64
}

// OpenReader reads /Series/positions, /Profiles/time and the per channel
// profiles of a series file.
func OpenReader(filename string, seriesID int) (r *Reader, err error) {
	file, err := openFile(filename)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("error closing file %s: %w", filename, cerr))
		}
	}()

	seriesGroup, err := file.OpenGroup("Series")
	if err != nil {
		return nil, &ErrReadDataset{Dataset: "/Series", Err: err}
	}
	defer seriesGroup.Close()
	profilesGroup, err := file.OpenGroup("Profiles")
	if err != nil {
		return nil, &ErrReadDataset{Dataset: "/Profiles", Err: err}
	}
	defer profilesGroup.Close()

	r = &Reader{Filename: filename, SeriesID: seriesID}
	var dims []uint
	if r.Positions, dims, err = readArray(seriesGroup, "positions"); err != nil {
		return nil, err
	}
	if err := checkDims("positions", dims, uint(len(r.Positions))); err != nil {
		return nil, err
	}
	if r.Times, dims, err = readArray(profilesGroup, "time"); err != nil {
		return nil, err
	}
	if err := checkDims("time", dims, uint(len(r.Times))); err != nil {
		return nil, err
	}
	npoints, nbins := uint(len(r.Positions)), uint(len(r.Times))

	for ch := 0; ch < 2; ch++ {
		name := fmt.Sprintf("ch%d", ch)
		if r.amps[ch], dims, err = readArray(profilesGroup, name); err != nil {
			return nil, err
		}
		if err := checkDims(name, dims, npoints, nbins); err != nil {
			return nil, err
		}
		errName := name + "_err"
		if !profilesGroup.LinkExists(errName) {
			continue
		}
		if r.errs[ch], dims, err = readArray(profilesGroup, errName); err != nil {
			return nil, err
		}
		if err := checkDims(errName, dims, npoints, nbins); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Profile implements timeconst.ProfileSource.
func (r *Reader) Profile(channel, index int) (*timeconst.Profile, error) {
	if channel != 0 && channel != 1 {
		return nil, fmt.Errorf("%w: %d", timeconst.ErrInvalidChannel, channel)
	}
	if index < 0 || index >= len(r.Positions) {
		return nil, fmt.Errorf("%w: %s has no measurement %d", timeconst.ErrNotFound, r.Filename, index)
	}
	nbins := len(r.Times)
	amps := r.amps[channel][index*nbins : (index+1)*nbins]
	var errs []float64
	if r.errs[channel] != nil {
		errs = r.errs[channel][index*nbins : (index+1)*nbins]
	}
	return timeconst.NewProfileFromArrays(r.SeriesID, channel, r.Positions[index], r.Times, amps, errs)
}

// CheckSeries verifies that the file positions match the catalog entry.
func (r *Reader) CheckSeries(series timeconst.Series) error {
	if len(r.Positions) != series.Npoints() {
		return fmt.Errorf("%w: %s has %d measurements, series %d defines %d",
			timeconst.ErrSeriesConfigInvalid, r.Filename, len(r.Positions), series.ID, series.Npoints())
	}
	if series.Ordinal {
		return nil
	}
	for i, p := range r.Positions {
		index, err := series.IndexOf(p)
		if err != nil || index != i {
			return fmt.Errorf("%w: %s measurement %d at %.2f mm does not match series %d",
				timeconst.ErrSeriesConfigInvalid, r.Filename, i, p, series.ID)
		}
	}
	return nil
}

var _ timeconst.ProfileSource = (*Reader)(nil)
