package hdf5io

import (
	"errors"
	"fmt"

	hdf5 "github.com/jmbenlloch/go-hdf5"

	timeconst "github.com/scintfib/tconst_go/pkg"
)

type FitRowHDF5 struct {
	index       int32
	position    float64
	status      int32
	fastAmp     float64
	fastAmpErr  float64
	onset       float64
	onsetErr    float64
	fastTau     float64
	fastTauErr  float64
	slowAmp     float64
	slowAmpErr  float64
	slowTau     float64
	slowTauErr  float64
	baseline    float64
	baselineErr float64
	chi2        float64
	ndf         int32
}

type SummaryHDF5 struct {
	seriesID      int32
	fastMean      float64
	fastStdErr    float64
	slowMean      float64
	slowStdErr    float64
	intensityFast float64
	intensitySlow float64
	accepted      int32
	failed        int32
}

// Writer produces the results file of a series analysis.
type Writer struct {
	File         *hdf5.File
	Filename     string
	FitsGroup    *hdf5.Group
	SummaryGroup *hdf5.Group
	CurvesGroup  *hdf5.Group
	FitTables    [2]*hdf5.Dataset
	SummaryTable *hdf5.Dataset
	datasets     []*hdf5.Dataset
}

func NewWriter(filename string) (*Writer, error) {
	file, err := createFile(filename)
	if err != nil {
		return nil, err
	}
	w := &Writer{File: file, Filename: filename}
	if err := w.init(); err != nil {
		return nil, errors.Join(err, w.Close())
	}
	return w, nil
}

func (w *Writer) init() error {
	var err error
	if w.FitsGroup, err = createGroup(w.File, "Fits"); err != nil {
		return err
	}
	if w.SummaryGroup, err = createGroup(w.File, "Summary"); err != nil {
		return err
	}
	if w.CurvesGroup, err = createGroup(w.File, "Curves"); err != nil {
		return err
	}
	for ch := 0; ch < 2; ch++ {
		if w.FitTables[ch], err = createTable(w.FitsGroup, fmt.Sprintf("ch%d", ch), FitRowHDF5{}); err != nil {
			return err
		}
	}
	w.SummaryTable, err = createTable(w.SummaryGroup, "series", SummaryHDF5{})
	return err
}

func fitRow(r timeconst.FitResult) FitRowHDF5 {
	return FitRowHDF5{
		index:       int32(r.Index),
		position:    r.Position,
		status:      int32(r.Status),
		fastAmp:     r.Params[timeconst.ParFastAmp],
		fastAmpErr:  r.Errors[timeconst.ParFastAmp],
		onset:       r.Params[timeconst.ParOnset],
		onsetErr:    r.Errors[timeconst.ParOnset],
		fastTau:     r.Params[timeconst.ParFastTau],
		fastTauErr:  r.Errors[timeconst.ParFastTau],
		slowAmp:     r.Params[timeconst.ParSlowAmp],
		slowAmpErr:  r.Errors[timeconst.ParSlowAmp],
		slowTau:     r.Params[timeconst.ParSlowTau],
		slowTauErr:  r.Errors[timeconst.ParSlowTau],
		baseline:    r.Params[timeconst.ParConst],
		baselineErr: r.Errors[timeconst.ParConst],
		chi2:        r.Chi2,
		ndf:         int32(r.NDF),
	}
}

// WriteResults writes the fit tables, the series summary and the fitted
// curves evaluated at times.
func (w *Writer) WriteResults(res timeconst.TimeConstResults, times []float64) error {
	for ch, results := range [][]timeconst.FitResult{res.ResultsCh0, res.ResultsCh1} {
		// The array MUST be allocated at creation, appends break the HDF5 write
		rows := make([]FitRowHDF5, len(results))
		for i, r := range results {
			rows[i] = fitRow(r)
		}
		if err := writeArrayToTable(w.FitTables[ch], &rows, 0); err != nil {
			return fmt.Errorf("error writing ch%d fits: %w", ch, err)
		}
	}

	agg := res.Aggregate
	summary := []SummaryHDF5{{
		seriesID:      int32(agg.SeriesID),
		fastMean:      agg.FastMean,
		fastStdErr:    agg.FastStdErr,
		slowMean:      agg.SlowMean,
		slowStdErr:    agg.SlowStdErr,
		intensityFast: agg.IntensityFast,
		intensitySlow: agg.IntensitySlow,
		accepted:      int32(agg.AcceptedCount),
		failed:        int32(len(agg.Failed)),
	}}
	if err := writeArrayToTable(w.SummaryTable, &summary, 0); err != nil {
		return fmt.Errorf("error writing summary: %w", err)
	}
	return w.writeCurves(res, times)
}

func (w *Writer) writeCurves(res timeconst.TimeConstResults, times []float64) error {
	timeDset, err := createArray(w.CurvesGroup, "time", []uint{uint(len(times))})
	if err != nil {
		return err
	}
	w.datasets = append(w.datasets, timeDset)
	if len(times) > 0 {
		if err := timeDset.Write(&times); err != nil {
			return fmt.Errorf("error writing curve times: %w", err)
		}
	}

	for ch, results := range [][]timeconst.FitResult{res.ResultsCh0, res.ResultsCh1} {
		nbins := len(times)
		data := make([]float64, len(results)*nbins)
		for i, r := range results {
			combined, ok := r.Stage(timeconst.StageCombined)
			if !ok {
				continue
			}
			copy(data[i*nbins:], r.Model().Curve(times, combined.Min))
		}
		dset, err := createArray(w.CurvesGroup, fmt.Sprintf("ch%d", ch), []uint{uint(len(results)), uint(nbins)})
		if err != nil {
			return err
		}
		w.datasets = append(w.datasets, dset)
		if len(data) == 0 {
			continue
		}
		if err := dset.Write(&data); err != nil {
			return fmt.Errorf("error writing ch%d curves: %w", ch, err)
		}
	}
	return nil
}

func (w *Writer) Close() error {
	var errs []error
	for _, d := range w.datasets {
		if err := d.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing curves: %w", err))
		}
	}
	for ch, t := range w.FitTables {
		if t == nil {
			continue
		}
		if err := t.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing ch%d fit table: %w", ch, err))
		}
	}
	if w.SummaryTable != nil {
		if err := w.SummaryTable.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing summary table: %w", err))
		}
	}
	for _, g := range []*hdf5.Group{w.FitsGroup, w.SummaryGroup, w.CurvesGroup} {
		if g == nil {
			continue
		}
		if err := g.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing group: %w", err))
		}
	}
	if err := w.File.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing file: %w", err))
	}
	return errors.Join(errs...)
}
