package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	timeconst "github.com/scintfib/tconst_go/pkg"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func renderTable(headers []string, rows [][]string, aligns []columnAlignment, rounded bool) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	if rounded {
		tw.SetStyle(table.StyleRounded)
	} else {
		tw.SetStyle(table.StyleDefault)
	}

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func measurementRows(results []timeconst.FitResult) [][]string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			fmt.Sprintf("%d", r.Channel),
			fmt.Sprintf("%d", r.Index),
			fmt.Sprintf("%.1f", r.Position),
			r.Status.String(),
			fmt.Sprintf("%.2f ± %.2f", r.FastTau(), r.Errors[timeconst.ParFastTau]),
			fmt.Sprintf("%.1f ± %.1f", r.SlowTau(), r.Errors[timeconst.ParSlowTau]),
			fmt.Sprintf("%.2f", r.FastAmplitude()),
			fmt.Sprintf("%.2f", r.SlowAmplitude()),
			fmt.Sprintf("%.1f/%d", r.Chi2, r.NDF),
		})
	}
	return rows
}

// renderResults prints every measurement, the series aggregate and the
// rejected fits.
func renderResults(w io.Writer, res timeconst.TimeConstResults) {
	rounded := isTerminal(w)
	headers := []string{"Ch", "Slot", "Position", "Status", "Tau fast [ns]", "Tau slow [ns]", "A fast", "A slow", "Chi2/ndf"}
	aligns := []columnAlignment{alignRight, alignRight, alignRight, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight}
	rows := append(measurementRows(res.ResultsCh0), measurementRows(res.ResultsCh1)...)
	fmt.Fprintln(w, renderTable(headers, rows, aligns, rounded))

	agg := res.Aggregate
	summary := [][]string{
		{"Fast decay [ns]", fmt.Sprintf("%.2f ± %.2f", agg.FastMean, agg.FastStdErr)},
		{"Slow decay [ns]", fmt.Sprintf("%.1f ± %.1f", agg.SlowMean, agg.SlowStdErr)},
		{"Fast intensity", fmt.Sprintf("%.3f", agg.IntensityFast)},
		{"Slow intensity", fmt.Sprintf("%.3f", agg.IntensitySlow)},
		{"Accepted fits", fmt.Sprintf("%d", agg.AcceptedCount)},
		{"Rejected fits", fmt.Sprintf("%d", len(agg.Failed))},
	}
	fmt.Fprintln(w, renderTable([]string{fmt.Sprintf("Series %d", agg.SeriesID), ""}, summary,
		[]columnAlignment{alignLeft, alignRight}, rounded))

	if len(agg.Failed) == 0 {
		return
	}
	failed := make([][]string, 0, len(agg.Failed))
	for _, f := range agg.Failed {
		failed = append(failed, []string{
			fmt.Sprintf("%d", f.Channel),
			fmt.Sprintf("%.1f", f.Position),
			f.Status.String(),
		})
	}
	fmt.Fprintln(w, renderTable([]string{"Ch", "Position", "Status"}, failed,
		[]columnAlignment{alignRight, alignRight, alignLeft}, rounded))
}
