package timeconst

import (
	"errors"
	"fmt"
)

var (
	// ErrSeriesConfigInvalid is returned for unknown series, malformed
	// position lists, or a non regular series where one is required.
	ErrSeriesConfigInvalid = errors.New("invalid series configuration")
	// ErrFitWindowInvalid is returned when a fit stage window holds fewer
	// samples than free parameters.
	ErrFitWindowInvalid = errors.New("invalid fit window")
	// ErrFitNotConverged marks a combined fit with non zero status. It is
	// recorded in FitResult.Status; only Accepted returns it.
	ErrFitNotConverged = errors.New("fit not converged")
	// ErrNotFound is returned by the measurement index.
	ErrNotFound = errors.New("measurement not found")
	// ErrNoValidFits is returned by the aggregator when no fit was accepted.
	ErrNoValidFits = errors.New("no valid fits")
	// ErrInvalidChannel is returned for a channel other than 0 or 1.
	ErrInvalidChannel = errors.New("invalid channel")
)

// ErrWindow describes the stage and range of an invalid fit window.
type ErrWindow struct {
	Stage   string
	Min     float64
	Max     float64
	Samples int
	Free    int
}

func (e *ErrWindow) Error() string {
	return fmt.Sprintf("stage %s: window [%.1f, %.1f] has %d samples for %d free parameters",
		e.Stage, e.Min, e.Max, e.Samples, e.Free)
}

func (e *ErrWindow) Unwrap() error {
	return ErrFitWindowInvalid
}
