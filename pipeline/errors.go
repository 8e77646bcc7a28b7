package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// Stage names the step of a run an error came from
type Stage uint8

const (
	StageLoad Stage = iota
	StageGrid
	StageResample
	StageRegister
)

func (s Stage) String() string {
	switch s {
	case StageLoad:
		return "load"
	case StageGrid:
		return "grid"
	case StageResample:
		return "resample"
	case StageRegister:
		return "register"
	}
	return fmt.Sprintf("Stage(%d)", s)
}

var (
	ErrCancelled = errors.New("resample cancelled")
	ErrBusy      = errors.New("pipeline is already running")
	// ErrMissingFields means a selected field was not among the outputs
	ErrMissingFields = errors.New("requested fields not produced")
)

// StageError tags a failure with the stage that produced it
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageError(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}

func cancelled(err error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, err)
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
