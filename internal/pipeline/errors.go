package pipeline

import (
	"errors"
	"fmt"
)

// Stage names the pipeline step a run failed in
type Stage string

// Pipeline stages
const (
	StageFetch     Stage = "fetch"
	StageParse     Stage = "parse"
	StageNormalize Stage = "normalize"
	StagePersist   Stage = "persist"
)

// ErrNoValidRows is returned when every parsed row was skipped
var ErrNoValidRows = errors.New("no valid rows in source")

// RunError aborts a run. Nothing of the run has been persisted.
type RunError struct {
	Stage Stage
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("scrape failed at %s: %v", e.Stage, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}
