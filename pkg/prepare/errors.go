package prepare

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is against a returned *BuildError.
var (
	ErrPrecondition  = errors.New("precondition failed")
	ErrSimulation    = errors.New("simulation failed")
	ErrFeeExtraction = errors.New("failed to get resource fee from the simulation response")
	// ErrBuild covers encoding and envelope construction failures.
	ErrBuild = errors.New("build failed")
)

// Stage names the pipeline step that failed.
type Stage string

const (
	StageAssemble Stage = "assemble"
	StageSimulate Stage = "simulate"
	StageRestore  Stage = "restore"
	StageAdjust   Stage = "adjust"
	StageFinalize Stage = "finalize"
)

// BuildError is returned by every failing pipeline step.
type BuildError struct {
	Stage Stage
	Kind  error
	Err   error
}

func (e *BuildError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Err)
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *BuildError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func preconditionErr(stage Stage, format string, args ...interface{}) error {
	return &BuildError{Stage: stage, Kind: ErrPrecondition, Err: fmt.Errorf(format, args...)}
}

func simulationErr(err error) error {
	return &BuildError{Stage: StageSimulate, Kind: ErrSimulation, Err: err}
}

func feeErr(stage Stage, err error) error {
	return &BuildError{Stage: stage, Kind: ErrFeeExtraction, Err: err}
}

func stageErr(stage Stage, err error) error {
	return &BuildError{Stage: stage, Kind: ErrBuild, Err: err}
}
