package pipeline

import "fmt"

// Kind classifies what went wrong, independent of which stage reported it.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindFetch         Kind = "fetch"
	KindExtraction    Kind = "extraction"
	KindTranscription Kind = "transcription"
	KindInternal      Kind = "internal"
)

// StageError is a pipeline failure tagged with the stage it occurred in and
// the error kind, so callers can map it to an HTTP status and diagnose the
// underlying cause.
type StageError struct {
	Stage Status
	Kind  Kind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage Status, kind Kind, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}
