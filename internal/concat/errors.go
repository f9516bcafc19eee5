package concat

import (
	"errors"
	"fmt"
)

// Error kinds. Test with errors.Is; a *SourceError wraps one of these plus
// the backend's cause.
var (
	ErrDecode   = errors.New("decode failed")
	ErrEncode   = errors.New("encode failed")
	ErrResample = errors.New("resample failed")
	ErrMux      = errors.New("mux failed")

	// ErrAborted is returned when the run stopped before every source was
	// written, either through context cancellation or an early Close.
	ErrAborted = errors.New("concatenation aborted")
	// ErrClosed is returned by Next after Close.
	ErrClosed = errors.New("pipeline closed")
)

// SourceError reports a fatal failure while processing one source. Index is
// -1 for failures that belong to the output rather than a source.
type SourceError struct {
	Op    string
	Index int
	Path  string
	Kind  error
	Err   error
}

func (e *SourceError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("source %d (%s): %s: %v: %v", e.Index+1, e.Path, e.Op, e.Kind, e.Err)
}

func (e *SourceError) Unwrap() []error { return []error{e.Kind, e.Err} }

func outputError(op string, kind, err error) error {
	return &SourceError{Op: op, Index: -1, Kind: kind, Err: err}
}
