// package errs
//
// failure taxonomy for a table transfer. every error that leaves the pipeline is an *Error
// so the caller can tell which stage failed, what kind of failure it was and how far the
// transfer got before it stopped
package errs

import (
	"context"
	"errors"
	"fmt"
)

// Kind : classification of a failure
type Kind string

const (
	Unknown                Kind = "UNKNOWN"
	Config                 Kind = "CONFIG"
	SourceUnavailable      Kind = "SOURCE_UNAVAILABLE"
	TableNotFound          Kind = "TABLE_NOT_FOUND"
	NoRowKey               Kind = "NO_ROW_KEY"
	DestinationUnavailable Kind = "DESTINATION_UNAVAILABLE"
	SchemaConflict         Kind = "SCHEMA_CONFLICT"
	SourceReadError        Kind = "SOURCE_READ_ERROR"
	Transient              Kind = "TRANSIENT"
	Permanent              Kind = "PERMANENT"
	Canceled               Kind = "CANCELED"
)

// Retryable : transient destination faults and source read faults are worth another attempt
func (k Kind) Retryable() bool {
	return k == Transient || k == SourceReadError
}

// Terminal : failures that end the run as soon as they are seen
func (k Kind) Terminal() bool {
	switch k {
	case Config, SourceUnavailable, TableNotFound, NoRowKey, DestinationUnavailable, SchemaConflict:
		return true
	}
	return false
}

// Stage : pipeline stage a failure happened in
type Stage string

const (
	StageInit         Stage = "Init"
	StageSchemaSync   Stage = "SchemaSync"
	StageTransferring Stage = "Transferring"
)

// Error : classified failure
type Error struct {
	Kind   Kind
	Stage  Stage
	Offset int64
	Err    error
}

func (e *Error) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s (stage=%s offset=%d): %v", e.Kind, e.Stage, e.Offset, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New : classify err as kind. nil stays nil
func New(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Newf : classify a formatted message as kind
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// At : attach stage and checkpoint offset. an error that is already classified keeps its kind
// and whatever context was wrapped around it, an unclassified one becomes Unknown (or
// Canceled if it came from the context)
func At(err error, stage Stage, offset int64) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		cause := err
		if top, ok := err.(*Error); ok {
			cause = top.Err
		}
		return &Error{Kind: e.Kind, Stage: stage, Offset: offset, Err: cause}
	}
	kind := Unknown
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		kind = Canceled
	}
	return &Error{Kind: kind, Stage: stage, Offset: offset, Err: err}
}

// KindOf : kind of the outermost classified error in the chain
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Canceled
	}
	return Unknown
}

// Is : reports whether err is classified as kind
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
