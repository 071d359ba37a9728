package imgcrypt

import (
	"fmt"
	"strings"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindDimensionMismatch
	KindUnsupportedColor
	KindNumericalInstability
	KindInsufficientCapacity
	KindInvalidLength
	KindMalformedMetadata
	KindIntegrityMismatch
	KindShapeInconsistency
	KindMalformedArtifact
	KindCompression
	KindParity
)

func (k Kind) String() string {
	switch k {
	case KindDimensionMismatch:
		return "dimension mismatch"
	case KindUnsupportedColor:
		return "unsupported color arrangement"
	case KindNumericalInstability:
		return "numerical instability"
	case KindInsufficientCapacity:
		return "insufficient capacity"
	case KindInvalidLength:
		return "invalid embedded length"
	case KindMalformedMetadata:
		return "malformed metadata"
	case KindIntegrityMismatch:
		return "integrity mismatch"
	case KindShapeInconsistency:
		return "shape inconsistency"
	case KindMalformedArtifact:
		return "malformed artifact"
	case KindCompression:
		return "compression"
	case KindParity:
		return "parity"
	}
	return "unknown"
}

// Sentinels for errors.Is. They compare by Kind only.
var (
	ErrDimensionMismatch    = &Error{Kind: KindDimensionMismatch}
	ErrUnsupportedColor     = &Error{Kind: KindUnsupportedColor}
	ErrNumericalInstability = &Error{Kind: KindNumericalInstability}
	ErrInsufficientCapacity = &Error{Kind: KindInsufficientCapacity}
	ErrInvalidLength        = &Error{Kind: KindInvalidLength}
	ErrMalformedMetadata    = &Error{Kind: KindMalformedMetadata}
	ErrIntegrityMismatch    = &Error{Kind: KindIntegrityMismatch}
	ErrShapeInconsistency   = &Error{Kind: KindShapeInconsistency}
	ErrMalformedArtifact    = &Error{Kind: KindMalformedArtifact}
	ErrCompression          = &Error{Kind: KindCompression}
	ErrParity               = &Error{Kind: KindParity}
)

// Error is the single failure type returned by every stage of a pipeline run.
// Only the fields relevant to Kind are populated.
type Error struct {
	Kind  Kind
	Stage Stage
	Msg   string

	// Needed and Available are bit or byte counts.
	Needed    int
	Available int

	// Width and Height describe the offending buffer.
	Width  int
	Height int

	// Expected and Actual hold shapes or digests that disagree.
	Expected string
	Actual   string

	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Stage != StageNone {
		b.WriteString(e.Stage.String())
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())

	switch e.Kind {
	case KindDimensionMismatch:
		fmt.Fprintf(&b, ": %dx%d is not square", e.Width, e.Height)
	case KindInsufficientCapacity:
		fmt.Fprintf(&b, ": %d bits needed, %d available", e.Needed, e.Available)
	case KindInvalidLength:
		fmt.Fprintf(&b, ": header declares %d bytes, carrier holds %d bits", e.Needed, e.Available)
	case KindIntegrityMismatch, KindShapeInconsistency:
		if e.Expected != "" || e.Actual != "" {
			fmt.Fprintf(&b, ": expected %s, got %s", e.Expected, e.Actual)
		}
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// atStage stamps err with the stage it surfaced in, unless a stage is already set.
func atStage(err error, stage Stage) error {
	if e, ok := err.(*Error); ok {
		if e.Stage == StageNone {
			e.Stage = stage
		}
		return e
	}
	return &Error{Kind: KindUnknown, Stage: stage, Err: err}
}
