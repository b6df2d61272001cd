package domain

import (
	"errors"
	"fmt"
)

// Hard failures returned to calling code. Everything else is reported through Result.
var (
	// ErrEmptyTrace is returned when a trace is built from zero samples.
	ErrEmptyTrace = errors.New("domain: trace has no samples")
	// ErrInvalidSample is returned when a trace is built from a NaN or infinite sample.
	ErrInvalidSample = errors.New("domain: sample is not finite")
	// ErrIndexOutOfRange is matched by every IndexError.
	ErrIndexOutOfRange = errors.New("domain: index out of range")
	// ErrInvalidBounds is returned when a bound pair is not strictly increasing.
	ErrInvalidBounds = errors.New("domain: invalid bounds")
	// ErrBoundsNotFound is returned when the bound search leaves the trace or its search radius.
	ErrBoundsNotFound = errors.New("domain: bounds not found")
	// ErrUnknownAreaMode is returned for an area mode outside bb, vv, bv, vb.
	ErrUnknownAreaMode = errors.New("domain: unknown area mode")
	// ErrUnknownTimeKind is returned for a time scale kind other than period or frequency.
	ErrUnknownTimeKind = errors.New("domain: unknown time scale kind")
	// ErrInvalidFactor is returned for a non-finite or non-positive construction parameter.
	ErrInvalidFactor = errors.New("domain: invalid factor")
	// ErrPeakNotFound is returned when a peak position does not exist.
	ErrPeakNotFound = errors.New("domain: peak not found")
	// ErrNoActiveTrace is returned when a save state holds no traces.
	ErrNoActiveTrace = errors.New("domain: no active trace")
)

// IndexError describes an index that fell outside [0, Len-1].
type IndexError struct {
	Index int
	Len   int
}

func (e IndexError) Error() string {
	return fmt.Sprintf("domain: index %d out of range [0, %d]", e.Index, e.Len-1)
}

// Is lets errors.Is(err, ErrIndexOutOfRange) match any IndexError.
func (e IndexError) Is(target error) bool {
	return target == ErrIndexOutOfRange
}

func checkIndex(i, n int) error {
	if i < 0 || i >= n {
		return IndexError{Index: i, Len: n}
	}
	return nil
}
