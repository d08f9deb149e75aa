package wire

import "github.com/pkg/errors"

var (
	// ErrFormatViolation is returned when an index is corrupt or was produced
	// by another stage: wrong magic, short record, trailing bytes.
	ErrFormatViolation = errors.New("format violation")

	// ErrCapacityExceeded is returned when a value does not fit its field.
	ErrCapacityExceeded = errors.New("capacity exceeded")
)
