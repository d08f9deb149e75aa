package pwr

import (
	"github.com/itchio/buoy/wire"
	"github.com/pkg/errors"
)

func formatViolation(format string, args ...interface{}) error {
	return errors.Wrapf(wire.ErrFormatViolation, format, args...)
}

func capacityExceeded(format string, args ...interface{}) error {
	return errors.Wrapf(wire.ErrCapacityExceeded, format, args...)
}
