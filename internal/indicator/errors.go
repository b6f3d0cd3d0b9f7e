package indicator

import (
	"github.com/pkg/errors"

	"finplotter/internal/model"
)

var (
	// ErrInvalidParameter is returned for a period or window that is out of
	// range for the input, and for inputs of mismatched lengths.
	ErrInvalidParameter = errors.New("invalid indicator parameter")

	// ErrEmptySeries is returned when an indicator receives no samples.
	ErrEmptySeries = model.ErrEmptySeries
)

func invalidParam(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidParameter, format, args...)
}

func emptySeries(name string) error {
	return errors.Wrap(ErrEmptySeries, name)
}
