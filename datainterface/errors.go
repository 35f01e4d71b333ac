package datainterface

import (
	"github.com/pkg/errors"

	"github.com/robert-malhotra/go-nwbconv/nwb"
)

var (
	// ErrConfiguration reports invalid arguments: both or neither of an
	// output path and a file handle, an unknown backend, or source data
	// that does not decode.
	ErrConfiguration = errors.New("configuration error")

	// ErrMissingMetadata reports a required metadata field that is absent
	// when a new file is created.
	ErrMissingMetadata = nwb.ErrMissingMetadata

	// ErrDataShape reports source data inconsistent with the layout the
	// interface expects.
	ErrDataShape = errors.New("data shape error")
)

// ConfigError wraps ErrConfiguration with a formatted message.
func ConfigError(format string, args ...any) error {
	return errors.Wrapf(ErrConfiguration, format, args...)
}

// ShapeError wraps ErrDataShape with a formatted message.
func ShapeError(format string, args ...any) error {
	return errors.Wrapf(ErrDataShape, format, args...)
}
