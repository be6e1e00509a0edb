package dataset

import "errors"

var (
	// ErrOverwrite marks an attempt to add a container under a name that
	// already exists without the replace flag.
	ErrOverwrite = errors.New("overwrite error")
	// ErrMissingData marks a container that has no recorded file, no
	// saved file, and no parent to derive from.
	ErrMissingData = errors.New("missing data")
	// ErrDimensionMismatch marks an attempt to replace loaded data with
	// an array of different size or shape.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrMetadata marks invalid or incomplete metadata and parameter
	// records. These fail at construction, never later.
	ErrMetadata = errors.New("metadata error")
)
