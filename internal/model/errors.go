package model

import (
	"errors"
	"fmt"
)

// LoadError reports a source that could not be opened or parsed at all.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// NewLoadError wraps err as a LoadError for source.
func NewLoadError(source string, err error) *LoadError {
	return &LoadError{Source: source, Err: err}
}

// NoGeometryFoundError reports an archive without any shapefile.
type NoGeometryFoundError struct {
	Archive string
}

func (e *NoGeometryFoundError) Error() string {
	return fmt.Sprintf("no .shp file found in archive %s", e.Archive)
}

// IsLoadError returns true if err (or any error in its chain) is a LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// IsNoGeometryFound returns true if err (or any error in its chain) is a
// NoGeometryFoundError.
func IsNoGeometryFound(err error) bool {
	var ng *NoGeometryFoundError
	return errors.As(err, &ng)
}

// ErrJoinEmpty describes the state where no geometry survives the join for the
// active filter. It is informational: callers render it, they never fail on it.
var ErrJoinEmpty = errors.New("no block matches the current filter")
