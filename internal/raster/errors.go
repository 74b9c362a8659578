package raster

import "fmt"

// ProcessingError wraps a failure inside a raster operation with the name of
// the operation that failed.
type ProcessingError struct {
	Operation string
	Err       error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("raster %s: %v", e.Operation, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}
