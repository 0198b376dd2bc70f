package tensor

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds surfaced by the view and fusion layers.
var (
	ErrShapeMismatch      = errors.New("shape mismatch")
	ErrInvalidPermutation = errors.New("invalid permutation")
	ErrConfiguration      = errors.New("kernel configuration error")
	ErrDevice             = errors.New("device failure")
)

// ShapeError reports an incompatible broadcast or reshape target.
type ShapeError struct {
	Op     string // Operation that failed (e.g., "expand", "reshape")
	Dim    int    // Offending dimension in the target shape
	Source Shape
	Target Shape
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: %s: cannot map %v onto %v at dimension %d",
		e.Op, ErrShapeMismatch, e.Source, e.Target, e.Dim)
}

// Unwrap returns ErrShapeMismatch so callers can match with errors.Is.
func (e *ShapeError) Unwrap() error {
	return ErrShapeMismatch
}
