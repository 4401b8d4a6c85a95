package rmsnorm

import (
	"errors"
	"fmt"
)

var (
	// ErrShapeMismatch is wrapped by every ShapeError.
	ErrShapeMismatch = errors.New("rmsnorm: shape mismatch")
	// ErrNilTensor is returned when a required tensor or weight is nil.
	ErrNilTensor = errors.New("rmsnorm: nil tensor")
)

// ShapeError names the dimension that disagreed between the operands.
// It is returned before anything is enqueued.
type ShapeError struct {
	Dim  string
	Want int
	Got  int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%v: %s want %d, got %d", ErrShapeMismatch, e.Dim, e.Want, e.Got)
}

func (e *ShapeError) Unwrap() error {
	return ErrShapeMismatch
}
