package tensor

import (
	"fmt"

	"github.com/x448/float16"
)

// Element is the set of storage types a tensor may hold.
// Accumulation is always done in float32 regardless of the storage type.
type Element interface {
	float32 | float16.Float16
}

// Half is the 16-bit IEEE 754 storage type.
type Half = float16.Float16

// DType tags the element type of a tensor at runtime (logging, fixtures, metrics).
type DType uint8

const (
	Float32 DType = iota
	Float16
)

// Size returns the byte size of one element.
func (d DType) Size() int {
	if d == Float16 {
		return 2
	}
	return 4
}

func (d DType) String() string {
	switch d {
	case Float32:
		return "f32"
	case Float16:
		return "f16"
	default:
		return fmt.Sprintf("dtype(%d)", uint8(d))
	}
}

// ParseDType accepts the short names used on the command line and in fixtures.
func ParseDType(s string) (DType, error) {
	switch s {
	case "f32", "fp32", "float32":
		return Float32, nil
	case "f16", "fp16", "float16", "half":
		return Float16, nil
	}
	return 0, fmt.Errorf("unknown dtype %q", s)
}

// DTypeOf reports the tag for the instantiated element type.
func DTypeOf[T Element]() DType {
	var zero T
	if _, ok := any(zero).(float16.Float16); ok {
		return Float16
	}
	return Float32
}

// Matrix is a non-owning row-major view of [rows, cols] elements.
// The caller owns Data; nothing in this module allocates or frees it.
type Matrix[T Element] struct {
	rows int
	cols int
	data []T
}

// NewMatrix wraps data as a rows x cols matrix. data must hold exactly rows*cols elements.
func NewMatrix[T Element](rows, cols int, data []T) (*Matrix[T], error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("tensor: negative dimensions %dx%d", rows, cols)
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("tensor: data length %d does not match dimensions %dx%d", len(data), rows, cols)
	}
	return &Matrix[T]{rows: rows, cols: cols, data: data}, nil
}

// MustMatrix is NewMatrix that panics on error. Intended for tests and fixtures.
func MustMatrix[T Element](rows, cols int, data []T) *Matrix[T] {
	m, err := NewMatrix(rows, cols, data)
	if err != nil {
		panic(err)
	}
	return m
}

// Dims returns (num_tokens, hidden_units).
func (m *Matrix[T]) Dims() (int, int) {
	return m.rows, m.cols
}

func (m *Matrix[T]) Rows() int { return m.rows }
func (m *Matrix[T]) Cols() int { return m.cols }

// Len returns the total element count.
func (m *Matrix[T]) Len() int { return len(m.data) }

// DType returns the element type tag.
func (m *Matrix[T]) DType() DType { return DTypeOf[T]() }

// Data returns the underlying slice (shared, not copied).
func (m *Matrix[T]) Data() []T { return m.data }

// Row returns the contiguous slice backing row i.
func (m *Matrix[T]) Row(i int) []T {
	start := i * m.cols
	return m.data[start : start+m.cols : start+m.cols]
}

func (m *Matrix[T]) At(i, j int) T {
	return m.data[i*m.cols+j]
}

func (m *Matrix[T]) Set(i, j int, v T) {
	m.data[i*m.cols+j] = v
}

// ToFloat32 copies the matrix to a new float32 slice.
func (m *Matrix[T]) ToFloat32() []float32 {
	out := make([]float32, len(m.data))
	WidenSlice(out, m.data)
	return out
}

// CopyFromFloat32 narrows src into the matrix storage.
func (m *Matrix[T]) CopyFromFloat32(src []float32) {
	if len(src) != len(m.data) {
		panic(fmt.Sprintf("tensor: CopyFromFloat32 size mismatch: have %d, got %d", len(m.data), len(src)))
	}
	NarrowSlice(m.data, src)
}

// Vector is a read-only view of a contiguous 1-D tensor.
type Vector[T Element] struct {
	data []T
}

// NewVector wraps data without copying.
func NewVector[T Element](data []T) *Vector[T] {
	return &Vector[T]{data: data}
}

func (v *Vector[T]) Len() int   { return len(v.data) }
func (v *Vector[T]) Data() []T  { return v.data }
func (v *Vector[T]) At(i int) T { return v.data[i] }
