package tensor

import "github.com/x448/float16"

// Widen converts a storage element to float32.
func Widen[T Element](v T) float32 {
	switch x := any(v).(type) {
	case float32:
		return x
	case float16.Float16:
		return x.Float32()
	}
	return 0
}

// Narrow converts a float32 to the storage type, rounding to nearest even for float16.
func Narrow[T Element](f float32) T {
	var zero T
	switch any(zero).(type) {
	case float16.Float16:
		return any(float16.Fromfloat32(f)).(T)
	}
	return any(f).(T)
}

// WidenSlice converts src into dst. Lengths must match.
func WidenSlice[T Element](dst []float32, src []T) {
	switch s := any(src).(type) {
	case []float32:
		copy(dst, s)
	case []float16.Float16:
		for i, h := range s {
			dst[i] = h.Float32()
		}
	}
}

// NarrowSlice converts src into dst. Lengths must match.
func NarrowSlice[T Element](dst []T, src []float32) {
	switch d := any(dst).(type) {
	case []float32:
		copy(d, src)
	case []float16.Float16:
		for i, f := range src {
			d[i] = float16.Fromfloat32(f)
		}
	}
}

// FromFloat32 allocates a new slice of T holding src narrowed to T.
func FromFloat32[T Element](src []float32) []T {
	out := make([]T, len(src))
	NarrowSlice(out, src)
	return out
}

// Codec holds the storage<->compute conversions for one element type, resolved
// once per launch so kernels avoid a type switch per element.
type Codec[T Element] struct {
	Widen  func(T) float32
	Narrow func(float32) T
}

func identity(f float32) float32 { return f }

// CodecFor returns the conversion pair for T.
func CodecFor[T Element]() Codec[T] {
	var zero T
	if _, ok := any(zero).(float16.Float16); ok {
		c := Codec[float16.Float16]{Widen: float16.Float16.Float32, Narrow: float16.Fromfloat32}
		return any(c).(Codec[T])
	}
	return any(Codec[float32]{Widen: identity, Narrow: identity}).(Codec[T])
}
