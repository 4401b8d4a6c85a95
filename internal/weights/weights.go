package weights

import (
	"github.com/23skdu/longbow-rmsnorm/internal/tensor"
)

// NormWeight holds the per-layer normalization parameters.
// Gamma scales each feature after normalization. Beta is carried for weight
// files that include it but is never read by RMSNorm.
type NormWeight[T tensor.Element] struct {
	Gamma *tensor.Vector[T]
	Beta  *tensor.Vector[T]
}

// NewNormWeight wraps gamma without copying.
func NewNormWeight[T tensor.Element](gamma []T) *NormWeight[T] {
	return &NormWeight[T]{Gamma: tensor.NewVector(gamma)}
}

// Ones returns a unit gamma of length n.
func Ones[T tensor.Element](n int) *NormWeight[T] {
	gamma := make([]T, n)
	one := tensor.Narrow[T](1)
	for i := range gamma {
		gamma[i] = one
	}
	return NewNormWeight(gamma)
}

// Len returns the hidden size the weight was built for.
func (w *NormWeight[T]) Len() int {
	if w == nil || w.Gamma == nil {
		return 0
	}
	return w.Gamma.Len()
}
