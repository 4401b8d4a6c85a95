package rmsnorm

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/23skdu/longbow-rmsnorm/internal/tensor"
)

// Reference computes the fused residual RMSNorm in float64 on row-major data.
// It returns the normalized rows and the residual stream as the kernel would
// leave it (unchanged when isLast). Inputs are not modified.
func Reference(hidden, residual, gamma []float32, rows, cols int, eps float32, isLast bool) (out, resOut []float32) {
	out = make([]float32, rows*cols)
	resOut = make([]float32, rows*cols)
	copy(resOut, residual)

	g := make([]float64, cols)
	for i, v := range gamma[:cols] {
		g[i] = float64(v)
	}
	h := make([]float64, cols)
	r := make([]float64, cols)
	combined := make([]float64, cols)

	for row := 0; row < rows; row++ {
		base := row * cols
		for i := 0; i < cols; i++ {
			h[i] = float64(hidden[base+i])
			r[i] = float64(residual[base+i])
		}
		floats.AddTo(combined, h, r)
		if !isLast {
			for i, v := range combined {
				resOut[base+i] = float32(v)
			}
		}

		meanSq := floats.Dot(combined, combined) / float64(cols)
		scale := 1 / math.Sqrt(meanSq+float64(eps))
		floats.Scale(scale, combined)
		floats.Mul(combined, g)
		for i, v := range combined {
			out[base+i] = float32(v)
		}
	}
	return out, resOut
}

// Tolerance bounds the drift between a kernel output and Reference.
type Tolerance struct {
	Abs float64
	Rel float64
}

// Within reports whether got is within the tolerance of want. Two NaNs match.
func (t Tolerance) Within(got, want float64) bool {
	if math.IsNaN(got) || math.IsNaN(want) {
		return math.IsNaN(got) && math.IsNaN(want)
	}
	if math.IsInf(want, 0) {
		return got == want
	}
	return math.Abs(got-want) <= t.Abs+t.Rel*math.Abs(want)
}

// ToleranceFor returns the parity target for outputs stored as dtype.
// Float16 storage rounds both the combined sum and the output, each worth up
// to half an ulp (2^-11 relative).
func ToleranceFor(dtype tensor.DType) Tolerance {
	if dtype == tensor.Float16 {
		return Tolerance{Abs: 2e-3, Rel: 1e-2}
	}
	return Tolerance{Abs: 1e-5, Rel: 1e-4}
}
