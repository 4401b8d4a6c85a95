package rmsnorm

import (
	"math"

	"github.com/23skdu/longbow-rmsnorm/internal/device"
	"github.com/23skdu/longbow-rmsnorm/internal/simd"
	"github.com/23skdu/longbow-rmsnorm/internal/tensor"
)

// pack is one vector access widened to float32.
type pack [maxVecWidth]float32

// fusedKernel holds the borrowed operands of one launch. Each block owns one
// row of hidden and residual; gamma is shared read-only by every block.
type fusedKernel[T tensor.Element] struct {
	hidden   []T
	residual []T
	gamma    []T
	cols     int
	width    int
	groups   int
	eps      float32
	isLast   bool
	codec    tensor.Codec[T]
}

func (k *fusedKernel[T]) load(dst *pack, src []T, off int) {
	for i := 0; i < k.width; i++ {
		dst[i] = k.codec.Widen(src[off+i])
	}
}

func (k *fusedKernel[T]) store(dst []T, off int, src *pack) {
	for i := 0; i < k.width; i++ {
		dst[off+i] = k.codec.Narrow(src[i])
	}
}

// round brings p to storage precision, so the value normalized is exactly the
// value written back to the residual stream.
func (k *fusedKernel[T]) round(p *pack) {
	for i := 0; i < k.width; i++ {
		p[i] = k.codec.Widen(k.codec.Narrow(p[i]))
	}
}

// run normalizes row b.Idx.
//
// Phase one reads hidden and residual exactly once, writes the combined value
// to residual unless this is the last norm, keeps it in block scratch and sums
// its squares per lane. After the barrier every lane scales its packs out of
// scratch into hidden. Neither operand is read after it is written.
func (k *fusedKernel[T]) run(b *device.Block) {
	w := k.width
	base := b.Idx * k.cols
	hidden := k.hidden[base : base+k.cols]
	residual := k.residual[base : base+k.cols]
	combined := b.Scratch(k.cols)
	partials := b.Partials()

	var h, r, c pack
	for lane := 0; lane < b.Dim; lane++ {
		var sum float32
		for g := lane; g < k.groups; g += b.Dim {
			off := g * w
			k.load(&h, hidden, off)
			k.load(&r, residual, off)
			simd.VecAdd(c[:w], h[:w], r[:w])
			k.round(&c)
			if !k.isLast {
				k.store(residual, off, &c)
			}
			copy(combined[off:off+w], c[:w])
			sum += simd.SumSquares(c[:w])
		}
		partials[lane] = sum
	}

	total := b.ReduceSum()
	scale := float32(1 / math.Sqrt(float64(total/float32(k.cols)+k.eps)))

	var g, out pack
	for lane := 0; lane < b.Dim; lane++ {
		for grp := lane; grp < k.groups; grp += b.Dim {
			off := grp * w
			k.load(&g, k.gamma, off)
			simd.ScaleMul(out[:w], combined[off:off+w], g[:w], scale)
			k.store(hidden, off, &out)
		}
	}
}
