package tensor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestNewMatrix(t *testing.T) {
	m, err := NewMatrix(2, 3, []float32{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)

	r, c := m.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, []float32{4, 5, 6}, m.Row(1))
	assert.Equal(t, float32(6), m.At(1, 2))

	// Row views share storage with the caller's buffer.
	m.Row(0)[1] = 42
	assert.Equal(t, float32(42), m.Data()[1])

	_, err = NewMatrix(2, 3, make([]float32, 5))
	require.Error(t, err)

	_, err = NewMatrix(-1, 3, []float32{})
	require.Error(t, err)
}

func TestMatrixRowCapacity(t *testing.T) {
	m := MustMatrix(2, 2, []float32{1, 2, 3, 4})
	row := m.Row(0)
	row = append(row, 99)
	assert.Equal(t, float32(3), m.At(1, 0), "append on a row view must not clobber the next row")
	assert.Len(t, row, 3)
}

func TestDType(t *testing.T) {
	assert.Equal(t, Float32, DTypeOf[float32]())
	assert.Equal(t, Float16, DTypeOf[float16.Float16]())
	assert.Equal(t, 4, Float32.Size())
	assert.Equal(t, 2, Float16.Size())
	assert.Equal(t, "f16", Float16.String())

	for in, want := range map[string]DType{"fp32": Float32, "float32": Float32, "f16": Float16, "half": Float16} {
		got, err := ParseDType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseDType("bf16")
	assert.Error(t, err)
}

func TestConversions(t *testing.T) {
	assert.Equal(t, float32(1.5), Widen(float32(1.5)))
	assert.Equal(t, float32(1.5), Widen(float16.Fromfloat32(1.5)))
	assert.Equal(t, float16.Fromfloat32(-2), Narrow[float16.Float16](-2))

	// 1.0 and -2.0 in binary16
	h := FromFloat32[float16.Float16]([]float32{1.0, -2.0})
	assert.Equal(t, uint16(0x3c00), h[0].Bits())
	assert.Equal(t, uint16(0xc000), h[1].Bits())

	out := make([]float32, 2)
	WidenSlice(out, h)
	assert.Equal(t, []float32{1, -2}, out)
}

func TestConversionsPropagateNonFinite(t *testing.T) {
	c := CodecFor[float16.Float16]()
	assert.True(t, math.IsNaN(float64(c.Widen(c.Narrow(float32(math.NaN()))))))
	assert.True(t, math.IsInf(float64(c.Widen(c.Narrow(float32(math.Inf(1))))), 1))
	// Values beyond the binary16 range overflow to infinity rather than clamping.
	assert.True(t, math.IsInf(float64(c.Widen(c.Narrow(1e6))), 1))
}

func TestCodecFor(t *testing.T) {
	f := CodecFor[float32]()
	assert.Equal(t, float32(3.25), f.Widen(f.Narrow(3.25)))

	h := CodecFor[float16.Float16]()
	assert.Equal(t, float32(0.5), h.Widen(h.Narrow(0.5)))
	// 1/3 is not representable in binary16; rounding must stay within half an ulp.
	assert.InDelta(t, 1.0/3.0, h.Widen(h.Narrow(1.0/3.0)), 1.0/2048)
}

func TestMatrixFloat32RoundTrip(t *testing.T) {
	m := MustMatrix(1, 4, make([]float16.Float16, 4))
	m.CopyFromFloat32([]float32{0.25, -1, 2, 8})
	assert.Equal(t, []float32{0.25, -1, 2, 8}, m.ToFloat32())
	assert.Equal(t, Float16, m.DType())

	assert.Panics(t, func() { m.CopyFromFloat32([]float32{1}) })
}
