package device

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fillPartials(b *Block, vals []float32) {
	p := b.Partials()
	copy(p, vals)
}

func TestBlock_ReduceSum(t *testing.T) {
	pool := NewScratchPool()

	tests := []struct {
		name string
		dim  int
		warp int
	}{
		{"single lane", 1, 32},
		{"one warp", 32, 32},
		{"partial warp", 20, 32},
		{"two levels", 1024, 32},
		{"three levels", 512, 4},
		{"ragged", 100, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBlock(tt.dim, tt.warp, pool)
			vals := make([]float32, tt.dim)
			var want float32
			for i := range vals {
				vals[i] = float32(i%7 + 1)
				want += vals[i]
			}
			fillPartials(b, vals)
			assert.Equal(t, want, b.ReduceSum())
		})
	}
}

func TestBlock_ReduceSumDeterministic(t *testing.T) {
	b := newBlock(256, 32, NewScratchPool())
	rng := rand.New(rand.NewSource(7))
	vals := make([]float32, 256)
	for i := range vals {
		vals[i] = rng.Float32() * 1e3
	}

	fillPartials(b, vals)
	first := b.ReduceSum()
	for i := 0; i < 10; i++ {
		fillPartials(b, vals)
		got := b.ReduceSum()
		require.Equal(t, math.Float32bits(first), math.Float32bits(got), "reduction must be bit-reproducible")
	}
}

func TestBlock_PartialsAreZeroed(t *testing.T) {
	b := newBlock(8, 4, NewScratchPool())
	p := b.Partials()
	for i := range p {
		p[i] = 5
	}
	b.ReduceSum()
	for _, v := range b.Partials() {
		assert.Zero(t, v)
	}
}

func TestBlock_Scratch(t *testing.T) {
	pool := NewScratchPool()
	b := newBlock(4, 4, pool)
	s := b.Scratch(16)
	assert.Len(t, s, 16)
	s[15] = 3

	// Same capacity is reused within the block.
	assert.Equal(t, float32(3), b.Scratch(16)[15])

	// Growing swaps the buffer.
	assert.Len(t, b.Scratch(64), 64)
	b.release()
	assert.Nil(t, b.scratch)
}

func TestBlock_NonFinitePropagates(t *testing.T) {
	b := newBlock(64, 32, NewScratchPool())
	vals := make([]float32, 64)
	vals[40] = float32(math.Inf(1))
	fillPartials(b, vals)
	assert.True(t, math.IsInf(float64(b.ReduceSum()), 1))
}
