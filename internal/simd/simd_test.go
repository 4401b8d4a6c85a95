package simd

import (
	"testing"
)

func TestSumSquares(t *testing.T) {
	tests := []struct {
		name string
		in   []float32
		want float32
	}{
		{"empty", nil, 0},
		{"single", []float32{3}, 9},
		{"pack2", []float32{1, -2}, 5},
		{"pack4", []float32{1, 2, 3, 4}, 30},
		{"remainder", []float32{1, 2, 3, 4, 5}, 55},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SumSquares(tt.in); got != tt.want {
				t.Errorf("SumSquares(%v) = %f, want %f", tt.in, got, tt.want)
			}
		})
	}
}

func TestVecAdd(t *testing.T) {
	a := []float32{1, 2, 3, 4, 5}
	b := []float32{10, 20, 30, 40, 50}
	expected := []float32{11, 22, 33, 44, 55}
	dst := make([]float32, 5)

	VecAdd(dst, a, b)

	for i, v := range dst {
		if v != expected[i] {
			t.Errorf("VecAdd(%d) = %f, want %f", i, v, expected[i])
		}
	}
}

func TestVecAddInPlace(t *testing.T) {
	a := []float32{1, 2, 3}
	VecAdd(a, a, []float32{1, 1, 1})
	if a[0] != 2 || a[1] != 3 || a[2] != 4 {
		t.Errorf("VecAdd in place = %v", a)
	}
}

func TestScaleMul(t *testing.T) {
	src := []float32{1, 2, 3, 4, 5}
	weight := []float32{2, 2, 2, 2, 1}
	expected := []float32{1, 2, 3, 4, 2.5}
	dst := make([]float32, 5)

	ScaleMul(dst, src, weight, 0.5)

	for i, v := range dst {
		if v != expected[i] {
			t.Errorf("ScaleMul(%d) = %f, want %f", i, v, expected[i])
		}
	}
}

// Benchmarks

func BenchmarkSumSquares(b *testing.B) {
	size := 4096
	v := make([]float32, size)
	for i := range v {
		v[i] = float32(i) / float32(size)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		SumSquares(v)
	}
}

func BenchmarkScaleMul(b *testing.B) {
	size := 4096
	src := make([]float32, size)
	w := make([]float32, size)
	dst := make([]float32, size)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ScaleMul(dst, src, w, 0.5)
	}
}
