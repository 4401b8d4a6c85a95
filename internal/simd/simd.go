package simd

// SumSquares returns the float32 sum of v[i]*v[i].
func SumSquares(v []float32) float32 {
	// Unrolled loop for better pipelining
	var s0, s1, s2, s3 float32
	i := 0
	for ; i <= len(v)-4; i += 4 {
		s0 += v[i] * v[i]
		s1 += v[i+1] * v[i+1]
		s2 += v[i+2] * v[i+2]
		s3 += v[i+3] * v[i+3]
	}
	// Handle remainder
	for ; i < len(v); i++ {
		s0 += v[i] * v[i]
	}
	return (s0 + s1) + (s2 + s3)
}

// VecAdd performs dst[i] = a[i] + b[i] for float32 vectors.
func VecAdd(dst, a, b []float32) {
	i := 0
	for ; i <= len(dst)-4; i += 4 {
		dst[i] = a[i] + b[i]
		dst[i+1] = a[i+1] + b[i+1]
		dst[i+2] = a[i+2] + b[i+2]
		dst[i+3] = a[i+3] + b[i+3]
	}
	for ; i < len(dst); i++ {
		dst[i] = a[i] + b[i]
	}
}

// ScaleMul performs dst[i] = src[i] * scale * weight[i].
// The product is evaluated left to right so every caller rounds identically.
func ScaleMul(dst, src, weight []float32, scale float32) {
	i := 0
	for ; i <= len(dst)-4; i += 4 {
		dst[i] = src[i] * scale * weight[i]
		dst[i+1] = src[i+1] * scale * weight[i+1]
		dst[i+2] = src[i+2] * scale * weight[i+2]
		dst[i+3] = src[i+3] * scale * weight[i+3]
	}
	for ; i < len(dst); i++ {
		dst[i] = src[i] * scale * weight[i]
	}
}
