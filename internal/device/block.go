package device

// Block is the execution group for one grid index: Dim lanes that share the
// partial-sum slots and a scratch row. A Block is reused by its worker for
// successive grid indices and must not be retained by kernels.
type Block struct {
	Idx      int
	Dim      int
	WarpSize int

	partials []float32
	lanes    []float32
	scratch  *[]float32
	pool     *ScratchPool
}

func newBlock(dim, warpSize int, pool *ScratchPool) *Block {
	return &Block{
		Dim:      dim,
		WarpSize: warpSize,
		partials: make([]float32, dim),
		lanes:    make([]float32, warpSize),
		pool:     pool,
	}
}

// Partials returns one zeroed accumulator slot per lane.
func (b *Block) Partials() []float32 {
	p := b.partials[:b.Dim]
	for i := range p {
		p[i] = 0
	}
	return p
}

// Scratch returns a block-local buffer of n float32 values, the analogue of
// shared memory. Contents are unspecified on entry.
func (b *Block) Scratch(n int) []float32 {
	if b.scratch == nil || cap(*b.scratch) < n {
		if b.scratch != nil {
			b.pool.Put(b.scratch)
		}
		b.scratch = b.pool.Get(n)
	}
	return (*b.scratch)[:n]
}

// ReduceSum is the block barrier: it combines every lane's slot from
// Partials into one total that all lanes may read afterwards.
//
// Lanes are summed warp by warp with a halving tree, then the warp results are
// reduced the same way until one value remains. The tree shape depends only on
// Dim and WarpSize, so a given row always rounds the same way.
func (b *Block) ReduceSum() float32 {
	vals := b.partials[:b.Dim]
	for len(vals) > 1 {
		n := (len(vals) + b.WarpSize - 1) / b.WarpSize
		for w := 0; w < n; w++ {
			lo := w * b.WarpSize
			hi := min(lo+b.WarpSize, len(vals))
			vals[w] = warpReduceSum(b.lanes, vals[lo:hi])
		}
		vals = vals[:n]
	}
	return vals[0]
}

// warpReduceSum mirrors a shuffle-down reduction: lanes beyond len(vals)
// contribute zero, and lane i adds lane i+offset for halving offsets.
func warpReduceSum(lanes, vals []float32) float32 {
	n := copy(lanes, vals)
	for i := n; i < len(lanes); i++ {
		lanes[i] = 0
	}
	for offset := len(lanes) / 2; offset > 0; offset >>= 1 {
		for i := 0; i < offset; i++ {
			lanes[i] += lanes[i+offset]
		}
	}
	return lanes[0]
}

func (b *Block) release() {
	if b.scratch != nil {
		b.pool.Put(b.scratch)
		b.scratch = nil
	}
}
