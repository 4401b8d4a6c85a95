package device

import "sync"

// ScratchPool recycles block scratch buffers between launches so the hot path
// does not allocate once warmed up.
type ScratchPool struct {
	pool sync.Pool
}

func NewScratchPool() *ScratchPool {
	return &ScratchPool{
		pool: sync.Pool{
			New: func() interface{} {
				buf := make([]float32, 0)
				return &buf
			},
		},
	}
}

// Get returns a buffer with capacity for at least n values.
func (p *ScratchPool) Get(n int) *[]float32 {
	v := p.pool.Get()
	buf, ok := v.(*[]float32)
	if !ok || buf == nil {
		b := make([]float32, 0, n)
		buf = &b
	}
	if cap(*buf) < n {
		scratchMisses.Inc()
		*buf = make([]float32, n)
	} else {
		scratchHits.Inc()
	}
	*buf = (*buf)[:n]
	return buf
}

// Put returns a buffer to the pool.
func (p *ScratchPool) Put(buf *[]float32) {
	if buf == nil {
		return
	}
	*buf = (*buf)[:0]
	p.pool.Put(buf)
}
