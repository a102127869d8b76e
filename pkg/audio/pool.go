package audio

import "sync"

// maxPooledBuffer caps what the pool keeps; one aggregated flush of a long
// silence gap can be large and should not stay pinned.
const maxPooledBuffer = 1 << 20

// BufferPool recycles byte slices used to encode outgoing frames.
type BufferPool struct {
	pool sync.Pool
}

// NewBufferPool creates a pool whose fresh buffers have capacity initialSize.
func NewBufferPool(initialSize int) *BufferPool {
	return &BufferPool{
		pool: sync.Pool{
			New: func() any {
				buf := make([]byte, 0, initialSize)
				return &buf
			},
		},
	}
}

// Get returns a buffer of length size. Its contents are undefined.
func (p *BufferPool) Get(size int) []byte {
	bp := p.pool.Get().(*[]byte)
	if cap(*bp) < size {
		p.pool.Put(bp)
		return make([]byte, size)
	}
	return (*bp)[:size]
}

// Put returns buf to the pool. Buffers above maxPooledBuffer are dropped.
func (p *BufferPool) Put(buf []byte) {
	if cap(buf) > maxPooledBuffer {
		return
	}
	buf = buf[:0]
	p.pool.Put(&buf)
}

var frames = NewBufferPool(4096)

// GetBuffer gets a buffer of length size from the shared frame pool.
func GetBuffer(size int) []byte {
	return frames.Get(size)
}

// PutBuffer returns a buffer to the shared frame pool.
func PutBuffer(buf []byte) {
	frames.Put(buf)
}
