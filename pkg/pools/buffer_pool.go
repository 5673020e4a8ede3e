package pools

import (
	"bytes"
	"sync"
)

// MaxPooled is the largest buffer capacity returned to the pool. A frame
// of a few hundred nodes renders well under this.
const MaxPooled = 256 << 10

// BufferPool hands out reset bytes.Buffers.
type BufferPool struct {
	pool sync.Pool
}

// NewBufferPool creates a pool whose new buffers start with initialCap.
func NewBufferPool(initialCap int) *BufferPool {
	return &BufferPool{
		pool: sync.Pool{
			New: func() any {
				return bytes.NewBuffer(make([]byte, 0, initialCap))
			},
		},
	}
}

// Get returns an empty buffer.
func (p *BufferPool) Get() *bytes.Buffer {
	buf := p.pool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// Put returns buf to the pool. Oversized buffers are dropped.
func (p *BufferPool) Put(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > MaxPooled {
		return
	}
	p.pool.Put(buf)
}

var defaultPool = NewBufferPool(4 << 10)

// GetBuffer takes a buffer from the default pool.
func GetBuffer() *bytes.Buffer { return defaultPool.Get() }

// PutBuffer returns a buffer to the default pool.
func PutBuffer(buf *bytes.Buffer) { defaultPool.Put(buf) }
