package vm

import (
	"errors"
	"fmt"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/mmu"
)

// ErrBufferOverflow is returned by a write that does not fit.
var ErrBufferOverflow = errors.New("buffer overflow")

// Buffer is a bounded, page-aligned payload area in the caller's address
// space. Its address travels in a message in place of the payload.
type Buffer struct {
	mem  Memory
	addr uint64
	cap  int
	len  int
}

// NewBuffer vallocs a buffer of the given number of pages.
func (a *Allocator) NewBuffer(mem Memory, pages int) (*Buffer, error) {
	addr, err := a.Valloc(pages)
	if err != nil {
		return nil, fmt.Errorf("ipc buffer: %w", err)
	}
	return &Buffer{mem: mem, addr: addr, cap: pages * mmu.PageSize}, nil
}

// Addr is the buffer's virtual address.
func (b *Buffer) Addr() uint64 { return b.addr }

// Len is the number of bytes written since the last Reset.
func (b *Buffer) Len() int { return b.len }

// Cap is the buffer capacity in bytes.
func (b *Buffer) Cap() int { return b.cap }

// Reset discards the contents.
func (b *Buffer) Reset() { b.len = 0 }

// Write appends p. If p does not fit nothing is written.
func (b *Buffer) Write(p []byte) (int, error) {
	if len(p) > b.cap-b.len {
		return 0, fmt.Errorf("%w: %d bytes into %d free", ErrBufferOverflow, len(p), b.cap-b.len)
	}
	if err := b.mem.Store(b.addr+uint64(b.len), p); err != nil {
		return 0, err
	}
	b.len += len(p)
	return len(p), nil
}

// WriteString is Write for strings.
func (b *Buffer) WriteString(s string) (int, error) {
	return b.Write([]byte(s))
}

// Bytes reads back the first n bytes of the buffer. n may exceed Len when a
// server filled the buffer.
func (b *Buffer) Bytes(n int) ([]byte, error) {
	if n < 0 || n > b.cap {
		return nil, fmt.Errorf("%w: read of %d bytes from %d", ErrBufferOverflow, n, b.cap)
	}
	out := make([]byte, n)
	if err := b.mem.Load(b.addr, out); err != nil {
		return nil, err
	}
	return out, nil
}
