// Package physmem simulates physical memory as a pool of reference-counted
// 4 KiB frames starting at a fixed physical base address.
package physmem

import (
	"errors"
	"fmt"
	"sync"
)

// FrameSize is the size of one physical frame.
const FrameSize = 4096

var (
	ErrOutOfMemory = errors.New("out of physical frames")
	ErrBadFrame    = errors.New("address is not an allocated frame")
)

// Stats is a point-in-time view of the pool.
type Stats struct {
	Total int `json:"total"`
	InUse int `json:"in_use"`
	Free  int `json:"free"`
}

// Pool is a fixed-size frame allocator. It is safe for concurrent use.
type Pool struct {
	base  uint64
	total int

	mu     sync.Mutex
	frames map[uint64]*frame
	free   []uint64
	next   int
}

type frame struct {
	data []byte
	refs int
}

// New creates a pool of count frames whose first frame sits at base.
func New(base uint64, count int) (*Pool, error) {
	if base%FrameSize != 0 {
		return nil, fmt.Errorf("physical base %#x not frame aligned", base)
	}
	if count <= 0 {
		return nil, fmt.Errorf("frame count must be positive, got %d", count)
	}
	return &Pool{
		base:   base,
		total:  count,
		frames: make(map[uint64]*frame),
	}, nil
}

// AllocFrame returns a zeroed frame with a reference count of one.
func (p *Pool) AllocFrame() (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var pa uint64
	switch {
	case len(p.free) > 0:
		pa = p.free[len(p.free)-1]
		p.free = p.free[:len(p.free)-1]
	case p.next < p.total:
		pa = p.base + uint64(p.next)*FrameSize
		p.next++
	default:
		return 0, ErrOutOfMemory
	}
	p.frames[pa] = &frame{data: make([]byte, FrameSize), refs: 1}
	return pa, nil
}

// Ref adds a reference to an allocated frame.
func (p *Pool) Ref(pa uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, ok := p.frames[pa]
	if !ok {
		return fmt.Errorf("ref %#x: %w", pa, ErrBadFrame)
	}
	f.refs++
	return nil
}

// FreeFrame drops one reference and returns the frame to the pool when the
// last reference goes away.
func (p *Pool) FreeFrame(pa uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, ok := p.frames[pa]
	if !ok {
		return
	}
	f.refs--
	if f.refs > 0 {
		return
	}
	delete(p.frames, pa)
	p.free = append(p.free, pa)
}

// Refs returns the reference count of a frame, zero if it is free.
func (p *Pool) Refs(pa uint64) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if f, ok := p.frames[pa]; ok {
		return f.refs
	}
	return 0
}

// Frame returns the backing bytes of an allocated frame, or nil.
func (p *Pool) Frame(pa uint64) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	if f, ok := p.frames[pa]; ok {
		return f.data
	}
	return nil
}

// Stats reports pool usage.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Stats{
		Total: p.total,
		InUse: len(p.frames),
		Free:  p.total - len(p.frames),
	}
}
