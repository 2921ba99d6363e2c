package vm

import (
	"errors"
	"fmt"
	"math/bits"
	"sync"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/mmu"
)

var (
	// ErrHeapBootstrap means a heap page could not be backed. The process
	// must not continue with a partly backed heap.
	ErrHeapBootstrap      = errors.New("heap bootstrap failed")
	ErrHeapInitialized    = errors.New("heap already initialized")
	ErrHeapNotInitialized = errors.New("heap not initialized")
	ErrHeapExhausted      = errors.New("heap exhausted")
	ErrBadFree            = errors.New("free of unallocated block")
)

// minBlockShift is log2 of the smallest block the heap hands out.
const minBlockShift = 4

// HeapStats reports heap usage in bytes.
type HeapStats struct {
	Base        uint64 `json:"base"`
	Size        uint64 `json:"size"`
	InUse       uint64 `json:"in_use"`
	Allocations int    `json:"allocations"`
}

// Heap is a buddy allocator over the fixed heap region. It tracks addresses
// only; the memory itself is reached through Load and Store.
type Heap struct {
	base  uint64
	pages int

	mu      sync.Mutex
	started bool
	ready   bool
	top     int
	free    []map[uint64]struct{}
	used    map[uint64]int
	inUse   uint64
}

// NewHeap describes a heap of pages pages at base. Nothing is backed until
// Init.
func NewHeap(base uint64, pages int) *Heap {
	return &Heap{base: base, pages: pages}
}

// Init backs every heap page through pager, one request per page, and then
// hands the region to the allocator. It may be called once.
func (h *Heap) Init(pager PageAllocator) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return ErrHeapInitialized
	}
	h.started = true
	if h.pages < 1 {
		return fmt.Errorf("%w: %d pages", ErrHeapBootstrap, h.pages)
	}

	for i := 0; i < h.pages; i++ {
		if err := pager.AllocPage(h.base + uint64(i)*mmu.PageSize); err != nil {
			return fmt.Errorf("%w: page %d of %d: %w", ErrHeapBootstrap, i+1, h.pages, err)
		}
	}
	h.carve(uint64(h.pages) * mmu.PageSize)
	h.ready = true
	return nil
}

// carve splits the region into the largest aligned power-of-two blocks.
func (h *Heap) carve(size uint64) {
	h.top = bits.Len64(size) - 1 - minBlockShift
	h.free = make([]map[uint64]struct{}, h.top+1)
	for i := range h.free {
		h.free[i] = make(map[uint64]struct{})
	}
	h.used = make(map[uint64]int)

	for off := uint64(0); off < size; {
		order := h.top
		for blockSize(order) > size-off || off%blockSize(order) != 0 {
			order--
		}
		h.free[order][off] = struct{}{}
		off += blockSize(order)
	}
}

func blockSize(order int) uint64 {
	return 1 << (minBlockShift + order)
}

// Alloc returns the address of a free block of at least size bytes.
func (h *Heap) Alloc(size uint64) (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.ready {
		return 0, ErrHeapNotInitialized
	}
	if size == 0 {
		return 0, fmt.Errorf("alloc: zero size")
	}

	if size > blockSize(h.top) {
		return 0, fmt.Errorf("%w: %d bytes", ErrHeapExhausted, size)
	}
	order := 0
	for blockSize(order) < size {
		order++
	}
	avail := order
	for avail <= h.top && len(h.free[avail]) == 0 {
		avail++
	}
	if avail > h.top {
		return 0, fmt.Errorf("%w: %d bytes", ErrHeapExhausted, size)
	}

	off := lowest(h.free[avail])
	delete(h.free[avail], off)
	for avail > order {
		avail--
		h.free[avail][off+blockSize(avail)] = struct{}{}
	}

	h.used[off] = order
	h.inUse += blockSize(order)
	return h.base + off, nil
}

// Free returns a block to the heap, merging it with its buddy while both are
// free.
func (h *Heap) Free(addr uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.ready {
		return ErrHeapNotInitialized
	}
	off := addr - h.base
	order, ok := h.used[off]
	if addr < h.base || !ok {
		return fmt.Errorf("%w: %#x", ErrBadFree, addr)
	}
	delete(h.used, off)
	h.inUse -= blockSize(order)

	for order < h.top {
		buddy := off ^ blockSize(order)
		if _, free := h.free[order][buddy]; !free {
			break
		}
		delete(h.free[order], buddy)
		off = min(off, buddy)
		order++
	}
	h.free[order][off] = struct{}{}
	return nil
}

// Contains reports whether addr lies inside the heap region.
func (h *Heap) Contains(addr uint64) bool {
	return addr >= h.base && addr < h.base+uint64(h.pages)*mmu.PageSize
}

// Stats reports usage.
func (h *Heap) Stats() HeapStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HeapStats{
		Base:        h.base,
		Size:        uint64(h.pages) * mmu.PageSize,
		InUse:       h.inUse,
		Allocations: len(h.used),
	}
}

func lowest(set map[uint64]struct{}) uint64 {
	first := true
	var low uint64
	for off := range set {
		if first || off < low {
			low, first = off, false
		}
	}
	return low
}
