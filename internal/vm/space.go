package vm

import (
	"errors"
	"fmt"
	"sync"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/config"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/mmu"
)

var ErrAddressSpaceExhausted = errors.New("valloc region exhausted")

// Layout is the fixed partitioning of a user address space.
type Layout struct {
	UserLimit   uint64
	VallocBase  uint64
	VallocLimit uint64
	HeapBase    uint64
	HeapPages   int
}

// LayoutFrom copies the memory layout out of the configuration.
func LayoutFrom(cfg config.MemoryConfig) Layout {
	return Layout{
		UserLimit:   cfg.UserLimit,
		VallocBase:  cfg.VallocBase,
		VallocLimit: cfg.VallocLimit,
		HeapBase:    cfg.HeapBase,
		HeapPages:   cfg.HeapPages,
	}
}

// DefaultLayout is the layout of config.Default.
func DefaultLayout() Layout {
	return LayoutFrom(config.Default().Memory)
}

// Space is a monotonic cursor over the valloc region. Ranges are never
// reused.
type Space struct {
	base  uint64
	limit uint64

	mu     sync.Mutex
	cursor uint64
}

// NewSpace creates a cursor over [base, limit).
func NewSpace(base, limit uint64) *Space {
	return &Space{base: base, limit: limit}
}

// Reserve advances the cursor by pages and returns the previous position.
// Nothing is mapped.
func (s *Space) Reserve(pages int) (uint64, error) {
	if pages < 1 {
		return 0, fmt.Errorf("reserve %d pages: page count must be positive", pages)
	}
	size := uint64(pages) * mmu.PageSize

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cursor == 0 {
		s.cursor = s.base
	}
	if s.cursor >= s.limit || size > s.limit-s.cursor {
		return 0, fmt.Errorf("%w: %d pages at %#x", ErrAddressSpaceExhausted, pages, s.cursor)
	}
	base := s.cursor
	s.cursor += size
	return base, nil
}

// Cursor returns the next address Reserve would hand out.
func (s *Space) Cursor() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor == 0 {
		return s.base
	}
	return s.cursor
}
