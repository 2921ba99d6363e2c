package vm

import (
	"fmt"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/mmu"
)

// Allocator hands out backed page ranges from a Space.
type Allocator struct {
	space *Space
	pager PageAllocator
}

// NewAllocator creates an allocator drawing addresses from space and backing
// them through pager.
func NewAllocator(space *Space, pager PageAllocator) *Allocator {
	return &Allocator{space: space, pager: pager}
}

// Space returns the cursor the allocator draws from.
func (a *Allocator) Space() *Space {
	return a.space
}

// Valloc reserves pages and backs every one of them before returning the
// base address. A failed page leaves the range reserved and partly backed.
func (a *Allocator) Valloc(pages int) (uint64, error) {
	base, err := a.space.Reserve(pages)
	if err != nil {
		return 0, err
	}
	for i := 0; i < pages; i++ {
		if err := a.pager.AllocPage(base + uint64(i)*mmu.PageSize); err != nil {
			return 0, fmt.Errorf("valloc %d pages: %w", pages, err)
		}
	}
	return base, nil
}
