package vm

import (
	"fmt"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/client"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/mmu"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/proto"
)

// DefaultAttr is the attribute set given to demand-allocated and valloc'ed
// pages: user accessible, writable, not executable.
const DefaultAttr = mmu.UserData

// Memory is the subset of kernel calls that touch the caller's address
// space. *kernel.Thread implements it.
type Memory interface {
	Query(va uint64) (mmu.Entry, bool)
	Load(va uint64, dst []byte) error
	Store(va uint64, src []byte) error
	MemAlloc(asid uint16, va uint64, attr mmu.Attribute) error
	MemMap(srcASID uint16, srcVA uint64, dstASID uint16, dstVA uint64, attr mmu.Attribute) error
	MemUnmap(asid uint16, va uint64) error
}

// PageAllocator backs a single page of the calling process.
type PageAllocator interface {
	AllocPage(va uint64) error
}

// ServerPager requests pages from the memory manager.
type ServerPager struct {
	caller *client.Caller
}

// NewServerPager creates a pager that sends ALLOC requests through c.
func NewServerPager(c *client.Caller) *ServerPager {
	return &ServerPager{caller: c}
}

func (p *ServerPager) AllocPage(va uint64) error {
	if _, err := p.caller.Request(itc.ServiceMM, itc.NewMessage(proto.MMAlloc, va, 0, 0)); err != nil {
		return fmt.Errorf("alloc page %#x: %w", va, err)
	}
	return nil
}

// KernelPager allocates pages with a direct kernel call. Only the memory
// manager and other trusted servers use it, since they cannot ask
// themselves.
type KernelPager struct {
	mem  Memory
	attr mmu.Attribute
}

// NewKernelPager creates a pager mapping pages with DefaultAttr.
func NewKernelPager(mem Memory) *KernelPager {
	return &KernelPager{mem: mem, attr: DefaultAttr}
}

func (p *KernelPager) AllocPage(va uint64) error {
	if err := p.mem.MemAlloc(0, va, p.attr); err != nil {
		return fmt.Errorf("alloc page %#x: %w", va, err)
	}
	return nil
}
