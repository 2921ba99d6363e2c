package vm

import (
	"errors"
	"fmt"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/kernel"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/mmu"
)

var (
	// ErrUnhandledPageFault is a fault on a page that is already mapped,
	// such as a write to a read-only page.
	ErrUnhandledPageFault = errors.New("unhandled page fault")
	// ErrOutOfRange is a fault at or above the user limit.
	ErrOutOfRange = errors.New("page fault beyond user limit")
)

// FaultHandler is the demand-paging handler of one thread.
type FaultHandler struct {
	mem   Memory
	pager PageAllocator
	limit uint64
}

var _ kernel.FaultHandler = (*FaultHandler)(nil)

// NewFaultHandler creates a handler that backs faulting pages below limit.
func NewFaultHandler(mem Memory, pager PageAllocator, limit uint64) *FaultHandler {
	return &FaultHandler{mem: mem, pager: pager, limit: limit}
}

// HandlePageFault backs the page containing va or reports why it will not.
func (h *FaultHandler) HandlePageFault(va uint64) error {
	va = mmu.RoundDown(va)
	if _, mapped := h.mem.Query(va); mapped {
		return fmt.Errorf("%w at %#x", ErrUnhandledPageFault, va)
	}
	if va >= h.limit {
		return fmt.Errorf("%w: %#x >= %#x", ErrOutOfRange, va, h.limit)
	}
	return h.pager.AllocPage(va)
}

// ExceptionStacks installs fault handlers. *kernel.Thread implements it.
type ExceptionStacks interface {
	SetExceptionHandler(h kernel.FaultHandler, stackTop uint64) error
}

// InstallFaultHandler gives the calling thread a one page exception stack and
// registers h on it.
func InstallFaultHandler(sys ExceptionStacks, alloc *Allocator, h kernel.FaultHandler) error {
	stack, err := alloc.Valloc(1)
	if err != nil {
		return fmt.Errorf("exception stack: %w", err)
	}
	return sys.SetExceptionHandler(h, stack+mmu.PageSize)
}
