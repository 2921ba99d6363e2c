package kernel

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/logging"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/mmu"
)

var (
	ErrNoFaultHandler  = errors.New("no page fault handler installed")
	ErrExceptionStack  = errors.New("exception stack not mapped")
	ErrDoubleFault     = errors.New("page fault while handling a page fault")
	ErrFaultUnresolved = errors.New("page fault handler returned without resolving the fault")
)

// FaultHandler services page faults for one thread. HandlePageFault runs on
// the faulting thread with a page-aligned address and returns nil once the
// access can be retried.
type FaultHandler interface {
	HandlePageFault(va uint64) error
}

// FaultHandlerFunc adapts a function to FaultHandler.
type FaultHandlerFunc func(va uint64) error

func (f FaultHandlerFunc) HandlePageFault(va uint64) error {
	return f(va)
}

// FaultError terminates a thread whose page fault could not be serviced.
type FaultError struct {
	Tid   itc.Tid
	VA    uint64
	Write bool
	Err   error
}

func (e *FaultError) Error() string {
	access := "read"
	if e.Write {
		access = "write"
	}
	return fmt.Sprintf("thread %d: unhandled %s fault at %#x: %v", e.Tid, access, e.VA, e.Err)
}

func (e *FaultError) Unwrap() error {
	return e.Err
}

// SetExceptionHandler installs h as the caller's page fault handler, running
// on the exception stack that ends at stackTop. A nil handler uninstalls.
func (t *Thread) SetExceptionHandler(h FaultHandler, stackTop uint64) error {
	if err := t.check(); err != nil {
		return err
	}
	if h != nil && (stackTop == 0 || !mmu.Aligned(stackTop)) {
		return fmt.Errorf("%w: exception stack top %#x", itc.ErrInvalidArgument, stackTop)
	}

	t.mu.Lock()
	t.handler = h
	t.stackTop = stackTop
	t.mu.Unlock()
	return nil
}

// Load copies len(dst) bytes of user memory at va into dst, faulting pages in
// as needed.
func (t *Thread) Load(va uint64, dst []byte) error {
	return t.access(va, dst, false)
}

// Store copies src into user memory at va, faulting pages in as needed.
func (t *Thread) Store(va uint64, src []byte) error {
	return t.access(va, src, true)
}

func (t *Thread) access(va uint64, buf []byte, write bool) error {
	if err := t.check(); err != nil {
		return err
	}
	for done := 0; done < len(buf); {
		cur := va + uint64(done)
		n := len(buf) - done
		if room := int(mmu.PageSize - cur&mmu.PageMask); n > room {
			n = room
		}
		chunk := buf[done : done+n]

		err := t.space.copy(cur, chunk, write)
		if errors.Is(err, errPageFault) {
			if err := t.fault(cur, write); err != nil {
				return err
			}
			err = t.space.copy(cur, chunk, write)
			if errors.Is(err, errPageFault) {
				return t.kill(cur, write, ErrFaultUnresolved)
			}
		}
		if err != nil {
			return err
		}
		done += n
	}
	return nil
}

// fault dispatches a page fault to the thread's handler.
func (t *Thread) fault(va uint64, write bool) error {
	page := mmu.RoundDown(va)

	t.mu.Lock()
	h, top, nested := t.handler, t.stackTop, t.inFault
	if h != nil && !nested {
		t.inFault = true
	}
	t.mu.Unlock()

	switch {
	case h == nil:
		return t.kill(page, write, ErrNoFaultHandler)
	case nested:
		return t.kill(page, write, ErrDoubleFault)
	}
	defer func() {
		t.mu.Lock()
		t.inFault = false
		t.mu.Unlock()
	}()

	if _, ok := t.space.Query(top - mmu.PageSize); !ok {
		return t.kill(page, write, ErrExceptionStack)
	}

	t.k.log.Debug("page fault", logging.Tid(t.tid), logging.VA(page), zap.Bool("write", write))
	if err := h.HandlePageFault(page); err != nil {
		return t.kill(page, write, err)
	}
	t.k.metrics.RecordPageFault("handled")
	return nil
}

func (t *Thread) kill(va uint64, write bool, cause error) error {
	err := &FaultError{Tid: t.tid, VA: va, Write: write, Err: cause}
	t.k.metrics.RecordPageFault("fatal")
	t.k.terminate(t, err)
	return err
}
