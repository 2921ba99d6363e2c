package vm

import (
	"fmt"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/mmu"
)

// Foreign copies data to and from another address space by mapping one page
// at a time into a private window. The caller must be trusted.
type Foreign struct {
	mem    Memory
	window uint64
}

// NewForeign reserves a one page window from space.
func NewForeign(mem Memory, space *Space) (*Foreign, error) {
	window, err := space.Reserve(1)
	if err != nil {
		return nil, fmt.Errorf("foreign window: %w", err)
	}
	return &Foreign{mem: mem, window: window}, nil
}

// Read copies n bytes at asid:va.
func (f *Foreign) Read(asid uint16, va uint64, n int) ([]byte, error) {
	out := make([]byte, n)
	err := f.each(asid, va, out, mmu.UserReadonly, func(win uint64, chunk []byte) error {
		return f.mem.Load(win, chunk)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Write copies data to asid:va.
func (f *Foreign) Write(asid uint16, va uint64, data []byte) error {
	return f.each(asid, va, data, mmu.UserData, func(win uint64, chunk []byte) error {
		return f.mem.Store(win, chunk)
	})
}

func (f *Foreign) each(asid uint16, va uint64, buf []byte, attr mmu.Attribute, fn func(win uint64, chunk []byte) error) error {
	for done := 0; done < len(buf); {
		cur := va + uint64(done)
		off := cur & mmu.PageMask
		n := min(len(buf)-done, int(mmu.PageSize-off))

		if err := f.mem.MemMap(asid, mmu.RoundDown(cur), 0, f.window, attr); err != nil {
			return fmt.Errorf("map %#x from asid %d: %w", cur, asid, err)
		}
		err := fn(f.window+off, buf[done:done+n])
		if uerr := f.mem.MemUnmap(0, f.window); err == nil {
			err = uerr
		}
		if err != nil {
			return err
		}
		done += n
	}
	return nil
}
