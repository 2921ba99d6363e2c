package kernel

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/logging"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/mmu"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/physmem"
)

// errPageFault signals that an access needs the fault path.
var errPageFault = errors.New("page fault")

// AddressSpace is one page table plus its bookkeeping.
type AddressSpace struct {
	asid    uint16
	trusted bool
	k       *Kernel

	mu        sync.Mutex
	table     mmu.PageTable
	destroyed bool
}

// ASID returns the address space id.
func (as *AddressSpace) ASID() uint16 {
	return as.asid
}

// Trusted reports whether threads in this space may manipulate others.
func (as *AddressSpace) Trusted() bool {
	return as.trusted
}

func (as *AddressSpace) isDestroyed() bool {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.destroyed
}

// Pages counts mapped pages.
func (as *AddressSpace) Pages() int {
	as.mu.Lock()
	defer as.mu.Unlock()
	if as.destroyed {
		return 0
	}
	n := 0
	as.table.Walk(func(uint64, mmu.Entry) bool {
		n++
		return true
	})
	return n
}

// Query returns the mapping of the page containing va.
func (as *AddressSpace) Query(va uint64) (mmu.Entry, bool) {
	as.mu.Lock()
	defer as.mu.Unlock()
	if as.destroyed {
		return mmu.Entry{}, false
	}
	return as.table.Query(va)
}

func (as *AddressSpace) checkUser(va uint64) error {
	if va >= as.k.cfg.UserLimit {
		return fmt.Errorf("%w: %#x beyond user limit", itc.ErrOutOfRange, va)
	}
	return nil
}

// install maps pa at va, releasing whatever was mapped there before. The
// caller holds as.mu and owns one reference to pa.
func (as *AddressSpace) install(va, pa uint64, attr mmu.Attribute) error {
	old, had := as.table.Query(va)
	if err := as.table.Map(va, pa, attr); err != nil {
		as.k.frames.FreeFrame(pa)
		if errors.Is(err, physmem.ErrOutOfMemory) {
			return fmt.Errorf("%w: %w", itc.ErrOutOfMemory, err)
		}
		return fmt.Errorf("%w: %w", itc.ErrInternal, err)
	}
	if had && old.PA != pa {
		as.k.frames.FreeFrame(old.PA)
	} else if had {
		as.k.frames.FreeFrame(pa)
	}
	return nil
}

func (as *AddressSpace) alloc(va uint64, attr mmu.Attribute) error {
	va = mmu.RoundDown(va)
	if err := as.checkUser(va); err != nil {
		return err
	}

	as.mu.Lock()
	defer as.mu.Unlock()
	if as.destroyed {
		return itc.ErrInvalidArgument
	}

	pa, err := as.k.frames.AllocFrame()
	if err != nil {
		return fmt.Errorf("%w: %w", itc.ErrOutOfMemory, err)
	}
	return as.install(va, pa, attr.Filter())
}

func (as *AddressSpace) unmap(va uint64) error {
	va = mmu.RoundDown(va)
	if err := as.checkUser(va); err != nil {
		return err
	}

	as.mu.Lock()
	defer as.mu.Unlock()
	if as.destroyed {
		return itc.ErrInvalidArgument
	}

	e, err := as.table.Unmap(va)
	if err != nil {
		return fmt.Errorf("%w: %#x", itc.ErrMemNotMapped, va)
	}
	as.k.frames.FreeFrame(e.PA)
	return nil
}

// share maps the frame behind src:srcVA at dst:dstVA.
func share(src *AddressSpace, srcVA uint64, dst *AddressSpace, dstVA uint64, attr mmu.Attribute) error {
	srcVA, dstVA = mmu.RoundDown(srcVA), mmu.RoundDown(dstVA)
	if err := src.checkUser(srcVA); err != nil {
		return err
	}
	if err := dst.checkUser(dstVA); err != nil {
		return err
	}

	first, second := src, dst
	if second.asid < first.asid {
		first, second = second, first
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	if second != first {
		second.mu.Lock()
		defer second.mu.Unlock()
	}
	if src.destroyed || dst.destroyed {
		return itc.ErrInvalidArgument
	}

	e, ok := src.table.Query(srcVA)
	if !ok {
		return fmt.Errorf("%w: %#x in asid %d", itc.ErrMemNotMapped, srcVA, src.asid)
	}
	if err := src.k.frames.Ref(e.PA); err != nil {
		return fmt.Errorf("%w: %w", itc.ErrInternal, err)
	}
	return dst.install(dstVA, e.PA, attr.Filter())
}

// copy moves bytes between buf and the page containing va. It fails with
// errPageFault if the page is missing or does not permit the access.
func (as *AddressSpace) copy(va uint64, buf []byte, write bool) error {
	as.mu.Lock()
	defer as.mu.Unlock()
	if as.destroyed {
		return itc.ErrInvalidArgument
	}

	e, ok := as.table.Query(va)
	if !ok || !e.Attr.Has(mmu.UserReadable) || (write && !e.Attr.Has(mmu.Writable)) {
		return errPageFault
	}
	frame := as.k.frames.Frame(e.PA)
	if frame == nil {
		return fmt.Errorf("%w: frame %#x vanished", itc.ErrInternal, e.PA)
	}
	off := va & mmu.PageMask
	if write {
		copy(frame[off:], buf)
	} else {
		copy(buf, frame[off:])
	}
	return nil
}

// teardown releases every mapping and the page table itself.
func (as *AddressSpace) teardown() int {
	as.mu.Lock()
	defer as.mu.Unlock()
	if as.destroyed {
		return 0
	}
	as.destroyed = true

	var frames []uint64
	as.table.Walk(func(_ uint64, e mmu.Entry) bool {
		frames = append(frames, e.PA)
		return true
	})
	for _, pa := range frames {
		as.k.frames.FreeFrame(pa)
	}
	as.table.Release()
	return len(frames)
}

// resolveSpace maps an asid argument to a space the caller may touch.
func (t *Thread) resolveSpace(asid uint16) (*AddressSpace, error) {
	if asid == 0 || asid == t.space.asid {
		return t.space, nil
	}
	as, ok := t.k.Space(asid)
	if !ok {
		return nil, itc.ErrInvalidArgument
	}
	if !t.space.trusted {
		return nil, itc.ErrDenied
	}
	return as, nil
}

func (t *Thread) memOp(op string, fn func() error) error {
	err := t.check()
	if err == nil {
		err = fn()
	}
	t.k.metrics.RecordMemoryOp(op, err)
	t.k.metrics.SetFramesInUse(t.k.frames.Stats().InUse)
	return err
}

// MemAlloc backs the page containing va in asid (0 for the caller's own)
// with a fresh zeroed frame. An existing mapping is replaced.
func (t *Thread) MemAlloc(asid uint16, va uint64, attr mmu.Attribute) error {
	return t.memOp("alloc", func() error {
		as, err := t.resolveSpace(asid)
		if err != nil {
			return err
		}
		return as.alloc(va, attr)
	})
}

// MemMap shares the frame at srcASID:srcVA into dstASID:dstVA.
func (t *Thread) MemMap(srcASID uint16, srcVA uint64, dstASID uint16, dstVA uint64, attr mmu.Attribute) error {
	return t.memOp("map", func() error {
		src, err := t.resolveSpace(srcASID)
		if err != nil {
			return err
		}
		dst, err := t.resolveSpace(dstASID)
		if err != nil {
			return err
		}
		return share(src, srcVA, dst, dstVA, attr)
	})
}

// MemUnmap removes the mapping of the page containing va in asid.
func (t *Thread) MemUnmap(asid uint16, va uint64) error {
	return t.memOp("unmap", func() error {
		as, err := t.resolveSpace(asid)
		if err != nil {
			return err
		}
		return as.unmap(va)
	})
}

// Query returns the caller's mapping of the page containing va.
func (t *Thread) Query(va uint64) (mmu.Entry, bool) {
	return t.space.Query(va)
}

// AddressSpaceAlloc creates an untrusted address space.
func (t *Thread) AddressSpaceAlloc() (uint16, error) {
	if err := t.check(); err != nil {
		return 0, err
	}
	as, err := t.k.NewAddressSpace(false)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", itc.ErrOutOfMemory, err)
	}
	return as.asid, nil
}

// AddressSpaceDestroy terminates every thread in asid and frees its memory.
// Destroying the caller's own space terminates the caller as well.
func (t *Thread) AddressSpaceDestroy(asid uint16) error {
	if err := t.check(); err != nil {
		return err
	}
	as, err := t.resolveSpace(asid)
	if err != nil {
		return err
	}
	t.k.destroySpace(as)
	return nil
}

// Abort ends the caller's whole process: the caller is terminated with
// reason, then its address space and every thread in it are destroyed.
func (t *Thread) Abort(reason error) error {
	t.k.terminate(t, reason)
	t.k.destroySpace(t.space)
	return reason
}

func (k *Kernel) destroySpace(as *AddressSpace) {
	k.mu.Lock()
	delete(k.spaces, as.asid)
	var victims []*Thread
	for tid, th := range k.threads {
		if th.space == as {
			victims = append(victims, th)
			delete(k.threads, tid)
		}
	}
	k.mu.Unlock()

	for _, th := range victims {
		k.terminate(th, itc.ErrThreadDestroyed)
	}
	pages := as.teardown()
	k.metrics.SetFramesInUse(k.frames.Stats().InUse)
	k.log.Debug("address space destroyed",
		logging.ASID(as.asid),
		zap.Int("threads", len(victims)),
		zap.Int("pages", pages),
	)
}
