package vm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/kernel"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/mmu"
)

// countingPager counts the pages it backs.
type countingPager struct {
	PageAllocator
	n int
}

func (p *countingPager) AllocPage(va uint64) error {
	p.n++
	return p.PageAllocator.AllocPage(va)
}

func bootKernel(t *testing.T) *kernel.Kernel {
	t.Helper()
	layout := DefaultLayout()
	k, err := kernel.New(kernel.Config{Frames: 512, PhysBase: 0x4000_0000, UserLimit: layout.UserLimit}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, k.Shutdown(ctx))
	})
	return k
}

func runThread(t *testing.T, k *kernel.Kernel, trusted bool, fn func(th *kernel.Thread) error) (*kernel.Thread, error) {
	t.Helper()
	as, err := k.NewAddressSpace(trusted)
	require.NoError(t, err)

	th, err := k.Spawn(as, "vm-test", func(th *kernel.Thread, _ uint64) error {
		return fn(th)
	}, 0)
	require.NoError(t, err)
	select {
	case <-th.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("thread did not finish")
	}
	return th, th.Err()
}

// demandPaged installs the fault handler the way every process does.
func demandPaged(th *kernel.Thread, pager *countingPager) error {
	layout := DefaultLayout()
	alloc := NewAllocator(NewSpace(layout.VallocBase, layout.VallocLimit), pager)
	return InstallFaultHandler(th, alloc, NewFaultHandler(th, pager, layout.UserLimit))
}

func TestDemandPagingServicesFaultOnce(t *testing.T) {
	k := bootKernel(t)
	const va = 0x3f_8000_1000

	var pager *countingPager
	_, err := runThread(t, k, true, func(th *kernel.Thread) error {
		pager = &countingPager{PageAllocator: NewKernelPager(th)}
		if err := demandPaged(th, pager); err != nil {
			return err
		}
		stackPages := pager.n

		buf := make([]byte, 8)
		if err := th.Load(va, buf); err != nil {
			return err
		}
		assert.Equal(t, 1, pager.n-stackPages)

		if err := th.Load(va, buf); err != nil {
			return err
		}
		assert.Equal(t, 1, pager.n-stackPages)
		return nil
	})
	require.NoError(t, err)
}

func TestFaultAboveUserLimitKillsThread(t *testing.T) {
	k := bootKernel(t)

	reached := false
	th, err := runThread(t, k, true, func(th *kernel.Thread) error {
		pager := &countingPager{PageAllocator: NewKernelPager(th)}
		if err := demandPaged(th, pager); err != nil {
			return err
		}
		err := th.Store(0xdeadbeef_00000000, []byte{1})
		reached = th.Yield() == nil
		return err
	})

	assert.True(t, errors.Is(err, ErrOutOfRange))
	var fault *kernel.FaultError
	require.True(t, errors.As(err, &fault))
	assert.Equal(t, uint64(0xdeadbeef_00000000), fault.VA)
	assert.True(t, th.Destroyed())
	assert.False(t, reached)
}

func TestWriteToReadOnlyPageIsFatal(t *testing.T) {
	k := bootKernel(t)

	_, err := runThread(t, k, true, func(th *kernel.Thread) error {
		pager := &countingPager{PageAllocator: NewKernelPager(th)}
		if err := demandPaged(th, pager); err != nil {
			return err
		}
		if err := th.MemAlloc(0, 0x1000_0000, mmu.UserReadonly); err != nil {
			return err
		}
		return th.Store(0x1000_0000, []byte{1})
	})
	assert.True(t, errors.Is(err, ErrUnhandledPageFault))
}

func TestForeignCopiesAcrossSpaces(t *testing.T) {
	k := bootKernel(t)
	const va = 0x1000_0ff0

	user, err := k.NewAddressSpace(false)
	require.NoError(t, err)
	userThread, err := k.Spawn(user, "user", func(th *kernel.Thread, _ uint64) error {
		for _, page := range []uint64{0x1000_0000, 0x1000_1000} {
			if err := th.MemAlloc(0, page, DefaultAttr); err != nil {
				return err
			}
		}
		return th.Store(va, []byte("spans two pages"))
	}, 0)
	require.NoError(t, err)
	<-userThread.Done()
	require.NoError(t, userThread.Err())

	_, err = runThread(t, k, true, func(th *kernel.Thread) error {
		layout := DefaultLayout()
		f, err := NewForeign(th, NewSpace(layout.VallocBase, layout.VallocLimit))
		require.NoError(t, err)

		got, err := f.Read(user.ASID(), va, 15)
		require.NoError(t, err)
		assert.Equal(t, "spans two pages", string(got))

		require.NoError(t, f.Write(user.ASID(), va+6, []byte("TWO")))
		got, err = f.Read(user.ASID(), va, 15)
		require.NoError(t, err)
		assert.Equal(t, "spans TWO pages", string(got))

		_, err = f.Read(user.ASID(), 0x2000_0000, 4)
		assert.Error(t, err)
		return nil
	})
	require.NoError(t, err)
}
