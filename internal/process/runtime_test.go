package process_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/mmu"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/process"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/server/servertest"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/vm"
)

func TestConsecutiveVallocsAreAdjacent(t *testing.T) {
	k := servertest.System(t)

	err := servertest.Run(t, k, func(ctx *process.Context, _ uint64) error {
		first, err := ctx.Alloc.Valloc(1)
		require.NoError(t, err)
		second, err := ctx.Alloc.Valloc(1)
		require.NoError(t, err)
		assert.Equal(t, uint64(mmu.PageSize), second-first)

		require.NoError(t, ctx.Thread.Store(first, []byte{1}))
		return ctx.Thread.Store(second, []byte{2})
	}, 0)
	require.NoError(t, err)
}

func TestHeapBootstrapsOnce(t *testing.T) {
	k := servertest.System(t)
	layout := vm.DefaultLayout()

	err := servertest.Run(t, k, func(ctx *process.Context, _ uint64) error {
		_, mapped := ctx.Thread.Query(layout.HeapBase)
		assert.True(t, mapped)
		_, mapped = ctx.Thread.Query(layout.HeapBase + uint64(layout.HeapPages-1)*mmu.PageSize)
		assert.True(t, mapped)

		assert.True(t, errors.Is(ctx.Heap.Init(ctx.Pager), vm.ErrHeapInitialized))

		addr, err := ctx.Heap.Alloc(100)
		require.NoError(t, err)
		assert.True(t, ctx.Heap.Contains(addr))
		return ctx.Thread.Store(addr, []byte("heap"))
	}, 0)
	require.NoError(t, err)
}

func TestThreadsShareTheProcess(t *testing.T) {
	k := servertest.System(t)

	err := servertest.Run(t, k, func(ctx *process.Context, _ uint64) error {
		base, err := ctx.Alloc.Valloc(1)
		require.NoError(t, err)

		results := make(chan uint64, 1)
		tid, err := ctx.Go(func(sib *process.Context, _ uint64) error {
			assert.Same(t, ctx.Heap, sib.Heap)
			assert.Equal(t, ctx.Thread.ASID(), sib.Thread.ASID())
			va, err := sib.Alloc.Valloc(1)
			if err != nil {
				return err
			}
			results <- va
			return nil
		}, 0)
		require.NoError(t, err)
		assert.NotEqual(t, ctx.Thread.Tid(), tid)

		// The sibling's exception stack is reserved before its own page.
		theirs := <-results
		assert.Equal(t, base+2*mmu.PageSize, theirs)

		mine, err := ctx.Alloc.Valloc(1)
		require.NoError(t, err)
		assert.Equal(t, theirs+mmu.PageSize, mine)
		return nil
	}, 0)
	require.NoError(t, err)
}

func TestHeapBootstrapFailureAbortsProcess(t *testing.T) {
	k := servertest.System(t)
	layout := vm.DefaultLayout()
	layout.HeapBase = layout.UserLimit

	as, err := k.NewAddressSpace(false)
	require.NoError(t, err)

	ran := false
	rt := process.NewRuntime("broken", layout)
	th, err := k.Spawn(as, "broken", rt.Main(func(*process.Context, uint64) error {
		ran = true
		return nil
	}), 0)
	require.NoError(t, err)

	servertest.Wait(t, th)
	assert.False(t, ran)
	assert.True(t, errors.Is(th.Err(), vm.ErrHeapBootstrap))
	_, ok := k.Space(as.ASID())
	assert.False(t, ok)
}

func TestProgramTable(t *testing.T) {
	table := process.NewTable()
	noop := func(*process.Context, uint64) error { return nil }

	require.NoError(t, table.Register("/bin/b", noop))
	require.NoError(t, table.Register("/bin/a", noop))
	assert.Error(t, table.Register("/bin/a", noop))

	_, ok := table.Lookup("/bin/a")
	assert.True(t, ok)
	_, ok = table.Lookup("/bin/c")
	assert.False(t, ok)
	assert.Equal(t, []string{"/bin/a", "/bin/b"}, table.Paths())
}

func TestServiceIDsResolve(t *testing.T) {
	k := servertest.System(t)

	err := servertest.Run(t, k, func(ctx *process.Context, _ uint64) error {
		tid, err := ctx.Caller.Resolve(itc.ServiceMM)
		require.NoError(t, err)
		assert.NotZero(t, tid)
		return nil
	}, 0)
	require.NoError(t, err)
}
