package mm_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/client"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/mmu"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/process"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/proto"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/server/servertest"
)

func TestPageAllocation(t *testing.T) {
	k := servertest.System(t)

	const va = 0x1000_0000
	err := servertest.Run(t, k, func(ctx *process.Context, _ uint64) error {
		_, mapped := ctx.Thread.Query(va)
		require.False(t, mapped)

		require.NoError(t, ctx.Sys.PageAlloc(va))

		e, mapped := ctx.Thread.Query(va)
		require.True(t, mapped)
		assert.True(t, e.Attr.Has(mmu.Writable))
		return ctx.Thread.Store(va, []byte("page"))
	}, 0)
	require.NoError(t, err)
}

func TestPageAllocationRefused(t *testing.T) {
	k := servertest.System(t)

	err := servertest.Run(t, k, func(ctx *process.Context, _ uint64) error {
		err := ctx.Sys.PageAlloc(k.UserLimit())
		var svcErr *client.ServiceError
		require.True(t, errors.As(err, &svcErr))
		assert.Equal(t, uint64(proto.MMErr), svcErr.Status)

		reply, err := ctx.Caller.Invoke(itc.ServiceMM, itc.NewMessage(77, 0, 0, 0))
		require.NoError(t, err)
		assert.Equal(t, uint64(proto.MMUnknownAction), reply.A)
		return nil
	}, 0)
	require.NoError(t, err)
}

func TestDemandFaultThroughMM(t *testing.T) {
	k := servertest.System(t)
	metrics := k.Metrics()

	const va = 0x3f_8000_1000
	err := servertest.Run(t, k, func(ctx *process.Context, _ uint64) error {
		_, mapped := ctx.Thread.Query(va)
		require.False(t, mapped)
		before := metrics.GetSnapshot()

		require.NoError(t, ctx.Thread.Store(va+8, []byte{1, 2, 3}))
		after := metrics.GetSnapshot()
		assert.Equal(t, before.PageFaults+1, after.PageFaults)
		assert.Equal(t, before.ServerReqs+1, after.ServerReqs)

		e, mapped := ctx.Thread.Query(va)
		require.True(t, mapped)
		assert.True(t, e.Attr.Has(mmu.Writable))

		buf := make([]byte, 3)
		require.NoError(t, ctx.Thread.Load(va+8, buf))
		assert.Equal(t, []byte{1, 2, 3}, buf)
		assert.Equal(t, after.PageFaults, metrics.GetSnapshot().PageFaults)
		return nil
	}, 0)
	require.NoError(t, err)
}
