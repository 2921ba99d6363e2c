package server_test

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/kernel"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/process"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/proto"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/server"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/server/servertest"
)

func serve(h server.Handler, opts ...server.Option) process.Program {
	return func(ctx *process.Context, _ uint64) error {
		opts = append(server.FromContext(ctx), opts...)
		return server.New(itc.ServiceTest, h, opts...).Serve(ctx.Thread)
	}
}

func TestReply(t *testing.T) {
	assert.Equal(t, itc.NewMessage(3, 0, 0, 0), server.Reply(3))
	assert.Equal(t, itc.NewMessage(0, 1, 2, 0), server.Reply(0, 1, 2))
	assert.Equal(t, itc.NewMessage(0, 1, 2, 3), server.Reply(0, 1, 2, 3))
}

func TestMuxDispatch(t *testing.T) {
	mux := server.NewMux(99)
	mux.On(2, "second", func(req server.Request) itc.Message { return server.Reply(0, req.Msg.B*2) })
	mux.On(1, "first", func(server.Request) itc.Message { return server.Reply(0, 1) })

	assert.Equal(t, []string{"first", "second"}, mux.Actions())
	assert.Equal(t, uint64(42), mux.Handle(server.Request{Msg: itc.NewMessage(2, 21, 0, 0)}).B)
	assert.Equal(t, uint64(99), mux.Handle(server.Request{Msg: itc.NewMessage(7, 0, 0, 0)}).A)
}

func TestServeRepliesWithSenderSpace(t *testing.T) {
	k := servertest.System(t)

	var seen atomic.Uint32
	servertest.Start(t, k, itc.ServiceTest, serve(server.HandlerFunc(func(req server.Request) itc.Message {
		seen.Store(uint32(req.ASID))
		return server.Reply(0, req.Msg.B+1)
	})))

	var asid uint16
	err := servertest.Run(t, k, func(ctx *process.Context, _ uint64) error {
		asid = ctx.Thread.ASID()
		reply, err := ctx.Caller.Invoke(itc.ServiceTest, itc.NewMessage(0, 41, 0, 0))
		require.NoError(t, err)
		assert.Equal(t, uint64(42), reply.B)
		return nil
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(asid), seen.Load())
}

func TestPanickingHandlerIsRetriedThenFails(t *testing.T) {
	k := servertest.System(t)

	var calls atomic.Int32
	servertest.Start(t, k, itc.ServiceTest, serve(server.HandlerFunc(func(req server.Request) itc.Message {
		n := calls.Add(1)
		if req.Msg.A == 1 || n == 1 {
			panic("handler bug")
		}
		return server.Reply(0)
	}), server.WithGuard(resilience.Settings{Attempts: 2})))

	err := servertest.Run(t, k, func(ctx *process.Context, _ uint64) error {
		reply, err := ctx.Caller.Invoke(itc.ServiceTest, itc.NewMessage(0, 0, 0, 0))
		require.NoError(t, err)
		assert.Equal(t, uint64(0), reply.A, "second attempt succeeds")

		reply, err = ctx.Caller.Invoke(itc.ServiceTest, itc.NewMessage(1, 0, 0, 0))
		require.NoError(t, err)
		assert.Equal(t, uint64(proto.PersistentFailure), reply.A)
		return nil
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(4), calls.Load())
}

func TestServerStopsWhenDestroyed(t *testing.T) {
	k := servertest.System(t)
	th := servertest.Start(t, k, itc.ServiceTest, serve(server.NewMux(1)))

	root, err := k.NewAddressSpace(true)
	require.NoError(t, err)
	killer, err := k.Spawn(root, "killer", func(self *kernel.Thread, _ uint64) error {
		return self.ThreadDestroy(th.Tid())
	}, 0)
	require.NoError(t, err)

	servertest.Wait(t, killer)
	require.NoError(t, killer.Err())
	servertest.Wait(t, th)
	for _, b := range k.Services() {
		assert.NotEqual(t, itc.ServiceTest, b.Service)
	}
}
