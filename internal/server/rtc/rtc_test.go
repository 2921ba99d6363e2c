package rtc_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/process"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/server"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/server/rtc"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/server/servertest"
)

func fixed() time.Time {
	return time.Unix(1_700_000_000, 0)
}

func TestReplyIsTimestamp(t *testing.T) {
	h := rtc.New(fixed)
	for _, action := range []uint64{0, 1, 1 << 40} {
		reply := h.Handle(server.Request{Msg: itc.NewMessage(action, 0, 0, 0)})
		assert.Equal(t, uint64(1_700_000_000), reply.A)
	}
}

func TestClientTime(t *testing.T) {
	k := servertest.System(t)
	servertest.Start(t, k, itc.ServiceRTC, rtc.Program(fixed))

	err := servertest.Run(t, k, func(ctx *process.Context, _ uint64) error {
		ts, err := ctx.Sys.Timestamp()
		require.NoError(t, err)
		assert.Equal(t, uint64(1_700_000_000), ts)

		now, err := ctx.Sys.Now()
		require.NoError(t, err)
		assert.Equal(t, "2023-11-14 22:13:20 Tue", now.String())
		return nil
	}, 0)
	require.NoError(t, err)
}
