// Package rtc is the clock server. It has no actions: every request is
// answered with the current time in seconds since the epoch in word a.
package rtc

import (
	"time"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/process"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/server"
)

// New returns a handler reading now.
func New(now func() time.Time) server.Handler {
	return server.HandlerFunc(func(server.Request) itc.Message {
		return server.Reply(uint64(now().Unix()))
	})
}

// Program returns the clock server reading now, or the host clock when now
// is nil.
func Program(now func() time.Time) process.Program {
	if now == nil {
		now = time.Now
	}
	return func(ctx *process.Context, _ uint64) error {
		return server.New(itc.ServiceRTC, New(now), server.FromContext(ctx)...).Serve(ctx.Thread)
	}
}
