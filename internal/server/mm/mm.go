// Package mm is the memory manager server. It backs single pages in the
// address space of whichever process asks.
package mm

import (
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/logging"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/mmu"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/process"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/proto"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/server"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/vm"
)

type allocator interface {
	MemAlloc(asid uint16, va uint64, attr mmu.Attribute) error
}

type handler struct {
	mem allocator
	log *zap.Logger
}

// New returns the request handler. mem must be able to allocate in other
// address spaces.
func New(mem allocator, log *zap.Logger) *server.Mux {
	h := &handler{mem: mem, log: log}
	mux := server.NewMux(proto.MMUnknownAction)
	mux.On(proto.MMAlloc, "alloc", h.alloc)
	return mux
}

func (h *handler) alloc(req server.Request) itc.Message {
	va := req.Msg.B
	if err := h.mem.MemAlloc(req.ASID, va, vm.DefaultAttr); err != nil {
		h.log.Debug("page allocation refused", logging.ASID(req.ASID), logging.VA(va), zap.Error(err))
		return server.Reply(proto.MMErr)
	}
	return server.Reply(proto.MMOK)
}

// Program runs the memory manager. It must run in a trusted process.
func Program(ctx *process.Context, _ uint64) error {
	return server.New(itc.ServiceMM, New(ctx.Thread, ctx.Log), server.FromContext(ctx)...).Serve(ctx.Thread)
}
