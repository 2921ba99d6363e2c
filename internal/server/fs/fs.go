// Package fs is the filesystem server: a flat in-memory file tree with
// per-process descriptors.
package fs

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/logging"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/process"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/proto"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/server"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/vm"
)

// MaxTransfer bounds a single read or write.
const MaxTransfer = 1 << 20

type handler struct {
	store   *Store
	foreign *vm.Foreign
	log     *zap.Logger
}

// New returns the request handler serving store.
func New(ctx *process.Context, store *Store) (*server.Mux, error) {
	foreign, err := vm.NewForeign(ctx.Thread, ctx.Runtime().Space())
	if err != nil {
		return nil, err
	}
	h := &handler{store: store, foreign: foreign, log: ctx.Log}

	mux := server.NewMux(proto.FSInvArg)
	mux.On(proto.FSOpen, "open", h.open)
	mux.On(proto.FSRead, "read", h.read)
	mux.On(proto.FSWrite, "write", h.write)
	mux.On(proto.FSClose, "close", h.close)
	mux.On(proto.FSStat, "stat", h.stat)
	return mux, nil
}

// Program returns the filesystem server for store. It must run in a trusted
// process.
func Program(store *Store) process.Program {
	return func(ctx *process.Context, _ uint64) error {
		mux, err := New(ctx, store)
		if err != nil {
			return fmt.Errorf("fs: %w", err)
		}
		return server.New(itc.ServiceFS, mux, server.FromContext(ctx)...).Serve(ctx.Thread)
	}
}

func (h *handler) fail(req server.Request, op string, err error) itc.Message {
	switch {
	case errors.Is(err, ErrNotFound):
		return server.Reply(proto.FSNotFound)
	case errors.Is(err, ErrBadFD):
		return server.Reply(proto.FSInvArg)
	}
	h.log.Debug("fs request failed", zap.String("op", op), logging.ASID(req.ASID), zap.Error(err))
	return server.Reply(proto.FSErr)
}

func (h *handler) open(req server.Request) itc.Message {
	n := req.Msg.C
	if n == 0 || n > proto.MaxPathLen {
		return server.Reply(proto.FSInvArg)
	}
	path, err := h.foreign.Read(req.ASID, req.Msg.B, int(n))
	if err != nil {
		return h.fail(req, "open", err)
	}
	fd, err := h.store.Open(req.ASID, string(path), req.Msg.D)
	if err != nil {
		return h.fail(req, "open", err)
	}
	return server.Reply(proto.FSOK, fd)
}

func (h *handler) read(req server.Request) itc.Message {
	fd, va, n := req.Msg.B, req.Msg.C, req.Msg.D
	if n > MaxTransfer {
		return server.Reply(proto.FSInvArg)
	}
	data, err := h.store.Read(req.ASID, fd, int(n))
	if err == nil {
		err = h.foreign.Write(req.ASID, va, data)
	}
	if err != nil {
		return h.fail(req, "read", err)
	}
	return server.Reply(proto.FSOK, uint64(len(data)))
}

func (h *handler) write(req server.Request) itc.Message {
	fd, va, n := req.Msg.B, req.Msg.C, req.Msg.D
	if n > MaxTransfer {
		return server.Reply(proto.FSInvArg)
	}
	if _, err := h.store.Stat(req.ASID, fd); err != nil {
		return h.fail(req, "write", err)
	}
	data, err := h.foreign.Read(req.ASID, va, int(n))
	if err != nil {
		return h.fail(req, "write", err)
	}
	written, err := h.store.Write(req.ASID, fd, data)
	if err != nil {
		return h.fail(req, "write", err)
	}
	return server.Reply(proto.FSOK, uint64(written))
}

func (h *handler) close(req server.Request) itc.Message {
	if err := h.store.Close(req.ASID, req.Msg.B); err != nil {
		return h.fail(req, "close", err)
	}
	return server.Reply(proto.FSOK)
}

func (h *handler) stat(req server.Request) itc.Message {
	size, err := h.store.Stat(req.ASID, req.Msg.B)
	if err != nil {
		return h.fail(req, "stat", err)
	}
	return server.Reply(proto.FSOK, uint64(size))
}
