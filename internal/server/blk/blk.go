// Package blk is the block device server. It moves whole sectors between a
// RAM disk and buffers in the caller's address space.
package blk

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/logging"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/process"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/proto"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/server"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/vm"
)

type handler struct {
	disk    *Disk
	foreign *vm.Foreign
	log     *zap.Logger
}

// New returns the request handler serving disk.
func New(ctx *process.Context, disk *Disk) (*server.Mux, error) {
	foreign, err := vm.NewForeign(ctx.Thread, ctx.Runtime().Space())
	if err != nil {
		return nil, err
	}
	h := &handler{disk: disk, foreign: foreign, log: ctx.Log}

	mux := server.NewMux(proto.BlkErr)
	mux.On(proto.BlkRead, "read", h.read)
	mux.On(proto.BlkWrite, "write", h.write)
	mux.On(proto.BlkSize, "size", h.size)
	return mux, nil
}

// Program returns the block server for disk. It must run in a trusted
// process.
func Program(disk *Disk) process.Program {
	return func(ctx *process.Context, _ uint64) error {
		mux, err := New(ctx, disk)
		if err != nil {
			return fmt.Errorf("blk: %w", err)
		}
		return server.New(itc.ServiceBlk, mux, server.FromContext(ctx)...).Serve(ctx.Thread)
	}
}

func (h *handler) read(req server.Request) itc.Message {
	sector, count, va := req.Msg.B, req.Msg.C, req.Msg.D
	data, err := h.disk.ReadSectors(sector, count)
	if err == nil {
		err = h.foreign.Write(req.ASID, va, data)
	}
	if err != nil {
		h.log.Debug("block read failed", logging.ASID(req.ASID), zap.Uint64("sector", sector), zap.Error(err))
		return server.Reply(proto.BlkErr)
	}
	return server.Reply(proto.BlkOK, uint64(len(data)))
}

func (h *handler) write(req server.Request) itc.Message {
	sector, count, va := req.Msg.B, req.Msg.C, req.Msg.D
	if _, _, err := h.disk.span(sector, count); err != nil {
		return server.Reply(proto.BlkErr)
	}
	data, err := h.foreign.Read(req.ASID, va, int(count*proto.SectorSize))
	if err == nil {
		err = h.disk.WriteSectors(sector, data)
	}
	if err != nil {
		h.log.Debug("block write failed", logging.ASID(req.ASID), zap.Uint64("sector", sector), zap.Error(err))
		return server.Reply(proto.BlkErr)
	}
	return server.Reply(proto.BlkOK, uint64(len(data)))
}

func (h *handler) size(server.Request) itc.Message {
	return server.Reply(proto.BlkOK, h.disk.Size())
}
