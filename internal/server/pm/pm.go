// Package pm is the process manager server. It loads programs into fresh
// address spaces, lets parents wait for them and reaps them afterwards.
package pm

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/kernel"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/logging"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/process"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/proto"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/server"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/vm"
)

// Config is what the process manager needs besides its own context.
type Config struct {
	Programs *process.Table
	Table    *Table
	Layout   vm.Layout
	// Options are applied to the runtime of every spawned process.
	Options []process.Option
	// OnReap is called with the address space of every reaped process.
	OnReap func(asid uint16)
}

type manager struct {
	cfg     Config
	th      *kernel.Thread
	foreign *vm.Foreign
	log     *zap.Logger
	onCount func(int)
}

// New returns the request handler for the process manager running on ctx.
func New(ctx *process.Context, cfg Config) (*server.Mux, error) {
	foreign, err := vm.NewForeign(ctx.Thread, ctx.Runtime().Space())
	if err != nil {
		return nil, err
	}
	if cfg.Table == nil {
		cfg.Table = NewTable()
	}
	m := &manager{
		cfg:     cfg,
		th:      ctx.Thread,
		foreign: foreign,
		log:     ctx.Log,
		onCount: func(int) {},
	}
	if ctx.Metrics != nil {
		m.onCount = ctx.Metrics.SetProcessesActive
	}

	mux := server.NewMux(proto.PMInvArg)
	mux.On(proto.PMSpawn, "spawn", m.spawn)
	mux.On(proto.PMWait, "wait", m.wait)
	mux.On(proto.PMPS, "ps", m.ps)
	return mux, nil
}

// Program returns the process manager. It must run in a trusted process.
func Program(cfg Config) process.Program {
	return func(ctx *process.Context, _ uint64) error {
		mux, err := New(ctx, cfg)
		if err != nil {
			return fmt.Errorf("pm: %w", err)
		}
		return server.New(itc.ServicePM, mux, server.FromContext(ctx)...).Serve(ctx.Thread)
	}
}

func (m *manager) spawn(req server.Request) itc.Message {
	n := req.Msg.C
	if n == 0 || n > proto.MaxPathLen {
		return server.Reply(proto.PMInvArg)
	}
	raw, err := m.foreign.Read(req.ASID, req.Msg.B, int(n))
	if err != nil {
		m.log.Debug("unreadable spawn path", logging.ASID(req.ASID), zap.Error(err))
		return server.Reply(proto.PMInvArg)
	}
	path := string(raw)

	prog, ok := m.cfg.Programs.Lookup(path)
	if !ok {
		m.log.Info("spawn of unknown program", zap.String("path", path))
		return server.Reply(proto.PMSpawnFailed)
	}

	pid, err := m.start(path, prog, req.ASID, req.Msg.D)
	if err != nil {
		m.log.Warn("spawn failed", zap.String("path", path), zap.Error(err))
		return server.Reply(proto.PMSpawnFailed)
	}
	return server.Reply(proto.PMOK, pid)
}

func (m *manager) start(path string, prog process.Program, parent uint16, arg uint64) (uint64, error) {
	asid, err := m.th.AddressSpaceAlloc()
	if err != nil {
		return 0, fmt.Errorf("address space: %w", err)
	}

	rt := process.NewRuntime(path, m.cfg.Layout, m.cfg.Options...)
	tid, err := m.th.ThreadAlloc(asid, rt.Main(prog), arg)
	if err == nil {
		err = m.th.ThreadSetStatus(tid, kernel.StatusRunnable)
	}
	if err != nil {
		_ = m.th.AddressSpaceDestroy(asid)
		return 0, fmt.Errorf("main thread: %w", err)
	}

	pid := m.cfg.Table.add(Process{Parent: parent, ASID: asid, Main: tid, Command: path, Arg: arg})
	m.onCount(m.cfg.Table.Len())
	m.log.Info("process spawned", zap.Uint64("pid", pid), zap.String("command", path), logging.ASID(asid), logging.Tid(tid))
	return pid, nil
}

func (m *manager) wait(req server.Request) itc.Message {
	pid := req.Msg.B
	p, ok := m.cfg.Table.get(pid)
	if !ok {
		return server.Reply(proto.PMInvArg)
	}
	if p.Parent != req.ASID {
		m.log.Debug("wait by non-parent", zap.Uint64("pid", pid), logging.ASID(req.ASID))
		return server.Reply(proto.PMInvArg)
	}

	err := m.th.EventWait(kernel.EventThreadExit, uint64(p.Main))
	switch {
	case errors.Is(err, itc.ErrHoldOn):
		return server.Reply(proto.PMHoldOn)
	case errors.Is(err, itc.ErrInvalidArgument):
		// The main thread is gone with its address space: the process aborted.
	case err != nil:
		m.log.Error("wait failed", zap.Uint64("pid", pid), zap.Error(err))
		return server.Reply(proto.PMInvArg)
	}

	m.cfg.Table.markExited(pid)
	if err := m.th.AddressSpaceDestroy(p.ASID); err != nil {
		m.log.Debug("address space already gone", zap.Uint64("pid", pid), logging.ASID(p.ASID))
	}
	m.cfg.Table.remove(pid)
	if m.cfg.OnReap != nil {
		m.cfg.OnReap(p.ASID)
	}
	m.onCount(m.cfg.Table.Len())
	m.log.Info("process reaped", zap.Uint64("pid", pid), zap.String("command", p.Command))
	return server.Reply(proto.PMOK)
}

func (m *manager) ps(server.Request) itc.Message {
	procs := m.cfg.Table.List()
	for _, p := range procs {
		m.log.Info("process",
			zap.Uint64("pid", p.PID),
			zap.String("command", p.Command),
			logging.ASID(p.ASID),
			logging.Tid(p.Main),
		)
	}
	return server.Reply(proto.PMOK, uint64(len(procs)))
}
