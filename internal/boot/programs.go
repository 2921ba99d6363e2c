package boot

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/process"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/proto"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/shared/paths"
)

// Paths of the built-in programs.
var (
	ProgramHello = paths.Program("hello")
	ProgramDate  = paths.Program("date")
	ProgramPS    = paths.Program("ps")
)

// HelloLog is the file /bin/hello appends to.
var HelloLog = paths.LogFile("hello")

// Programs returns the table of built-in programs.
func Programs() *process.Table {
	t := process.NewTable()
	for path, prog := range map[string]process.Program{
		ProgramHello: hello,
		ProgramDate:  date,
		ProgramPS:    ps,
	} {
		if err := t.Register(path, prog); err != nil {
			panic(err)
		}
	}
	return t
}

func hello(ctx *process.Context, arg uint64) error {
	ctx.Log.Info("hello, world", zap.Uint64("arg", arg))

	fd, err := ctx.Sys.Open(HelloLog, proto.OpenCreate|proto.OpenAppend)
	if err != nil {
		return fmt.Errorf("open %s: %w", HelloLog, err)
	}
	line := fmt.Sprintf("hello from asid %d arg %d\n", ctx.Thread.ASID(), arg)
	if _, err := ctx.Sys.Write(fd, []byte(line)); err != nil {
		return fmt.Errorf("write %s: %w", HelloLog, err)
	}
	return ctx.Sys.Close(fd)
}

func date(ctx *process.Context, _ uint64) error {
	now, err := ctx.Sys.Now()
	if err != nil {
		return err
	}
	ctx.Log.Info("date", zap.Stringer("now", now))
	return nil
}

func ps(ctx *process.Context, _ uint64) error {
	n, err := ctx.Sys.PS()
	if err != nil {
		return err
	}
	ctx.Log.Info("ps", zap.Int("processes", n))
	return nil
}

// initProgram spawns every entry in order and waits for each.
func initProgram(entries []InitEntry) process.Program {
	return func(ctx *process.Context, _ uint64) error {
		for _, e := range entries {
			pid, err := ctx.Sys.Spawn(e.Path, e.Arg)
			if err != nil {
				return fmt.Errorf("spawn %s: %w", e.Path, err)
			}
			if err := ctx.Sys.Wait(pid); err != nil {
				return fmt.Errorf("wait %s (pid %d): %w", e.Path, pid, err)
			}
			ctx.Log.Debug("init program finished", zap.String("path", e.Path), zap.Uint64("pid", pid))
		}
		return nil
	}
}
