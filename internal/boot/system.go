// Package boot assembles a running system from configuration: the kernel,
// the servers named in the boot manifest and the init process.
package boot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/config"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/kernel"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/process"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/registry"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/server/blk"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/server/fs"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/server/mm"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/server/pm"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/server/rtc"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/vm"
)

// ShutdownTimeout bounds kernel shutdown.
const ShutdownTimeout = 5 * time.Second

var errInitDone = errors.New("init finished")

// Options configures a System.
type Options struct {
	Manifest *Manifest
	Disk     *blk.Disk
	Programs *process.Table
	Clock    func() time.Time
	// ExitAfterInit makes Run return once the init process has finished.
	ExitAfterInit bool
}

// System is one booted kernel and its servers.
type System struct {
	opts    Options
	bootID  id.BootID
	log     *zap.Logger
	metrics *monitoring.Metrics
	kernel  *kernel.Kernel
	layout  vm.Layout
	procs   *pm.Table
	store   *fs.Store
}

// New boots the kernel. Nothing runs until Run.
func New(cfg *config.Config, opts Options, log *zap.Logger) (*System, error) {
	if opts.Manifest == nil {
		opts.Manifest = DefaultManifest()
	}
	if err := opts.Manifest.Validate(); err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	if opts.Disk == nil {
		opts.Disk = blk.NewDisk(cfg.Boot.RamdiskSectors)
	}
	if opts.Programs == nil {
		opts.Programs = Programs()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	bootID := id.NewBootID()
	log = log.With(zap.Stringer("boot", bootID))
	metrics := monitoring.NewMetrics()

	k, err := kernel.New(kernel.ConfigFrom(cfg), log.Named("kernel"), metrics)
	if err != nil {
		return nil, err
	}

	store := fs.NewStore()
	for _, f := range opts.Manifest.Files {
		store.Seed(f.Path, []byte(f.Content))
	}

	return &System{
		opts:    opts,
		bootID:  bootID,
		log:     log,
		metrics: metrics,
		kernel:  k,
		layout:  vm.LayoutFrom(cfg.Memory),
		procs:   pm.NewTable(),
		store:   store,
	}, nil
}

// BootID identifies this boot.
func (s *System) BootID() id.BootID { return s.bootID }

// Kernel returns the kernel.
func (s *System) Kernel() *kernel.Kernel { return s.kernel }

// Metrics returns the metrics of this boot.
func (s *System) Metrics() *monitoring.Metrics { return s.metrics }

// Threads lists every thread.
func (s *System) Threads() []kernel.ThreadInfo { return s.kernel.Threads() }

// Services lists registered services.
func (s *System) Services() []registry.Binding { return s.kernel.Services() }

// Spaces lists live address spaces.
func (s *System) Spaces() []kernel.SpaceInfo { return s.kernel.Spaces() }

// Processes lists the process table.
func (s *System) Processes() []pm.Process { return s.procs.List() }

// Files lists the filesystem.
func (s *System) Files() []fs.FileInfo { return s.store.Files() }

// Run starts the servers and the init process and blocks until ctx is
// cancelled, init fails, or init finishes with ExitAfterInit set. The kernel
// is shut down before Run returns.
func (s *System) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, name := range s.opts.Manifest.Servers {
		if err := s.startServer(name); err != nil {
			s.shutdown()
			return err
		}
	}

	var initThread *kernel.Thread
	if len(s.opts.Manifest.Init) > 0 {
		th, err := s.spawn("init", false, initProgram(s.opts.Manifest.Init))
		if err != nil {
			s.shutdown()
			return err
		}
		initThread = th
	}
	s.log.Info("system booted", zap.Strings("servers", s.opts.Manifest.Servers), zap.Int("init", len(s.opts.Manifest.Init)))

	g.Go(func() error {
		if initThread == nil {
			return nil
		}
		select {
		case <-initThread.Done():
		case <-ctx.Done():
			return nil
		}
		if err := initThread.Err(); err != nil {
			return fmt.Errorf("init: %w", err)
		}
		s.log.Info("init finished")
		if s.opts.ExitAfterInit {
			return errInitDone
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.metrics.UpdateUptime()
			case <-ctx.Done():
				return nil
			}
		}
	})

	g.Go(func() error {
		<-ctx.Done()
		return s.shutdown()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errInitDone) {
		return err
	}
	return nil
}

func (s *System) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return s.kernel.Shutdown(ctx)
}

func (s *System) startServer(name string) error {
	var prog process.Program
	switch name {
	case ServerMM:
		prog = mm.Program
	case ServerPM:
		prog = pm.Program(pm.Config{
			Programs: s.opts.Programs,
			Table:    s.procs,
			Layout:   s.layout,
			Options:  []process.Option{process.WithLogger(s.log.Named("proc")), process.WithMetrics(s.metrics)},
			OnReap: func(asid uint16) {
				if n := s.store.Release(asid); n > 0 {
					s.log.Debug("descriptors released", zap.Uint16("asid", asid), zap.Int("count", n))
				}
			},
		})
	case ServerRTC:
		prog = rtc.Program(s.opts.Clock)
	case ServerBlk:
		prog = blk.Program(s.opts.Disk)
	case ServerFS:
		prog = fs.Program(s.store)
	default:
		return fmt.Errorf("unknown server %q", name)
	}

	if _, err := s.spawn(name, true, prog); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}
	return nil
}

func (s *System) spawn(name string, trusted bool, prog process.Program) (*kernel.Thread, error) {
	as, err := s.kernel.NewAddressSpace(trusted)
	if err != nil {
		return nil, err
	}
	opts := []process.Option{process.WithLogger(s.log.Named(name)), process.WithMetrics(s.metrics)}
	if trusted {
		opts = append(opts, process.Trusted())
	}
	rt := process.NewRuntime(name, s.layout, opts...)
	return s.kernel.Spawn(as, name, rt.Main(prog), 0)
}

// Service reports whether svc is currently registered.
func (s *System) Service(svc itc.ServiceID) bool {
	for _, b := range s.kernel.Services() {
		if b.Service == svc {
			return true
		}
	}
	return false
}
