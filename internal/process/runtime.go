package process

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/client"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/kernel"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/logging"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/stdlib"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/vm"
)

// Program is the body of a process or of one of its threads.
type Program func(ctx *Context, arg uint64) error

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(r *Runtime) {
		r.log = log
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(r *Runtime) {
		r.metrics = m
	}
}

// Trusted backs pages with direct kernel calls instead of asking the memory
// manager. The process must run in a trusted address space.
func Trusted() Option {
	return func(r *Runtime) {
		r.trusted = true
	}
}

// Runtime is the per-process state shared by all threads of one process:
// the valloc cursor and the heap.
type Runtime struct {
	name    string
	layout  vm.Layout
	trusted bool
	space   *vm.Space
	heap    *vm.Heap
	log     *zap.Logger
	metrics *monitoring.Metrics
}

// NewRuntime creates the runtime of a process that has not started yet.
func NewRuntime(name string, layout vm.Layout, opts ...Option) *Runtime {
	r := &Runtime{
		name:   name,
		layout: layout,
		space:  vm.NewSpace(layout.VallocBase, layout.VallocLimit),
		heap:   vm.NewHeap(layout.HeapBase, layout.HeapPages),
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With(zap.String("process", name))
	return r
}

// Name returns the process name.
func (r *Runtime) Name() string {
	return r.name
}

// Space returns the process's valloc cursor.
func (r *Runtime) Space() *vm.Space {
	return r.space
}

// Heap returns the process heap.
func (r *Runtime) Heap() *vm.Heap {
	return r.heap
}

// Main returns the entry of the process's first thread. It installs the
// fault handler, bootstraps the heap and runs prog. A heap that cannot be
// fully backed aborts the process.
func (r *Runtime) Main(prog Program) kernel.Entry {
	return func(th *kernel.Thread, arg uint64) error {
		ctx, err := r.attach(th)
		if err != nil {
			return err
		}
		if err := r.heap.Init(ctx.Pager); err != nil {
			ctx.Log.Error("heap bootstrap failed", zap.Error(err))
			return th.Abort(fmt.Errorf("%s: %w", r.name, err))
		}
		return prog(ctx, arg)
	}
}

// thread returns the entry of an additional thread of the process.
func (r *Runtime) thread(prog Program) kernel.Entry {
	return func(th *kernel.Thread, arg uint64) error {
		ctx, err := r.attach(th)
		if err != nil {
			return err
		}
		return prog(ctx, arg)
	}
}

// attach prepares th to run process code: its call loop, its pager and its
// own fault handler on a fresh exception stack.
func (r *Runtime) attach(th *kernel.Thread) (*Context, error) {
	log := r.log.With(logging.Tid(th.Tid()))

	opts := []client.Option{client.WithLogger(log)}
	if r.metrics != nil {
		opts = append(opts, client.WithMetrics(r.metrics))
	}
	caller := client.New(th, opts...)

	var pager vm.PageAllocator = vm.NewServerPager(caller)
	if r.trusted {
		pager = vm.NewKernelPager(th)
	}
	alloc := vm.NewAllocator(r.space, pager)

	handler := vm.NewFaultHandler(th, pager, r.layout.UserLimit)
	if err := vm.InstallFaultHandler(th, alloc, handler); err != nil {
		return nil, fmt.Errorf("%s: install fault handler: %w", r.name, err)
	}

	return &Context{
		Thread:  th,
		Caller:  caller,
		Pager:   pager,
		Alloc:   alloc,
		Heap:    r.heap,
		Sys:     stdlib.New(caller, th, alloc),
		Log:     log,
		Metrics: r.metrics,
		rt:      r,
	}, nil
}

// Context is what a Program runs with.
type Context struct {
	Thread  *kernel.Thread
	Caller  *client.Caller
	Pager   vm.PageAllocator
	Alloc   *vm.Allocator
	Heap    *vm.Heap
	Sys     *stdlib.Client
	Log     *zap.Logger
	Metrics *monitoring.Metrics // nil when not collected

	rt *Runtime
}

// Runtime returns the process the context belongs to.
func (c *Context) Runtime() *Runtime {
	return c.rt
}

// Go starts prog on a new thread of the same process.
func (c *Context) Go(prog Program, arg uint64) (itc.Tid, error) {
	tid, err := c.Thread.ThreadAlloc(0, c.rt.thread(prog), arg)
	if err != nil {
		return 0, fmt.Errorf("allocate thread: %w", err)
	}
	if err := c.Thread.ThreadSetStatus(tid, kernel.StatusRunnable); err != nil {
		return 0, fmt.Errorf("start thread %d: %w", tid, err)
	}
	return tid, nil
}
