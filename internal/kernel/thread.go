package kernel

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/logging"
)

// ErrThreadPanicked wraps a panic recovered from a thread's entry function.
var ErrThreadPanicked = errors.New("thread panicked")

// Status is the scheduling state of a thread.
type Status int

const (
	StatusSleep Status = iota
	StatusRunnable
	StatusWaitForRequest
	StatusWaitForReply
	StatusDead
)

func (s Status) String() string {
	switch s {
	case StatusSleep:
		return "sleep"
	case StatusRunnable:
		return "runnable"
	case StatusWaitForRequest:
		return "wait-for-request"
	case StatusWaitForReply:
		return "wait-for-reply"
	case StatusDead:
		return "dead"
	default:
		return "unknown"
	}
}

// Entry is the body of a thread. Returning ends the thread; a non-nil error
// is recorded as the exit reason.
type Entry func(t *Thread, arg uint64) error

type delivery struct {
	from itc.Tid
	msg  itc.Message
}

// Thread is a kernel thread backed by one goroutine. Its methods are the
// system calls available to code running on that thread and must only be
// invoked from it.
type Thread struct {
	k      *Kernel
	tid    itc.Tid
	parent itc.Tid
	space  *AddressSpace
	name   string
	entry  Entry
	arg    uint64

	mu       sync.Mutex
	status   Status
	peer     itc.Tid
	handler  FaultHandler
	stackTop uint64
	inFault  bool
	started  bool
	exitErr  error

	inbox    chan delivery
	dead     chan struct{}
	exited   chan struct{}
	killOnce sync.Once
}

var _ itc.Transport = (*Thread)(nil)

// Tid returns the thread id.
func (t *Thread) Tid() itc.Tid {
	return t.tid
}

// ASID returns the id of the thread's address space.
func (t *Thread) ASID() uint16 {
	return t.space.asid
}

// Name returns the thread's name.
func (t *Thread) Name() string {
	return t.name
}

// Kernel returns the kernel the thread runs on.
func (t *Thread) Kernel() *Kernel {
	return t.k
}

// Status returns the current scheduling state.
func (t *Thread) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Destroyed reports whether the thread has been terminated.
func (t *Thread) Destroyed() bool {
	select {
	case <-t.dead:
		return true
	default:
		return false
	}
}

// Done is closed once the thread's goroutine has returned.
func (t *Thread) Done() <-chan struct{} {
	return t.exited
}

// Err returns the exit reason once the thread is dead.
func (t *Thread) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exitErr
}

// Info returns a debug snapshot of the thread.
func (t *Thread) Info() ThreadInfo {
	t.mu.Lock()
	defer t.mu.Unlock()

	info := ThreadInfo{
		Tid:    t.tid,
		Parent: t.parent,
		ASID:   t.space.asid,
		Name:   t.name,
		Status: t.status.String(),
	}
	if t.exitErr != nil {
		info.Exit = t.exitErr.Error()
	}
	return info
}

func (t *Thread) check() error {
	if t.Destroyed() {
		return itc.ErrThreadDestroyed
	}
	return nil
}

// Yield gives up the processor.
func (t *Thread) Yield() error {
	runtime.Gosched()
	return t.check()
}

// ThreadAlloc creates a sleeping thread in the address space asid (0 for the
// caller's own). It runs once its parent marks it runnable.
func (t *Thread) ThreadAlloc(asid uint16, entry Entry, arg uint64) (itc.Tid, error) {
	if err := t.check(); err != nil {
		return 0, err
	}
	as, err := t.resolveSpace(asid)
	if err != nil {
		return 0, err
	}
	child, err := t.k.newThread(as, t.tid, t.name, entry, arg)
	if err != nil {
		return 0, err
	}
	return child.tid, nil
}

// ThreadSetStatus starts a sleeping child thread. Only StatusRunnable may be
// requested and only by the thread's parent.
func (t *Thread) ThreadSetStatus(tid itc.Tid, status Status) error {
	if err := t.check(); err != nil {
		return err
	}
	target, ok := t.k.Thread(tid)
	if !ok || status != StatusRunnable {
		return itc.ErrInvalidArgument
	}
	if target.parent != t.tid {
		return itc.ErrDenied
	}

	if !t.k.start(target) {
		return itc.ErrInvalidArgument
	}
	return nil
}

// ThreadDestroy terminates tid, or the caller itself when tid is 0. A thread
// may destroy itself, its children and threads of its own address space;
// trusted threads may destroy any thread.
func (t *Thread) ThreadDestroy(tid itc.Tid) error {
	if err := t.check(); err != nil {
		return err
	}
	if tid == 0 {
		tid = t.tid
	}
	target, ok := t.k.Thread(tid)
	if !ok {
		return itc.ErrInvalidArgument
	}
	if target.space != t.space && target.parent != t.tid && !t.space.trusted {
		return itc.ErrDenied
	}
	t.k.terminate(target, itc.ErrThreadDestroyed)
	return nil
}

// GetASID returns the address space of tid, or of the caller when tid is 0.
func (t *Thread) GetASID(tid itc.Tid) (uint16, error) {
	if err := t.check(); err != nil {
		return 0, err
	}
	if tid == 0 {
		return t.space.asid, nil
	}
	target, ok := t.k.Thread(tid)
	if !ok {
		return 0, itc.ErrInvalidArgument
	}
	return target.space.asid, nil
}

// start launches a sleeping thread. It reports false if the thread already
// ran or was destroyed before starting.
func (k *Kernel) start(t *Thread) bool {
	t.mu.Lock()
	if t.status != StatusSleep {
		t.mu.Unlock()
		return false
	}
	t.started = true
	t.status = StatusRunnable
	t.mu.Unlock()

	k.metrics.IncThreads()
	k.running.Add(1)
	go k.supervise(t)
	return true
}

// supervise runs the thread body and converts every way it can end into
// thread termination. Kernel corruption is handed to the panic handler.
func (k *Kernel) supervise(t *Thread) {
	defer k.running.Done()

	var err error
	defer func() {
		if r := recover(); r != nil {
			if c, ok := r.(*Corruption); ok {
				k.terminate(t, c)
				k.exit(t)
				k.corrupted(c)
				return
			}
			err = fmt.Errorf("%w: %v", ErrThreadPanicked, r)
			k.log.Error("thread panicked", logging.Tid(t.tid), zap.Any("panic", r), zap.Stack("stack"))
		}
		k.terminate(t, err)
		k.exit(t)
	}()

	k.log.Debug("thread started", logging.Tid(t.tid), logging.ASID(t.space.asid), zap.String("name", t.name))
	err = t.entry(t, t.arg)
}

// terminate marks t dead, wakes it if blocked and releases its services.
// Only the first reason is kept.
func (k *Kernel) terminate(t *Thread, reason error) {
	t.killOnce.Do(func() {
		t.mu.Lock()
		t.status = StatusDead
		t.exitErr = reason
		started := t.started
		t.mu.Unlock()

		close(t.dead)
		if released := k.services.Release(t.tid); len(released) > 0 {
			k.log.Info("services released", logging.Tid(t.tid), zap.Stringers("services", released))
		}
		k.metrics.SetServicesRegistered(len(k.services.List()))

		if !started {
			close(t.exited)
		}
	})
}

func (k *Kernel) exit(t *Thread) {
	reason := t.Err()
	label := exitLabel(reason)
	k.metrics.ThreadExited(label)

	fields := []zap.Field{logging.Tid(t.tid), logging.ASID(t.space.asid), zap.String("name", t.name), zap.String("reason", label)}
	if label == "exit" || label == "destroyed" {
		k.log.Debug("thread exited", fields...)
	} else {
		k.log.Warn("thread terminated", append(fields, zap.Error(reason))...)
	}
	close(t.exited)
}

func exitLabel(err error) string {
	var fault *FaultError
	var corruption *Corruption
	switch {
	case err == nil:
		return "exit"
	case errors.Is(err, itc.ErrThreadDestroyed):
		return "destroyed"
	case errors.As(err, &fault):
		return "fault"
	case errors.As(err, &corruption):
		return "corruption"
	case errors.Is(err, ErrThreadPanicked):
		return "panic"
	default:
		return "error"
	}
}
