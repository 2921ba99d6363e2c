package kernel

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/config"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/logging"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/mmu"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/physmem"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/registry"
)

// Config sizes the kernel.
type Config struct {
	Frames    int
	PhysBase  uint64
	UserLimit uint64
	// Format selects the page table encoding. Nil means mmu.DefaultFormat.
	Format mmu.Format
}

// ConfigFrom extracts the kernel settings from the global configuration.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Frames:    cfg.Kernel.Frames,
		PhysBase:  cfg.Kernel.PhysBase,
		UserLimit: cfg.Memory.UserLimit,
	}
}

// Kernel owns threads, address spaces, physical memory and the service
// registry.
type Kernel struct {
	cfg      Config
	log      *zap.Logger
	metrics  *monitoring.Metrics
	frames   *physmem.Pool
	services *registry.Registry

	mu       sync.RWMutex
	threads  map[itc.Tid]*Thread
	spaces   map[uint16]*AddressSpace
	nextTid  itc.Tid
	nextASID uint16

	irqMu sync.Mutex
	irqs  map[uint64]chan struct{}

	panicMu      sync.Mutex
	panicHandler func(*Corruption)

	running sync.WaitGroup
}

// New boots an empty kernel.
func New(cfg Config, log *zap.Logger, metrics *monitoring.Metrics) (*Kernel, error) {
	if cfg.Format == nil {
		cfg.Format = mmu.DefaultFormat()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}

	frames, err := physmem.New(cfg.PhysBase, cfg.Frames)
	if err != nil {
		return nil, fmt.Errorf("init physical memory: %w", err)
	}

	k := &Kernel{
		cfg:      cfg,
		log:      log,
		metrics:  metrics,
		frames:   frames,
		threads:  make(map[itc.Tid]*Thread),
		spaces:   make(map[uint16]*AddressSpace),
		nextTid:  1,
		nextASID: 1,
		irqs:     make(map[uint64]chan struct{}),
	}
	k.services = registry.New(k.alive)
	k.panicHandler = k.defaultPanic

	log.Info("kernel initialized",
		zap.String("mmu", cfg.Format.Name()),
		zap.Int("frames", cfg.Frames),
		logging.VA(cfg.UserLimit),
	)
	return k, nil
}

// Metrics returns the kernel's metrics collector.
func (k *Kernel) Metrics() *monitoring.Metrics {
	return k.metrics
}

// UserLimit is the first address user code may not map.
func (k *Kernel) UserLimit() uint64 {
	return k.cfg.UserLimit
}

// Format is the page table format in use.
func (k *Kernel) Format() mmu.Format {
	return k.cfg.Format
}

// Frames reports physical memory usage.
func (k *Kernel) Frames() physmem.Stats {
	return k.frames.Stats()
}

// Services lists live service registrations.
func (k *Kernel) Services() []registry.Binding {
	return k.services.List()
}

// Thread looks up a thread by id.
func (k *Kernel) Thread(tid itc.Tid) (*Thread, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	t, ok := k.threads[tid]
	return t, ok
}

// Space looks up an address space by id.
func (k *Kernel) Space(asid uint16) (*AddressSpace, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	as, ok := k.spaces[asid]
	return as, ok
}

func (k *Kernel) alive(tid itc.Tid) bool {
	t, ok := k.Thread(tid)
	return ok && !t.Destroyed()
}

// NewAddressSpace creates an empty address space. Threads in a trusted space
// may manipulate other address spaces.
func (k *Kernel) NewAddressSpace(trusted bool) (*AddressSpace, error) {
	table, err := mmu.NewPageTable(k.cfg.Format, k.frames)
	if err != nil {
		return nil, fmt.Errorf("create address space: %w", err)
	}

	k.mu.Lock()
	asid, ok := k.freeASID()
	if !ok {
		k.mu.Unlock()
		table.Release()
		return nil, fmt.Errorf("%w: no free asid", itc.ErrOutOfMemory)
	}
	as := &AddressSpace{
		asid:    asid,
		trusted: trusted,
		k:       k,
		table:   table,
	}
	k.spaces[asid] = as
	k.nextASID = asid + 1
	k.mu.Unlock()

	k.metrics.SetFramesInUse(k.frames.Stats().InUse)
	k.log.Debug("address space created", logging.ASID(as.asid), zap.Bool("trusted", trusted))
	return as, nil
}

// freeASID finds the next asid that is neither 0 nor live. The caller holds
// k.mu.
func (k *Kernel) freeASID() (uint16, bool) {
	asid := k.nextASID
	for i := 0; i < math.MaxUint16+1; i++ {
		if asid != 0 {
			if _, live := k.spaces[asid]; !live {
				return asid, true
			}
		}
		asid++
	}
	return 0, false
}

// Spawn creates a thread in as and starts it immediately.
func (k *Kernel) Spawn(as *AddressSpace, name string, entry Entry, arg uint64) (*Thread, error) {
	t, err := k.newThread(as, 0, name, entry, arg)
	if err != nil {
		return nil, err
	}
	if !k.start(t) {
		return nil, itc.ErrInvalidArgument
	}
	return t, nil
}

func (k *Kernel) newThread(as *AddressSpace, parent itc.Tid, name string, entry Entry, arg uint64) (*Thread, error) {
	if entry == nil {
		return nil, itc.ErrInvalidArgument
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if as.isDestroyed() {
		return nil, itc.ErrInvalidArgument
	}
	t := &Thread{
		k:      k,
		tid:    k.nextTid,
		parent: parent,
		space:  as,
		name:   name,
		entry:  entry,
		arg:    arg,
		status: StatusSleep,
		inbox:  make(chan delivery, 1),
		dead:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	k.threads[t.tid] = t
	k.nextTid++
	return t, nil
}

// RaiseInterrupt wakes one waiter on irq, or leaves the interrupt pending.
func (k *Kernel) RaiseInterrupt(irq uint64) {
	select {
	case k.irq(irq) <- struct{}{}:
	default:
	}
}

func (k *Kernel) irq(n uint64) chan struct{} {
	k.irqMu.Lock()
	defer k.irqMu.Unlock()
	ch, ok := k.irqs[n]
	if !ok {
		ch = make(chan struct{}, 1)
		k.irqs[n] = ch
	}
	return ch
}

// ThreadInfo is a debug view of a thread.
type ThreadInfo struct {
	Tid    itc.Tid `json:"tid"`
	Parent itc.Tid `json:"parent"`
	ASID   uint16  `json:"asid"`
	Name   string  `json:"name"`
	Status string  `json:"status"`
	Exit   string  `json:"exit,omitempty"`
}

// Threads lists every known thread ordered by tid.
func (k *Kernel) Threads() []ThreadInfo {
	k.mu.RLock()
	threads := make([]*Thread, 0, len(k.threads))
	for _, t := range k.threads {
		threads = append(threads, t)
	}
	k.mu.RUnlock()

	out := make([]ThreadInfo, 0, len(threads))
	for _, t := range threads {
		out = append(out, t.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tid < out[j].Tid })
	return out
}

// SpaceInfo is a debug view of an address space.
type SpaceInfo struct {
	ASID    uint16 `json:"asid"`
	Trusted bool   `json:"trusted"`
	Pages   int    `json:"pages"`
}

// Spaces lists live address spaces ordered by asid.
func (k *Kernel) Spaces() []SpaceInfo {
	k.mu.RLock()
	spaces := make([]*AddressSpace, 0, len(k.spaces))
	for _, as := range k.spaces {
		spaces = append(spaces, as)
	}
	k.mu.RUnlock()

	out := make([]SpaceInfo, 0, len(spaces))
	for _, as := range spaces {
		out = append(out, SpaceInfo{ASID: as.asid, Trusted: as.trusted, Pages: as.Pages()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ASID < out[j].ASID })
	return out
}

// Shutdown destroys every thread and waits for their goroutines to return.
func (k *Kernel) Shutdown(ctx context.Context) error {
	k.mu.RLock()
	threads := make([]*Thread, 0, len(k.threads))
	for _, t := range k.threads {
		threads = append(threads, t)
	}
	k.mu.RUnlock()

	for _, t := range threads {
		k.terminate(t, itc.ErrThreadDestroyed)
	}

	done := make(chan struct{})
	go func() {
		k.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		k.log.Info("kernel stopped", zap.Int("threads", len(threads)))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown: %w", ctx.Err())
	}
}
