// Package registry maps well-known service ids to the thread serving them.
//
// At most one live thread holds a service at any instant. Registration and
// lookup are serialized by a single mutex.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc"
)

var (
	ErrAlreadyRegistered = errors.New("service already registered")
	ErrUnknownService    = errors.New("unknown service")
)

// Liveness reports whether a thread is still alive.
type Liveness func(itc.Tid) bool

// Binding is one service registration.
type Binding struct {
	Service itc.ServiceID `json:"service"`
	Name    string        `json:"name"`
	Tid     itc.Tid       `json:"tid"`
}

// Registry is the kernel's service table.
type Registry struct {
	alive Liveness

	mu       sync.Mutex
	services map[itc.ServiceID]itc.Tid
}

// New creates an empty registry. A nil alive treats every holder as live.
func New(alive Liveness) *Registry {
	if alive == nil {
		alive = func(itc.Tid) bool { return true }
	}
	return &Registry{
		alive:    alive,
		services: make(map[itc.ServiceID]itc.Tid),
	}
}

// Register binds svc to tid. It fails if another live thread holds svc.
// Registering the same tid twice is a no-op.
func (r *Registry) Register(svc itc.ServiceID, tid itc.Tid) error {
	if !svc.Valid() {
		return fmt.Errorf("register %s: %w", svc, ErrUnknownService)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if holder, ok := r.services[svc]; ok && holder != tid && r.alive(holder) {
		return fmt.Errorf("register %s for tid %d: held by tid %d: %w", svc, tid, holder, ErrAlreadyRegistered)
	}
	r.services[svc] = tid
	return nil
}

// Lookup returns the live thread serving svc.
func (r *Registry) Lookup(svc itc.ServiceID) (itc.Tid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tid, ok := r.services[svc]
	if !ok || !r.alive(tid) {
		return 0, itc.ErrNotRegistered
	}
	return tid, nil
}

// Release drops every registration held by tid and returns the services it
// served.
func (r *Registry) Release(tid itc.Tid) []itc.ServiceID {
	r.mu.Lock()
	defer r.mu.Unlock()

	var released []itc.ServiceID
	for svc, holder := range r.services {
		if holder == tid {
			delete(r.services, svc)
			released = append(released, svc)
		}
	}
	sort.Slice(released, func(i, j int) bool { return released[i] < released[j] })
	return released
}

// List returns the live bindings ordered by service id.
func (r *Registry) List() []Binding {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Binding, 0, len(r.services))
	for svc, tid := range r.services {
		if r.alive(tid) {
			out = append(out, Binding{Service: svc, Name: svc.String(), Tid: tid})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Service < out[j].Service })
	return out
}
