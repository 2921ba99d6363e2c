package resilience

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc"
)

var (
	ErrPersistentFailure = errors.New("request handler failed on every attempt")
	ErrCircuitOpen       = errors.New("server circuit is open")
)

// State represents the circuit state of a guarded server
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures a Guard
type Settings struct {
	// Attempts is how many times one request is run before it counts as a
	// persistent failure. Only a panicking handler is re-run.
	Attempts int
	// Threshold is the number of consecutive persistent failures that opens
	// the circuit. Zero never opens it.
	Threshold uint32
	// Cooldown is how long the circuit stays open before a probe request
	// is let through
	Cooldown time.Duration
	// OnPanic is called with every recovered panic
	OnPanic func(name string, attempt int, recovered any)
	// OnStateChange is called whenever the state changes
	OnStateChange func(name string, from State, to State)
	// Now is the clock; time.Now if nil
	Now func() time.Time
}

// Counts holds the statistics of a guard
type Counts struct {
	Requests            uint32
	Panics              uint32
	Failures            uint32
	ConsecutiveFailures uint32
}

// Guard runs server request handlers, re-running a handler that panics and
// refusing requests while the handler keeps failing.
type Guard struct {
	name     string
	settings Settings

	mu     sync.Mutex
	state  State
	counts Counts
	expiry time.Time
}

// New creates a guard with the given settings
func New(name string, settings Settings) *Guard {
	if settings.Attempts <= 0 {
		settings.Attempts = 3
	}
	if settings.Cooldown == 0 {
		settings.Cooldown = time.Second
	}
	if settings.Now == nil {
		settings.Now = time.Now
	}
	return &Guard{
		name:     name,
		settings: settings,
		state:    StateClosed,
	}
}

// Name returns the name of the guard
func (g *Guard) Name() string {
	return g.name
}

// State returns the current circuit state
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.currentState(g.settings.Now())
}

// Counts returns a copy of the internal counts
func (g *Guard) Counts() Counts {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.counts
}

// Execute runs req, re-running it while it panics, up to Attempts times.
func (g *Guard) Execute(req func() itc.Message) (itc.Message, error) {
	if err := g.beforeRequest(); err != nil {
		return itc.Message{}, err
	}

	for attempt := 1; attempt <= g.settings.Attempts; attempt++ {
		if reply, ok := g.attempt(req, attempt); ok {
			g.afterRequest(true)
			return reply, nil
		}
	}
	g.afterRequest(false)
	return itc.Message{}, fmt.Errorf("%s: %w (%d attempts)", g.name, ErrPersistentFailure, g.settings.Attempts)
}

func (g *Guard) attempt(req func() itc.Message, attempt int) (reply itc.Message, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			g.mu.Lock()
			g.counts.Panics++
			g.mu.Unlock()
			if g.settings.OnPanic != nil {
				g.settings.OnPanic(g.name, attempt, r)
			}
			ok = false
		}
	}()
	return req(), true
}

// beforeRequest is called before a request is executed
func (g *Guard) beforeRequest() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.currentState(g.settings.Now()) == StateOpen {
		return ErrCircuitOpen
	}
	g.counts.Requests++
	return nil
}

// afterRequest is called after a request is executed
func (g *Guard) afterRequest(success bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.settings.Now()
	state := g.currentState(now)
	if success {
		g.counts.ConsecutiveFailures = 0
		if state == StateHalfOpen {
			g.setState(StateClosed, now)
		}
		return
	}

	g.counts.Failures++
	g.counts.ConsecutiveFailures++
	switch {
	case state == StateHalfOpen:
		g.setState(StateOpen, now)
	case g.settings.Threshold > 0 && g.counts.ConsecutiveFailures >= g.settings.Threshold:
		g.setState(StateOpen, now)
	}
}

// currentState moves an expired open circuit to half-open
func (g *Guard) currentState(now time.Time) State {
	if g.state == StateOpen && !now.Before(g.expiry) {
		g.setState(StateHalfOpen, now)
	}
	return g.state
}

// setState changes the circuit state
func (g *Guard) setState(state State, now time.Time) {
	if g.state == state {
		return
	}

	prev := g.state
	g.state = state
	g.counts.ConsecutiveFailures = 0
	if state == StateOpen {
		g.expiry = now.Add(g.settings.Cooldown)
	}

	if g.settings.OnStateChange != nil {
		g.settings.OnStateChange(g.name, prev, state)
	}
}
