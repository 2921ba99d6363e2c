package server

import (
	"sort"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc"
)

// Mux dispatches on the action code in word a.
type Mux struct {
	actions map[uint64]action
	unknown uint64
}

type action struct {
	name string
	fn   HandlerFunc
}

// NewMux creates a mux that replies unknown to unregistered actions.
func NewMux(unknown uint64) *Mux {
	return &Mux{actions: make(map[uint64]action), unknown: unknown}
}

// On registers fn for code.
func (m *Mux) On(code uint64, name string, fn HandlerFunc) {
	m.actions[code] = action{name: name, fn: fn}
}

// Actions lists the registered action names ordered by code.
func (m *Mux) Actions() []string {
	codes := make([]uint64, 0, len(m.actions))
	for code := range m.actions {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })

	names := make([]string, len(codes))
	for i, code := range codes {
		names[i] = m.actions[code].name
	}
	return names
}

func (m *Mux) Handle(req Request) itc.Message {
	a, ok := m.actions[req.Msg.A]
	if !ok {
		return Reply(m.unknown)
	}
	return a.fn(req)
}
