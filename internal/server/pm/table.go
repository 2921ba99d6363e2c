package pm

import (
	"sort"
	"sync"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/proto"
)

// Process is one entry of the process table.
type Process struct {
	PID     uint64  `json:"pid"`
	Parent  uint16  `json:"parent_asid"`
	ASID    uint16  `json:"asid"`
	Main    itc.Tid `json:"main_tid"`
	Command string  `json:"command"`
	Arg     uint64  `json:"arg"`
	Exited  bool    `json:"exited"`
}

// Table is the process table. The process manager owns it; the debug API
// reads it.
type Table struct {
	mu    sync.RWMutex
	procs map[uint64]*Process
	next  uint64
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{procs: make(map[uint64]*Process), next: proto.FirstPID}
}

func (t *Table) add(p Process) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	p.PID = t.next
	t.next++
	t.procs[p.PID] = &p
	return p.PID
}

func (t *Table) get(pid uint64) (Process, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.procs[pid]
	if !ok {
		return Process{}, false
	}
	return *p, true
}

func (t *Table) markExited(pid uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.procs[pid]; ok {
		p.Exited = true
	}
}

func (t *Table) remove(pid uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.procs, pid)
}

// Len returns the number of processes not yet reaped.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.procs)
}

// List returns the table ordered by pid.
func (t *Table) List() []Process {
	t.mu.RLock()
	out := make([]Process, 0, len(t.procs))
	for _, p := range t.procs {
		out = append(out, *p)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out
}
