package process

import (
	"fmt"
	"sort"
	"sync"
)

// Table maps executable paths to programs.
type Table struct {
	mu       sync.RWMutex
	programs map[string]Program
}

// NewTable creates an empty program table.
func NewTable() *Table {
	return &Table{programs: make(map[string]Program)}
}

// Register adds prog under path.
func (t *Table) Register(path string, prog Program) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.programs[path]; ok {
		return fmt.Errorf("program %s already registered", path)
	}
	t.programs[path] = prog
	return nil
}

// Lookup finds the program at path.
func (t *Table) Lookup(path string) (Program, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	prog, ok := t.programs[path]
	return prog, ok
}

// Paths lists registered paths in order.
func (t *Table) Paths() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	paths := make([]string, 0, len(t.programs))
	for p := range t.programs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
