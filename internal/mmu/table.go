package mmu

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrAddressRange = errors.New("virtual address outside translation range")
	ErrMisaligned   = errors.New("address not page aligned")
	ErrNotMapped    = errors.New("page not mapped")
)

const (
	entriesPerTable = PageSize / 8
	indexBits       = 9
)

// Entry is the decoded view of one leaf descriptor.
type Entry struct {
	PA   uint64
	Attr Attribute
}

// FrameSource hands out zeroed physical frames for table nodes.
type FrameSource interface {
	AllocFrame() (uint64, error)
	FreeFrame(pa uint64)
	Frame(pa uint64) []byte
}

// PageTable is the capability the kernel needs from an MMU backend.
type PageTable interface {
	// Translate returns the physical address backing va.
	Translate(va uint64) (uint64, bool)
	// Map installs a leaf for the page containing va, replacing any
	// previous one.
	Map(va, pa uint64, attr Attribute) error
	// Unmap removes the leaf for the page containing va and returns it.
	Unmap(va uint64) (Entry, error)
	// Query returns the leaf for the page containing va.
	Query(va uint64) (Entry, bool)
	// Walk visits every leaf in ascending address order until fn returns false.
	Walk(fn func(va uint64, e Entry) bool)
	// Release frees every table node. Leaf frames are left to the caller.
	Release()
	Format() Format
}

// Format encodes and decodes one architecture's descriptors.
type Format interface {
	Name() string
	Levels() int
	VABits() uint
	TableDescriptor(pa uint64) uint64
	NextTable(desc uint64) (uint64, bool)
	LeafDescriptor(pa uint64, attr Attribute) uint64
	DecodeLeaf(desc uint64) (Entry, bool)
}

type radixTable struct {
	format Format
	frames FrameSource
	root   uint64
}

// NewPageTable allocates an empty root table in the given format.
func NewPageTable(format Format, frames FrameSource) (PageTable, error) {
	root, err := frames.AllocFrame()
	if err != nil {
		return nil, fmt.Errorf("allocate root table: %w", err)
	}
	return &radixTable{format: format, frames: frames, root: root}, nil
}

func (t *radixTable) Format() Format {
	return t.format
}

func (t *radixTable) index(va uint64, level int) int {
	shift := PageShift + indexBits*(t.format.Levels()-1-level)
	return int((va >> shift) & (entriesPerTable - 1))
}

func (t *radixTable) inRange(va uint64) bool {
	return va>>t.format.VABits() == 0
}

func (t *radixTable) read(table uint64, idx int) uint64 {
	return binary.LittleEndian.Uint64(t.frames.Frame(table)[idx*8:])
}

func (t *radixTable) write(table uint64, idx int, desc uint64) {
	binary.LittleEndian.PutUint64(t.frames.Frame(table)[idx*8:], desc)
}

// leafTable walks to the last-level table for va, allocating intermediate
// nodes when create is set.
func (t *radixTable) leafTable(va uint64, create bool) (uint64, error) {
	table := t.root
	for level := 0; level < t.format.Levels()-1; level++ {
		idx := t.index(va, level)
		next, ok := t.format.NextTable(t.read(table, idx))
		if !ok {
			if !create {
				return 0, ErrNotMapped
			}
			pa, err := t.frames.AllocFrame()
			if err != nil {
				return 0, fmt.Errorf("allocate level %d table: %w", level+1, err)
			}
			t.write(table, idx, t.format.TableDescriptor(pa))
			next = pa
		}
		table = next
	}
	return table, nil
}

func (t *radixTable) Translate(va uint64) (uint64, bool) {
	e, ok := t.Query(va)
	if !ok {
		return 0, false
	}
	return e.PA | (va & PageMask), true
}

func (t *radixTable) Map(va, pa uint64, attr Attribute) error {
	if !t.inRange(va) {
		return fmt.Errorf("map %#x: %w", va, ErrAddressRange)
	}
	if !Aligned(pa) {
		return fmt.Errorf("map %#x -> %#x: %w", va, pa, ErrMisaligned)
	}
	table, err := t.leafTable(va, true)
	if err != nil {
		return err
	}
	t.write(table, t.index(va, t.format.Levels()-1), t.format.LeafDescriptor(pa, attr))
	return nil
}

func (t *radixTable) Unmap(va uint64) (Entry, error) {
	if !t.inRange(va) {
		return Entry{}, fmt.Errorf("unmap %#x: %w", va, ErrAddressRange)
	}
	table, err := t.leafTable(va, false)
	if err != nil {
		return Entry{}, fmt.Errorf("unmap %#x: %w", va, err)
	}
	idx := t.index(va, t.format.Levels()-1)
	e, ok := t.format.DecodeLeaf(t.read(table, idx))
	if !ok {
		return Entry{}, fmt.Errorf("unmap %#x: %w", va, ErrNotMapped)
	}
	t.write(table, idx, 0)
	return e, nil
}

func (t *radixTable) Query(va uint64) (Entry, bool) {
	if !t.inRange(va) {
		return Entry{}, false
	}
	table, err := t.leafTable(va, false)
	if err != nil {
		return Entry{}, false
	}
	return t.format.DecodeLeaf(t.read(table, t.index(va, t.format.Levels()-1)))
}

func (t *radixTable) Walk(fn func(va uint64, e Entry) bool) {
	t.walk(t.root, 0, 0, fn)
}

func (t *radixTable) walk(table uint64, level int, base uint64, fn func(uint64, Entry) bool) bool {
	shift := uint(PageShift + indexBits*(t.format.Levels()-1-level))
	last := level == t.format.Levels()-1
	for idx := 0; idx < entriesPerTable; idx++ {
		desc := t.read(table, idx)
		va := base | uint64(idx)<<shift
		if last {
			if e, ok := t.format.DecodeLeaf(desc); ok && !fn(va, e) {
				return false
			}
			continue
		}
		if next, ok := t.format.NextTable(desc); ok && !t.walk(next, level+1, va, fn) {
			return false
		}
	}
	return true
}

func (t *radixTable) Release() {
	t.release(t.root, 0)
	t.root = 0
}

func (t *radixTable) release(table uint64, level int) {
	if level < t.format.Levels()-1 {
		for idx := 0; idx < entriesPerTable; idx++ {
			if next, ok := t.format.NextTable(t.read(table, idx)); ok {
				t.release(next, level+1)
			}
		}
	}
	t.frames.FreeFrame(table)
}
