package mmu

const (
	PageShift = 12
	PageSize  = 1 << PageShift
	PageMask  = PageSize - 1
)

// RoundDown aligns addr down to its page.
func RoundDown(addr uint64) uint64 {
	return addr &^ PageMask
}

// RoundUp aligns addr up to the next page boundary.
func RoundUp(addr uint64) uint64 {
	return (addr + PageMask) &^ PageMask
}

// Aligned reports whether addr is page-aligned.
func Aligned(addr uint64) bool {
	return addr&PageMask == 0
}

// Pages returns how many pages cover n bytes.
func Pages(n uint64) uint64 {
	return RoundUp(n) >> PageShift
}
