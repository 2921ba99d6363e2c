//go:build !riscv64

package mmu

// DefaultFormat returns the page table format of the build target.
func DefaultFormat() Format {
	return AArch64
}
