// Package mmu implements per-address-space page tables.
//
// A PageTable translates 4 KiB virtual pages to physical frames and records an
// Attribute set for each mapping. Tables are three-level radix trees whose
// nodes live in physical frames handed out by a FrameSource, and whose
// descriptors use the real bit layout of the selected architecture Format:
//
//   - AArch64: VMSAv8-64 stage-1 descriptors, 4 KiB granule, 39-bit VA
//   - RISCV64Sv39: Sv39 PTEs with Svpbmt memory types
//
// DefaultFormat is chosen at build time from GOARCH. Page tables are not safe
// for concurrent use; the owning address space serializes access.
package mmu
