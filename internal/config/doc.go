// Package config provides 12-factor configuration management for the kernel.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
// Address values accept 0x-prefixed hexadecimal.
//
// Configuration Sections:
//   - Kernel: simulated physical memory size and base
//   - Memory: user limit, valloc region and heap region
//   - Boot: manifest and ramdisk image paths
//   - Logging: log level and output format
//   - Debug: debug HTTP listen address
//   - RateLimit: debug API rate limiting
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("heap at %#x\n", cfg.Memory.HeapBase)
//
// Environment Variables:
//   - KERNEL_FRAMES, KERNEL_PHYS_BASE
//   - USER_LIMIT, VALLOC_BASE, VALLOC_LIMIT, HEAP_BASE, HEAP_PAGES
//   - BOOT_MANIFEST, RAMDISK, RAMDISK_SECTORS
//   - LOG_LEVEL, LOG_DEV, DEBUG_ADDR, DEBUG_ENABLED
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
