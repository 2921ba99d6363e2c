package config

import (
	"errors"
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

const pageSize = 4096

// Config holds all kernel configuration.
type Config struct {
	Kernel    KernelConfig
	Memory    MemoryConfig
	Boot      BootConfig
	Logging   LogConfig
	Debug     DebugConfig
	RateLimit RateLimitConfig
}

// KernelConfig sizes simulated physical memory.
type KernelConfig struct {
	Frames   int    `envconfig:"KERNEL_FRAMES" default:"8192"`
	PhysBase uint64 `envconfig:"KERNEL_PHYS_BASE" default:"0x40000000"`
}

// MemoryConfig holds the fixed user address-space layout.
type MemoryConfig struct {
	UserLimit   uint64 `envconfig:"USER_LIMIT" default:"0x3fa0000000"`
	VallocBase  uint64 `envconfig:"VALLOC_BASE" default:"0x400000000"`
	VallocLimit uint64 `envconfig:"VALLOC_LIMIT" default:"0x1000000000"`
	HeapBase    uint64 `envconfig:"HEAP_BASE" default:"0x1000000000"`
	HeapPages   int    `envconfig:"HEAP_PAGES" default:"16"`
}

// BootConfig locates boot inputs.
type BootConfig struct {
	Manifest       string `envconfig:"BOOT_MANIFEST" default:""`
	Ramdisk        string `envconfig:"RAMDISK" default:""`
	RamdiskSectors int    `envconfig:"RAMDISK_SECTORS" default:"2048"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// DebugConfig holds the debug HTTP surface configuration.
type DebugConfig struct {
	Addr    string `envconfig:"DEBUG_ADDR" default:"127.0.0.1:8090"`
	Enabled bool   `envconfig:"DEBUG_ENABLED" default:"true"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// HeapEnd returns the first address past the heap region.
func (m MemoryConfig) HeapEnd() uint64 {
	return m.HeapBase + uint64(m.HeapPages)*pageSize
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Kernel: KernelConfig{
			Frames:   8192,
			PhysBase: 0x4000_0000,
		},
		Memory: MemoryConfig{
			UserLimit:   0x3f_a000_0000,
			VallocBase:  0x4_0000_0000,
			VallocLimit: 0x10_0000_0000,
			HeapBase:    0x10_0000_0000,
			HeapPages:   16,
		},
		Boot: BootConfig{
			RamdiskSectors: 2048,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Debug: DebugConfig{
			Addr:    "127.0.0.1:8090",
			Enabled: true,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

// Validate checks that the memory layout is page aligned and that the valloc
// region, the heap and the user limit do not overlap.
func (c *Config) Validate() error {
	m := c.Memory
	var errs []error
	for name, addr := range map[string]uint64{
		"USER_LIMIT":   m.UserLimit,
		"VALLOC_BASE":  m.VallocBase,
		"VALLOC_LIMIT": m.VallocLimit,
		"HEAP_BASE":    m.HeapBase,
	} {
		if addr%pageSize != 0 {
			errs = append(errs, fmt.Errorf("%s %#x is not page aligned", name, addr))
		}
	}
	if m.VallocBase >= m.VallocLimit {
		errs = append(errs, fmt.Errorf("valloc region [%#x, %#x) is empty", m.VallocBase, m.VallocLimit))
	}
	if m.HeapPages <= 0 {
		errs = append(errs, fmt.Errorf("HEAP_PAGES must be positive, got %d", m.HeapPages))
	}
	if m.HeapBase < m.VallocLimit && m.HeapEnd() > m.VallocBase {
		errs = append(errs, fmt.Errorf("heap [%#x, %#x) overlaps valloc region", m.HeapBase, m.HeapEnd()))
	}
	if m.HeapEnd() > m.UserLimit || m.VallocLimit > m.UserLimit {
		errs = append(errs, fmt.Errorf("user regions exceed USER_LIMIT %#x", m.UserLimit))
	}
	if c.Kernel.Frames <= 0 {
		errs = append(errs, fmt.Errorf("KERNEL_FRAMES must be positive, got %d", c.Kernel.Frames))
	}
	return errors.Join(errs...)
}
