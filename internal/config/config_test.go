package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Kernel config
	assert.Equal(t, 8192, cfg.Kernel.Frames)
	assert.Equal(t, uint64(0x4000_0000), cfg.Kernel.PhysBase)

	// Memory layout
	assert.Equal(t, uint64(0x3f_a000_0000), cfg.Memory.UserLimit)
	assert.Equal(t, uint64(0x4_0000_0000), cfg.Memory.VallocBase)
	assert.Equal(t, uint64(0x10_0000_0000), cfg.Memory.HeapBase)
	assert.Equal(t, 16, cfg.Memory.HeapPages)
	assert.Equal(t, uint64(0x10_0001_0000), cfg.Memory.HeapEnd())

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Rate limit config
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)

	require.NoError(t, cfg.Validate())
}

func TestLoadMatchesDefault(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"KERNEL_FRAMES":   "1024",
		"USER_LIMIT":      "0x3f00000000",
		"VALLOC_BASE":     "0x200000000",
		"HEAP_PAGES":      "32",
		"LOG_LEVEL":       "debug",
		"LOG_DEV":         "true",
		"DEBUG_ADDR":      ":9999",
		"RAMDISK":         "/tmp/disk.img.zst",
		"RATE_LIMIT_RPS":  "500",
		"RAMDISK_SECTORS": "64",
	}

	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1024, cfg.Kernel.Frames)
	assert.Equal(t, uint64(0x3f_0000_0000), cfg.Memory.UserLimit)
	assert.Equal(t, uint64(0x2_0000_0000), cfg.Memory.VallocBase)
	assert.Equal(t, 32, cfg.Memory.HeapPages)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, ":9999", cfg.Debug.Addr)
	assert.Equal(t, "/tmp/disk.img.zst", cfg.Boot.Ramdisk)
	assert.Equal(t, 64, cfg.Boot.RamdiskSectors)
	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
}

func TestLoadRejectsInvalidLayout(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "heap overlaps valloc",
			env:  map[string]string{"HEAP_BASE": "0x800000000"},
		},
		{
			name: "misaligned valloc base",
			env:  map[string]string{"VALLOC_BASE": "0x400000010"},
		},
		{
			name: "heap beyond user limit",
			env:  map[string]string{"USER_LIMIT": "0x1000001000"},
		},
		{
			name: "empty heap",
			env:  map[string]string{"HEAP_PAGES": "0"},
		},
		{
			name: "not a number",
			env:  map[string]string{"KERNEL_FRAMES": "many"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.env {
				t.Setenv(key, value)
			}
			_, err := Load()
			assert.Error(t, err)

			cfg := LoadOrDefault()
			assert.Equal(t, Default(), cfg)
		})
	}
}

func TestLoggingConfig(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		dev       string
		wantLevel string
		wantDev   bool
	}{
		{
			name:      "default values",
			wantLevel: "info",
		},
		{
			name:      "debug level",
			level:     "debug",
			wantLevel: "debug",
		},
		{
			name:      "development mode",
			dev:       "true",
			wantLevel: "info",
			wantDev:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Unsetenv("LOG_LEVEL")
			os.Unsetenv("LOG_DEV")

			if tt.level != "" {
				t.Setenv("LOG_LEVEL", tt.level)
			}
			if tt.dev != "" {
				t.Setenv("LOG_DEV", tt.dev)
			}

			cfg := LoadOrDefault()

			assert.Equal(t, tt.wantLevel, cfg.Logging.Level)
			assert.Equal(t, tt.wantDev, cfg.Logging.Development)
		})
	}
}
