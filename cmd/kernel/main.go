package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/boot"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/config"
	debugserver "github.com/GriffinCanCode/AgentOS/microkernel/internal/infrastructure/server"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags override the environment
	flag.StringVar(&cfg.Boot.Manifest, "manifest", cfg.Boot.Manifest, "Boot manifest (YAML)")
	flag.StringVar(&cfg.Boot.Ramdisk, "ramdisk", cfg.Boot.Ramdisk, "Ramdisk image, raw or zstd")
	flag.StringVar(&cfg.Debug.Addr, "debug-addr", cfg.Debug.Addr, "Debug API address")
	flag.BoolVar(&cfg.Debug.Enabled, "debug", cfg.Debug.Enabled, "Serve the debug API")
	flag.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "Log level")
	flag.BoolVar(&cfg.Logging.Development, "dev", cfg.Logging.Development, "Development logging")
	once := flag.Bool("once", false, "Exit when the init programs have finished")
	flag.Parse()

	logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Development: cfg.Logging.Development})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, *once, logger); err != nil {
		logger.Fatal("Kernel stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, once bool, logger *logging.Logger) error {
	manifest, err := boot.LoadManifest(cfg.Boot.Manifest)
	if err != nil {
		return err
	}
	disk, err := boot.LoadRamdisk(cfg.Boot.Ramdisk, cfg.Boot.RamdiskSectors)
	if err != nil {
		return err
	}

	sys, err := boot.New(cfg, boot.Options{
		Manifest:      manifest,
		Disk:          disk,
		ExitAfterInit: once,
	}, logger.Logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer stop()
		return sys.Run(ctx)
	})
	if cfg.Debug.Enabled {
		api := debugserver.NewServer(cfg, sys, logger.Component("api"))
		g.Go(func() error {
			return api.Run(ctx)
		})
	}

	logger.Info("Kernel running",
		zap.Stringer("boot", sys.BootID()),
		zap.Uint64("disk_bytes", disk.Size()),
		zap.Bool("debug_api", cfg.Debug.Enabled),
	)
	return g.Wait()
}
