package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/memipc/internal/config"
	"github.com/GriffinCanCode/memipc/internal/logging"
	"github.com/GriffinCanCode/memipc/internal/mq"
	"github.com/GriffinCanCode/memipc/internal/server"
)

const shutdownTimeout = 5 * time.Second

func main() {
	var (
		name, logfile, configPath string
		debug, verbose            bool
	)
	flag.StringVar(&name, "name", "", "Name of the message queue used for client/server IPC")
	flag.StringVar(&name, "n", "", "Shorthand for -name")
	flag.StringVar(&logfile, "logfile", "", "Log every transaction to this file as well")
	flag.StringVar(&logfile, "l", "", "Shorthand for -logfile")
	flag.BoolVar(&debug, "debug", false, "Development logging (colored console output)")
	flag.BoolVar(&debug, "d", false, "Shorthand for -debug")
	flag.BoolVar(&verbose, "verbose", false, "Log every applied record")
	flag.BoolVar(&verbose, "v", false, "Shorthand for -verbose")
	flag.StringVar(&configPath, "config", "", "YAML configuration file")
	metricsAddr := flag.String("metrics", "", "Serve /metrics, /healthz and /stats on this address")
	reply := flag.String("reply", "", "Queue to send ServerItem replies to")
	journal := flag.String("journal", "", "Shared-memory region to journal mutations in")
	flag.Parse()

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "memipc-server: %v\n", err)
		os.Exit(1)
	}

	// Flags override env and file
	if name != "" {
		cfg.Queue.Name = name
	}
	if logfile != "" {
		cfg.Logging.File = logfile
	}
	if debug {
		cfg.Logging.Development = true
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
		cfg.Metrics.Enabled = true
	}
	if *reply != "" {
		cfg.Queue.ReplyName = *reply
	}
	if *journal != "" {
		cfg.SharedMemory.Name = *journal
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "memipc-server: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.FromConfig(cfg.Logging))
	if err != nil {
		fmt.Fprintf(os.Stderr, "memipc-server: failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting memipc server",
		zap.String("queue", cfg.Queue.Name),
		zap.String("logfile", cfg.Logging.File),
		zap.Bool("debug", cfg.Logging.Development),
		zap.Bool("verbose", verbose),
	)

	if cfg.Queue.RaiseRlimit {
		if err := mq.RaiseLimit(cfg.Queue.MaxItemSize, cfg.Queue.MaxQueueSize); err != nil {
			logger.Warn("Could not raise RLIMIT_MSGQUEUE", zap.Error(err))
		}
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	select {
	case sig := <-sigChan:
		logger.Info("Received signal", zap.Stringer("signal", sig))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Error during shutdown", zap.Error(err))
		}
	case err := <-errChan:
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := srv.Shutdown(ctx); shutdownErr != nil {
			logger.Error("Error during shutdown", zap.Error(shutdownErr))
		}
		if err != nil {
			logger.Error("Server error", zap.Error(err))
			logger.Sync()
			os.Exit(1)
		}
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}
