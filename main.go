package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"syscall"

	"github.com/hashicorp/go-multierror"
	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"github.com/kcnet/incentives/logging"
	"github.com/kcnet/incentives/server"
)

// incentived binary version.
// It should be passed during the build with '-ldflags "-X main.version="'.
var version = "unknown"

// incentivedMain is the true entry point for incentived. This function is
// required since defers created in the top-level scope of a main method
// aren't executed if os.Exit() is called.
func incentivedMain() (err error) {
	// Start with a default Config with sane settings
	cfg := server.DefaultConfig()
	// Pre-parse the command line to check for an alternative Config file
	cfg, err = server.ParseFlags(cfg)
	if err != nil {
		return err
	}
	// Load configuration file overwriting defaults with any specified options
	cfg, err = server.ReadConfigFile(cfg)
	if err != nil {
		return err
	}

	cfg, err = server.SetupConfig(cfg)
	if err != nil {
		return err
	}
	// Finally, parse the remaining command line options again to ensure
	// they take precedence.
	cfg, err = server.ParseFlags(cfg)
	if err != nil {
		return err
	}

	// Initialize logging
	logLevel := zap.InfoLevel
	if cfg.DebugLog {
		logLevel = zap.DebugLevel
	}
	logger := logging.New(
		logLevel,
		filepath.Join(cfg.LogDir, "incentived.log"),
		cfg.JSONLog,
		logging.WithRotation(logging.Rotation{MaxFiles: cfg.MaxLogFiles, MaxSizeMB: cfg.MaxLogFileSize}),
	)
	ctx := logging.NewContext(context.Background(), logger)

	defer func() {
		logger.Info("shutdown complete")
		_ = logger.Sync()
	}()

	// Show version at startup.
	logger.Sugar().Infof("version: %s, dir: %v, dbdir: %v, network: %v", version, cfg.HomeDir, cfg.DbDir, cfg.NetworkParams)

	// Enable http profiling server if requested.
	if cfg.Profile != "" {
		logger.Sugar().Infof("starting HTTP profiling on port %v", cfg.Profile)
		go func() {
			listenAddr := net.JoinHostPort("", cfg.Profile)
			profileRedirect := http.RedirectHandler("/debug/pprof",
				http.StatusSeeOther)
			http.Handle("/", profileRedirect)
			fmt.Println(http.ListenAndServe(listenAddr, nil))
		}()
	} else {
		// Disable go default unbounded memory profiler.
		runtime.MemProfileRate = 0
	}

	if cfg.CPUProfile != "" {
		f, err := os.Create(cfg.CPUProfile)
		if err != nil {
			logger.With(zap.Error(err)).Error("could not create CPU profile")
		} else {
			defer f.Close()
			if err := pprof.StartCPUProfile(f); err != nil {
				logger.With(zap.Error(err)).Error("could not start CPU profile")
			}
			defer pprof.StopCPUProfile()
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	srv, err := server.New(ctx, *cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer func() {
		if closeErr := srv.Close(); closeErr != nil {
			err = multierror.Append(err, fmt.Errorf("closing server: %w", closeErr)).ErrorOrNil()
		}
	}()
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("failure in server: %w", err)
	}

	return nil
}

func main() {
	// Call the "real" main in a nested manner so the defers will properly
	// be executed in the case of a graceful shutdown.
	if err := incentivedMain(); err != nil {
		// If it's the flag utility error don't print it,
		// because it was already printed.
		var flagsErr *flags.Error
		if !errors.As(err, &flagsErr) || flagsErr.Type != flags.ErrHelp {
			_, _ = fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
