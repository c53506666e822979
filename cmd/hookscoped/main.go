package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	sddaemon "github.com/coreos/go-systemd/v22/daemon"

	"github.com/modoterra/hookscope/internal/buildinfo"
	"github.com/modoterra/hookscope/pkg/config"
	"github.com/modoterra/hookscope/pkg/daemon"
	"github.com/modoterra/hookscope/pkg/logdir"
	"github.com/modoterra/hookscope/pkg/logging"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Println(buildinfo.String("hookscoped"))
		return
	}

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "hookscoped:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", config.DefaultPath, "path to hookscope.yaml")
	logDir := flag.String("log-dir", "", "override the hook log directory")
	socket := flag.String("socket", "", "override the daemon socket path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *logDir != "" {
		cfg.LogDir = *logDir
	}
	if *socket != "" {
		cfg.Socket = *socket
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}

	logger, err := logging.NewFromConfig(cfg, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	lock, err := daemon.AcquireLock(cfg.Socket)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d := daemon.New(daemon.Options{
		Config:  cfg,
		Dir:     logdir.New(cfg.LogDir),
		Version: buildinfo.Version,
		Logger:  logger,
	})
	defer d.Shutdown()

	pollLoop := daemon.NewPollLoop(d, cfg.DirScanInterval, logger)
	go pollLoop.Run(ctx)

	go func() {
		select {
		case <-d.Server().Ready():
		case <-ctx.Done():
			return
		}
		// Not running under systemd is fine; SdNotify then reports false.
		if _, err := sddaemon.SdNotify(false, sddaemon.SdNotifyReady); err != nil {
			logger.Warn("sd_notify failed", "err", err)
		}
		<-ctx.Done()
		logger.Info("shutting down")
		_, _ = sddaemon.SdNotify(false, sddaemon.SdNotifyStopping)
	}()

	logger.Info("starting hookscoped",
		"version", buildinfo.Version,
		"log_dir", cfg.LogDir,
		"socket", cfg.Socket,
		"config", cfg.FilePath)
	return d.Run(ctx)
}
