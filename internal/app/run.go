// Package app wires claimd's components together and runs the process
// until a shutdown signal arrives.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/flemzord/claimd/internal/claim"
	"github.com/flemzord/claimd/internal/config"
	"github.com/flemzord/claimd/internal/cron"
	"github.com/flemzord/claimd/internal/gateway"
	"github.com/flemzord/claimd/internal/store"
	"github.com/flemzord/claimd/internal/telegram"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Params configures the main application loop.
type Params struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version is injected at build time via ldflags.
	Version string
}

// Run loads configuration, performs startup recovery, starts the gateway
// and optional scheduler, triggers an initial run, and blocks until a
// shutdown signal is received.
func Run(params Params) error {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	logger.Info("claimd starting", "version", params.Version, "store", cfg.Store.Backend)

	st, err := store.Open(cfg.Store.Backend, cfg.Store.Path)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	// Crash recovery must finish before any trigger is served.
	recovered, err := claim.RecoverStale(context.Background(), st, time.Now(), logger)
	if err != nil {
		return err
	}
	if recovered > 0 {
		logger.Info("startup recovery complete", "recovered", recovered)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metrics := claim.NewMetrics(reg)

	client := telegram.NewClient(cfg.Bridge.BaseURL)
	claimer := telegram.NewClaimer(client, telegram.Config{
		TargetPeer:   cfg.Bridge.TargetPeer,
		ClaimCommand: cfg.Bridge.ClaimCommand,
		ButtonLabel:  cfg.Bridge.ButtonLabel,
	}, logger)

	proc := claim.NewProcessor(st, claimer, cfg.Run.AccountTimeout, metrics, logger)
	runner := claim.NewRunner(st, proc, &claim.Guard{}, cfg.Cooldown(), cfg.Run.AccountDelay, metrics, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw := gateway.New(cfg.Gateway, runner, st, reg, logger)
	if err := gw.Start(ctx); err != nil {
		return err
	}

	var sched *cron.Scheduler
	if cfg.Run.Schedule != "" {
		sched, err = cron.NewScheduler(ctx, runner, cfg.Run.Schedule, logger)
		if err != nil {
			return err
		}
		sched.Start()
	}

	// Startup counts as a trigger. A rejection cannot happen this early,
	// but the guard path is the same either way.
	if err := runner.Trigger(ctx); err != nil {
		logger.Warn("startup run not triggered", "error", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	sig := <-sigCh
	logger.Info("shutdown signal received", "signal", sig.String())

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if sched != nil {
		_ = sched.Stop(shutdownCtx)
	}
	if err := gw.Stop(shutdownCtx); err != nil {
		logger.Error("gateway shutdown failed", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/claimd/claimd.yaml → ~/.config/claimd/claimd.yaml → ./claimd.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "claimd", "claimd.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "claimd", "claimd.yaml"))
	}

	candidates = append(candidates, "claimd.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}
