package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"gamed/internal/common/fsutil"
	"gamed/internal/config"
	"gamed/internal/httpapi"
	"gamed/internal/orchestrator"
)

func main() {
	// Flags with environment variable defaults
	defaultConfig := "config.toml"
	if v := os.Getenv("GAMED_CONFIG"); v != "" {
		defaultConfig = v
	}
	configPath := flag.String("config", defaultConfig, "Path to config file (.toml, .yaml or .json)")
	addrOverride := flag.String("addr", os.Getenv("GAMED_ADDR"), "HTTP listen address (overrides config)")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", *configPath).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" {
		logger = logger.Level(lvl)
	}

	addr := cfg.Addr
	if *addrOverride != "" {
		addr = *addrOverride
	}
	if addr == "" {
		addr = "127.0.0.1:8080"
	}

	dataDir, err := fsutil.ExpandHome(cfg.DataDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("resolving data dir")
	}
	if dataDir == "" {
		dataDir = defaultDataDir()
	}
	exePath, err := fsutil.ExpandHome(cfg.ExecutablePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("resolving executable path")
	}
	if !fsutil.PathExists(exePath) {
		logger.Warn().Str("path", exePath).Msg("game server executable not found; launches will fail")
	}

	orch := orchestrator.New(orchestrator.Config{
		ExecutablePath: exePath,
		PortLow:        cfg.PortLow,
		PortHigh:       cfg.PortHigh,
		PublicAddress:  cfg.PublicAddress,
		DataDir:        dataDir,
		AdminPassword:  cfg.AdminPassword,
		IdleTimeout:    time.Duration(cfg.IdleTimeoutSec) * time.Second,
		ReadyTimeout:   time.Duration(cfg.ReadyTimeoutMS) * time.Millisecond,
		Logger:         logger,
	})

	httpapi.SetLogger(logger)
	mux := httpapi.NewMux(orch)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.Info().Str("addr", addr).Str("data_dir", dataDir).Msg("gamed listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	orch.Shutdown(ctx)
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown error")
	}
}

// defaultDataDir follows the XDG convention with a home-relative fallback.
func defaultDataDir() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return filepath.Join(v, "gamed")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "gamed")
	}
	return filepath.Join(home, ".local", "share", "gamed")
}
