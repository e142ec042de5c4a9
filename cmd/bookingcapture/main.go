package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/knexpress/booking-capture/internal/app"
	"github.com/knexpress/booking-capture/internal/config"
	"github.com/knexpress/booking-capture/internal/server"
	"github.com/knexpress/booking-capture/internal/store"
	"github.com/knexpress/booking-capture/internal/validate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := config.NewLogger(cfg.Environment)

	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath, err = defaultDBPath()
		if err != nil {
			logger.Error("failed to resolve data directory", "error", err)
			os.Exit(1)
		}
	}

	st, err := store.New(dbPath)
	if err != nil {
		logger.Error("failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	profile, err := config.ProfileFor(cfg.DeviceClass)
	if err != nil {
		logger.Error("invalid device class", "error", err)
		os.Exit(1)
	}

	var validator validate.Validator
	if cfg.ValidatorURL != "" {
		clientCfg := validate.DefaultClientConfig()
		clientCfg.BaseURL = cfg.ValidatorURL
		clientCfg.Timeout = time.Duration(cfg.ValidatorTimeout) * time.Second
		validator = validate.NewClient(clientCfg)
	} else {
		if cfg.IsProduction() {
			logger.Error("VALIDATOR_URL is required in production")
			os.Exit(1)
		}
		logger.Warn("no validator configured, accepting all captures")
		validator = validate.NewStub()
	}

	engine := app.New(app.Config{
		Store:     st,
		CameraID:  cfg.CameraID,
		Profile:   profile,
		Validator: validator,
		Logger:    logger,
	})
	if err := engine.Start(); err != nil {
		logger.Error("failed to start capture engine", "error", err)
		os.Exit(1)
	}
	defer engine.Stop()

	webDir := findWebDir()
	if webDir != "" {
		logger.Info("serving static files", "dir", webDir)
	}

	srv := server.New(server.Config{
		App:       engine,
		Store:     st,
		Logger:    logger,
		StaticDir: webDir,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(addr)
	}()
	logger.Info("server listening", "addr", addr, "env", cfg.Environment)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// defaultDBPath places the database under ~/.booking-capture.
func defaultDBPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	dataDir := filepath.Join(homeDir, ".booking-capture")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "bookings.db"), nil
}

// findWebDir searches for the guidance UI in common locations. Returns the
// first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if absPath, err := filepath.Abs(p); err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".booking-capture", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
