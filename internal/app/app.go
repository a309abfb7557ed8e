package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/five82/perch/internal/config"
	"github.com/five82/perch/internal/logging"
	"github.com/five82/perch/internal/metrics"
	"github.com/five82/perch/internal/prefs"
	"github.com/five82/perch/internal/social"
	"github.com/five82/perch/internal/ui"
)

// Options configure the perch application. Non-zero fields override the
// config file.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/perch/prefs.toml
	PollEvery  int    // seconds
	UserID     int64
	APIURL     string
}

// Run boots the perch TUI until the user quits or the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyOverrides(&cfg, opts)

	logger, closer, err := logging.Open(cfg.LogPath(), cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer closer.Close()

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.MetricsAddr, reg, logger)
	}

	client, err := social.NewClient(cfg.APIURL,
		social.WithTimeout(cfg.RequestTimeout),
		social.WithRateLimit(cfg.RequestsPerSecond, cfg.RequestBurst),
		social.WithMetrics(collector),
	)
	if err != nil {
		return fmt.Errorf("init api client: %w", err)
	}

	core := NewCore(ctx, client, cfg.PollInterval(), logger, collector)
	defer core.Close()

	logger.Info("perch starting",
		"api", client.BaseURL(),
		"user_id", cfg.UserID,
		"poll_interval", cfg.PollInterval().String(),
	)

	// Selecting the configured user starts the notification poll.
	if cfg.UserID > 0 {
		core.Session.Set(cfg.UserID)
	}

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}
	userPrefs, _ := prefs.Load(prefsPath)

	err = ui.Run(ui.Options{
		Context:   ctx,
		Store:     core.Store,
		Session:   core.Session,
		Refresher: core.Refresher,
		Actions:   core.Actions,
		LogPath:   cfg.LogPath(),
		PollTick:  ui.DefaultUIInterval,
		ThemeName: userPrefs.Theme,
		PrefsPath: prefsPath,
		LastView:  userPrefs.LastView,
	})
	if err != nil {
		logger.Error("ui exited", "error", err)
		return err
	}
	logger.Info("perch stopped")
	return nil
}

// applyOverrides layers command-line values over the loaded config.
func applyOverrides(cfg *config.Config, opts Options) {
	if opts.PollEvery > 0 {
		cfg.PollSeconds = opts.PollEvery
	}
	if opts.UserID > 0 {
		cfg.UserID = opts.UserID
	}
	if v := strings.TrimSpace(opts.APIURL); v != "" {
		cfg.APIURL = v
	}
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *slog.Logger) {
	logger.Info("metrics listener starting", "addr", addr)
	if err := metrics.Serve(ctx, addr, reg, logger); err != nil {
		logger.Warn("metrics listener stopped", "addr", addr, "error", err)
	}
}
