package config

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// SetupWatcher polls setup.yaml by modification time and hands every valid
// revision to Apply. An invalid revision is logged and skipped; the next
// modification is tried again.
type SetupWatcher struct {
	Path     string
	Interval time.Duration
	Apply    func(ctx context.Context, cfg *SetupConfig) error
	Logger   zerolog.Logger

	lastMod time.Time
}

// Start loads and applies the file once, then keeps polling in the
// background until ctx is done. Only the initial load can fail Start.
func (w *SetupWatcher) Start(ctx context.Context) error {
	if w.Path == "" {
		w.Path = "configs/setup.yaml"
	}
	if w.Interval <= 0 {
		w.Interval = 30 * time.Second
	}

	info, err := os.Stat(w.Path)
	if err != nil {
		return err
	}
	cfg, err := LoadSetup(w.Path)
	if err != nil {
		return err
	}
	w.lastMod = info.ModTime()
	w.apply(ctx, cfg)

	go w.loop(ctx)
	return nil
}

func (w *SetupWatcher) loop(ctx context.Context) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll reports whether a new revision was loaded.
func (w *SetupWatcher) poll(ctx context.Context) bool {
	info, err := os.Stat(w.Path)
	if err != nil || !info.ModTime().After(w.lastMod) {
		return false
	}
	// Remember the revision even when it is invalid so it is reported once.
	w.lastMod = info.ModTime()

	cfg, err := LoadSetup(w.Path)
	if err != nil {
		w.Logger.Error().Err(err).Str("path", w.Path).Msg("setup file rejected")
		return false
	}
	w.apply(ctx, cfg)
	return true
}

func (w *SetupWatcher) apply(ctx context.Context, cfg *SetupConfig) {
	if w.Apply == nil {
		return
	}
	if err := w.Apply(ctx, cfg); err != nil {
		w.Logger.Error().Err(err).Msg("failed to apply setup file")
		return
	}
	w.Logger.Info().Str("setup", cfg.String()).Msg("setup file applied")
}
