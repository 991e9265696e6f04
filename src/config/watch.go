package config

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
)

const reloadDebounce = 250 * time.Millisecond

// Watch reloads the configuration whenever the .env file at envPath changes and hands the
// fresh Config to onChange. The parent directory is watched because editors usually replace
// the file instead of writing it in place. Watch blocks until ctx is done.
func Watch(ctx context.Context, envPath string, opts LoadOptions, onChange func(*Config)) error {
	if envPath == "" {
		return errors.New("no config file to watch")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(envPath)); err != nil {
		return err
	}
	target := filepath.Clean(envPath)

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			// Load never overrides variables already in the environment, so re-apply the file first.
			if err := godotenv.Overload(envPath); err != nil {
				slog.Warn("config reload failed", "path", envPath, "err", err)
				continue
			}
			cfg, err := LoadWithOptions(opts)
			if err != nil {
				slog.Warn("config reload failed", "path", envPath, "err", err)
				continue
			}
			slog.Info("config reloaded", "path", envPath, "model", cfg.Model, "image_model", cfg.ImageModel)
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("config watcher error", "err", err)
		}
	}
}
