package runtimeinit

import (
	"fmt"
	"log/slog"

	"screen-answer-llm/src/config"
	"screen-answer-llm/src/logutil"
	"screen-answer-llm/src/notification"
)

type Options struct {
	LoadOptions config.LoadOptions
	Verbose     bool
	// ShowBlockingError puts a ConfigError in a modal dialog before returning it.
	ShowBlockingError bool
}

// Bootstrap loads configuration, installs logging and validates what startup cannot do
// without. A returned error is a ConfigError; callers exit with status 1.
func Bootstrap(opts Options) (*config.Config, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logutil.Setup(logutil.Options{EnableFileLogging: cfg.EnableFileLogging, Verbose: opts.Verbose})

	if err := cfg.Validate(); err != nil {
		slog.Error("configuration error", "err", err)
		if opts.ShowBlockingError {
			notification.ShowBlockingError("Configuration error", err.Error())
		}
		return nil, err
	}

	slog.Info("configuration loaded",
		"env", cfg.EnvPath,
		"model", cfg.Model,
		"image_model", cfg.ImageModel,
		"image_dir", cfg.ImageDir,
		"workers", cfg.Workers,
		"api_key", logutil.RedactKey(cfg.APIKey),
	)
	return cfg, nil
}
