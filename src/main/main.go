package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"screen-answer-llm/src/artifact"
	"screen-answer-llm/src/clipboard"
	"screen-answer-llm/src/cliplog"
	"screen-answer-llm/src/config"
	"screen-answer-llm/src/dispatch"
	"screen-answer-llm/src/eventloop"
	"screen-answer-llm/src/hotkey"
	"screen-answer-llm/src/llm"
	"screen-answer-llm/src/logutil"
	"screen-answer-llm/src/notification"
	"screen-answer-llm/src/overlay"
	"screen-answer-llm/src/runtimeinit"
	"screen-answer-llm/src/singleinstance"
	"screen-answer-llm/src/tray"
	"screen-answer-llm/src/worker"
)

const appTitle = "Screen Answer LLM"

// ErrNoResident is returned by --trigger when no resident instance answers.
var ErrNoResident = errors.New("no resident instance is running")

type mainOptions struct {
	trigger    string
	verbose    bool
	apiKeyPath string
	imageDir   string
}

type triggerClient interface {
	Delegate(ctx context.Context, trigger string) (bool, error)
}

func main() {
	// The overlay and the event loop share this thread.
	runtime.LockOSThread()

	if err := runWithArgs(normalizeLegacyArgs(os.Args)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"screen-answer-llm"}
	}

	opts := &mainOptions{}
	cmd := newRootCmd(opts, runWithOptions)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *mainOptions, run func(mainOptions) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "screen-answer-llm",
		Short:         "Capture screen regions and clipboard text and ask a multimodal model about them",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(*opts)
		},
	}

	cmd.Flags().StringVar(&opts.trigger, "trigger", "", "Send a trigger to the running instance and exit ("+triggerNames()+")")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logging")
	cmd.Flags().StringVar(&opts.apiKeyPath, "api-key-path", "", "Path to API key file (highest precedence)")
	cmd.Flags().StringVar(&opts.imageDir, "image-dir", "", "Working directory for captured images")

	return cmd
}

func runWithOptions(opts mainOptions) error {
	if opts.trigger != "" {
		// .env may carry SINGLEINSTANCE_PORT_*; load it before scanning.
		_, _ = config.Load()
		logutil.Setup(logutil.Options{Verbose: opts.verbose})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return delegateTrigger(ctx, opts.trigger, singleinstance.NewClient())
	}
	return runResident(opts)
}

func delegateTrigger(ctx context.Context, name string, client triggerClient) error {
	t, err := eventloop.ParseTrigger(name)
	if err != nil {
		return err
	}
	delegated, err := client.Delegate(ctx, string(t))
	if err != nil {
		return fmt.Errorf("delegation failed: %w", err)
	}
	if !delegated {
		return ErrNoResident
	}
	slog.Info("trigger delegated to resident", "trigger", string(t))
	return nil
}

func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range []string{"trigger", "verbose", "api-key-path", "image-dir"} {
			switch {
			case arg == "-"+name:
				normalized[i] = "--" + name
			case strings.HasPrefix(arg, "-"+name+"="):
				normalized[i] = "-" + arg
			}
		}
	}

	return normalized
}

func triggerNames() string {
	names := make([]string, len(eventloop.Triggers))
	for i, t := range eventloop.Triggers {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

func runResident(opts mainOptions) error {
	// Before any window exists or any metric is read.
	enableDPIAwareness()

	loadOpts := config.LoadOptions{APIKeyPathOverride: opts.apiKeyPath, ImageDirOverride: opts.imageDir}
	cfg, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions:       loadOpts,
		Verbose:           opts.verbose,
		ShowBlockingError: true,
	})
	if err != nil {
		return err
	}
	logMonitorConfiguration()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := singleinstance.NewServer()
	if err := srv.Start(ctx); err != nil {
		if port, ok := singleinstance.DetectResidentPort(ctx); ok {
			return fmt.Errorf("already running on port %d", port)
		}
		return fmt.Errorf("failed to start single-instance server: %w", err)
	}
	defer srv.Close()

	store, err := artifact.New(cfg.ImageDir)
	if err != nil {
		return err
	}
	// Captures never outlive the process that made them.
	if err := store.ClearAll(); err != nil {
		slog.Warn("stale captures not cleared", "dir", store.Dir(), "err", err)
	}

	if err := clipboard.Init(); err != nil {
		return fmt.Errorf("failed to initialize clipboard: %w", err)
	}

	client := llm.New(llm.Config{
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		ImageModel: cfg.ImageModel,
		Providers:  cfg.Providers,
		Timeout:    time.Duration(cfg.RequestTimeoutSec) * time.Second,
	})
	go func() {
		if err := client.Ping(); err != nil {
			slog.Warn("LLM ping failed", "err", err)
			return
		}
		slog.Info("LLM ping succeeded")
	}()

	pool := worker.New(cfg.Workers, worker.DefaultQueue)
	defer pool.Close()

	clips := cliplog.New()
	loop := eventloop.New(eventloop.Options{
		Selector:              overlay.NewSelector(),
		Store:                 store,
		Log:                   clips,
		Dispatcher:            dispatch.New(client, pool, store, clips),
		Sink:                  notification.New(time.Duration(cfg.NotifyDurationMs) * time.Millisecond),
		Clipboard:             clipboard.System{},
		Server:                srv,
		ClearClipboardOnDrain: cfg.ClearClipboardOnDrain,
		OnStatus:              tray.UpdateTooltip,
		OnSelectDone:          hotkey.ResetHeld,
	})
	fire := func(name string) {
		t, err := eventloop.ParseTrigger(name)
		if err != nil {
			slog.Warn("ignoring trigger", "err", err)
			return
		}
		loop.Fire(t)
	}

	bindings := hotkeyBindings(cfg.Hotkeys)
	if err := hotkey.Listen(bindings, fire); err != nil {
		slog.Warn("global hotkeys unavailable", "err", err)
	}

	if cfg.EnvPath != "" {
		go func() {
			err := config.Watch(ctx, cfg.EnvPath, loadOpts, func(c *config.Config) {
				client.SetModels(c.Model, c.ImageModel, c.Providers)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				slog.Warn("config watch stopped", "err", err)
			}
		}()
	}

	if cfg.ClipboardWatch {
		go clipboard.Watch(ctx, func(text string) {
			if clips.Append(text) {
				slog.Info("logged text", "text", logutil.Sanitize(text), "entries", clips.Len())
			}
		})
	}

	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
	}()

	tray.SetAboutExtra(fmt.Sprintf("Resident TCP port: %d", srv.Port()))
	for _, b := range bindings {
		tray.SetAboutExtra(fmt.Sprintf("%s: %s", b.Name, b.Combo))
	}
	go tray.Run(tray.Options{
		Title:    appTitle,
		Tooltip:  appTitle,
		Items:    trayItems(),
		OnSelect: fire,
		OnQuit:   cancel,
	})
	defer tray.Quit()

	slog.Info("resident started", "port", srv.Port(), "image_dir", store.Dir(), "workers", cfg.Workers)
	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("resident stopped")
	return nil
}

func hotkeyBindings(h config.Hotkeys) []hotkey.Binding {
	return []hotkey.Binding{
		{Name: string(eventloop.TriggerCapture), Combo: h.Capture},
		{Name: string(eventloop.TriggerClipboard), Combo: h.Clipboard},
		{Name: string(eventloop.TriggerText), Combo: h.Text},
		{Name: string(eventloop.TriggerImage), Combo: h.Image},
		{Name: string(eventloop.TriggerCombined), Combo: h.Combined},
	}
}

func trayItems() []tray.Item {
	return []tray.Item{
		{Trigger: string(eventloop.TriggerCapture), Title: "Capture region", Tooltip: "Select a screen region to save"},
		{Trigger: string(eventloop.TriggerClipboard), Title: "Log clipboard text", Tooltip: "Append the clipboard text to the log"},
		{Trigger: string(eventloop.TriggerText), Title: "Ask about text", Tooltip: "Send the logged text"},
		{Trigger: string(eventloop.TriggerImage), Title: "Ask about images", Tooltip: "Send every captured image"},
		{Trigger: string(eventloop.TriggerCombined), Title: "Ask about text and image", Tooltip: "Send the logged text with the latest capture"},
		{Trigger: string(eventloop.TriggerClear), Title: "Clear captures", Tooltip: "Delete every captured image"},
	}
}
