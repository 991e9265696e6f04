package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"screen-answer-llm/src/config"
	"screen-answer-llm/src/llm"
	"screen-answer-llm/src/logutil"
	"screen-answer-llm/src/prompt"
)

const (
	maxFileSizeMB = 10
	maxFileSize   = maxFileSizeMB * 1024 * 1024
)

var errNoInput = errors.New("nothing to ask: pass --text, --file or both")

type cliOptions struct {
	text       string
	filePath   string
	jsonOutput bool
	verbose    bool
	apiKeyPath string
}

type generator interface {
	Generate(ctx context.Context, parts []llm.Part) (string, error)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(normalizeLegacyArgs(os.Args))
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"answer-tool"}
	}

	opts := &cliOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "answer-tool",
		Short:         "Ask a multimodal model one question about text and/or an image",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithOptions(*opts)
		},
	}

	cmd.Flags().StringVar(&opts.text, "text", "", "Question text")
	cmd.Flags().StringVar(&opts.filePath, "file", "", "Path to PNG/JPEG file (use '-' for stdin)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")
	cmd.Flags().StringVar(&opts.apiKeyPath, "api-key-path", "", "Path to API key file (highest precedence)")

	return cmd
}

func runWithOptions(opts cliOptions) error {
	// Configure logging BEFORE any other operations.
	if opts.verbose {
		logutil.Setup(logutil.Options{Verbose: true})
	} else {
		slog.SetDefault(slog.New(tint.NewHandler(io.Discard, nil)))
	}

	if strings.TrimSpace(opts.text) == "" && opts.filePath == "" {
		return errNoInput
	}

	cfg, err := config.LoadWithOptions(config.LoadOptions{APIKeyPathOverride: opts.apiKeyPath})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Debug("config loaded", "model", cfg.Model, "image_model", cfg.ImageModel, "api_key_path", cfg.APIKeyPath)
	if err := cfg.Validate(); err != nil {
		return err
	}

	client := llm.New(llm.Config{
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		ImageModel: cfg.ImageModel,
		Providers:  cfg.Providers,
		Timeout:    time.Duration(cfg.RequestTimeoutSec) * time.Second,
	})
	slog.Debug("LLM client ready", "api_key", logutil.RedactKey(cfg.APIKey))

	q, err := buildQuery(opts, os.Stdin)
	if err != nil {
		return err
	}
	return ask(context.Background(), client, q, opts.jsonOutput, os.Stdout)
}

type query struct {
	kind   string
	source string
	parts  []llm.Part
}

// buildQuery picks the template from which inputs are present, like the resident's
// text, image and combined triggers.
func buildQuery(opts cliOptions, stdin io.Reader) (query, error) {
	text := strings.TrimSpace(opts.text)
	if opts.filePath == "" {
		if text == "" {
			return query{}, errNoInput
		}
		return query{kind: "text", parts: prompt.Text(text)}, nil
	}

	img, err := readImage(opts.filePath, stdin)
	if err != nil {
		return query{}, err
	}
	if text == "" {
		return query{kind: "image", source: opts.filePath, parts: prompt.Image(img)}, nil
	}
	return query{kind: "combined", source: opts.filePath, parts: prompt.Combined(text, img)}, nil
}

func readImage(filePath string, stdin io.Reader) (llm.Part, error) {
	var (
		data []byte
		err  error
	)
	if filePath == "-" {
		slog.Debug("reading image from stdin")
		data, err = io.ReadAll(io.LimitReader(stdin, maxFileSize+1))
		if err != nil {
			return llm.Part{}, fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		slog.Debug("reading image", "path", filePath)
		data, err = os.ReadFile(filePath)
		if err != nil {
			return llm.Part{}, fmt.Errorf("failed to read file %s: %w", filePath, err)
		}
	}

	if len(data) == 0 {
		return llm.Part{}, fmt.Errorf("input file is empty")
	}
	if len(data) > maxFileSize {
		return llm.Part{}, fmt.Errorf("input file exceeds maximum size of %d MB", maxFileSizeMB)
	}
	return prompt.DecodeImage(data)
}

type answerResult struct {
	Answer    string  `json:"answer"`
	Kind      string  `json:"kind"`
	Source    string  `json:"source,omitempty"`
	Timestamp string  `json:"timestamp"`
	Duration  float64 `json:"duration_seconds"`
}

func ask(ctx context.Context, gen generator, q query, jsonOutput bool, out io.Writer) error {
	start := time.Now()
	answer, err := gen.Generate(ctx, q.parts)
	elapsed := time.Since(start)
	if err != nil {
		slog.Debug("query failed", "kind", q.kind, "elapsed", elapsed, "err", err)
		return fmt.Errorf("query failed: %w", err)
	}
	if answer == "" {
		return fmt.Errorf("query failed: %w", llm.ErrEmptyAnswer)
	}
	slog.Debug("query answered", "kind", q.kind, "elapsed", elapsed, "answer", logutil.Sanitize(answer))

	if !jsonOutput {
		_, err := fmt.Fprint(out, answer)
		return err
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(answerResult{
		Answer:    answer,
		Kind:      q.kind,
		Source:    q.source,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Duration:  elapsed.Seconds(),
	}); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
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
		for _, name := range []string{"text", "file", "json", "verbose", "api-key-path"} {
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
