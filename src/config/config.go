package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultAPIKeyPath = "/run/secrets/api_keys/openrouter"
	APIKeyPathEnvVar  = "OPENROUTER_API_KEY_FILE"
	APIKeyEnvVar      = "OPENROUTER_API_KEY"
	AltConfigEnvVar   = "SCREEN_ANSWER_LLM"

	DefaultModel            = "google/gemini-2.0-flash-001"
	DefaultImageDir         = "img"
	DefaultNotifyDurationMs = 5000

	MinWorkers     = 2
	MaxWorkers     = 4
	DefaultWorkers = 2
)

// ErrMissingCredential is the ConfigError raised when no API key can be resolved.
var ErrMissingCredential = errors.New("missing API credential")

type LoadOptions struct {
	APIKeyPathOverride string
	ImageDirOverride   string
}

// Hotkeys holds one key combination per trigger. Empty disables the binding.
type Hotkeys struct {
	Capture   string
	Clipboard string
	Text      string
	Image     string
	Combined  string
}

type Config struct {
	APIKey                string
	APIKeyPath            string
	EnvPath               string
	Model                 string
	ImageModel            string
	Providers             []string
	ImageDir              string
	Workers               int
	NotifyDurationMs      int
	RequestTimeoutSec     int
	EnableFileLogging     bool
	ClipboardWatch        bool
	ClearClipboardOnDrain bool
	Hotkeys               Hotkeys
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Load configuration from sources in priority order:
	// 1) .env in the application (executable) directory
	// 2) If not found, SCREEN_ANSWER_LLM env var as a path to a config file
	envPath := resolveEnvPath()
	dotenvValues := readDotenvValues(envPath)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	apiKeyPath := resolveAPIKeyPath(opts, dotenvValues)

	imageDir := getEnvWithDefault("IMAGE_DIR", DefaultImageDir)
	if override := strings.TrimSpace(opts.ImageDirOverride); override != "" {
		imageDir = override
	}

	cfg := &Config{
		APIKey:                resolveAPIKey(apiKeyPath),
		APIKeyPath:            apiKeyPath,
		EnvPath:               envPath,
		Model:                 getEnvWithDefault("MODEL", DefaultModel),
		ImageModel:            strings.TrimSpace(os.Getenv("IMAGE_MODEL")),
		Providers:             splitList(os.Getenv("PROVIDERS")),
		ImageDir:              imageDir,
		Workers:               clampWorkers(getEnvInt("WORKERS", DefaultWorkers)),
		NotifyDurationMs:      getEnvInt("NOTIFY_DURATION_MS", DefaultNotifyDurationMs),
		RequestTimeoutSec:     getEnvInt("REQUEST_TIMEOUT_SEC", 0),
		EnableFileLogging:     getEnvBool("ENABLE_FILE_LOGGING", false),
		ClipboardWatch:        getEnvBool("CLIPBOARD_WATCH", false),
		ClearClipboardOnDrain: getEnvBool("CLEAR_CLIPBOARD_ON_DRAIN", true),
		Hotkeys: Hotkeys{
			Capture:   getEnvWithDefault("HOTKEY_CAPTURE", "Ctrl+Alt+Shift+C"),
			Clipboard: getEnvWithDefault("HOTKEY_CLIPBOARD", "Ctrl+Alt+C"),
			Text:      getEnvWithDefault("HOTKEY_TEXT", "Ctrl+Alt+V"),
			Image:     getEnvWithDefault("HOTKEY_IMAGE", "Ctrl+Alt+I"),
			Combined:  getEnvWithDefault("HOTKEY_COMBINED", "Ctrl+Alt+B"),
		},
	}
	if cfg.NotifyDurationMs <= 0 {
		cfg.NotifyDurationMs = DefaultNotifyDurationMs
	}
	if cfg.RequestTimeoutSec < 0 {
		cfg.RequestTimeoutSec = 0
	}

	return cfg, nil
}

// Validate reports the fatal startup conditions. A missing credential wraps ErrMissingCredential.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return &credentialError{path: c.APIKeyPath}
	}
	return nil
}

type credentialError struct{ path string }

func (e *credentialError) Error() string {
	return "OPENROUTER_API_KEY is required. Checked key file " + e.path + " and " + APIKeyEnvVar + " env var"
}

func (e *credentialError) Unwrap() error { return ErrMissingCredential }

func resolveEnvPath() string {
	if execPath, err := os.Executable(); err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(AltConfigEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func readDotenvValues(envPath string) map[string]string {
	if envPath == "" {
		return map[string]string{}
	}

	values, err := godotenv.Read(envPath)
	if err != nil {
		return map[string]string{}
	}

	return values
}

func resolveAPIKeyPath(opts LoadOptions, dotenvValues map[string]string) string {
	keyPath := DefaultAPIKeyPath

	if envPath := strings.TrimSpace(os.Getenv(APIKeyPathEnvVar)); envPath != "" {
		keyPath = envPath
	}

	if dotenvPath := strings.TrimSpace(dotenvValues[APIKeyPathEnvVar]); dotenvPath != "" {
		keyPath = dotenvPath
	}

	if overridePath := strings.TrimSpace(opts.APIKeyPathOverride); overridePath != "" {
		keyPath = overridePath
	}

	return keyPath
}

func resolveAPIKey(keyPath string) string {
	if data, err := os.ReadFile(keyPath); err == nil {
		if fileKey := strings.TrimSpace(string(data)); fileKey != "" {
			return fileKey
		}
	}

	return strings.TrimSpace(os.Getenv(APIKeyEnvVar))
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return defaultValue
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func clampWorkers(n int) int {
	if n < MinWorkers {
		return MinWorkers
	}
	if n > MaxWorkers {
		return MaxWorkers
	}
	return n
}
