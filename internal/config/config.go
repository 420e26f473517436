package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the root configuration for wdrift, stored in ~/.wdrift/config.json.
// The file supports single-line // comments for documentation purposes.
type Config struct {
	// Store selects the storage backend: "json" or "sqlite".
	Store string `json:"store"`
	// DataDir is where records are kept. Empty = ~/.wdrift.
	DataDir string `json:"data_dir"`
	// MinInterval is the shortest sync-to-measurement interval that does not
	// trigger a precision warning.
	MinInterval Duration `json:"min_interval"`
	// MaxDailyRate rejects measurements above this many seconds per day.
	// Zero disables the check.
	MaxDailyRate float64       `json:"max_daily_rate"`
	NTP          NTPConfig     `json:"ntp"`
	Capture      CaptureConfig `json:"capture"`
}

// NTPConfig holds the true-time source settings.
type NTPConfig struct {
	Servers []string `json:"servers"`
	Timeout Duration `json:"timeout"`
}

// CaptureConfig holds the click capture settings.
type CaptureConfig struct {
	// Timeout is how long to wait for the click before giving up.
	Timeout Duration `json:"timeout"`
}

// Duration is a time.Duration written as a string such as "24h" or "70s".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"24h\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

const (
	// DefaultStore is the backend used when none is configured.
	DefaultStore = "json"
	// DefaultMinInterval is one day, below which click jitter dominates.
	DefaultMinInterval = Duration(24 * time.Hour)
	// DefaultNTPTimeout matches a typical SNTP read timeout.
	DefaultNTPTimeout = Duration(2 * time.Second)
	// DefaultCaptureTimeout is a little more than one revolution of the
	// seconds hand.
	DefaultCaptureTimeout = Duration(70 * time.Second)
)

// DefaultNTPServers are queried concurrently; the fastest valid answer wins.
var DefaultNTPServers = []string{"time.google.com", "pool.ntp.org"}

// defaultConfig returns a Config pre-filled with sensible defaults.
func defaultConfig() Config {
	return Config{
		Store:       DefaultStore,
		MinInterval: DefaultMinInterval,
		NTP: NTPConfig{
			Servers: append([]string(nil), DefaultNTPServers...),
			Timeout: DefaultNTPTimeout,
		},
		Capture: CaptureConfig{
			Timeout: DefaultCaptureTimeout,
		},
	}
}

// configTemplate is the annotated config written on first run.
// Lines whose trimmed content starts with // are stripped before JSON parsing,
// allowing human-readable documentation inside the file.
const configTemplate = `// wdrift configuration – ~/.wdrift/config.json
//
// All settings are optional; the built-in defaults shown below work out of
// the box. Command-line flags override anything set here.
{
  // Storage backend: "json" (one readable file per watch) or "sqlite".
  "store": "json",

  // Data directory. Leave empty to use ~/.wdrift.
  "data_dir": "",

  // Measurements taken sooner than this after their sync print a
  // precision warning. Click timing jitter is divided by the elapsed days,
  // so longer intervals give better estimates.
  "min_interval": "24h0m0s",

  // Reject measurements whose rate exceeds this many seconds per day.
  // A very inaccurate watch can drift by more than half a minute between
  // clicks, which silently folds the result. 0 disables the check.
  "max_daily_rate": 0,

  // ── True time ────────────────────────────────────────────────────────────
  "ntp": {
    // Queried concurrently; the answer with the lowest round trip wins.
    "servers": ["time.google.com", "pool.ntp.org"],
    "timeout": "2s"
  },

  // ── Click capture ────────────────────────────────────────────────────────
  "capture": {
    // Give up if no click arrives within this time.
    "timeout": "1m10s"
  }
}
`

// FilePath returns the path to ~/.wdrift/config.json.
func FilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".wdrift", "config.json"), nil
}

// stripLineComments removes lines whose leading non-whitespace content starts
// with //. Only full-line comments are handled; inline comments are not stripped.
func stripLineComments(data []byte) []byte {
	var out []byte
	for _, line := range bytes.Split(data, []byte("\n")) {
		if bytes.HasPrefix(bytes.TrimLeft(line, " \t"), []byte("//")) {
			continue
		}
		out = append(out, line...)
		out = append(out, '\n')
	}
	return out
}

// Load reads ~/.wdrift/config.json, creating it with annotated defaults on
// first run.
func Load() (Config, error) {
	path, err := FilePath()
	if err != nil {
		return defaultConfig(), err
	}
	return LoadFile(path)
}

// LoadFile reads the config at path, creating it with annotated defaults if
// it does not exist. Lines starting with // are treated as comments and
// stripped before JSON parsing.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		// First run: write the annotated template so users can discover options.
		if writeErr := writeDefault(path); writeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create config file %s: %v\n", path, writeErr)
		}
		return defaultConfig(), nil
	}
	if err != nil {
		return defaultConfig(), fmt.Errorf("reading config file %s: %w", path, err)
	}

	cleaned := stripLineComments(data)
	var cfg Config
	if err := json.Unmarshal(cleaned, &cfg); err != nil {
		return defaultConfig(), fmt.Errorf("parsing config file %s: %w\nTip: delete the file to regenerate defaults", path, err)
	}

	// Fill zero-value fields with built-in defaults so callers always get
	// a usable Config even if the user only partially fills in the file.
	if cfg.Store == "" {
		cfg.Store = DefaultStore
	}
	if cfg.MinInterval == 0 {
		cfg.MinInterval = DefaultMinInterval
	}
	if len(cfg.NTP.Servers) == 0 {
		cfg.NTP.Servers = append([]string(nil), DefaultNTPServers...)
	}
	if cfg.NTP.Timeout <= 0 {
		cfg.NTP.Timeout = DefaultNTPTimeout
	}
	if cfg.Capture.Timeout <= 0 {
		cfg.Capture.Timeout = DefaultCaptureTimeout
	}
	if cfg.MaxDailyRate < 0 {
		return defaultConfig(), fmt.Errorf("config file %s: max_daily_rate must not be negative", path)
	}

	return cfg, nil
}

// writeDefault creates the config directory and writes the annotated default
// config template.
func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o600); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}
