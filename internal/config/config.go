// Package config loads bridge settings from the environment, an optional
// .env file and command-line flags.
package config

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Keys, also used as environment variable names
const (
	KeyDAMURL         = "DAM_URL"
	KeyAccountKey     = "ACCOUNT_KEY"
	KeyListenAddr     = "LISTEN_ADDR"
	KeyWorkers        = "WORKERS"
	KeyQueueCapacity  = "QUEUE_CAPACITY"
	KeyExtractorPath  = "EXTRACTOR_PATH"
	KeyToolTimeout    = "TOOL_TIMEOUT"
	KeyDAMTimeout     = "DAM_TIMEOUT"
	KeyPreviewMaxDim  = "PREVIEW_MAX_DIMENSION"
	KeyWebhookSecret  = "WEBHOOK_SECRET"
	KeyLogLevel       = "LOG_LEVEL"
	KeyTempDir        = "TEMP_DIR"
	KeyDBOSURL        = "DBOS_SYSTEM_DATABASE_URL"
	KeyDBOSQueueName  = "DBOS_QUEUE_NAME"
	KeyDBOSAppVersion = "DBOS_APP_VERSION"
)

// Config holds every bridge setting
type Config struct {
	DAMURL        string
	AccountKey    string
	ListenAddr    string
	Workers       int
	QueueCapacity int
	ExtractorPath string
	// ToolTimeout bounds one extractor run. Zero means no timeout.
	ToolTimeout time.Duration
	// DAMTimeout bounds one DAM request. Zero means no timeout.
	DAMTimeout    time.Duration
	PreviewMaxDim int
	WebhookSecret string
	LogLevel      slog.Level
	TempDir       string

	DBOSDatabaseURL string
	DBOSQueueName   string
	DBOSAppVersion  string
}

// Durable reports whether the DBOS-backed queue is configured
func (c *Config) Durable() bool {
	return c.DBOSDatabaseURL != ""
}

// Error is returned when required settings are missing or invalid
type Error struct {
	Missing []string
	Invalid map[string]string
}

func (e *Error) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("%s must be set as environment variables", strings.Join(e.Missing, " and ")))
	}
	for _, key := range sortedKeys(e.Invalid) {
		parts = append(parts, fmt.Sprintf("invalid %s: %s", key, e.Invalid[key]))
	}
	return "configuration error: " + strings.Join(parts, "; ")
}

// defaults are applied below environment and flags
var defaults = map[string]any{
	KeyListenAddr:    "0.0.0.0:8080",
	KeyWorkers:       1,
	KeyQueueCapacity: 1024,
	KeyExtractorPath: "clip_extractor",
	KeyToolTimeout:   "0s",
	KeyDAMTimeout:    "0s",
	KeyPreviewMaxDim: 0,
	KeyLogLevel:      "debug",
	KeyDBOSQueueName: "clip-bridge",
}

// New returns a viper instance reading the bridge keys from the environment
// with defaults applied. Flags bound to it take precedence over both.
func New() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for _, key := range []string{KeyDAMURL, KeyAccountKey, KeyWebhookSecret, KeyTempDir, KeyDBOSURL, KeyDBOSAppVersion} {
		v.SetDefault(key, "")
	}
	v.AutomaticEnv()
	return v
}

// BindFlags binds flags by name onto keys, e.g. "listen" -> LISTEN_ADDR.
// Flags that were not set on the command line do not override the environment.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet, names map[string]string) error {
	for flagName, key := range names {
		f := flags.Lookup(flagName)
		if f == nil {
			return fmt.Errorf("unknown flag %q", flagName)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %q: %w", flagName, err)
		}
	}
	return nil
}

// LoadDotEnv loads .env files into the process environment when present.
// Variables already set are left alone.
func LoadDotEnv(files ...string) {
	if err := godotenv.Load(files...); err == nil {
		slog.Debug("Loaded environment file", "files", files)
	}
}

// Load reads and validates the configuration
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		DAMURL:          strings.TrimSpace(v.GetString(KeyDAMURL)),
		AccountKey:      strings.TrimSpace(v.GetString(KeyAccountKey)),
		ListenAddr:      v.GetString(KeyListenAddr),
		Workers:         v.GetInt(KeyWorkers),
		QueueCapacity:   v.GetInt(KeyQueueCapacity),
		ExtractorPath:   v.GetString(KeyExtractorPath),
		PreviewMaxDim:   v.GetInt(KeyPreviewMaxDim),
		WebhookSecret:   v.GetString(KeyWebhookSecret),
		TempDir:         v.GetString(KeyTempDir),
		DBOSDatabaseURL: v.GetString(KeyDBOSURL),
		DBOSQueueName:   v.GetString(KeyDBOSQueueName),
		DBOSAppVersion:  v.GetString(KeyDBOSAppVersion),
	}

	cerr := &Error{Invalid: map[string]string{}}

	if cfg.DAMURL == "" {
		cerr.Missing = append(cerr.Missing, KeyDAMURL)
	}
	if cfg.AccountKey == "" {
		cerr.Missing = append(cerr.Missing, KeyAccountKey)
	}

	var err error
	if cfg.ToolTimeout, err = parseDuration(v.GetString(KeyToolTimeout)); err != nil {
		cerr.Invalid[KeyToolTimeout] = err.Error()
	}
	if cfg.DAMTimeout, err = parseDuration(v.GetString(KeyDAMTimeout)); err != nil {
		cerr.Invalid[KeyDAMTimeout] = err.Error()
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString(KeyLogLevel))); err != nil {
		cerr.Invalid[KeyLogLevel] = err.Error()
	}
	if cfg.Workers < 1 {
		cerr.Invalid[KeyWorkers] = "must be at least 1"
	}
	if cfg.QueueCapacity < 1 {
		cerr.Invalid[KeyQueueCapacity] = "must be at least 1"
	}
	if cfg.PreviewMaxDim < 0 {
		cerr.Invalid[KeyPreviewMaxDim] = "must not be negative"
	}

	if len(cerr.Missing) > 0 || len(cerr.Invalid) > 0 {
		return cfg, cerr
	}
	return cfg, nil
}

// parseDuration accepts Go durations ("90s") or plain seconds ("90")
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		if d < 0 {
			return 0, fmt.Errorf("negative duration %q", s)
		}
		return d, nil
	}
	d, err := time.ParseDuration(s + "s")
	if err != nil {
		return 0, fmt.Errorf("not a duration: %q", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
