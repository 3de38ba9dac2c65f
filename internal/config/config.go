// Package config holds operator-level configuration for a Lethe installation:
// where state lives, which person detector to use, document limits, archive
// retention and the HTTP API settings.
//
// Values come from LETHE_* environment variables (a .env file in the working
// directory is loaded first), an optional lethe.config.yaml, and defaults.
// Passwords are never part of this config: they are per-document secrets
// supplied on each call.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Viper keys. Each maps to an env var with the LETHE_ prefix
// (e.g. "ner_url" → LETHE_NER_URL) and to a YAML field in lethe.config.yaml.
const (
	KeyDataDir           = "data_dir"
	KeyDetector          = "detector"
	KeyNERURL            = "ner_url"
	KeyNERTimeout        = "ner_timeout"
	KeyNamesFile         = "names_file"
	KeyPatternsFile      = "patterns_file"
	KeyMaxDocumentMB     = "max_document_mb"
	KeyRetentionDays     = "retention_days"
	KeyRetentionSchedule = "retention_schedule"
	KeyListenAddr        = "listen_addr"
	KeyAPIKeys           = "api_keys"
	KeyRateLimitRPM      = "rate_limit_rpm"
	KeyRateLimitGlobal   = "rate_limit_global_rpm"
)

// Person detector backends.
const (
	DetectorNER       = "ner"
	DetectorGazetteer = "gazetteer"
)

// Defaults.
const (
	DefaultDetector          = DetectorNER
	DefaultNERURL            = "http://localhost:8001"
	DefaultNERTimeout        = 30 * time.Second
	DefaultMaxDocumentMB     = 10
	DefaultRetentionDays     = 0
	DefaultRetentionSchedule = "0 3 * * *"
	DefaultListenAddr        = "127.0.0.1:8080"
	DefaultRateLimitRPM      = 60
	DefaultRateLimitGlobal   = 0
)

// EnvPrefix is the environment variable prefix.
const EnvPrefix = "LETHE"

// Config holds resolved operator-level configuration for a Lethe process.
type Config struct {
	DataDir           string        // Base directory for all state (~/.lethe)
	Detector          string        // "ner" or "gazetteer"
	NERURL            string        // NER sidecar base URL
	NERTimeout        time.Duration // Per-request sidecar timeout
	NamesFile         string        // Name list for the gazetteer detector
	PatternsFile      string        // Extra identifier recognizers layered over the embedded set
	MaxDocumentMB     int           // Maximum document size in MB
	RetentionDays     int           // Archive retention; 0 keeps records forever
	RetentionSchedule string        // Cron expression for the retention purge
	ListenAddr        string        // HTTP API listen address
	APIKeys           []string      // Bearer keys for the HTTP API; empty disables auth
	RateLimitRPM      int           // Requests per minute per client; 0 disables limiting
	RateLimitGlobal   int           // Requests per minute across all clients; 0 disables limiting
}

// ArchiveDBPath returns the full path to the mapping archive SQLite database.
func (c *Config) ArchiveDBPath() string {
	return filepath.Join(c.DataDir, "archive.db")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0o700)
}

// AuthEnabled reports whether the HTTP API requires a bearer key.
func (c *Config) AuthEnabled() bool {
	return len(c.APIKeys) > 0
}

// SetDefaults registers the env binding and default values on the global
// viper instance.
func SetDefaults() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.AutomaticEnv()
	viper.SetDefault(KeyDetector, DefaultDetector)
	viper.SetDefault(KeyNERURL, DefaultNERURL)
	viper.SetDefault(KeyNERTimeout, DefaultNERTimeout)
	viper.SetDefault(KeyMaxDocumentMB, DefaultMaxDocumentMB)
	viper.SetDefault(KeyRetentionDays, DefaultRetentionDays)
	viper.SetDefault(KeyRetentionSchedule, DefaultRetentionSchedule)
	viper.SetDefault(KeyListenAddr, DefaultListenAddr)
	viper.SetDefault(KeyRateLimitRPM, DefaultRateLimitRPM)
	viper.SetDefault(KeyRateLimitGlobal, DefaultRateLimitGlobal)
}

func init() {
	SetDefaults()
}

// LoadDotEnv loads KEY=value pairs from the given files (".env" when none
// are given) into the process environment. Variables already set win.
// Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from Viper (which merges env vars, config
// file, and defaults) and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{
		DataDir:           resolveDataDir(),
		Detector:          strings.ToLower(strings.TrimSpace(viper.GetString(KeyDetector))),
		NERURL:            viper.GetString(KeyNERURL),
		NERTimeout:        viper.GetDuration(KeyNERTimeout),
		NamesFile:         viper.GetString(KeyNamesFile),
		PatternsFile:      viper.GetString(KeyPatternsFile),
		MaxDocumentMB:     viper.GetInt(KeyMaxDocumentMB),
		RetentionDays:     viper.GetInt(KeyRetentionDays),
		RetentionSchedule: viper.GetString(KeyRetentionSchedule),
		ListenAddr:        viper.GetString(KeyListenAddr),
		APIKeys:           splitList(viper.GetStringSlice(KeyAPIKeys)),
		RateLimitRPM:      viper.GetInt(KeyRateLimitRPM),
		RateLimitGlobal:   viper.GetInt(KeyRateLimitGlobal),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func resolveDataDir() string {
	if dir := viper.GetString(KeyDataDir); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lethe"
	}
	return filepath.Join(home, ".lethe")
}

// splitList flattens comma-separated entries, so LETHE_API_KEYS="a,b" and a
// YAML sequence both work.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (c *Config) validate() error {
	switch c.Detector {
	case DetectorNER:
		if c.NERURL == "" {
			return fmt.Errorf("ner_url is required when detector is %q", DetectorNER)
		}
	case DetectorGazetteer:
		if c.NamesFile == "" {
			return fmt.Errorf("names_file is required when detector is %q", DetectorGazetteer)
		}
	default:
		return fmt.Errorf("detector must be %q or %q (got %q)", DetectorNER, DetectorGazetteer, c.Detector)
	}
	if c.NERTimeout <= 0 {
		return fmt.Errorf("ner_timeout must be positive")
	}
	if c.MaxDocumentMB <= 0 {
		return fmt.Errorf("max_document_mb must be positive")
	}
	if c.RetentionDays < 0 {
		return fmt.Errorf("retention_days must not be negative")
	}
	if c.RateLimitRPM < 0 {
		return fmt.Errorf("rate_limit_rpm must not be negative")
	}
	if c.RateLimitGlobal < 0 {
		return fmt.Errorf("rate_limit_global_rpm must not be negative")
	}
	return nil
}
