// Package config loads application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (ENGRAM_* overrides)
//  2. Config file (<dataDir>/config.yaml)
//  3. Default values
//
// The data directory itself is resolved from ENGRAM_DATA_DIR when set,
// otherwise ~/.engram. Everything the process persists (database, session
// state, config file) lives under it.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/viper"

	"github.com/engramdev/engram/internal/memory"
)

var (
	// ErrInvalidMaxMemories indicates max_memories is negative.
	ErrInvalidMaxMemories = errors.New("invalid max_memories")

	// ErrMissingDBPath indicates the database path resolved to empty.
	ErrMissingDBPath = errors.New("missing db_path")
)

// DataDirEnv overrides the default data directory when set.
const DataDirEnv = "ENGRAM_DATA_DIR"

// DefaultSearchLimit is the result count used when search_limit is unset
// or invalid.
const DefaultSearchLimit = 10

// DefaultCategories returns the advisory category set. The store accepts
// arbitrary category strings; this list drives tool descriptions and the
// categories resource.
func DefaultCategories() []string {
	return slices.Clone(memory.DefaultCategories)
}

// Config stores application configuration.
type Config struct {
	// DBPath is the SQLite database file location.
	DBPath string `mapstructure:"db_path" json:"db_path"`

	// Categories replaces the advisory category set when non-empty.
	Categories []string `mapstructure:"categories" json:"categories"`

	// MaxMemories caps the store during maintenance eviction. Zero means
	// unlimited; negative values fail validation.
	MaxMemories int `mapstructure:"max_memories" json:"max_memories"`

	// AutoRecall registers the memory-recall prompt, enables the
	// capability prompt injector, and triggers the startup metadata scan.
	AutoRecall bool `mapstructure:"auto_recall" json:"auto_recall"`

	// AutoExtract enables mistake extraction through memory_observe.
	AutoExtract bool `mapstructure:"auto_extract" json:"auto_extract"`

	// SearchLimit is the default result count for memory_search. Values
	// below 1 are ignored and the default kept.
	SearchLimit int `mapstructure:"search_limit" json:"search_limit"`

	// GlobalMemories permits global-scoped writes. When false, global
	// writes are rejected and the default read scope narrows to project.
	GlobalMemories bool `mapstructure:"global_memories" json:"global_memories"`

	// AgentModel is advertised in the capability prompt so the host can
	// route memory summarization to a specific model.
	AgentModel string `mapstructure:"agent_model" json:"agent_model"`

	// DataDir is resolved at load time, not read from the config file.
	DataDir string `mapstructure:"-" json:"data_dir"`
}

// DataDir resolves the data directory: $ENGRAM_DATA_DIR when set,
// otherwise ~/.engram.
func DataDir() (string, error) {
	if dir := os.Getenv(DataDirEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting user home directory: %w", err)
	}
	return filepath.Join(home, ".engram"), nil
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	dataDir, err := DataDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(dataDir)

	setDefaults(dataDir)
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("no config file found, using defaults", "search_path", dataDir)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}
	cfg.DataDir = dataDir

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(dataDir string) {
	viper.SetDefault("db_path", filepath.Join(dataDir, "engram.db"))
	viper.SetDefault("categories", DefaultCategories())
	viper.SetDefault("max_memories", 0)
	viper.SetDefault("auto_recall", true)
	viper.SetDefault("auto_extract", true)
	viper.SetDefault("search_limit", DefaultSearchLimit)
	viper.SetDefault("global_memories", true)
	viper.SetDefault("agent_model", "")
}

func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("db_path", "ENGRAM_DB_PATH")
	mustBind("categories", "ENGRAM_CATEGORIES")
	mustBind("max_memories", "ENGRAM_MAX_MEMORIES")
	mustBind("auto_recall", "ENGRAM_AUTO_RECALL")
	mustBind("auto_extract", "ENGRAM_AUTO_EXTRACT")
	mustBind("search_limit", "ENGRAM_SEARCH_LIMIT")
	mustBind("global_memories", "ENGRAM_GLOBAL_MEMORIES")
	mustBind("agent_model", "ENGRAM_AGENT_MODEL")

	// NOTE: ENGRAM_DATA_DIR is read directly in DataDir, not via Viper,
	// because it decides where Viper looks for the config file.
}

// normalize repairs recoverable misconfiguration instead of failing.
func (c *Config) normalize() {
	if c.SearchLimit < 1 {
		slog.Debug("ignoring invalid search_limit, keeping default",
			"value", c.SearchLimit, "default", DefaultSearchLimit)
		c.SearchLimit = DefaultSearchLimit
	}
	if len(c.Categories) == 0 {
		c.Categories = DefaultCategories()
	}
}

// Validate rejects configuration the rest of the process cannot run with.
func (c *Config) Validate() error {
	if c.MaxMemories < 0 {
		return fmt.Errorf("%w: %d (must be zero or positive)", ErrInvalidMaxMemories, c.MaxMemories)
	}
	if c.DBPath == "" {
		return ErrMissingDBPath
	}
	return nil
}
