package infra

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"execsim/internal/ledger"
	"execsim/internal/record"
	"execsim/pkg/quant"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SEX_"

// Config holds every run setting. Values come from the YAML file, then the
// environment, then command-line flags, in increasing priority.
// Numbers are kept as text so every layer goes through the same parser.
type Config struct {
	Pair       string `yaml:"pair" json:"pair"`
	Quantity   string `yaml:"quantity" json:"quantity"`
	Delay      string `yaml:"delay" json:"delay"`
	Commission string `yaml:"commission" json:"commission"`
	Journal    string `yaml:"journal" json:"journal,omitempty"`
	DumpPath   string `yaml:"dump_path" json:"dump_path"`

	Queue struct {
		Size int `yaml:"size" json:"size"`
		Max  int `yaml:"max" json:"max"`
	} `yaml:"queue" json:"queue"`

	Logging struct {
		Level string `yaml:"level" json:"level"`
	} `yaml:"logging" json:"logging"`
}

// Settings are the parsed, typed form of a Config.
type Settings struct {
	Qty        quant.Decimal
	Delay      time.Duration
	Commission ledger.Commission
	Filter     record.Filter
	LogLevel   slog.Level
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() *Config {
	cfg := &Config{
		Quantity: "1",
		Delay:    "0",
		DumpPath: "panic_dump.json",
	}
	cfg.Queue.Size = 1024
	cfg.Logging.Level = "info"
	return cfg
}

// LoadConfig reads the optional YAML file at path over the defaults, then
// applies .env and environment overrides. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	// .env never overrides variables that are already set
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := overrideWithEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if _, err := c.Settings(); err != nil {
		return err
	}
	if c.Queue.Size <= 0 {
		return fmt.Errorf("queue size must be positive")
	}
	if c.Queue.Max != 0 && c.Queue.Max < c.Queue.Size {
		return fmt.Errorf("queue max %d below queue size %d", c.Queue.Max, c.Queue.Size)
	}
	if c.DumpPath == "" {
		return fmt.Errorf("dump path is required")
	}
	return nil
}

// Settings parses the textual options.
func (c *Config) Settings() (Settings, error) {
	var (
		s   Settings
		err error
	)
	if s.Qty, err = quant.ParseDecimal(c.Quantity); err != nil {
		return s, fmt.Errorf("invalid quantity: %w", err)
	}
	if s.Qty.Sign() <= 0 {
		return s, fmt.Errorf("quantity must be positive: %q", c.Quantity)
	}
	if s.Delay, err = quant.ParseDuration(c.Delay); err != nil {
		return s, err
	}
	if s.Delay < 0 {
		return s, fmt.Errorf("%w: %q is negative", quant.ErrBadDuration, c.Delay)
	}
	if s.Commission, err = ledger.ParseCommission(c.Commission); err != nil {
		return s, err
	}
	if err := s.LogLevel.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return s, fmt.Errorf("invalid log level: %w", err)
	}
	s.Filter = record.NewFilter(c.Pair)
	return s, nil
}

// overrideWithEnv applies SEX_* variables over the file settings.
func overrideWithEnv(cfg *Config) error {
	strs := map[string]*string{
		"PAIR":       &cfg.Pair,
		"QTY":        &cfg.Quantity,
		"DELAY":      &cfg.Delay,
		"COMMISSION": &cfg.Commission,
		"JOURNAL":    &cfg.Journal,
		"DUMP_PATH":  &cfg.DumpPath,
		"LOG_LEVEL":  &cfg.Logging.Level,
	}
	for name, dst := range strs {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"QUEUE_SIZE": &cfg.Queue.Size,
		"QUEUE_MAX":  &cfg.Queue.Max,
	}
	for name, dst := range ints {
		v, ok := os.LookupEnv(EnvPrefix + name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
	}
	return nil
}
