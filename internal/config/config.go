// Package config loads the geointerrupt YAML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/randomizedcoder/geointerrupt/internal/logging"
)

// Deferred dispatch modes.
const (
	DeferredAuto = "auto"
	DeferredOn   = "on"
	DeferredOff  = "off"
)

// Deferred queue kinds.
const (
	QueueSharded = "sharded"
	QueueChannel = "channel"
)

// Defaults applied to unset fields.
const (
	DefaultSignal        = "SIGINT"
	DefaultLogLevel      = "info"
	DefaultQueueCapacity = 64
	DefaultQueueShards   = 4

	// MaxQueueCapacity is the largest accepted queue_capacity.
	MaxQueueCapacity = 1 << 16
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the geointerrupt configuration file.
type Config struct {
	Signal           string `yaml:"signal"`
	LogLevel         string `yaml:"log_level"`
	LogFormat        string `yaml:"log_format"`
	DeferredDispatch string `yaml:"deferred_dispatch"`
	DeferredQueue    string `yaml:"deferred_queue"`
	QueueCapacity    int    `yaml:"queue_capacity"`
	QueueShards      int    `yaml:"queue_shards"`
	MetricsAddr      string `yaml:"metrics_addr,omitempty"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// Load reads the configuration at path, applies environment overrides and
// defaults, and validates the result. An empty path yields the defaults
// plus environment overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}
		f, err := os.Open(absPath)
		if err != nil {
			return nil, fmt.Errorf("open config file: %w", err)
		}
		defer f.Close()

		cfg, err = Decode(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", absPath, err)
		}
	}

	cfg.ApplyEnv()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode parses YAML from r. Unknown keys are rejected. An empty document
// decodes to a zero Config.
func Decode(r io.Reader) (*Config, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	var cfg Config
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &cfg, nil
}

// ApplyEnv overrides fields from GEOINTERRUPT_* environment variables.
// Numeric values that do not parse as positive integers are ignored.
func (c *Config) ApplyEnv() {
	if value := strings.TrimSpace(os.Getenv("GEOINTERRUPT_SIGNAL")); value != "" {
		c.Signal = value
	}
	if value := strings.TrimSpace(os.Getenv("GEOINTERRUPT_LOG_LEVEL")); value != "" {
		c.LogLevel = value
	}
	if value := strings.TrimSpace(os.Getenv("GEOINTERRUPT_LOG_FORMAT")); value != "" {
		c.LogFormat = value
	}
	if value := strings.TrimSpace(os.Getenv("GEOINTERRUPT_DEFERRED_DISPATCH")); value != "" {
		c.DeferredDispatch = value
	}
	if value := strings.TrimSpace(os.Getenv("GEOINTERRUPT_DEFERRED_QUEUE")); value != "" {
		c.DeferredQueue = value
	}
	if value := os.Getenv("GEOINTERRUPT_QUEUE_CAPACITY"); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			c.QueueCapacity = n
		}
	}
	if value := os.Getenv("GEOINTERRUPT_QUEUE_SHARDS"); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			c.QueueShards = n
		}
	}
	if value := strings.TrimSpace(os.Getenv("GEOINTERRUPT_METRICS_ADDR")); value != "" {
		c.MetricsAddr = value
	}
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Signal == "" {
		c.Signal = DefaultSignal
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = logging.FormatText
	}
	if c.DeferredDispatch == "" {
		c.DeferredDispatch = DeferredAuto
	}
	if c.DeferredQueue == "" {
		c.DeferredQueue = QueueSharded
	}
	if c.QueueCapacity == 0 {
		c.QueueCapacity = DefaultQueueCapacity
	}
	if c.QueueShards == 0 {
		c.QueueShards = DefaultQueueShards
	}
}

// Validate reports every invalid field, joined.
func (c *Config) Validate() error {
	var errs []error
	if _, err := ParseSignal(c.Signal); err != nil {
		errs = append(errs, fmt.Errorf("signal: %w", err))
	}
	if _, err := logging.New(c.LogLevel, c.LogFormat, io.Discard); err != nil {
		errs = append(errs, err)
	}
	switch c.DeferredDispatch {
	case DeferredAuto, DeferredOn, DeferredOff:
	default:
		errs = append(errs, fmt.Errorf("deferred_dispatch %q: must be %s, %s or %s",
			c.DeferredDispatch, DeferredAuto, DeferredOn, DeferredOff))
	}
	switch c.DeferredQueue {
	case QueueSharded, QueueChannel:
	default:
		errs = append(errs, fmt.Errorf("deferred_queue %q: must be %s or %s",
			c.DeferredQueue, QueueSharded, QueueChannel))
	}
	if c.QueueCapacity < 1 || c.QueueCapacity > MaxQueueCapacity {
		errs = append(errs, fmt.Errorf("queue_capacity %d: must be between 1 and %d", c.QueueCapacity, MaxQueueCapacity))
	}
	if c.QueueShards < 1 {
		errs = append(errs, fmt.Errorf("queue_shards %d: must be positive", c.QueueShards))
	}
	if c.QueueShards > c.QueueCapacity {
		errs = append(errs, fmt.Errorf("queue_shards %d: exceeds queue_capacity %d", c.QueueShards, c.QueueCapacity))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// Deferred resolves DeferredDispatch against the platform default.
func (c *Config) Deferred(platform bool) bool {
	switch c.DeferredDispatch {
	case DeferredOn:
		return true
	case DeferredOff:
		return false
	default:
		return platform
	}
}

// InterruptSignal returns the parsed interrupt signal.
func (c *Config) InterruptSignal() (os.Signal, error) {
	return ParseSignal(c.Signal)
}

// Marshal renders c as YAML.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}

func normalizeSignalName(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name != "" && !strings.HasPrefix(name, "SIG") {
		name = "SIG" + name
	}
	return name
}
