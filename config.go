package rendertest

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/livefir/rendertest/internal/diff"
	"github.com/livefir/rendertest/internal/metrics"
)

const (
	// DefaultWaitTimeout bounds every wait that does not set its own timeout.
	DefaultWaitTimeout = time.Second

	// DefaultMaxRenderPasses bounds how often pending components are
	// re-rendered before a flush gives up.
	DefaultMaxRenderPasses = 100
)

// Config holds the settings of one TestContext.
type Config struct {
	// DefaultWaitTimeout applies to WaitFor* calls given a zero timeout.
	DefaultWaitTimeout time.Duration `yaml:"default_wait_timeout" validate:"gt=0"`

	// RegexPrefix marks expected attribute values that are regular
	// expressions. Empty disables regex matching.
	RegexPrefix string `yaml:"regex_prefix"`

	// IgnoreComments drops comments before markup comparison.
	IgnoreComments bool `yaml:"ignore_comments"`

	// StrictAttributes reports attributes present only in actual markup.
	StrictAttributes bool `yaml:"strict_attributes"`

	// MaxRenderPasses guards against components that keep asking to
	// re-render.
	MaxRenderPasses int `yaml:"max_render_passes" validate:"gte=1,lte=100000"`

	// LogLevel builds a development logger when Logger is nil.
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`

	Logger    *zap.Logger        `yaml:"-"`
	Factories []ComponentFactory `yaml:"-"`
	Metrics   *metrics.Collector `yaml:"-"`

	err error
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		DefaultWaitTimeout: DefaultWaitTimeout,
		RegexPrefix:        diff.DefaultRegexPrefix,
		IgnoreComments:     true,
		MaxRenderPasses:    DefaultMaxRenderPasses,
	}
}

// Option is a functional option for configuring a TestContext
type Option func(*Config)

// WithDefaultWaitTimeout sets the timeout used by waits that pass zero.
func WithDefaultWaitTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.DefaultWaitTimeout = d
	}
}

// WithRegexPrefix sets the marker for regex attribute values.
func WithRegexPrefix(prefix string) Option {
	return func(c *Config) {
		c.RegexPrefix = prefix
	}
}

// WithIgnoreComments controls whether comments take part in comparisons.
func WithIgnoreComments(ignore bool) Option {
	return func(c *Config) {
		c.IgnoreComments = ignore
	}
}

// WithStrictAttributes makes attributes missing from the expected markup
// count as differences.
func WithStrictAttributes(strict bool) Option {
	return func(c *Config) {
		c.StrictAttributes = strict
	}
}

// WithMaxRenderPasses sets the re-render guard.
func WithMaxRenderPasses(n int) Option {
	return func(c *Config) {
		c.MaxRenderPasses = n
	}
}

// WithLogLevel sets the level of the logger built when none is injected.
func WithLogLevel(level string) Option {
	return func(c *Config) {
		c.LogLevel = level
	}
}

// WithLogger injects a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithFactories appends component factories. Earlier factories win.
func WithFactories(factories ...ComponentFactory) Option {
	return func(c *Config) {
		c.Factories = append(c.Factories, factories...)
	}
}

// WithMetrics shares a metrics collector, e.g. across several contexts.
func WithMetrics(collector *metrics.Collector) Option {
	return func(c *Config) {
		c.Metrics = collector
	}
}

// WithConfigFile overlays the settings from a YAML file. Options after it
// override the file.
func WithConfigFile(path string) Option {
	return func(c *Config) {
		if c.err != nil {
			return
		}
		c.err = overlayFile(c, path)
	}
}

// LoadConfigFile reads a YAML config file on top of the defaults.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	if err := overlayFile(&cfg, path); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func overlayFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges.
func (c Config) Validate() error {
	if c.err != nil {
		return c.err
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c Config) buildLogger() (*zap.Logger, error) {
	if c.Logger != nil {
		return c.Logger, nil
	}
	if c.LogLevel == "" {
		return zap.NewNop(), nil
	}
	level, err := zap.ParseAtomicLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = level
	return zc.Build()
}

func (c Config) differOptions() []diff.Option {
	return []diff.Option{
		diff.WithIgnoreComments(c.IgnoreComments),
		diff.WithStrictAttributes(c.StrictAttributes),
		diff.WithRegexPrefix(c.RegexPrefix),
	}
}
