// Package config loads keeptree configuration.
//
// Precedence, highest first: runtime overrides, command-line flags bound by
// the caller, KEEPTREE_* environment variables, the YAML config file, and
// built-in defaults.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "KEEPTREE"

// ErrInvalidConfig is matched by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the decoded configuration.
type Config struct {
	// Connection is a connection string understood by pkg/connect.
	Connection string `mapstructure:"connection"`

	// Container is the remote container name.
	Container string `mapstructure:"container"`

	// RateLimit caps remote calls per second. Zero is unlimited.
	RateLimit float64 `mapstructure:"rate_limit"`

	// Timeout bounds a whole command. Zero means no deadline.
	Timeout time.Duration `mapstructure:"timeout"`

	Logging LoggingConfig `mapstructure:"logging"`
	Upload  UploadConfig  `mapstructure:"upload"`
}

// LoggingConfig configures the CLI logger.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Profile string `mapstructure:"profile"`
}

// UploadConfig holds upload defaults.
type UploadConfig struct {
	Overwrite    bool     `mapstructure:"overwrite"`
	IgnoreHidden bool     `mapstructure:"ignore_hidden"`
	RemoveKeep   bool     `mapstructure:"remove_keep"`
	SkipExisting bool     `mapstructure:"skip_existing"`
	Exclude      []string `mapstructure:"exclude"`
}

// SetDefaults registers built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("connection", "")
	v.SetDefault("container", "")
	v.SetDefault("rate_limit", 0)
	v.SetDefault("timeout", "0s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")

	v.SetDefault("upload.overwrite", true)
	v.SetDefault("upload.ignore_hidden", true)
	v.SetDefault("upload.remove_keep", true)
	v.SetDefault("upload.skip_existing", false)
	v.SetDefault("upload.exclude", []string{})
}

// BindEnv wires KEEPTREE_* variables into v. Nested keys use underscores
// (KEEPTREE_UPLOAD_OVERWRITE); the logging keys also accept the short
// KEEPTREE_LOG_LEVEL and KEEPTREE_LOG_PROFILE forms.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("logging.level", EnvPrefix+"_LOG_LEVEL", EnvPrefix+"_LOGGING_LEVEL")
	_ = v.BindEnv("logging.profile", EnvPrefix+"_LOG_PROFILE", EnvPrefix+"_LOGGING_PROFILE")
}

// ReadFile reads path into v. With an empty path, keeptree.yaml is looked
// up in the working directory and the user config directory; not finding
// one is not an error.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigName("keeptree")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, "keeptree"))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Decode unmarshals v and validates the result.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load builds a Config from defaults, environment and the default config
// file locations, then applies overrides.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	return LoadFile(ctx, "", overrides...)
}

// LoadFile is Load with an explicit config file path.
func LoadFile(ctx context.Context, path string, overrides ...map[string]any) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	if err := ReadFile(v, path); err != nil {
		return nil, err
	}
	for _, o := range overrides {
		ApplyOverrides(v, o)
	}
	return Decode(v)
}

// ApplyOverrides sets every leaf of a nested map on v, which puts it above
// environment and file values.
func ApplyOverrides(v *viper.Viper, overrides map[string]any) {
	for key, val := range flatten("", overrides) {
		v.Set(key, val)
	}
}

func flatten(prefix string, m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, val := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := val.(map[string]any); ok {
			for nk, nv := range flatten(key, nested) {
				out[nk] = nv
			}
			continue
		}
		out[key] = val
	}
	return out
}

func (c *Config) normalize() {
	c.Connection = strings.TrimSpace(c.Connection)
	c.Container = strings.TrimSpace(c.Container)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Profile = strings.ToLower(strings.TrimSpace(c.Logging.Profile))

	exclude := c.Upload.Exclude[:0]
	for _, p := range c.Upload.Exclude {
		if p = strings.TrimSpace(p); p != "" {
			exclude = append(exclude, p)
		}
	}
	c.Upload.Exclude = exclude
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: logging.level %q (expected debug, info, warn or error)", ErrInvalidConfig, c.Logging.Level)
	}
	switch c.Logging.Profile {
	case "structured", "console":
	default:
		return fmt.Errorf("%w: logging.profile %q (expected structured or console)", ErrInvalidConfig, c.Logging.Profile)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("%w: rate_limit must be >= 0", ErrInvalidConfig)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must be >= 0", ErrInvalidConfig)
	}
	return nil
}

// RequireRemote reports whether connection and container are both set.
func (c *Config) RequireRemote() error {
	if c.Connection == "" {
		return fmt.Errorf("%w: connection is required (--connection or %s_CONNECTION)", ErrInvalidConfig, EnvPrefix)
	}
	if c.Container == "" {
		return fmt.Errorf("%w: container is required (--container or %s_CONTAINER)", ErrInvalidConfig, EnvPrefix)
	}
	return nil
}
