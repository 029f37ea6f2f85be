// Package config loads the server configuration. Sources are applied in
// order: built-in defaults, an optional YAML file, AUTHWEB_* environment
// variables and finally the command line flags the user actually set.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "AUTHWEB_"

const (
	DefaultHTTPAddr      = ":8978"
	DefaultMetricsAddr   = "127.0.0.1:9178"
	DefaultLogFormat     = "json"
	DefaultLogLevel      = "info"
	DefaultRedirectDelay = 2 * time.Second
	DefaultCallTimeout   = 10 * time.Second
	DefaultCSRFTTL       = 2 * time.Hour
)

// Config is the full server configuration.
type Config struct {
	HTTPAddr      string        `koanf:"http_addr" env:"HTTP_ADDR"`
	MetricsAddr   string        `koanf:"metrics_addr" env:"METRICS_ADDR"`
	LogFormat     string        `koanf:"log_format" env:"LOG_FORMAT"`
	LogLevel      string        `koanf:"log_level" env:"LOG_LEVEL"`
	Debug         bool          `koanf:"debug" env:"DEBUG"`
	ViewsDir      string        `koanf:"views_dir" env:"VIEWS_DIR"`
	ActivityDSN   string        `koanf:"activity_dsn" env:"ACTIVITY_DSN"`
	RedirectDelay time.Duration `koanf:"redirect_delay" env:"REDIRECT_DELAY"`
	CallTimeout   time.Duration `koanf:"call_timeout" env:"CALL_TIMEOUT"`

	Firebase Firebase `koanf:"firebase" envPrefix:"FIREBASE_"`
	CSRF     CSRF     `koanf:"csrf" envPrefix:"CSRF_"`
}

// Firebase configures the identity provider client.
type Firebase struct {
	APIKey               string `koanf:"api_key" env:"API_KEY"`
	Endpoint             string `koanf:"endpoint" env:"ENDPOINT"`
	ContinueURL          string `koanf:"continue_url" env:"CONTINUE_URL"`
	LegacyGenderPhotoURL bool   `koanf:"legacy_gender_photo_url" env:"LEGACY_GENDER_PHOTO_URL"`
}

// CSRF configures form token signing. An empty key generates a random one at
// startup, which invalidates open forms on restart.
type CSRF struct {
	SecureKey  string        `koanf:"secure_key" env:"SECURE_KEY"`
	Expiration time.Duration `koanf:"expiration" env:"EXPIRATION"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		HTTPAddr:      DefaultHTTPAddr,
		MetricsAddr:   DefaultMetricsAddr,
		LogFormat:     DefaultLogFormat,
		LogLevel:      DefaultLogLevel,
		RedirectDelay: DefaultRedirectDelay,
		CallTimeout:   DefaultCallTimeout,
		CSRF:          CSRF{Expiration: DefaultCSRFTTL},
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.HTTPAddr, validation.Required),
		validation.Field(&c.LogFormat, validation.Required, validation.In("json", "text")),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "warning", "error")),
		validation.Field(&c.RedirectDelay, validation.By(nonNegative)),
		validation.Field(&c.CallTimeout, validation.By(nonNegative)),
		validation.Field(&c.Firebase),
		validation.Field(&c.CSRF),
	)
}

// Validate checks the provider settings.
func (f Firebase) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.APIKey, validation.Required),
		validation.Field(&f.Endpoint, is.URL),
		validation.Field(&f.ContinueURL, is.URL),
	)
}

// Validate checks the token settings.
func (c CSRF) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.SecureKey, validation.Length(32, 0)),
		validation.Field(&c.Expiration, validation.By(nonNegative)),
	)
}

func nonNegative(value any) error {
	if d, ok := value.(time.Duration); ok && d < 0 {
		return errors.New("must not be negative")
	}
	return nil
}

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"http-addr":      "http_addr",
	"metrics-addr":   "metrics_addr",
	"log-format":     "log_format",
	"log-level":      "log_level",
	"debug":          "debug",
	"views-dir":      "views_dir",
	"activity-dsn":   "activity_dsn",
	"redirect-delay": "redirect_delay",
	"call-timeout":   "call_timeout",
	"firebase-key":   "firebase.api_key",
	"firebase-url":   "firebase.endpoint",
}

// RegisterFlags adds the configuration flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.String("http-addr", d.HTTPAddr, "HTTP listen address")
	fs.String("metrics-addr", d.MetricsAddr, "metrics/health listen address (empty = disabled)")
	fs.String("log-format", d.LogFormat, "log format (json or text)")
	fs.String("log-level", d.LogLevel, "log level (debug, info, warn, error)")
	fs.Bool("debug", d.Debug, "log request payloads")
	fs.String("views-dir", d.ViewsDir, "load templates from this directory instead of the embedded ones")
	fs.String("activity-dsn", d.ActivityDSN, "sqlite DSN for the activity log (empty = disabled)")
	fs.Duration("redirect-delay", d.RedirectDelay, "delay before redirecting after registration")
	fs.Duration("call-timeout", d.CallTimeout, "timeout for each identity provider call")
	fs.String("firebase-key", "", "identity toolkit API key")
	fs.String("firebase-url", "", "identity toolkit endpoint override")
}

// Load builds the configuration. path and fs are optional.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		k := koanf.New(".")
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "load config file").
				WithMetadata(map[string]any{"path": path})
		}
		if err := k.Unmarshal("", &cfg); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "decode config file").
				WithMetadata(map[string]any{"path": path})
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "parse environment")
	}

	if fs != nil {
		if err := applyFlags(&cfg, fs); err != nil {
			return nil, err
		}
	}

	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid configuration")
	}
	return &cfg, nil
}

func applyFlags(cfg *Config, fs *pflag.FlagSet) error {
	k := koanf.New(".")
	provider := posflag.ProviderWithFlag(fs, ".", nil, func(f *pflag.Flag) (string, any) {
		key, ok := flagKeys[f.Name]
		if !ok || !f.Changed {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	})
	if err := k.Load(provider, nil); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "load flags")
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "decode flags")
	}
	return nil
}
