package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/quake-trends/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces the environment variables read by NewViper.
const EnvPrefix = "QUAKE"

// Configuration keys. Environment variables are the upper-cased key with the
// QUAKE_ prefix, e.g. QUAKE_REQUEST_INTERVAL.
const (
	KeyBaseDir               = "base_dir"
	KeyDownload              = "download"
	KeyEndpoint              = "endpoint"
	KeyHTTPTimeout           = "http_timeout"
	KeyRequestInterval       = "request_interval"
	KeyRetryMaxAttempts      = "retry_max_attempts"
	KeyRetryInitialWait      = "retry_initial_wait"
	KeyRetryMaxWait          = "retry_max_wait"
	KeyMainStart             = "main_start"
	KeyMainEnd               = "main_end"
	KeyMainMinMagnitude      = "main_min_magnitude"
	KeyPrecursorRadiusKm     = "precursor_radius_km"
	KeyPrecursorMinMagnitude = "precursor_min_magnitude"
	KeyLogLevel              = "log_level"
	KeyLogFormat             = "log_format"
	KeyHTTPAddr              = "http_addr"
	KeyKafkaBrokers          = "kafka_brokers"
	KeyKafkaTopic            = "kafka_topic"
	KeyManifestEnabled       = "manifest_enabled"
	KeyProgress              = "progress"
	KeyShutdownTimeout       = "shutdown_timeout"
)

// DefaultEndpoint is the USGS FDSN event query endpoint.
const DefaultEndpoint = "https://earthquake.usgs.gov/fdsnws/event/1/query"

// Config holds all pipeline settings.
type Config struct {
	BaseDir  string
	Download bool

	// USGS query client.
	Endpoint         string
	HTTPTimeout      time.Duration
	RequestInterval  time.Duration
	RetryMaxAttempts int
	RetryInitialWait time.Duration
	RetryMaxWait     time.Duration

	// Main-event and precursor selection.
	MainStart             string
	MainEnd               string
	MainMinMagnitude      float64
	PrecursorRadiusKm     float64
	PrecursorMinMagnitude float64

	LogLevel        string
	LogFormat       string
	HTTPAddr        string // empty disables the ops server
	KafkaBrokers    []string
	KafkaTopic      string
	ManifestEnabled bool
	Progress        bool
	ShutdownTimeout time.Duration
}

// NewViper returns a viper instance with defaults set and environment
// variables bound.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	mainQuery := domain.DefaultMainEventQuery()
	precursorQuery := domain.DefaultPrecursorQuery()

	v.SetDefault(KeyBaseDir, ".")
	v.SetDefault(KeyDownload, false)
	v.SetDefault(KeyEndpoint, DefaultEndpoint)
	v.SetDefault(KeyHTTPTimeout, "60s")
	v.SetDefault(KeyRequestInterval, "1s")
	v.SetDefault(KeyRetryMaxAttempts, 5)
	v.SetDefault(KeyRetryInitialWait, "5s")
	v.SetDefault(KeyRetryMaxWait, "60s")
	v.SetDefault(KeyMainStart, mainQuery.Start)
	v.SetDefault(KeyMainEnd, mainQuery.End)
	v.SetDefault(KeyMainMinMagnitude, mainQuery.MinMagnitude)
	v.SetDefault(KeyPrecursorRadiusKm, precursorQuery.RadiusKm)
	v.SetDefault(KeyPrecursorMinMagnitude, precursorQuery.MinMagnitude)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyHTTPAddr, "")
	v.SetDefault(KeyKafkaBrokers, "")
	v.SetDefault(KeyKafkaTopic, "earthquake-precursors")
	v.SetDefault(KeyManifestEnabled, true)
	v.SetDefault(KeyProgress, true)
	v.SetDefault(KeyShutdownTimeout, "10s")
}

// Load reads configuration from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		BaseDir:               v.GetString(KeyBaseDir),
		Download:              v.GetBool(KeyDownload),
		Endpoint:              v.GetString(KeyEndpoint),
		HTTPTimeout:           v.GetDuration(KeyHTTPTimeout),
		RequestInterval:       v.GetDuration(KeyRequestInterval),
		RetryMaxAttempts:      v.GetInt(KeyRetryMaxAttempts),
		RetryInitialWait:      v.GetDuration(KeyRetryInitialWait),
		RetryMaxWait:          v.GetDuration(KeyRetryMaxWait),
		MainStart:             v.GetString(KeyMainStart),
		MainEnd:               v.GetString(KeyMainEnd),
		MainMinMagnitude:      v.GetFloat64(KeyMainMinMagnitude),
		PrecursorRadiusKm:     v.GetFloat64(KeyPrecursorRadiusKm),
		PrecursorMinMagnitude: v.GetFloat64(KeyPrecursorMinMagnitude),
		LogLevel:              strings.ToLower(v.GetString(KeyLogLevel)),
		LogFormat:             strings.ToLower(v.GetString(KeyLogFormat)),
		HTTPAddr:              v.GetString(KeyHTTPAddr),
		KafkaBrokers:          brokers(v),
		KafkaTopic:            v.GetString(KeyKafkaTopic),
		ManifestEnabled:       v.GetBool(KeyManifestEnabled),
		Progress:              v.GetBool(KeyProgress),
		ShutdownTimeout:       v.GetDuration(KeyShutdownTimeout),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.BaseDir == "" {
		return errors.New("base_dir is required")
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid endpoint %q", c.Endpoint)
	}
	if c.HTTPTimeout <= 0 {
		return errors.New("invalid http_timeout: must be positive")
	}
	if c.RequestInterval < 0 {
		return errors.New("invalid request_interval: must not be negative")
	}
	if c.RetryMaxAttempts < 1 {
		return errors.New("invalid retry_max_attempts: must be at least 1")
	}
	if c.RetryInitialWait <= 0 {
		return errors.New("invalid retry_initial_wait: must be positive")
	}
	if c.RetryMaxWait < c.RetryInitialWait {
		return errors.New("invalid retry_max_wait: must not be below retry_initial_wait")
	}
	for key, value := range map[string]string{KeyMainStart: c.MainStart, KeyMainEnd: c.MainEnd} {
		if _, err := domain.ParseTime(value); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}
	if c.PrecursorRadiusKm <= 0 {
		return errors.New("invalid precursor_radius_km: must be positive")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log_format %q", c.LogFormat)
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return errors.New("kafka_topic is required when kafka_brokers is set")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("invalid shutdown_timeout: must be positive")
	}
	return nil
}

// PublishEnabled reports whether merged precursors are published to Kafka.
func (c *Config) PublishEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// MainEventQuery returns the configured main-event selection.
func (c *Config) MainEventQuery() domain.MainEventQuery {
	q := domain.DefaultMainEventQuery()
	q.Start = c.MainStart
	q.End = c.MainEnd
	q.MinMagnitude = c.MainMinMagnitude
	return q
}

// PrecursorQuery returns the configured precursor selection.
func (c *Config) PrecursorQuery() domain.PrecursorQuery {
	q := domain.DefaultPrecursorQuery()
	q.RadiusKm = c.PrecursorRadiusKm
	q.MinMagnitude = c.PrecursorMinMagnitude
	return q
}

// brokers accepts either a comma-separated string (environment) or a list
// (YAML config file).
func brokers(v *viper.Viper) []string {
	switch val := v.Get(KeyKafkaBrokers).(type) {
	case string:
		return sharedcfg.ParseBrokers(val)
	case []string:
		return sharedcfg.ParseBrokers(strings.Join(val, ","))
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = fmt.Sprint(item)
		}
		return sharedcfg.ParseBrokers(strings.Join(parts, ","))
	}
	return []string{}
}
