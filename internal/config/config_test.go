package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(NewViper())
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.BaseDir)
	assert.False(t, cfg.Download)
	assert.Equal(t, DefaultEndpoint, cfg.Endpoint)
	assert.Equal(t, 60*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, time.Second, cfg.RequestInterval)
	assert.Equal(t, 5, cfg.RetryMaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.RetryInitialWait)
	assert.Equal(t, 60*time.Second, cfg.RetryMaxWait)
	assert.Equal(t, "1900-01-01", cfg.MainStart)
	assert.Equal(t, "2016-11-01", cfg.MainEnd)
	assert.Equal(t, 6.0, cfg.MainMinMagnitude)
	assert.Equal(t, 100.0, cfg.PrecursorRadiusKm)
	assert.Equal(t, 1.0, cfg.PrecursorMinMagnitude)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Empty(t, cfg.HTTPAddr)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.PublishEnabled())
	assert.Equal(t, "earthquake-precursors", cfg.KafkaTopic)
	assert.True(t, cfg.ManifestEnabled)
	assert.True(t, cfg.Progress)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("QUAKE_BASE_DIR", "/data/quakes")
	t.Setenv("QUAKE_DOWNLOAD", "1")
	t.Setenv("QUAKE_ENDPOINT", "http://localhost:8081/query")
	t.Setenv("QUAKE_HTTP_TIMEOUT", "30s")
	t.Setenv("QUAKE_REQUEST_INTERVAL", "2s")
	t.Setenv("QUAKE_RETRY_MAX_ATTEMPTS", "3")
	t.Setenv("QUAKE_RETRY_INITIAL_WAIT", "1s")
	t.Setenv("QUAKE_RETRY_MAX_WAIT", "10s")
	t.Setenv("QUAKE_MAIN_START", "2000-01-01")
	t.Setenv("QUAKE_MAIN_END", "2010-01-01")
	t.Setenv("QUAKE_MAIN_MIN_MAGNITUDE", "7.5")
	t.Setenv("QUAKE_PRECURSOR_RADIUS_KM", "50")
	t.Setenv("QUAKE_PRECURSOR_MIN_MAGNITUDE", "2.5")
	t.Setenv("QUAKE_LOG_LEVEL", "DEBUG")
	t.Setenv("QUAKE_LOG_FORMAT", "json")
	t.Setenv("QUAKE_HTTP_ADDR", ":9090")
	t.Setenv("QUAKE_KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("QUAKE_KAFKA_TOPIC", "custom-topic")
	t.Setenv("QUAKE_MANIFEST_ENABLED", "false")
	t.Setenv("QUAKE_PROGRESS", "false")
	t.Setenv("QUAKE_SHUTDOWN_TIMEOUT", "30s")

	cfg, err := Load(NewViper())
	require.NoError(t, err)

	assert.Equal(t, "/data/quakes", cfg.BaseDir)
	assert.True(t, cfg.Download)
	assert.Equal(t, "http://localhost:8081/query", cfg.Endpoint)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 2*time.Second, cfg.RequestInterval)
	assert.Equal(t, 3, cfg.RetryMaxAttempts)
	assert.Equal(t, time.Second, cfg.RetryInitialWait)
	assert.Equal(t, 10*time.Second, cfg.RetryMaxWait)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.PublishEnabled())
	assert.Equal(t, "custom-topic", cfg.KafkaTopic)
	assert.False(t, cfg.ManifestEnabled)
	assert.False(t, cfg.Progress)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)

	mq := cfg.MainEventQuery()
	assert.Equal(t, "2000-01-01", mq.Start)
	assert.Equal(t, "2010-01-01", mq.End)
	assert.Equal(t, "earthquake", mq.EventType)
	assert.Equal(t, 7.5, mq.MinMagnitude)

	pq := cfg.PrecursorQuery()
	assert.Equal(t, 50.0, pq.RadiusKm)
	assert.Equal(t, 2.5, pq.MinMagnitude)
	assert.Equal(t, "earthquake", pq.EventType)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quaketrends.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
base_dir: /srv/quakes
kafka_brokers:
  - k1:9092
  - k2:9092
request_interval: 1500ms
`), 0o600))

	v := NewViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "/srv/quakes", cfg.BaseDir)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 1500*time.Millisecond, cfg.RequestInterval)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"endpoint scheme", "QUAKE_ENDPOINT", "ftp://example.com/query", "invalid endpoint"},
		{"endpoint host", "QUAKE_ENDPOINT", "http:///query", "invalid endpoint"},
		{"http timeout", "QUAKE_HTTP_TIMEOUT", "0s", "http_timeout"},
		{"request interval", "QUAKE_REQUEST_INTERVAL", "-1s", "request_interval"},
		{"retry attempts", "QUAKE_RETRY_MAX_ATTEMPTS", "0", "retry_max_attempts"},
		{"retry initial wait", "QUAKE_RETRY_INITIAL_WAIT", "0s", "retry_initial_wait"},
		{"retry max wait", "QUAKE_RETRY_MAX_WAIT", "1s", "retry_max_wait"},
		{"main start", "QUAKE_MAIN_START", "last year", "main_start"},
		{"radius", "QUAKE_PRECURSOR_RADIUS_KM", "0", "precursor_radius_km"},
		{"log level", "QUAKE_LOG_LEVEL", "verbose", "log_level"},
		{"log format", "QUAKE_LOG_FORMAT", "xml", "log_format"},
		{"shutdown timeout", "QUAKE_SHUTDOWN_TIMEOUT", "0s", "shutdown_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load(NewViper())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_KafkaTopicRequiredWithBrokers(t *testing.T) {
	t.Setenv("QUAKE_KAFKA_BROKERS", "localhost:9092")
	v := NewViper()
	v.Set(KeyKafkaTopic, "")

	_, err := Load(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka_topic")
}

func TestLoad_BrokersTrimmed(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{name: "env string", value: " a:9092, ,b:9092"},
		{name: "string list", value: []string{" a:9092", "", "b:9092 "}},
		{name: "yaml list", value: []any{"a:9092", " b:9092"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewViper()
			v.Set(KeyKafkaBrokers, tt.value)

			cfg, err := Load(v)
			require.NoError(t, err)
			assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
		})
	}
}
