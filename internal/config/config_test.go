package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultBroker = "localhost:9092"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "raw-overshoot-datasets", cfg.KafkaSourceTopic)
	assert.Equal(t, "aligned-overshoot-series", cfg.KafkaSinkTopic)
	assert.Equal(t, "overshoot-etl", cfg.KafkaGroupID)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.BatchFlushInterval)
	assert.Equal(t, "http://localhost:8000", cfg.SourceBaseURL)
	assert.Empty(t, cfg.SourceAPIKey)
	assert.Equal(t, 10*time.Second, cfg.SourceTimeout)
	assert.Equal(t, 256, cfg.SourceCacheSize)
	assert.Equal(t, 1961, cfg.DefaultStartYear)
	assert.Equal(t, 2024, cfg.DefaultEndYear)
	assert.Equal(t, 250*time.Millisecond, cfg.DebounceInterval)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SOURCE_TOPIC", "custom-source")
	t.Setenv("KAFKA_SINK_TOPIC", "custom-sink")
	t.Setenv("KAFKA_GROUP_ID", "custom-group")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("BATCH_SIZE", "100")
	t.Setenv("BATCH_FLUSH_INTERVAL", "1s")
	t.Setenv("SOURCE_BASE_URL", "https://api.example.org")
	t.Setenv("SOURCE_API_KEY", "secret")
	t.Setenv("SOURCE_TIMEOUT", "3s")
	t.Setenv("SOURCE_CACHE_SIZE", "32")
	t.Setenv("DEFAULT_START_YEAR", "1990")
	t.Setenv("DEFAULT_END_YEAR", "2030")
	t.Setenv("DEBOUNCE_INTERVAL", "300ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-source", cfg.KafkaSourceTopic)
	assert.Equal(t, "custom-sink", cfg.KafkaSinkTopic)
	assert.Equal(t, "custom-group", cfg.KafkaGroupID)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 1*time.Second, cfg.BatchFlushInterval)
	assert.Equal(t, "https://api.example.org", cfg.SourceBaseURL)
	assert.Equal(t, "secret", cfg.SourceAPIKey)
	assert.Equal(t, 3*time.Second, cfg.SourceTimeout)
	assert.Equal(t, 32, cfg.SourceCacheSize)
	assert.Equal(t, 1990, cfg.DefaultStartYear)
	assert.Equal(t, 2030, cfg.DefaultEndYear)
	assert.Equal(t, 300*time.Millisecond, cfg.DebounceInterval)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidBatchSize(t *testing.T) {
	t.Setenv("BATCH_SIZE", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_SIZE")
}

func TestLoad_BatchSizeTooLarge(t *testing.T) {
	t.Setenv("BATCH_SIZE", "9999")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_SIZE")
}

func TestLoad_InvalidBatchFlushInterval(t *testing.T) {
	t.Setenv("BATCH_FLUSH_INTERVAL", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_FLUSH_INTERVAL")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"SOURCE_TIMEOUT", "bad"},
		{"SOURCE_TIMEOUT", "-1s"},
		{"DEBOUNCE_INTERVAL", "0s"},
		{"SOURCE_CACHE_SIZE", "0"},
		{"SOURCE_CACHE_SIZE", "many"},
		{"DEFAULT_START_YEAR", "61"},
		{"DEFAULT_END_YEAR", "twenty"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_EndYearBeforeStartYear(t *testing.T) {
	t.Setenv("DEFAULT_START_YEAR", "2020")
	t.Setenv("DEFAULT_END_YEAR", "2010")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEFAULT_END_YEAR")
}
