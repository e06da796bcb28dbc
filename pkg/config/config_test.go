package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte("environment: test\n"))
	require.NoError(t, err)

	assert.Equal(t, "test", c.Environment)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, "postgres", c.Store.Backend)
	assert.Equal(t, 60, c.Model.HorizonMinutes)
	assert.Equal(t, 0.45, c.Model.NeutralThreshold)
	assert.Equal(t, 300*time.Second, c.Scheduler.NewsInterval)
	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, []string{"*"}, c.Server.CORSOrigins)
	assert.Equal(t, time.Second, c.Server.SlowRequest)
	assert.Equal(t, 1000, c.Redis.LocalSize)
	assert.Equal(t, time.Minute, c.Redis.LocalTTL)
	assert.Equal(t, []string{"XAUUSD", "EURUSD", "GBPUSD", "USDJPY", "AUDUSD", "USDCAD"}, c.Symbols())
}

func TestParseOverridesAndInstruments(t *testing.T) {
	c, err := Parse([]byte(`
store:
  backend: memory
model:
  horizon_minutes: 30
instruments:
  - symbol: XAUUSD
    asset_class: metal
`))
	require.NoError(t, err)
	assert.Equal(t, "memory", c.Store.Backend)
	assert.Equal(t, 30, c.Model.HorizonMinutes)
	assert.Equal(t, []string{"XAUUSD"}, c.Symbols())
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown backend", "store: {backend: sqlite}"},
		{"alphavantage without key", "providers: {price: alphavantage}"},
		{"rss without feeds", "providers: {news: rss}"},
		{"csv macro without path", "providers: {macro: csv}"},
		{"kafka without brokers", "kafka: {enabled: true}"},
		{"neutral threshold out of range", "model: {neutral_threshold: 1.5}"},
		{"instrument without symbol", "instruments: [{asset_class: fx}]"},
		{"bad log level", "log: {level: loud}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	env := map[string]string{
		"FOREXPULSE_REDIS_ADDR":      "redis:6379",
		"FOREXPULSE_KAFKA_BROKERS":   "k1:9092,k2:9092",
		"FOREXPULSE_HORIZON_MINUTES": "15",
		"FOREXPULSE_STORE_BACKEND":   "memory",
		"FOREXPULSE_LOG_LEVEL":       "debug",
	}
	c.applyEnv(func(k string) string { return env[k] })

	assert.True(t, c.Redis.Enabled)
	assert.Equal(t, "redis:6379", c.Redis.Addr)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, 15, c.Model.HorizonMinutes)
	assert.Equal(t, "memory", c.Store.Backend)
	assert.Equal(t, "debug", c.Log.Level)
	assert.NoError(t, c.Validate())
}
