package config

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	// 清除环境变量
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// 验证默认值
	assert.Equal(t, "wss://broker.hivemq.com:8884/mqtt", cfg.MQTT.Broker)
	assert.Equal(t, "EVSE_DASHBOARD_", cfg.MQTT.ClientIDPrefix)
	assert.Equal(t, 5, cfg.MQTT.ReconnectDelay)

	assert.Equal(t, "evse/+/status/connection", cfg.MQTT.Topics.Discovery)
	assert.Equal(t, "evse/{deviceId}/status/#", cfg.MQTT.Topics.StatusTemplate)
	assert.Equal(t, "evse/{deviceId}/command/{commandName}", cfg.MQTT.Topics.CommandTemplate)

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)

	assert.Equal(t, 100, cfg.Limits.ConsoleMaxMessages)
	assert.Equal(t, 50, cfg.Limits.DetailChartPoints)
	assert.Equal(t, 100, cfg.Limits.HomeChartPoints)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	os.Setenv("MQTT_BROKER", "ssl://test-broker:8883")
	os.Setenv("MQTT_RECONNECT_DELAY", "10")
	os.Setenv("REDIS_ADDR", "test-redis:6379")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("CONSOLE_MAX_MESSAGES", "200")
	os.Setenv("DETAIL_CHART_POINTS", "25")
	os.Setenv("HOME_CHART_POINTS", "60")
	defer func() {
		os.Unsetenv("MQTT_BROKER")
		os.Unsetenv("MQTT_RECONNECT_DELAY")
		os.Unsetenv("REDIS_ADDR")
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("CONSOLE_MAX_MESSAGES")
		os.Unsetenv("DETAIL_CHART_POINTS")
		os.Unsetenv("HOME_CHART_POINTS")
	}()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ssl://test-broker:8883", cfg.MQTT.Broker)
	assert.Equal(t, 10, cfg.MQTT.ReconnectDelay)
	assert.Equal(t, "test-redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 200, cfg.Limits.ConsoleMaxMessages)
	assert.Equal(t, 25, cfg.Limits.DetailChartPoints)
	assert.Equal(t, 60, cfg.Limits.HomeChartPoints)
}

func TestLoad_InvalidLimits(t *testing.T) {
	os.Setenv("DETAIL_CHART_POINTS", "0")
	defer os.Unsetenv("DETAIL_CHART_POINTS")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_InvalidReconnectDelay(t *testing.T) {
	os.Setenv("MQTT_RECONNECT_DELAY", "-1")
	defer os.Unsetenv("MQTT_RECONNECT_DELAY")

	_, err := Load()
	assert.Error(t, err)
}

func TestClientID_RandomSuffix(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)

	id1 := cfg.ClientID()
	id2 := cfg.ClientID()

	assert.True(t, strings.HasPrefix(id1, "EVSE_DASHBOARD_"))
	assert.NotEqual(t, id1, id2)
}
