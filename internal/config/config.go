package config

import (
	"fmt"
	"os"
	"strconv"

	"evse-dashboard/internal/topics"

	"github.com/google/uuid"
)

// Config 仪表盘服务配置
type Config struct {
	MQTT struct {
		Broker         string // wss:// 或 ssl:// 地址（公共broker走加密通道）
		ClientIDPrefix string // 完整ClientID = 前缀 + 随机后缀
		QoS            byte
		ReconnectDelay int // 连接丢失后的重连延迟（秒），默认 5秒

		Topics struct {
			Discovery       string // 发现订阅（通配所有设备的connection叶子）
			StatusTemplate  string // 单设备全状态订阅模板
			CommandTemplate string // 命令发布模板
		}
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	HTTP struct {
		Addr string
	}

	Limits struct {
		ConsoleMaxMessages int // 控制台环形缓冲上限，默认 100
		DetailChartPoints  int // 详情图表点数上限，默认 50
		HomeChartPoints    int // 首页聚合图表点数上限，默认 100
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置（环境变量覆盖默认值）
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "wss://broker.hivemq.com:8884/mqtt")
	cfg.MQTT.ClientIDPrefix = getEnv("MQTT_CLIENT_ID_PREFIX", "EVSE_DASHBOARD_")
	cfg.MQTT.QoS = 0
	cfg.MQTT.ReconnectDelay = getEnvInt("MQTT_RECONNECT_DELAY", 5)

	cfg.MQTT.Topics.Discovery = getEnv("MQTT_TOPIC_DISCOVERY", topics.DiscoveryFilter)
	cfg.MQTT.Topics.StatusTemplate = getEnv("MQTT_TOPIC_STATUS", topics.StatusTemplate)
	cfg.MQTT.Topics.CommandTemplate = getEnv("MQTT_TOPIC_COMMAND", topics.CommandTemplate)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Limits.ConsoleMaxMessages = getEnvInt("CONSOLE_MAX_MESSAGES", 100)
	cfg.Limits.DetailChartPoints = getEnvInt("DETAIL_CHART_POINTS", 50)
	cfg.Limits.HomeChartPoints = getEnvInt("HOME_CHART_POINTS", 100)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if cfg.MQTT.ReconnectDelay <= 0 {
		return nil, fmt.Errorf("invalid reconnect delay: %d", cfg.MQTT.ReconnectDelay)
	}
	if cfg.Limits.ConsoleMaxMessages <= 0 || cfg.Limits.DetailChartPoints <= 0 || cfg.Limits.HomeChartPoints <= 0 {
		return nil, fmt.Errorf("invalid ring buffer limits: console=%d detail=%d home=%d",
			cfg.Limits.ConsoleMaxMessages, cfg.Limits.DetailChartPoints, cfg.Limits.HomeChartPoints)
	}

	return cfg, nil
}

// ClientID 生成带随机后缀的客户端标识
func (c *Config) ClientID() string {
	return c.MQTT.ClientIDPrefix + uuid.NewString()[:8]
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
