package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// ErrNotConnected 未连接时发布返回的错误
// 调用方应将其视为信号（提示性失败），而不是异常
var ErrNotConnected = errors.New("mqtt client not connected")

// MessageHandler 消息处理函数类型
type MessageHandler func(topic string, payload []byte)

// ConnectionLostHandler 连接丢失回调（err 非空表示非正常断开）
type ConnectionLostHandler func(err error)

// Options MQTT客户端选项
type Options struct {
	Broker   string // wss:// 或 ssl:// 地址（加密通道）
	ClientID string
	Username string
	Password string
	QoS      byte
}

// Client MQTT客户端封装
// 不启用paho自动重连：重连由连接管理器统一冷启动（清空注册表后重新发现）
type Client struct {
	// client 每次Connect换代，读写都走锁
	mu     sync.RWMutex
	client mqtt.Client

	opts   Options
	logger *zap.Logger

	onMessage MessageHandler
	onLost    ConnectionLostHandler
}

// NewClient 创建MQTT客户端（仅构造，不连接）
// 回调必须在Connect之前注册
func NewClient(opts Options, logger *zap.Logger) *Client {
	return &Client{
		opts:   opts,
		logger: logger,
	}
}

// SetMessageHandler 注册入站消息回调
func (c *Client) SetMessageHandler(handler MessageHandler) {
	c.onMessage = handler
}

// SetConnectionLostHandler 注册连接丢失回调
func (c *Client) SetConnectionLostHandler(handler ConnectionLostHandler) {
	c.onLost = handler
}

// Connect 连接broker，结果通过回调异步通知
func (c *Client) Connect(onSuccess func(), onFailure func(err error)) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.opts.Broker)
	opts.SetClientID(c.opts.ClientID)

	if c.opts.Username != "" {
		opts.SetUsername(c.opts.Username)
	}
	if c.opts.Password != "" {
		opts.SetPassword(c.opts.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetKeepAlive(60 * time.Second)

	opts.SetDefaultPublishHandler(func(_ mqtt.Client, msg mqtt.Message) {
		if c.onMessage != nil {
			c.onMessage(msg.Topic(), msg.Payload())
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.logger.Error("MQTT connection lost", zap.Error(err))
		if c.onLost != nil {
			c.onLost(err)
		}
	})

	client := mqtt.NewClient(opts)
	c.mu.Lock()
	c.client = client
	c.mu.Unlock()

	go func() {
		token := client.Connect()
		if token.Wait() && token.Error() != nil {
			c.logger.Error("Failed to connect to MQTT broker",
				zap.String("broker", c.opts.Broker),
				zap.Error(token.Error()),
			)
			if onFailure != nil {
				onFailure(token.Error())
			}
			return
		}

		c.logger.Info("Connected to MQTT broker", zap.String("broker", c.opts.Broker))
		if onSuccess != nil {
			onSuccess()
		}
	}()
}

// current 当前代的paho客户端，未连接过为 nil
func (c *Client) current() mqtt.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}

// Subscribe 订阅主题，消息走默认入站回调
func (c *Client) Subscribe(topic string) error {
	client := c.current()
	if client == nil || !client.IsConnected() {
		return ErrNotConnected
	}

	token := client.Subscribe(topic, c.opts.QoS, nil)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, token.Error())
	}
	return nil
}

// PublishJSON 序列化载荷并发布
// 未连接时返回 ErrNotConnected，不等待重连
func (c *Client) PublishJSON(topic string, payload interface{}, retained bool) error {
	client := c.current()
	if client == nil || !client.IsConnected() {
		return ErrNotConnected
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload for %s: %w", topic, err)
	}

	token := client.Publish(topic, c.opts.QoS, retained, data)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}
	return nil
}

// IsConnected 检查连接状态
func (c *Client) IsConnected() bool {
	client := c.current()
	return client != nil && client.IsConnected()
}

// Disconnect 断开连接
func (c *Client) Disconnect() {
	client := c.current()
	if client != nil && client.IsConnected() {
		client.Disconnect(250) // 250ms等待时间
	}
}
