package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"evse-dashboard/internal/models"

	"github.com/go-redis/redis/v8"
)

var ErrMiss = errors.New("cache miss")

// KV 本地持久键值存储（localStorage的服务端对应物）
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

type RedisKV struct {
	c *redis.Client
}

func NewRedisKV(c *redis.Client) *RedisKV { return &RedisKV{c: c} }

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	val, err := r.c.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrMiss
		}
		return "", err
	}
	return val, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.c.Set(ctx, key, value, ttl).Err()
}

// 键前缀
const (
	rfidConfigKey     = "evse:dashboard:rfid_config"
	dismissFlagPrefix = "evse:dashboard:dismissed:"
)

// Settings 仪表盘本地设置（RFID配置、提示关闭标记）
type Settings struct {
	kv KV
}

// NewSettings 创建设置存取器
func NewSettings(kv KV) *Settings {
	return &Settings{kv: kv}
}

// SaveRfidConfig 持久化RFID配置
func (s *Settings) SaveRfidConfig(ctx context.Context, cfg *models.RfidConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal rfid config: %w", err)
	}
	return s.kv.Set(ctx, rfidConfigKey, string(data), 0)
}

// LoadRfidConfig 读取持久化的RFID配置，未保存过返回 ErrMiss
func (s *Settings) LoadRfidConfig(ctx context.Context) (*models.RfidConfig, error) {
	val, err := s.kv.Get(ctx, rfidConfigKey)
	if err != nil {
		return nil, err
	}

	var cfg models.RfidConfig
	if err := json.Unmarshal([]byte(val), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rfid config: %w", err)
	}
	return &cfg, nil
}

// SetDismissed 记录某提示已被用户关闭
func (s *Settings) SetDismissed(ctx context.Context, name string) error {
	return s.kv.Set(ctx, dismissFlagPrefix+name, "1", 0)
}

// IsDismissed 某提示是否已被关闭
func (s *Settings) IsDismissed(ctx context.Context, name string) (bool, error) {
	_, err := s.kv.Get(ctx, dismissFlagPrefix+name)
	if err != nil {
		if errors.Is(err, ErrMiss) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
