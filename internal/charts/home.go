package charts

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// HomeChart 首页聚合消耗图表
// 1Hz采样所有已注册设备的瞬时功率之和
type HomeChart struct {
	logger *zap.Logger

	// totalPower 返回当前所有设备功率之和（kW）
	totalPower func() float64

	mu     sync.Mutex
	series *Series
	stop   chan struct{}

	interval time.Duration
}

// NewHomeChart 创建聚合图表
func NewHomeChart(maxPoints int, totalPower func() float64, logger *zap.Logger) *HomeChart {
	return &HomeChart{
		logger:     logger,
		totalPower: totalPower,
		series:     NewSeries(maxPoints),
		interval:   time.Second,
	}
}

// Start 启动周期采样（重复调用为空操作）
func (h *HomeChart) Start() {
	h.mu.Lock()
	if h.stop != nil {
		h.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	h.stop = stop
	h.mu.Unlock()

	h.logger.Debug("Home chart sampling started")

	go func() {
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				h.Push(h.totalPower())
			}
		}
	}()
}

// Stop 停止周期采样
func (h *HomeChart) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop != nil {
		close(h.stop)
		h.stop = nil
	}
}

// Push 追加一个聚合功率点
func (h *HomeChart) Push(totalPower float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.series.Push(totalPower)
}

// Points 当前点序列副本
func (h *HomeChart) Points() []float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.series.Points()
}

// Len 当前点数
func (h *HomeChart) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.series.Len()
}
