package timers

import (
	"fmt"
	"sync"
	"time"

	"evse-dashboard/internal/ui"

	"go.uber.org/zap"
)

// SessionTimers 每设备会话计时器
// 每个设备标识符至多持有一个周期计时句柄；无起始时间戳则无计时条目
type SessionTimers struct {
	presenter ui.Presenter
	logger    *zap.Logger

	mu     sync.Mutex
	timers map[string]chan struct{} // deviceID → stop通道

	interval time.Duration
	now      func() time.Time
}

// NewSessionTimers 创建计时子系统
func NewSessionTimers(presenter ui.Presenter, logger *zap.Logger) *SessionTimers {
	return &SessionTimers{
		presenter: presenter,
		logger:    logger,
		timers:    make(map[string]chan struct{}),
		interval:  time.Second,
		now:       time.Now,
	}
}

// Manage 按会话起始时间戳管理设备计时器
// 总是先清除已有计时器（替换而不叠加）；startTimeStr为空表示会话结束
func (s *SessionTimers) Manage(deviceID, startTimeStr string) {
	s.Stop(deviceID)

	if startTimeStr == "" {
		return
	}

	startTime, err := time.Parse(time.RFC3339, startTimeStr)
	if err != nil {
		s.logger.Warn("Invalid session start time",
			zap.String("device_id", deviceID),
			zap.String("start_time", startTimeStr),
			zap.Error(err),
		)
		return
	}

	s.Start(deviceID, startTime)
}

// Start 为设备启动1秒周期的会话计时器
func (s *SessionTimers) Start(deviceID string, startTime time.Time) {
	s.Stop(deviceID)

	stop := make(chan struct{})

	s.mu.Lock()
	s.timers[deviceID] = stop
	s.mu.Unlock()

	s.logger.Debug("Session timer started",
		zap.String("device_id", deviceID),
		zap.Time("start_time", startTime),
	)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				// 详情视图不可见时静默丢弃，计时器本身持续运行
				if !s.presenter.IsDetailActive(deviceID) {
					continue
				}
				s.presenter.UpdateSessionTime(deviceID, FormatElapsed(s.now().Sub(startTime)))
			}
		}
	}()
}

// Stop 停止并移除设备的计时器（不存在时为空操作）
func (s *SessionTimers) Stop(deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stop, ok := s.timers[deviceID]; ok {
		close(stop)
		delete(s.timers, deviceID)
	}
}

// StopAll 停止全部计时器（重连/关闭时）
func (s *SessionTimers) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for deviceID, stop := range s.timers {
		close(stop)
		delete(s.timers, deviceID)
	}
}

// Active 设备是否持有活动计时器
func (s *SessionTimers) Active(deviceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[deviceID]
	return ok
}

// Count 活动计时器数量
func (s *SessionTimers) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// FormatElapsed 将经过时间格式化为 HH:MM:SS，负值归零
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	total := int(d.Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
