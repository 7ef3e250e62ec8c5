package ui

import (
	"sync"

	"evse-dashboard/internal/models"

	"go.uber.org/zap"
)

// 页面标识
const (
	PageHome = "page-home"
)

// Presenter 表现层协作接口（本系统只调用，不渲染）
// 渲染、主题、图表绘制等均为外部协作者的职责
type Presenter interface {
	// UpdateConnectionStatus 更新broker连接状态指示
	UpdateConnectionStatus(connected bool, label string)

	// NavigateTo 切换到指定页面
	NavigateTo(pageID string)

	// CreateDeviceCard 为新发现的设备创建摘要卡片
	CreateDeviceCard(deviceID string)

	// ClearDeviceCards 清空所有设备卡片（连接丢失时）
	ClearDeviceCards()

	// UpdateSummaryCard 刷新设备摘要卡片（运行状态+在线状态+功率）
	UpdateSummaryCard(device *models.Device)

	// UpdateDetailPage 刷新设备详情视图的单个状态片段
	UpdateDetailPage(deviceID string, update *models.StatusUpdate)

	// IsDetailActive 设备详情视图当前是否可见
	IsDetailActive(deviceID string) bool

	// UpdateSessionTime 推送格式化的会话计时（仅在详情视图可见时调用）
	UpdateSessionTime(deviceID, formatted string)

	// SetRfidUID 将最后扫描的凭证标识转发到录入字段
	SetRfidUID(uid string)

	// ShowTransient 显示短暂的状态消息（自动消失，不抛错）
	ShowTransient(message, level string)
}

// Log 无头运行时的默认表现层：全部动作落结构化日志
// 活动详情视图由显式字段记录，供计时推送判断
type Log struct {
	logger *zap.Logger

	mu           sync.Mutex
	activeDetail string
}

// NewLog 创建日志表现层
func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger}
}

// ActivateDetail 标记某设备的详情视图为活动视图（空串表示回到首页）
func (l *Log) ActivateDetail(deviceID string) {
	l.mu.Lock()
	l.activeDetail = deviceID
	l.mu.Unlock()
}

func (l *Log) UpdateConnectionStatus(connected bool, label string) {
	l.logger.Info("Connection status changed",
		zap.Bool("connected", connected),
		zap.String("label", label),
	)
}

func (l *Log) NavigateTo(pageID string) {
	l.logger.Debug("Navigate", zap.String("page", pageID))
	if pageID == PageHome {
		l.ActivateDetail("")
	}
}

func (l *Log) CreateDeviceCard(deviceID string) {
	l.logger.Info("Device card created", zap.String("device_id", deviceID))
}

func (l *Log) ClearDeviceCards() {
	l.logger.Info("Device cards cleared")
}

func (l *Log) UpdateSummaryCard(device *models.Device) {
	l.logger.Debug("Summary card updated",
		zap.String("device_id", device.ID),
		zap.Bool("online", device.Online),
		zap.Float64("power", device.SessionPower()),
	)
}

func (l *Log) UpdateDetailPage(deviceID string, update *models.StatusUpdate) {
	l.logger.Debug("Detail page updated",
		zap.String("device_id", deviceID),
		zap.String("status", string(update.Kind)),
	)
}

func (l *Log) IsDetailActive(deviceID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.activeDetail == deviceID && deviceID != ""
}

func (l *Log) UpdateSessionTime(deviceID, formatted string) {
	l.logger.Debug("Session time",
		zap.String("device_id", deviceID),
		zap.String("elapsed", formatted),
	)
}

func (l *Log) SetRfidUID(uid string) {
	l.logger.Info("RFID UID scanned", zap.String("uid", uid))
}

func (l *Log) ShowTransient(message, level string) {
	l.logger.Info("Transient message",
		zap.String("level", level),
		zap.String("message", message),
	)
}
