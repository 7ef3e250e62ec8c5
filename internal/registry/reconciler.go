package registry

import (
	"encoding/json"

	"evse-dashboard/internal/models"
	"evse-dashboard/internal/timers"
	"evse-dashboard/internal/topics"
	"evse-dashboard/internal/ui"

	"go.uber.org/zap"
)

// decodeJSON 宽松解码：空载荷按空对象处理
func decodeJSON(payload []byte, dst interface{}) error {
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	return json.Unmarshal(payload, dst)
}

// Transport 调和器侧的传输协作接口
type Transport interface {
	Subscribe(topic string) error
	PublishJSON(topic string, payload interface{}, retained bool) error
}

// ConsoleSink console_output 通道消息的去向
type ConsoleSink interface {
	HandleDeviceMessage(deviceID string, out *models.ConsoleOutput)
}

// Topics 调和器用到的主题模板
type Topics struct {
	StatusTemplate  string
	CommandTemplate string
}

// Reconciler 入站消息调和器
// 将状态片段合并进注册表，触发发现副作用，并向表现层/计时/图表扇出
type Reconciler struct {
	registry  *Registry
	transport Transport
	presenter ui.Presenter
	timers    *timers.SessionTimers
	console   ConsoleSink
	topics    Topics
	logger    *zap.Logger
}

// NewReconciler 创建调和器
func NewReconciler(
	reg *Registry,
	transport Transport,
	presenter ui.Presenter,
	sessionTimers *timers.SessionTimers,
	console ConsoleSink,
	t Topics,
	logger *zap.Logger,
) *Reconciler {
	return &Reconciler{
		registry:  reg,
		transport: transport,
		presenter: presenter,
		timers:    sessionTimers,
		console:   console,
		topics:    t,
		logger:    logger,
	}
}

// HandleMessage 处理一条入站消息，按严格顺序分发（首个匹配生效）
// 单条消息解码失败只记录日志，不影响后续消息（逐条隔离）
func (r *Reconciler) HandleMessage(topic string, payload []byte) bool {
	parsed := topics.Parse(topic)

	// 1. 连接状态叶子（发现通道）
	if parsed.IsConnection() {
		return r.handleConnection(parsed.DeviceID, payload)
	}

	// 2. 控制台输出通道
	if parsed.StatusName == string(models.KindConsoleOutput) {
		return r.handleConsoleOutput(parsed.DeviceID, payload)
	}

	// 3. 最后刷卡凭证通道
	if parsed.StatusName == string(models.KindLastRfidUID) {
		return r.handleRfidUID(topic, payload)
	}

	deviceID := parsed.DeviceID
	statusName := parsed.StatusName

	// 4. 未注册设备 → 触发发现，本条消息按失败上报
	if !r.registry.Has(deviceID) {
		r.logger.Info("Message for unknown device",
			zap.String("device_id", deviceID),
			zap.String("topic", topic),
		)
		r.HandleDeviceDiscovery(deviceID)
		return false
	}

	// 5. 解码并存储到设备记录的对应字段
	update, err := models.DecodeStatus(statusName, payload)
	if err != nil {
		r.logger.Warn("Failed to decode status payload",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return false
	}

	if !r.registry.Update(deviceID, func(device *models.Device) {
		r.store(device, update)
	}) {
		return false
	}

	// 6. 状态相关的专项通知（基于锁内快照，不持有共享记录）
	device, _ := r.registry.Snapshot(deviceID)
	r.notifyStatusUpdate(&device, update)

	return true
}

// handleConnection 处理发现/连接状态消息
// deviceId 取载荷字段，缺省时退回主题标识段
func (r *Reconciler) handleConnection(topicDeviceID string, payload []byte) bool {
	var status models.ConnectionStatus
	if err := decodeJSON(payload, &status); err != nil {
		r.logger.Warn("Malformed connection payload", zap.Error(err))
		return false
	}

	deviceID := status.DeviceID
	if deviceID == "" {
		deviceID = topicDeviceID
	}
	if deviceID == "" {
		return false
	}

	if !r.registry.Has(deviceID) {
		r.HandleDeviceDiscovery(deviceID)
	}

	if !r.registry.Update(deviceID, func(device *models.Device) {
		device.Online = status.IsOnline()
	}) {
		return false
	}

	device, _ := r.registry.Snapshot(deviceID)
	r.presenter.UpdateSummaryCard(&device)
	r.presenter.UpdateDetailPage(device.ID, &models.StatusUpdate{Kind: models.KindConnection})
	return true
}

func (r *Reconciler) handleConsoleOutput(deviceID string, payload []byte) bool {
	var out models.ConsoleOutput
	if err := decodeJSON(payload, &out); err != nil {
		r.logger.Warn("Malformed console output payload",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		return false
	}
	r.console.HandleDeviceMessage(deviceID, &out)
	return true
}

func (r *Reconciler) handleRfidUID(topic string, payload []byte) bool {
	var uid models.RfidUID
	if err := decodeJSON(payload, &uid); err != nil {
		r.logger.Warn("Malformed rfid uid payload",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return false
	}
	r.presenter.SetRfidUID(uid.UID)
	return true
}

// HandleDeviceDiscovery 设备发现触发器
// 幂等：标识符已存在时为空操作；绝不重复订阅或重复建卡
func (r *Reconciler) HandleDeviceDiscovery(deviceID string) {
	if deviceID == "" {
		return
	}

	device := models.NewDevice(deviceID)
	if !r.registry.Add(device) {
		return
	}

	r.logger.Info("New device discovered", zap.String("device_id", deviceID))

	statusTopic := topics.BuildStatus(r.topics.StatusTemplate, deviceID)
	if err := r.transport.Subscribe(statusTopic); err != nil {
		r.logger.Error("Failed to subscribe to device status",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
	}

	commandTopic := topics.BuildCommand(r.topics.CommandTemplate, deviceID, "get_initial_data")
	if err := r.transport.PublishJSON(commandTopic, map[string]bool{"request": true}, false); err != nil {
		r.logger.Warn("Failed to request initial data",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
	}

	r.presenter.CreateDeviceCard(deviceID)
}

// store 将解码后的片段存入设备记录的对应字段
func (r *Reconciler) store(device *models.Device, update *models.StatusUpdate) {
	switch update.Kind {
	case models.KindState:
		device.State = update.State
	case models.KindBlockState:
		device.BlockState = update.BlockState
	case models.KindCurrentState:
		device.CurrentState = update.CurrentState
	case models.KindChargingSession:
		device.ChargingSession = update.ChargingSession
	case models.KindTemperature:
		device.Temperature = update.Temperature
	case models.KindWifiInfo:
		device.WifiInfo = update.WifiInfo
	case models.KindRfidConfig:
		device.RfidConfig = update.RfidConfig
	case models.KindSchedule:
		device.Schedule = update.Schedule
	case models.KindCPData, models.KindVRMSData, models.KindIRMSData:
		// 采样数据只进图表，不落设备记录
	default:
		r.logger.Debug("Unrecognized status fragment",
			zap.String("device_id", device.ID),
			zap.String("status", string(update.Kind)),
		)
	}
}

// notifyStatusUpdate 按片段种类的专项通知
func (r *Reconciler) notifyStatusUpdate(device *models.Device, update *models.StatusUpdate) {
	// 摘要卡片随任意片段刷新
	r.presenter.UpdateSummaryCard(device)

	// 详情视图活动时刷新对应区域
	if r.presenter.IsDetailActive(device.ID) {
		r.presenter.UpdateDetailPage(device.ID, update)
	}

	switch update.Kind {
	case models.KindChargingSession:
		// 按起始时间戳存在与否启停会话计时器
		r.timers.Manage(device.ID, update.ChargingSession.SessionStartTime)

	case models.KindCPData:
		if chart := r.registry.CPChart(device.ID); chart != nil {
			chart.Push(update.CPData.CPHigh, update.CPData.CPLow)
		}

	case models.KindVRMSData:
		if chart := r.registry.RMSChart(device.ID); chart != nil {
			chart.PushVRMS(update.RMSData.Value)
		}

	case models.KindIRMSData:
		if chart := r.registry.RMSChart(device.ID); chart != nil {
			chart.PushIRMS(update.RMSData.Value)
		}
	}
}

// PopulateDetail 详情视图激活：创建图表句柄并回放已存储的片段
// 使用活动计时器推送会话时间，而不是缓存的旧字符串
func (r *Reconciler) PopulateDetail(deviceID string) bool {
	device, ok := r.registry.Snapshot(deviceID)
	if !ok {
		r.logger.Warn("Detail view for unknown device", zap.String("device_id", deviceID))
		return false
	}

	r.registry.EnsureCharts(deviceID)

	r.presenter.UpdateDetailPage(deviceID, &models.StatusUpdate{Kind: models.KindConnection})
	if device.State != nil {
		r.presenter.UpdateDetailPage(deviceID, &models.StatusUpdate{Kind: models.KindState, State: device.State})
	}
	if device.BlockState != nil {
		r.presenter.UpdateDetailPage(deviceID, &models.StatusUpdate{Kind: models.KindBlockState, BlockState: device.BlockState})
	}
	if device.CurrentState != nil {
		r.presenter.UpdateDetailPage(deviceID, &models.StatusUpdate{Kind: models.KindCurrentState, CurrentState: device.CurrentState})
	}
	if device.Temperature != nil {
		r.presenter.UpdateDetailPage(deviceID, &models.StatusUpdate{Kind: models.KindTemperature, Temperature: device.Temperature})
	}
	if device.ChargingSession != nil {
		r.presenter.UpdateDetailPage(deviceID, &models.StatusUpdate{Kind: models.KindChargingSession, ChargingSession: device.ChargingSession})
		r.timers.Manage(deviceID, device.ChargingSession.SessionStartTime)
	}

	return true
}
