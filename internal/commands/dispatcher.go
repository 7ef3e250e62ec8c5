package commands

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"evse-dashboard/internal/models"
	"evse-dashboard/internal/mqtt"
	"evse-dashboard/internal/store"
	"evse-dashboard/internal/topics"
	"evse-dashboard/internal/ui"

	"go.uber.org/zap"
)

// 出站命令名
const (
	CmdGetInitialData      = "get_initial_data"
	CmdBlock               = "block"
	CmdDebug               = "debug"
	CmdForceCharge         = "force_charge"
	CmdForceError          = "force_error"
	CmdResetRfid           = "reset_rfid"
	CmdResetEvse           = "reset_evse"
	CmdToggleRainbow       = "toggle_rainbow_mode"
	CmdGfciSelfTest        = "gfci_self_test"
	CmdCalibrateCurrent    = "calibrate_current_offset"
	CmdSetCurrent          = "set_current"
	CmdSchedule            = "schedule"
	CmdScheduleClear       = "schedule_clear"
	CmdWifiSave            = "wifi_save"
	CmdSaveRfidConfig      = "save_rfid_config"
	CmdSetRfidRegisterMode = "set_rfid_register_mode"
	CmdConsoleInput        = "console_input"
)

var (
	ErrUnknownDevice    = errors.New("unknown device")
	ErrValidationFailed = errors.New("validation failed")
)

// cardIDPattern 卡号校验：至少4位，仅十六进制字符与空格
var cardIDPattern = regexp.MustCompile(`^[A-Fa-f0-9 ]+$`)

// Publisher 分发器侧的传输发布接口
type Publisher interface {
	PublishJSON(topic string, payload interface{}, retained bool) error
}

// DeviceStore 分发器需要的注册表视图
// 快照读 + 锁内改，乐观更新不直接触碰共享记录
type DeviceStore interface {
	Snapshot(deviceID string) (models.Device, bool)
	Update(deviceID string, fn func(*models.Device)) bool
}

// Dispatcher 出站命令分发器
// 构建命令主题、发布JSON载荷，必要时对设备记录做乐观本地更新
type Dispatcher struct {
	transport Publisher
	devices   DeviceStore
	presenter ui.Presenter
	settings  *store.Settings
	logger    *zap.Logger

	commandTemplate string

	// RFID配置会话的卡片簿记（添加/移除后Save才生效）
	mu    sync.Mutex
	cards []models.RfidCard
}

// NewDispatcher 创建命令分发器
func NewDispatcher(
	transport Publisher,
	devices DeviceStore,
	presenter ui.Presenter,
	settings *store.Settings,
	commandTemplate string,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		transport:       transport,
		devices:         devices,
		presenter:       presenter,
		settings:        settings,
		commandTemplate: commandTemplate,
		logger:          logger,
	}
}

// publish 构建命令主题并发布
// 未连接时返回失败信号并显示短暂提示，绝不panic
func (d *Dispatcher) publish(deviceID, commandName string, payload interface{}) error {
	topic := topics.BuildCommand(d.commandTemplate, deviceID, commandName)

	if err := d.transport.PublishJSON(topic, payload, false); err != nil {
		if errors.Is(err, mqtt.ErrNotConnected) {
			d.presenter.ShowTransient("Sem conexão com o broker", "error")
		}
		d.logger.Warn("Failed to publish command",
			zap.String("device_id", deviceID),
			zap.String("command", commandName),
			zap.Error(err),
		)
		return err
	}

	d.logger.Debug("Command published",
		zap.String("device_id", deviceID),
		zap.String("command", commandName),
	)
	return nil
}

// ToggleBlock 在两个阻塞状态间翻转（未知时按未锁定分支处理）
// 乐观更新：发布后立即写入本地状态，等待确认回传覆盖
func (d *Dispatcher) ToggleBlock(deviceID string) error {
	device, ok := d.devices.Snapshot(deviceID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}

	next := models.BlockStateBlocked
	if device.BlockState != nil && device.BlockState.Blocked() {
		next = models.BlockStateUnblocked
	}

	if err := d.publish(deviceID, CmdBlock, map[string]string{"state": next}); err != nil {
		return err
	}

	optimistic := &models.BlockStatePayload{State: next}
	d.devices.Update(deviceID, func(device *models.Device) {
		device.BlockState = optimistic
	})
	d.presenter.UpdateDetailPage(deviceID, &models.StatusUpdate{
		Kind:       models.KindBlockState,
		BlockState: optimistic,
	})
	return nil
}

// ChangeCurrent 在两个电流档位间翻转（未知时按档位1处理）
// 乐观更新，避免往返延迟造成可见卡顿
func (d *Dispatcher) ChangeCurrent(deviceID string) error {
	device, ok := d.devices.Snapshot(deviceID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}

	current := models.CurrentPreset32A
	if device.CurrentState != nil && device.CurrentState.State != 0 {
		current = device.CurrentState.State
	}
	next := models.CurrentPreset16A
	if current == models.CurrentPreset16A {
		next = models.CurrentPreset32A
	}

	if err := d.publish(deviceID, CmdSetCurrent, map[string]int{"state": next}); err != nil {
		return err
	}

	optimistic := &models.CurrentStatePayload{State: next}
	d.devices.Update(deviceID, func(device *models.Device) {
		device.CurrentState = optimistic
	})
	d.presenter.UpdateDetailPage(deviceID, &models.StatusUpdate{
		Kind:         models.KindCurrentState,
		CurrentState: optimistic,
	})
	return nil
}

// Debug 请求设备输出调试信息
func (d *Dispatcher) Debug(deviceID string) error {
	return d.publish(deviceID, CmdDebug, map[string]int{"debug": 1})
}

// ForceCharge 强制开始/停止充电
func (d *Dispatcher) ForceCharge(deviceID string, on bool) error {
	return d.publish(deviceID, CmdForceCharge, map[string]bool{"force_charge": on})
}

// ForceError 强制进入故障状态
func (d *Dispatcher) ForceError(deviceID string) error {
	return d.publish(deviceID, CmdForceError, map[string]bool{"force_error": true})
}

// ResetRfid 重置设备RFID配置
func (d *Dispatcher) ResetRfid(deviceID string) error {
	return d.publish(deviceID, CmdResetRfid, map[string]interface{}{})
}

// ResetEvse 重启设备
func (d *Dispatcher) ResetEvse(deviceID string) error {
	return d.publish(deviceID, CmdResetEvse, map[string]interface{}{})
}

// ToggleRainbow 切换LED彩虹模式
func (d *Dispatcher) ToggleRainbow(deviceID string) error {
	return d.publish(deviceID, CmdToggleRainbow, map[string]interface{}{})
}

// GfciSelfTest 触发GFCI自检
func (d *Dispatcher) GfciSelfTest(deviceID string) error {
	return d.publish(deviceID, CmdGfciSelfTest, map[string]interface{}{})
}

// CalibrateCurrent 触发电流偏置校准
func (d *Dispatcher) CalibrateCurrent(deviceID string) error {
	return d.publish(deviceID, CmdCalibrateCurrent, map[string]interface{}{})
}

// SaveSchedule 校验并下发充电窗口
// 起止时间缺失时在发布前中止（校验失败只给短暂提示）
func (d *Dispatcher) SaveSchedule(deviceID string, schedule models.Schedule) error {
	if schedule.Start == "" || schedule.End == "" {
		d.presenter.ShowTransient("Por favor, preencha os horários de início e fim.", "error")
		return fmt.Errorf("%w: schedule start/end required", ErrValidationFailed)
	}

	d.presenter.ShowTransient("Salvando agendamento...", "info")
	if err := d.publish(deviceID, CmdSchedule, schedule); err != nil {
		return err
	}

	// 乐观更新：确认回传前重新打开即可见新数据
	d.devices.Update(deviceID, func(device *models.Device) {
		device.Schedule = &schedule
	})
	return nil
}

// ClearSchedule 清除充电窗口
func (d *Dispatcher) ClearSchedule(deviceID string) error {
	d.presenter.ShowTransient("Limpando agendamento...", "info")
	if err := d.publish(deviceID, CmdScheduleClear, map[string]interface{}{}); err != nil {
		return err
	}

	d.devices.Update(deviceID, func(device *models.Device) {
		device.Schedule = &models.Schedule{Weekdays: []int{}}
	})
	return nil
}

// SaveWifi 下发Wi-Fi凭证（凭证正确时设备会重启）
func (d *Dispatcher) SaveWifi(deviceID, ssid, password string) error {
	if ssid == "" {
		d.presenter.ShowTransient("SSID é obrigatório.", "error")
		return fmt.Errorf("%w: ssid required", ErrValidationFailed)
	}

	d.presenter.ShowTransient("Salvando credenciais...", "info")
	return d.publish(deviceID, CmdWifiSave, map[string]string{
		"ssid":     ssid,
		"password": password,
	})
}

// SetRfidRegisterMode 开关设备的刷卡录入模式（RFID配置会话期间开启）
func (d *Dispatcher) SetRfidRegisterMode(deviceID string, enabled bool) error {
	return d.publish(deviceID, CmdSetRfidRegisterMode, map[string]bool{"cadastro": enabled})
}

// ConsoleInput 将原始控制台输入转发给设备
func (d *Dispatcher) ConsoleInput(deviceID, command string) error {
	return d.publish(deviceID, CmdConsoleInput, map[string]string{"command": command})
}

// ValidateCardID 卡号结构校验
func ValidateCardID(cardID string) bool {
	clean := strings.TrimSpace(cardID)
	return len(clean) >= 4 && cardIDPattern.MatchString(clean)
}

// BeginRfidSession 开始RFID配置会话：装载设备已知卡列表并开启录入模式
func (d *Dispatcher) BeginRfidSession(deviceID string) {
	var cards []models.RfidCard
	if device, ok := d.devices.Snapshot(deviceID); ok && device.RfidConfig != nil {
		cards = append(cards, device.RfidConfig.Cards...)
	}

	d.mu.Lock()
	d.cards = cards
	d.mu.Unlock()

	if err := d.SetRfidRegisterMode(deviceID, true); err != nil {
		d.logger.Warn("Failed to enable rfid register mode",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
	}
}

// EndRfidSession 结束RFID配置会话：关闭录入模式
func (d *Dispatcher) EndRfidSession(deviceID string) {
	if err := d.SetRfidRegisterMode(deviceID, false); err != nil {
		d.logger.Warn("Failed to disable rfid register mode",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
	}
}

// AddCard 向当前会话追加一张卡（校验失败或重复时中止）
func (d *Dispatcher) AddCard(name, id string) error {
	id = strings.ToUpper(strings.TrimSpace(id))
	name = strings.TrimSpace(name)

	if name == "" {
		d.presenter.ShowTransient("Por favor, insira um nome para o cartão.", "error")
		return fmt.Errorf("%w: card name required", ErrValidationFailed)
	}
	if !ValidateCardID(id) {
		d.presenter.ShowTransient("ID do cartão inválido.", "error")
		return fmt.Errorf("%w: invalid card id", ErrValidationFailed)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, card := range d.cards {
		if card.ID == id {
			d.presenter.ShowTransient("Este cartão já está cadastrado.", "error")
			return fmt.Errorf("%w: duplicate card id", ErrValidationFailed)
		}
	}
	d.cards = append(d.cards, models.RfidCard{ID: id, Name: name})
	return nil
}

// RemoveCard 从当前会话移除一张卡
func (d *Dispatcher) RemoveCard(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for idx, card := range d.cards {
		if card.ID == id {
			d.cards = append(d.cards[:idx], d.cards[idx+1:]...)
			return
		}
	}
}

// Cards 当前会话的卡列表副本
func (d *Dispatcher) Cards() []models.RfidCard {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]models.RfidCard, len(d.cards))
	copy(out, d.cards)
	return out
}

// SaveRfidConfig 校验并下发RFID配置，同时持久化到本地KV
// 约束：启用RFID必须至少注册一张卡
func (d *Dispatcher) SaveRfidConfig(ctx context.Context, deviceID string, enabled bool) error {
	cards := d.Cards()

	if enabled && len(cards) == 0 {
		d.presenter.ShowTransient("Para ativar o RFID, é necessário cadastrar pelo menos um cartão.", "error")
		return fmt.Errorf("%w: rfid requires at least one card", ErrValidationFailed)
	}

	cfg := models.RfidConfig{RfidEnabled: enabled, Cards: cards}

	d.presenter.ShowTransient("Salvando configurações RFID...", "info")
	if err := d.publish(deviceID, CmdSaveRfidConfig, cfg); err != nil {
		return err
	}

	d.devices.Update(deviceID, func(device *models.Device) {
		device.RfidConfig = &cfg
	})

	if d.settings != nil {
		if err := d.settings.SaveRfidConfig(ctx, &cfg); err != nil {
			d.logger.Warn("Failed to persist rfid config", zap.Error(err))
		}
	}
	return nil
}
