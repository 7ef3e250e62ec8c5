package models

import "fmt"

// OperatingState 充电协议状态（六态：A-F）
// 对应 CP 信号电平，值为参考毫伏数
type OperatingState int

const (
	StateA OperatingState = iota // 未连接
	StateB                       // 已连接
	StateC                       // 充电中
	StateD                       // 充电中（需通风）
	StateE                       // 节能/锁定
	StateF                       // 故障
)

// stateNames 状态显示名称（按状态序号索引）
var stateNames = []string{"ESTADO A", "ESTADO B", "ESTADO C", "ESTADO D", "ESTADO E", "ESTADO F"}

// stateMillivolts CP 信号参考电平（mV）
var stateMillivolts = []int{3147, 2772, 2398, 2024, 1650, 153}

// Name 状态显示名称，未知序号返回 "Desconhecido"
func (s OperatingState) Name() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Desconhecido"
	}
	return stateNames[s]
}

// Millivolts CP 参考电平，未知序号返回 0
func (s OperatingState) Millivolts() int {
	if s < 0 || int(s) >= len(stateMillivolts) {
		return 0
	}
	return stateMillivolts[s]
}

// 阻塞状态（与运行状态独立的锁定标志）
const (
	BlockStateUnblocked = "ESTADO_A"
	BlockStateBlocked   = "ESTADO_E"
)

// 电流档位（两档预设）
const (
	CurrentPreset32A = 1
	CurrentPreset16A = 2
)

// CurrentPresetLabel 电流档位显示名称
func CurrentPresetLabel(preset int) string {
	switch preset {
	case CurrentPreset32A:
		return "32A"
	case CurrentPreset16A:
		return "16A"
	default:
		return fmt.Sprintf("preset %d", preset)
	}
}

// Device 设备记录（以broker分配的设备标识符为键）
// 记录在发现时创建，运行期间原地更新，仅在重连的注册表重置时销毁
type Device struct {
	ID   string
	Name string // 发现时由标识符尾部字符派生，之后不再重算

	Online bool // 仅反映connection通道的最后值

	State           *OperatingStatePayload // 最后收到的运行状态片段
	BlockState      *BlockStatePayload
	CurrentState    *CurrentStatePayload // 可能被Dispatcher乐观更新
	ChargingSession *ChargingSession
	Temperature     *Temperature
	WifiInfo        *WifiInfo
	RfidConfig      *RfidConfig
	Schedule        *Schedule
}

// DeviceName 由标识符尾部6个字符派生显示名称
func DeviceName(deviceID string) string {
	suffix := deviceID
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	return "EVSE " + suffix
}

// NewDevice 创建带默认值的设备记录
func NewDevice(deviceID string) *Device {
	return &Device{
		ID:     deviceID,
		Name:   DeviceName(deviceID),
		Online: true,
	}
}

// SessionPower 当前会话功率（kW），无会话时为 0
func (d *Device) SessionPower() float64 {
	if d.ChargingSession == nil {
		return 0
	}
	return d.ChargingSession.Power
}
