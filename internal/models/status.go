package models

import (
	"encoding/json"
	"fmt"
)

// StatusKind 状态片段种类（按主题第3段识别）
type StatusKind string

const (
	KindConnection      StatusKind = "connection"
	KindConsoleOutput   StatusKind = "console_output"
	KindLastRfidUID     StatusKind = "last_rfid_uid"
	KindChargingSession StatusKind = "charging_session"
	KindTemperature     StatusKind = "temperature"
	KindCPData          StatusKind = "cp_data"
	KindVRMSData        StatusKind = "vrms_data"
	KindIRMSData        StatusKind = "irms_data"
	KindCurrentState    StatusKind = "current_state"
	KindState           StatusKind = "state"
	KindBlockState      StatusKind = "block_state"
	KindWifiInfo        StatusKind = "wifi_info"
	KindRfidConfig      StatusKind = "rfid_config"
	KindSchedule        StatusKind = "schedule"
)

// ConnectionStatus connection 通道载荷，由backend以retained发布
type ConnectionStatus struct {
	DeviceID string `json:"deviceId,omitempty"`
	Status   string `json:"status"` // "online" 或 "offline"
}

// IsOnline 载荷字段等于字面值 "online" 时设备可达
func (c *ConnectionStatus) IsOnline() bool {
	return c.Status == "online"
}

// OperatingStatePayload state 通道载荷，State 为状态序号（0-5 → A-F）
type OperatingStatePayload struct {
	State OperatingState `json:"state"`
}

// BlockStatePayload block_state 通道载荷
type BlockStatePayload struct {
	State string `json:"state"` // "ESTADO_A" 或 "ESTADO_E"
}

// Blocked 是否处于锁定状态
func (b *BlockStatePayload) Blocked() bool {
	return b.State == BlockStateBlocked
}

// CurrentStatePayload current_state 通道载荷，State 为档位（1 或 2）
type CurrentStatePayload struct {
	State int `json:"state"`
}

// ChargingSession charging_session 通道载荷
type ChargingSession struct {
	Power            float64 `json:"power"`  // 瞬时功率 kW
	Energy           float64 `json:"energy"` // 累计电量 kWh
	SessionTime      string  `json:"sessionTime,omitempty"`
	SessionStartTime string  `json:"sessionStartTime,omitempty"` // ISO 8601，空串表示无会话
}

// Temperature temperature 通道载荷，传感器值缺失时为 nil
type Temperature struct {
	Sensor1 *float64 `json:"sensor1,omitempty"`
	Sensor2 *float64 `json:"sensor2,omitempty"`
}

// CPData cp_data 通道载荷（CP 信号高低电平，mV）
type CPData struct {
	CPHigh float64 `json:"cp_high"`
	CPLow  float64 `json:"cp_low"`
}

// RMSData vrms_data / irms_data 通道载荷
type RMSData struct {
	Value float64 `json:"value"`
}

// WifiInfo wifi_info 通道载荷
type WifiInfo struct {
	SSID string `json:"ssid"`
	RSSI int    `json:"rssi,omitempty"`
	IP   string `json:"ip,omitempty"`
}

// RfidCard 已注册的RFID卡
type RfidCard struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RfidConfig rfid_config 通道载荷
type RfidConfig struct {
	RfidEnabled bool       `json:"rfidEnabled"`
	Cards       []RfidCard `json:"cards"`
}

// Schedule schedule 通道载荷（每日充电窗口）
type Schedule struct {
	Start    string `json:"start"` // "HH:MM"
	End      string `json:"end"`
	Weekdays []int  `json:"weekdays"` // 0-6
}

// ConsoleOutput console_output 通道载荷
type ConsoleOutput struct {
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// RfidUID last_rfid_uid 通道载荷（最后刷卡的凭证标识）
type RfidUID struct {
	UID string `json:"uid"`
}

// StatusUpdate 已解码的状态片段（带标签联合）
// 每个种类携带各自的载荷类型，Generic 仅在种类未识别时非空
type StatusUpdate struct {
	Kind            StatusKind
	State           *OperatingStatePayload
	BlockState      *BlockStatePayload
	CurrentState    *CurrentStatePayload
	ChargingSession *ChargingSession
	Temperature     *Temperature
	CPData          *CPData
	RMSData         *RMSData
	WifiInfo        *WifiInfo
	RfidConfig      *RfidConfig
	Schedule        *Schedule
	Generic         json.RawMessage
}

// DecodeStatus 按状态名解码载荷
// 空载荷按空JSON对象处理；未识别的状态名解码为Generic片段
func DecodeStatus(statusName string, payload []byte) (*StatusUpdate, error) {
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	u := &StatusUpdate{Kind: StatusKind(statusName)}

	var dst interface{}
	switch u.Kind {
	case KindState:
		u.State = &OperatingStatePayload{}
		dst = u.State
	case KindBlockState:
		u.BlockState = &BlockStatePayload{}
		dst = u.BlockState
	case KindCurrentState:
		u.CurrentState = &CurrentStatePayload{}
		dst = u.CurrentState
	case KindChargingSession:
		u.ChargingSession = &ChargingSession{}
		dst = u.ChargingSession
	case KindTemperature:
		u.Temperature = &Temperature{}
		dst = u.Temperature
	case KindCPData:
		u.CPData = &CPData{}
		dst = u.CPData
	case KindVRMSData, KindIRMSData:
		u.RMSData = &RMSData{}
		dst = u.RMSData
	case KindWifiInfo:
		u.WifiInfo = &WifiInfo{}
		dst = u.WifiInfo
	case KindRfidConfig:
		u.RfidConfig = &RfidConfig{}
		dst = u.RfidConfig
	case KindSchedule:
		u.Schedule = &Schedule{}
		dst = u.Schedule
	default:
		raw := json.RawMessage{}
		if err := json.Unmarshal(payload, &raw); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", statusName, err)
		}
		u.Generic = raw
		return u, nil
	}

	if err := json.Unmarshal(payload, dst); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", statusName, err)
	}
	return u, nil
}
