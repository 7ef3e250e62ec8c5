package topics

import "strings"

// 主题结构: evse/{deviceId}/status/{statusName}[/...]
//           evse/{deviceId}/command/{commandName}
const (
	// DiscoveryFilter 设备发现订阅主题（通配所有设备的connection叶子）
	DiscoveryFilter = "evse/+/status/connection"

	// StatusTemplate 单设备全状态订阅模板
	StatusTemplate = "evse/{deviceId}/status/#"

	// CommandTemplate 命令发布主题模板
	CommandTemplate = "evse/{deviceId}/command/{commandName}"
)

// Parsed 解析后的主题字段（按位置提取，不做合法性校验）
type Parsed struct {
	DeviceID   string
	Channel    string   // 第2段，"status" 或 "command"
	StatusName string   // 第3段
	Remainder  []string // 第3段之后的剩余段
}

// Parse 按 "/" 拆分主题并取固定位置字段
// 段数不足时对应字段为空，由调用方自行防御
func Parse(topic string) Parsed {
	parts := strings.Split(topic, "/")

	var p Parsed
	if len(parts) > 1 {
		p.DeviceID = parts[1]
	}
	if len(parts) > 2 {
		p.Channel = parts[2]
	}
	if len(parts) > 3 {
		p.StatusName = parts[3]
	}
	if len(parts) > 4 {
		p.Remainder = parts[4:]
	}
	return p
}

// IsConnection 是否为连接状态叶子（发现通道）
func (p Parsed) IsConnection() bool {
	return p.Channel == "status" && p.StatusName == "connection"
}

// BuildStatus 构建单设备状态订阅主题
func BuildStatus(template, deviceID string) string {
	return strings.Replace(template, "{deviceId}", deviceID, 1)
}

// BuildCommand 构建命令发布主题
func BuildCommand(template, deviceID, commandName string) string {
	topic := strings.Replace(template, "{deviceId}", deviceID, 1)
	return strings.Replace(topic, "{commandName}", commandName, 1)
}
