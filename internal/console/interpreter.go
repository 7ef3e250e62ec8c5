package console

import (
	"fmt"
	"strings"
	"sync"

	"evse-dashboard/internal/models"

	"go.uber.org/zap"
)

const dashboardVersion = "EVSE Dashboard v1.0.0"

// Commander 解释器触发的远程命令动作（由命令分发器实现）
type Commander interface {
	ToggleBlock(deviceID string) error
	ForceCharge(deviceID string, on bool) error
	ForceError(deviceID string) error
	ResetRfid(deviceID string) error
	ResetEvse(deviceID string) error
	ToggleRainbow(deviceID string) error
	GfciSelfTest(deviceID string) error
	CalibrateCurrent(deviceID string) error
	ConsoleInput(deviceID, command string) error
}

// DeviceLister devices/stats 命令需要的注册表只读视图（快照副本）
type DeviceLister interface {
	List() []models.Device
	Count() int
}

// Interpreter 本地控制台命令解释器
// 两级分发：固定词表的本地拦截优先，未命中则原样转发为远程 console_input 命令
type Interpreter struct {
	log       *Log
	commander Commander
	devices   DeviceLister
	logger    *zap.Logger

	// 显式的焦点设备标识（读改写都在这里，不做隐式身份比较）
	mu      sync.Mutex
	focused string
}

// NewInterpreter 创建解释器
func NewInterpreter(log *Log, commander Commander, devices DeviceLister, logger *zap.Logger) *Interpreter {
	return &Interpreter{
		log:       log,
		commander: commander,
		devices:   devices,
		logger:    logger,
	}
}

// SetFocus 设置控制台焦点设备（打开某设备控制台时）
func (i *Interpreter) SetFocus(deviceID string) {
	i.mu.Lock()
	i.focused = deviceID
	i.mu.Unlock()
}

// Focus 当前焦点设备标识
func (i *Interpreter) Focus() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.focused
}

// HandleDeviceMessage console_output 通道消息入口（实现调和器的ConsoleSink）
func (i *Interpreter) HandleDeviceMessage(deviceID string, out *models.ConsoleOutput) {
	i.log.Append(out.Tag, out.Message, deviceID)
}

// Execute 处理一行控制台输入
// 本地命令按整行修剪后的精确匹配（不区分大小写）；返回是否被本地拦截
func (i *Interpreter) Execute(input string) bool {
	command := strings.TrimSpace(input)
	if command == "" {
		return true
	}

	deviceID := i.Focus()

	if i.executeLocal(strings.ToLower(command), deviceID) {
		return true
	}

	// 未命中本地词表 → 原样远程转发到焦点设备
	if deviceID == "" {
		i.log.Append("WARNING", "Nenhum dispositivo selecionado", "")
		return false
	}

	if err := i.commander.ConsoleInput(deviceID, command); err != nil {
		i.logger.Warn("Failed to forward console command",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		i.log.Append("ERROR", fmt.Sprintf("Falha ao enviar comando: %s", command), deviceID)
		return false
	}

	i.log.Append("USER", fmt.Sprintf("Comando enviado: %s", command), deviceID)
	return false
}

// executeLocal 本地词表分发，命中返回 true
func (i *Interpreter) executeLocal(command, deviceID string) bool {
	switch command {
	case "help":
		i.showHelp(deviceID)
		return true

	case "clear":
		i.log.Clear()
		return true

	case "version":
		i.log.Append("SYS", dashboardVersion, deviceID)
		return true

	case "devices":
		devices := i.devices.List()
		i.log.Append("SYS", fmt.Sprintf("%d dispositivo(s) conectado(s):", len(devices)), deviceID)
		for _, d := range devices {
			status := "Offline"
			if d.Online {
				status = "Online"
			}
			i.log.Append("SYS", fmt.Sprintf("  %s: %s (%s)", d.ID, d.Name, status), deviceID)
		}
		return true

	case "stats":
		devices := i.devices.List()
		online := 0
		for _, d := range devices {
			if d.Online {
				online++
			}
		}
		i.log.Append("SYS", "Estatísticas do Sistema:", deviceID)
		i.log.Append("SYS", fmt.Sprintf("  Dispositivos: %d", len(devices)), deviceID)
		i.log.Append("SYS", fmt.Sprintf("  Online: %d", online), deviceID)
		i.log.Append("SYS", fmt.Sprintf("  Mensagens no console: %d", len(i.log.Messages(Filter{DeviceID: deviceID}))), deviceID)
		return true

	case "tglblock":
		i.runLocal(deviceID, "toggle block", i.commander.ToggleBlock)
		return true

	case "force_charge 1":
		i.runLocal(deviceID, "force charge ON", func(id string) error {
			return i.commander.ForceCharge(id, true)
		})
		return true

	case "force_charge 0":
		i.runLocal(deviceID, "force charge OFF", func(id string) error {
			return i.commander.ForceCharge(id, false)
		})
		return true

	case "force_error":
		i.runLocal(deviceID, "forcing error state..", i.commander.ForceError)
		return true

	case "reset_rfid":
		i.runLocal(deviceID, "running resetrfid..", i.commander.ResetRfid)
		return true

	case "reset":
		i.runLocal(deviceID, "running reset evse..", i.commander.ResetEvse)
		return true

	case "rainbow":
		i.runLocal(deviceID, "toggle rainbow", i.commander.ToggleRainbow)
		return true

	case "gfci_test":
		i.runLocal(deviceID, "running GFCI self-test..", i.commander.GfciSelfTest)
		return true

	case "calibrate_current_offset":
		i.runLocal(deviceID, "calibrating current..", i.commander.CalibrateCurrent)
		return true
	}

	return false
}

// runLocal 执行本地动作并追加SYS确认行
func (i *Interpreter) runLocal(deviceID, confirmation string, action func(string) error) {
	if err := action(deviceID); err != nil {
		i.logger.Warn("Local console command failed",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
	}
	i.log.Append("SYS", confirmation, deviceID)
}

func (i *Interpreter) showHelp(deviceID string) {
	lines := []string{
		"Comandos locais disponíveis:",
		"help ------------------------ Mostra esta ajuda",
		"clear ----------------------- Limpa o console",
		"version --------------------- Mostra versão do dashboard",
		"devices --------------------- Lista dispositivos conectados",
		"stats ----------------------- Mostra estatísticas do sistema",
		"tglblock -------------------- Toggle bloqueio",
		"force_charge 1 -------------- Força início de carregamento",
		"force_charge 0 -------------- Força parada de carregamento",
		"force_error ----------------- Força estado de erro",
		"reset_rfid ------------------ Reseta configuração RFID",
		"reset ----------------------- Reseta o EVSE",
		"rainbow --------------------- Toggle modo rainbow",
		"gfci_test ------------------- Inicia auto-teste do GFCI",
		"calibrate_current_offset ---- Inicia calibração de corrente",
	}
	for _, line := range lines {
		i.log.Append("SYS", line, deviceID)
	}
}
