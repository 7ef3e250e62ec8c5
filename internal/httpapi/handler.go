package httpapi

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	"evse-dashboard/internal/charts"
	"evse-dashboard/internal/commands"
	"evse-dashboard/internal/console"
	"evse-dashboard/internal/models"
	"evse-dashboard/internal/mqtt"
	"evse-dashboard/internal/service"

	"go.uber.org/zap"
)

// ViewActivator 详情视图激活的表现层入口
type ViewActivator interface {
	ActivateDetail(deviceID string)
}

// Handler 仪表盘只读/控制HTTP接口
// 这是表现层协作者的传输通道，渲染不在此层
type Handler struct {
	dash   *service.Dashboard
	view   ViewActivator
	logger *zap.Logger
}

// NewHandler 创建HTTP处理器
func NewHandler(dash *service.Dashboard, view ViewActivator, logger *zap.Logger) *Handler {
	return &Handler{dash: dash, view: view, logger: logger}
}

// Routes 注册全部路由
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/status", h.getStatus)
	mux.HandleFunc("/api/v1/resume", h.postResume)
	mux.HandleFunc("/api/v1/suspend", h.postSuspend)
	mux.HandleFunc("/api/v1/devices", h.getDevices)
	mux.HandleFunc("/api/v1/devices/", h.deviceSubroutes)
	mux.HandleFunc("/api/v1/console", h.getConsole)
	mux.HandleFunc("/api/v1/console/input", h.postConsoleInput)
	mux.HandleFunc("/api/v1/console/focus", h.postConsoleFocus)
	mux.HandleFunc("/api/v1/charts/home", h.getHomeChart)

	return mux
}

// deviceView 设备记录的响应视图
type deviceView struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Online    bool    `json:"online"`
	StateName string  `json:"state_name,omitempty"`
	Power     float64 `json:"power"`

	State           *models.OperatingStatePayload `json:"state,omitempty"`
	BlockState      *models.BlockStatePayload     `json:"block_state,omitempty"`
	CurrentState    *models.CurrentStatePayload   `json:"current_state,omitempty"`
	ChargingSession *models.ChargingSession       `json:"charging_session,omitempty"`
	Temperature     *models.Temperature           `json:"temperature,omitempty"`
	WifiInfo        *models.WifiInfo              `json:"wifi_info,omitempty"`
	RfidConfig      *models.RfidConfig            `json:"rfid_config,omitempty"`
	Schedule        *models.Schedule              `json:"schedule,omitempty"`
}

func toDeviceView(d models.Device) deviceView {
	v := deviceView{
		ID:              d.ID,
		Name:            d.Name,
		Online:          d.Online,
		Power:           d.SessionPower(),
		State:           d.State,
		BlockState:      d.BlockState,
		CurrentState:    d.CurrentState,
		ChargingSession: d.ChargingSession,
		Temperature:     d.Temperature,
		WifiInfo:        d.WifiInfo,
		RfidConfig:      d.RfidConfig,
		Schedule:        d.Schedule,
	}
	if d.State != nil {
		v.StateName = d.State.State.Name()
	}
	return v
}

func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"connected":      h.dash.IsConnected(),
		"devices":        h.dash.Registry().Count(),
		"focused_device": h.dash.Interpreter().Focus(),
	}))
}

// postResume 前台恢复：传输已断开时立即重启连接流程
func (h *Handler) postResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	h.dash.Resume()
	writeJSON(w, http.StatusOK, Ok(map[string]any{"connected": h.dash.IsConnected()}))
}

// postSuspend 前台挂起通知（尽力而为，不改变连接）
func (h *Handler) postSuspend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	h.dash.Suspend()
	writeJSON(w, http.StatusOK, Ok(map[string]any{"connected": h.dash.IsConnected()}))
}

func (h *Handler) getDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	devices := h.dash.Registry().List()
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })

	views := make([]deviceView, 0, len(devices))
	for _, d := range devices {
		views = append(views, toDeviceView(d))
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"items": views, "total": len(views)}))
}

// deviceSubroutes /api/v1/devices/{id}[/view|/charts|/commands/{name}]
func (h *Handler) deviceSubroutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/devices/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	deviceID := parts[0]

	switch {
	case len(parts) == 1:
		h.getDevice(w, r, deviceID)
	case len(parts) == 2 && parts[1] == "view":
		h.postView(w, r, deviceID)
	case len(parts) == 2 && parts[1] == "charts":
		h.getDeviceCharts(w, r, deviceID)
	case len(parts) == 3 && parts[1] == "commands":
		h.postCommand(w, r, deviceID, parts[2])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) getDevice(w http.ResponseWriter, r *http.Request, deviceID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	device, ok := h.dash.Registry().Snapshot(deviceID)
	if !ok {
		writeJSON(w, http.StatusNotFound, Fail("device not found"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(toDeviceView(device)))
}

// postView 激活设备详情视图并回放已存储状态
func (h *Handler) postView(w http.ResponseWriter, r *http.Request, deviceID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if !h.dash.Reconciler().PopulateDetail(deviceID) {
		writeJSON(w, http.StatusNotFound, Fail("device not found"))
		return
	}
	if h.view != nil {
		h.view.ActivateDetail(deviceID)
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"active": deviceID}))
}

func (h *Handler) getDeviceCharts(w http.ResponseWriter, r *http.Request, deviceID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if !h.dash.Registry().Has(deviceID) {
		writeJSON(w, http.StatusNotFound, Fail("device not found"))
		return
	}

	var cpStats charts.CPStats
	if cp := h.dash.Registry().CPChart(deviceID); cp != nil {
		cpStats = cp.Stats()
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"cp": cpStats}))
}

// postCommand 按命令名分发到命令分发器
func (h *Handler) postCommand(w http.ResponseWriter, r *http.Request, deviceID, name string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	dispatcher := h.dash.Dispatcher()
	var err error

	switch name {
	case commands.CmdBlock:
		err = dispatcher.ToggleBlock(deviceID)

	case commands.CmdSetCurrent:
		err = dispatcher.ChangeCurrent(deviceID)

	case commands.CmdDebug:
		err = dispatcher.Debug(deviceID)

	case commands.CmdForceCharge:
		var body struct {
			ForceCharge bool `json:"force_charge"`
		}
		if err := readBodyJSON(r, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
			return
		}
		err = dispatcher.ForceCharge(deviceID, body.ForceCharge)

	case commands.CmdForceError:
		err = dispatcher.ForceError(deviceID)

	case commands.CmdResetRfid:
		err = dispatcher.ResetRfid(deviceID)

	case commands.CmdResetEvse:
		err = dispatcher.ResetEvse(deviceID)

	case commands.CmdToggleRainbow:
		err = dispatcher.ToggleRainbow(deviceID)

	case commands.CmdGfciSelfTest:
		err = dispatcher.GfciSelfTest(deviceID)

	case commands.CmdCalibrateCurrent:
		err = dispatcher.CalibrateCurrent(deviceID)

	case commands.CmdSchedule:
		var schedule models.Schedule
		if err := readBodyJSON(r, &schedule); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
			return
		}
		err = dispatcher.SaveSchedule(deviceID, schedule)

	case commands.CmdScheduleClear:
		err = dispatcher.ClearSchedule(deviceID)

	case commands.CmdWifiSave:
		var body struct {
			SSID     string `json:"ssid"`
			Password string `json:"password"`
		}
		if err := readBodyJSON(r, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
			return
		}
		err = dispatcher.SaveWifi(deviceID, body.SSID, body.Password)

	case commands.CmdSaveRfidConfig:
		var body struct {
			RfidEnabled bool `json:"rfidEnabled"`
		}
		if err := readBodyJSON(r, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
			return
		}
		err = dispatcher.SaveRfidConfig(r.Context(), deviceID, body.RfidEnabled)

	case commands.CmdSetRfidRegisterMode:
		var body struct {
			Cadastro bool `json:"cadastro"`
		}
		if err := readBodyJSON(r, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
			return
		}
		err = dispatcher.SetRfidRegisterMode(deviceID, body.Cadastro)

	case commands.CmdConsoleInput:
		var body struct {
			Command string `json:"command"`
		}
		if err := readBodyJSON(r, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
			return
		}
		err = dispatcher.ConsoleInput(deviceID, body.Command)

	default:
		writeJSON(w, http.StatusNotFound, Fail("unknown command"))
		return
	}

	if err != nil {
		h.writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"command": name}))
}

// writeCommandError 命令错误到HTTP状态的映射
func (h *Handler) writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, commands.ErrUnknownDevice):
		writeJSON(w, http.StatusNotFound, Fail(err.Error()))
	case errors.Is(err, commands.ErrValidationFailed):
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
	case errors.Is(err, mqtt.ErrNotConnected):
		writeJSON(w, http.StatusServiceUnavailable, Fail("broker not connected"))
	default:
		writeJSON(w, http.StatusInternalServerError, Fail(err.Error()))
	}
}

func (h *Handler) getConsole(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	messages := h.dash.ConsoleLog().Messages(console.Filter{
		DeviceID: q.Get("device"),
		Tag:      q.Get("tag"),
		Search:   q.Get("search"),
	})

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": messages,
		"tags":  h.dash.ConsoleLog().Tags(),
	}))
}

// postConsoleInput 控制台整行输入（本地拦截优先于远程转发）
func (h *Handler) postConsoleInput(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		Input string `json:"input"`
	}
	if err := readBodyJSON(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}

	local := h.dash.Interpreter().Execute(body.Input)
	writeJSON(w, http.StatusOK, Ok(map[string]any{"local": local}))
}

func (h *Handler) postConsoleFocus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		DeviceID string `json:"deviceId"`
	}
	if err := readBodyJSON(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}

	h.dash.Interpreter().SetFocus(body.DeviceID)
	writeJSON(w, http.StatusOK, Ok(map[string]any{"focused": body.DeviceID}))
}

func (h *Handler) getHomeChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"points": h.dash.HomeChart().Points(),
	}))
}
