package service

import (
	"sync"
	"time"

	"evse-dashboard/internal/charts"
	"evse-dashboard/internal/commands"
	"evse-dashboard/internal/config"
	"evse-dashboard/internal/console"
	"evse-dashboard/internal/mqtt"
	"evse-dashboard/internal/registry"
	"evse-dashboard/internal/store"
	"evse-dashboard/internal/timers"
	"evse-dashboard/internal/ui"

	"go.uber.org/zap"
)

// Dashboard 仪表盘服务（连接管理器）
// 持有唯一的传输连接及其生命周期：
// Disconnected → Connecting → Connected(仅发现) → Connected(发现+设备) → Lost → Reconnecting
// 每次重连都是冷启动：先清空注册表，再重新订阅发现主题
type Dashboard struct {
	cfg       *config.Config
	logger    *zap.Logger
	presenter ui.Presenter

	client      *mqtt.Client
	registry    *registry.Registry
	reconciler  *registry.Reconciler
	timers      *timers.SessionTimers
	consoleLog  *console.Log
	interpreter *console.Interpreter
	dispatcher  *commands.Dispatcher
	homeChart   *charts.HomeChart

	mu        sync.Mutex
	reconnect *time.Timer
	stopped   bool

	// dial 连接流程入口，测试中可替换
	dial func()
}

// New 组装仪表盘服务（显式依赖传递，不走共享全局）
func New(cfg *config.Config, presenter ui.Presenter, settings *store.Settings, logger *zap.Logger) *Dashboard {
	d := &Dashboard{
		cfg:       cfg,
		logger:    logger,
		presenter: presenter,
	}

	d.client = mqtt.NewClient(mqtt.Options{
		Broker:   cfg.MQTT.Broker,
		ClientID: cfg.ClientID(),
		QoS:      cfg.MQTT.QoS,
	}, logger)

	d.registry = registry.New(cfg.Limits.DetailChartPoints)
	d.timers = timers.NewSessionTimers(presenter, logger)
	d.consoleLog = console.NewLog(cfg.Limits.ConsoleMaxMessages)

	d.dispatcher = commands.NewDispatcher(
		d.client,
		d.registry,
		presenter,
		settings,
		cfg.MQTT.Topics.CommandTemplate,
		logger,
	)

	d.interpreter = console.NewInterpreter(d.consoleLog, d.dispatcher, d.registry, logger)

	d.reconciler = registry.NewReconciler(
		d.registry,
		d.client,
		presenter,
		d.timers,
		d.interpreter,
		registry.Topics{
			StatusTemplate:  cfg.MQTT.Topics.StatusTemplate,
			CommandTemplate: cfg.MQTT.Topics.CommandTemplate,
		},
		logger,
	)

	d.homeChart = charts.NewHomeChart(cfg.Limits.HomeChartPoints, d.registry.TotalPower, logger)

	// 传输回调必须在连接尝试之前注册
	d.client.SetMessageHandler(func(topic string, payload []byte) {
		d.reconciler.HandleMessage(topic, payload)
	})
	d.client.SetConnectionLostHandler(d.handleConnectionLost)

	d.dial = d.connect

	return d
}

// Start 发起首次连接并启动聚合图表采样
func (d *Dashboard) Start() {
	d.logger.Info("Starting dashboard service",
		zap.String("broker", d.cfg.MQTT.Broker),
	)
	d.homeChart.Start()
	d.dial()
}

// Stop 优雅关闭：取消重连、停止计时与采样、断开传输
func (d *Dashboard) Stop() {
	d.mu.Lock()
	d.stopped = true
	if d.reconnect != nil {
		d.reconnect.Stop()
		d.reconnect = nil
	}
	d.mu.Unlock()

	d.timers.StopAll()
	d.homeChart.Stop()
	d.client.Disconnect()

	d.logger.Info("Dashboard service stopped")
}

// connect 完整连接流程（首连与每次重连共用）
func (d *Dashboard) connect() {
	d.client.Connect(d.handleConnectSuccess, d.handleConnectFailure)
}

// handleConnectSuccess 连接成功后的冷启动序列
// 注册表重置必须在发现订阅之前（重置原子性）
func (d *Dashboard) handleConnectSuccess() {
	// 1. 重置注册表与派生状态（上一代设备全部作废）
	d.timers.StopAll()
	d.registry.Reset()
	d.presenter.ClearDeviceCards()

	// 2. 仅订阅发现主题；设备主题在发现时逐个订阅
	if err := d.client.Subscribe(d.cfg.MQTT.Topics.Discovery); err != nil {
		d.logger.Error("Failed to subscribe to discovery topic", zap.Error(err))
		d.handleConnectionLost(err)
		return
	}

	d.logger.Info("Subscribed to discovery topic",
		zap.String("topic", d.cfg.MQTT.Topics.Discovery),
	)

	// 3. 通知表现层并回到默认首页
	d.presenter.UpdateConnectionStatus(true, "Conectado")
	d.presenter.NavigateTo(ui.PageHome)
}

// handleConnectFailure 连接失败：给出状态提示并按同样的延迟重试
// （首连失败与连接丢失采用一致的重试策略）
func (d *Dashboard) handleConnectFailure(err error) {
	d.logger.Error("Connection attempt failed", zap.Error(err))
	d.presenter.UpdateConnectionStatus(false, "Falha na conexão")
	d.scheduleReconnect()
}

// handleConnectionLost 连接丢失：清空卡片，延迟后整体重连（不做原地重订阅）
func (d *Dashboard) handleConnectionLost(err error) {
	d.presenter.UpdateConnectionStatus(false, "Desconectado")
	d.presenter.ClearDeviceCards()
	d.timers.StopAll()
	d.scheduleReconnect()
}

// scheduleReconnect 在固定延迟后重跑完整连接流程
func (d *Dashboard) scheduleReconnect() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || d.reconnect != nil {
		return
	}

	delay := time.Duration(d.cfg.MQTT.ReconnectDelay) * time.Second
	d.logger.Info("Reconnect scheduled", zap.Duration("delay", delay))

	d.reconnect = time.AfterFunc(delay, func() {
		d.mu.Lock()
		d.reconnect = nil
		stopped := d.stopped
		d.mu.Unlock()

		// 计时排期后传输可能已被Resume恢复，不再叠加第二条连接
		if stopped || d.client.IsConnected() {
			return
		}
		d.logger.Info("Attempting reconnection")
		d.dial()
	})
}

// Resume 可见性恢复：传输已断开时整体重启连接流程，已连接则不动作
// 先取消待触发的重连计时，连接流程同一时刻只存在一条
func (d *Dashboard) Resume() {
	if d.client.IsConnected() {
		return
	}

	d.mu.Lock()
	if d.reconnect != nil {
		d.reconnect.Stop()
		d.reconnect = nil
	}
	stopped := d.stopped
	d.mu.Unlock()
	if stopped {
		return
	}

	d.logger.Info("Resume with disconnected transport, restarting connection")
	d.dial()
}

// Suspend 前台挂起钩子：保持连接、计时与采样不变，仅记录（尽力而为）
func (d *Dashboard) Suspend() {
	d.logger.Debug("Suspend signal received, keeping transport alive")
}

// IsConnected 传输连接状态
func (d *Dashboard) IsConnected() bool {
	return d.client.IsConnected()
}

// Registry 设备注册表
func (d *Dashboard) Registry() *registry.Registry { return d.registry }

// Reconciler 消息调和器
func (d *Dashboard) Reconciler() *registry.Reconciler { return d.reconciler }

// Dispatcher 命令分发器
func (d *Dashboard) Dispatcher() *commands.Dispatcher { return d.dispatcher }

// Interpreter 控制台解释器
func (d *Dashboard) Interpreter() *console.Interpreter { return d.interpreter }

// ConsoleLog 控制台日志
func (d *Dashboard) ConsoleLog() *console.Log { return d.consoleLog }

// HomeChart 首页聚合图表
func (d *Dashboard) HomeChart() *charts.HomeChart { return d.homeChart }
