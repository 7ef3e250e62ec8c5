package commands

import (
	"context"
	"encoding/json"
	"testing"

	"evse-dashboard/internal/models"
	"evse-dashboard/internal/mqtt"
	"evse-dashboard/internal/store"
	"evse-dashboard/internal/topics"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakePublisher 记录发布，可注入失败
type fakePublisher struct {
	topics   []string
	payloads []interface{}
	err      error
}

func (f *fakePublisher) PublishJSON(topic string, payload interface{}, retained bool) error {
	if f.err != nil {
		return f.err
	}
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, payload)
	return nil
}

// fakeDevices 固定设备映射
type fakeDevices struct {
	devices map[string]*models.Device
}

func (f *fakeDevices) Snapshot(deviceID string) (models.Device, bool) {
	d, ok := f.devices[deviceID]
	if !ok {
		return models.Device{}, false
	}
	return *d, true
}

func (f *fakeDevices) Update(deviceID string, fn func(*models.Device)) bool {
	d, ok := f.devices[deviceID]
	if !ok {
		return false
	}
	fn(d)
	return true
}

// fakePresenter 只记录短暂提示与详情刷新
type fakePresenter struct {
	transients    []string
	detailUpdates []models.StatusKind
}

func (f *fakePresenter) UpdateConnectionStatus(bool, string) {}
func (f *fakePresenter) NavigateTo(string)                   {}
func (f *fakePresenter) CreateDeviceCard(string)             {}
func (f *fakePresenter) ClearDeviceCards()                   {}
func (f *fakePresenter) UpdateSummaryCard(*models.Device)    {}
func (f *fakePresenter) IsDetailActive(string) bool          { return false }
func (f *fakePresenter) UpdateSessionTime(string, string)    {}
func (f *fakePresenter) SetRfidUID(string)                   {}

func (f *fakePresenter) UpdateDetailPage(deviceID string, update *models.StatusUpdate) {
	f.detailUpdates = append(f.detailUpdates, update.Kind)
}

func (f *fakePresenter) ShowTransient(message, level string) {
	f.transients = append(f.transients, message)
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *fakePublisher, *fakeDevices, *fakePresenter) {
	t.Helper()

	publisher := &fakePublisher{}
	devices := &fakeDevices{devices: map[string]*models.Device{
		"dev-1": models.NewDevice("dev-1"),
	}}
	presenter := &fakePresenter{}

	mr := miniredis.RunT(t)
	settings := store.NewSettings(store.NewRedisKV(redis.NewClient(&redis.Options{Addr: mr.Addr()})))

	d := NewDispatcher(publisher, devices, presenter, settings, topics.CommandTemplate, zap.NewNop())
	return d, publisher, devices, presenter
}

func TestToggleBlockUnknownDevice(t *testing.T) {
	d, publisher, _, _ := newTestDispatcher(t)

	err := d.ToggleBlock("ghost")
	assert.ErrorIs(t, err, ErrUnknownDevice)
	assert.Empty(t, publisher.topics)
}

func TestToggleBlockBothDirections(t *testing.T) {
	d, publisher, devices, presenter := newTestDispatcher(t)
	device := devices.devices["dev-1"]

	// 无已知状态 → 按未锁定处理，下发锁定
	require.NoError(t, d.ToggleBlock("dev-1"))
	require.Len(t, publisher.payloads, 1)
	assert.Equal(t, "evse/dev-1/command/block", publisher.topics[0])
	assert.Equal(t, map[string]string{"state": models.BlockStateBlocked}, publisher.payloads[0])

	// 乐观更新立即可见
	require.NotNil(t, device.BlockState)
	assert.True(t, device.BlockState.Blocked())
	assert.Equal(t, []models.StatusKind{models.KindBlockState}, presenter.detailUpdates)

	// 已锁定 → 下发解锁
	require.NoError(t, d.ToggleBlock("dev-1"))
	assert.Equal(t, map[string]string{"state": models.BlockStateUnblocked}, publisher.payloads[1])
	assert.False(t, device.BlockState.Blocked())
}

func TestChangeCurrentBothDirections(t *testing.T) {
	d, publisher, devices, _ := newTestDispatcher(t)
	device := devices.devices["dev-1"]

	// 无已知档位 → 按32A处理，切到16A
	require.NoError(t, d.ChangeCurrent("dev-1"))
	assert.Equal(t, "evse/dev-1/command/set_current", publisher.topics[0])
	assert.Equal(t, map[string]int{"state": models.CurrentPreset16A}, publisher.payloads[0])
	assert.Equal(t, models.CurrentPreset16A, device.CurrentState.State)

	require.NoError(t, d.ChangeCurrent("dev-1"))
	assert.Equal(t, map[string]int{"state": models.CurrentPreset32A}, publisher.payloads[1])
	assert.Equal(t, models.CurrentPreset32A, device.CurrentState.State)
}

func TestPublishWhileDisconnected(t *testing.T) {
	d, publisher, devices, presenter := newTestDispatcher(t)
	publisher.err = mqtt.ErrNotConnected

	err := d.ToggleBlock("dev-1")
	assert.ErrorIs(t, err, mqtt.ErrNotConnected)

	// 发布失败：提示用户，不做乐观更新
	assert.Equal(t, []string{"Sem conexão com o broker"}, presenter.transients)
	assert.Nil(t, devices.devices["dev-1"].BlockState)
}

func TestSaveScheduleValidation(t *testing.T) {
	d, publisher, _, presenter := newTestDispatcher(t)

	err := d.SaveSchedule("dev-1", models.Schedule{Start: "22:00"})
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Empty(t, publisher.topics, "invalid schedule must not be published")
	assert.Contains(t, presenter.transients[0], "preencha os horários")
}

func TestSaveScheduleOptimistic(t *testing.T) {
	d, publisher, devices, _ := newTestDispatcher(t)

	schedule := models.Schedule{Start: "22:00", End: "06:00", Weekdays: []int{1, 2, 3}}
	require.NoError(t, d.SaveSchedule("dev-1", schedule))

	assert.Equal(t, "evse/dev-1/command/schedule", publisher.topics[0])
	require.NotNil(t, devices.devices["dev-1"].Schedule)
	assert.Equal(t, "22:00", devices.devices["dev-1"].Schedule.Start)

	require.NoError(t, d.ClearSchedule("dev-1"))
	assert.Empty(t, devices.devices["dev-1"].Schedule.Start)
}

func TestSaveWifiRequiresSSID(t *testing.T) {
	d, publisher, _, _ := newTestDispatcher(t)

	assert.ErrorIs(t, d.SaveWifi("dev-1", "", "secret"), ErrValidationFailed)
	assert.Empty(t, publisher.topics)

	require.NoError(t, d.SaveWifi("dev-1", "garagem", "secret"))
	assert.Equal(t, "evse/dev-1/command/wifi_save", publisher.topics[0])
}

func TestValidateCardID(t *testing.T) {
	cases := []struct {
		id   string
		want bool
	}{
		{"A1 B2 C3 D4", true},
		{"a1b2c3d4", true},
		{"  04 F3  ", true},
		{"A1", false},        // 太短
		{"A1-B2-C3", false},  // 非法字符
		{"zz zz zz", false},  // 非十六进制
		{"", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ValidateCardID(c.id), c.id)
	}
}

func TestRfidSessionLifecycle(t *testing.T) {
	d, publisher, devices, _ := newTestDispatcher(t)

	devices.devices["dev-1"].RfidConfig = &models.RfidConfig{
		RfidEnabled: true,
		Cards:       []models.RfidCard{{ID: "AA BB CC DD", Name: "Pedro"}},
	}

	// 开始会话：装载已知卡并开启录入模式
	d.BeginRfidSession("dev-1")
	assert.Equal(t, "evse/dev-1/command/set_rfid_register_mode", publisher.topics[0])
	assert.Equal(t, map[string]bool{"cadastro": true}, publisher.payloads[0])
	require.Len(t, d.Cards(), 1)

	// 校验：无名/非法卡号/重复
	assert.ErrorIs(t, d.AddCard("", "11 22 33 44"), ErrValidationFailed)
	assert.ErrorIs(t, d.AddCard("Maria", "xx"), ErrValidationFailed)
	assert.ErrorIs(t, d.AddCard("Maria", "aa bb cc dd"), ErrValidationFailed) // 归一化后重复

	require.NoError(t, d.AddCard("Maria", "11 22 33 44"))
	assert.Len(t, d.Cards(), 2)

	d.RemoveCard("AA BB CC DD")
	require.Len(t, d.Cards(), 1)
	assert.Equal(t, "Maria", d.Cards()[0].Name)

	d.EndRfidSession("dev-1")
	assert.Equal(t, map[string]bool{"cadastro": false}, publisher.payloads[len(publisher.payloads)-1])
}

func TestSaveRfidConfigRequiresCardWhenEnabled(t *testing.T) {
	d, publisher, _, presenter := newTestDispatcher(t)

	err := d.SaveRfidConfig(context.Background(), "dev-1", true)
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Empty(t, publisher.topics)
	assert.Contains(t, presenter.transients[0], "pelo menos um cartão")
}

func TestSaveRfidConfigPublishesAndPersists(t *testing.T) {
	publisher := &fakePublisher{}
	devices := &fakeDevices{devices: map[string]*models.Device{"dev-1": models.NewDevice("dev-1")}}
	presenter := &fakePresenter{}

	mr := miniredis.RunT(t)
	settings := store.NewSettings(store.NewRedisKV(redis.NewClient(&redis.Options{Addr: mr.Addr()})))
	d := NewDispatcher(publisher, devices, presenter, settings, topics.CommandTemplate, zap.NewNop())

	require.NoError(t, d.AddCard("Pedro", "AA BB CC DD"))
	require.NoError(t, d.SaveRfidConfig(context.Background(), "dev-1", true))

	assert.Equal(t, "evse/dev-1/command/save_rfid_config", publisher.topics[0])

	// 发布载荷即完整配置
	payload, err := json.Marshal(publisher.payloads[0])
	require.NoError(t, err)
	var cfg models.RfidConfig
	require.NoError(t, json.Unmarshal(payload, &cfg))
	assert.True(t, cfg.RfidEnabled)
	require.Len(t, cfg.Cards, 1)

	// 乐观写入设备记录 + 本地KV持久化
	require.NotNil(t, devices.devices["dev-1"].RfidConfig)
	loaded, err := settings.LoadRfidConfig(context.Background())
	require.NoError(t, err)
	assert.True(t, loaded.RfidEnabled)
	assert.Equal(t, "AA BB CC DD", loaded.Cards[0].ID)
}
