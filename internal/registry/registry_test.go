package registry

import (
	"testing"

	"evse-dashboard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAddAndDedupe(t *testing.T) {
	reg := New(50)

	require.True(t, reg.Add(models.NewDevice("24dcc3aa11ff")))
	assert.False(t, reg.Add(models.NewDevice("24dcc3aa11ff")), "duplicate add must be rejected")
	assert.Equal(t, 1, reg.Count())
	assert.True(t, reg.Has("24dcc3aa11ff"))

	device := reg.Get("24dcc3aa11ff")
	require.NotNil(t, device)
	assert.Equal(t, "EVSE 3aa11f", device.Name)
	assert.True(t, device.Online)
}

func TestRegistryReset(t *testing.T) {
	reg := New(50)
	reg.Add(models.NewDevice("dev-1"))
	reg.Add(models.NewDevice("dev-2"))
	reg.EnsureCharts("dev-1")

	reg.Reset()

	assert.Equal(t, 0, reg.Count())
	assert.Nil(t, reg.Get("dev-1"))
	assert.Nil(t, reg.CPChart("dev-1"), "chart handles must not survive a reset")
	assert.Nil(t, reg.RMSChart("dev-1"))
}

func TestRegistrySnapshotAndUpdate(t *testing.T) {
	reg := New(50)

	_, ok := reg.Snapshot("ghost")
	assert.False(t, ok)
	assert.False(t, reg.Update("ghost", func(*models.Device) {}))

	reg.Add(models.NewDevice("dev-1"))
	require.True(t, reg.Update("dev-1", func(d *models.Device) {
		d.Online = false
		d.BlockState = &models.BlockStatePayload{State: models.BlockStateBlocked}
	}))

	snap, ok := reg.Snapshot("dev-1")
	require.True(t, ok)
	assert.False(t, snap.Online)
	assert.True(t, snap.BlockState.Blocked())

	// 快照是副本：改动不回流到注册表
	snap.Online = true
	live, _ := reg.Snapshot("dev-1")
	assert.False(t, live.Online)
}

func TestRegistryTotalPower(t *testing.T) {
	reg := New(50)

	d1 := models.NewDevice("dev-1")
	d1.ChargingSession = &models.ChargingSession{Power: 7.2}
	d2 := models.NewDevice("dev-2")
	d2.ChargingSession = &models.ChargingSession{Power: 3.6}
	d3 := models.NewDevice("dev-3") // 无会话，贡献 0

	reg.Add(d1)
	reg.Add(d2)
	reg.Add(d3)

	assert.InDelta(t, 10.8, reg.TotalPower(), 1e-9)
}

func TestRegistryEnsureCharts(t *testing.T) {
	reg := New(50)

	// 未注册设备不创建句柄
	reg.EnsureCharts("ghost")
	assert.Nil(t, reg.CPChart("ghost"))

	reg.Add(models.NewDevice("dev-1"))
	assert.Nil(t, reg.CPChart("dev-1"), "charts are created lazily")

	reg.EnsureCharts("dev-1")
	cp := reg.CPChart("dev-1")
	require.NotNil(t, cp)
	require.NotNil(t, reg.RMSChart("dev-1"))

	// 幂等：重复调用不替换已有句柄
	cp.Push(2772, 153)
	reg.EnsureCharts("dev-1")
	assert.Equal(t, cp, reg.CPChart("dev-1"))
	assert.Equal(t, 1, cp.Stats().Points)
}
