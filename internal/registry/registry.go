package registry

import (
	"sync"

	"evse-dashboard/internal/charts"
	"evse-dashboard/internal/models"
)

// Registry 设备注册表：设备标识符到设备状态的权威映射
// 记录在发现时创建，仅在重连的整体重置时销毁（绝不部分清除）
//
// 记录字段的跨协程读写一律走 Update/Snapshot，在注册表锁内完成。
// 载荷结构体挂到记录后不再原地修改（替换指针），浅拷贝快照因此自洽
type Registry struct {
	mu      sync.RWMutex
	devices map[string]*models.Device

	// 图表句柄与设备绑定，首次访问详情视图时创建
	cpCharts  map[string]*charts.CPChart
	rmsCharts map[string]*charts.RMSChart

	detailChartPoints int
}

// New 创建空注册表
func New(detailChartPoints int) *Registry {
	r := &Registry{detailChartPoints: detailChartPoints}
	r.reset()
	return r
}

func (r *Registry) reset() {
	r.devices = make(map[string]*models.Device)
	r.cpCharts = make(map[string]*charts.CPChart)
	r.rmsCharts = make(map[string]*charts.RMSChart)
}

// Reset 清空注册表（每次成功重连恰好一次，在重新订阅发现主题之前）
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reset()
}

// Get 按标识符取设备记录，不存在返回 nil
// 返回的是共享记录本身：并发场景用 Snapshot/Update，不要直接读写字段
func (r *Registry) Get(deviceID string) *models.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.devices[deviceID]
}

// Update 在注册表锁内修改设备记录，设备不存在返回 false
func (r *Registry) Update(deviceID string, fn func(*models.Device)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	device, ok := r.devices[deviceID]
	if !ok {
		return false
	}
	fn(device)
	return true
}

// Snapshot 设备记录的一致性浅拷贝，设备不存在时 ok 为 false
func (r *Registry) Snapshot(deviceID string) (models.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	device, ok := r.devices[deviceID]
	if !ok {
		return models.Device{}, false
	}
	return *device, true
}

// Has 设备是否已注册
func (r *Registry) Has(deviceID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.devices[deviceID]
	return ok
}

// Add 注册新设备记录，已存在时返回 false（去重映射）
func (r *Registry) Add(device *models.Device) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[device.ID]; ok {
		return false
	}
	r.devices[device.ID] = device
	return true
}

// Count 已注册设备数
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// List 所有设备记录的快照副本
func (r *Registry) List() []models.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, *d)
	}
	return out
}

// TotalPower 全部设备的瞬时功率之和（kW），供首页聚合图表采样
func (r *Registry) TotalPower() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var total float64
	for _, d := range r.devices {
		total += d.SessionPower()
	}
	return total
}

// EnsureCharts 为设备创建图表句柄（首次访问详情视图时，幂等）
func (r *Registry) EnsureCharts(deviceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[deviceID]; !ok {
		return
	}
	if _, ok := r.cpCharts[deviceID]; !ok {
		r.cpCharts[deviceID] = charts.NewCPChart(r.detailChartPoints)
	}
	if _, ok := r.rmsCharts[deviceID]; !ok {
		r.rmsCharts[deviceID] = charts.NewRMSChart(r.detailChartPoints)
	}
}

// CPChart 设备的CP图表句柄，未创建返回 nil
func (r *Registry) CPChart(deviceID string) *charts.CPChart {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cpCharts[deviceID]
}

// RMSChart 设备的RMS图表句柄，未创建返回 nil
func (r *Registry) RMSChart(deviceID string) *charts.RMSChart {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rmsCharts[deviceID]
}
