package charts

import "sync"

// 图表协作者只暴露 追加点/淘汰最旧/重算 的窄接口
// 这里维护数据与派生统计，绘制本身属于外部表现层

// Series 定长环形序列，溢出时丢弃最旧点
type Series struct {
	points []float64
	max    int
}

// NewSeries 创建容量为max的序列
func NewSeries(max int) *Series {
	return &Series{max: max}
}

// Push 追加一个点，超出容量时淘汰最旧点
func (s *Series) Push(v float64) {
	if len(s.points) >= s.max {
		s.points = s.points[1:]
	}
	s.points = append(s.points, v)
}

// Len 当前点数
func (s *Series) Len() int { return len(s.points) }

// Points 序列的副本（旧→新）
func (s *Series) Points() []float64 {
	out := make([]float64, len(s.points))
	copy(out, s.points)
	return out
}

// Average 当前点的算术平均，空序列为 0
func (s *Series) Average() float64 {
	if len(s.points) == 0 {
		return 0
	}
	var sum float64
	for _, v := range s.points {
		sum += v
	}
	return sum / float64(len(s.points))
}

// PeakToPeak 峰峰值（max-min），空序列为 0
func (s *Series) PeakToPeak() float64 {
	if len(s.points) == 0 {
		return 0
	}
	min, max := s.points[0], s.points[0]
	for _, v := range s.points[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return max - min
}

// CPChart 单设备CP信号图表（高低电平双序列，mV）
// 每次追加后重算均值与高电平峰峰值
type CPChart struct {
	mu   sync.Mutex
	high *Series
	low  *Series
}

// NewCPChart 创建CP图表
func NewCPChart(maxPoints int) *CPChart {
	return &CPChart{
		high: NewSeries(maxPoints),
		low:  NewSeries(maxPoints),
	}
}

// Push 追加一对CP高低电平采样
func (c *CPChart) Push(high, low float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.high.Push(high)
	c.low.Push(low)
}

// Stats CP派生统计
type CPStats struct {
	HighAverage float64 `json:"high_average"`
	LowAverage  float64 `json:"low_average"`
	PeakToPeak  float64 `json:"peak_to_peak"`
	Points      int     `json:"points"`
}

// Stats 当前派生统计
func (c *CPChart) Stats() CPStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CPStats{
		HighAverage: c.high.Average(),
		LowAverage:  c.low.Average(),
		PeakToPeak:  c.high.PeakToPeak(),
		Points:      c.high.Len(),
	}
}

// Len 当前点数
func (c *CPChart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.high.Len()
}

// RMSChart 单设备电压/电流有效值图表（vrms与irms共用一个实例）
type RMSChart struct {
	mu   sync.Mutex
	vrms *Series
	irms *Series
}

// NewRMSChart 创建RMS图表
func NewRMSChart(maxPoints int) *RMSChart {
	return &RMSChart{
		vrms: NewSeries(maxPoints),
		irms: NewSeries(maxPoints),
	}
}

// PushVRMS 追加电压有效值采样
func (c *RMSChart) PushVRMS(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vrms.Push(v)
}

// PushIRMS 追加电流有效值采样
func (c *RMSChart) PushIRMS(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.irms.Push(v)
}

// VRMSLen 电压序列点数
func (c *RMSChart) VRMSLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vrms.Len()
}

// IRMSLen 电流序列点数
func (c *RMSChart) IRMSLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.irms.Len()
}
