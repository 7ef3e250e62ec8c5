package charts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSeries_RingEviction(t *testing.T) {
	s := NewSeries(3)

	for i := 0; i < 5; i++ {
		s.Push(float64(i))
	}

	// 始终保留上限数量，最旧先淘汰
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []float64{2, 3, 4}, s.Points())
}

func TestSeries_Stats(t *testing.T) {
	s := NewSeries(10)
	s.Push(3000)
	s.Push(3100)
	s.Push(3200)

	assert.InDelta(t, 3100, s.Average(), 0.001)
	assert.InDelta(t, 200, s.PeakToPeak(), 0.001)
}

func TestSeries_EmptyStats(t *testing.T) {
	s := NewSeries(10)
	assert.Equal(t, 0.0, s.Average())
	assert.Equal(t, 0.0, s.PeakToPeak())
}

func TestCPChart_EvictionAt50(t *testing.T) {
	c := NewCPChart(50)

	for i := 0; i < 60; i++ {
		c.Push(float64(3000+i), float64(-12000+i))
	}

	assert.Equal(t, 50, c.Len())

	stats := c.Stats()
	assert.Equal(t, 50, stats.Points)
	// 保留的是最新50个点: 3010..3059
	assert.InDelta(t, 3034.5, stats.HighAverage, 0.001)
	assert.InDelta(t, 49, stats.PeakToPeak, 0.001)
}

func TestRMSChart_IndependentSeries(t *testing.T) {
	c := NewRMSChart(50)

	c.PushVRMS(220.1)
	c.PushVRMS(219.8)
	c.PushIRMS(15.2)

	// vrms 与 irms 互不影响
	assert.Equal(t, 2, c.VRMSLen())
	assert.Equal(t, 1, c.IRMSLen())
}

func TestHomeChart_EvictionAt100(t *testing.T) {
	h := NewHomeChart(100, func() float64 { return 0 }, zap.NewNop())

	for i := 0; i < 120; i++ {
		h.Push(float64(i))
	}

	assert.Equal(t, 100, h.Len())
	assert.Equal(t, float64(20), h.Points()[0])
}

func TestHomeChart_PeriodicSampling(t *testing.T) {
	h := NewHomeChart(100, func() float64 { return 7.5 }, zap.NewNop())
	h.interval = 5 * time.Millisecond

	h.Start()
	defer h.Stop()

	require.Eventually(t, func() bool { return h.Len() > 0 },
		time.Second, time.Millisecond)
	assert.Equal(t, 7.5, h.Points()[0])
}
