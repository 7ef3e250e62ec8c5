package topics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse_StatusTopic(t *testing.T) {
	p := Parse("evse/AA11BB22/status/charging_session")

	assert.Equal(t, "AA11BB22", p.DeviceID)
	assert.Equal(t, "status", p.Channel)
	assert.Equal(t, "charging_session", p.StatusName)
	assert.Empty(t, p.Remainder)
}

func TestParse_WithRemainder(t *testing.T) {
	p := Parse("evse/AA11/status/temperature/sensor1/raw")

	assert.Equal(t, "AA11", p.DeviceID)
	assert.Equal(t, "temperature", p.StatusName)
	assert.Equal(t, []string{"sensor1", "raw"}, p.Remainder)
}

func TestParse_ConnectionLeaf(t *testing.T) {
	p := Parse("evse/AA11/status/connection")
	assert.True(t, p.IsConnection())

	p = Parse("evse/AA11/status/state")
	assert.False(t, p.IsConnection())
}

func TestParse_MalformedTopics(t *testing.T) {
	// 段数不足时不报错，字段为空
	tests := []string{"", "evse", "evse/AA11", "evse/AA11/status"}
	for _, topic := range tests {
		p := Parse(topic)
		assert.Empty(t, p.StatusName, "topic: %s", topic)
		assert.False(t, p.IsConnection() && topic != "evse/AA11/status/connection")
	}
}

func TestBuildStatus(t *testing.T) {
	topic := BuildStatus(StatusTemplate, "AA11BB22")
	assert.Equal(t, "evse/AA11BB22/status/#", topic)
}

func TestBuildCommand(t *testing.T) {
	topic := BuildCommand(CommandTemplate, "AA11BB22", "get_initial_data")
	assert.Equal(t, "evse/AA11BB22/command/get_initial_data", topic)
}
