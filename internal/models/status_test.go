package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeStatus_ChargingSession(t *testing.T) {
	payload := []byte(`{"power":3.5,"energy":1.2,"sessionStartTime":"2024-01-01T10:00:00Z"}`)

	u, err := DecodeStatus("charging_session", payload)
	require.NoError(t, err)

	assert.Equal(t, KindChargingSession, u.Kind)
	require.NotNil(t, u.ChargingSession)
	assert.Equal(t, 3.5, u.ChargingSession.Power)
	assert.Equal(t, 1.2, u.ChargingSession.Energy)
	assert.Equal(t, "2024-01-01T10:00:00Z", u.ChargingSession.SessionStartTime)
}

func TestDecodeStatus_Temperature_MissingSensors(t *testing.T) {
	u, err := DecodeStatus("temperature", []byte(`{"sensor1":42.5}`))
	require.NoError(t, err)

	require.NotNil(t, u.Temperature)
	require.NotNil(t, u.Temperature.Sensor1)
	assert.Equal(t, 42.5, *u.Temperature.Sensor1)
	assert.Nil(t, u.Temperature.Sensor2)
}

func TestDecodeStatus_EmptyPayload(t *testing.T) {
	// 空载荷按空JSON对象处理
	u, err := DecodeStatus("state", nil)
	require.NoError(t, err)
	require.NotNil(t, u.State)
	assert.Equal(t, StateA, u.State.State)
}

func TestDecodeStatus_MalformedPayload(t *testing.T) {
	_, err := DecodeStatus("charging_session", []byte(`{not json`))
	assert.Error(t, err)
}

func TestDecodeStatus_UnknownKind(t *testing.T) {
	u, err := DecodeStatus("firmware_info", []byte(`{"version":"1.2.3"}`))
	require.NoError(t, err)
	assert.Equal(t, StatusKind("firmware_info"), u.Kind)
	assert.NotEmpty(t, u.Generic)
}

func TestOperatingState_Name(t *testing.T) {
	assert.Equal(t, "ESTADO A", StateA.Name())
	assert.Equal(t, "ESTADO F", StateF.Name())
	assert.Equal(t, "Desconhecido", OperatingState(9).Name())
}

func TestDeviceName_TrailingChars(t *testing.T) {
	assert.Equal(t, "EVSE BB22CC", DeviceName("AA11BB22CC"))
	assert.Equal(t, "EVSE AA11", DeviceName("AA11"))
}

func TestConnectionStatus_IsOnline(t *testing.T) {
	assert.True(t, (&ConnectionStatus{Status: "online"}).IsOnline())
	assert.False(t, (&ConnectionStatus{Status: "offline"}).IsOnline())
	assert.False(t, (&ConnectionStatus{Status: "ONLINE"}).IsOnline())
}

func TestBlockStatePayload_Blocked(t *testing.T) {
	assert.True(t, (&BlockStatePayload{State: BlockStateBlocked}).Blocked())
	assert.False(t, (&BlockStatePayload{State: BlockStateUnblocked}).Blocked())
}
