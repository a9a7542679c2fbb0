package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCode_UnmarshalJSON(t *testing.T) {
	var board BoardState
	err := json.Unmarshal([]byte(`{"obsidx":1,"boardidx":2,"stcd":"06","brd_state":"00"}`), &board)
	require.NoError(t, err)

	malfunctioning, err := board.Malfunctioning()
	require.NoError(t, err)
	assert.True(t, malfunctioning)
	assert.Equal(t, BoardKey{ObservatoryID: 1, BoardID: 2}, board.Key())

	var sensor SensorResource
	err = json.Unmarshal([]byte(`{"obsidx":1,"boardidx":1,"hnsidx":3,"useyn":1,"inspectionflag":false,"alahival":10.5,"alahihival":20}`), &sensor)
	require.NoError(t, err)

	inService, err := sensor.InService.IsSet()
	require.NoError(t, err)
	assert.True(t, inService)

	underRepair, err := sensor.UnderRepair.IsSet()
	require.NoError(t, err)
	assert.False(t, underRepair)
}

func TestCode_Int_Invalid(t *testing.T) {
	_, err := Code("").Int()
	assert.Error(t, err)

	_, err = Code("x1").Int()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid numeric code")

	v, err := Code(" 03 ").Int()
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

func TestCurrentValue_Measurement(t *testing.T) {
	var missing *CurrentValue
	_, ok := missing.Measurement()
	assert.False(t, ok)

	var empty CurrentValue
	require.NoError(t, json.Unmarshal([]byte(`{"obsidx":1,"boardidx":1,"hnsidx":1,"val":null}`), &empty))
	_, ok = empty.Measurement()
	assert.False(t, ok)

	var zero CurrentValue
	require.NoError(t, json.Unmarshal([]byte(`{"obsidx":1,"boardidx":1,"hnsidx":1,"val":0}`), &zero))
	v, ok := zero.Measurement()
	assert.True(t, ok)
	assert.Equal(t, 0.0, v)
}

func TestAlarmCode_SensorScoped(t *testing.T) {
	assert.True(t, AlarmCodeWarning.SensorScoped())
	assert.True(t, AlarmCodeAlert.SensorScoped())
	assert.False(t, AlarmCodeMalfunction.SensorScoped())
	assert.False(t, AlarmCode(3).SensorScoped())
	assert.Equal(t, "malfunction(3)", AlarmCode(3).String())
}
