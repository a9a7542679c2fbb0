package evaluator

import (
	"testing"
	"time"

	"hns-alarm/internal/cache"
	"hns-alarm/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var evalTime = time.Date(2025, 6, 1, 12, 30, 45, 0, time.Local)

func floatPtr(v float64) *float64 { return &v }

// newStation 单观测站、单板卡、单传感器（阈值 10/20）
func newStation(value *float64) *cache.EntityCache {
	c := cache.NewEntityCache()
	c.Areas = []models.Area{{AreaID: 1, AreaName: "North"}}
	c.Observatories = []models.Observatory{{ObservatoryID: 1, ObservatoryName: "Station A", AreaName: "North"}}
	c.SetBoards(1, []models.BoardState{{ObservatoryID: 1, BoardID: 1, StatusCode: "00"}})
	c.SetSensors(1, []models.SensorResource{{
		ObservatoryID:    1,
		BoardID:          1,
		SensorID:         3,
		SensorName:       "Phenol",
		InService:        "1",
		UnderRepair:      "0",
		WarningThreshold: 10,
		AlertThreshold:   20,
	}})
	if value != nil {
		c.AttachValue(models.CurrentValue{ObservatoryID: 1, BoardID: 1, SensorID: 3, Value: value})
	}
	return c
}

func openAlarm(id int, code models.AlarmCode, board, sensor int) models.AlarmRecord {
	return models.AlarmRecord{AlarmID: id, Code: code, ObservatoryID: 1, BoardID: board, SensorID: sensor}
}

func codes(records []models.AlarmRecord) []models.AlarmCode {
	var result []models.AlarmCode
	for _, r := range records {
		result = append(result, r.Code)
	}
	return result
}

func TestEvaluate_WarningOnly(t *testing.T) {
	c := newStation(floatPtr(15))

	result := NewEvaluator(zap.NewNop()).Evaluate(c, evalTime)

	require.Len(t, result.ToOpen, 1)
	a := result.ToOpen[0]
	assert.Equal(t, models.AlarmCodeWarning, a.Code)
	assert.Equal(t, 0, a.AlarmID)
	assert.Equal(t, "20250601123045", a.OccurredAt)
	assert.Equal(t, 3, a.SensorID)
	assert.Equal(t, 10.0, *a.WarningThreshold)
	assert.Equal(t, 20.0, *a.AlertThreshold)
	assert.Equal(t, 15.0, *a.Value)
	assert.Equal(t, "Phenol", *a.SensorName)
	assert.Equal(t, "Station A", a.ObservatoryName)
	assert.Equal(t, "North", a.AreaName)
	assert.Empty(t, result.ToClose)
	assert.Empty(t, result.Diagnostics)
}

func TestEvaluate_WarningAndAlert(t *testing.T) {
	c := newStation(floatPtr(25))

	result := NewEvaluator(zap.NewNop()).Evaluate(c, evalTime)

	assert.Equal(t, []models.AlarmCode{models.AlarmCodeWarning, models.AlarmCodeAlert}, codes(result.ToOpen))
}

func TestEvaluate_ThresholdIsInclusive(t *testing.T) {
	c := newStation(floatPtr(10))

	result := NewEvaluator(zap.NewNop()).Evaluate(c, evalTime)

	assert.Equal(t, []models.AlarmCode{models.AlarmCodeWarning}, codes(result.ToOpen))
}

func TestEvaluate_ExistingAlarmNotReopened(t *testing.T) {
	c := newStation(floatPtr(25))
	c.Alarms = []models.AlarmRecord{openAlarm(7, models.AlarmCodeWarning, 1, 3)}

	result := NewEvaluator(zap.NewNop()).Evaluate(c, evalTime)

	assert.Equal(t, []models.AlarmCode{models.AlarmCodeAlert}, codes(result.ToOpen))
	assert.Empty(t, result.ToClose)
}

func TestEvaluate_ResolutionIsStrict(t *testing.T) {
	evaluator := NewEvaluator(zap.NewNop())

	// 9 < 10：解除
	c := newStation(floatPtr(9))
	c.Alarms = []models.AlarmRecord{openAlarm(7, models.AlarmCodeWarning, 1, 3)}
	result := evaluator.Evaluate(c, evalTime)
	require.Len(t, result.ToClose, 1)
	assert.Equal(t, 7, result.ToClose[0].AlarmID)
	assert.Empty(t, result.ToOpen)

	// 10 不小于 10：保持
	c = newStation(floatPtr(10))
	c.Alarms = []models.AlarmRecord{openAlarm(7, models.AlarmCodeWarning, 1, 3)}
	result = evaluator.Evaluate(c, evalTime)
	assert.Empty(t, result.ToClose)
	assert.Empty(t, result.ToOpen)

	// 警报按警报阈值解除
	c = newStation(floatPtr(19.5))
	c.Alarms = []models.AlarmRecord{
		openAlarm(7, models.AlarmCodeWarning, 1, 3),
		openAlarm(8, models.AlarmCodeAlert, 1, 3),
	}
	result = evaluator.Evaluate(c, evalTime)
	require.Len(t, result.ToClose, 1)
	assert.Equal(t, 8, result.ToClose[0].AlarmID)
}

func TestEvaluate_UnderRepairSuppresses(t *testing.T) {
	c := newStation(floatPtr(50))
	c.Sensors[1][0].UnderRepair = "1"

	result := NewEvaluator(zap.NewNop()).Evaluate(c, evalTime)
	assert.Empty(t, result.ToOpen)

	// 检修中的传感器也不解除报警
	c = newStation(floatPtr(0))
	c.Sensors[1][0].UnderRepair = "1"
	c.Alarms = []models.AlarmRecord{openAlarm(7, models.AlarmCodeWarning, 1, 3)}
	result = NewEvaluator(zap.NewNop()).Evaluate(c, evalTime)
	assert.Empty(t, result.ToClose)
	assert.Empty(t, result.Diagnostics)
}

func TestEvaluate_NotInServiceSuppresses(t *testing.T) {
	c := newStation(floatPtr(50))
	c.Sensors[1][0].InService = "0"

	result := NewEvaluator(zap.NewNop()).Evaluate(c, evalTime)
	assert.Empty(t, result.ToOpen)
	assert.Empty(t, result.Diagnostics)

	// 停用的传感器也不解除报警
	c = newStation(floatPtr(1))
	c.Sensors[1][0].InService = "0"
	c.Alarms = []models.AlarmRecord{openAlarm(7, models.AlarmCodeWarning, 1, 3)}
	result = NewEvaluator(zap.NewNop()).Evaluate(c, evalTime)
	assert.Empty(t, result.ToClose)
	assert.Empty(t, result.ToOpen)
	assert.Empty(t, result.Diagnostics)
}

func TestEvaluate_BoardMalfunctionSuppressesSensors(t *testing.T) {
	c := newStation(floatPtr(50))
	c.Boards[1][0].StatusCode = "06"

	result := NewEvaluator(zap.NewNop()).Evaluate(c, evalTime)

	require.Len(t, result.ToOpen, 1)
	a := result.ToOpen[0]
	assert.Equal(t, models.AlarmCodeMalfunction, a.Code)
	assert.Equal(t, 0, a.SensorID)
	assert.Nil(t, a.WarningThreshold)
	assert.Nil(t, a.AlertThreshold)
	assert.Nil(t, a.Value)
	assert.Nil(t, a.SensorName)
}

func TestEvaluate_BoardMalfunctionKeepsSensorAlarmsOpen(t *testing.T) {
	c := newStation(floatPtr(1))
	c.Boards[1][0].StatusCode = "06"
	c.Alarms = []models.AlarmRecord{
		openAlarm(7, models.AlarmCodeWarning, 1, 3),
		openAlarm(8, models.AlarmCodeAlert, 1, 3),
	}

	result := NewEvaluator(zap.NewNop()).Evaluate(c, evalTime)

	assert.Empty(t, result.ToClose)
	assert.Empty(t, result.Diagnostics)
	// 板卡异常照常发生
	assert.Equal(t, []models.AlarmCode{models.AlarmCodeMalfunction}, codes(result.ToOpen))
}

func TestEvaluate_OpenMalfunctionSuppressesSensors(t *testing.T) {
	c := newStation(floatPtr(50))
	c.Alarms = []models.AlarmRecord{openAlarm(4, models.AlarmCode(3), 1, 0)}

	result := NewEvaluator(zap.NewNop()).Evaluate(c, evalTime)

	assert.Empty(t, result.ToOpen)
	// stcd 已恢复为 0，任意设备异常代码都可解除
	require.Len(t, result.ToClose, 1)
	assert.Equal(t, 4, result.ToClose[0].AlarmID)
}

func TestEvaluate_MalfunctionStaysWhileBoardFaulty(t *testing.T) {
	c := newStation(floatPtr(5))
	c.Boards[1][0].StatusCode = "06"
	c.Alarms = []models.AlarmRecord{openAlarm(4, models.AlarmCodeMalfunction, 1, 0)}

	result := NewEvaluator(zap.NewNop()).Evaluate(c, evalTime)

	assert.Empty(t, result.ToOpen)
	assert.Empty(t, result.ToClose)
}

func TestEvaluate_IdempotentRerun(t *testing.T) {
	c := newStation(floatPtr(25))
	c.Boards[1] = append(c.Boards[1], models.BoardState{ObservatoryID: 1, BoardID: 2, StatusCode: "01"})
	evaluator := NewEvaluator(zap.NewNop())

	first := evaluator.Evaluate(c, evalTime)
	second := evaluator.Evaluate(c, evalTime)

	assert.Equal(t, first, second)
	assert.Empty(t, c.Alarms)
}

func TestEvaluate_DeduplicatesWithinTick(t *testing.T) {
	c := newStation(floatPtr(25))
	// 同一板卡的重复状态行与重复传感器配置
	c.Boards[1] = append(c.Boards[1],
		models.BoardState{ObservatoryID: 1, BoardID: 2, StatusCode: "06"},
		models.BoardState{ObservatoryID: 1, BoardID: 2, StatusCode: "03"},
	)
	c.Sensors[1] = append(c.Sensors[1], c.Sensors[1][0])

	result := NewEvaluator(zap.NewNop()).Evaluate(c, evalTime)

	assert.Equal(t, []models.AlarmCode{
		models.AlarmCodeMalfunction,
		models.AlarmCodeWarning,
		models.AlarmCodeAlert,
	}, codes(result.ToOpen))
}

func TestEvaluate_UnknownNamesDefault(t *testing.T) {
	c := newStation(nil)
	c.Observatories[0].ObservatoryName = ""
	c.Observatories[0].AreaName = ""
	c.Boards[1][0].StatusCode = "06"

	result := NewEvaluator(zap.NewNop()).Evaluate(c, evalTime)

	require.Len(t, result.ToOpen, 1)
	assert.Equal(t, "Unknown Observatory", result.ToOpen[0].ObservatoryName)
	assert.Equal(t, "Unknown Area", result.ToOpen[0].AreaName)
}

func TestEvaluate_Diagnostics(t *testing.T) {
	t.Run("missing measurement", func(t *testing.T) {
		c := newStation(nil)
		result := NewEvaluator(zap.NewNop()).Evaluate(c, evalTime)
		assert.Empty(t, result.ToOpen)
		require.Len(t, result.Diagnostics, 1)
		assert.Contains(t, result.Diagnostics[0], "1/1/3")
	})

	t.Run("null measurement", func(t *testing.T) {
		c := newStation(nil)
		c.AttachValue(models.CurrentValue{ObservatoryID: 1, BoardID: 1, SensorID: 3})
		result := NewEvaluator(zap.NewNop()).Evaluate(c, evalTime)
		require.Len(t, result.Diagnostics, 1)
		assert.Contains(t, result.Diagnostics[0], "no measurement")
	})

	t.Run("malformed stcd", func(t *testing.T) {
		c := newStation(floatPtr(1))
		c.Boards[1][0].StatusCode = "x1"
		result := NewEvaluator(zap.NewNop()).Evaluate(c, evalTime)
		assert.Empty(t, result.ToOpen)
		// 板卡与传感器各一条
		assert.Len(t, result.Diagnostics, 2)
	})

	t.Run("alarm for unknown observatory", func(t *testing.T) {
		c := newStation(floatPtr(1))
		c.Alarms = []models.AlarmRecord{{AlarmID: 5, Code: models.AlarmCodeWarning, ObservatoryID: 9, BoardID: 1, SensorID: 3}}
		result := NewEvaluator(zap.NewNop()).Evaluate(c, evalTime)
		assert.Empty(t, result.ToClose)
		require.Len(t, result.Diagnostics, 1)
		assert.Contains(t, result.Diagnostics[0], "observatory 9 not found")
	})

	t.Run("alarm for unknown sensor", func(t *testing.T) {
		c := newStation(floatPtr(1))
		c.Alarms = []models.AlarmRecord{openAlarm(5, models.AlarmCodeAlert, 1, 8)}
		result := NewEvaluator(zap.NewNop()).Evaluate(c, evalTime)
		assert.Empty(t, result.ToClose)
		require.Len(t, result.Diagnostics, 1)
		assert.Contains(t, result.Diagnostics[0], "sensor 1/1/8 not found")
	})

	t.Run("malfunction alarm for unknown board", func(t *testing.T) {
		c := newStation(floatPtr(1))
		c.Alarms = []models.AlarmRecord{openAlarm(5, models.AlarmCodeMalfunction, 4, 0)}
		result := NewEvaluator(zap.NewNop()).Evaluate(c, evalTime)
		assert.Empty(t, result.ToClose)
		require.Len(t, result.Diagnostics, 1)
		assert.Contains(t, result.Diagnostics[0], "board 1/4 not found")
	})

	t.Run("malfunction alarm without boards loaded", func(t *testing.T) {
		c := newStation(floatPtr(1))
		delete(c.Boards, 1)
		c.SetBoards(1, nil)
		c.Alarms = []models.AlarmRecord{openAlarm(5, models.AlarmCodeMalfunction, 1, 0)}
		result := NewEvaluator(zap.NewNop()).Evaluate(c, evalTime)
		assert.Empty(t, result.ToClose)
		assert.Empty(t, result.ToOpen)
		require.Len(t, result.Diagnostics, 1)
		assert.Contains(t, result.Diagnostics[0], "no boards for observatory 1")
	})

	t.Run("sensor without observatory is fatal but isolated", func(t *testing.T) {
		c := newStation(floatPtr(15))
		c.SetSensors(2, []models.SensorResource{{ObservatoryID: 2, BoardID: 1, SensorID: 1, InService: "1"}})
		result := NewEvaluator(zap.NewNop()).Evaluate(c, evalTime)
		assert.Equal(t, []models.AlarmCode{models.AlarmCodeWarning}, codes(result.ToOpen))
		require.Len(t, result.Diagnostics, 1)
		assert.Contains(t, result.Diagnostics[0], "FATAL")
	})
}
