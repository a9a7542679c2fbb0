package evaluator

import (
	"time"

	"hns-alarm/internal/models"
)

const (
	unknownArea        = "Unknown Area"
	unknownObservatory = "Unknown Observatory"
)

// newBoardAlarm 构建设备异常报警（hnsidx = 0，无阈值与测量值快照）
func newBoardAlarm(board models.BoardState, obs models.Observatory, now time.Time) models.AlarmRecord {
	record := models.AlarmRecord{
		Code:          models.AlarmCodeMalfunction,
		OccurredAt:    now.Format(models.OccurredAtLayout),
		ObservatoryID: board.ObservatoryID,
		BoardID:       board.BoardID,
	}
	fillNames(&record, obs)
	return record
}

// newSensorAlarm 构建警戒/警报报警，附带阈值与测量值快照
func newSensorAlarm(sensor models.SensorResource, obs models.Observatory, code models.AlarmCode, current float64, now time.Time) models.AlarmRecord {
	warning := sensor.WarningThreshold
	alert := sensor.AlertThreshold
	name := sensor.SensorName

	record := models.AlarmRecord{
		Code:             code,
		OccurredAt:       now.Format(models.OccurredAtLayout),
		ObservatoryID:    sensor.ObservatoryID,
		BoardID:          sensor.BoardID,
		SensorID:         sensor.SensorID,
		WarningThreshold: &warning,
		AlertThreshold:   &alert,
		Value:            &current,
		SensorName:       &name,
	}
	fillNames(&record, obs)
	return record
}

func fillNames(record *models.AlarmRecord, obs models.Observatory) {
	record.AreaName = obs.AreaName
	if record.AreaName == "" {
		record.AreaName = unknownArea
	}
	record.ObservatoryName = obs.ObservatoryName
	if record.ObservatoryName == "" {
		record.ObservatoryName = unknownObservatory
	}
}
