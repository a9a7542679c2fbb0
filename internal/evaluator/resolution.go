package evaluator

import (
	"hns-alarm/internal/cache"
	"hns-alarm/internal/models"
)

// resolve 按缓存顺序检查每条未解除报警，返回需要解除的报警
func (e *Evaluator) resolve(c *cache.EntityCache, result *Result) []models.AlarmRecord {
	var solved []models.AlarmRecord

	for _, alarm := range c.Alarms {
		if _, ok := c.Observatory(alarm.ObservatoryID); !ok {
			result.diagnose("resolve alarm %d (code %d): observatory %d not found",
				alarm.AlarmID, int(alarm.Code), alarm.ObservatoryID)
			continue
		}

		var closes bool
		if alarm.Code.SensorScoped() {
			closes = resolveSensorAlarm(c, alarm, result)
		} else {
			closes = resolveBoardAlarm(c, alarm, result)
		}
		if closes {
			solved = append(solved, alarm)
		}
	}

	return solved
}

// resolveSensorAlarm 警戒/警报：测量值低于对应阈值时解除（不做回差）
func resolveSensorAlarm(c *cache.EntityCache, alarm models.AlarmRecord, result *Result) bool {
	key := alarm.SensorKey()

	if !c.HasSensors(alarm.ObservatoryID) {
		result.diagnose("resolve alarm %d (code %d): no sensors for observatory %d",
			alarm.AlarmID, int(alarm.Code), alarm.ObservatoryID)
		return false
	}
	sensor, ok := c.Sensor(key)
	if !ok {
		result.diagnose("resolve alarm %d (code %d): sensor %s not found",
			alarm.AlarmID, int(alarm.Code), sensorLabel(key))
		return false
	}

	inService, err := sensor.InService.IsSet()
	if err != nil {
		result.diagnose("resolve alarm %d (code %d): sensor %s useyn: %v",
			alarm.AlarmID, int(alarm.Code), sensorLabel(key), err)
		return false
	}
	if !inService {
		return false
	}
	underRepair, err := sensor.UnderRepair.IsSet()
	if err != nil {
		result.diagnose("resolve alarm %d (code %d): sensor %s inspectionflag: %v",
			alarm.AlarmID, int(alarm.Code), sensorLabel(key), err)
		return false
	}
	if underRepair {
		return false
	}

	malfunctioning, err := boardMalfunctioning(c, alarm.BoardKey())
	if err != nil {
		result.diagnose("resolve alarm %d (code %d): board %s stcd: %v",
			alarm.AlarmID, int(alarm.Code), boardLabel(alarm.BoardKey()), err)
		return false
	}
	if malfunctioning {
		return false
	}

	value, ok := c.Value(key)
	if !ok || value == nil {
		result.diagnose("resolve alarm %d (code %d): no value for sensor %s",
			alarm.AlarmID, int(alarm.Code), sensorLabel(key))
		return false
	}
	current, ok := value.Measurement()
	if !ok {
		result.diagnose("resolve alarm %d (code %d): sensor %s has no measurement",
			alarm.AlarmID, int(alarm.Code), sensorLabel(key))
		return false
	}

	if alarm.Code == models.AlarmCodeWarning {
		return current < sensor.WarningThreshold
	}
	return current < sensor.AlertThreshold
}

// resolveBoardAlarm 设备异常：板卡 stcd 恢复为 0 时解除
func resolveBoardAlarm(c *cache.EntityCache, alarm models.AlarmRecord, result *Result) bool {
	key := alarm.BoardKey()

	if !c.HasBoards(alarm.ObservatoryID) {
		result.diagnose("resolve alarm %d (code %d): no boards for observatory %d",
			alarm.AlarmID, int(alarm.Code), alarm.ObservatoryID)
		return false
	}
	board, ok := c.BoardRow(key)
	if !ok {
		result.diagnose("resolve alarm %d (code %d): board %s not found",
			alarm.AlarmID, int(alarm.Code), boardLabel(key))
		return false
	}

	malfunctioning, err := board.Malfunctioning()
	if err != nil {
		result.diagnose("resolve alarm %d (code %d): board %s stcd: %v",
			alarm.AlarmID, int(alarm.Code), boardLabel(key), err)
		return false
	}
	return !malfunctioning
}
