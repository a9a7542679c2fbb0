package evaluator

import (
	"time"

	"hns-alarm/internal/cache"
	"hns-alarm/internal/models"
)

type sensorAlarmKey struct {
	sensor models.SensorKey
	code   models.AlarmCode
}

// occurrencePass 单轮发生判断，记录本轮已发出的报警用于去重
type occurrencePass struct {
	c      *cache.EntityCache
	now    time.Time
	result *Result

	emittedBoards  map[models.BoardKey]bool
	emittedSensors map[sensorAlarmKey]bool
}

func newOccurrencePass(c *cache.EntityCache, now time.Time, result *Result) *occurrencePass {
	return &occurrencePass{
		c:              c,
		now:            now,
		result:         result,
		emittedBoards:  make(map[models.BoardKey]bool),
		emittedSensors: make(map[sensorAlarmKey]bool),
	}
}

// boards 设备异常：stcd 非零且板卡没有未解除的设备异常报警
func (p *occurrencePass) boards() {
	for _, board := range p.c.AllBoards() {
		key := board.Key()

		malfunctioning, err := board.Malfunctioning()
		if err != nil {
			p.result.diagnose("occur board %s: stcd: %v", boardLabel(key), err)
			continue
		}
		if !malfunctioning {
			continue
		}
		if p.emittedBoards[key] || hasOpenBoardAlarm(p.c, key) {
			continue
		}

		obs, ok := p.c.Observatory(board.ObservatoryID)
		if !ok {
			p.result.diagnose("occur board %s: observatory %d not found", boardLabel(key), board.ObservatoryID)
			continue
		}

		p.emittedBoards[key] = true
		p.result.ToOpen = append(p.result.ToOpen, newBoardAlarm(board, obs, p.now))
	}
}

// sensors 警戒/警报：测量值达到阈值且该代码没有未解除报警
func (p *occurrencePass) sensors() {
	for _, sensor := range p.c.AllSensors() {
		key := sensor.Key()

		obs, ok := p.c.Observatory(sensor.ObservatoryID)
		if !ok {
			p.result.diagnose("FATAL occur sensor %s: observatory %d not found", sensorLabel(key), sensor.ObservatoryID)
			continue
		}

		current, ok := p.measurable(sensor)
		if !ok {
			continue
		}

		p.threshold(sensor, obs, models.AlarmCodeWarning, sensor.WarningThreshold, current)
		p.threshold(sensor, obs, models.AlarmCodeAlert, sensor.AlertThreshold, current)
	}
}

// measurable 检查传感器是否参与发生判断，并返回其测量值
func (p *occurrencePass) measurable(sensor models.SensorResource) (float64, bool) {
	key := sensor.Key()

	inService, err := sensor.InService.IsSet()
	if err != nil {
		p.result.diagnose("occur sensor %s: useyn: %v", sensorLabel(key), err)
		return 0, false
	}
	if !inService {
		return 0, false
	}
	underRepair, err := sensor.UnderRepair.IsSet()
	if err != nil {
		p.result.diagnose("occur sensor %s: inspectionflag: %v", sensorLabel(key), err)
		return 0, false
	}
	if underRepair {
		return 0, false
	}

	malfunctioning, err := boardMalfunctioning(p.c, sensor.BoardKey())
	if err != nil {
		p.result.diagnose("occur sensor %s: board stcd: %v", sensorLabel(key), err)
		return 0, false
	}
	if malfunctioning || hasOpenBoardAlarm(p.c, sensor.BoardKey()) {
		return 0, false
	}

	value, ok := p.c.Value(key)
	if !ok || value == nil {
		p.result.diagnose("occur sensor %s: no value", sensorLabel(key))
		return 0, false
	}
	current, ok := value.Measurement()
	if !ok {
		p.result.diagnose("occur sensor %s: no measurement", sensorLabel(key))
		return 0, false
	}
	return current, true
}

func (p *occurrencePass) threshold(sensor models.SensorResource, obs models.Observatory, code models.AlarmCode, limit, current float64) {
	dedup := sensorAlarmKey{sensor: sensor.Key(), code: code}
	if p.emittedSensors[dedup] || hasOpenSensorAlarm(p.c, sensor.Key(), code) {
		return
	}
	if current < limit {
		return
	}

	p.emittedSensors[dedup] = true
	p.result.ToOpen = append(p.result.ToOpen, newSensorAlarm(sensor, obs, code, current, p.now))
}
