package evaluator

import (
	"fmt"
	"time"

	"hns-alarm/internal/cache"
	"hns-alarm/internal/models"

	"go.uber.org/zap"
)

// Result 一轮评估的结果
type Result struct {
	ToOpen      []models.AlarmRecord // 需要新发生的报警（alaidx = 0）
	ToClose     []models.AlarmRecord // 需要解除的报警
	Diagnostics []string             // 单个实体的诊断信息，不影响其他实体的评估
}

// Evaluator 报警规则引擎
// Evaluate 只读取缓存，不修改缓存，不做 I/O
type Evaluator struct {
	logger *zap.Logger
}

// NewEvaluator 创建评估器
func NewEvaluator(logger *zap.Logger) *Evaluator {
	return &Evaluator{logger: logger}
}

// Evaluate 根据缓存计算需要发生和解除的报警
// now 作为新报警的 aladt，相同输入重复评估结果相同
func (e *Evaluator) Evaluate(c *cache.EntityCache, now time.Time) Result {
	var result Result

	// 解除判断
	result.ToClose = e.resolve(c, &result)

	// 发生判断：先板卡（设备异常），后传感器（警戒/警报）
	pass := newOccurrencePass(c, now, &result)
	pass.boards()
	pass.sensors()

	e.logger.Debug("Alarm evaluation finished",
		zap.Int("to_open", len(result.ToOpen)),
		zap.Int("to_close", len(result.ToClose)),
		zap.Int("diagnostics", len(result.Diagnostics)),
	)

	return result
}

func (r *Result) diagnose(format string, args ...any) {
	r.Diagnostics = append(r.Diagnostics, fmt.Sprintf(format, args...))
}

// hasOpenBoardAlarm 板卡是否存在未解除的设备异常报警（非 1、2 代码）
func hasOpenBoardAlarm(c *cache.EntityCache, key models.BoardKey) bool {
	_, ok := c.FindOpenAlarm(func(a models.AlarmRecord) bool {
		return !a.Code.SensorScoped() && a.BoardKey() == key
	})
	return ok
}

// hasOpenSensorAlarm 传感器是否存在指定代码的未解除报警
func hasOpenSensorAlarm(c *cache.EntityCache, key models.SensorKey, code models.AlarmCode) bool {
	_, ok := c.FindOpenAlarm(func(a models.AlarmRecord) bool {
		return a.Code == code && a.SensorKey() == key
	})
	return ok
}

// boardMalfunctioning 板卡第一行状态 stcd 非零；没有状态行时视为正常
func boardMalfunctioning(c *cache.EntityCache, key models.BoardKey) (bool, error) {
	row, ok := c.BoardRow(key)
	if !ok {
		return false, nil
	}
	return row.Malfunctioning()
}

func sensorLabel(key models.SensorKey) string {
	return fmt.Sprintf("%d/%d/%d", key.ObservatoryID, key.BoardID, key.SensorID)
}

func boardLabel(key models.BoardKey) string {
	return fmt.Sprintf("%d/%d", key.ObservatoryID, key.BoardID)
}
