package cache

import (
	"sort"

	"hns-alarm/internal/models"
)

// EntityCache 观测站拓扑与实时数据的内存模型
// 不加锁：只有当前轮询周期的协调协程会修改它
type EntityCache struct {
	Areas         []models.Area
	Observatories []models.Observatory
	Boards        map[int][]models.BoardState     // obsidx -> 板卡状态（同一板卡可能有多行）
	Sensors       map[int][]models.SensorResource // obsidx -> 传感器配置
	Values        map[models.SensorKey]*models.CurrentValue
	Alarms        []models.AlarmRecord
}

// NewEntityCache 创建空缓存
func NewEntityCache() *EntityCache {
	return &EntityCache{
		Boards:  make(map[int][]models.BoardState),
		Sensors: make(map[int][]models.SensorResource),
		Values:  make(map[models.SensorKey]*models.CurrentValue),
	}
}

// IsBootstrapped 区域、观测站、板卡、传感器、测量值均已加载
func (c *EntityCache) IsBootstrapped() bool {
	return len(c.Areas) > 0 &&
		len(c.Observatories) > 0 &&
		len(c.Boards) > 0 &&
		len(c.Sensors) > 0 &&
		len(c.Values) > 0
}

// Reset 清空报警、板卡、传感器与测量值；hard 时同时清空区域与观测站
func (c *EntityCache) Reset(hard bool) {
	c.Alarms = nil
	c.Boards = make(map[int][]models.BoardState)
	c.Sensors = make(map[int][]models.SensorResource)
	c.Values = make(map[models.SensorKey]*models.CurrentValue)
	if hard {
		c.Areas = nil
		c.Observatories = nil
	}
}

// Observatory 按 obsidx 查找观测站
func (c *EntityCache) Observatory(obsidx int) (models.Observatory, bool) {
	for _, obs := range c.Observatories {
		if obs.ObservatoryID == obsidx {
			return obs, true
		}
	}
	return models.Observatory{}, false
}

// HasSensors 该观测站是否加载了传感器
func (c *EntityCache) HasSensors(obsidx int) bool {
	_, ok := c.Sensors[obsidx]
	return ok
}

// HasBoards 该观测站是否加载了板卡状态
func (c *EntityCache) HasBoards(obsidx int) bool {
	_, ok := c.Boards[obsidx]
	return ok
}

// Sensor 按 (obsidx, boardidx, hnsidx) 查找传感器
func (c *EntityCache) Sensor(key models.SensorKey) (models.SensorResource, bool) {
	for _, s := range c.Sensors[key.ObservatoryID] {
		if s.BoardID == key.BoardID && s.SensorID == key.SensorID {
			return s, true
		}
	}
	return models.SensorResource{}, false
}

// BoardRow 返回该板卡的第一行状态
func (c *EntityCache) BoardRow(key models.BoardKey) (models.BoardState, bool) {
	for _, b := range c.Boards[key.ObservatoryID] {
		if b.BoardID == key.BoardID {
			return b, true
		}
	}
	return models.BoardState{}, false
}

// Value 返回传感器的最新测量值，可能为 nil
func (c *EntityCache) Value(key models.SensorKey) (*models.CurrentValue, bool) {
	v, ok := c.Values[key]
	return v, ok
}

// SetBoards 写入观测站的板卡状态，空列表不写入
func (c *EntityCache) SetBoards(obsidx int, boards []models.BoardState) {
	if len(boards) == 0 {
		return
	}
	c.Boards[obsidx] = boards
}

// SetSensors 写入观测站的传感器配置，并为每个传感器预留空测量值
func (c *EntityCache) SetSensors(obsidx int, sensors []models.SensorResource) {
	if sensors == nil {
		sensors = []models.SensorResource{}
	}
	c.Sensors[obsidx] = sensors
	for _, s := range sensors {
		if _, ok := c.Values[s.Key()]; !ok {
			c.Values[s.Key()] = nil
		}
	}
}

// AttachValue 按 (hnsidx, boardidx) 匹配同一观测站的传感器；无匹配时丢弃并返回 false
func (c *EntityCache) AttachValue(v models.CurrentValue) bool {
	for _, s := range c.Sensors[v.ObservatoryID] {
		if s.SensorID == v.SensorID && s.BoardID == v.BoardID {
			value := v
			c.Values[s.Key()] = &value
			return true
		}
	}
	return false
}

// AllBoards 按 obsidx 升序返回全部板卡状态
func (c *EntityCache) AllBoards() []models.BoardState {
	var result []models.BoardState
	for _, obsidx := range sortedKeys(c.Boards) {
		result = append(result, c.Boards[obsidx]...)
	}
	return result
}

// AllSensors 按 obsidx 升序返回全部传感器
func (c *EntityCache) AllSensors() []models.SensorResource {
	var result []models.SensorResource
	for _, obsidx := range sortedKeys(c.Sensors) {
		result = append(result, c.Sensors[obsidx]...)
	}
	return result
}

// FindOpenAlarm 返回第一条满足条件的未解除报警
func (c *EntityCache) FindOpenAlarm(pred func(models.AlarmRecord) bool) (models.AlarmRecord, bool) {
	for _, a := range c.Alarms {
		if pred(a) {
			return a, true
		}
	}
	return models.AlarmRecord{}, false
}

// AlarmsByObservatory 按观测站分组的未解除报警
func (c *EntityCache) AlarmsByObservatory() map[int][]models.AlarmRecord {
	result := make(map[int][]models.AlarmRecord)
	for _, a := range c.Alarms {
		result[a.ObservatoryID] = append(result[a.ObservatoryID], a)
	}
	return result
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
