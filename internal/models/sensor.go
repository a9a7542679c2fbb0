package models

// SensorResource 传感器配置
type SensorResource struct {
	ObservatoryID int    `json:"obsidx"`
	BoardID       int    `json:"boardidx"`
	SensorID      int    `json:"hnsidx"`
	SensorName    string `json:"hnsnm"`

	InService   Code `json:"useyn"`          // 非零表示使用中
	UnderRepair Code `json:"inspectionflag"` // 非零表示检修中

	WarningThreshold float64 `json:"alahival"`   // 警戒阈值
	AlertThreshold   float64 `json:"alahihival"` // 警报阈值
}

// Key 返回传感器标识
func (s SensorResource) Key() SensorKey {
	return SensorKey{ObservatoryID: s.ObservatoryID, BoardID: s.BoardID, SensorID: s.SensorID}
}

// BoardKey 返回所属板卡标识
func (s SensorResource) BoardKey() BoardKey {
	return BoardKey{ObservatoryID: s.ObservatoryID, BoardID: s.BoardID}
}

// SensorKey 传感器标识 (obsidx, boardidx, hnsidx)
type SensorKey struct {
	ObservatoryID int
	BoardID       int
	SensorID      int
}

// CurrentValue 传感器最新测量值
type CurrentValue struct {
	ObservatoryID int      `json:"obsidx"`
	BoardID       int      `json:"boardidx"`
	SensorID      int      `json:"hnsidx"`
	Value         *float64 `json:"val"` // nil 表示尚无测量值
}

// Measurement 返回测量值及其是否存在
func (v *CurrentValue) Measurement() (float64, bool) {
	if v == nil || v.Value == nil {
		return 0, false
	}
	return *v.Value, true
}
