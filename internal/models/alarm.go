package models

import "fmt"

// AlarmCode 报警代码
type AlarmCode int

const (
	AlarmCodeMalfunction AlarmCode = 0 // 设备异常（板卡级）
	AlarmCodeWarning     AlarmCode = 1 // 警戒
	AlarmCodeAlert       AlarmCode = 2 // 警报
)

// SensorScoped 1、2 为传感器报警，其余代码一律按设备异常处理
func (c AlarmCode) SensorScoped() bool {
	return c == AlarmCodeWarning || c == AlarmCodeAlert
}

func (c AlarmCode) String() string {
	switch c {
	case AlarmCodeWarning:
		return "warning"
	case AlarmCodeAlert:
		return "alert"
	case AlarmCodeMalfunction:
		return "malfunction"
	default:
		return fmt.Sprintf("malfunction(%d)", int(c))
	}
}

// OccurredAtLayout aladt 的时间格式（yyyyMMddHHmmss）
const OccurredAtLayout = "20060102150405"

// AlarmRecord 报警记录（对应 TB_ALARM_DATA）
type AlarmRecord struct {
	AlarmID    int       `json:"alaidx"` // 由存储分配，未持久化前为 0
	Code       AlarmCode `json:"alacode"`
	OccurredAt string    `json:"aladt"`

	ObservatoryID int `json:"obsidx"`
	BoardID       int `json:"boardidx"`
	SensorID      int `json:"hnsidx"` // 设备异常报警为 0

	// 发生时的阈值与测量值快照
	WarningThreshold *float64 `json:"alahival"`
	AlertThreshold   *float64 `json:"alahihival"`
	Value            *float64 `json:"currval"`

	SensorName      *string `json:"hnsnm"`
	ObservatoryName string  `json:"obsnm"`
	AreaName        string  `json:"areanm"`

	TurnoffFlag *string `json:"turnoff_flag"`
	TurnoffAt   *string `json:"turnoff_dt"`
}

// SensorKey 返回报警对应的传感器标识
func (a AlarmRecord) SensorKey() SensorKey {
	return SensorKey{ObservatoryID: a.ObservatoryID, BoardID: a.BoardID, SensorID: a.SensorID}
}

// BoardKey 返回报警对应的板卡标识
func (a AlarmRecord) BoardKey() BoardKey {
	return BoardKey{ObservatoryID: a.ObservatoryID, BoardID: a.BoardID}
}

// Closed turnoff_flag = 'Y' 表示已解除
func (a AlarmRecord) Closed() bool {
	return a.TurnoffFlag != nil && *a.TurnoffFlag == "Y"
}
