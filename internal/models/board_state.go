package models

// BoardState 板卡状态（每块板卡只保留最新一行）
type BoardState struct {
	ObservatoryID int    `json:"obsidx"`
	BoardID       int    `json:"boardidx"`
	ObservedAt    string `json:"obsdt"` // yyyyMMddHHmmss

	// 板卡1（毒性监测模块）：00 正常，03 校准中，06 动作不良
	// 板卡2（多功能 PNF 模块）：00 正常，01 错误
	StatusCode Code `json:"stcd"`

	// 通信状态
	CommStatus string `json:"brd_state"`

	Temperature *float64 `json:"meas_temp,omitempty"`
	PH          *float64 `json:"meas_ph,omitempty"`
	Ohm         *float64 `json:"meas_ohm,omitempty"`
}

// Key 返回板卡标识
func (b BoardState) Key() BoardKey {
	return BoardKey{ObservatoryID: b.ObservatoryID, BoardID: b.BoardID}
}

// Malfunctioning stcd 非零表示设备异常
func (b BoardState) Malfunctioning() (bool, error) {
	return b.StatusCode.IsSet()
}

// BoardKey 板卡标识 (obsidx, boardidx)
type BoardKey struct {
	ObservatoryID int
	BoardID       int
}
