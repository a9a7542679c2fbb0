package models

// Area 地区（仅用于展示）
type Area struct {
	AreaID   int    `json:"areaidx"`
	AreaName string `json:"areanm"`
}

// Observatory 观测站
type Observatory struct {
	ObservatoryID   int    `json:"obsidx"`
	ObservatoryName string `json:"obsnm"`
	AreaName        string `json:"areanm"`
}
