package repository

import (
	"fmt"
	"strconv"

	"hns-alarm/internal/models"
)

// Queries 各存储操作的查询文本
type Queries interface {
	Observatories() string
	Areas() string
	Sensors(obsidx int) string
	LatestValues(obsidx int) string
	OpenAlarms() string
	BoardStates(obsidx int) string
	InsertAlarm(record models.AlarmRecord) string
	CloseAlarm(alaidx int) string
}

var (
	// MSSQLQueries 查询服务（SQL Server）方言
	MSSQLQueries Queries = mssqlQueries{}
	// PostgresQueries 直连 PostgreSQL 方言
	PostgresQueries Queries = postgresQueries{}
)

type mssqlQueries struct{}

func (mssqlQueries) Observatories() string { return "EXEC GET_OBS;" }
func (mssqlQueries) Areas() string         { return "SELECT * FROM TB_AREA;" }
func (mssqlQueries) OpenAlarms() string    { return "EXEC GET_CURRENT_ALARM_LOG;" }

func (mssqlQueries) Sensors(obsidx int) string {
	return fmt.Sprintf("EXEC GET_SETTING @obsidx = %d;", obsidx)
}

func (mssqlQueries) LatestValues(obsidx int) string {
	return fmt.Sprintf("EXEC GET_CURRENT_TOXI @obsidx = %d;", obsidx)
}

func (mssqlQueries) BoardStates(obsidx int) string {
	return fmt.Sprintf("SELECT TOP 1 * FROM TB_BOARD_STATE_DATA WHERE obsidx = %d ORDER BY obsdt DESC;", obsidx)
}

func (mssqlQueries) InsertAlarm(r models.AlarmRecord) string {
	return insertAlarm(r, "GETDATE()")
}

func (mssqlQueries) CloseAlarm(alaidx int) string {
	return fmt.Sprintf("UPDATE TB_ALARM_DATA SET TURNOFF_FLAG = 'Y', TURNOFF_DT = GETDATE() WHERE ALAIDX = %d;", alaidx)
}

type postgresQueries struct{}

func (postgresQueries) Observatories() string { return "SELECT * FROM get_obs();" }
func (postgresQueries) Areas() string         { return "SELECT * FROM tb_area;" }
func (postgresQueries) OpenAlarms() string    { return "SELECT * FROM get_current_alarm_log();" }

func (postgresQueries) Sensors(obsidx int) string {
	return fmt.Sprintf("SELECT * FROM get_setting(%d);", obsidx)
}

func (postgresQueries) LatestValues(obsidx int) string {
	return fmt.Sprintf("SELECT * FROM get_current_toxi(%d);", obsidx)
}

func (postgresQueries) BoardStates(obsidx int) string {
	return fmt.Sprintf("SELECT * FROM tb_board_state_data WHERE obsidx = %d ORDER BY obsdt DESC LIMIT 1;", obsidx)
}

func (postgresQueries) InsertAlarm(r models.AlarmRecord) string {
	return insertAlarm(r, "NOW()")
}

func (postgresQueries) CloseAlarm(alaidx int) string {
	return fmt.Sprintf("UPDATE tb_alarm_data SET turnoff_flag = 'Y', turnoff_dt = NOW() WHERE alaidx = %d;", alaidx)
}

func insertAlarm(r models.AlarmRecord, now string) string {
	return fmt.Sprintf(`INSERT INTO TB_ALARM_DATA
	(HNSIDX, OBSIDX, BOARDIDX, ALAHIVAL, ALAHIHIVAL, CURRVAL, ALACODE, ALADT, TURNOFF_FLAG, TURNOFF_DT)
VALUES
	(%d, %d, %d, %s, %s, %s, %d, %s, NULL, NULL);`,
		r.SensorID, r.ObservatoryID, r.BoardID,
		sqlFloat(r.WarningThreshold), sqlFloat(r.AlertThreshold), sqlFloat(r.Value),
		int(r.Code), now)
}

func sqlFloat(v *float64) string {
	if v == nil {
		return "NULL"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
