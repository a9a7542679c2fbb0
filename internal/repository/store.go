package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"hns-alarm/internal/models"
	"hns-alarm/internal/sink"

	"go.uber.org/zap"
)

// Store 远端存储访问接口
type Store interface {
	GetObservatories(ctx context.Context) ([]models.Observatory, error)
	GetAreas(ctx context.Context) ([]models.Area, error)
	GetSensorsByObservatory(ctx context.Context, obsidx int) ([]models.SensorResource, error)
	GetLatestValuesByObservatory(ctx context.Context, obsidx int) ([]models.CurrentValue, error)
	GetOpenAlarms(ctx context.Context) ([]models.AlarmRecord, error)
	GetBoardStates(ctx context.Context, obsidx int) ([]models.BoardState, error)
	OpenAlarm(ctx context.Context, record models.AlarmRecord) error
	CloseAlarm(ctx context.Context, alaidx int) error
}

// AlarmStore 基于 Executor 的存储实现
// 失败时向消息出口输出 "Error: ..." 并返回错误，由调用方降级处理
type AlarmStore struct {
	exec    Executor
	queries Queries
	sink    sink.Sink
	logger  *zap.Logger
}

// NewAlarmStore 创建存储客户端
func NewAlarmStore(exec Executor, queries Queries, out sink.Sink, logger *zap.Logger) *AlarmStore {
	if queries == nil {
		queries = MSSQLQueries
	}
	if out == nil {
		out = sink.Discard
	}
	return &AlarmStore{
		exec:    exec,
		queries: queries,
		sink:    out,
		logger:  logger,
	}
}

// GetObservatories 观测站列表
func (s *AlarmStore) GetObservatories(ctx context.Context) ([]models.Observatory, error) {
	return selectRows[models.Observatory](ctx, s, s.queries.Observatories())
}

// GetAreas 区域列表
func (s *AlarmStore) GetAreas(ctx context.Context) ([]models.Area, error) {
	return selectRows[models.Area](ctx, s, s.queries.Areas())
}

// GetSensorsByObservatory 单个观测站的传感器配置
func (s *AlarmStore) GetSensorsByObservatory(ctx context.Context, obsidx int) ([]models.SensorResource, error) {
	return selectRows[models.SensorResource](ctx, s, s.queries.Sensors(obsidx))
}

// GetLatestValuesByObservatory 单个观测站的最新测量值
func (s *AlarmStore) GetLatestValuesByObservatory(ctx context.Context, obsidx int) ([]models.CurrentValue, error) {
	return selectRows[models.CurrentValue](ctx, s, s.queries.LatestValues(obsidx))
}

// GetOpenAlarms 当前未解除的报警
func (s *AlarmStore) GetOpenAlarms(ctx context.Context) ([]models.AlarmRecord, error) {
	return selectRows[models.AlarmRecord](ctx, s, s.queries.OpenAlarms())
}

// GetBoardStates 单个观测站的板卡状态
func (s *AlarmStore) GetBoardStates(ctx context.Context, obsidx int) ([]models.BoardState, error) {
	return selectRows[models.BoardState](ctx, s, s.queries.BoardStates(obsidx))
}

// OpenAlarm 写入新报警
func (s *AlarmStore) OpenAlarm(ctx context.Context, record models.AlarmRecord) error {
	if _, err := s.exec.Execute(ctx, QueryInsert, s.queries.InsertAlarm(record)); err != nil {
		err = fmt.Errorf("failed to open alarm: %w", err)
		s.report(ctx, err)
		return err
	}
	return nil
}

// CloseAlarm 解除报警
func (s *AlarmStore) CloseAlarm(ctx context.Context, alaidx int) error {
	if _, err := s.exec.Execute(ctx, QueryUpdate, s.queries.CloseAlarm(alaidx)); err != nil {
		err = fmt.Errorf("failed to close alarm %d: %w", alaidx, err)
		s.report(ctx, err)
		return err
	}
	return nil
}

func selectRows[T any](ctx context.Context, s *AlarmStore, query string) ([]T, error) {
	body, err := s.exec.Execute(ctx, QuerySelect, query)
	if err != nil {
		s.report(ctx, err)
		return nil, err
	}

	var rows []T
	if err := json.Unmarshal(body, &rows); err != nil {
		err = fmt.Errorf("failed to decode rows: %w", err)
		s.report(ctx, err)
		return nil, err
	}
	return rows, nil
}

// report 取消引起的失败不输出
func (s *AlarmStore) report(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	s.logger.Warn("Store operation failed", zap.Error(err))
	s.sink.Emit("Error: " + err.Error())
}
