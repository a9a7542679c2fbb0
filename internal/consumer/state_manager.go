package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hns-alarm/internal/config"

	"go.uber.org/zap"
)

// TickState 最近一次轮询周期的状态
type TickState struct {
	TickID     string `json:"tick_id"`
	Tick       int64  `json:"tick"`
	Mode       string `json:"mode"` // "setup" 或 "refresh"
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
	Opened     int    `json:"opened"`
	Closed     int    `json:"closed"`
	Failed     int    `json:"failed"`
	Error      string `json:"error,omitempty"`
}

// StateManager 轮询状态管理器
type StateManager struct {
	config *config.Config
	kv     KVStore
	logger *zap.Logger
}

// NewStateManager 创建状态管理器
func NewStateManager(
	cfg *config.Config,
	kv KVStore,
	logger *zap.Logger,
) *StateManager {
	return &StateManager{
		config: cfg,
		kv:     kv,
		logger: logger,
	}
}

// TickKey 构建轮询状态键
func (s *StateManager) TickKey() string {
	return s.config.Alarm.Cache.StateKeyPrefix + "tick"
}

// SaveTick 写入轮询状态（带 TTL）
func (s *StateManager) SaveTick(ctx context.Context, state TickState) error {
	jsonData, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	ttl := time.Duration(s.config.Alarm.Cache.AlarmTTL) * time.Second
	if err := s.kv.Set(ctx, s.TickKey(), string(jsonData), ttl); err != nil {
		return fmt.Errorf("failed to set state: %w", err)
	}
	return nil
}

// GetTick 读取轮询状态
func (s *StateManager) GetTick(ctx context.Context) (*TickState, error) {
	val, err := s.kv.Get(ctx, s.TickKey())
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, fmt.Errorf("state not found: %s: %w", s.TickKey(), err)
		}
		return nil, fmt.Errorf("failed to get state: %w", err)
	}

	var state TickState
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &state, nil
}
