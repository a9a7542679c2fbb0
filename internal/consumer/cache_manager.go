package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hns-alarm/internal/config"
	"hns-alarm/internal/models"

	"go.uber.org/zap"
)

// CacheManager 将未解除报警按观测站镜像到 Redis
type CacheManager struct {
	config *config.Config
	kv     KVStore
	logger *zap.Logger
}

// NewCacheManager 创建缓存管理器
func NewCacheManager(
	cfg *config.Config,
	kv KVStore,
	logger *zap.Logger,
) *CacheManager {
	return &CacheManager{
		config: cfg,
		kv:     kv,
		logger: logger,
	}
}

// AlarmKey 构建观测站报警缓存键
func (c *CacheManager) AlarmKey(obsidx int) string {
	return fmt.Sprintf("%s%d%s",
		c.config.Alarm.Cache.AlarmKeyPrefix,
		obsidx,
		c.config.Alarm.Cache.AlarmSuffix,
	)
}

// MirrorOpenAlarms 在一个事务中写入每个观测站的未解除报警列表（无报警的观测站写入空列表）
func (c *CacheManager) MirrorOpenAlarms(ctx context.Context, observatories []models.Observatory, alarms []models.AlarmRecord) error {
	grouped := make(map[int][]models.AlarmRecord)
	for _, obs := range observatories {
		grouped[obs.ObservatoryID] = []models.AlarmRecord{}
	}
	for _, a := range alarms {
		grouped[a.ObservatoryID] = append(grouped[a.ObservatoryID], a)
	}

	entries := make(map[string]string, len(grouped))
	for obsidx, list := range grouped {
		jsonData, err := json.Marshal(list)
		if err != nil {
			return fmt.Errorf("failed to marshal alarm data for observatory %d: %w", obsidx, err)
		}
		entries[c.AlarmKey(obsidx)] = string(jsonData)
	}

	ttl := time.Duration(c.config.Alarm.Cache.AlarmTTL) * time.Second
	if err := c.kv.SetMany(ctx, entries, ttl); err != nil {
		return fmt.Errorf("failed to mirror open alarms: %w", err)
	}

	c.logger.Debug("Mirrored open alarms",
		zap.Int("observatories", len(grouped)),
		zap.Int("alarm_count", len(alarms)),
	)
	return nil
}

// GetAlarmCache 读取单个观测站的报警缓存
func (c *CacheManager) GetAlarmCache(ctx context.Context, obsidx int) ([]models.AlarmRecord, error) {
	val, err := c.kv.Get(ctx, c.AlarmKey(obsidx))
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, fmt.Errorf("alarm cache not found for observatory %d: %w", obsidx, err)
		}
		return nil, fmt.Errorf("failed to get cache: %w", err)
	}

	var alarms []models.AlarmRecord
	if err := json.Unmarshal([]byte(val), &alarms); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alarm data: %w", err)
	}
	return alarms, nil
}
