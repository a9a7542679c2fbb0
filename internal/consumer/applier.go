package consumer

import (
	"context"

	"hns-alarm/internal/cache"
	"hns-alarm/internal/metrics"
	"hns-alarm/internal/models"
	"hns-alarm/internal/repository"
	"hns-alarm/internal/sink"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// AlarmNotifier 报警事件通知接口（notify.AlarmNotifier 实现）
type AlarmNotifier interface {
	AlarmOpened(ctx context.Context, alarm models.AlarmRecord) error
	AlarmClosed(ctx context.Context, alarm models.AlarmRecord) error
}

// ApplyResult 一轮写入的结果
type ApplyResult struct {
	Opened int // 写入成功的新报警
	Closed int // 写入成功的解除
	Failed int // 写入失败
}

// Applier 将评估结果应用到缓存与远端存储
type Applier struct {
	store       repository.Store
	notifier    AlarmNotifier // 可为 nil
	mirror      *CacheManager // 可为 nil
	metrics     *metrics.Metrics
	concurrency int
	logger      *zap.Logger
}

// NewApplier 创建报警应用器
func NewApplier(
	store repository.Store,
	notifier AlarmNotifier,
	mirror *CacheManager,
	m *metrics.Metrics,
	concurrency int,
	logger *zap.Logger,
) *Applier {
	return &Applier{
		store:       store,
		notifier:    notifier,
		mirror:      mirror,
		metrics:     m,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Apply 先修改内存中的报警集合，再并发写入远端
// 写入失败记录到 report，不回滚内存修改
func (a *Applier) Apply(ctx context.Context, c *cache.EntityCache, toOpen, toClose []models.AlarmRecord, report *sink.Report) ApplyResult {
	closing := make(map[int]bool, len(toClose))
	for _, alarm := range toClose {
		closing[alarm.AlarmID] = true
	}
	kept := c.Alarms[:0:0]
	for _, alarm := range c.Alarms {
		if !closing[alarm.AlarmID] {
			kept = append(kept, alarm)
		}
	}
	c.Alarms = append(kept, toOpen...)

	closed := make([]bool, len(toClose))
	opened := make([]bool, len(toOpen))

	g := new(errgroup.Group)
	if a.concurrency > 0 {
		g.SetLimit(a.concurrency)
	}
	for i, alarm := range toClose {
		i, alarm := i, alarm
		g.Go(func() error {
			if err := a.store.CloseAlarm(ctx, alarm.AlarmID); err != nil {
				report.Addf("close alarm %d (%s) failed: %v", alarm.AlarmID, alarm.Code, err)
				a.metrics.WriteFailed("close")
				return nil
			}
			closed[i] = true
			return nil
		})
	}
	for i, alarm := range toOpen {
		i, alarm := i, alarm
		g.Go(func() error {
			if err := a.store.OpenAlarm(ctx, alarm); err != nil {
				report.Addf("open alarm %s for %d/%d/%d failed: %v",
					alarm.Code, alarm.ObservatoryID, alarm.BoardID, alarm.SensorID, err)
				a.metrics.WriteFailed("open")
				return nil
			}
			opened[i] = true
			return nil
		})
	}
	_ = g.Wait()

	var result ApplyResult
	for i, ok := range closed {
		if !ok {
			result.Failed++
			continue
		}
		result.Closed++
		a.metrics.AlarmClosed(toClose[i].Code)
		a.notify(ctx, report, toClose[i], false)
	}
	for i, ok := range opened {
		if !ok {
			result.Failed++
			continue
		}
		result.Opened++
		a.metrics.AlarmOpened(toOpen[i].Code)
		a.notify(ctx, report, toOpen[i], true)
	}
	a.metrics.SetOpenAlarms(len(c.Alarms))

	if a.mirror != nil && ctx.Err() == nil {
		if err := a.mirror.MirrorOpenAlarms(ctx, c.Observatories, c.Alarms); err != nil {
			report.Addf("alarm cache mirror failed: %v", err)
		}
	}

	a.logger.Debug("Alarms applied",
		zap.Int("opened", result.Opened),
		zap.Int("closed", result.Closed),
		zap.Int("failed", result.Failed),
	)
	return result
}

func (a *Applier) notify(ctx context.Context, report *sink.Report, alarm models.AlarmRecord, opened bool) {
	if a.notifier == nil || ctx.Err() != nil {
		return
	}
	var err error
	if opened {
		err = a.notifier.AlarmOpened(ctx, alarm)
	} else {
		err = a.notifier.AlarmClosed(ctx, alarm)
	}
	if err != nil {
		report.Addf("alarm notification failed for %d/%d/%d (%s): %v",
			alarm.ObservatoryID, alarm.BoardID, alarm.SensorID, alarm.Code, err)
	}
}
