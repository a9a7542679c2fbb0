package consumer

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"hns-alarm/internal/cache"
	"hns-alarm/internal/config"
	"hns-alarm/internal/evaluator"
	"hns-alarm/internal/metrics"
	"hns-alarm/internal/models"
	"hns-alarm/internal/repository"
	"hns-alarm/internal/sink"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Refresher 从远端存储重新加载缓存，并在 Refresh 时评估、应用报警
type Refresher struct {
	config    *config.Config
	store     repository.Store
	cache     *cache.EntityCache
	evaluator *evaluator.Evaluator
	applier   *Applier
	sink      sink.Sink
	metrics   *metrics.Metrics
	logger    *zap.Logger

	now func() time.Time
}

// NewRefresher 创建刷新管线
func NewRefresher(
	cfg *config.Config,
	store repository.Store,
	c *cache.EntityCache,
	eval *evaluator.Evaluator,
	applier *Applier,
	out sink.Sink,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Refresher {
	return &Refresher{
		config:    cfg,
		store:     store,
		cache:     c,
		evaluator: eval,
		applier:   applier,
		sink:      out,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Bootstrapped 缓存是否已完成初始化
func (r *Refresher) Bootstrapped() bool {
	return r.cache.IsBootstrapped()
}

// Setup 冷启动：清空全部缓存，重新加载区域、观测站与实时数据
func (r *Refresher) Setup(ctx context.Context) error {
	r.cache.Reset(true)
	report := sink.NewReport()
	defer report.Flush(r.sink)

	progress := &loadProgress{label: "Loading data..."}

	var (
		alarms        []models.AlarmRecord
		areas         []models.Area
		observatories []models.Observatory
	)
	g := new(errgroup.Group)
	g.Go(func() error {
		alarms, _ = r.fetchAlarms(ctx, report, progress)
		return nil
	})
	g.Go(func() error {
		var err error
		if areas, err = r.store.GetAreas(ctx); err != nil {
			r.fetchFailed(report, "areas", "areas", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if observatories, err = r.store.GetObservatories(ctx); err != nil {
			r.fetchFailed(report, "observatories", "observatories", err)
		}
		return nil
	})
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	r.cache.Areas = areas
	r.cache.Observatories = r.allowed(observatories)
	r.cache.Alarms = r.allowedAlarms(alarms)
	progress.observatories.Store(int64(len(r.cache.Observatories)))

	return r.loadObservatories(ctx, report, progress)
}

// Refresh 热刷新：保留区域与观测站，重新加载实时数据后评估并应用报警
func (r *Refresher) Refresh(ctx context.Context) (ApplyResult, error) {
	r.cache.Reset(false)
	report := sink.NewReport()
	defer report.Flush(r.sink)

	progress := &loadProgress{label: "Refreshing data..."}
	progress.observatories.Store(int64(len(r.cache.Observatories)))

	alarms, alarmsErr := r.fetchAlarms(ctx, report, progress)
	r.cache.Alarms = r.allowedAlarms(alarms)
	if err := ctx.Err(); err != nil {
		return ApplyResult{}, err
	}

	if err := r.loadObservatories(ctx, report, progress); err != nil {
		return ApplyResult{}, err
	}

	// 未解除报警未知时跳过本轮评估
	if alarmsErr != nil {
		report.Add("alarm evaluation skipped: open alarms unavailable")
		return ApplyResult{}, nil
	}

	result := r.evaluator.Evaluate(r.cache, r.now())
	report.AddAll(result.Diagnostics)
	r.metrics.Diagnostics(len(result.Diagnostics))

	applied := r.applier.Apply(ctx, r.cache, result.ToOpen, result.ToClose, report)
	r.sink.Emit(fmt.Sprintf("Alarm evaluated! opened: %d closed: %d", len(result.ToOpen), len(result.ToClose)))

	if err := ctx.Err(); err != nil {
		return applied, err
	}
	return applied, nil
}

// observatoryLoad 单个观测站的拉取结果
type observatoryLoad struct {
	boards  []models.BoardState
	sensors []models.SensorResource
	values  []models.CurrentValue
}

// loadObservatories 并发拉取每个观测站的板卡与传感器→测量值，Wait 之后统一写入缓存
func (r *Refresher) loadObservatories(ctx context.Context, report *sink.Report, progress *loadProgress) error {
	observatories := r.cache.Observatories
	loads := make([]observatoryLoad, len(observatories))
	remaining := make([]atomic.Int32, len(observatories))

	g := new(errgroup.Group)
	g.SetLimit(r.config.Alarm.FetchConcurrency)
	for i, obs := range observatories {
		i, obs := i, obs
		remaining[i].Store(2)
		done := func() {
			if remaining[i].Add(-1) == 0 {
				progress.observatoriesDone.Add(1)
			}
			r.sink.Emit(progress.String())
		}

		g.Go(func() error {
			defer done()
			if ctx.Err() != nil {
				return nil
			}
			boards, err := r.store.GetBoardStates(ctx, obs.ObservatoryID)
			if err != nil {
				r.fetchFailed(report, "boards", fmt.Sprintf("boards for observatory %d", obs.ObservatoryID), err)
			}
			loads[i].boards = boards
			progress.boards.Add(int64(len(boards)))
			return nil
		})

		g.Go(func() error {
			defer done()
			if ctx.Err() != nil {
				return nil
			}
			sensors, err := r.store.GetSensorsByObservatory(ctx, obs.ObservatoryID)
			if err != nil {
				r.fetchFailed(report, "sensors", fmt.Sprintf("sensors for observatory %d", obs.ObservatoryID), err)
			}
			loads[i].sensors = sensors
			progress.sensors.Add(int64(len(sensors)))

			values, err := r.store.GetLatestValuesByObservatory(ctx, obs.ObservatoryID)
			if err != nil {
				r.fetchFailed(report, "values", fmt.Sprintf("values for observatory %d", obs.ObservatoryID), err)
			}
			loads[i].values = values
			progress.values.Add(int64(countMatched(sensors, values)))
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	// 单协程合并
	for i, obs := range observatories {
		load := loads[i]
		r.cache.SetBoards(obs.ObservatoryID, load.boards)
		r.cache.SetSensors(obs.ObservatoryID, load.sensors)

		discarded := 0
		for _, v := range load.values {
			// 测量值只按 (hnsidx, boardidx) 匹配本观测站的传感器
			v.ObservatoryID = obs.ObservatoryID
			if !r.cache.AttachValue(v) {
				discarded++
			}
		}
		if discarded > 0 {
			r.logger.Debug("Discarded unmatched values",
				zap.Int("obsidx", obs.ObservatoryID),
				zap.Int("discarded", discarded),
			)
		}
	}
	return nil
}

func (r *Refresher) fetchAlarms(ctx context.Context, report *sink.Report, progress *loadProgress) ([]models.AlarmRecord, error) {
	alarms, err := r.store.GetOpenAlarms(ctx)
	if err != nil {
		r.fetchFailed(report, "alarms", "open alarms", err)
		return nil, err
	}
	progress.alarms.Store(int64(len(alarms)))
	r.sink.Emit(progress.String())
	return alarms, nil
}

func (r *Refresher) fetchFailed(report *sink.Report, resource, what string, err error) {
	report.Addf("failed to fetch %s: %v", what, err)
	r.metrics.FetchFailed(resource)
}

// allowed 按观测站白名单过滤，白名单为空时不过滤
func (r *Refresher) allowed(observatories []models.Observatory) []models.Observatory {
	if len(r.config.Alarm.Observatories) == 0 {
		return observatories
	}
	var result []models.Observatory
	for _, obs := range observatories {
		if r.isAllowed(obs.ObservatoryID) {
			result = append(result, obs)
		}
	}
	return result
}

func (r *Refresher) allowedAlarms(alarms []models.AlarmRecord) []models.AlarmRecord {
	if len(r.config.Alarm.Observatories) == 0 {
		return alarms
	}
	var result []models.AlarmRecord
	for _, a := range alarms {
		if r.isAllowed(a.ObservatoryID) {
			result = append(result, a)
		}
	}
	return result
}

func (r *Refresher) isAllowed(obsidx int) bool {
	for _, id := range r.config.Alarm.Observatories {
		if id == obsidx {
			return true
		}
	}
	return false
}

func countMatched(sensors []models.SensorResource, values []models.CurrentValue) int {
	n := 0
	for _, v := range values {
		for _, s := range sensors {
			if s.SensorID == v.SensorID && s.BoardID == v.BoardID {
				n++
				break
			}
		}
	}
	return n
}

// loadProgress 拉取进度计数（并发更新）
type loadProgress struct {
	label string

	observatories     atomic.Int64
	observatoriesDone atomic.Int64
	boards            atomic.Int64
	sensors           atomic.Int64
	values            atomic.Int64
	alarms            atomic.Int64
}

func (p *loadProgress) String() string {
	return fmt.Sprintf("%s (obs: %d/%d boards: %d hns: %d/%d alarm: %d)",
		p.label,
		p.observatoriesDone.Load(), p.observatories.Load(),
		p.boards.Load(),
		p.values.Load(), p.sensors.Load(),
		p.alarms.Load(),
	)
}
