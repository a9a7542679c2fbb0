package service

import (
	"context"
	"database/sql"
	"fmt"

	"hns-alarm/internal/cache"
	"hns-alarm/internal/config"
	"hns-alarm/internal/consumer"
	"hns-alarm/internal/evaluator"
	"hns-alarm/internal/metrics"
	"hns-alarm/internal/notify"
	"hns-alarm/internal/repository"
	"hns-alarm/internal/sink"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// AlarmService 报警服务（整合各层）
type AlarmService struct {
	config      *config.Config
	db          *sql.DB       // 仅 postgres 后端
	redisClient *redis.Client // 未配置时为 nil
	mqttClient  *notify.MQTTClient
	logger      *zap.Logger

	// 各层组件
	store        repository.Store
	entityCache  *cache.EntityCache
	cacheManager *consumer.CacheManager
	stateManager *consumer.StateManager
	refresher    *consumer.Refresher
	poller       *consumer.Poller
}

// NewAlarmService 创建报警服务
// reg 为 nil 时不采集指标
func NewAlarmService(cfg *config.Config, out sink.Sink, reg prometheus.Registerer, logger *zap.Logger) (*AlarmService, error) {
	s := &AlarmService{
		config: cfg,
		logger: logger,
	}

	// 1. 远端存储
	var (
		exec    repository.Executor
		queries repository.Queries
	)
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		db, err := repository.NewPostgresDB(&cfg.Database)
		if err != nil {
			return nil, err
		}
		s.db = db
		exec = repository.NewSQLExecutor(db, logger)
		queries = repository.PostgresQueries
	default:
		exec = repository.NewHTTPExecutor(cfg.Store.URL, cfg.Store.HTTPTimeout, cfg.Store.RetryCount, logger)
		queries = repository.MSSQLQueries
	}
	s.store = repository.NewAlarmStore(exec, queries, out, logger)

	// 2. Redis 镜像（可选）
	if cfg.Redis.Addr != "" {
		s.redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := s.redisClient.Ping(context.Background()).Err(); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		kv := consumer.NewRedisKVStore(s.redisClient)
		s.cacheManager = consumer.NewCacheManager(cfg, kv, logger)
		s.stateManager = consumer.NewStateManager(cfg, kv, logger)
	}

	// 3. MQTT 通知（可选）
	var notifier consumer.AlarmNotifier
	if cfg.MQTT.Broker != "" {
		mqttClient, err := notify.NewMQTTClient(&cfg.MQTT, logger)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.mqttClient = mqttClient
		notifier = notify.NewAlarmNotifier(mqttClient, cfg.MQTT.TopicPrefix, cfg.MQTT.QoS, logger)
	}

	// 4. 指标（可选）
	var m *metrics.Metrics
	if reg != nil {
		m = metrics.New(reg)
	}

	// 5. 对账管线
	s.entityCache = cache.NewEntityCache()
	applier := consumer.NewApplier(s.store, notifier, s.cacheManager, m, cfg.Alarm.FetchConcurrency, logger)
	s.refresher = consumer.NewRefresher(
		cfg,
		s.store,
		s.entityCache,
		evaluator.NewEvaluator(logger),
		applier,
		out,
		m,
		logger,
	)
	s.poller = consumer.NewPoller(s.refresher, cfg.SleepInterval(), s.stateManager, m, out, logger)

	return s, nil
}

// Start 启动轮询；已在运行时返回 consumer.ErrAlreadyRunning
func (s *AlarmService) Start() error {
	s.logger.Info("Starting alarm service",
		zap.String("backend", s.config.Store.Backend),
		zap.Float64("poll_interval", s.config.Alarm.PollInterval),
	)
	return s.poller.Start()
}

// Stop 停止轮询；未运行时返回 consumer.ErrNotRunning
func (s *AlarmService) Stop() error {
	s.logger.Info("Stopping alarm service")
	return s.poller.Stop()
}

// Running 轮询是否在运行
func (s *AlarmService) Running() bool {
	return s.poller.Running()
}

// Close 释放外部连接，需在 Stop 之后调用
func (s *AlarmService) Close() {
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Error("Failed to close redis", zap.Error(err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database", zap.Error(err))
		}
	}
}
