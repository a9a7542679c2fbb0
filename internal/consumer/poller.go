package consumer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"hns-alarm/internal/metrics"
	"hns-alarm/internal/sink"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrAlreadyRunning Start 时轮询已在运行
	ErrAlreadyRunning = errors.New("poll loop already running")
	// ErrNotRunning Stop 时轮询未运行
	ErrNotRunning = errors.New("poll loop not running")
)

const bannerTimeLayout = "2006-01-02 15:04:05"

// Reconciler 单轮对账（Refresher 实现）
type Reconciler interface {
	Bootstrapped() bool
	Setup(ctx context.Context) error
	Refresh(ctx context.Context) (ApplyResult, error)
}

// Poller 后台轮询：未初始化时 Setup，否则 Refresh，每轮之间休眠 interval
type Poller struct {
	reconciler Reconciler
	interval   time.Duration
	state      *StateManager // 可为 nil
	metrics    *metrics.Metrics
	sink       sink.Sink
	logger     *zap.Logger

	now func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller 创建轮询器
func NewPoller(
	reconciler Reconciler,
	interval time.Duration,
	state *StateManager,
	m *metrics.Metrics,
	out sink.Sink,
	logger *zap.Logger,
) *Poller {
	return &Poller{
		reconciler: reconciler,
		interval:   interval,
		state:      state,
		metrics:    m,
		sink:       out,
		logger:     logger,
		now:        time.Now,
	}
}

// Start 启动轮询；已在运行时返回 ErrAlreadyRunning
func (p *Poller) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		p.sink.Emit("Failed to start alarm module: poll loop already running")
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	p.logger.Info("Poll loop started", zap.Duration("interval", p.interval))
	p.sink.Emit("Alarm module started")
	go p.run(ctx, p.done)
	return nil
}

// Stop 取消轮询并等待退出；未运行时返回 ErrNotRunning
func (p *Poller) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel == nil {
		p.sink.Emit("Failed to stop alarm module: poll loop not running")
		return ErrNotRunning
	}

	p.cancel()
	<-p.done
	p.cancel = nil
	p.done = nil

	p.logger.Info("Poll loop stopped")
	p.sink.Emit("Alarm module stopped")
	return nil
}

// Running 轮询是否在运行
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		p.sink.Emit(fmt.Sprintf("---------[module stopped : %s]---------", p.now().Format(bannerTimeLayout)))
	}()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for tick := int64(1); ; tick++ {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		p.tick(ctx, tick)
		timer.Reset(p.interval)
	}
}

func (p *Poller) tick(ctx context.Context, tick int64) {
	started := p.now()
	p.sink.Emit(fmt.Sprintf("---------[tick %d : %s]---------", tick, started.Format(bannerTimeLayout)))

	state := TickState{
		TickID:    uuid.New().String(),
		Tick:      tick,
		StartedAt: started.Format(time.RFC3339),
	}

	var err error
	if !p.reconciler.Bootstrapped() {
		state.Mode = "setup"
		if tick > 1 {
			p.sink.Emit("Model was not bootstrapped, running setup again")
		}
		err = p.reconciler.Setup(ctx)
	} else {
		state.Mode = "refresh"
		var result ApplyResult
		result, err = p.reconciler.Refresh(ctx)
		state.Opened, state.Closed, state.Failed = result.Opened, result.Closed, result.Failed
	}

	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return
	}
	if err != nil {
		state.Error = err.Error()
		p.logger.Error("Tick failed",
			zap.Int64("tick", tick),
			zap.String("mode", state.Mode),
			zap.Error(err),
		)
	}

	finished := p.now()
	state.FinishedAt = finished.Format(time.RFC3339)
	p.metrics.ObserveTick(state.Mode, finished.Sub(started))

	if p.state != nil {
		if err := p.state.SaveTick(ctx, state); err != nil {
			p.logger.Warn("Failed to save tick state",
				zap.String("tick_id", state.TickID),
				zap.Error(err),
			)
		}
	}
}
