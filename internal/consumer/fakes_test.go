package consumer

import (
	"context"
	"errors"
	"sync"

	"hns-alarm/internal/models"
)

// fakeStore 内存存储，仅用于单元测试（并发安全）
type fakeStore struct {
	mu sync.Mutex

	areas         []models.Area
	observatories []models.Observatory
	alarms        []models.AlarmRecord
	boards        map[int][]models.BoardState
	sensors       map[int][]models.SensorResource
	values        map[int][]models.CurrentValue

	failBoards map[int]bool
	failAlarms bool
	failOpen   bool
	failClose  map[int]bool

	opened []models.AlarmRecord
	closed []int
	calls  map[string]int
}

var errFakeStore = errors.New("store unavailable")

func newFakeStore() *fakeStore {
	return &fakeStore{
		boards:     make(map[int][]models.BoardState),
		sensors:    make(map[int][]models.SensorResource),
		values:     make(map[int][]models.CurrentValue),
		failBoards: make(map[int]bool),
		failClose:  make(map[int]bool),
		calls:      make(map[string]int),
	}
}

func (f *fakeStore) called(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeStore) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeStore) GetObservatories(ctx context.Context) ([]models.Observatory, error) {
	f.called("observatories")
	return f.observatories, nil
}

func (f *fakeStore) GetAreas(ctx context.Context) ([]models.Area, error) {
	f.called("areas")
	return f.areas, nil
}

func (f *fakeStore) GetSensorsByObservatory(ctx context.Context, obsidx int) ([]models.SensorResource, error) {
	f.called("sensors")
	return f.sensors[obsidx], nil
}

func (f *fakeStore) GetLatestValuesByObservatory(ctx context.Context, obsidx int) ([]models.CurrentValue, error) {
	f.called("values")
	return f.values[obsidx], nil
}

func (f *fakeStore) GetOpenAlarms(ctx context.Context) ([]models.AlarmRecord, error) {
	f.called("alarms")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAlarms {
		return nil, errFakeStore
	}
	return append([]models.AlarmRecord(nil), f.alarms...), nil
}

func (f *fakeStore) GetBoardStates(ctx context.Context, obsidx int) ([]models.BoardState, error) {
	f.called("boards")
	if f.failBoards[obsidx] {
		return nil, errFakeStore
	}
	return f.boards[obsidx], nil
}

func (f *fakeStore) OpenAlarm(ctx context.Context, record models.AlarmRecord) error {
	f.called("open")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOpen {
		return errFakeStore
	}
	f.opened = append(f.opened, record)
	return nil
}

func (f *fakeStore) CloseAlarm(ctx context.Context, alaidx int) error {
	f.called("close")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failClose[alaidx] {
		return errFakeStore
	}
	f.closed = append(f.closed, alaidx)
	return nil
}

// lineCollector 并发安全的消息出口
type lineCollector struct {
	mu    sync.Mutex
	lines []string
}

func (c *lineCollector) Emit(line string) {
	c.mu.Lock()
	c.lines = append(c.lines, line)
	c.mu.Unlock()
}

func (c *lineCollector) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

// fakeNotifier 记录发布的事件
type fakeNotifier struct {
	mu     sync.Mutex
	opened []models.AlarmRecord
	closed []models.AlarmRecord
	err    error
}

func (n *fakeNotifier) AlarmOpened(ctx context.Context, alarm models.AlarmRecord) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.opened = append(n.opened, alarm)
	return n.err
}

func (n *fakeNotifier) AlarmClosed(ctx context.Context, alarm models.AlarmRecord) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = append(n.closed, alarm)
	return n.err
}

func floatPtr(v float64) *float64 { return &v }
