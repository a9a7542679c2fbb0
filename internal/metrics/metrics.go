package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"hns-alarm/internal/models"
)

// Metrics 报警引擎的 Prometheus 指标
// nil *Metrics 可直接使用，不记录任何数据
type Metrics struct {
	TicksTotal         *prometheus.CounterVec
	TickDuration       prometheus.Histogram
	FetchFailuresTotal *prometheus.CounterVec
	DiagnosticsTotal   prometheus.Counter
	AlarmsOpenedTotal  *prometheus.CounterVec
	AlarmsClosedTotal  *prometheus.CounterVec
	WriteFailuresTotal *prometheus.CounterVec
	OpenAlarms         prometheus.Gauge
}

// New 创建指标并注册到 reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hns_alarm_ticks_total",
				Help: "Total poll ticks by mode",
			},
			[]string{"mode"},
		),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hns_alarm_tick_duration_seconds",
			Help:    "Poll tick duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		FetchFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hns_alarm_fetch_failures_total",
				Help: "Total failed store fetches by resource",
			},
			[]string{"resource"},
		),
		DiagnosticsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hns_alarm_diagnostics_total",
			Help: "Total rule engine diagnostics",
		}),
		AlarmsOpenedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hns_alarm_opened_total",
				Help: "Total alarms opened by code",
			},
			[]string{"code"},
		),
		AlarmsClosedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hns_alarm_closed_total",
				Help: "Total alarms closed by code",
			},
			[]string{"code"},
		),
		WriteFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hns_alarm_write_failures_total",
				Help: "Total failed alarm writes by operation",
			},
			[]string{"op"},
		),
		OpenAlarms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hns_alarm_open_alarms",
			Help: "Open alarms held in memory after the last tick",
		}),
	}
	reg.MustRegister(
		m.TicksTotal,
		m.TickDuration,
		m.FetchFailuresTotal,
		m.DiagnosticsTotal,
		m.AlarmsOpenedTotal,
		m.AlarmsClosedTotal,
		m.WriteFailuresTotal,
		m.OpenAlarms,
	)
	return m
}

// ObserveTick 记录一轮结束的 tick
func (m *Metrics) ObserveTick(mode string, d time.Duration) {
	if m == nil {
		return
	}
	m.TicksTotal.WithLabelValues(mode).Inc()
	m.TickDuration.Observe(d.Seconds())
}

// FetchFailed 按资源统计拉取失败
func (m *Metrics) FetchFailed(resource string) {
	if m == nil {
		return
	}
	m.FetchFailuresTotal.WithLabelValues(resource).Inc()
}

// Diagnostics 统计规则引擎诊断数
func (m *Metrics) Diagnostics(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.DiagnosticsTotal.Add(float64(n))
}

// AlarmOpened 统计写入成功的新报警
func (m *Metrics) AlarmOpened(code models.AlarmCode) {
	if m == nil {
		return
	}
	m.AlarmsOpenedTotal.WithLabelValues(code.String()).Inc()
}

// AlarmClosed 统计写入成功的解除
func (m *Metrics) AlarmClosed(code models.AlarmCode) {
	if m == nil {
		return
	}
	m.AlarmsClosedTotal.WithLabelValues(code.String()).Inc()
}

// WriteFailed 按操作统计写入失败
func (m *Metrics) WriteFailed(op string) {
	if m == nil {
		return
	}
	m.WriteFailuresTotal.WithLabelValues(op).Inc()
}

// SetOpenAlarms 设置未解除报警数
func (m *Metrics) SetOpenAlarms(n int) {
	if m == nil {
		return
	}
	m.OpenAlarms.Set(float64(n))
}
