// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層とワーカーから利用する。
type MetricsCollector interface {
	RecordSessionStarted()
	RecordSessionStopped(netHours float64)
	RecordBreakStarted()
	RecordSessionEdited()
	RecordEntriesReconciled(count int)
	RecordEntriesOrphaned(count int)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	sessionsStarted    prometheus.Counter
	sessionsStopped    prometheus.Counter
	sessionNetHours    prometheus.Histogram
	breaksStarted      prometheus.Counter
	sessionsEdited     prometheus.Counter
	entriesReconciled  prometheus.Counter
	entriesOrphaned    prometheus.Counter
	httpStatus         *prometheus.CounterVec
	requestLatency     prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timecard_sessions_started_total",
			Help: "開始された勤務セッションの合計数",
		}),
		sessionsStopped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timecard_sessions_stopped_total",
			Help: "終了された勤務セッションの合計数",
		}),
		sessionNetHours: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "timecard_session_net_hours",
			Help:    "完了セッションの正味勤務時間（時間単位）",
			Buckets: []float64{1, 2, 4, 6, 8, 10, 12, 16, 24},
		}),
		breaksStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timecard_breaks_started_total",
			Help: "開始された休憩の合計数",
		}),
		sessionsEdited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timecard_sessions_edited_total",
			Help: "監査付き編集が行われたセッションの合計数",
		}),
		entriesReconciled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timecard_entries_reconciled_total",
			Help: "セッションへ変換された旧台帳打刻の合計数",
		}),
		entriesOrphaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timecard_entries_orphaned_total",
			Help: "ペアが見つからず要確認として変換された打刻の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timecard_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "timecard_request_latency_seconds",
			Help:    "HTTPリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.sessionsStarted,
		c.sessionsStopped,
		c.sessionNetHours,
		c.breaksStarted,
		c.sessionsEdited,
		c.entriesReconciled,
		c.entriesOrphaned,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordSessionStarted はセッション開始を記録する。
func (c *Collector) RecordSessionStarted() {
	c.sessionsStarted.Inc()
}

// RecordSessionStopped はセッション終了と正味勤務時間を記録する。
func (c *Collector) RecordSessionStopped(netHours float64) {
	c.sessionsStopped.Inc()
	c.sessionNetHours.Observe(netHours)
}

// RecordBreakStarted は休憩開始を記録する。
func (c *Collector) RecordBreakStarted() {
	c.breaksStarted.Inc()
}

// RecordSessionEdited は監査付き編集を記録する。
func (c *Collector) RecordSessionEdited() {
	c.sessionsEdited.Inc()
}

// RecordEntriesReconciled は変換された打刻数を記録する。
func (c *Collector) RecordEntriesReconciled(count int) {
	c.entriesReconciled.Add(float64(count))
}

// RecordEntriesOrphaned は要確認として変換された打刻数を記録する。
func (c *Collector) RecordEntriesOrphaned(count int) {
	c.entriesOrphaned.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
