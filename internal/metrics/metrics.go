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
// 同期サービスやハンドラー層から利用する。
type MetricsCollector interface {
	RecordSyncApplied(state string)
	RecordSyncSkipped()
	RecordSyncFailure(reason string)
	RecordRecordDeleted()
	RecordHTTPStatus(statusCode int)
	RecordSyncLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	syncApplied   *prometheus.CounterVec
	syncSkipped   prometheus.Counter
	syncFail      *prometheus.CounterVec
	recordDeleted prometheus.Counter
	httpStatus    *prometheus.CounterVec
	syncLatency   prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		syncApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rfdstore_sync_applied_total",
			Help: "適用されたRFD同期の状態別合計数",
		}, []string{"state"}),
		syncSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rfdstore_sync_skipped_total",
			Help: "sha未変更によりスキップされた同期の合計数",
		}),
		syncFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rfdstore_sync_fail_total",
			Help: "失敗したRFD同期の理由別合計数",
		}, []string{"reason"}),
		recordDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rfdstore_records_deleted_total",
			Help: "削除されたRFDレコードの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rfdstore_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		syncLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rfdstore_sync_latency_seconds",
			Help:    "RFD同期処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.syncApplied,
		c.syncSkipped,
		c.syncFail,
		c.recordDeleted,
		c.httpStatus,
		c.syncLatency,
	)

	return c
}

// RecordSyncApplied は同期の適用を状態付きで記録する。
func (c *Collector) RecordSyncApplied(state string) {
	c.syncApplied.WithLabelValues(state).Inc()
}

// RecordSyncSkipped はsha未変更による同期スキップを記録する。
func (c *Collector) RecordSyncSkipped() {
	c.syncSkipped.Inc()
}

// RecordSyncFailure は同期失敗を理由付きで記録する。
func (c *Collector) RecordSyncFailure(reason string) {
	c.syncFail.WithLabelValues(reason).Inc()
}

// RecordRecordDeleted はレコード削除を記録する。
func (c *Collector) RecordRecordDeleted() {
	c.recordDeleted.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordSyncLatency は同期処理のレイテンシを記録する。
func (c *Collector) RecordSyncLatency(duration time.Duration) {
	c.syncLatency.Observe(duration.Seconds())
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
