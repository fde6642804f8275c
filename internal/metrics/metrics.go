// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/folio/blogapi/internal/model"
)

// Collector はPrometheusメトリクスを収集する実装。
// auth.LoginRecorder、engagement.Recorder、ミドルウェアのレコーダーを満たす。
type Collector struct {
	logins        *prometheus.CounterVec
	toggles       *prometheus.CounterVec
	commentOps    *prometheus.CounterVec
	rateLimited   *prometheus.CounterVec
	httpStatus    *prometheus.CounterVec
	verifyLatency prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogapi_logins_total",
			Help: "結果別のログイン試行数",
		}, []string{"result"}),
		toggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogapi_interaction_toggles_total",
			Help: "種類とトグル後の状態別のいいね・保存操作数",
		}, []string{"kind", "state"}),
		commentOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogapi_comment_operations_total",
			Help: "操作別のコメント操作数",
		}, []string{"op"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogapi_rate_limited_total",
			Help: "レート制限で拒否されたリクエスト数",
		}, []string{"limiter"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogapi_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		verifyLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "blogapi_identity_verification_seconds",
			Help:    "外部IDトークン検証のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.logins,
		c.toggles,
		c.commentOps,
		c.rateLimited,
		c.httpStatus,
		c.verifyLatency,
	)

	return c
}

// RecordLogin はログイン結果を記録する。
func (c *Collector) RecordLogin(result string) {
	c.logins.WithLabelValues(result).Inc()
}

// ObserveIdentityVerification は外部IDトークン検証の所要時間を記録する。
func (c *Collector) ObserveIdentityVerification(d time.Duration) {
	c.verifyLatency.Observe(d.Seconds())
}

// RecordToggle はいいね・保存のトグル結果を記録する。
func (c *Collector) RecordToggle(kind model.InteractionKind, active bool) {
	state := "off"
	if active {
		state = "on"
	}
	c.toggles.WithLabelValues(string(kind), state).Inc()
}

// RecordCommentOp はコメント操作を記録する。
func (c *Collector) RecordCommentOp(op string) {
	c.commentOps.WithLabelValues(op).Inc()
}

// RecordRateLimited はレート制限による拒否を記録する。
func (c *Collector) RecordRateLimited(limiter string) {
	c.rateLimited.WithLabelValues(limiter).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
