// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層およびミドルウェアから利用する。
type MetricsCollector interface {
	RecordOTPRequested()
	RecordOTPVerified()
	RecordOTPRejected(reason string)
	RecordTodoCreated()
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	otpRequested prometheus.Counter
	otpVerified  prometheus.Counter
	otpRejected  *prometheus.CounterVec
	todosCreated prometheus.Counter
	httpStatus   *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		otpRequested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "todoman_otp_requested_total",
			Help: "発行されたワンタイムコードの合計数",
		}),
		otpVerified: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "todoman_otp_verified_total",
			Help: "検証に成功したワンタイムコードの合計数",
		}),
		otpRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todoman_otp_rejected_total",
			Help: "検証に失敗したワンタイムコードの理由別合計数",
		}, []string{"reason"}),
		todosCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "todoman_todos_created_total",
			Help: "作成されたToDoの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todoman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.otpRequested,
		c.otpVerified,
		c.otpRejected,
		c.todosCreated,
		c.httpStatus,
	)

	return c
}

// RecordOTPRequested はワンタイムコードの発行を記録する。
func (c *Collector) RecordOTPRequested() {
	c.otpRequested.Inc()
}

// RecordOTPVerified はワンタイムコードの検証成功を記録する。
func (c *Collector) RecordOTPVerified() {
	c.otpVerified.Inc()
}

// RecordOTPRejected はワンタイムコードの検証失敗を理由付きで記録する。
// reason: throttled / expired / mismatch / consumed
func (c *Collector) RecordOTPRejected(reason string) {
	c.otpRejected.WithLabelValues(reason).Inc()
}

// RecordTodoCreated はToDoの作成を記録する。
func (c *Collector) RecordTodoCreated() {
	c.todosCreated.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
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
