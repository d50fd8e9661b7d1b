// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder はPrometheusメトリクスを収集する。
// サービス層とハンドラー層から利用する。
type Recorder struct {
	postsCreated   prometheus.Counter
	postsDeleted   prometheus.Counter
	signUps        prometheus.Counter
	signIns        prometheus.Counter
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
	sseSubscribers prometheus.Gauge
}

// NewRecorder は新しいRecorderを生成し、指定されたレジストリにメトリクスを登録する。
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		postsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "loreboard_posts_created_total",
			Help: "作成された投稿の合計数",
		}),
		postsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "loreboard_posts_deleted_total",
			Help: "削除された投稿の合計数",
		}),
		signUps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "loreboard_signups_total",
			Help: "新規アカウント登録の合計数",
		}),
		signIns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "loreboard_signins_total",
			Help: "ログイン成功の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "loreboard_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "loreboard_request_latency_seconds",
			Help:    "APIリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		sseSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "loreboard_sse_subscribers",
			Help: "現在接続中のSSE購読者数",
		}),
	}

	reg.MustRegister(
		r.postsCreated,
		r.postsDeleted,
		r.signUps,
		r.signIns,
		r.httpStatus,
		r.requestLatency,
		r.sseSubscribers,
	)

	return r
}

// PostCreated は投稿作成を記録する。
func (r *Recorder) PostCreated() {
	r.postsCreated.Inc()
}

// PostDeleted は投稿削除を記録する。
func (r *Recorder) PostDeleted() {
	r.postsDeleted.Inc()
}

// SignUp は新規登録を記録する。
func (r *Recorder) SignUp() {
	r.signUps.Inc()
}

// SignIn はログイン成功を記録する。
func (r *Recorder) SignIn() {
	r.signIns.Inc()
}

// HTTPStatus はHTTPステータスコードを記録する。
func (r *Recorder) HTTPStatus(statusCode int) {
	r.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RequestLatency はリクエストのレイテンシを記録する。
func (r *Recorder) RequestLatency(duration time.Duration) {
	r.requestLatency.Observe(duration.Seconds())
}

// SSESubscribed はSSE購読の開始を記録する。
func (r *Recorder) SSESubscribed() {
	r.sseSubscribers.Inc()
}

// SSEUnsubscribed はSSE購読の終了を記録する。
func (r *Recorder) SSEUnsubscribed() {
	r.sseSubscribers.Dec()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
