// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// HTTPミドルウェア、認証サービス、画像パイプライン、イベント発行から利用する。
type Collector struct {
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	authAttempts    *prometheus.CounterVec
	imageUploads    *prometheus.CounterVec
	imageBytes      prometheus.Counter
	eventsPublished *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sharebnb_http_requests_total",
			Help: "ルート・ステータスコード別のHTTPリクエスト数",
		}, []string{"method", "route", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sharebnb_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sharebnb_auth_attempts_total",
			Help: "サインアップ・ログインの試行数",
		}, []string{"operation", "result"}),
		imageUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sharebnb_image_uploads_total",
			Help: "オブジェクトストレージへの画像アップロード数",
		}, []string{"result"}),
		imageBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sharebnb_image_upload_bytes_total",
			Help: "アップロードに成功した画像の合計バイト数",
		}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sharebnb_events_published_total",
			Help: "ドメインイベントの発行数",
		}, []string{"routing_key", "result"}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.authAttempts,
		c.imageUploads,
		c.imageBytes,
		c.eventsPublished,
	)

	return c
}

// RecordHTTPRequest はHTTPリクエストの結果と処理時間を記録する。
// routeにはchiのルートパターンを渡し、ラベルの種類数を抑える。
func (c *Collector) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordAuthAttempt は認証試行の結果を記録する。
func (c *Collector) RecordAuthAttempt(operation, result string) {
	c.authAttempts.WithLabelValues(operation, result).Inc()
}

// RecordImageUpload は画像アップロードの結果を記録する。
func (c *Collector) RecordImageUpload(result string, size int) {
	c.imageUploads.WithLabelValues(result).Inc()
	if result == "success" && size > 0 {
		c.imageBytes.Add(float64(size))
	}
}

// RecordEventPublished はイベント発行の結果を記録する。
func (c *Collector) RecordEventPublished(routingKey, result string) {
	c.eventsPublished.WithLabelValues(routingKey, result).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
