package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ラベル値
const (
	StatusSuccess  = "success"
	StatusFailure  = "failure"
	StatusRejected = "rejected"
)

var (
	// RemoteCallsTotal は Gemini 呼び出しの結果別件数です。
	RemoteCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "brandkit",
			Subsystem: "generation",
			Name:      "remote_calls_total",
			Help:      "Total number of remote image generation calls",
		},
		[]string{"operation", "status"},
	)

	// RemoteCallDuration は Gemini 呼び出しの所要時間です。画像生成は遅いのでバケットは長めにしています。
	RemoteCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "brandkit",
			Subsystem: "generation",
			Name:      "remote_call_duration_seconds",
			Help:      "Remote image generation call duration in seconds",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"operation"},
	)

	// IntentsTotal はコントローラーが受け付けた生成・編集要求の件数です。
	IntentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "brandkit",
			Subsystem: "controller",
			Name:      "intents_total",
			Help:      "Total generate/edit intents by outcome",
		},
		[]string{"intent", "status"},
	)

	// ActiveSessions は保持中のセッション数です。
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "brandkit",
			Subsystem: "server",
			Name:      "active_sessions",
			Help:      "Number of live UI sessions",
		},
	)
)

// RecordRemoteCall は1回のリモート呼び出しを記録します。
func RecordRemoteCall(operation, status string, durationSec float64) {
	RemoteCallsTotal.WithLabelValues(operation, status).Inc()
	RemoteCallDuration.WithLabelValues(operation).Observe(durationSec)
}

// RecordIntent は生成・編集要求の受付結果を記録します。
func RecordIntent(intent, status string) {
	IntentsTotal.WithLabelValues(intent, status).Inc()
}
