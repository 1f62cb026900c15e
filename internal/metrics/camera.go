// Package metrics provides Prometheus metrics for the capture pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesDequeued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camnode",
		Subsystem: "capture",
		Name:      "frames_dequeued_total",
		Help:      "Frames dequeued from the camera driver",
	}, []string{"device"})

	framesEncoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camnode",
		Subsystem: "capture",
		Name:      "frames_encoded_total",
		Help:      "Frames successfully encoded to JPEG",
	}, []string{"device"})

	encodeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "camnode",
		Subsystem: "capture",
		Name:      "encode_duration_seconds",
		Help:      "JPEG encode latency per frame",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"device"})

	streamBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camnode",
		Subsystem: "stream",
		Name:      "bytes_sent_total",
		Help:      "JPEG payload bytes written to streaming clients",
	}, []string{"device"})

	streamClients = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "camnode",
		Subsystem: "stream",
		Name:      "active_clients",
		Help:      "Currently connected MJPEG stream clients",
	}, []string{"device"})

	busyRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camnode",
		Subsystem: "capture",
		Name:      "busy_rejections_total",
		Help:      "Requests rejected because the camera lock timed out",
	}, []string{"device", "op"})
)

// IncFramesDequeued records one frame handed back by the driver.
func IncFramesDequeued(device string) {
	framesDequeued.WithLabelValues(device).Inc()
}

// IncFramesEncoded records one successful JPEG encode.
func IncFramesEncoded(device string) {
	framesEncoded.WithLabelValues(device).Inc()
}

// ObserveEncodeDuration records the latency of one JPEG encode.
func ObserveEncodeDuration(device string, seconds float64) {
	encodeDuration.WithLabelValues(device).Observe(seconds)
}

// AddStreamBytes records payload bytes written to a streaming client.
func AddStreamBytes(device string, n int) {
	streamBytes.WithLabelValues(device).Add(float64(n))
}

// IncStreamClients marks one more connected stream client.
func IncStreamClients(device string) {
	streamClients.WithLabelValues(device).Inc()
}

// DecStreamClients marks one stream client as disconnected.
func DecStreamClients(device string) {
	streamClients.WithLabelValues(device).Dec()
}

// IncBusyRejections records a request bounced off the camera lock.
// op is the endpoint kind: "stream", "capture" or "detection".
func IncBusyRejections(device, op string) {
	busyRejections.WithLabelValues(device, op).Inc()
}
