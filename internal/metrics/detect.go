package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	detectFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camnode",
		Subsystem: "detect",
		Name:      "frames_processed_total",
		Help:      "Frames run through the detector",
	}, []string{"device"})

	detectFaces = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camnode",
		Subsystem: "detect",
		Name:      "faces_total",
		Help:      "Faces reported across all processed frames",
	}, []string{"device"})

	detectDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "camnode",
		Subsystem: "detect",
		Name:      "inference_duration_seconds",
		Help:      "Detector inference latency per frame",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"device"})

	detectRunning = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "camnode",
		Subsystem: "detect",
		Name:      "running",
		Help:      "1 while a detection session is active",
	}, []string{"device"})
)

// IncDetectFrames records one frame handed to the detector.
func IncDetectFrames(device string) {
	detectFrames.WithLabelValues(device).Inc()
}

// AddDetectFaces records faces found in a single frame.
func AddDetectFaces(device string, n int) {
	detectFaces.WithLabelValues(device).Add(float64(n))
}

// ObserveDetectDuration records the latency of one inference pass.
func ObserveDetectDuration(device string, seconds float64) {
	detectDuration.WithLabelValues(device).Observe(seconds)
}

// SetDetectRunning flags whether a detection session is active.
func SetDetectRunning(device string, running bool) {
	v := 0.0
	if running {
		v = 1.0
	}
	detectRunning.WithLabelValues(device).Set(v)
}
