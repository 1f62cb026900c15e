package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCaptureCounters(t *testing.T) {
	device := "/dev/video-test"

	IncFramesDequeued(device)
	IncFramesDequeued(device)
	IncFramesEncoded(device)

	if v := testutil.ToFloat64(framesDequeued.WithLabelValues(device)); v != 2 {
		t.Errorf("framesDequeued = %v, want 2", v)
	}
	if v := testutil.ToFloat64(framesEncoded.WithLabelValues(device)); v != 1 {
		t.Errorf("framesEncoded = %v, want 1", v)
	}
}

func TestStreamClientsGauge(t *testing.T) {
	device := "/dev/video-gauge"

	IncStreamClients(device)
	IncStreamClients(device)
	DecStreamClients(device)

	if v := testutil.ToFloat64(streamClients.WithLabelValues(device)); v != 1 {
		t.Errorf("streamClients = %v, want 1", v)
	}
}

func TestBusyRejectionsLabels(t *testing.T) {
	device := "/dev/video-busy"

	IncBusyRejections(device, "capture")
	IncBusyRejections(device, "capture")
	IncBusyRejections(device, "stream")

	if v := testutil.ToFloat64(busyRejections.WithLabelValues(device, "capture")); v != 2 {
		t.Errorf("busyRejections{capture} = %v, want 2", v)
	}
	if v := testutil.ToFloat64(busyRejections.WithLabelValues(device, "stream")); v != 1 {
		t.Errorf("busyRejections{stream} = %v, want 1", v)
	}
}

func TestDetectRunningGauge(t *testing.T) {
	device := "/dev/video-detect"

	SetDetectRunning(device, true)
	if v := testutil.ToFloat64(detectRunning.WithLabelValues(device)); v != 1 {
		t.Errorf("detectRunning = %v, want 1", v)
	}
	SetDetectRunning(device, false)
	if v := testutil.ToFloat64(detectRunning.WithLabelValues(device)); v != 0 {
		t.Errorf("detectRunning = %v, want 0", v)
	}

	AddDetectFaces(device, 3)
	if v := testutil.ToFloat64(detectFaces.WithLabelValues(device)); v != 3 {
		t.Errorf("detectFaces = %v, want 3", v)
	}
}
