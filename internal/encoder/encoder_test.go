package encoder

import (
	"bytes"
	"errors"
	"testing"

	"github.com/smazurov/camnode/pkg/linuxav/v4l2"
)

func TestEncodeUnconfigured(t *testing.T) {
	e := New(75, nil)
	if _, err := e.Encode(make([]byte, 16)); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("Encode before Configure: got %v, want ErrNotConfigured", err)
	}
}

func TestConfigureUnsupportedFormat(t *testing.T) {
	e := New(75, nil)
	if err := e.Configure(640, 480, v4l2.PixFmtMJPEG); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("Configure with MJPEG source: got %v, want ErrUnsupportedFormat", err)
	}
	if err := e.Configure(0, 480, v4l2.PixFmtRGB565); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("Configure with zero width: got %v, want ErrUnsupportedFormat", err)
	}
	// YUV422P chroma planes are half width, so an odd width has no
	// valid plane layout.
	if err := e.Configure(641, 480, v4l2.PixFmtYUV422P); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("Configure with odd YUV422P width: got %v, want ErrUnsupportedFormat", err)
	}
	// Odd widths stay fine for formats without subsampled planes.
	if err := e.Configure(641, 480, v4l2.PixFmtGrey); err != nil {
		t.Fatalf("Configure with odd grey width: %v", err)
	}
}

func TestEncodeRGB565(t *testing.T) {
	const w, h = 640, 480
	e := New(75, nil)
	if err := e.Configure(w, h, v4l2.PixFmtRGB565); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	raw := make([]byte, w*h*2)
	// Horizontal gradient so the JPEG is not a degenerate flat image.
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint16(x) & 0xFFFF
			i := 2 * (y*w + x)
			raw[i] = byte(v)
			raw[i+1] = byte(v >> 8)
		}
	}

	jpg, err := e.Encode(raw)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(jpg) == 0 {
		t.Fatal("Encode returned empty output")
	}
	if len(jpg) >= len(raw) {
		t.Fatalf("JPEG (%d bytes) not smaller than raw frame (%d bytes)", len(jpg), len(raw))
	}
	if !bytes.HasPrefix(jpg, []byte{0xFF, 0xD8}) {
		t.Fatalf("output missing JPEG SOI marker: % x", jpg[:2])
	}
}

func TestEncodeYUV422P(t *testing.T) {
	const w, h = 320, 240
	e := New(75, nil)
	if err := e.Configure(w, h, v4l2.PixFmtYUV422P); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	raw := make([]byte, w*h*2)
	for i := 0; i < w*h; i++ {
		raw[i] = byte(i) // luma ramp
	}
	for i := w * h; i < len(raw); i++ {
		raw[i] = 128 // neutral chroma
	}

	jpg, err := e.Encode(raw)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.HasPrefix(jpg, []byte{0xFF, 0xD8}) {
		t.Fatal("output is not a JPEG")
	}
}

func TestEncodeGrey(t *testing.T) {
	const w, h = 160, 120
	e := New(75, nil)
	if err := e.Configure(w, h, v4l2.PixFmtGrey); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	jpg, err := e.Encode(make([]byte, w*h))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(jpg) == 0 {
		t.Fatal("Encode returned empty output")
	}
}

func TestEncodeShortFrame(t *testing.T) {
	e := New(75, nil)
	if err := e.Configure(640, 480, v4l2.PixFmtRGB565); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if _, err := e.Encode(make([]byte, 100)); !errors.Is(err, ErrEncode) {
		t.Fatalf("short frame: got %v, want ErrEncode", err)
	}
}

func TestReconfigure(t *testing.T) {
	e := New(75, nil)
	if err := e.Configure(640, 480, v4l2.PixFmtRGB565); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	firstCap := e.OutputCap()
	if firstCap != 640*480*2 {
		t.Fatalf("output cap = %d, want %d", firstCap, 640*480*2)
	}

	// Same format: state must be kept.
	if err := e.Configure(640, 480, v4l2.PixFmtRGB565); err != nil {
		t.Fatalf("re-Configure same format: %v", err)
	}
	if e.OutputCap() != firstCap {
		t.Fatal("no-op reconfigure reallocated the output buffer")
	}

	// New geometry: buffer sized for the new frame.
	if err := e.Configure(320, 240, v4l2.PixFmtGrey); err != nil {
		t.Fatalf("Configure new format: %v", err)
	}
	if e.OutputCap() != 320*240 {
		t.Fatalf("output cap after reconfigure = %d, want %d", e.OutputCap(), 320*240)
	}
}

func TestTeardown(t *testing.T) {
	e := New(75, nil)
	if err := e.Configure(160, 120, v4l2.PixFmtGrey); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	e.Teardown()
	if _, err := e.Encode(make([]byte, 160*120)); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("Encode after Teardown: got %v, want ErrNotConfigured", err)
	}
	e.Teardown() // second call must be harmless
}

func TestQualityClamping(t *testing.T) {
	if e := New(0, nil); e.quality != DefaultQuality {
		t.Fatalf("quality 0 -> %d, want default %d", e.quality, DefaultQuality)
	}
	if e := New(101, nil); e.quality != DefaultQuality {
		t.Fatalf("quality 101 -> %d, want default %d", e.quality, DefaultQuality)
	}
	if e := New(90, nil); e.quality != 90 {
		t.Fatalf("quality 90 -> %d", e.quality)
	}
}
