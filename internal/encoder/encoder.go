// Package encoder turns raw captured frames into JPEG images.
//
// One Encoder owns a single reusable output buffer sized for the worst
// case of the configured format, so the streaming loop never allocates
// per frame. The trade-off is that two frames cannot be encoded
// concurrently; that is safe here because the camera access lock admits
// one session at a time.
package encoder

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"

	"github.com/smazurov/camnode/pkg/linuxav/v4l2"
)

// Sentinel errors for encoder failures.
var (
	ErrUnsupportedFormat = errors.New("encoder: unsupported pixel format")
	ErrNotConfigured     = errors.New("encoder: not configured")
	ErrEncode            = errors.New("encoder: encode failed")
)

// DefaultQuality is the JPEG quality used when none is configured.
const DefaultQuality = 75

// sourceFormat describes how raw bytes of one pixel format are laid out.
type sourceFormat struct {
	bitsPerPixel uint32
	subsampling  image.YCbCrSubsampleRatio
}

// Supported source formats. Everything else is rejected at Configure.
var sourceFormats = map[uint32]sourceFormat{
	v4l2.PixFmtRGB565:  {bitsPerPixel: 16, subsampling: image.YCbCrSubsampleRatio422},
	v4l2.PixFmtRGB24:   {bitsPerPixel: 24, subsampling: image.YCbCrSubsampleRatio444},
	v4l2.PixFmtYUV422P: {bitsPerPixel: 16, subsampling: image.YCbCrSubsampleRatio422},
	v4l2.PixFmtGrey:    {bitsPerPixel: 8, subsampling: image.YCbCrSubsampleRatio444},
}

// Encoder compresses raw frames of one fixed format into JPEG.
// It is not safe for concurrent use.
type Encoder struct {
	width   uint32
	height  uint32
	pixfmt  uint32
	quality int
	stride  uint32 // expected raw frame size in bytes

	out     *bytes.Buffer
	scratch *image.RGBA // conversion target for packed RGB formats

	configured bool
	logger     *slog.Logger
}

// New returns an unconfigured encoder with the given JPEG quality.
// Quality outside [1,100] falls back to DefaultQuality.
func New(quality int, logger *slog.Logger) *Encoder {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Encoder{quality: quality, logger: logger}
}

// Configure prepares the encoder for frames of the given geometry and
// pixel format. Calling it again with the same format is a no-op; a
// changed format tears the previous state down and re-allocates the
// output buffer for the new worst case.
func (e *Encoder) Configure(width, height, pixelFormat uint32) error {
	if e.configured && e.width == width && e.height == height && e.pixfmt == pixelFormat {
		return nil
	}
	if e.configured {
		e.Teardown()
	}

	src, ok := sourceFormats[pixelFormat]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, v4l2.FormatFourCC(pixelFormat))
	}
	if width == 0 || height == 0 {
		return fmt.Errorf("%w: zero dimensions", ErrUnsupportedFormat)
	}
	// Planar 4:2:2 carries half-width chroma planes; an odd width would
	// mis-slice them.
	if pixelFormat == v4l2.PixFmtYUV422P && width%2 != 0 {
		return fmt.Errorf("%w: odd width %d for %s", ErrUnsupportedFormat, width, v4l2.FormatFourCC(pixelFormat))
	}

	stride := width * height * src.bitsPerPixel / 8

	// JPEG output can never usefully exceed the raw frame; reserve that
	// much once so encoding does not grow the buffer mid-stream.
	e.out = bytes.NewBuffer(make([]byte, 0, int(stride)))

	switch pixelFormat {
	case v4l2.PixFmtRGB565, v4l2.PixFmtRGB24:
		e.scratch = image.NewRGBA(image.Rect(0, 0, int(width), int(height)))
	default:
		e.scratch = nil
	}

	e.width = width
	e.height = height
	e.pixfmt = pixelFormat
	e.stride = stride
	e.configured = true

	e.logger.Info("encoder ready",
		"width", width, "height", height,
		"format", v4l2.FormatFourCC(pixelFormat), "quality", e.quality)
	return nil
}

// Encode compresses one raw frame. The returned slice is owned by the
// encoder and only valid until the next Encode call; callers must finish
// using it (for example writing it to the network) before dequeuing the
// next frame.
func (e *Encoder) Encode(raw []byte) ([]byte, error) {
	if !e.configured {
		return nil, ErrNotConfigured
	}
	if uint32(len(raw)) < e.stride {
		return nil, fmt.Errorf("%w: short frame %d bytes, want %d", ErrEncode, len(raw), e.stride)
	}

	img, err := e.wrap(raw)
	if err != nil {
		return nil, err
	}

	e.out.Reset()
	if err := jpeg.Encode(e.out, img, &jpeg.Options{Quality: e.quality}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return e.out.Bytes(), nil
}

// Teardown releases the output buffer and any conversion state. Safe to
// call when not configured.
func (e *Encoder) Teardown() {
	e.out = nil
	e.scratch = nil
	e.configured = false
}

// OutputCap returns the capacity of the reusable output buffer, zero when
// unconfigured.
func (e *Encoder) OutputCap() int {
	if e.out == nil {
		return 0
	}
	return e.out.Cap()
}

// wrap presents raw bytes as an image.Image, copying only when the source
// layout forces it.
func (e *Encoder) wrap(raw []byte) (image.Image, error) {
	w, h := int(e.width), int(e.height)

	switch e.pixfmt {
	case v4l2.PixFmtGrey:
		return &image.Gray{
			Pix:    raw[:w*h],
			Stride: w,
			Rect:   image.Rect(0, 0, w, h),
		}, nil

	case v4l2.PixFmtYUV422P:
		// Planar 4:2:2: full Y plane followed by half-width Cb and Cr.
		yLen := w * h
		cLen := yLen / 2
		return &image.YCbCr{
			Y:              raw[:yLen],
			Cb:             raw[yLen : yLen+cLen],
			Cr:             raw[yLen+cLen : yLen+2*cLen],
			YStride:        w,
			CStride:        w / 2,
			SubsampleRatio: image.YCbCrSubsampleRatio422,
			Rect:           image.Rect(0, 0, w, h),
		}, nil

	case v4l2.PixFmtRGB565:
		e.convertRGB565(raw)
		return e.scratch, nil

	case v4l2.PixFmtRGB24:
		e.convertRGB24(raw)
		return e.scratch, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, v4l2.FormatFourCC(e.pixfmt))
}

// convertRGB565 expands little-endian RGB 5-6-5 into the scratch RGBA image.
func (e *Encoder) convertRGB565(raw []byte) {
	pix := e.scratch.Pix
	n := int(e.width * e.height)
	for i := 0; i < n; i++ {
		v := uint16(raw[2*i]) | uint16(raw[2*i+1])<<8
		r := uint8(v >> 11)
		g := uint8(v >> 5 & 0x3F)
		b := uint8(v & 0x1F)
		pix[4*i] = r<<3 | r>>2
		pix[4*i+1] = g<<2 | g>>4
		pix[4*i+2] = b<<3 | b>>2
		pix[4*i+3] = 0xFF
	}
}

// convertRGB24 expands packed RGB 8-8-8 into the scratch RGBA image.
func (e *Encoder) convertRGB24(raw []byte) {
	pix := e.scratch.Pix
	n := int(e.width * e.height)
	for i := 0; i < n; i++ {
		pix[4*i] = raw[3*i]
		pix[4*i+1] = raw[3*i+1]
		pix[4*i+2] = raw[3*i+2]
		pix[4*i+3] = 0xFF
	}
}
