//go:build linux

package v4l2

import (
	"errors"
	"fmt"
	"syscall"
	"unsafe"
)

// GetFormat returns the device's current capture format.
func (c *Camera) GetFormat() (Format, error) {
	fmtreq := v4l2_format{typ: V4L2_BUF_TYPE_VIDEO_CAPTURE}

	if err := ioctl(c.fd, VIDIOC_G_FMT, unsafe.Pointer(&fmtreq)); err != nil {
		return Format{}, fmt.Errorf("failed to get format: %w", err)
	}

	return Format{
		Width:       fmtreq.pix.width,
		Height:      fmtreq.pix.height,
		PixelFormat: fmtreq.pix.pixelformat,
	}, nil
}

// SetFormat asks the driver for the given capture format and returns the
// format the driver actually selected, which may differ. Zero width or
// height keeps the device's current dimensions.
func (c *Camera) SetFormat(want Format) (Format, error) {
	fmtreq := v4l2_format{typ: V4L2_BUF_TYPE_VIDEO_CAPTURE}
	if err := ioctl(c.fd, VIDIOC_G_FMT, unsafe.Pointer(&fmtreq)); err != nil {
		return Format{}, fmt.Errorf("failed to get format: %w", err)
	}

	if want.Width > 0 && want.Height > 0 {
		fmtreq.pix.width = want.Width
		fmtreq.pix.height = want.Height
	}
	if want.PixelFormat != 0 {
		fmtreq.pix.pixelformat = want.PixelFormat
	}
	fmtreq.pix.field = V4L2_FIELD_NONE

	if err := ioctl(c.fd, VIDIOC_S_FMT, unsafe.Pointer(&fmtreq)); err != nil {
		return Format{}, fmt.Errorf("failed to set format %s: %w", FormatFourCC(want.PixelFormat), err)
	}

	return Format{
		Width:       fmtreq.pix.width,
		Height:      fmtreq.pix.height,
		PixelFormat: fmtreq.pix.pixelformat,
	}, nil
}

// GetFormats returns all supported pixel formats for a device.
func GetFormats(devicePath string) ([]FormatInfo, error) {
	fd, err := open(devicePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open device: %w", err)
	}
	defer syscall.Close(fd)

	var formats []FormatInfo

	for i := uint32(0); ; i++ {
		fmtdesc := v4l2_fmtdesc{
			index: i,
			typ:   V4L2_BUF_TYPE_VIDEO_CAPTURE,
		}

		if ioctlErr := ioctl(fd, VIDIOC_ENUM_FMT, unsafe.Pointer(&fmtdesc)); ioctlErr != nil {
			if errors.Is(ioctlErr, syscall.EINVAL) {
				break // End of enumeration
			}
			return nil, fmt.Errorf("failed to enumerate format %d: %w", i, ioctlErr)
		}

		formats = append(formats, FormatInfo{
			PixelFormat: fmtdesc.pixelformat,
			FormatName:  cstr(fmtdesc.description[:]),
			Emulated:    fmtdesc.flags&V4L2_FMT_FLAG_EMULATED != 0,
		})
	}

	return formats, nil
}

// GetResolutions returns all supported resolutions for a device and pixel format.
func GetResolutions(devicePath string, pixelFormat uint32) ([]Resolution, error) {
	fd, err := open(devicePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open device: %w", err)
	}
	defer syscall.Close(fd)

	var resolutions []Resolution

	for i := uint32(0); ; i++ {
		frmsize := v4l2_frmsizeenum{
			index:        i,
			pixel_format: pixelFormat,
		}

		if ioctlErr := ioctl(fd, VIDIOC_ENUM_FRAMESIZES, unsafe.Pointer(&frmsize)); ioctlErr != nil {
			if errors.Is(ioctlErr, syscall.EINVAL) {
				break // End of enumeration
			}
			// ENOTTY means device doesn't support frame size enumeration
			if errors.Is(ioctlErr, syscall.ENOTTY) {
				return []Resolution{}, nil
			}
			return nil, fmt.Errorf("failed to enumerate frame size %d: %w", i, ioctlErr)
		}

		switch frmsize.typ {
		case V4L2_FRMSIZE_TYPE_DISCRETE:
			resolutions = append(resolutions, Resolution{
				Width:  frmsize.discrete.width,
				Height: frmsize.discrete.height,
			})
		case V4L2_FRMSIZE_TYPE_CONTINUOUS, V4L2_FRMSIZE_TYPE_STEPWISE:
			resolutions = append(resolutions, getStepwiseResolutions(&frmsize)...)
			return resolutions, nil // Only one stepwise entry
		}
	}

	return resolutions, nil
}

// getStepwiseResolutions returns common resolutions within a stepwise range.
func getStepwiseResolutions(frmsize *v4l2_frmsizeenum) []Resolution {
	commonResolutions := [][2]uint32{
		{320, 240},   // QVGA
		{640, 480},   // VGA
		{800, 600},   // SVGA
		{1280, 720},  // HD
		{1920, 1080}, // Full HD
		{2560, 1440}, // QHD
		{3840, 2160}, // 4K UHD
	}

	// Extract stepwise params from union (stepwise overlays discrete in memory)
	stepwise := (*v4l2_frmsize_stepwise)(unsafe.Pointer(&frmsize.discrete))

	var resolutions []Resolution
	for _, res := range commonResolutions {
		w, h := res[0], res[1]
		if w >= stepwise.min_width && w <= stepwise.max_width &&
			h >= stepwise.min_height && h <= stepwise.max_height {
			resolutions = append(resolutions, Resolution{Width: w, Height: h})
		}
	}

	return resolutions
}
