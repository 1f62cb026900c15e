//go:build linux && arm && !arm64

package v4l2

import (
	"syscall"
	"unsafe"
)

// Compile-time struct size assertions for 32-bit ARM.
// These will cause build failures if struct sizes don't match kernel expectations.
var (
	_ [104]byte = [unsafe.Sizeof(v4l2_capability{})]byte{}
	_ [64]byte  = [unsafe.Sizeof(v4l2_fmtdesc{})]byte{}
	_ [8]byte   = [unsafe.Sizeof(v4l2_frmsize_discrete{})]byte{}
	_ [24]byte  = [unsafe.Sizeof(v4l2_frmsize_stepwise{})]byte{}
	_ [44]byte  = [unsafe.Sizeof(v4l2_frmsizeenum{})]byte{}
	_ [204]byte = [unsafe.Sizeof(v4l2_format{})]byte{}
	_ [20]byte  = [unsafe.Sizeof(v4l2_requestbuffers{})]byte{}
	_ [68]byte  = [unsafe.Sizeof(v4l2_buffer{})]byte{}
	_ [16]byte  = [unsafe.Sizeof(v4l2_timecode{})]byte{}
)

// IOCTL constants for 32-bit ARM.
// Note: values differ from 64-bit where struct timeval or pointer
// alignment changes the struct size (v4l2_format, v4l2_buffer).
const (
	VIDIOC_QUERYCAP        = 0x80685600
	VIDIOC_ENUM_FMT        = 0xc0405602
	VIDIOC_G_FMT           = 0xc0cc5604 // v4l2_format is 204 bytes on 32-bit
	VIDIOC_S_FMT           = 0xc0cc5605
	VIDIOC_REQBUFS         = 0xc0145608
	VIDIOC_QUERYBUF        = 0xc0445609 // v4l2_buffer is 68 bytes on 32-bit
	VIDIOC_QBUF            = 0xc044560f
	VIDIOC_DQBUF           = 0xc0445611
	VIDIOC_STREAMON        = 0x40045612
	VIDIOC_STREAMOFF       = 0x40045613
	VIDIOC_ENUM_FRAMESIZES = 0xc02c564a
)

// v4l2_capability has size 104 bytes (same as 64-bit).
type v4l2_capability struct {
	driver       [16]byte
	card         [32]byte
	bus_info     [32]byte
	version      uint32
	capabilities uint32
	device_caps  uint32
	reserved     [3]uint32
}

// v4l2_fmtdesc has size 64 bytes (same as 64-bit).
type v4l2_fmtdesc struct {
	index       uint32
	typ         uint32
	flags       uint32
	description [32]byte
	pixelformat uint32
	mbus_code   uint32
	reserved    [3]uint32
}

// v4l2_frmsize_discrete has size 8 bytes.
type v4l2_frmsize_discrete struct {
	width  uint32
	height uint32
}

// v4l2_frmsize_stepwise has size 24 bytes.
type v4l2_frmsize_stepwise struct {
	min_width   uint32
	max_width   uint32
	step_width  uint32
	min_height  uint32
	max_height  uint32
	step_height uint32
}

// v4l2_frmsizeenum has size 44 bytes.
type v4l2_frmsizeenum struct {
	index        uint32
	pixel_format uint32
	typ          uint32
	discrete     v4l2_frmsize_discrete
	_            [16]byte
	reserved     [2]uint32
}

// v4l2_pix_format is padded to the 200-byte fmt union of v4l2_format.
type v4l2_pix_format struct {
	width        uint32
	height       uint32
	pixelformat  uint32
	field        uint32
	bytesperline uint32
	sizeimage    uint32
	colorspace   uint32
	priv         uint32
	flags        uint32
	ycbcr_enc    uint32
	quantization uint32
	xfer_func    uint32

	_ [152]byte // pad union to 200
}

// v4l2_format has size 204 bytes on 32-bit (no padding after typ).
type v4l2_format struct {
	typ uint32
	pix v4l2_pix_format
}

// v4l2_requestbuffers has size 20 bytes.
type v4l2_requestbuffers struct {
	count        uint32
	typ          uint32
	memory       uint32
	capabilities uint32
	flags        uint8
	reserved     [3]uint8
}

// v4l2_timecode has size 16 bytes.
type v4l2_timecode struct {
	typ      uint32
	flags    uint32
	frames   uint8
	seconds  uint8
	minutes  uint8
	hours    uint8
	userbits [4]uint8
}

// v4l2_buffer has size 68 bytes on 32-bit (struct timeval is 8 bytes, the
// m union is a 4-byte unsigned long).
type v4l2_buffer struct {
	index      uint32          // offset 0
	typ        uint32          // offset 4
	bytesused  uint32          // offset 8
	flags      uint32          // offset 12
	field      uint32          // offset 16
	timestamp  syscall.Timeval // offset 20
	timecode   v4l2_timecode   // offset 28
	sequence   uint32          // offset 44
	memory     uint32          // offset 48
	offset     uint32          // offset 52 (m union, MMAP variant)
	length     uint32          // offset 56
	reserved2  uint32          // offset 60
	request_fd uint32          // offset 64
}
