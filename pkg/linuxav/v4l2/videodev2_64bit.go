//go:build linux && (amd64 || arm64)

package v4l2

import (
	"syscall"
	"unsafe"
)

// Compile-time struct size assertions.
// These will cause build failures if struct sizes don't match kernel expectations.
var (
	_ [104]byte = [unsafe.Sizeof(v4l2_capability{})]byte{}
	_ [64]byte  = [unsafe.Sizeof(v4l2_fmtdesc{})]byte{}
	_ [8]byte   = [unsafe.Sizeof(v4l2_frmsize_discrete{})]byte{}
	_ [24]byte  = [unsafe.Sizeof(v4l2_frmsize_stepwise{})]byte{}
	_ [44]byte  = [unsafe.Sizeof(v4l2_frmsizeenum{})]byte{}
	_ [208]byte = [unsafe.Sizeof(v4l2_format{})]byte{}
	_ [20]byte  = [unsafe.Sizeof(v4l2_requestbuffers{})]byte{}
	_ [88]byte  = [unsafe.Sizeof(v4l2_buffer{})]byte{}
	_ [16]byte  = [unsafe.Sizeof(v4l2_timecode{})]byte{}
)

// IOCTL constants for 64-bit architectures.
const (
	VIDIOC_QUERYCAP        = 0x80685600
	VIDIOC_ENUM_FMT        = 0xc0405602
	VIDIOC_G_FMT           = 0xc0d05604
	VIDIOC_S_FMT           = 0xc0d05605
	VIDIOC_REQBUFS         = 0xc0145608
	VIDIOC_QUERYBUF        = 0xc0585609
	VIDIOC_QBUF            = 0xc058560f
	VIDIOC_DQBUF           = 0xc0585611
	VIDIOC_STREAMON        = 0x40045612
	VIDIOC_STREAMOFF       = 0x40045613
	VIDIOC_ENUM_FRAMESIZES = 0xc02c564a
)

// v4l2_capability has size 104 bytes.
type v4l2_capability struct {
	driver       [16]byte  // offset 0
	card         [32]byte  // offset 16
	bus_info     [32]byte  // offset 48
	version      uint32    // offset 80
	capabilities uint32    // offset 84
	device_caps  uint32    // offset 88
	reserved     [3]uint32 // offset 92
}

// v4l2_fmtdesc has size 64 bytes.
type v4l2_fmtdesc struct {
	index       uint32    // offset 0
	typ         uint32    // offset 4
	flags       uint32    // offset 8
	description [32]byte  // offset 12
	pixelformat uint32    // offset 44
	mbus_code   uint32    // offset 48
	reserved    [3]uint32 // offset 52
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
	index        uint32                // offset 0
	pixel_format uint32                // offset 4
	typ          uint32                // offset 8
	discrete     v4l2_frmsize_discrete // offset 12 (union with stepwise)
	_            [16]byte              // padding for stepwise
	reserved     [2]uint32             // offset 36
}

// v4l2_pix_format is padded to the 200-byte fmt union of v4l2_format.
type v4l2_pix_format struct {
	width        uint32 // offset 0
	height       uint32 // offset 4
	pixelformat  uint32 // offset 8
	field        uint32 // offset 12
	bytesperline uint32 // offset 16
	sizeimage    uint32 // offset 20
	colorspace   uint32 // offset 24
	priv         uint32 // offset 28
	flags        uint32 // offset 32
	ycbcr_enc    uint32 // offset 36
	quantization uint32 // offset 40
	xfer_func    uint32 // offset 44

	_ [152]byte // pad union to 200
}

// v4l2_format has size 208 bytes on 64-bit (the fmt union is
// pointer-aligned, hence the 4 padding bytes after typ).
type v4l2_format struct {
	typ uint32
	_   [4]byte
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

// v4l2_buffer has size 88 bytes on 64-bit (struct timeval is 16 bytes and
// 8-byte aligned; the m union holds an unsigned long).
type v4l2_buffer struct {
	index      uint32          // offset 0
	typ        uint32          // offset 4
	bytesused  uint32          // offset 8
	flags      uint32          // offset 12
	field      uint32          // offset 16
	_          [4]byte         // padding before timeval
	timestamp  syscall.Timeval // offset 24
	timecode   v4l2_timecode   // offset 40
	sequence   uint32          // offset 56
	memory     uint32          // offset 60
	offset     uint32          // offset 64 (m union, MMAP variant)
	_          [4]byte         // rest of the m union
	length     uint32          // offset 72
	reserved2  uint32          // offset 76
	request_fd uint32          // offset 80
	_          [4]byte         // tail padding
}
