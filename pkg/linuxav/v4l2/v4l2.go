//go:build linux

// Package v4l2 provides pure Go bindings to the Video4Linux2 (V4L2) API
// for device enumeration, format negotiation, and memory-mapped frame
// capture.
//
// This package does not use cgo, enabling simple cross-compilation for
// different Linux architectures (amd64, arm64, arm).
//
// # Device Enumeration
//
// Use FindDevices to discover all V4L2 video capture devices:
//
//	devices, err := v4l2.FindDevices()
//	for _, dev := range devices {
//	    fmt.Printf("%s: %s\n", dev.DevicePath, dev.DeviceName)
//	}
//
// # Capture
//
// Open a device, negotiate a format, and run the buffer queue. Buffers
// cycle between hardware ("enqueued for filling") and software ("dequeued
// for reading"); a mapped buffer must never be read while it is enqueued.
//
//	cam, _ := v4l2.Open("/dev/video0")
//	defer cam.Close()
//	n, _ := cam.RequestBuffers(3)
//	for i := uint32(0); i < n; i++ {
//	    cam.MapBuffer(i)
//	    cam.Enqueue(i)
//	}
//	cam.StreamOn()
//	for {
//	    frame, err := cam.Dequeue()
//	    if err != nil {
//	        break
//	    }
//	    process(cam.BufferData(frame.Index)[:frame.BytesUsed])
//	    cam.Enqueue(frame.Index)
//	}
//	cam.StreamOff()
//	cam.ReleaseAll()
//
// Dequeue blocks in select(2) on the device descriptor together with an
// internal wake pipe, so a blocked wait can be aborted from another
// goroutine with Interrupt.
package v4l2
