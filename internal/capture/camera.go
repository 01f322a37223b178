package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrCameraUnavailable is returned when the device cannot be acquired, for
// example because permission was denied or no camera is attached.
var ErrCameraUnavailable = errors.New("camera unavailable")

// ErrCameraInactive is returned by Capture when no stream is running.
var ErrCameraInactive = errors.New("camera is not active")

// Device opens a user-facing, video-only stream.
type Device interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is a live video stream. Frame returns the most recent frame encoded
// as JPEG. Stop releases the hardware and must be safe to call more than once.
type Stream interface {
	Frame(ctx context.Context) ([]byte, error)
	Stop() error
}

// Camera owns at most one live stream and guarantees it is released after a
// capture, on cancel, and on Close.
type Camera struct {
	device Device

	mu     sync.Mutex
	stream Stream
}

// NewCamera wraps a device.
func NewCamera(device Device) *Camera {
	return &Camera{device: device}
}

// Start acquires the device. Calling Start on an active camera is a no-op.
func (c *Camera) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream != nil {
		return nil
	}
	stream, err := c.device.Open(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}
	c.stream = stream
	log.Info().Msg("camera stream started")
	return nil
}

// Active reports whether a stream is currently held.
func (c *Camera) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream != nil
}

// Capture grabs the current frame and stops the stream. If the frame cannot be
// read the stream is left running so the user may retry or cancel.
func (c *Camera) Capture(ctx context.Context) (Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream == nil {
		return Image{}, ErrCameraInactive
	}
	frame, err := c.stream.Frame(ctx)
	if err != nil {
		return Image{}, fmt.Errorf("failed to read frame: %w", err)
	}
	c.stopLocked()

	return Image{Data: frame, MIMEType: "image/jpeg"}, nil
}

// Cancel stops the stream without capturing.
func (c *Camera) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// Close releases the device on teardown.
func (c *Camera) Close() error {
	c.Cancel()
	return nil
}

func (c *Camera) stopLocked() {
	if c.stream == nil {
		return
	}
	if err := c.stream.Stop(); err != nil {
		log.Warn().Err(err).Msg("failed to stop camera stream")
	}
	c.stream = nil
	log.Info().Msg("camera stream stopped")
}
