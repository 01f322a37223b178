package capture

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	mu       sync.Mutex
	frame    []byte
	frameErr error
	stops    int
}

func (s *fakeStream) Frame(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frameErr != nil {
		return nil, s.frameErr
	}
	return s.frame, nil
}

func (s *fakeStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	return nil
}

func (s *fakeStream) stopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

type fakeDevice struct {
	stream  *fakeStream
	openErr error
	opens   int
}

func (d *fakeDevice) Open(ctx context.Context) (Stream, error) {
	d.opens++
	if d.openErr != nil {
		return nil, d.openErr
	}
	return d.stream, nil
}

func TestCamera_CaptureStopsStream(t *testing.T) {
	stream := &fakeStream{frame: []byte{0xFF, 0xD8, 0x01, 0xFF, 0xD9}}
	cam := NewCamera(&fakeDevice{stream: stream})

	require.NoError(t, cam.Start(context.Background()))
	assert.True(t, cam.Active())

	img, err := cam.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", img.MIMEType)
	assert.Equal(t, stream.frame, img.Data)

	assert.False(t, cam.Active())
	assert.Equal(t, 1, stream.stopCount())
}

func TestCamera_StartIsIdempotent(t *testing.T) {
	dev := &fakeDevice{stream: &fakeStream{}}
	cam := NewCamera(dev)

	require.NoError(t, cam.Start(context.Background()))
	require.NoError(t, cam.Start(context.Background()))
	assert.Equal(t, 1, dev.opens)
}

func TestCamera_StartFailureIsUnavailable(t *testing.T) {
	cam := NewCamera(&fakeDevice{openErr: errors.New("permission denied")})

	err := cam.Start(context.Background())
	assert.ErrorIs(t, err, ErrCameraUnavailable)
	assert.ErrorContains(t, err, "permission denied")
	assert.False(t, cam.Active())
}

func TestCamera_CaptureWithoutStart(t *testing.T) {
	cam := NewCamera(&fakeDevice{stream: &fakeStream{}})
	_, err := cam.Capture(context.Background())
	assert.ErrorIs(t, err, ErrCameraInactive)
}

func TestCamera_FrameErrorKeepsStream(t *testing.T) {
	stream := &fakeStream{frameErr: errors.New("no frame yet")}
	cam := NewCamera(&fakeDevice{stream: stream})
	require.NoError(t, cam.Start(context.Background()))

	_, err := cam.Capture(context.Background())
	assert.Error(t, err)
	assert.True(t, cam.Active())
	assert.Equal(t, 0, stream.stopCount())

	require.NoError(t, cam.Close())
	assert.False(t, cam.Active())
	assert.Equal(t, 1, stream.stopCount())
}

func TestCamera_CancelAndCloseRelease(t *testing.T) {
	stream := &fakeStream{}
	cam := NewCamera(&fakeDevice{stream: stream})
	require.NoError(t, cam.Start(context.Background()))

	cam.Cancel()
	assert.False(t, cam.Active())
	assert.Equal(t, 1, stream.stopCount())

	// Nothing left to release.
	require.NoError(t, cam.Close())
	assert.Equal(t, 1, stream.stopCount())
}

func TestSplitMJPEG(t *testing.T) {
	frame1 := []byte{0xFF, 0xD8, 0x10, 0x20, 0xFF, 0xD9}
	frame2 := []byte{0xFF, 0xD8, 0xFF, 0x00, 0x30, 0xFF, 0xD9}

	var input []byte
	input = append(input, 0x00, 0x01) // garbage before the first frame
	input = append(input, frame1...)
	input = append(input, frame2...)
	input = append(input, 0xFF, 0xD8, 0x99) // truncated trailing frame

	var frames [][]byte
	err := splitMJPEG(bytes.NewReader(input), func(f []byte) {
		frames = append(frames, f)
	})
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, frame1, frames[0])
	assert.Equal(t, frame2, frames[1])
}

func TestFrameStream_LatestFrame(t *testing.T) {
	released := 0
	s := newFrameStream(func() error {
		released++
		return nil
	})

	s.publish([]byte{1})
	s.publish([]byte{2})

	frame, err := s.Frame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, frame)

	// Returned frames are copies.
	frame[0] = 9
	again, err := s.Frame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, again)

	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
	assert.Equal(t, 1, released)
}

func TestFrameStream_EndsBeforeFirstFrame(t *testing.T) {
	s := newFrameStream(nil)
	s.finish(errors.New("device busy"))

	_, err := s.Frame(context.Background())
	assert.ErrorContains(t, err, "device busy")
}

func TestFrameStream_FrameHonorsContext(t *testing.T) {
	s := newFrameStream(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.Frame(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFFmpegDevice_Args(t *testing.T) {
	d := &FFmpegDevice{Input: "/dev/video0", Format: "v4l2", Width: 640, Height: 480}
	args := d.args()
	assert.Equal(t, []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "v4l2",
		"-video_size", "640x480",
		"-i", "/dev/video0",
		"-an", "-f", "mjpeg", "-q:v", "3", "pipe:1",
	}, args)
}

func TestFFmpegDevice_OpenWithoutInput(t *testing.T) {
	_, err := (&FFmpegDevice{}).Open(context.Background())
	assert.Error(t, err)
}
