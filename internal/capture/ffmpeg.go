package capture

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// firstFrameTimeout bounds how long Open waits for the device to deliver a
// frame before treating it as unavailable.
const firstFrameTimeout = 10 * time.Second

// FFmpegDevice reads a local camera through an ffmpeg child process that
// writes an MJPEG stream to stdout. Killing the process releases the camera.
type FFmpegDevice struct {
	Binary string // ffmpeg executable, defaults to "ffmpeg"
	Input  string // device name, e.g. /dev/video0, "0" on macOS, "video=..." on Windows
	Format string // input format, defaults per OS (v4l2, avfoundation, dshow)
	Width  int
	Height int
}

// DefaultInputFormat returns the ffmpeg capture format for the current OS.
func DefaultInputFormat() string {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation"
	case "windows":
		return "dshow"
	default:
		return "v4l2"
	}
}

func (d *FFmpegDevice) args() []string {
	format := d.Format
	if format == "" {
		format = DefaultInputFormat()
	}
	args := []string{"-hide_banner", "-loglevel", "error", "-f", format}
	if d.Width > 0 && d.Height > 0 {
		args = append(args, "-video_size", fmt.Sprintf("%dx%d", d.Width, d.Height))
	}
	args = append(args, "-i", d.Input, "-an", "-f", "mjpeg", "-q:v", "3", "pipe:1")
	return args
}

// Open starts ffmpeg and waits until the first frame arrives.
func (d *FFmpegDevice) Open(ctx context.Context) (Stream, error) {
	if d.Input == "" {
		return nil, errors.New("no camera input configured")
	}
	binary := d.Binary
	if binary == "" {
		binary = "ffmpeg"
	}

	// Not CommandContext: the stream outlives the ctx passed to Open.
	cmd := exec.Command(binary, d.args()...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open ffmpeg stdout: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	log.Debug().Str("binary", binary).Strs("args", d.args()).Msg("ffmpeg camera process started")

	s := newFrameStream(nil)
	s.release = func() error {
		_ = cmd.Process.Kill()
		// Reads from stdout must finish before Wait closes the pipe.
		<-s.done
		_ = cmd.Wait()
		return nil
	}
	go func() {
		s.finish(splitMJPEG(stdout, s.publish))
	}()

	waitCtx, cancel := context.WithTimeout(ctx, firstFrameTimeout)
	defer cancel()
	if _, err := s.Frame(waitCtx); err != nil {
		// stderr is complete once Stop has waited for the process.
		s.Stop()
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w (ffmpeg: %s)", err, msg)
		}
		return nil, err
	}
	return s, nil
}

// frameStream keeps the latest complete frame from a producer goroutine.
type frameStream struct {
	mu        sync.Mutex
	latest    []byte
	err       error
	ready     chan struct{} // closed on first frame
	done      chan struct{} // closed when the producer ends
	readyOnce sync.Once
	doneOnce  sync.Once
	stopOnce  sync.Once
	release   func() error
}

func newFrameStream(release func() error) *frameStream {
	return &frameStream{
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
		release: release,
	}
}

func (s *frameStream) publish(frame []byte) {
	s.mu.Lock()
	s.latest = frame
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })
}

func (s *frameStream) finish(err error) {
	s.mu.Lock()
	if err == nil {
		err = io.EOF
	}
	s.err = err
	s.mu.Unlock()
	s.doneOnce.Do(func() { close(s.done) })
}

// Frame returns a copy of the latest frame, waiting for the first one.
func (s *frameStream) Frame(ctx context.Context) ([]byte, error) {
	select {
	case <-s.ready:
	case <-s.done:
		// The producer may have published before exiting.
		select {
		case <-s.ready:
		default:
			s.mu.Lock()
			err := s.err
			s.mu.Unlock()
			return nil, fmt.Errorf("stream ended before first frame: %w", err)
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.latest...), nil
}

// Stop releases the device once.
func (s *frameStream) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		if s.release != nil {
			err = s.release()
		}
	})
	return err
}

// splitMJPEG cuts a concatenated JPEG stream into frames on SOI/EOI markers
// and hands each complete frame to emit.
func splitMJPEG(r io.Reader, emit func([]byte)) error {
	br := bufio.NewReaderSize(r, 64*1024)
	var (
		frame   []byte
		inFrame bool
		prev    byte
	)
	for {
		b, err := br.ReadByte()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if !inFrame {
			if prev == 0xFF && b == 0xD8 {
				inFrame = true
				frame = []byte{0xFF, 0xD8}
			}
		} else {
			frame = append(frame, b)
			if prev == 0xFF && b == 0xD9 {
				emit(frame)
				frame = nil
				inFrame = false
				b = 0
			}
		}
		prev = b
	}
}
