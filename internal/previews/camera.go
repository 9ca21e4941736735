package previews

import (
	"context"
	"image"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/loomline/designvault/internal/canvas"
	pkgerrors "github.com/loomline/designvault/pkg/errors"
)

// PushCamera grants capture streams whose frames are uploaded by the client.
// A camera holds at most one live stream; granting a new one stops the old.
type PushCamera struct {
	mu      sync.Mutex
	current *pushStream
}

// NewPushCamera returns a camera with no active stream.
func NewPushCamera() *PushCamera {
	return &PushCamera{}
}

func (c *PushCamera) GetUserMedia(ctx context.Context, constraints canvas.Constraints) (canvas.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		_ = c.current.Stop()
	}
	c.current = &pushStream{constraints: constraints}
	return c.current, nil
}

// Push replaces the live stream's frame. Frames larger than the granted
// resolution are downscaled to fit it.
func (c *PushCamera) Push(frame image.Image) error {
	if frame == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "frame required")
	}
	c.mu.Lock()
	stream := c.current
	c.mu.Unlock()
	if stream == nil || !stream.Live() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "webcam is not running")
	}
	return stream.push(frame)
}

// Live reports whether the camera has a running stream.
func (c *PushCamera) Live() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil && c.current.Live()
}

type pushStream struct {
	constraints canvas.Constraints

	mu      sync.Mutex
	frame   image.Image
	stopped bool
}

func (s *pushStream) push(frame image.Image) error {
	b := frame.Bounds()
	if s.constraints.Width > 0 && s.constraints.Height > 0 &&
		(b.Dx() > s.constraints.Width || b.Dy() > s.constraints.Height) {
		frame = imaging.Fit(frame, s.constraints.Width, s.constraints.Height, imaging.Linear)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "webcam is not running")
	}
	s.frame = frame
	return nil
}

func (s *pushStream) Frame() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

func (s *pushStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.frame = nil
	return nil
}

func (s *pushStream) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.stopped
}
