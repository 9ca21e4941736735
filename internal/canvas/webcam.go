package canvas

import (
	"context"

	pkgerrors "github.com/loomline/designvault/pkg/errors"
)

// StartWebcam switches the background to a live camera stream. Any active
// stream is released before a new one is requested. If the request fails
// the surface falls back to its colour.
func (s *Surface) StartWebcam(ctx context.Context) error {
	s.mu.Lock()
	if err := s.mountedLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.opts.Media == nil {
		s.mu.Unlock()
		return s.reject(ctx, pkgerrors.New(pkgerrors.CodeDependency, "no media devices available"))
	}
	var releaseErr error
	if s.background.Mode() == ModeWebcam {
		releaseErr = s.transitionLocked(ColorBackground{Color: s.color})
	}
	s.webcamSeq++
	seq := s.webcamSeq
	constraints := s.opts.Webcam
	s.mu.Unlock()

	stream, err := s.opts.Media.GetUserMedia(ctx, constraints)

	s.mu.Lock()
	if s.unmounted || seq != s.webcamSeq {
		s.mu.Unlock()
		if stream != nil {
			_ = stream.Stop()
		}
		return pkgerrors.New(pkgerrors.CodeStateConflict, "webcam start superseded")
	}
	if err != nil || stream == nil {
		_ = s.transitionLocked(ColorBackground{Color: s.color})
		s.mu.Unlock()
		if err == nil {
			err = pkgerrors.New(pkgerrors.CodeDependency, "no stream granted")
		}
		return s.reject(ctx, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "could not access webcam"))
	}
	transitionErr := s.transitionLocked(WebcamBackground{Stream: stream})
	s.mu.Unlock()

	if releaseErr != nil || transitionErr != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, firstErr(releaseErr, transitionErr), "previous background release failed")
	}
	return nil
}

// StopWebcam stops the stream and its frame loop and reverts to the colour
// background. Calling it without a stream is a no-op beyond the repaint.
func (s *Surface) StopWebcam() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mountedLocked(); err != nil {
		return err
	}
	s.webcamSeq++
	return s.transitionLocked(ColorBackground{Color: s.color})
}

// FramesDrawn counts webcam frames composited since mount.
func (s *Surface) FramesDrawn() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func (s *Surface) scheduleFrameLocked() {
	if s.cancelFrame != nil {
		return
	}
	seq := s.frameSeq
	s.cancelFrame = s.opts.Frames.RequestFrame(func() { s.frameTick(seq) })
}

// frameTick paints one webcam frame and schedules the next. It re-reads the
// background each time, so a mode change stops the loop within one frame.
func (s *Surface) frameTick(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.frameSeq {
		return
	}
	s.cancelFrame = nil
	if s.unmounted || s.background.Mode() != ModeWebcam {
		return
	}
	s.paintLocked()
	s.frames++
	s.opts.Metrics.FrameDrawn()
	s.scheduleFrameLocked()
}

func (s *Surface) cancelFrameLocked() {
	s.frameSeq++
	if s.cancelFrame != nil {
		s.cancelFrame()
		s.cancelFrame = nil
	}
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
