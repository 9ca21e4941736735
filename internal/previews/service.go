package previews

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/loomline/designvault/internal/canvas"
	"github.com/loomline/designvault/pkg/config"
	"github.com/loomline/designvault/pkg/enums"
	pkgerrors "github.com/loomline/designvault/pkg/errors"
	"github.com/loomline/designvault/pkg/logger"
	"github.com/loomline/designvault/pkg/metrics"
)

const (
	maxFrameBytes     = 4 << 20
	defaultFrameLimit = 60
	frameWindow       = time.Second
)

// Service hosts preview surfaces for authenticated users.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*SessionView, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*SessionView, error)
	Render(ctx context.Context, userID, id uuid.UUID) (image.Image, error)
	PagePDF(ctx context.Context, userID, id uuid.UUID) ([]byte, int, error)
	Close(ctx context.Context, userID, id uuid.UUID) error

	SetColor(ctx context.Context, userID, id uuid.UUID, color string) (*SessionView, error)
	SetImage(ctx context.Context, userID, id uuid.UUID, input ImageInput) (*SessionView, error)
	StartWebcam(ctx context.Context, userID, id uuid.UUID) (*SessionView, error)
	StopWebcam(ctx context.Context, userID, id uuid.UUID) (*SessionView, error)
	PushFrame(ctx context.Context, userID, id uuid.UUID, input ImageInput) error

	LoadDesign(ctx context.Context, userID, id uuid.UUID, input LoadInput) (*SessionView, error)
	Move(ctx context.Context, userID, id uuid.UUID, x, y float64) (*SessionView, error)
	Scale(ctx context.Context, userID, id uuid.UUID, sx, sy float64) (*SessionView, error)
	NextPage(ctx context.Context, userID, id uuid.UUID) (*SessionView, error)
	PreviousPage(ctx context.Context, userID, id uuid.UUID) (*SessionView, error)

	Reap(ctx context.Context, now time.Time) int
	RunReaper(ctx context.Context, every time.Duration)
	Shutdown(ctx context.Context) error
}

// CreateInput sizes a new surface to its container.
type CreateInput struct {
	Width    int
	Height   int
	Color    string
	ViewMode enums.ViewMode
}

// ImageInput carries an uploaded image.
type ImageInput struct {
	ContentType string
	Size        int64
	Body        io.Reader
}

// LoadInput selects the foreground for a session.
type LoadInput struct {
	DesignNo string
	ViewMode enums.ViewMode
}

// FrameLimiter throttles webcam frame uploads.
type FrameLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// ServiceParams configure the preview service.
type ServiceParams struct {
	Assets     canvas.AssetResolver
	Documents  canvas.DocumentOpener
	Limiter    FrameLimiter
	Logger     *logger.Logger
	Metrics    *metrics.PreviewMetrics
	Canvas     config.CanvasConfig
	FrameLimit int64
	Now        func() time.Time
}

type service struct {
	assets     canvas.AssetResolver
	documents  canvas.DocumentOpener
	limiter    FrameLimiter
	logg       *logger.Logger
	metrics    *metrics.PreviewMetrics
	cfg        config.CanvasConfig
	frameLimit int64
	now        func() time.Time

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
}

// NewService wires preview dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Assets == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "asset resolver required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	frameLimit := params.FrameLimit
	if frameLimit <= 0 {
		frameLimit = defaultFrameLimit
	}
	return &service{
		assets:     params.Assets,
		documents:  params.Documents,
		limiter:    params.Limiter,
		logg:       params.Logger,
		metrics:    params.Metrics,
		cfg:        params.Canvas,
		frameLimit: frameLimit,
		now:        now,
		sessions:   map[uuid.UUID]*session{},
	}, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*SessionView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	if input.Width <= 0 || input.Height <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "width and height must be positive")
	}
	if (s.cfg.MaxSurfaceWidth > 0 && input.Width > s.cfg.MaxSurfaceWidth) ||
		(s.cfg.MaxSurfaceHeight > 0 && input.Height > s.cfg.MaxSurfaceHeight) {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "surface may be at most %dx%d", s.cfg.MaxSurfaceWidth, s.cfg.MaxSurfaceHeight)
	}
	if input.ViewMode == "" {
		input.ViewMode = enums.ViewModeDesign
	}
	if !input.ViewMode.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid view mode")
	}
	if strings.TrimSpace(input.Color) == "" {
		input.Color = s.cfg.FallbackColor
	}

	id := uuid.New()
	now := s.now()
	sess := &session{
		id:        id,
		userID:    userID,
		createdAt: now,
		lastUsed:  now,
		notices:   &noticeLog{logg: s.logg, sessionID: id.String()},
	}
	if err := s.mount(sess, input.Width, input.Height, input.Color, input.ViewMode); err != nil {
		return nil, err
	}

	evicted := s.register(sess)
	ctx = s.logg.WithSessionID(s.logg.WithUserID(ctx, userID.String()), id.String())
	for _, old := range evicted {
		s.unmount(ctx, old)
	}
	s.logg.Info(ctx, fmt.Sprintf("preview mounted %dx%d (%s)", input.Width, input.Height, input.ViewMode))
	return sess.view(), nil
}

func (s *service) Get(ctx context.Context, userID, id uuid.UUID) (*SessionView, error) {
	sess, err := s.lookup(userID, id)
	if err != nil {
		return nil, err
	}
	return sess.view(), nil
}

func (s *service) Render(ctx context.Context, userID, id uuid.UUID) (image.Image, error) {
	sess, err := s.lookup(userID, id)
	if err != nil {
		return nil, err
	}
	return sess.current().Render(), nil
}

// PagePDF returns the worksheet page the session is showing.
func (s *service) PagePDF(ctx context.Context, userID, id uuid.UUID) ([]byte, int, error) {
	sess, err := s.lookup(userID, id)
	if err != nil {
		return nil, 0, err
	}
	return sess.current().CurrentPagePDF()
}

func (s *service) Close(ctx context.Context, userID, id uuid.UUID) error {
	sess, err := s.lookup(userID, id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return s.unmount(s.logg.WithSessionID(ctx, id.String()), sess)
}

func (s *service) SetColor(ctx context.Context, userID, id uuid.UUID, color string) (*SessionView, error) {
	return s.apply(userID, id, func(surface *canvas.Surface) error {
		return surface.SetColor(color)
	})
}

func (s *service) SetImage(ctx context.Context, userID, id uuid.UUID, input ImageInput) (*SessionView, error) {
	return s.apply(userID, id, func(surface *canvas.Surface) error {
		return surface.SetImage(ctx, input.ContentType, input.Size, input.Body)
	})
}

func (s *service) StartWebcam(ctx context.Context, userID, id uuid.UUID) (*SessionView, error) {
	return s.apply(userID, id, func(surface *canvas.Surface) error {
		return surface.StartWebcam(ctx)
	})
}

func (s *service) StopWebcam(ctx context.Context, userID, id uuid.UUID) (*SessionView, error) {
	return s.apply(userID, id, func(surface *canvas.Surface) error {
		return surface.StopWebcam()
	})
}

func (s *service) PushFrame(ctx context.Context, userID, id uuid.UUID, input ImageInput) error {
	sess, err := s.lookup(userID, id)
	if err != nil {
		return err
	}
	if s.limiter != nil {
		allowed, _, err := s.limiter.FixedWindowAllow(ctx, "preview-frames:"+id.String(), s.frameLimit, frameWindow)
		if err != nil {
			s.logg.Warn(s.logg.WithSessionID(ctx, id.String()), fmt.Sprintf("frame limiter unavailable: %v", err))
		} else if !allowed {
			return pkgerrors.New(pkgerrors.CodeRateLimit, "too many webcam frames")
		}
	}
	contentType := strings.ToLower(strings.TrimSpace(input.ContentType))
	if contentType != "image/jpeg" && contentType != "image/png" {
		return pkgerrors.New(pkgerrors.CodeUnsupported, "frames must be image/jpeg or image/png")
	}
	if input.Body == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "frame body required")
	}
	data, err := io.ReadAll(io.LimitReader(input.Body, maxFrameBytes+1))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "could not read frame")
	}
	if len(data) > maxFrameBytes {
		return pkgerrors.New(pkgerrors.CodeTooLarge, "frame too large")
	}
	frame, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "could not decode frame")
	}
	sess.mu.Lock()
	camera := sess.camera
	sess.mu.Unlock()
	return camera.Push(frame)
}

// LoadDesign loads the selected foreground. A change of view mode re-mounts
// the surface first, keeping its size and colour.
func (s *service) LoadDesign(ctx context.Context, userID, id uuid.UUID, input LoadInput) (*SessionView, error) {
	designNo := strings.TrimSpace(input.DesignNo)
	if designNo == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "design number required")
	}
	sess, err := s.lookup(userID, id)
	if err != nil {
		return nil, err
	}
	surface := sess.current()
	mode := input.ViewMode
	if mode == "" {
		mode = surface.ViewMode()
	}
	if !mode.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid view mode")
	}

	if mode != surface.ViewMode() {
		st := surface.State()
		ctx = s.logg.WithSessionID(ctx, id.String())
		if err := s.unmountSurface(ctx, surface); err != nil {
			s.logg.Warn(ctx, fmt.Sprintf("preview release during remount: %v", err))
		}
		if err := s.mount(sess, int(st.Width), int(st.Height), st.Color, mode); err != nil {
			return nil, err
		}
		surface = sess.current()
	}

	if mode == enums.ViewModeWorksheet {
		err = surface.LoadWorksheet(ctx, designNo)
	} else {
		err = surface.LoadDesign(ctx, designNo)
	}
	if err != nil {
		return nil, err
	}
	return sess.view(), nil
}

func (s *service) Move(ctx context.Context, userID, id uuid.UUID, x, y float64) (*SessionView, error) {
	return s.apply(userID, id, func(surface *canvas.Surface) error {
		_, err := surface.Move(x, y)
		return err
	})
}

func (s *service) Scale(ctx context.Context, userID, id uuid.UUID, sx, sy float64) (*SessionView, error) {
	return s.apply(userID, id, func(surface *canvas.Surface) error {
		_, err := surface.Scale(sx, sy)
		return err
	})
}

func (s *service) NextPage(ctx context.Context, userID, id uuid.UUID) (*SessionView, error) {
	return s.apply(userID, id, func(surface *canvas.Surface) error {
		surface.NextPage()
		return nil
	})
}

func (s *service) PreviousPage(ctx context.Context, userID, id uuid.UUID) (*SessionView, error) {
	return s.apply(userID, id, func(surface *canvas.Surface) error {
		surface.PreviousPage()
		return nil
	})
}

// Reap unmounts sessions idle for longer than the configured TTL.
func (s *service) Reap(ctx context.Context, now time.Time) int {
	ttl := s.cfg.SessionIdleTTL
	if ttl <= 0 {
		return 0
	}
	var idle []*session
	s.mu.Lock()
	for id, sess := range s.sessions {
		if now.Sub(sess.idleSince()) > ttl {
			delete(s.sessions, id)
			idle = append(idle, sess)
		}
	}
	s.mu.Unlock()

	for _, sess := range idle {
		s.unmount(s.logg.WithSessionID(ctx, sess.id.String()), sess)
	}
	if len(idle) > 0 {
		s.logg.Info(ctx, fmt.Sprintf("reaped %d idle preview sessions", len(idle)))
	}
	return len(idle)
}

// RunReaper reaps idle sessions until ctx is cancelled.
func (s *service) RunReaper(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Reap(ctx, s.now())
		}
	}
}

// Shutdown unmounts every session.
func (s *service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	all := make([]*session, 0, len(s.sessions))
	for id, sess := range s.sessions {
		all = append(all, sess)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	var err error
	for _, sess := range all {
		err = multierr.Append(err, s.unmount(ctx, sess))
	}
	return err
}

func (s *service) apply(userID, id uuid.UUID, op func(*canvas.Surface) error) (*SessionView, error) {
	sess, err := s.lookup(userID, id)
	if err != nil {
		return nil, err
	}
	if err := op(sess.current()); err != nil {
		return nil, err
	}
	return sess.view(), nil
}

// mount attaches a fresh surface with its own camera and frame clock
// onto sess.
func (s *service) mount(sess *session, width, height int, color string, mode enums.ViewMode) error {
	camera := NewPushCamera()
	frames := NewTickerScheduler(s.cfg.FrameRate)
	surface, err := canvas.Mount(canvas.Options{
		Width:              width,
		Height:             height,
		Color:              color,
		ViewMode:           mode,
		PreviewBox:         s.cfg.PreviewBox,
		MinObjectSize:      s.cfg.MinObjectSize,
		MaxBackgroundBytes: s.cfg.MaxBackgroundBytes(),
		Webcam:             canvas.Constraints{Width: s.cfg.WebcamWidth, Height: s.cfg.WebcamHeight},
		Assets:             s.assets,
		Media:              camera,
		Frames:             frames,
		Documents:          s.documents,
		Notifier:           sess.notices,
		Metrics:            s.metrics,
	})
	if err != nil {
		return err
	}
	sess.mu.Lock()
	sess.surface = surface
	sess.camera = camera
	sess.frames = frames
	sess.mu.Unlock()
	s.metrics.SessionMounted()
	return nil
}

// register adds sess and evicts the user's least recently used sessions past
// the per-user limit.
func (s *service) register(sess *session) []*session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.id] = sess

	limit := s.cfg.SessionsPerUser
	if limit <= 0 {
		return nil
	}
	var owned []*session
	for _, candidate := range s.sessions {
		if candidate.userID == sess.userID {
			owned = append(owned, candidate)
		}
	}
	if len(owned) <= limit {
		return nil
	}
	sort.Slice(owned, func(i, j int) bool {
		return owned[i].idleSince().Before(owned[j].idleSince())
	})
	var evicted []*session
	for _, candidate := range owned {
		if len(owned)-len(evicted) <= limit {
			break
		}
		if candidate.id == sess.id {
			continue
		}
		delete(s.sessions, candidate.id)
		evicted = append(evicted, candidate)
	}
	return evicted
}

func (s *service) lookup(userID, id uuid.UUID) (*session, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "preview id required")
	}
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok || sess.userID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "preview not found")
	}
	sess.touch(s.now())
	return sess, nil
}

func (s *service) unmount(ctx context.Context, sess *session) error {
	err := s.unmountSurface(ctx, sess.current())
	if err != nil {
		s.logg.Error(ctx, "preview release failed", err)
	} else {
		s.logg.Info(ctx, "preview unmounted")
	}
	return err
}

func (s *service) unmountSurface(ctx context.Context, surface *canvas.Surface) error {
	if surface == nil {
		return nil
	}
	if surface.State().Unmounted {
		return nil
	}
	err := surface.Unmount()
	s.metrics.SessionUnmounted()
	return err
}
