package previews

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loomline/designvault/internal/canvas"
	pkgerrors "github.com/loomline/designvault/pkg/errors"
	"github.com/loomline/designvault/pkg/logger"
)

const maxNotices = 5

// Notice is a user-visible failure raised by a surface.
type Notice struct {
	Code    pkgerrors.Code `json:"code"`
	Message string         `json:"message"`
	At      time.Time      `json:"at"`
}

// SessionView is what clients see of a preview session.
type SessionView struct {
	ID        uuid.UUID    `json:"id"`
	State     canvas.State `json:"state"`
	Notices   []Notice     `json:"notices,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

type session struct {
	id        uuid.UUID
	userID    uuid.UUID
	createdAt time.Time

	mu       sync.Mutex
	surface  *canvas.Surface
	camera   *PushCamera
	frames   *TickerScheduler
	notices  *noticeLog
	lastUsed time.Time
}

func (s *session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

func (s *session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

func (s *session) current() *canvas.Surface {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surface
}

func (s *session) view() *SessionView {
	surface := s.current()
	return &SessionView{
		ID:        s.id,
		State:     surface.State(),
		Notices:   s.notices.list(),
		CreatedAt: s.createdAt,
	}
}

// noticeLog is the session's notification surface: it logs each failure and
// keeps the most recent ones for the client to display.
type noticeLog struct {
	logg      *logger.Logger
	sessionID string

	mu      sync.Mutex
	notices []Notice
}

func (n *noticeLog) Error(ctx context.Context, err error) {
	if err == nil {
		return
	}
	ctx = n.logg.WithSessionID(ctx, n.sessionID)
	n.logg.Warn(ctx, "preview: "+err.Error())

	notice := Notice{Code: pkgerrors.CodeOf(err), Message: err.Error(), At: time.Now().UTC()}
	if typed := pkgerrors.As(err); typed != nil {
		notice.Message = typed.Message()
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	if len(n.notices) > maxNotices {
		n.notices = n.notices[len(n.notices)-maxNotices:]
	}
}

func (n *noticeLog) list() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.notices) == 0 {
		return nil
	}
	return append([]Notice(nil), n.notices...)
}
