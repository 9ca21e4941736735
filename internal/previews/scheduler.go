package previews

import (
	"sync"
	"time"
)

// TickerScheduler paces webcam frames on a server-side surface at a fixed
// rate. Each request fires once after one frame interval.
type TickerScheduler struct {
	interval time.Duration

	mu      sync.Mutex
	pending int
}

// NewTickerScheduler builds a scheduler for the given frames per second.
func NewTickerScheduler(frameRate int) *TickerScheduler {
	if frameRate <= 0 {
		frameRate = 30
	}
	return &TickerScheduler{interval: time.Second / time.Duration(frameRate)}
}

// RequestFrame schedules fn for the next frame. The returned cancel stops a
// request that has not fired yet.
func (t *TickerScheduler) RequestFrame(fn func()) func() {
	var once sync.Once
	done := func() {
		t.mu.Lock()
		t.pending--
		t.mu.Unlock()
	}

	t.mu.Lock()
	t.pending++
	t.mu.Unlock()

	timer := time.AfterFunc(t.interval, func() {
		fired := false
		once.Do(func() {
			done()
			fired = true
		})
		if fired {
			fn()
		}
	})
	return func() {
		if timer.Stop() {
			once.Do(done)
		}
	}
}

// Pending counts scheduled callbacks that have neither fired nor been
// cancelled.
func (t *TickerScheduler) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// Interval is the delay between frames.
func (t *TickerScheduler) Interval() time.Duration {
	return t.interval
}
