package metrics

import "github.com/prometheus/client_golang/prometheus"

// PreviewMetrics tracks mounted preview surfaces and their backgrounds.
type PreviewMetrics struct {
	sessions    prometheus.Gauge
	transitions *prometheus.CounterVec
	frames      prometheus.Counter
}

// NewPreviewMetrics registers the preview metrics on the provided registerer.
func NewPreviewMetrics(reg prometheus.Registerer) *PreviewMetrics {
	if reg == nil {
		return &PreviewMetrics{}
	}
	sessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "preview_sessions_active",
		Help: "Preview surfaces currently mounted.",
	})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "preview_background_transitions_total",
		Help: "Background mode changes by target mode.",
	}, []string{"mode"})
	frames := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "preview_webcam_frames_total",
		Help: "Webcam frames composited onto preview surfaces.",
	})
	reg.MustRegister(sessions, transitions, frames)
	return &PreviewMetrics{sessions: sessions, transitions: transitions, frames: frames}
}

func (m *PreviewMetrics) SessionMounted() {
	if m == nil || m.sessions == nil {
		return
	}
	m.sessions.Inc()
}

func (m *PreviewMetrics) SessionUnmounted() {
	if m == nil || m.sessions == nil {
		return
	}
	m.sessions.Dec()
}

func (m *PreviewMetrics) Transition(mode string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(mode)).Inc()
}

func (m *PreviewMetrics) FrameDrawn() {
	if m == nil || m.frames == nil {
		return
	}
	m.frames.Inc()
}
