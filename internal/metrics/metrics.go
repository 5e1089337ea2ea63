// Package metrics provides Prometheus metrics for the frame bridge.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "usbdisplay"

// Acquisition failure reasons.
const (
	ReasonNotReady = "not_ready"
	ReasonCapture  = "capture"
	ReasonSink     = "sink"
)

var (
	ticks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "bridge",
		Name:      "ticks_total",
		Help:      "Reactor ticks executed",
	})

	framesForwarded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "bridge",
		Name:      "frames_forwarded_total",
		Help:      "Frames handed to the sink",
	})

	acquireFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "bridge",
		Name:      "acquire_failures_total",
		Help:      "Ticks that produced no frame",
	}, []string{"reason"})

	dirtyRects = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "vdisplay",
		Name:      "dirty_rects",
		Help:      "Dirty rectangles reported per grab",
		Buckets:   []float64{0, 1, 2, 4, 8, 16},
	})

	attachmentState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "adapter",
		Name:      "attachment_state",
		Help:      "Attachment state (0 absent, 1 attached, 2 streaming, 3 detached)",
	})

	sessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "bridge",
		Name:      "sessions_started_total",
		Help:      "Streaming sessions started",
	})

	sessionsStopped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "bridge",
		Name:      "sessions_stopped_total",
		Help:      "Streaming sessions stopped",
	}, []string{"reason"})

	// Local copy for the status API.
	snap   Snapshot
	snapMu sync.RWMutex
)

// Snapshot holds current metric values.
type Snapshot struct {
	Ticks           uint64            `json:"ticks"`
	FramesForwarded uint64            `json:"frames_forwarded"`
	AcquireFailures map[string]uint64 `json:"acquire_failures,omitempty"`
	LastDirtyRects  int               `json:"last_dirty_rects"`
	AttachmentState int               `json:"attachment_state"`
	SessionsStarted uint64            `json:"sessions_started"`
	SessionsStopped uint64            `json:"sessions_stopped"`
}

// IncTicks counts one reactor tick.
func IncTicks() {
	ticks.Inc()
	update(func(s *Snapshot) { s.Ticks++ })
}

// IncFramesForwarded counts one frame handed to the sink.
func IncFramesForwarded() {
	framesForwarded.Inc()
	update(func(s *Snapshot) { s.FramesForwarded++ })
}

// IncAcquireFailure counts one tick without a frame.
func IncAcquireFailure(reason string) {
	acquireFailures.WithLabelValues(reason).Inc()
	update(func(s *Snapshot) {
		if s.AcquireFailures == nil {
			s.AcquireFailures = make(map[string]uint64)
		}
		s.AcquireFailures[reason]++
	})
}

// ObserveDirtyRects records the rectangle count of one grab.
func ObserveDirtyRects(n int) {
	dirtyRects.Observe(float64(n))
	update(func(s *Snapshot) { s.LastDirtyRects = n })
}

// SetAttachmentState records the attachment state ordinal.
func SetAttachmentState(state int) {
	attachmentState.Set(float64(state))
	update(func(s *Snapshot) { s.AttachmentState = state })
}

// IncSessionsStarted counts one session start.
func IncSessionsStarted() {
	sessionsStarted.Inc()
	update(func(s *Snapshot) { s.SessionsStarted++ })
}

// IncSessionsStopped counts one session stop.
func IncSessionsStopped(reason string) {
	sessionsStopped.WithLabelValues(reason).Inc()
	update(func(s *Snapshot) { s.SessionsStopped++ })
}

// Get returns a copy of the current values.
func Get() Snapshot {
	snapMu.RLock()
	defer snapMu.RUnlock()
	dup := snap
	if snap.AcquireFailures != nil {
		dup.AcquireFailures = make(map[string]uint64, len(snap.AcquireFailures))
		for k, v := range snap.AcquireFailures {
			dup.AcquireFailures[k] = v
		}
	}
	return dup
}

// HTTPHandler returns the Prometheus metrics HTTP handler.
func HTTPHandler() http.Handler {
	return promhttp.Handler()
}

func update(fn func(*Snapshot)) {
	snapMu.Lock()
	defer snapMu.Unlock()
	fn(&snap)
}
