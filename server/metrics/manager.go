package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Frame outcomes for CounterFrames.
const (
	OutcomeAnalyzed = "analyzed"
	OutcomeNoPose   = "no_pose"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

type Manager struct {
	// counters
	CounterRequests      *prometheus.CounterVec
	CounterFrames        *prometheus.CounterVec
	CounterFeedbackItems *prometheus.CounterVec
	CounterReps          prometheus.Counter
	CounterCaptureErrors *prometheus.CounterVec

	// gauges
	GaugeActiveSessions prometheus.Gauge

	// histograms
	HistEstimateDuration prometheus.Histogram
	HistFrameDuration    prometheus.Histogram
	HistScore            prometheus.Histogram
}

func NewTestManager() *Manager {
	return NewManager("pose_coach", "test_server", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("pose_coach", "test_server", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterRequests := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request",
		Help:      "The total number of incoming requests",
	}, []string{"method", "status"})
	counterFrames := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "frames",
		Help:      "The total number of live frames by outcome",
	}, []string{"outcome"})
	counterFeedbackItems := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "feedback_items",
		Help:      "The total number of feedback items by type",
	}, []string{"type"})
	counterReps := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "repetitions",
		Help:      "The total number of completed repetitions",
	})
	counterCaptureErrors := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "capture_errors",
		Help:      "The total number of camera failures by code",
	}, []string{"code"})

	gaugeActiveSessions := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "active_sessions",
		Help:      "Current number of tracking sessions with a live camera",
	})

	histEstimateDuration := factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Buckets: []float64{
				0.001, 0.0025, 0.005, 0.01, 0.015, 0.02,
				0.025, 0.033, 0.05, 0.1, 0.25, 1,
			},
			Name: "estimate_duration_seconds",
			Help: "Duration of pose estimation per frame in seconds",
		},
	)
	histFrameDuration := factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Buckets: []float64{
				0.001, 0.0025, 0.005, 0.01, 0.015, 0.02,
				0.025, 0.033, 0.05, 0.1, 0.25, 1,
			},
			Name: "frame_duration_seconds",
			Help: "Duration of a full live frame cycle in seconds",
		},
	)
	histScore := factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
			Name:      "form_score",
			Help:      "Distribution of defined overall form scores",
		},
	)

	return &Manager{
		CounterRequests:      counterRequests,
		CounterFrames:        counterFrames,
		CounterFeedbackItems: counterFeedbackItems,
		CounterReps:          counterReps,
		CounterCaptureErrors: counterCaptureErrors,
		GaugeActiveSessions:  gaugeActiveSessions,
		HistEstimateDuration: histEstimateDuration,
		HistFrameDuration:    histFrameDuration,
		HistScore:            histScore,
	}
}
