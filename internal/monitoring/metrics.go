package monitoring

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Frame results recorded by Metrics.Frames.
const (
	FrameOK        = "ok"
	FrameReadError = "read_error"
	FrameNoLanes   = "no_lanes"
	FrameError     = "pipeline_error"
)

// Metrics contains the control loop collectors.
type Metrics struct {
	Frames           *prometheus.CounterVec
	LanesDetected    prometheus.Histogram
	SteeringAngle    prometheus.Gauge
	WheelThrottle    *prometheus.GaugeVec
	ProtocolRequests *prometheus.CounterVec
	SchedulerTicks   *prometheus.CounterVec
	CameraResets     prometheus.Counter
}

// NewMetrics builds an unregistered set of collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		Frames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lanekeeper",
				Subsystem: "capture",
				Name:      "frames_total",
				Help:      "Frames handled by the capture callback, by result",
			},
			[]string{"result"},
		),
		LanesDetected: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "lanekeeper",
				Subsystem: "lkas",
				Name:      "lane_sides",
				Help:      "Number of lane sides detected per frame",
				Buckets:   []float64{0, 1, 2},
			},
		),
		SteeringAngle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "lanekeeper",
				Subsystem: "lkas",
				Name:      "steering_angle_degrees",
				Help:      "Last steering angle sent to the drive model",
			},
		),
		WheelThrottle: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "lanekeeper",
				Subsystem: "motor",
				Name:      "throttle",
				Help:      "Current wheel throttle in [-1, 1]",
			},
			[]string{"wheel"},
		),
		ProtocolRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lanekeeper",
				Subsystem: "carproto",
				Name:      "requests_total",
				Help:      "Actuation requests handled by the car server, by status",
			},
			[]string{"status"},
		),
		SchedulerTicks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lanekeeper",
				Subsystem: "scheduler",
				Name:      "ticks_total",
				Help:      "Scheduler callback invocations",
			},
			[]string{"scheduler"},
		),
		CameraResets: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "lanekeeper",
				Subsystem: "camera",
				Name:      "resets_total",
				Help:      "Camera driver resets",
			},
		),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.Frames, m.LanesDetected, m.SteeringAngle, m.WheelThrottle,
		m.ProtocolRequests, m.SchedulerTicks, m.CameraResets,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Default is the process-wide collector set.
var Default = NewMetrics()

var (
	registryOnce sync.Once
	registry     *prometheus.Registry
)

// Registry returns the process registry holding Default plus the Go runtime
// and process collectors.
func Registry() *prometheus.Registry {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		if err := Default.Register(registry); err != nil {
			panic(err)
		}
	})
	return registry
}

// Handler serves the process registry in the prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry(), promhttp.HandlerOpts{})
}
