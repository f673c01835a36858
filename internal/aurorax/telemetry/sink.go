package telemetry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aurora-x/aurora-x/internal/aurorax"
)

// StepSample is one row of the telemetry JSONL stream (spec §6).
type StepSample struct {
	Step       int     `json:"step"`
	Have       int     `json:"have"`
	Need       int     `json:"need"`
	Mode       string  `json:"mode"`
	Tries      int     `json:"tries"`
	Successes  int     `json:"successes"`
	Reward     float64 `json:"reward"`
	SNRRF      float64 `json:"snr_rf"`
	SNRIR      float64 `json:"snr_ir"`
	SNRBS      float64 `json:"snr_bs"`
	SOCSrc     float64 `json:"soc_src"`
	DutyLeft   float64 `json:"duty_left"`
	ElapsedS   float64 `json:"elapsed_s"`
}

// HealthEvent is one interactive-mode per-class status line (spec §6).
type HealthEvent struct {
	Type   string  `json:"type"`
	Step   int     `json:"step"`
	Class  string  `json:"class"`
	Cov    float64 `json:"cov"`
	Fail   float64 `json:"fail"`
	GS     int     `json:"gs"`
	BS     int     `json:"bs"`
	Safety string  `json:"safety"`
	Mode   string  `json:"mode"`
}

// round3 rounds a float to 3 decimal places (halves away from zero), per
// the JSONL format.
func round3(v float64) float64 {
	const scale = 1000.0
	r := float64(int64(v*scale+0.5)) / scale
	if v < 0 {
		r = float64(int64(v*scale-0.5)) / scale
	}
	return r
}

// Metrics is the Prometheus surface the engine exposes at /metrics.
type Metrics struct {
	Have     prometheus.Gauge
	Need     prometheus.Gauge
	SOC      prometheus.Gauge
	DutyLeft prometheus.Gauge
	Reward   prometheus.Gauge
	Steps    prometheus.Counter
}

// NewMetrics registers the engine's gauges/counters on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Have:     prometheus.NewGauge(prometheus.GaugeOpts{Name: "aurorax_symbols_have", Help: "symbols received for the active token"}),
		Need:     prometheus.NewGauge(prometheus.GaugeOpts{Name: "aurorax_symbols_need", Help: "symbols required to decode the active token"}),
		SOC:      prometheus.NewGauge(prometheus.GaugeOpts{Name: "aurorax_soc_src", Help: "source node state of charge"}),
		DutyLeft: prometheus.NewGauge(prometheus.GaugeOpts{Name: "aurorax_duty_left", Help: "fraction of duty-cycle budget remaining"}),
		Reward:   prometheus.NewGauge(prometheus.GaugeOpts{Name: "aurorax_bandit_reward", Help: "most recent bandit reward"}),
		Steps:    prometheus.NewCounter(prometheus.CounterOpts{Name: "aurorax_steps_total", Help: "engine steps executed"}),
	}
	reg.MustRegister(m.Have, m.Need, m.SOC, m.DutyLeft, m.Reward, m.Steps)
	return m
}

// Observe folds one StepSample's gauges into the registered metrics.
func (m *Metrics) Observe(s StepSample) {
	m.Have.Set(float64(s.Have))
	m.Need.Set(float64(s.Need))
	m.SOC.Set(s.SOCSrc)
	m.DutyLeft.Set(s.DutyLeft)
	m.Reward.Set(s.Reward)
	m.Steps.Inc()
}

// Sink appends StepSamples to a JSONL file and, when interactive is set,
// echoes flushed HealthEvents on stdout.
type Sink struct {
	mu          sync.Mutex
	file        *os.File
	writer      *bufio.Writer
	interactive bool
	metrics     *Metrics
	logger      *slog.Logger
}

// NewSink opens (creating/truncating) the JSONL path from
// $AURORA_TELEMETRY_PATH, defaulting to "aurora_telemetry.jsonl" (spec §6).
func NewSink(interactive bool, metrics *Metrics, logger *slog.Logger) (*Sink, error) {
	path := os.Getenv("AURORA_TELEMETRY_PATH")
	if path == "" {
		path = "aurora_telemetry.jsonl"
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, aurorax.Wrap(err, "open telemetry sink")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		file:        f,
		writer:      bufio.NewWriter(f),
		interactive: interactive,
		metrics:     metrics,
		logger:      logger.With("component", "telemetry"),
	}, nil
}

// WriteStep appends one rounded JSONL record and updates Prometheus gauges.
func (s *Sink) WriteStep(sample StepSample) error {
	sample.Reward = round3(sample.Reward)
	sample.SNRRF = round3(sample.SNRRF)
	sample.SNRIR = round3(sample.SNRIR)
	sample.SNRBS = round3(sample.SNRBS)
	sample.SOCSrc = round3(sample.SOCSrc)
	sample.DutyLeft = round3(sample.DutyLeft)
	sample.ElapsedS = round3(sample.ElapsedS)

	s.mu.Lock()
	defer s.mu.Unlock()

	enc, err := json.Marshal(sample)
	if err != nil {
		return aurorax.Wrap(err, "marshal telemetry sample")
	}
	if _, err := s.writer.Write(enc); err != nil {
		return aurorax.Wrap(err, "write telemetry sample")
	}
	if err := s.writer.WriteByte('\n'); err != nil {
		return aurorax.Wrap(err, "write telemetry sample")
	}
	if err := s.writer.Flush(); err != nil {
		return aurorax.Wrap(err, "flush telemetry sink")
	}

	if s.metrics != nil {
		s.metrics.Observe(sample)
	}
	return nil
}

// EmitHealth prints a flushed health-event line to stdout when the sink is
// running in interactive mode; a no-op otherwise.
func (s *Sink) EmitHealth(ev HealthEvent) {
	if !s.interactive {
		return
	}
	ev.Type = "health"
	enc, err := json.Marshal(ev)
	if err != nil {
		s.logger.Warn("marshal health event failed", "err", err)
		return
	}
	fmt.Println(string(enc))
}

// Close flushes and closes the underlying file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writer.Flush(); err != nil {
		return aurorax.Wrap(err, "flush telemetry sink on close")
	}
	return s.file.Close()
}
