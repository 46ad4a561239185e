package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Recorder interface {
	ObserveUpstream(endpoint, outcome string, elapsed time.Duration)
	ObserveSalvaged(n int)
	IncQuotaDecision(action, outcome string)
	IncPersistenceFailure(store string)
	IncCommand(command string)
}

type Gauges struct {
	PremiumUsers func() int
	ChatUsers    func() int
}

type recorder struct {
	upstreamTotal       *prometheus.CounterVec
	upstreamDuration    *prometheus.HistogramVec
	salvagedPieces      prometheus.Counter
	quotaDecisions      *prometheus.CounterVec
	persistenceFailures *prometheus.CounterVec
	commands            *prometheus.CounterVec
}

// NewRecorder registers the bot metrics with reg. A nil reg returns a recorder that does nothing.
func NewRecorder(reg prometheus.Registerer, gauges Gauges) Recorder {
	if reg == nil {
		return noopRecorder{}
	}

	factory := promauto.With(reg)

	r := &recorder{
		upstreamTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "brahmos_upstream_requests_total",
			Help: "Upstream AI API calls by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),

		upstreamDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "brahmos_upstream_duration_seconds",
			Help:    "Upstream AI API call duration in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}, []string{"endpoint"}),

		salvagedPieces: factory.NewCounter(prometheus.CounterOpts{
			Name: "brahmos_stream_salvaged_pieces_total",
			Help: "Stream pieces that were not valid JSON and were kept as raw text",
		}),

		quotaDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "brahmos_quota_decisions_total",
			Help: "Quota checks by action and outcome",
		}, []string{"action", "outcome"}),

		persistenceFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "brahmos_persistence_failures_total",
			Help: "Failed writes of persisted state",
		}, []string{"store"}),

		commands: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "brahmos_commands_total",
			Help: "Handled bot commands",
		}, []string{"command"}),
	}

	if gauges.PremiumUsers != nil {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "brahmos_premium_users",
			Help: "Number of premium users",
		}, func() float64 { return float64(gauges.PremiumUsers()) })
	}

	if gauges.ChatUsers != nil {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "brahmos_chat_mode_users",
			Help: "Users with chat mode enabled since start",
		}, func() float64 { return float64(gauges.ChatUsers()) })
	}

	return r
}

func (r *recorder) ObserveUpstream(endpoint, outcome string, elapsed time.Duration) {
	r.upstreamTotal.WithLabelValues(endpoint, outcome).Inc()
	r.upstreamDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

func (r *recorder) ObserveSalvaged(n int) {
	if n > 0 {
		r.salvagedPieces.Add(float64(n))
	}
}

func (r *recorder) IncQuotaDecision(action, outcome string) {
	r.quotaDecisions.WithLabelValues(action, outcome).Inc()
}

func (r *recorder) IncPersistenceFailure(store string) {
	r.persistenceFailures.WithLabelValues(store).Inc()
}

func (r *recorder) IncCommand(command string) {
	r.commands.WithLabelValues(command).Inc()
}

type noopRecorder struct{}

func (noopRecorder) ObserveUpstream(string, string, time.Duration) {}
func (noopRecorder) ObserveSalvaged(int)                           {}
func (noopRecorder) IncQuotaDecision(string, string)               {}
func (noopRecorder) IncPersistenceFailure(string)                  {}
func (noopRecorder) IncCommand(string)                             {}
