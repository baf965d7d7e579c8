// Package stats exposes the ambient observability surface for the
// consensus stack: message counters, timer counters, per-Replica commit
// counts, and per-Leader ballot gauges. It is not part of the protocol -
// every Recorder method is fire-and-forget and callers default to Noop
// when no collector is wired in.
//
// Grounded in Rain168-server/stats/stats.go, which wires a
// *network.ConnectionManager into a Prometheus-backed publisher; the
// disk/topology-specific machinery there (configPublisher, capnproto
// encoding) has no equivalent in this system, so only the metrics-export
// shape survives.
package stats

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder receives protocol-adjacent events for export. All methods
// must be safe to call from the Network's single event-loop goroutine;
// implementations that export (e.g. Prometheus counters) are safe for
// that single-writer usage by construction.
type Recorder interface {
	MessageSent(tag string)
	MessageDropped(tag string)
	MessageDelivered(tag string)
	TimerScheduled()
	TimerFired()
	TimerCancelled()
	DecisionCommitted(replica string, slot int)
	LeaderBallot(leader string, ballotNum int)
	InvokeLatencySeconds(seconds float64)
	ScoutLatencySeconds(seconds float64)
	ScoutPreempted()
	CommanderLatencySeconds(seconds float64)
	CommanderPreempted()
}

// Noop discards every event. It is the default Recorder so the core
// protocol packages never require a Prometheus registry to function.
type Noop struct{}

func (Noop) MessageSent(string)              {}
func (Noop) MessageDropped(string)           {}
func (Noop) MessageDelivered(string)         {}
func (Noop) TimerScheduled()                 {}
func (Noop) TimerFired()                     {}
func (Noop) TimerCancelled()                 {}
func (Noop) DecisionCommitted(string, int)   {}
func (Noop) LeaderBallot(string, int)        {}
func (Noop) InvokeLatencySeconds(float64)    {}
func (Noop) ScoutLatencySeconds(float64)     {}
func (Noop) ScoutPreempted()                 {}
func (Noop) CommanderLatencySeconds(float64) {}
func (Noop) CommanderPreempted()             {}

var _ Recorder = Noop{}

// Prometheus is the production Recorder, grounded in the teacher's use
// of github.com/prometheus/client_golang/prometheus for its stats
// publisher.
type Prometheus struct {
	messagesSent       *prometheus.CounterVec
	messagesDropped    *prometheus.CounterVec
	messagesDelivered  *prometheus.CounterVec
	timersScheduled    prometheus.Counter
	timersFired        prometheus.Counter
	timersCancelled    prometheus.Counter
	decisionsCommitted *prometheus.CounterVec
	leaderBallot       *prometheus.GaugeVec
	invokeLatency      prometheus.Histogram
	scoutLatency       prometheus.Histogram
	scoutPreempted     prometheus.Counter
	commanderLatency   prometheus.Histogram
	commanderPreempted prometheus.Counter
}

// NewPrometheus registers a fresh set of collectors under namespace and
// returns a Recorder backed by them.
func NewPrometheus(namespace string) *Prometheus {
	p := &Prometheus{
		messagesSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_sent_total",
			Help: "Messages handed to the transport, by tag.",
		}, []string{"tag"}),
		messagesDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_dropped_total",
			Help: "Messages dropped by the simulated transport, by tag.",
		}, []string{"tag"}),
		messagesDelivered: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_delivered_total",
			Help: "Messages delivered to a node, by tag.",
		}, []string{"tag"}),
		timersScheduled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "timers_scheduled_total",
		}),
		timersFired: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "timers_fired_total",
		}),
		timersCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "timers_cancelled_total",
		}),
		decisionsCommitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "decisions_committed_total",
			Help: "Slots committed by a Replica.",
		}, []string{"replica"}),
		leaderBallot: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "leader_ballot_num",
			Help: "Current ballot number owned by a Leader.",
		}, []string{"leader"}),
		invokeLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "invoke_latency_seconds",
			Help:    "Member.Invoke round-trip latency.",
			Buckets: prometheus.DefBuckets,
		}),
		scoutLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "scout_latency_seconds",
			Help:    "Time from a Scout's first PREPARE to reaching quorum.",
			Buckets: prometheus.DefBuckets,
		}),
		scoutPreempted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "scout_preempted_total",
			Help: "Scouts that observed a higher ballot before reaching quorum.",
		}),
		commanderLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "commander_latency_seconds",
			Help:    "Time from a Commander's first ACCEPT to reaching quorum.",
			Buckets: prometheus.DefBuckets,
		}),
		commanderPreempted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "commander_preempted_total",
			Help: "Commanders that observed a higher ballot before reaching quorum.",
		}),
	}
	return p
}

func (p *Prometheus) MessageSent(tag string)      { p.messagesSent.WithLabelValues(tag).Inc() }
func (p *Prometheus) MessageDropped(tag string)   { p.messagesDropped.WithLabelValues(tag).Inc() }
func (p *Prometheus) MessageDelivered(tag string) { p.messagesDelivered.WithLabelValues(tag).Inc() }
func (p *Prometheus) TimerScheduled()             { p.timersScheduled.Inc() }
func (p *Prometheus) TimerFired()                 { p.timersFired.Inc() }
func (p *Prometheus) TimerCancelled()             { p.timersCancelled.Inc() }
func (p *Prometheus) DecisionCommitted(replica string, slot int) {
	p.decisionsCommitted.WithLabelValues(replica).Inc()
}
func (p *Prometheus) LeaderBallot(leader string, ballotNum int) {
	p.leaderBallot.WithLabelValues(leader).Set(float64(ballotNum))
}
func (p *Prometheus) InvokeLatencySeconds(seconds float64) { p.invokeLatency.Observe(seconds) }
func (p *Prometheus) ScoutLatencySeconds(seconds float64)  { p.scoutLatency.Observe(seconds) }
func (p *Prometheus) ScoutPreempted()                      { p.scoutPreempted.Inc() }
func (p *Prometheus) CommanderLatencySeconds(seconds float64) {
	p.commanderLatency.Observe(seconds)
}
func (p *Prometheus) CommanderPreempted() { p.commanderPreempted.Inc() }

var _ Recorder = (*Prometheus)(nil)

// ServeHTTP mirrors goshawkdb's -prometheusPort flag: expose /metrics on
// a dedicated listener so the demo binary can scrape itself.
func ServeHTTP(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
