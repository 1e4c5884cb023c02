package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pollbot"

// NewRegistry creates a Prometheus registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler returns an http.Handler that serves Prometheus metrics.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// PollMetrics holds the poll lifecycle metrics.
type PollMetrics struct {
	PollsCreated  prometheus.Counter
	PollsRejected *prometheus.CounterVec
	PollsActive   prometheus.Gauge
	PollsFinished *prometheus.CounterVec
	VotesRecorded *prometheus.CounterVec
	SendFailures  *prometheus.CounterVec
	SendRetries   prometheus.Counter
}

func NewPollMetrics(reg prometheus.Registerer) *PollMetrics {
	m := &PollMetrics{
		PollsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_created_total",
			Help:      "Total number of polls started.",
		}),
		PollsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_rejected_total",
			Help:      "Total number of poll requests rejected, by reason.",
		}, []string{"reason"}),
		PollsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "polls_active",
			Help:      "Number of polls currently counting down.",
		}),
		PollsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_finished_total",
			Help:      "Total number of finished polls, by outcome (draw, agree, disagree, winner, cancelled).",
		}, []string{"outcome"}),
		VotesRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_total",
			Help:      "Total number of vote button presses, by result.",
		}, []string{"result"}),
		SendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telegram_send_failures_total",
			Help:      "Telegram calls that failed after retries, by kind (render, notify, answer).",
		}, []string{"kind"}),
		SendRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telegram_send_retries_total",
			Help:      "Telegram calls retried after a transient failure.",
		}),
	}

	reg.MustRegister(m.PollsCreated, m.PollsRejected, m.PollsActive, m.PollsFinished,
		m.VotesRecorded, m.SendFailures, m.SendRetries)
	return m
}
