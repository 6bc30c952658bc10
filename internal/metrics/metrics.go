package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Refresh triggers.
const (
	TriggerStartup     = "startup"
	TriggerPeriodic    = "periodic"
	TriggerManual      = "manual"
	TriggerDispatcher  = "dispatcher"
	TriggerTokenSource = "token_source"
)

// Outcomes.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultShared  = "shared"
)

// Recorder owns the client's Prometheus collectors. A nil *Recorder is valid
// and records nothing.
type Recorder struct {
	refreshes *prometheus.CounterVec
	requests  *prometheus.CounterVec
	retries   prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tesla",
			Subsystem: "client",
			Name:      "refresh_total",
			Help:      "Access token refresh attempts by trigger and result.",
		}, []string{"trigger", "result"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tesla",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Authenticated API requests by outcome.",
		}, []string{"outcome"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tesla",
			Subsystem: "client",
			Name:      "request_retries_total",
			Help:      "Requests re-issued after an access token refresh.",
		}),
	}
	for _, c := range []prometheus.Collector{r.refreshes, r.requests, r.retries} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Recorder) Refresh(trigger, result string) {
	if r == nil {
		return
	}
	r.refreshes.WithLabelValues(trigger, result).Inc()
}

func (r *Recorder) Request(outcome string) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(outcome).Inc()
}

func (r *Recorder) Retry() {
	if r == nil {
		return
	}
	r.retries.Inc()
}

// RefreshCount returns the current value of one refresh series (used by tests and status output).
func (r *Recorder) RefreshCount(trigger, result string) float64 {
	if r == nil {
		return 0
	}
	return counterValue(r.refreshes.WithLabelValues(trigger, result))
}

func (r *Recorder) RequestCount(outcome string) float64 {
	if r == nil {
		return 0
	}
	return counterValue(r.requests.WithLabelValues(outcome))
}

func (r *Recorder) RetryCount() float64 {
	if r == nil {
		return 0
	}
	return counterValue(r.retries)
}
