// Package metrics defines the counters emitted by the temp-file manager.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics captures manager activity: cache-style dedup hits, lifecycle
// removals, and backend-delete failures that are otherwise swallowed by the
// fail-soft delete policy.
type Metrics interface {
	IncDedupHit()
	IncExpired()
	IncEvicted(policy string)
	IncIntegrityFault()
	IncDeleteError(backend string)
}

// Noop implements Metrics without emitting anything.
type Noop struct{}

func (Noop) IncDedupHit()          {}
func (Noop) IncExpired()           {}
func (Noop) IncEvicted(string)     {}
func (Noop) IncIntegrityFault()    {}
func (Noop) IncDeleteError(string) {}

// Prom implements Metrics backed by Prometheus counters.
type Prom struct {
	dedupHits       prometheus.Counter
	expired         prometheus.Counter
	evicted         *prometheus.CounterVec
	integrityFaults prometheus.Counter
	deleteErrors    *prometheus.CounterVec
}

// NewProm creates the counter set under the given namespace.
func NewProm(namespace string) *Prom {
	return &Prom{
		dedupHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dedup_hits_total",
			Help:      "Creates answered by an existing record with identical content",
		}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expired_total",
			Help:      "Records removed by the expiry sweep",
		}),
		evicted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evicted_total",
			Help:      "Records removed by eviction, by policy",
		}, []string{"policy"}),
		integrityFaults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "integrity_faults_total",
			Help:      "Records purged because their payload was missing from the backend",
		}),
		deleteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_delete_errors_total",
			Help:      "Swallowed backend delete failures, by backend kind",
		}, []string{"backend"}),
	}
}

// Register registers all counters with reg.
func (p *Prom) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		p.dedupHits, p.expired, p.evicted, p.integrityFaults, p.deleteErrors,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (p *Prom) IncDedupHit()       { p.dedupHits.Inc() }
func (p *Prom) IncExpired()        { p.expired.Inc() }
func (p *Prom) IncIntegrityFault() { p.integrityFaults.Inc() }

func (p *Prom) IncEvicted(policy string) {
	p.evicted.WithLabelValues(policy).Inc()
}

func (p *Prom) IncDeleteError(backend string) {
	p.deleteErrors.WithLabelValues(backend).Inc()
}
