// Package metrics exports cache events as Prometheus counters.
package metrics

import (
	"github.com/krisalay/api-cache/types"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const DefaultNamespace = "apicache"

// Prometheus counts every cache event in its own counter.
type Prometheus struct {
	hits             prometheus.Counter
	misses           prometheus.Counter
	expired          prometheus.Counter
	coalesced        prometheus.Counter
	revalidations    prometheus.Counter
	revalidateErrors prometheus.Counter
	storageErrors    prometheus.Counter
}

/*
NewPrometheus registers the cache counters with reg under namespace.
A nil reg means prometheus.DefaultRegisterer. Counters that are already
registered (say by a second cache in the same process) are shared.
*/
func NewPrometheus(reg prometheus.Registerer, namespace string) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}

	var err error
	counter := func(name, help string) prometheus.Counter {
		if err != nil {
			return nil
		}
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		})
		if rerr := reg.Register(c); rerr != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(rerr, &already) {
				if existing, ok := already.ExistingCollector.(prometheus.Counter); ok {
					return existing
				}
			}
			err = errors.Wrapf(rerr, "register %s", name)
			return nil
		}
		return c
	}

	p := &Prometheus{
		hits:             counter("hits_total", "Valid entries served from memory or the persistent tier."),
		misses:           counter("misses_total", "Lookups that found no valid entry."),
		expired:          counter("expired_total", "Expired entries dropped on read."),
		coalesced:        counter("coalesced_total", "Callers that joined a fetch already in flight."),
		revalidations:    counter("revalidations_total", "Background stale-while-revalidate refreshes started."),
		revalidateErrors: counter("revalidate_errors_total", "Failed background refreshes and prefetches."),
		storageErrors:    counter("storage_errors_total", "Persistent tier failures degraded to a miss or no-op."),
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Prometheus) Hit()             { p.hits.Inc() }
func (p *Prometheus) Miss()            { p.misses.Inc() }
func (p *Prometheus) Expire()          { p.expired.Inc() }
func (p *Prometheus) Coalesced()       { p.coalesced.Inc() }
func (p *Prometheus) Revalidate()      { p.revalidations.Inc() }
func (p *Prometheus) RevalidateError() { p.revalidateErrors.Inc() }
func (p *Prometheus) StorageError()    { p.storageErrors.Inc() }

var _ types.Metrics = (*Prometheus)(nil)
