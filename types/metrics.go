package types

// This file defines how the cache reports what it is doing.

/*
Metrics is an interface that defines what the cache wants to measure.
Each method represents an event in the cache lifecycle. The cache will call these methods whenever something happens.
*/
type Metrics interface {

	// Hit is called when a valid entry is served from either tier.
	Hit()

	// Miss is called when no valid entry exists and the fetch function has to run.
	Miss()

	// Expire is called when a stale entry is found and dropped.
	Expire()

	// Coalesced is called when a caller joins a fetch that is already in flight.
	Coalesced()

	// Revalidate is called when a stale-while-revalidate refresh is started.
	Revalidate()

	// RevalidateError is called when a background refresh or a prefetch fails.
	RevalidateError()

	// StorageError is called whenever the persistent tier fails and the
	// failure is swallowed.
	StorageError()
}

/*
NoopMetrics is a "do nothing" implementation of Metrics.

We don't want to force every user of the cache to implement metrics,
and we don't want "if metrics != nil" checks everywhere.
*/
type NoopMetrics struct{}

func (NoopMetrics) Hit()             {}
func (NoopMetrics) Miss()            {}
func (NoopMetrics) Expire()          {}
func (NoopMetrics) Coalesced()       {}
func (NoopMetrics) Revalidate()      {}
func (NoopMetrics) RevalidateError() {}
func (NoopMetrics) StorageError()    {}
