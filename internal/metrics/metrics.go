// Package metrics counts cache lookups, simulation invocations and produced
// particles, and keeps a latency histogram of invocation wall time.
package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/prometheus/client_golang/prometheus"
)

// Cache label values.
const (
	CacheArtifact = "artifact"
	CacheResult   = "result"
)

// Outcome label values.
const (
	OutcomeHit     = "hit"
	OutcomeMiss    = "miss"
	OutcomeCreated = "created"
	OutcomeShared  = "shared" // waited on an identical in-flight request
)

// Stage label values.
const (
	StageUpstream   = "upstream"
	StageDownstream = "downstream"
	StageSingle     = "single"
)

// Histogram range: 1ms to 7 days, 3 significant figures.
const (
	histogramMin     = 1
	histogramMax     = 7 * 24 * 3600 * 1000
	histogramSigFigs = 3
)

// Recorder collects restage metrics. A nil *Recorder is valid and records
// nothing.
//
// Recorder is safe for concurrent use. Counters are prometheus vectors; the
// histogram is guarded by a mutex.
type Recorder struct {
	registry    *prometheus.Registry
	lookups     *prometheus.CounterVec
	invocations *prometheus.CounterVec
	particles   *prometheus.CounterVec

	histMu sync.Mutex
	hist   *hdrhistogram.Histogram
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		lookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "restage_cache_lookups_total",
				Help: "Cache lookups by cache and outcome",
			},
			[]string{"cache", "outcome"},
		),
		invocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "restage_invocations_total",
				Help: "Simulation process invocations by stage",
			},
			[]string{"stage"},
		),
		particles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "restage_particles_total",
				Help: "Particles produced by stage",
			},
			[]string{"stage"},
		),
		hist: hdrhistogram.New(histogramMin, histogramMax, histogramSigFigs),
	}
	r.registry.MustRegister(r.lookups, r.invocations, r.particles)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// CacheLookup counts one lookup.
func (r *Recorder) CacheLookup(cache, outcome string) {
	if r == nil {
		return
	}
	r.lookups.With(prometheus.Labels{"cache": cache, "outcome": outcome}).Inc()
}

// Invocation counts one simulation process run and its wall time.
func (r *Recorder) Invocation(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.invocations.With(prometheus.Labels{"stage": stage}).Inc()

	ms := d.Milliseconds()
	if ms < histogramMin {
		ms = histogramMin
	}
	r.histMu.Lock()
	defer r.histMu.Unlock()
	_ = r.hist.RecordValue(ms) // values above the range are dropped
}

// Particles adds produced particles.
func (r *Recorder) Particles(stage string, n int64) {
	if r == nil || n <= 0 {
		return
	}
	r.particles.With(prometheus.Labels{"stage": stage}).Add(float64(n))
}

// Summary describes invocation wall time.
type Summary struct {
	Count int64
	P50   time.Duration
	P90   time.Duration
	Max   time.Duration
}

// Summary snapshots the invocation latency histogram.
func (r *Recorder) Summary() Summary {
	if r == nil {
		return Summary{}
	}
	r.histMu.Lock()
	defer r.histMu.Unlock()
	return Summary{
		Count: r.hist.TotalCount(),
		P50:   time.Duration(r.hist.ValueAtQuantile(50)) * time.Millisecond,
		P90:   time.Duration(r.hist.ValueAtQuantile(90)) * time.Millisecond,
		Max:   time.Duration(r.hist.Max()) * time.Millisecond,
	}
}

// WriteTextfile writes all metrics in the Prometheus text format, for the
// node exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
