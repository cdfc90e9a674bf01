// Package obstest provides an in-memory observability provider for tests.
package obstest

import (
	"sort"
	"strings"
	"sync"

	"github.com/Zhima-Mochi/minishop-storefront/app/internal/observability"
)

// Recorder implements observability.Observability. Tracing and logging are discarded;
// metric calls are kept so tests can assert on them.
type Recorder struct {
	mu           sync.Mutex
	counters     map[string]float64
	observations map[string][]float64
}

func New() *Recorder {
	return &Recorder{
		counters:     make(map[string]float64),
		observations: make(map[string][]float64),
	}
}

func (r *Recorder) Tracer() observability.Tracer   { return observability.NopTracer() }
func (r *Recorder) Logger() observability.Logger   { return observability.NopLogger() }
func (r *Recorder) Metrics() observability.Metrics { return recorderMetrics{r} }

// Counter returns the accumulated value for key with exactly the given labels.
func (r *Recorder) Counter(key observability.MetricKey, labels ...observability.Label) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[series(string(key), labels)]
}

// Observations returns the values observed for key with exactly the given labels.
func (r *Recorder) Observations(key observability.MetricKey, labels ...observability.Label) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.observations[series(string(key), labels)]...)
}

type recorderMetrics struct{ r *Recorder }

func (m recorderMetrics) Counter(k observability.MetricKey) observability.Counter {
	return counter{m.r, string(k)}
}

func (m recorderMetrics) Histogram(k observability.MetricKey) observability.Histogram {
	return histogram{m.r, string(k)}
}

type counter struct {
	r   *Recorder
	key string
}

func (c counter) Add(d float64, labels ...observability.Label) {
	c.r.mu.Lock()
	c.r.counters[series(c.key, labels)] += d
	c.r.mu.Unlock()
}

type histogram struct {
	r   *Recorder
	key string
}

func (h histogram) Observe(v float64, labels ...observability.Label) {
	h.r.mu.Lock()
	s := series(h.key, labels)
	h.r.observations[s] = append(h.r.observations[s], v)
	h.r.mu.Unlock()
}

func series(key string, labels []observability.Label) string {
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		parts = append(parts, l.Key+"="+l.Value)
	}
	sort.Strings(parts)
	return key + "{" + strings.Join(parts, ",") + "}"
}
