// Package observability assembles the storefront's Observability from the zap, OTel and
// Prometheus adapters below it.
package observability

import (
	"sort"

	"github.com/Zhima-Mochi/minishop-storefront/app/internal/observability"
)

// Instruments are the metric instruments keyed by the names the application asks for.
type Instruments struct {
	Counters   map[observability.MetricKey]observability.Counter
	Histograms map[observability.MetricKey]observability.Histogram
}

// Provider serves one tracer, one base logger and a fixed instrument set. Keys without an
// instrument resolve to no-ops so a partially wired process still runs.
type Provider struct {
	tracer      observability.Tracer
	logger      observability.Logger
	instruments Instruments
}

var (
	_ observability.Observability = (*Provider)(nil)
	_ observability.Metrics       = (*Provider)(nil)
)

func New(tracer observability.Tracer, logger observability.Logger, in Instruments) *Provider {
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	p := &Provider{
		tracer: tracer,
		logger: logger,
		instruments: Instruments{
			Counters:   make(map[observability.MetricKey]observability.Counter, len(in.Counters)),
			Histograms: make(map[observability.MetricKey]observability.Histogram, len(in.Histograms)),
		},
	}
	for k, c := range in.Counters {
		if c != nil {
			p.instruments.Counters[k] = c
		}
	}
	for k, h := range in.Histograms {
		if h != nil {
			p.instruments.Histograms[k] = h
		}
	}
	return p
}

func (p *Provider) Tracer() observability.Tracer   { return p.tracer }
func (p *Provider) Logger() observability.Logger   { return p.logger }
func (p *Provider) Metrics() observability.Metrics { return p }

func (p *Provider) Counter(key observability.MetricKey) observability.Counter {
	if c, ok := p.instruments.Counters[key]; ok {
		return c
	}
	return observability.NopCounter()
}

func (p *Provider) Histogram(key observability.MetricKey) observability.Histogram {
	if h, ok := p.instruments.Histograms[key]; ok {
		return h
	}
	return observability.NopHistogram()
}

// Missing returns the keys among want that have neither a counter nor a histogram, sorted.
func (p *Provider) Missing(want ...observability.MetricKey) []observability.MetricKey {
	var out []observability.MetricKey
	for _, k := range want {
		_, isCounter := p.instruments.Counters[k]
		_, isHistogram := p.instruments.Histograms[k]
		if !isCounter && !isHistogram {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
