package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "govstake"

// InitializePrometheus switches the package backend to prometheus. Calling it
// twice keeps the first instance.
func InitializePrometheus() {
	if _, ok := backend.(*promService); !ok {
		backend = &promService{}
	}
}

type promService struct {
	counters    sync.Map
	counterVecs sync.Map
	gauges      sync.Map
}

func (s *promService) GetOrCreateCounter(name string) Counter {
	if m, ok := s.counters.Load(name); ok {
		return m.(Counter)
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name})
	prometheus.MustRegister(c)
	meter := &promCounter{c: c}
	s.counters.Store(name, meter)
	return meter
}

func (s *promService) GetOrCreateCounterVec(name string, labels []string) CounterVec {
	if m, ok := s.counterVecs.Load(name); ok {
		return m.(CounterVec)
	}
	c := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name}, labels)
	prometheus.MustRegister(c)
	meter := &promCounterVec{c: c}
	s.counterVecs.Store(name, meter)
	return meter
}

func (s *promService) GetOrCreateGauge(name string) Gauge {
	if m, ok := s.gauges.Load(name); ok {
		return m.(Gauge)
	}
	g := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name})
	prometheus.MustRegister(g)
	meter := &promGauge{g: g}
	s.gauges.Store(name, meter)
	return meter
}

func (s *promService) Handler() http.Handler { return promhttp.Handler() }

type promCounter struct{ c prometheus.Counter }

func (p *promCounter) Add(v int64) { p.c.Add(float64(v)) }

type promCounterVec struct{ c *prometheus.CounterVec }

func (p *promCounterVec) AddWithLabels(v int64, labels map[string]string) {
	p.c.With(labels).Add(float64(v))
}

type promGauge struct{ g prometheus.Gauge }

func (p *promGauge) Set(v int64) { p.g.Set(float64(v)) }
