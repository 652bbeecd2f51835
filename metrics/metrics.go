package metrics

import "net/http"

// The package defaults to a no-op implementation so importing code can meter
// unconditionally; cmd switches in the prometheus implementation when the
// config enables it.
var backend Service = noopService{}

// Service is the minimal meter surface the engines need.
type Service interface {
	GetOrCreateCounter(name string) Counter
	GetOrCreateCounterVec(name string, labels []string) CounterVec
	GetOrCreateGauge(name string) Gauge
	Handler() http.Handler
}

// Counter is a monotonically increasing count.
type Counter interface {
	Add(int64)
}

// CounterVec is a Counter with labels.
type CounterVec interface {
	AddWithLabels(int64, map[string]string)
}

// Gauge is a value that can move both ways.
type Gauge interface {
	Set(int64)
}

func GetCounter(name string) Counter { return backend.GetOrCreateCounter(name) }

func GetCounterVec(name string, labels []string) CounterVec {
	return backend.GetOrCreateCounterVec(name, labels)
}

func GetGauge(name string) Gauge { return backend.GetOrCreateGauge(name) }

// HTTPHandler returns the scrape handler of the active backend.
func HTTPHandler() http.Handler { return backend.Handler() }

type noopService struct{}

type noopMeter struct{}

func (noopMeter) Add(int64)                           {}
func (noopMeter) AddWithLabels(int64, map[string]string) {}
func (noopMeter) Set(int64)                           {}

func (noopService) GetOrCreateCounter(string) Counter               { return noopMeter{} }
func (noopService) GetOrCreateCounterVec(string, []string) CounterVec { return noopMeter{} }
func (noopService) GetOrCreateGauge(string) Gauge                   { return noopMeter{} }
func (noopService) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
}
