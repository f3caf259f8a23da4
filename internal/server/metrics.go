package server

import (
	"sync"
	"time"
)

// Metrics holds in-process operation counters.
type Metrics struct {
	mu sync.RWMutex

	startedAt time.Time

	// Archive operation metrics
	listsTotal    int64
	loadsTotal    int64
	savesTotal    int64
	deletesTotal  int64
	listErrors    int64
	loadErrors    int64
	saveErrors    int64
	deleteErrors  int64

	// HTTP metrics
	requestsTotal    int64
	requestErrors4xx int64
	requestErrors5xx int64
}

func NewMetrics() *Metrics {
	return &Metrics{startedAt: time.Now()}
}

// RecordOp records a successful archive operation.
func (m *Metrics) RecordOp(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch op {
	case "list":
		m.listsTotal++
	case "load":
		m.loadsTotal++
	case "save":
		m.savesTotal++
	case "delete":
		m.deletesTotal++
	}
}

// RecordOpError records a failed archive operation.
func (m *Metrics) RecordOpError(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch op {
	case "list":
		m.listErrors++
	case "load":
		m.loadErrors++
	case "save":
		m.saveErrors++
	case "delete":
		m.deleteErrors++
	}
}

// RecordRequest records an HTTP request by status class.
func (m *Metrics) RecordRequest(statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestsTotal++
	switch {
	case statusCode >= 500:
		m.requestErrors5xx++
	case statusCode >= 400:
		m.requestErrors4xx++
	}
}

// Snapshot returns a point-in-time copy of all counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return MetricsSnapshot{
		ListsTotal:       m.listsTotal,
		LoadsTotal:       m.loadsTotal,
		SavesTotal:       m.savesTotal,
		DeletesTotal:     m.deletesTotal,
		ListErrors:       m.listErrors,
		LoadErrors:       m.loadErrors,
		SaveErrors:       m.saveErrors,
		DeleteErrors:     m.deleteErrors,
		RequestsTotal:    m.requestsTotal,
		RequestErrors4xx: m.requestErrors4xx,
		RequestErrors5xx: m.requestErrors5xx,
		UptimeSeconds:    int64(time.Since(m.startedAt).Seconds()),
	}
}

// MetricsSnapshot is the JSON shape served by the stats endpoint.
type MetricsSnapshot struct {
	ListsTotal   int64 `json:"lists_total"`
	LoadsTotal   int64 `json:"loads_total"`
	SavesTotal   int64 `json:"saves_total"`
	DeletesTotal int64 `json:"deletes_total"`

	ListErrors   int64 `json:"list_errors_total"`
	LoadErrors   int64 `json:"load_errors_total"`
	SaveErrors   int64 `json:"save_errors_total"`
	DeleteErrors int64 `json:"delete_errors_total"`

	RequestsTotal    int64 `json:"requests_total"`
	RequestErrors4xx int64 `json:"request_errors_4xx"`
	RequestErrors5xx int64 `json:"request_errors_5xx"`

	UptimeSeconds int64 `json:"uptime_seconds"`
}
