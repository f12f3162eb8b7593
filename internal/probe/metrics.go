package probe

import (
	"context"
	"sync"

	"github.com/sanasol-ws/dualauth/internal/service"
)

// DefaultMetricsBuffer is the event channel capacity. Events beyond it are
// dropped rather than blocking request handling.
const DefaultMetricsBuffer = 1024

// metricEvent is one observation flowing from a probe to the collector.
type metricEvent struct {
	op       string
	kind     string // "completed", "failed", "bypass", "token", "degraded"
	tokenTag string
}

// MetricsObserver aggregates operation counters off the request path.
// Probes push events into a bounded channel; a single background goroutine
// folds them into counters. A full channel drops the event, so a slow
// consumer can never stall a request.
type MetricsObserver struct {
	events chan metricEvent
	done   chan struct{}

	mu       sync.Mutex
	stopped  bool
	counters map[string]uint64
	dropped  uint64
}

// MetricsObserverConfig configures the metrics observer
type MetricsObserverConfig struct {
	// Buffer is the event channel capacity (defaults to DefaultMetricsBuffer)
	Buffer int
}

// NewMetricsObserver creates a metrics observer and starts its collector
// goroutine. Call Stop to terminate it.
func NewMetricsObserver(cfg MetricsObserverConfig) *MetricsObserver {
	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = DefaultMetricsBuffer
	}
	m := &MetricsObserver{
		events:   make(chan metricEvent, buffer),
		done:     make(chan struct{}),
		counters: make(map[string]uint64),
	}
	go m.collect()
	return m
}

// OperationStarted implements service.Observer
func (m *MetricsObserver) OperationStarted(ctx context.Context, op string) (context.Context, service.Probe) {
	return ctx, &metricsProbe{observer: m, op: op}
}

// Counters returns a snapshot of the aggregated counters. Keys are
// "<op>.<event>", e.g. "new_session.completed" or "exchange.token.access".
func (m *MetricsObserver) Counters() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := make(map[string]uint64, len(m.counters))
	for k, v := range m.counters {
		snapshot[k] = v
	}
	return snapshot
}

// Dropped returns how many events were discarded because the buffer was
// full or the observer had already been stopped.
func (m *MetricsObserver) Dropped() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

// Stop terminates the collector goroutine after draining buffered events.
// Events pushed after Stop are counted as dropped. Safe to call more than
// once.
func (m *MetricsObserver) Stop() {
	m.mu.Lock()
	if !m.stopped {
		m.stopped = true
		close(m.events)
	}
	m.mu.Unlock()
	<-m.done
}

func (m *MetricsObserver) collect() {
	defer close(m.done)
	for event := range m.events {
		key := event.op + "." + event.kind
		if event.tokenTag != "" {
			key += "." + event.tokenTag
		}
		m.mu.Lock()
		m.counters[key]++
		m.mu.Unlock()
	}
}

// push hands an event to the collector without ever blocking. The mutex is
// held across the send so Stop cannot close the channel mid-push.
func (m *MetricsObserver) push(event metricEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		m.dropped++
		return
	}
	select {
	case m.events <- event:
	default:
		m.dropped++
	}
}

// metricsProbe reports one operation's events to the collector.
type metricsProbe struct {
	observer *MetricsObserver
	op       string
	failed   bool
}

func (p *metricsProbe) SubjectResolved(string) {}

func (p *metricsProbe) TokenEmitted(kind, _ string) {
	p.observer.push(metricEvent{op: p.op, kind: "token", tokenTag: kind})
}

func (p *metricsProbe) BypassApplied() {
	p.observer.push(metricEvent{op: p.op, kind: "bypass"})
}

func (p *metricsProbe) PersistenceDegraded(error) {
	p.observer.push(metricEvent{op: p.op, kind: "degraded"})
}

func (p *metricsProbe) Failed(error) {
	p.failed = true
}

func (p *metricsProbe) End() {
	if p.failed {
		p.observer.push(metricEvent{op: p.op, kind: "failed"})
		return
	}
	p.observer.push(metricEvent{op: p.op, kind: "completed"})
}
