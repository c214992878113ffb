package ratemeter

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// named meters of one worker process, plus the worker's own prometheus
// registry so the same events are scrapeable as cumulative counters
type Collection struct {
	mu     sync.Mutex
	meters map[string]*meter

	registry *prometheus.Registry
	events   *prometheus.CounterVec
}

func NewCollection(workerId string) *Collection {
	registry := prometheus.NewRegistry()

	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "exohost_events_total",
		Help:        "Events marked on this worker's rate meters",
		ConstLabels: prometheus.Labels{"worker": workerId},
	}, []string{"event"})

	registry.MustRegister(events)

	return &Collection{
		meters:   map[string]*meter{},
		registry: registry,
		events:   events,
	}
}

func (c *Collection) Mark(name string) {
	c.meter(name).mark(1)

	c.events.WithLabelValues(name).Inc()
}

// other per-worker metrics (HTTP request counters etc.) register here too, so
// one scrape endpoint covers the whole worker
func (c *Collection) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collection) MetricsHTTPHandler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// decays the meters at an interval. cancellable task for taskrunner.
func (c *Collection) Task() func(context.Context) error {
	return func(ctx context.Context) error {
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				c.tickAll()
			}
		}
	}
}

func (c *Collection) Snapshot() map[string]Snapshot {
	c.mu.Lock()
	names := make([]string, 0, len(c.meters))
	for name := range c.meters {
		names = append(names, name)
	}
	c.mu.Unlock()

	sort.Strings(names)

	snapshots := map[string]Snapshot{}
	for _, name := range names {
		snapshots[name] = c.meter(name).snapshot()
	}

	return snapshots
}

func (c *Collection) tickAll() {
	c.mu.Lock()
	meters := make([]*meter, 0, len(c.meters))
	for _, m := range c.meters {
		meters = append(meters, m)
	}
	c.mu.Unlock()

	for _, m := range meters {
		m.tick()
	}
}

func (c *Collection) meter(name string) *meter {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, found := c.meters[name]
	if !found {
		m = &meter{}
		c.meters[name] = m
	}

	return m
}
