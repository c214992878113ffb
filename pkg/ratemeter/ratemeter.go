// Process-local event rate meters. Each worker owns one Collection; nothing
// here is shared across the pool - aggregate rates are the scrape-side sum of
// per-worker readings.
package ratemeter

import (
	"math"
	"sync"
	"time"
)

const tickInterval = 5 * time.Second

// a decaying view of one event stream: lifetime count plus exponentially
// weighted per-second rates over 1/5/15 minute windows
type Snapshot struct {
	Count  int64   `json:"count"`
	Rate1  float64 `json:"rate1m"`
	Rate5  float64 `json:"rate5m"`
	Rate15 float64 `json:"rate15m"`
}

type meter struct {
	mu        sync.Mutex
	count     int64
	uncounted int64 // marks since the last tick
	rates     [3]float64
	warm      bool
}

// decay factors for 1/5/15 minute EWMAs at a 5 second tick
var alphas = [3]float64{
	1 - math.Exp(-tickInterval.Seconds()/(1*60)),
	1 - math.Exp(-tickInterval.Seconds()/(5*60)),
	1 - math.Exp(-tickInterval.Seconds()/(15*60)),
}

func (m *meter) mark(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.count += n
	m.uncounted += n
}

func (m *meter) tick() {
	m.mu.Lock()
	defer m.mu.Unlock()

	instantRate := float64(m.uncounted) / tickInterval.Seconds()
	m.uncounted = 0

	if !m.warm {
		// first tick seeds the averages so a fresh meter doesn't take
		// minutes to show anything
		for i := range m.rates {
			m.rates[i] = instantRate
		}
		m.warm = true
		return
	}

	for i := range m.rates {
		m.rates[i] += alphas[i] * (instantRate - m.rates[i])
	}
}

func (m *meter) snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		Count:  m.count,
		Rate1:  m.rates[0],
		Rate5:  m.rates[1],
		Rate15: m.rates[2],
	}
}
