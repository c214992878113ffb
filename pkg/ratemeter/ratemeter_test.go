package ratemeter

import (
	"testing"

	"github.com/function61/gokit/assert"
)

func TestMarkAndSnapshot(t *testing.T) {
	meters := NewCollection("0")

	meters.Mark("uploadsPerSecond")
	meters.Mark("uploadsPerSecond")
	meters.Mark("uploadsPerSecond")

	snap, found := meters.Snapshot()["uploadsPerSecond"]
	assert.Assert(t, found)
	assert.Assert(t, snap.Count == 3)

	// rates only move at ticks
	assert.Assert(t, snap.Rate1 == 0)

	meters.tickAll()

	snap = meters.Snapshot()["uploadsPerSecond"]
	assert.Assert(t, snap.Count == 3)
	assert.Assert(t, snap.Rate1 > 0)
}

func TestRatesDecay(t *testing.T) {
	meters := NewCollection("0")

	for i := 0; i < 10; i++ {
		meters.Mark("viewsPerSecond")
	}

	meters.tickAll()

	first := meters.Snapshot()["viewsPerSecond"]

	// 10 marks over a 5s window
	assert.Assert(t, first.Rate1 == 2.0)

	// idle tick: decays towards zero without reaching it
	meters.tickAll()

	second := meters.Snapshot()["viewsPerSecond"]
	assert.Assert(t, second.Rate1 < first.Rate1)
	assert.Assert(t, second.Rate1 > 0)

	// the 15m window decays slower than the 1m window
	assert.Assert(t, second.Rate15 > second.Rate1)

	// count is monotonic, unaffected by decay
	assert.Assert(t, second.Count == 10)
}

func TestMetersAreIndependent(t *testing.T) {
	meters := NewCollection("0")

	meters.Mark("uploadsPerSecond")
	meters.Mark("viewsPerSecond")
	meters.Mark("viewsPerSecond")

	snapshots := meters.Snapshot()

	assert.Assert(t, snapshots["uploadsPerSecond"].Count == 1)
	assert.Assert(t, snapshots["viewsPerSecond"].Count == 2)
}
