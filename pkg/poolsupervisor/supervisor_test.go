package poolsupervisor

import (
	"context"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/function61/gokit/assert"
)

// forks real subprocesses; "sleep" is as close to a well-behaved worker as a
// test can get (runs until signalled, exits cleanly on interrupt)
func TestPoolKeepsSizeAcrossCrashes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := New([]string{"/bin/sleep", "30"}, 2, nil)

	runDone := make(chan error, 1)
	go func() {
		runDone <- pool.Run(ctx)
	}()

	waitFor(t, pool, func(status []WorkerStatus) bool {
		return status[0].Alive && status[1].Alive
	})

	crashedPid := pool.Status()[0].Pid

	// hard-kill one worker; SIGKILL so the "worker" gets no say in it
	pidNum, err := strconv.Atoi(crashedPid)
	assert.Ok(t, err)
	assert.Ok(t, syscall.Kill(pidNum, syscall.SIGKILL))

	// slot must come back alive with a fresh process
	waitFor(t, pool, func(status []WorkerStatus) bool {
		return status[0].Alive && status[0].Pid != crashedPid
	})

	assert.Assert(t, pool.Status()[0].Restarts >= 1)

	// the other slot never noticed
	assert.Assert(t, pool.Status()[1].Alive)

	cancel()
	assert.Ok(t, <-runDone)

	// graceful stop leaves no workers running
	for _, st := range pool.Status() {
		assert.Assert(t, !st.Alive)
	}
}

func TestStatusReportsSlots(t *testing.T) {
	pool := New([]string{"/bin/sleep", "30"}, 3, nil)

	status := pool.Status()
	assert.Assert(t, len(status) == 3)

	for slot, st := range status {
		assert.Assert(t, st.Slot == slot)
		assert.Assert(t, !st.Alive)
	}
}

func waitFor(t *testing.T, pool *Pool, condition func([]WorkerStatus) bool) {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)

	for time.Now().Before(deadline) {
		if condition(pool.Status()) {
			return
		}

		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("condition not reached before deadline; status: %+v", pool.Status())
}
