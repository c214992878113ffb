// Keeps a fixed-size pool of symmetric worker subprocesses alive: forks them
// at startup, and unconditionally re-forks any worker that exits, for the
// lifetime of the supervisor. The supervisor itself serves no requests.
package poolsupervisor

import (
	"context"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/function61/exohost/pkg/logtee"
	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/stopper"
)

// environment variable a worker reads to learn its slot number
const WorkerSlotEnv = "EXOHOST_WORKER"

type WorkerStatus struct {
	Slot     int
	Pid      string
	Alive    bool
	Started  time.Time
	Restarts int
}

type Pool struct {
	cmd    []string
	size   int
	logger *log.Logger

	statusMu sync.Mutex
	status   []WorkerStatus
}

func New(cmd []string, size int, logger *log.Logger) *Pool {
	status := make([]WorkerStatus, size)
	for slot := range status {
		status[slot] = WorkerStatus{Slot: slot}
	}

	return &Pool{
		cmd:    cmd,
		size:   size,
		logger: logex.NonNil(logger),
		status: status,
	}
}

// blocks until ctx cancel, after which workers are interrupted and waited for.
// while running, every worker exit - crash, signal or normal termination -
// leads to an immediate unconditional re-fork: no backoff, no restart
// ceiling. a crash loop is visible through the restart log lines.
func (p *Pool) Run(ctx context.Context) error {
	workers := stopper.NewManager()

	for slot := 0; slot < p.size; slot++ {
		go p.superviseSlot(slot, workers.Stopper())
	}

	logex.Levels(p.logger).Info.Printf("%d workers forked", p.size)

	<-ctx.Done()

	workers.StopAllWorkersAndWait()

	return nil
}

func (p *Pool) Status() []WorkerStatus {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()

	snapshot := make([]WorkerStatus, len(p.status))
	copy(snapshot, p.status)

	return snapshot
}

func (p *Pool) superviseSlot(slot int, stop *stopper.Stopper) {
	defer stop.Done()

	logl := logex.Levels(logex.Prefix(fmt.Sprintf("manager(worker %d)", slot), p.logger))
	// the worker's own stderr lines land here, to tell them apart from ours
	lineLogger := logex.Prefix(fmt.Sprintf("worker(%d)", slot), p.logger)

	restarts := 0

	for {
		exited, err := p.startWorker(slot, restarts, logl, lineLogger)
		if err != nil {
			logl.Error.Printf("fork: %v", err)

			p.setStatus(slot, WorkerStatus{Slot: slot, Restarts: restarts})

			restarts++

			// with no child to wait on, the loop would otherwise spin.
			// this is not restart throttling - worker exits re-fork immediately.
			select {
			case <-stop.Signal:
				return
			case <-time.After(1 * time.Second):
				continue
			}
		}

		select {
		case <-stop.Signal:
			p.stopWorker(slot, exited, logl)
			return
		case err := <-exited:
			logl.Error.Printf("exited with %v; restarting", err)

			restarts++

			p.setStatus(slot, WorkerStatus{Slot: slot, Restarts: restarts})
		}
	}
}

func (p *Pool) startWorker(slot int, restarts int, logl *logex.Leveled, lineLogger *log.Logger) (chan error, error) {
	cmd := exec.Command(p.cmd[0], p.cmd[1:]...)

	// worker should receive full env of supervisor, plus its slot number
	cmd.Env = append(os.Environ(), fmt.Sprintf("%s=%d", WorkerSlotEnv, slot))

	// worker's stderr lines end up in the supervisor's log under the slot prefix
	cmd.Stderr = logtee.NewLineSplitterTee(ioutil.Discard, func(line string) {
		lineLogger.Println(line)
	})

	// open stdin that does nothing, so that the worker can detect closure of
	// its stdin to mean that its supervisor has died disgracefully
	if _, err := cmd.StdinPipe(); err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	logl.Info.Printf("started (pid %d)", cmd.Process.Pid)

	p.setStatus(slot, WorkerStatus{
		Slot:     slot,
		Pid:      strconv.Itoa(cmd.Process.Pid),
		Alive:    true,
		Started:  time.Now(),
		Restarts: restarts,
	})

	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
	}()

	return exited, nil
}

// graceful teardown path: interrupt and wait, no re-fork
func (p *Pool) stopWorker(slot int, exited chan error, logl *logex.Leveled) {
	st := p.Status()[slot]

	logl.Info.Printf("interrupting pid %s", st.Pid)

	if proc := p.findProcess(st.Pid); proc != nil {
		if err := proc.Signal(os.Interrupt); err != nil {
			logl.Error.Printf("Signal(): %v", err)
		}
	}

	if err := <-exited; err != nil {
		logl.Error.Printf("unclean exit: %v", err)
	} else {
		logl.Info.Println("stopped")
	}

	p.setStatus(slot, WorkerStatus{Slot: slot, Restarts: st.Restarts})
}

func (p *Pool) findProcess(pid string) *os.Process {
	pidNum, err := strconv.Atoi(pid)
	if err != nil {
		return nil
	}

	proc, err := os.FindProcess(pidNum)
	if err != nil {
		return nil
	}

	return proc
}

func (p *Pool) setStatus(slot int, st WorkerStatus) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()

	p.status[slot] = st
}
