// Package dispatch implements the Dispatcher (D): a fixed array of
// task slots shared between one main goroutine and a small worker
// pool, coordinated by a single mutex and two condition variables
// rather than channels. A worker claims a slot with a single atomic
// compare-and-swap; completion is reported back through the same
// slot, never copied out.
package dispatch

import (
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/xerrors"

	"github.com/dulesov-gost/gostsum/internal/task"
)

// Slot count bounds and default, matching the tunable range the
// design allows for the task queue.
const (
	MinSlots     = 4
	MaxSlots     = 126
	DefaultSlots = 10
)

// Scan budget tunables. Every pass over the slot array spends this
// much budget per slot kind before giving up and either returning a
// free slot it already found or blocking on cv_master. Charging a
// release or a bare free-slot sighting differently lets a handful of
// completions get drained in the same pass that finds the next free
// slot, without the scan turning into an unbounded sweep on a large
// queue.
const (
	scanBudget      = 4
	costRelease     = 1
	costFreeSighted = 2
)

// WorkerCount returns the default worker pool size: clamped to
// [2,8] regardless of how many CPUs are actually available, since
// Streebog's compression function is already the bottleneck per
// core and more workers than that just add contention on the mutex.
func WorkerCount() int {
	n := runtime.NumCPU()
	if n < 2 {
		n = 2
	}
	if n > 8 {
		n = 8
	}
	return n
}

// Dispatcher owns the slot array plus the mutex/condvar pair that
// coordinate it. The zero value is not usable; construct one with
// New.
type Dispatcher struct {
	slots []task.Task

	mu       sync.Mutex
	cvMaster *sync.Cond // signaled when a slot completes
	cvWorker *sync.Cond // signaled when a slot is submitted, or on stop

	stop  atomic.Bool
	await atomic.Int32 // count of slots currently in SUBM

	wg sync.WaitGroup
}

// New allocates a Dispatcher with size slots. It returns an error if
// size lies outside [MinSlots, MaxSlots].
func New(size int) (*Dispatcher, error) {
	if size < MinSlots || size > MaxSlots {
		return nil, xerrors.Errorf("dispatch: slot count %d out of range [%d,%d]", size, MinSlots, MaxSlots)
	}
	d := &Dispatcher{slots: make([]task.Task, size)}
	d.cvMaster = sync.NewCond(&d.mu)
	d.cvWorker = sync.NewCond(&d.mu)
	for i := range d.slots {
		d.slots[i].Init()
	}
	return d, nil
}

// Len returns the slot count.
func (d *Dispatcher) Len() int { return len(d.slots) }

// Slot returns a pointer to slot i, for main to fill in before
// Submit.
func (d *Dispatcher) Slot(i int) *task.Task { return &d.slots[i] }

// Start launches n worker goroutines. Call Stop followed by Wait to
// shut them down.
func (d *Dispatcher) Start(n int) {
	d.wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer d.wg.Done()
			d.workerLoop()
		}()
	}
}

// Submit publishes t as SUBM and wakes one worker. t must be a slot
// obtained from Slot or FindSlot, already filled in with its digest,
// digest size and filename while it was in INIT.
func (d *Dispatcher) Submit(t *task.Task) {
	t.MarkSubmitted()
	d.mu.Lock()
	d.await.Add(1)
	d.cvWorker.Signal()
	d.mu.Unlock()
}

// workerLoop is the single worker routine: repeatedly scan the slot
// array for a SUBM slot, claim it with one CAS, validate it outside
// the mutex, publish the result, and restart the scan from the
// beginning whenever a claim succeeds. When a full pass finds
// nothing to do, sleep on cv_worker until more work is submitted or
// the dispatcher is stopped.
func (d *Dispatcher) workerLoop() {
	for {
		for {
			progressed := false
			for i := range d.slots {
				s := &d.slots[i]
				if s.GetResult() != task.Subm {
					continue
				}
				if !s.TryTake() {
					continue
				}
				d.await.Add(-1)
				result := s.Validate()
				d.mu.Lock()
				s.SetState(result)
				d.cvMaster.Signal()
				d.mu.Unlock()
				progressed = true
				break
			}
			if !progressed {
				break
			}
		}

		d.mu.Lock()
		for d.await.Load() == 0 && !d.stop.Load() {
			d.cvWorker.Wait()
		}
		stopNow := d.stop.Load()
		awaitNow := d.await.Load()
		d.mu.Unlock()

		if stopNow && awaitNow == 0 {
			return
		}
	}
}

// hasCompleteLocked reports whether any slot currently holds a
// completion state. Callers must hold d.mu.
func (d *Dispatcher) hasCompleteLocked() bool {
	for i := range d.slots {
		if d.slots[i].GetResult().IsComplete() {
			return true
		}
	}
	return false
}

// waitMaster blocks the caller on cv_master until at least one slot
// looks completed, unless one already is.
func (d *Dispatcher) waitMaster() {
	d.mu.Lock()
	if !d.hasCompleteLocked() {
		d.cvMaster.Wait()
	}
	d.mu.Unlock()
}

// FindSlot scans the array for the next slot main can reuse (one in
// INIT), reporting and releasing every completed slot it passes
// along the way. It blocks on cv_master between passes when an
// entire sweep finds no free slot. The returned Task is always in
// INIT and owned by the caller until the next Submit.
func (d *Dispatcher) FindSlot(report func(*task.Task, task.State)) *task.Task {
	for {
		budget := scanBudget
		var free *task.Task
		for i := 0; budget >= 0 && i < len(d.slots); i++ {
			s := &d.slots[i]
			switch st := s.GetResult(); {
			case st.IsComplete():
				report(s, st)
				s.Release()
				budget -= costRelease
				free = s
			case st == task.Init:
				free = s
				budget -= costFreeSighted
			}
		}
		if free != nil {
			return free
		}
		d.waitMaster()
	}
}

// Stop tells every worker to exit once it runs out of submitted
// work, and wakes them so they notice.
func (d *Dispatcher) Stop() {
	d.stop.Store(true)
	d.mu.Lock()
	d.cvWorker.Broadcast()
	d.mu.Unlock()
}

// Wait blocks until every worker launched by Start has returned.
func (d *Dispatcher) Wait() { d.wg.Wait() }

// Drain reports and releases every remaining completed slot. Call
// after Stop and Wait to collect work finished after the last
// FindSlot call.
func (d *Dispatcher) Drain(report func(*task.Task, task.State)) {
	for i := range d.slots {
		s := &d.slots[i]
		if st := s.GetResult(); st.IsComplete() {
			report(s, st)
			s.Release()
		}
	}
}
