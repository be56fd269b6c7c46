package notify

import (
	"log/slog"
	"sort"
	"sync/atomic"

	"github.com/jmhodges/clock"

	"github.com/starford/almanac/internal/dateutil"
)

// Job is the work run when a scheduled entry fires.
type Job func()

type entry struct {
	gen   uint64
	sched dateutil.Schedule
	fn    Job
	timer *clock.Timer
	stop  chan struct{}
}

type scheduleReq struct {
	id    string
	sched dateutil.Schedule
	fn    Job
	resp  chan bool
}

type cancelReq struct {
	id   string
	resp chan bool
}

type fireReq struct {
	id  string
	gen uint64
}

// Scheduler runs jobs at absolute instants or on cron schedules.
//
// Concurrency model: a single internal loop owns the id -> job table. Public
// methods talk to it over channels. Each armed job has one waiter goroutine
// blocked on its timer; when the timer fires the waiter reports back to the
// loop, which checks the job generation so a replaced or cancelled job can
// never fire. Jobs run on their own goroutine, never on the loop.
type Scheduler struct {
	clk    clock.Clock
	logger *slog.Logger

	scheduleCh chan scheduleReq
	cancelCh   chan cancelReq
	fireCh     chan fireReq
	pendingCh  chan chan []string

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewScheduler starts a scheduler driven by clk.
func NewScheduler(clk clock.Clock, logger *slog.Logger) *Scheduler {
	s := &Scheduler{
		clk:        clk,
		logger:     logger,
		scheduleCh: make(chan scheduleReq),
		cancelCh:   make(chan cancelReq),
		fireCh:     make(chan fireReq),
		pendingCh:  make(chan chan []string),
		stopCh:     make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Scheduler) run() {
	defer close(s.stopped)

	jobs := make(map[string]*entry)
	var gen uint64

	disarm := func(e *entry) {
		if e.timer != nil {
			e.timer.Stop()
		}
		close(e.stop)
	}

	cancelExisting := func(id string) bool {
		e, ok := jobs[id]
		if !ok {
			return false
		}
		disarm(e)
		delete(jobs, id)
		return true
	}

	arm := func(id string, e *entry) bool {
		now := s.clk.Now()
		next := e.sched.Next(now)
		if next.IsZero() || !next.After(now) {
			return false
		}
		e.stop = make(chan struct{})
		e.timer = s.clk.NewTimer(next.Sub(now))
		go s.wait(id, e.gen, e.timer, e.stop)
		return true
	}

	for {
		select {
		case <-s.stopCh:
			for _, e := range jobs {
				disarm(e)
			}
			return

		case req := <-s.scheduleCh:
			cancelExisting(req.id)
			gen++
			e := &entry{gen: gen, sched: req.sched, fn: req.fn}
			if !arm(req.id, e) {
				req.resp <- false
				continue
			}
			jobs[req.id] = e
			req.resp <- true

		case req := <-s.cancelCh:
			req.resp <- cancelExisting(req.id)

		case f := <-s.fireCh:
			e, ok := jobs[f.id]
			if !ok || e.gen != f.gen {
				continue
			}
			if e.sched.Recurring() {
				if !arm(f.id, e) {
					delete(jobs, f.id)
				}
			} else {
				delete(jobs, f.id)
			}
			s.logger.Debug("scheduler: fired", slog.String("id", f.id))
			go s.runJob(f.id, e.fn)

		case resp := <-s.pendingCh:
			ids := make([]string, 0, len(jobs))
			for id := range jobs {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			resp <- ids
		}
	}
}

func (s *Scheduler) wait(id string, gen uint64, timer *clock.Timer, stop chan struct{}) {
	select {
	case <-timer.C:
	case <-stop:
		return
	}
	select {
	case s.fireCh <- fireReq{id: id, gen: gen}:
	case <-stop:
	case <-s.stopped:
	}
}

func (s *Scheduler) runJob(id string, fn Job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler: job panicked", slog.String("id", id), slog.Any("panic", r))
		}
	}()
	fn()
}

// Schedule registers fn under id, first cancelling any job already
// registered under the same id. It returns false when the schedule has no
// future firing; nothing is registered in that case.
func (s *Scheduler) Schedule(id string, sched dateutil.Schedule, fn Job) bool {
	if s.closed.Load() {
		return false
	}
	resp := make(chan bool, 1)
	select {
	case s.scheduleCh <- scheduleReq{id: id, sched: sched, fn: fn, resp: resp}:
	case <-s.stopped:
		return false
	}
	return <-resp
}

// Cancel removes the pending job for id and reports whether one existed.
func (s *Scheduler) Cancel(id string) bool {
	if s.closed.Load() {
		return false
	}
	resp := make(chan bool, 1)
	select {
	case s.cancelCh <- cancelReq{id: id, resp: resp}:
	case <-s.stopped:
		return false
	}
	return <-resp
}

// Pending returns the ids of all armed jobs in sorted order.
func (s *Scheduler) Pending() []string {
	if s.closed.Load() {
		return nil
	}
	resp := make(chan []string, 1)
	select {
	case s.pendingCh <- resp:
	case <-s.stopped:
		return nil
	}
	return <-resp
}

// Close stops every timer and the loop. Jobs already running are not interrupted.
func (s *Scheduler) Close() {
	if s.closed.CompareAndSwap(false, true) {
		close(s.stopCh)
	}
	<-s.stopped
}
