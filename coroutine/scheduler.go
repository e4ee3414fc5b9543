package coroutine

import (
	"container/list"

	"github.com/dynvm-project/dynvm/value"
)

// Scheduler is the FIFO run queue rooted in a Context (§4.H, §5): the
// coroutine enqueued first runs first, and a coroutine launched from a
// running coroutine runs after everything already queued at launch time.
// No goroutines or locking are involved — the VM is single-OS-thread
// cooperative (§5), so a plain container/list-backed queue is the whole
// mechanism; nothing in the example pack wires a job-queue library for
// this, and reaching for one would misrepresent a deliberately
// unconcurrent scheduler as a concurrent one.
type Scheduler struct {
	ready *list.List // of *Coroutine
}

// NewScheduler returns an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{ready: list.New()}
}

// Schedule enqueues a New or Ready coroutine to run, attaching it to this
// scheduler for future token-driven resumes.
func (s *Scheduler) Schedule(c *Coroutine) {
	c.sched = s
	c.state = StateReady
	s.ready.PushBack(c)
}

func (s *Scheduler) enqueueReady(c *Coroutine) {
	s.ready.PushBack(c)
}

// Step is the per-coroutine execution the scheduler invokes; the
// interpreter provides it as RunReady's argument.
type Step func(c *Coroutine) (yielded *CoroutineToken, result value.Value, err error)

// RunReady drains the ready queue, running step once per dequeued
// coroutine (§4.H: "dequeues and runs until the queue drains; each
// coroutine runs until it yields (Waiting) or completes (Done)"). A
// coroutine a Step call re-enqueues (directly, or via a token Resume that
// fires synchronously) is picked up in the same RunReady call, matching
// the spec's FIFO ordering guarantee.
func (s *Scheduler) RunReady(step Step) {
	for s.ready.Len() > 0 {
		front := s.ready.Front()
		s.ready.Remove(front)
		c := front.Value.(*Coroutine)
		if c.state != StateReady {
			continue
		}
		c.state = StateRunning
		token, result, err := step(c)
		switch {
		case token != nil:
			// step already parked the coroutine via Coroutine.Yield(); token
			// is handed back to whatever async call issued it.
		case c.state == StateRunning:
			c.finish(result, err)
		}
	}
}
