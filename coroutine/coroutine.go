// Package coroutine implements the cooperatively-scheduled coroutine
// runtime described in spec component H: a per-coroutine stack of call
// frames, an explicit yield/resume protocol via single-use tokens, and a
// FIFO-scheduled run loop (§4.H, §5).
//
// Nothing in the wider example pack models this directly — the teacher is
// a single-shot query engine with no notion of a suspendable unit of work
// — so this package follows the specification's own state-machine
// description rather than adapting a teacher file, using the same
// plain-struct, explicit-error style as the rest of this module.
package coroutine

import (
	"github.com/google/uuid"

	"github.com/dynvm-project/dynvm/value"
)

// State is a coroutine's position in its lifecycle (§4.H): New -> Ready ->
// Running -> (Waiting -> Ready)* -> Done.
type State uint8

const (
	StateNew State = iota
	StateReady
	StateRunning
	StateWaiting
	StateDone
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateWaiting:
		return "waiting"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Coroutine owns one suspendable unit of work: a stack of frames, its
// lifecycle state, and the completion callback registered for when it
// finishes (§4.H: "on completion any registered native callback is
// invoked exactly once").
type Coroutine struct {
	ID uuid.UUID

	state State
	stack Stack

	onComplete func(result value.Value, err error)
	completed  bool

	sched *Scheduler
}

// NewCoroutine creates a coroutine in state New, owning an empty stack.
// It must be scheduled (Scheduler.Schedule) before RunReady will run it.
func NewCoroutine() *Coroutine {
	return &Coroutine{ID: uuid.New(), state: StateNew}
}

// State reports the coroutine's current lifecycle state.
func (c *Coroutine) State() State { return c.state }

// Stack exposes the coroutine's frame stack for the interpreter to drive.
func (c *Coroutine) Stack() *Stack { return &c.stack }

// OnComplete registers the callback invoked exactly once when the
// coroutine reaches StateDone.
func (c *Coroutine) OnComplete(fn func(result value.Value, err error)) {
	c.onComplete = fn
}

// finish transitions the coroutine to Done and fires its completion
// callback exactly once, regardless of how many times finish is called
// (only the first has any effect) — mirrors "invoked exactly once".
func (c *Coroutine) finish(result value.Value, err error) {
	c.state = StateDone
	if c.completed {
		return
	}
	c.completed = true
	if c.onComplete != nil {
		c.onComplete(result, err)
	}
}

// Yield parks the coroutine and issues a single-use CoroutineToken the
// caller (typically an async native call) can later use to make it Ready
// again (§4.H's yield/resume protocol).
func (c *Coroutine) Yield() *CoroutineToken {
	c.state = StateWaiting
	return &CoroutineToken{co: c}
}

// CoroutineToken is the single-use handle issued when a coroutine
// transitions to Waiting. Resume is a no-op past its first call.
type CoroutineToken struct {
	co   *Coroutine
	used bool
}

// Resume moves the token's coroutine back to Ready and re-enqueues it on
// its scheduler for the next RunReady loop iteration (§4.H: "Tokens are
// single-use").
func (t *CoroutineToken) Resume() {
	if t.used || t.co.state != StateWaiting {
		return
	}
	t.used = true
	t.co.state = StateReady
	t.co.sched.enqueueReady(t.co)
}
