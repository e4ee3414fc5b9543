package interp

import (
	"github.com/dynvm-project/dynvm/coroutine"
	"github.com/dynvm-project/dynvm/module"
	"github.com/dynvm-project/dynvm/runtime"
	"github.com/dynvm-project/dynvm/value"
)

// funcEntry is what a heap Function value's embedded function-id field
// indexes into: the compiled bytecode body (module + member index) it
// runs when called (§6, §4.I).
type funcEntry struct {
	module *module.LoadedModule
	member int
}

// Machine runs compiled functions against one Context's heap, types, and
// module registry (§4.I). It owns the function table backing every
// heap-resident Function value: the Function's one real payload is a
// small integer indexing here, keeping TypeFunction's own layout tiny.
type Machine struct {
	ctx     *runtime.Context
	funcs   []funcEntry
	globals map[*module.LoadedModule]*modGlobals
}

// NewMachine returns a Machine bound to ctx.
func NewMachine(ctx *runtime.Context) *Machine {
	return &Machine{ctx: ctx}
}

// MakeFunction allocates a callable Function value for one compiled
// function body. env is the closure environment to capture, or value.Null
// for a function with no captures.
func (m *Machine) MakeFunction(mod *module.LoadedModule, memberIdx int, env value.Value) value.Value {
	id := len(m.funcs)
	m.funcs = append(m.funcs, funcEntry{module: mod, member: memberIdx})
	fn := m.ctx.Types.Alloc(value.TypeFunction, 0)
	m.ctx.Types.SetField(fn, 0, value.FromInt64(int64(id)))
	m.ctx.Types.SetField(fn, 1, env)
	return fn
}

// Call invokes fn with args and runs it to completion, synchronously
// draining the single coroutine this spawns (§4.H: the common,
// non-suspending call path never leaves RunReady's first pass).
func (m *Machine) Call(fn value.Value, args []value.Value) (value.Value, error) {
	co := coroutine.NewCoroutine()
	m.ctx.Heap.AddRoot(co.Stack())

	if err := m.pushCallFrame(co, fn, args); err != nil {
		return value.Null, err
	}

	sched := coroutine.NewScheduler()
	sched.Schedule(co)

	var result value.Value
	var callErr error
	co.OnComplete(func(r value.Value, err error) { result, callErr = r, err })

	sched.RunReady(func(c *coroutine.Coroutine) (*coroutine.CoroutineToken, value.Value, error) {
		return m.run(c)
	})

	return result, callErr
}

// CallGuarded runs fn the way std.catch_panic(f) does (§4.I): an
// in-flight exception stops unwinding here instead of failing the whole
// call. ok reports whether fn returned normally; exc is populated only
// when ok is false.
//
// This is the Go-level entry point for the guarded-call semantics;
// exposing std.catch_panic as an ordinary bytecode-callable native would
// need a deferred-native-result convention OpCall doesn't support yet —
// left for when the interpreter grows true native calls.
func (m *Machine) CallGuarded(fn value.Value, args []value.Value) (ok bool, result value.Value, exc *runtime.Exception) {
	co := coroutine.NewCoroutine()
	m.ctx.Heap.AddRoot(co.Stack())

	co.Stack().Push(coroutine.Frame{Kind: coroutine.FrameCatch, Catch: &coroutine.CatchFrame{ResumePC: 0}})
	if err := m.pushCallFrame(co, fn, args); err != nil {
		return false, value.Null, &runtime.Exception{Message: err.Error()}
	}

	sched := coroutine.NewScheduler()
	sched.Schedule(co)

	var guardResult value.Value
	var guardErr error
	co.OnComplete(func(r value.Value, err error) { guardResult, guardErr = r, err })
	sched.RunReady(func(c *coroutine.Coroutine) (*coroutine.CoroutineToken, value.Value, error) {
		return m.run(c)
	})

	if guardErr != nil {
		return false, value.Null, &runtime.Exception{Message: guardErr.Error()}
	}
	ok = m.ctx.Types.Elem(guardResult, 0) == boolValue(true)
	payload := m.ctx.Types.Elem(guardResult, 1)
	if !ok {
		exc = &runtime.Exception{Value: payload}
		if m.ctx.Types.TypeOf(payload) == value.PublicException {
			exc.Message = string(m.ctx.Types.StringBytes(m.ctx.Types.Field(payload, 0)))
		}
		return false, value.Null, exc
	}
	return true, payload, nil
}

// pushCallFrame resolves fn to its function body and pushes a fresh
// UserFrame for it onto co's stack, with args bound to the first Params
// local slots (§4.I, §6).
func (m *Machine) pushCallFrame(co *coroutine.Coroutine, fn value.Value, args []value.Value) error {
	if m.ctx.Types.TypeOf(fn) != value.PublicFunction {
		return &runtime.RuntimeError{Op: "call", Err: "value is not callable"}
	}
	id := int(m.ctx.Types.Field(fn, 0).Int64())
	if id < 0 || id >= len(m.funcs) {
		return &runtime.RuntimeError{Op: "call", Err: "function id out of range"}
	}
	entry := m.funcs[id]
	fd := entry.module.Module.Members[entry.member].Function
	if fd == nil {
		return &runtime.RuntimeError{Op: "call", Err: "member is not a function"}
	}
	if len(args) != fd.Params {
		return &runtime.RuntimeError{Op: "call", Err: "argument count mismatch"}
	}
	locals := make([]value.Value, fd.Params+fd.Locals)
	copy(locals, args)
	handlers := make([]coroutine.HandlerEntry, len(fd.Handlers))
	for i, h := range fd.Handlers {
		handlers[i] = coroutine.HandlerEntry{From: h.From, To: h.To, Target: h.Target}
	}
	co.Stack().Push(coroutine.Frame{
		Kind: coroutine.FrameUser,
		User: &coroutine.UserFrame{
			Module:   entry.module,
			Function: entry.member,
			Locals:   locals,
			Handlers: handlers,
			Handler:  -1,
		},
	})
	return nil
}

// run drives c's stack one opcode at a time until it empties (the call
// returned) or an opcode asks to suspend (§4.H, §4.I).
func (m *Machine) run(c *coroutine.Coroutine) (*coroutine.CoroutineToken, value.Value, error) {
	for c.Stack().Len() > 0 {
		top := c.Stack().Top()
		if top.Kind != coroutine.FrameUser {
			return nil, value.Null, &runtime.RuntimeError{Op: "run", Err: "non-user frame reached by the dispatch loop"}
		}
		act, err := m.stepOne(top.User)
		if err != nil {
			exc := toException(err)
			handled, done, result := m.unwind(c, exc)
			if !handled {
				return nil, value.Null, exc
			}
			if done {
				return nil, result, nil
			}
			continue
		}
		switch act.kind {
		case actionNone:
		case actionCall:
			if err := m.pushCallFrame(c, act.fn, act.args); err != nil {
				exc := toException(err)
				handled, done, result := m.unwind(c, exc)
				if !handled {
					return nil, value.Null, exc
				}
				if done {
					return nil, result, nil
				}
			}
		case actionReturn:
			if done, result := m.returnValue(c, act.value); done {
				return nil, result, nil
			}
		}
	}
	return nil, value.Null, nil
}

// returnValue pops the finished UserFrame and delivers its result to
// whatever is now on top: the caller's operand stack, or — if a CatchFrame
// intervenes — the caller resumes past std.catch_panic's call site with a
// successful Result (§4.I). done reports whether the coroutine's entire
// call has now produced its final value (the stack drained completely).
func (m *Machine) returnValue(c *coroutine.Coroutine, v value.Value) (done bool, result value.Value) {
	c.Stack().Pop()
	if c.Stack().Len() == 0 {
		return true, v
	}
	top := c.Stack().Top()
	if top.Kind == coroutine.FrameCatch {
		catch := top.Catch
		c.Stack().Pop()
		res := m.makeResult(true, v)
		if c.Stack().Len() == 0 {
			return true, res
		}
		caller := c.Stack().Top()
		caller.User.PC = catch.ResumePC
		caller.User.Push(res)
		return false, value.Null
	}
	top.User.Push(v)
	return false, value.Null
}

// makeResult builds the (ok, value) pair std.catch_panic(f) returns — a
// plain two-element Tuple, needing no dedicated heap type.
func (m *Machine) makeResult(ok bool, v value.Value) value.Value {
	r := m.ctx.Types.Alloc(value.TypeTuple, 2)
	m.ctx.Types.SetElem(r, 0, boolValue(ok))
	m.ctx.Types.SetElem(r, 1, v)
	return r
}

func toException(err error) *runtime.Exception {
	if exc, ok := err.(*runtime.Exception); ok {
		return exc
	}
	return &runtime.Exception{Message: err.Error()}
}

// unwind walks the stack looking for a handler. It first checks the
// current top UserFrame's own handler table for the pc range covering its
// last-executed instruction; if none match, it pops the frame and
// continues on the caller, stopping (and reporting a catch) at the first
// CatchFrame it meets (§4.I). handled reports whether anything stopped the
// unwind (a matching handler or a CatchFrame); done additionally reports
// whether that CatchFrame was the coroutine's outermost frame, in which
// case result is the call's final (failed) Result.
func (m *Machine) unwind(c *coroutine.Coroutine, exc *runtime.Exception) (handled, done bool, result value.Value) {
	for c.Stack().Len() > 0 {
		top := c.Stack().Top()
		switch top.Kind {
		case coroutine.FrameUser:
			uf := top.User
			for _, h := range uf.Handlers {
				if uf.PC >= h.From && uf.PC < h.To {
					uf.PC = h.Target
					uf.Operands = uf.Operands[:0]
					uf.Push(m.boxException(exc))
					return true, false, value.Null
				}
			}
			c.Stack().Pop()
		case coroutine.FrameCatch:
			catch := top.Catch
			c.Stack().Pop()
			res := m.makeResult(false, m.boxException(exc))
			if c.Stack().Len() == 0 {
				return true, true, res
			}
			caller := c.Stack().Top()
			caller.User.PC = catch.ResumePC
			caller.User.Push(res)
			return true, false, value.Null
		default:
			c.Stack().Pop()
		}
	}
	return false, false, value.Null
}

// boxException allocates the heap Exception carrying exc's message (§4.G's
// Exception public type).
func (m *Machine) boxException(exc *runtime.Exception) value.Value {
	if exc.Value != value.Null {
		return exc.Value
	}
	v := m.ctx.Types.Alloc(value.TypeException, 2)
	m.ctx.Types.SetField(v, 0, m.ctx.Types.AllocStringBytes([]byte(exc.Message)))
	m.ctx.Types.SetField(v, 1, value.Null)
	return v
}
