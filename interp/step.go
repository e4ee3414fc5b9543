package interp

import (
	"github.com/dynvm-project/dynvm/coroutine"
	"github.com/dynvm-project/dynvm/runtime"
	"github.com/dynvm-project/dynvm/strtab"
	"github.com/dynvm-project/dynvm/value"
)

type actionKind int

const (
	actionNone actionKind = iota
	actionCall
	actionReturn
)

// action reports what the dispatch loop (Machine.run) must do after one
// opcode: nothing further, perform a call, or unwind with a return value
// (§4.I).
type action struct {
	kind actionKind

	fn   value.Value
	args []value.Value

	value value.Value
}

// stepOne executes exactly one instruction of f and reports what the
// caller should do next. Straight-line opcodes mutate f's operand stack
// and locals directly and advance f.PC past the instruction; control-flow
// opcodes set f.PC to their target explicitly.
func (m *Machine) stepOne(f *coroutine.UserFrame) (action, error) {
	types := m.ctx.Types
	fd := f.Module.Module.Members[f.Function].Function
	rd := newReader(fd.Code, f.PC)
	op := rd.op()

	switch op {
	case OpConstInt:
		f.Push(boxInt(types, rd.i64()))
	case OpConstFloat:
		f.Push(boxFloat(types, rd.f64()))
	case OpConstString:
		id := strtab.ID(rd.u32())
		f.Push(types.AllocStringBytes([]byte(m.ctx.Strings.Value(id))))
	case OpConstNull:
		f.Push(value.Null)
	case OpConstTrue:
		f.Push(boolValue(true))
	case OpConstFalse:
		f.Push(boolValue(false))

	case OpLoadLocal:
		f.Push(f.Locals[rd.local()])
	case OpStoreLocal:
		idx := rd.local()
		f.Locals[idx] = f.Pop()

	case OpLoadModule:
		idx := int(rd.u32())
		v, err := m.loadModuleMember(f.Module, idx)
		if err != nil {
			return action{}, err
		}
		f.Push(v)
	case OpStoreModule:
		idx := int(rd.u32())
		m.storeModuleMember(f.Module, idx, f.Pop())

	case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpPow, OpShl, OpShr, OpBitAnd, OpBitOr, OpBitXor:
		rhs, lhs := f.Pop(), f.Pop()
		r, err := binaryArith(types, op, lhs, rhs)
		if err != nil {
			return action{}, err
		}
		f.Push(r)
	case OpNeg:
		v := f.Pop()
		r, err := binaryArith(types, OpSub, value.FromInt64(0), v)
		if err != nil {
			return action{}, err
		}
		f.Push(r)
	case OpBitNot:
		v := f.Pop()
		if !v.IsInt() {
			return action{}, &runtime.RuntimeError{Op: "bitnot", Err: "operand is not an Integer"}
		}
		f.Push(value.FromInt64(^v.Int64()))
	case OpNot:
		v := f.Pop()
		f.Push(boolValue(!truthy(v)))

	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		rhs, lhs := f.Pop(), f.Pop()
		r, err := compare(types, op, lhs, rhs)
		if err != nil {
			return action{}, err
		}
		f.Push(r)

	case OpFormat:
		argc := int(rd.u32())
		args := popN(f, argc)
		s, err := formatValues(types, args)
		if err != nil {
			return action{}, err
		}
		f.Push(types.AllocStringBytes([]byte(s)))

	case OpMakeArray:
		f.Push(makeContainer(types, value.TypeArray, popN(f, int(rd.u32()))))
	case OpMakeTuple:
		f.Push(makeContainer(types, value.TypeTuple, popN(f, int(rd.u32()))))
	case OpMakeSet:
		f.Push(makeContainer(types, value.TypeSet, popN(f, int(rd.u32()))))
	case OpMakeMap:
		count := int(rd.u32())
		f.Push(makeContainer(types, value.TypeMap, popN(f, 2*count)))
	case OpMakeRecord:
		_ = rd.u32() // record-template id: field order is already baked into slot indices at compile time
		count := int(rd.u32())
		f.Push(makeContainer(types, value.TypeRecord, popN(f, count)))

	case OpLoadField:
		slot := int(rd.u32())
		rec := f.Pop()
		v, err := loadField(types, rec, slot)
		if err != nil {
			return action{}, err
		}
		f.Push(v)
	case OpStoreField:
		slot := int(rd.u32())
		v := f.Pop()
		rec := f.Pop()
		if err := storeField(types, rec, slot, v); err != nil {
			return action{}, err
		}
	case OpLoadIndex:
		idx := f.Pop()
		c := f.Pop()
		v, err := loadIndex(types, c, idx)
		if err != nil {
			return action{}, err
		}
		f.Push(v)
	case OpStoreIndex:
		v := f.Pop()
		idx := f.Pop()
		c := f.Pop()
		if err := storeIndex(types, c, idx, v); err != nil {
			return action{}, err
		}

	case OpLoadMethod:
		slot := int(rd.u32())
		instance := f.Pop()
		method, err := loadField(types, instance, slot)
		if err != nil {
			return action{}, err
		}
		f.Push(method)
		f.Push(instance)
	case OpCallMethod:
		argc := int(rd.u32())
		args := popN(f, argc)
		instance := f.Pop()
		method := f.Pop()
		f.PC = rd.pc
		return action{kind: actionCall, fn: method, args: append([]value.Value{instance}, args...)}, nil
	case OpCall:
		argc := int(rd.u32())
		args := popN(f, argc)
		fn := f.Pop()
		f.PC = rd.pc
		return action{kind: actionCall, fn: fn, args: args}, nil

	case OpJump:
		f.PC = rd.u32()
		return action{}, nil
	case OpBranchTrue:
		target := rd.u32()
		f.PC = rd.pc
		if truthy(f.Pop()) {
			f.PC = target
		}
		return action{}, nil
	case OpBranchFalse:
		target := rd.u32()
		f.PC = rd.pc
		if !truthy(f.Pop()) {
			f.PC = target
		}
		return action{}, nil
	case OpBranchNull:
		target := rd.u32()
		f.PC = rd.pc
		if f.Pop().IsNull() {
			f.PC = target
		}
		return action{}, nil
	case OpBranchNotNull:
		target := rd.u32()
		f.PC = rd.pc
		if !f.Pop().IsNull() {
			f.PC = target
		}
		return action{}, nil

	case OpReturn:
		return action{kind: actionReturn, value: f.Pop()}, nil
	case OpAssertFail:
		id := strtab.ID(rd.u32())
		return action{}, &runtime.Exception{Message: "assertion failed: " + m.ctx.Strings.Value(id)}
	case OpRethrow:
		v := f.Pop()
		return action{}, &runtime.Exception{Message: "rethrow", Value: v}

	case OpPop:
		f.Pop()
	case OpDup:
		v := f.Pop()
		f.Push(v)
		f.Push(v)

	default:
		return action{}, &runtime.RuntimeError{Op: "dispatch", Err: "unknown opcode"}
	}

	f.PC = rd.pc
	return action{}, nil
}

func popN(f *coroutine.UserFrame, n int) []value.Value {
	out := make([]value.Value, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = f.Pop()
	}
	return out
}

// truthy implements §4.C's "truthy" predicate: everything but Null and
// false is truthy.
func truthy(v value.Value) bool {
	return v != value.Null && v != boolValue(false)
}
