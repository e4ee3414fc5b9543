package interp

import (
	"math"

	"github.com/dynvm-project/dynvm/runtime"
	"github.com/dynvm-project/dynvm/value"
)

// unbox splits v into its numeric components. ok is false for a
// non-numeric Value, matching the constant evaluator's TypeError path
// (§4.C) but at runtime instead of compile time.
func unbox(types *value.TypeRegistry, v value.Value) (isFloat bool, i int64, f float64, ok bool) {
	if v.IsInt() {
		return false, v.Int64(), 0, true
	}
	if !v.IsHeap() {
		return false, 0, 0, false
	}
	switch types.TypeOf(v) {
	case value.PublicInteger:
		return false, types.Int64Value(v), 0, true
	case value.PublicFloat:
		return true, 0, types.Float64Value(v), true
	default:
		return false, 0, 0, false
	}
}

func boxInt(types *value.TypeRegistry, i int64) value.Value {
	if value.FitsEmbedded(i) {
		return value.FromInt64(i)
	}
	return types.AllocInt64(i)
}

func boxFloat(types *value.TypeRegistry, f float64) value.Value {
	return types.AllocFloat64(f)
}

// binaryArith implements the arithmetic operations (§4.I: "arithmetic
// (delegating to runtime math)"), sharing the checked-integer /
// float-promotion semantics of the compiler's constant evaluator
// (ir.evalArith) for + - * / % and float **, re-derived here rather than
// imported since this layer operates over boxed runtime value.Values, not
// compile-time ir.Consts. Integer ** is not implemented: OpPow with two
// integer operands reports a RuntimeError ("not an integer operator").
func binaryArith(types *value.TypeRegistry, op Op, lhs, rhs value.Value) (value.Value, error) {
	lf, li, lfv, ok1 := unbox(types, lhs)
	rf, ri, rfv, ok2 := unbox(types, rhs)
	if !ok1 || !ok2 {
		return value.Null, &runtime.RuntimeError{Op: "arith", Err: "operand is not numeric"}
	}
	if lf || rf {
		a, b := lfv, rfv
		if !lf {
			a = float64(li)
		}
		if !rf {
			b = float64(ri)
		}
		r, err := floatOp(op, a, b)
		if err != nil {
			return value.Null, err
		}
		return boxFloat(types, r), nil
	}
	r, err := intOp(op, li, ri)
	if err != nil {
		return value.Null, err
	}
	return boxInt(types, r), nil
}

func floatOp(op Op, a, b float64) (float64, error) {
	switch op {
	case OpAdd:
		return a + b, nil
	case OpSub:
		return a - b, nil
	case OpMul:
		return a * b, nil
	case OpDiv:
		return a / b, nil
	case OpMod:
		return math.Mod(a, b), nil
	case OpPow:
		if a < 0 && b != math.Trunc(b) {
			return 0, &runtime.RuntimeError{Op: "pow", Err: "negative base raised to a fractional power"}
		}
		return math.Pow(a, b), nil
	default:
		return 0, &runtime.RuntimeError{Op: "arith", Err: "not a float operator"}
	}
}

func intOp(op Op, a, b int64) (int64, error) {
	switch op {
	case OpAdd:
		r, ok := addOverflow(a, b)
		if !ok {
			return 0, &runtime.RuntimeError{Op: "add", Err: "integer overflow"}
		}
		return r, nil
	case OpSub:
		r, ok := subOverflow(a, b)
		if !ok {
			return 0, &runtime.RuntimeError{Op: "sub", Err: "integer overflow"}
		}
		return r, nil
	case OpMul:
		r, ok := mulOverflow(a, b)
		if !ok {
			return 0, &runtime.RuntimeError{Op: "mul", Err: "integer overflow"}
		}
		return r, nil
	case OpDiv:
		if b == 0 {
			return 0, &runtime.RuntimeError{Op: "div", Err: "division by zero"}
		}
		if a == math.MinInt64 && b == -1 {
			return 0, &runtime.RuntimeError{Op: "div", Err: "integer overflow"}
		}
		return a / b, nil
	case OpMod:
		if b == 0 {
			return 0, &runtime.RuntimeError{Op: "mod", Err: "division by zero"}
		}
		return a % b, nil
	case OpBitAnd:
		return a & b, nil
	case OpBitOr:
		return a | b, nil
	case OpBitXor:
		return a ^ b, nil
	case OpShl, OpShr:
		if b < 0 {
			return 0, &runtime.RuntimeError{Op: "shift", Err: "negative shift amount"}
		}
		if b > 63 {
			return 0, &runtime.RuntimeError{Op: "shift", Err: "shift amount overflow"}
		}
		if op == OpShl {
			return a << uint(b), nil
		}
		return a >> uint(b), nil
	default:
		return 0, &runtime.RuntimeError{Op: "arith", Err: "not an integer operator"}
	}
}

func addOverflow(a, b int64) (int64, bool) {
	r := a + b
	if (b > 0 && r < a) || (b < 0 && r > a) {
		return 0, false
	}
	return r, true
}

func subOverflow(a, b int64) (int64, bool) {
	r := a - b
	if (b < 0 && r < a) || (b > 0 && r > a) {
		return 0, false
	}
	return r, true
}

func mulOverflow(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	r := a * b
	if r/b != a {
		return 0, false
	}
	return r, true
}

// compare implements the ordering/equality operators (§4.I: "comparison").
func compare(types *value.TypeRegistry, op Op, lhs, rhs value.Value) (value.Value, error) {
	if op == OpEq || op == OpNe {
		eq := valuesEqual(types, lhs, rhs)
		if op == OpNe {
			eq = !eq
		}
		return boolValue(eq), nil
	}
	_, li, lfv, ok1 := unbox(types, lhs)
	_, ri, rfv, ok2 := unbox(types, rhs)
	if !ok1 || !ok2 {
		return value.Null, &runtime.RuntimeError{Op: "compare", Err: "operand is not numeric"}
	}
	lf, rf := !lhs.IsInt(), !rhs.IsInt()
	a, b := float64(li), float64(ri)
	if lf {
		a = lfv
	}
	if rf {
		b = rfv
	}
	var result bool
	switch op {
	case OpLt:
		result = a < b
	case OpLe:
		result = a <= b
	case OpGt:
		result = a > b
	case OpGe:
		result = a >= b
	default:
		return value.Null, &runtime.RuntimeError{Op: "compare", Err: "not a comparison operator"}
	}
	return boolValue(result), nil
}

func valuesEqual(types *value.TypeRegistry, lhs, rhs value.Value) bool {
	lf, li, lfv, lok := unbox(types, lhs)
	rf, ri, rfv, rok := unbox(types, rhs)
	if lok && rok {
		a, b := float64(li), float64(ri)
		if lf {
			a = lfv
		}
		if rf {
			b = rfv
		}
		if lf || rf {
			return a == b && !math.IsNaN(a) && !math.IsNaN(b)
		}
		return li == ri
	}
	return lhs == rhs
}

func boolValue(b bool) value.Value {
	if b {
		return value.FromInt64(1)
	}
	return value.FromInt64(0)
}
