package ir

import (
	"math"
	"testing"
)

func TestEvalArithOverflow(t *testing.T) {
	_, err := evalBinary(OpAdd, intConst(math.MaxInt64), intConst(1))
	if err == nil {
		t.Fatal("expected overflow error")
	}
	if err.(*EvalError).Kind != ErrIntegerOverflow {
		t.Fatalf("wrong error kind: %v", err.(*EvalError).Kind)
	}
}

func TestEvalDivideByZero(t *testing.T) {
	_, err := evalBinary(OpDiv, intConst(1), intConst(0))
	if err == nil || err.(*EvalError).Kind != ErrDivideByZero {
		t.Fatalf("expected divide by zero, got %v", err)
	}
}

func TestEvalNegativeShift(t *testing.T) {
	_, err := evalBinary(OpShl, intConst(1), intConst(-1))
	if err == nil || err.(*EvalError).Kind != ErrNegativeShift {
		t.Fatalf("expected negative shift error, got %v", err)
	}
}

func TestEvalZeroToNegativePowerIsDivideByZero(t *testing.T) {
	_, err := evalBinary(OpPow, intConst(0), intConst(-1))
	if err == nil || err.(*EvalError).Kind != ErrDivideByZero {
		t.Fatalf("expected 0**negative to be DivideByZero, got %v", err)
	}
}

func TestEvalImaginaryPower(t *testing.T) {
	_, err := evalBinary(OpPow, floatConst(-1), floatConst(0.5))
	if err == nil || err.(*EvalError).Kind != ErrImaginaryPower {
		t.Fatalf("expected imaginary power error, got %v", err)
	}
}

func TestEvalMixedIntFloatPromotion(t *testing.T) {
	r, err := evalBinary(OpAdd, intConst(2), floatConst(0.5))
	if err != nil {
		t.Fatal(err)
	}
	if r.Kind != CFloat || r.F != 2.5 {
		t.Fatalf("want float 2.5, got %+v", r)
	}
}

func TestEvalIntFloatRoundTripEquality(t *testing.T) {
	r, err := evalBinary(OpEq, intConst(3), floatConst(3.0))
	if err != nil {
		t.Fatal(err)
	}
	if r.Kind != CTrue {
		t.Fatalf("3 == 3.0 should be true, got %+v", r)
	}
	r2, _ := evalBinary(OpEq, intConst(3), floatConst(3.5))
	if r2.Kind != CFalse {
		t.Fatalf("3 == 3.5 should be false, got %+v", r2)
	}
}

func TestEvalNaNNeverEqual(t *testing.T) {
	nan := floatConst(math.NaN())
	r, _ := evalBinary(OpEq, nan, nan)
	if r.Kind != CFalse {
		t.Fatal("NaN should never equal NaN")
	}
	lt, _ := evalBinary(OpLt, nan, floatConst(1))
	if lt.Kind != CFalse {
		t.Fatal("NaN should satisfy no ordering relation")
	}
}

func TestEvalUnaryNegateMinIntOverflows(t *testing.T) {
	_, err := evalUnary(OpNeg, intConst(math.MinInt64))
	if err == nil || err.(*EvalError).Kind != ErrIntegerOverflow {
		t.Fatalf("expected overflow negating MinInt64, got %v", err)
	}
}

func TestEvalUnaryNot(t *testing.T) {
	r, _ := evalUnary(OpNot, Const{Kind: CNull})
	if r.Kind != CTrue {
		t.Fatal("!null should be true")
	}
	r2, _ := evalUnary(OpNot, intConst(0))
	if r2.Kind != CFalse {
		t.Fatal("!0 should be false (0 is truthy)")
	}
}

func TestEvalFormatRendersStringsVerbatimAndSymbolsHashed(t *testing.T) {
	strs := map[uint32]string{1: "hello ", 2: "world"}
	resolve := func(id uint32) string { return strs[id] }
	out, err := EvalFormat([]Const{
		{Kind: CString, S: 1},
		{Kind: CInteger, I: 5},
		{Kind: CString, S: 2},
		{Kind: CSymbol, S: 2},
	}, resolve)
	if err != nil {
		t.Fatal(err)
	}
	if out != "hello 5world#world" {
		t.Fatalf("unexpected format output: %q", out)
	}
}
