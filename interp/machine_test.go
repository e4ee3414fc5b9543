package interp

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/dynvm-project/dynvm/module"
	"github.com/dynvm-project/dynvm/runtime"
	"github.com/dynvm-project/dynvm/value"
)

// asm is a tiny two-pass assembler for building test bytecode without
// hand-counting byte offsets, mirroring how the ir package's tests build
// instruction sequences programmatically rather than from literal byte
// slices.
type asm struct {
	code   []byte
	labels map[string]uint32
	fixups []fixup
}

type fixup struct {
	pos   int
	label string
}

func newAsm() *asm { return &asm{labels: map[string]uint32{}} }

func (a *asm) mark(name string) { a.labels[name] = uint32(len(a.code)) }

func (a *asm) op(o Op) *asm { a.code = append(a.code, byte(o)); return a }

func (a *asm) u32(v uint32) *asm {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	a.code = append(a.code, buf[:]...)
	return a
}

func (a *asm) i64(v int64) *asm {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	a.code = append(a.code, buf[:]...)
	return a
}

func (a *asm) f64(v float64) *asm {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	a.code = append(a.code, buf[:]...)
	return a
}

func (a *asm) local(v uint16) *asm {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	a.code = append(a.code, buf[:]...)
	return a
}

// jump emits o followed by a placeholder u32 patched to label's address
// once the whole function is assembled.
func (a *asm) jump(o Op, label string) *asm {
	a.op(o)
	a.fixups = append(a.fixups, fixup{pos: len(a.code), label: label})
	return a.u32(0)
}

func (a *asm) finish() []byte {
	for _, fx := range a.fixups {
		binary.LittleEndian.PutUint32(a.code[fx.pos:], a.labels[fx.label])
	}
	return a.code
}

// newTestModule wraps fd as member 0 of a single-member module, loaded
// directly (bypassing the module.Source/loader machinery, which is
// exercised separately in package module's own tests).
func newTestModule(name string, fd *module.FunctionDef) *module.LoadedModule {
	return &module.LoadedModule{
		Name: name,
		Module: &module.Module{
			Name:        name,
			Members:     []module.Member{{Kind: module.MemberFunction, Function: fd}},
			Initializer: -1,
		},
		Exports: map[string]int{},
	}
}

func TestCallFibonacciRecursive(t *testing.T) {
	// fib(n): if n < 2 { return n } return fib(n-1) + fib(n-2)
	a := newAsm()
	a.op(OpLoadLocal).local(0)
	a.op(OpConstInt).i64(2)
	a.op(OpLt)
	a.jump(OpBranchFalse, "recurse")
	a.op(OpLoadLocal).local(0)
	a.op(OpReturn)
	a.mark("recurse")
	a.op(OpLoadModule).u32(0)
	a.op(OpLoadLocal).local(0)
	a.op(OpConstInt).i64(1)
	a.op(OpSub)
	a.op(OpCall).u32(1)
	a.op(OpLoadModule).u32(0)
	a.op(OpLoadLocal).local(0)
	a.op(OpConstInt).i64(2)
	a.op(OpSub)
	a.op(OpCall).u32(1)
	a.op(OpAdd)
	a.op(OpReturn)

	fd := &module.FunctionDef{Params: 1, Locals: 0, Code: a.finish()}
	lm := newTestModule("fib", fd)

	ctx := runtime.NewContext(runtime.Default())
	m := NewMachine(ctx)
	fn, err := m.loadModuleMember(lm, 0)
	if err != nil {
		t.Fatalf("loading fib function: %v", err)
	}

	result, err := m.Call(fn, []value.Value{value.FromInt64(17)})
	if err != nil {
		t.Fatalf("calling fib(17): %v", err)
	}
	if !result.IsInt() || result.Int64() != 1597 {
		t.Fatalf("fib(17) = %v, want 1597", result)
	}
}

func TestCallGuardedCatchesDivideByZero(t *testing.T) {
	a := newAsm()
	a.op(OpConstInt).i64(1)
	a.op(OpConstInt).i64(0)
	a.op(OpDiv)
	a.op(OpReturn)

	fd := &module.FunctionDef{Params: 0, Locals: 0, Code: a.finish()}
	lm := newTestModule("boom", fd)

	ctx := runtime.NewContext(runtime.Default())
	m := NewMachine(ctx)
	fn, err := m.loadModuleMember(lm, 0)
	if err != nil {
		t.Fatalf("loading boom function: %v", err)
	}

	ok, _, exc := m.CallGuarded(fn, nil)
	if ok {
		t.Fatalf("expected CallGuarded to report failure for a division by zero")
	}
	if exc == nil || exc.Message == "" {
		t.Fatalf("expected a populated exception, got %v", exc)
	}
}

func TestCallGuardedPassesThroughSuccess(t *testing.T) {
	a := newAsm()
	a.op(OpConstInt).i64(41)
	a.op(OpConstInt).i64(1)
	a.op(OpAdd)
	a.op(OpReturn)

	fd := &module.FunctionDef{Params: 0, Locals: 0, Code: a.finish()}
	lm := newTestModule("ok", fd)

	ctx := runtime.NewContext(runtime.Default())
	m := NewMachine(ctx)
	fn, err := m.loadModuleMember(lm, 0)
	if err != nil {
		t.Fatalf("loading ok function: %v", err)
	}

	ok, result, exc := m.CallGuarded(fn, nil)
	if !ok || exc != nil {
		t.Fatalf("expected a successful guarded call, got ok=%v exc=%v", ok, exc)
	}
	if !result.IsInt() || result.Int64() != 42 {
		t.Fatalf("result = %v, want 42", result)
	}
}
