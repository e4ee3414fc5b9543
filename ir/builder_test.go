package ir

import (
	"testing"

	"github.com/dynvm-project/dynvm/strtab"
)

func newGen(name string) (*FunctionIRGen, *strtab.Table) {
	st := strtab.New()
	return NewFunctionIRGen(st, name), st
}

func TestConstantCSEReusesSameInstruction(t *testing.T) {
	g, _ := newGen("f")
	a := g.EmitConstant(g.F.Body, intConst(42))
	b := g.EmitConstant(g.F.Body, intConst(42))
	if a != b {
		t.Fatalf("expected constant CSE to reuse instruction, got %d and %d", a, b)
	}
}

func TestBinaryFoldsConstants(t *testing.T) {
	g, _ := newGen("f")
	a := g.EmitConstant(g.F.Body, intConst(2))
	b := g.EmitConstant(g.F.Body, intConst(3))
	sum := g.EmitBinary(g.F.Body, OpAdd, a, b)
	inst := g.F.Inst(sum)
	if inst.Op != VConstant || inst.Const.I != 5 {
		t.Fatalf("expected folded constant 5, got %+v", inst)
	}
}

func TestCommutativeOperandsNormalizedForCaching(t *testing.T) {
	g, _ := newGen("f")
	sym := g.strings.Insert("x")
	xv := g.F.newInst(VRead)
	xv.LV = LValue{Kind: LModule}
	x := g.F.emit(g.F.Body, xv)
	g.WriteVariable(sym, x, g.F.Body)

	c := g.EmitConstant(g.F.Body, intConst(7))
	// x + c and c + x (as instruction-id order differs) should CSE to the
	// same result once commutative normalization kicks in.
	r1 := g.EmitBinary(g.F.Body, OpAdd, x, c)
	r2 := g.EmitBinary(g.F.Body, OpAdd, c, x)
	if r1 != r2 {
		t.Fatalf("expected commutative normalization to unify %d and %d", r1, r2)
	}
}

func TestUninitializedVariableReadDiagnostic(t *testing.T) {
	g, _ := newGen("f")
	sym := g.strings.Insert("never_assigned")
	id := g.ReadVariable(sym, g.F.Entry)
	if g.F.Inst(id).Op != VError {
		t.Fatalf("expected Error instruction for uninitialized read, got op %d", g.F.Inst(id).Op)
	}
	if len(g.F.Diagnostics) == 0 {
		t.Fatal("expected a diagnostic for uninitialized variable read")
	}
}

func TestTrivialPhiSimplifiesToAlias(t *testing.T) {
	g, _ := newGen("f")
	sym := g.strings.Insert("x")

	thenBlock := g.F.NewBlock()
	endBlock := g.F.NewBlock()
	cond := g.EmitConstant(g.F.Body, Const{Kind: CTrue})
	g.F.SetTerminator(g.F.Body, Terminator{Kind: TBranch, Cond: cond, CondKind: CondIfTrue, Then: thenBlock, Else: endBlock})
	g.F.Seal(thenBlock)

	same := g.EmitConstant(thenBlock, intConst(9))
	g.WriteVariable(sym, same, thenBlock)
	g.F.SetTerminator(thenBlock, Terminator{Kind: TJump, Target: endBlock})

	// on the other path, x is also defined to the very same value
	g.WriteVariable(sym, same, g.F.Body)

	g.F.Seal(endBlock)
	result := g.ReadVariable(sym, endBlock)
	if result != same {
		t.Fatalf("expected trivial phi to collapse to %d, got %d", same, result)
	}
}

func TestFormatFoldsConstantRun(t *testing.T) {
	g, _ := newGen("f")
	a := g.EmitConstant(g.F.Body, Const{Kind: CString, S: g.strings.Insert("hello ")})
	b := g.EmitConstant(g.F.Body, intConst(5))
	c := g.EmitConstant(g.F.Body, Const{Kind: CString, S: g.strings.Insert(" world")})
	result := g.EmitFormat(g.F.Body, []InstID{a, b, c})
	inst := g.F.Inst(result)
	if inst.Op != VConstant || inst.Const.Kind != CString {
		t.Fatalf("expected a single folded string constant, got %+v", inst)
	}
	s, _ := g.strings.Lookup(inst.Const.S)
	if s != "hello 5 world" {
		t.Fatalf("unexpected folded string: %q", s)
	}
}

func TestFormatDoesNotFoldAcrossNonConstant(t *testing.T) {
	g, _ := newGen("f")
	a := g.EmitConstant(g.F.Body, Const{Kind: CString, S: g.strings.Insert("x=")})
	read := g.F.newInst(VRead)
	read.LV = LValue{Kind: LModule}
	nonConst := g.F.emit(g.F.Body, read)
	result := g.EmitFormat(g.F.Body, []InstID{a, nonConst})
	inst := g.F.Inst(result)
	if inst.Op != VFormat {
		t.Fatalf("expected a Format wrapping the unfoldable run, got op %d", inst.Op)
	}
	if len(inst.Args) != 2 {
		t.Fatalf("expected both operands preserved, got %v", inst.Args)
	}
}
