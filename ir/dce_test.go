package ir

import "testing"

func TestDeadCodeEliminationRemovesUnusedPureInstructions(t *testing.T) {
	g, _ := newGen("f")
	unused := g.EmitConstant(g.F.Body, intConst(123))
	used := g.EmitConstant(g.F.Body, intConst(7))
	g.F.SetTerminator(g.F.Body, Terminator{Kind: TReturn, Value: used, Exit: g.F.Exit})

	DeadCodeEliminate(g.F)

	if !g.F.IsDead(unused) {
		t.Fatalf("unused constant %d should be dead", unused)
	}
	if g.F.IsDead(used) {
		t.Fatalf("constant %d referenced by return should stay live", used)
	}
}

func TestDeadCodeEliminationKeepsSideEffectingCallsAlive(t *testing.T) {
	g, _ := newGen("f")
	callee := g.EmitConstant(g.F.Body, intConst(1))
	v := g.F.newInst(VCall)
	v.Args = []InstID{callee}
	call := g.F.emit(g.F.Body, v)
	g.F.SetTerminator(g.F.Body, Terminator{Kind: TReturn, Value: InvalidInst, Exit: g.F.Exit})

	DeadCodeEliminate(g.F)

	if g.F.IsDead(call) {
		t.Fatal("a Call instruction must survive DCE even with an unused result")
	}
	if g.F.IsDead(callee) {
		t.Fatal("a live call's operand must also survive DCE")
	}
}

func TestDeadCodeEliminationPreservesHandlerObserverPublishers(t *testing.T) {
	g, st := newGen("f")
	sym := st.Insert("x")

	pub := g.F.newInst(VPublishAssign)
	pub.Symbol = sym
	pub.Args = []InstID{g.EmitConstant(g.F.Body, intConst(10))}
	g.F.emit(g.F.Body, pub)

	g.PushScope(g.F.Body)
	g.lowerDefer(newDefer(newVarRef(sym)), g.F.Body)
	WireHandlerObservers(g.F)
	g.F.SetTerminator(g.F.Body, Terminator{Kind: TReturn, Value: InvalidInst, Exit: g.F.Exit})

	DeadCodeEliminate(g.F)

	if g.F.IsDead(pub.ID) {
		t.Fatal("a PublishAssign reachable from a live ObserveAssign must survive DCE")
	}
}
