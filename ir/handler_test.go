package ir

import "testing"

// Builds: body publishes x=10, then defers an expression that reads x
// (landing in a handler block whose reverse edge is body), then body
// returns. The handler's ObserveAssign for x should resolve to the
// PublishAssign in body.
func TestHandlerObserverResolvesVisiblePublisher(t *testing.T) {
	g, st := newGen("f")
	sym := st.Insert("x")

	pub := g.F.newInst(VPublishAssign)
	pub.Symbol = sym
	pub.Args = []InstID{g.EmitConstant(g.F.Body, intConst(10))}
	g.F.emit(g.F.Body, pub)

	cur := g.F.Body
	g.PushScope(cur)
	g.lowerDefer(newDefer(newVarRef(sym)), cur)

	WireHandlerObservers(g.F)

	var observeID InstID = InvalidInst
	for _, b := range g.F.Blocks() {
		if !b.IsHandler {
			continue
		}
		for _, id := range b.Insts {
			if g.F.Inst(id).Op == VObserveAssign {
				observeID = id
			}
		}
	}
	if observeID == InvalidInst {
		t.Fatal("expected an ObserveAssign instruction in the handler block")
	}
	ops := g.F.ObserveOperands(observeID)
	found := false
	for _, op := range ops {
		if op == pub.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected ObserveAssign to resolve to publisher %d, got %v", pub.ID, ops)
	}
}
