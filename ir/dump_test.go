package ir

import (
	"strconv"
	"strings"
	"testing"
)

func TestDumpIsDeterministicAndOmitsDeadInstructions(t *testing.T) {
	g, st := newGen("f")
	unused := g.EmitConstant(g.F.Body, intConst(99))
	used := g.EmitConstant(g.F.Body, intConst(1))
	g.F.SetTerminator(g.F.Body, Terminator{Kind: TReturn, Value: used, Exit: g.F.Exit})
	DeadCodeEliminate(g.F)

	out1 := Dump(g.F, st)
	out2 := Dump(g.F, st)
	if out1 != out2 {
		t.Fatal("Dump should be deterministic across repeated calls")
	}
	if containsInstID(out1, unused) {
		t.Fatalf("dead instruction v%d should not appear in dump:\n%s", unused, out1)
	}
	if !containsInstID(out1, used) {
		t.Fatalf("live instruction v%d should appear in dump:\n%s", used, out1)
	}
}

func containsInstID(dump string, id InstID) bool {
	return strings.Contains(dump, "v"+strconv.Itoa(int(id))+" =")
}
