package ir

import "testing"

// Builds a diamond CFG: entry -> (a, b) -> merge, rooted at a synthetic
// entry distinct from Function.Entry (BuildDomTree only cares about
// Function.Entry/Block wiring, so we drive it directly).
func buildDiamond(t *testing.T) (*Function, BlockID, BlockID, BlockID, BlockID) {
	t.Helper()
	f := NewFunction(0)
	root := f.Body
	a := f.NewBlock()
	b := f.NewBlock()
	merge := f.NewBlock()

	cond := f.newInst(VConstant)
	cond.Const = Const{Kind: CTrue}
	f.emit(root, cond)

	f.SetTerminator(root, Terminator{Kind: TBranch, Cond: cond.ID, CondKind: CondIfTrue, Then: a, Else: b})
	f.Seal(a)
	f.Seal(b)
	f.SetTerminator(a, Terminator{Kind: TJump, Target: merge})
	f.SetTerminator(b, Terminator{Kind: TJump, Target: merge})
	f.Seal(merge)
	return f, root, a, b, merge
}

func TestDomTreeDiamond(t *testing.T) {
	f, root, a, b, merge := buildDiamond(t)
	f.Entry = root // drive BuildDomTree from our synthetic root
	dt := BuildDomTree(f)

	if !dt.Dominates(root, a) || !dt.Dominates(root, b) || !dt.Dominates(root, merge) {
		t.Fatal("root must dominate every block in the diamond")
	}
	if dt.Dominates(a, b) || dt.Dominates(b, a) {
		t.Fatal("sibling branches must not dominate each other")
	}
	if dt.Dominates(a, merge) || dt.Dominates(b, merge) {
		t.Fatal("neither branch alone dominates the merge point")
	}
	idom, ok := dt.IDom(merge)
	if !ok || idom != root {
		t.Fatalf("merge's immediate dominator should be root, got %d ok=%v", idom, ok)
	}
}

func TestDomTreeUnreachableBlockNeverDominated(t *testing.T) {
	f, root, _, _, _ := buildDiamond(t)
	f.Entry = root
	orphan := f.NewBlock()
	f.Seal(orphan) // sealed but never wired into the CFG: unreachable

	dt := BuildDomTree(f)
	if dt.Dominates(root, orphan) {
		t.Fatal("unreachable block must not be considered dominated")
	}
	if _, ok := dt.IDom(orphan); ok {
		t.Fatal("unreachable block should have no immediate dominator")
	}
}
