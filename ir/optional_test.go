package ir

import "testing"

// a?.b?.c — two optional steps; when the root is null the whole chain
// should short-circuit to a null-merging Phi at the end block.
func TestOptionalChainMergesNullAndNonNullPaths(t *testing.T) {
	g, _ := newGen("f")
	cur := g.F.Body

	chain := newOptionalChain(nil,
		ChainStep{Optional: true, Field: "b"},
		ChainStep{Optional: true, Field: "c"},
	)
	result, end := g.lowerOptionalChain(chain, cur)
	if result == InvalidInst {
		t.Fatal("expected a result instruction from the optional chain")
	}
	if !g.F.Block(end).Sealed {
		t.Fatal("expected the chain's end block to be sealed")
	}
	resultInst := g.F.Inst(result)
	if resultInst.Op != VPhi && resultInst.Op != VAlias && resultInst.Op != VConstant {
		t.Fatalf("expected chain result to be a Phi/Alias/Constant merging null paths, got op %d", resultInst.Op)
	}
}

func TestOptionalChainAllNonOptionalStepsSkipsPhi(t *testing.T) {
	g, _ := newGen("f")
	chain := newOptionalChain(nil,
		ChainStep{Optional: false, Field: "b"},
		ChainStep{Optional: false, Field: "c"},
	)
	result, end := g.lowerOptionalChain(chain, g.F.Body)
	if result == InvalidInst {
		t.Fatal("expected a result")
	}
	if f := g.F.Inst(result); f.Op == VPhi {
		t.Fatal("a chain with no optional steps should never need a merging phi")
	}
	if end != g.F.Body {
		t.Fatalf("expected no new blocks for an all-non-optional chain, stayed in body, got block %d", end)
	}
}
