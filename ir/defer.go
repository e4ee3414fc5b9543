package ir

// PushScope opens a new Scope region (§4.B.5), inheriting the enclosing
// block's current exception handler as its "original" handler to restore
// on exit.
func (g *FunctionIRGen) PushScope(cur BlockID) {
	g.regions = append(g.regions, region{
		originalHandler: g.F.Block(cur).Handler,
	})
}

// PushLoop opens a new Loop region with the given break/continue targets.
func (g *FunctionIRGen) PushLoop(breakBlock, continueBlock BlockID) {
	g.regions = append(g.regions, region{isLoop: true, breakBlock: breakBlock, continueBlock: continueBlock})
}

// PopRegion closes the innermost region, running its deferred tail first
// if it is a Scope with pending defers and no exit has already consumed
// them (the normal, non-unwinding exit path).
func (g *FunctionIRGen) PopRegion(cur BlockID) BlockID {
	r := g.regions[len(g.regions)-1]
	if !r.isLoop {
		cur = g.runDeferredTail(len(g.regions)-1, cur)
	}
	g.regions = g.regions[:len(g.regions)-1]
	return cur
}

func (g *FunctionIRGen) currentScopeIndex() int {
	for i := len(g.regions) - 1; i >= 0; i-- {
		if !g.regions[i].isLoop {
			return i
		}
	}
	return -1
}

// lowerScope compiles a ScopeNode's body within a fresh Scope region, then
// runs its deferred tail on normal exit (§4.B.5).
func (g *FunctionIRGen) lowerScope(n ScopeNode, cur BlockID) (InstID, BlockID) {
	g.PushScope(cur)
	val, cur := g.Lower(n.Body(), cur)
	cur = g.PopRegion(cur)
	return val, cur
}

// lowerDefer implements §4.B.5: the deferred expression compiles eagerly
// into a fresh handler block ending in Rethrow, registered as the current
// exception handler; it is also appended to the enclosing scope's
// deferred list to run (in reverse order) on normal exit.
func (g *FunctionIRGen) lowerDefer(n DeferNode, cur BlockID) (InstID, BlockID) {
	idx := g.currentScopeIndex()
	if idx < 0 {
		return g.EmitError(cur, "defer outside any scope"), cur
	}
	prevHandler := g.F.Block(cur).Handler

	handlerBlock := g.F.NewBlock()
	g.F.Block(handlerBlock).IsHandler = true
	hg := &FunctionIRGen{F: g.F, strings: g.strings} // the handler compiles in isolation from the main region stack
	_, handlerEnd := hg.Lower(n.Expr(), handlerBlock)
	g.F.SetTerminator(handlerEnd, Terminator{Kind: TRethrow, Exit: g.F.Exit})
	g.F.Seal(handlerBlock)

	g.regions[idx].deferred = append(g.regions[idx].deferred, deferredExpr{expr: n.Expr(), previousHandler: prevHandler})
	g.F.Block(cur).Handler = handlerBlock
	return InvalidInst, cur
}

// runDeferredTail compiles region idx's deferred expressions in reverse
// registration order on normal scope exit. A processed counter guards
// against re-entrancy from a return/break/continue nested inside one of
// the deferred expressions themselves (§4.B.5, §9's ScopeSuccess note).
func (g *FunctionIRGen) runDeferredTail(idx int, cur BlockID) BlockID {
	r := &g.regions[idx]
	start := r.processed
	for i := len(r.deferred) - 1 - start; i >= 0; i-- {
		d := r.deferred[i]
		r.processed++
		_, cur = g.Lower(d.expr, cur)
		g.F.Block(cur).Handler = d.previousHandler
	}
	r.processed = start
	return cur
}

// compileScopeExitUntil walks the region stack top-down from the current
// innermost region to (but not including) target, running each enclosing
// scope's deferred tail — used by return/break/continue (§4.B.5).
func (g *FunctionIRGen) compileScopeExitUntil(target int, cur BlockID) BlockID {
	for i := len(g.regions) - 1; i > target; i-- {
		if !g.regions[i].isLoop {
			cur = g.runDeferredTail(i, cur)
		}
	}
	return cur
}
