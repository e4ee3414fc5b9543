package ir

// hasSideEffects reports whether an instruction must be kept regardless of
// whether its result is used (§4.D.3): calls, writes, environment/closure
// construction, control-adjacent markers, and anything the handler wiring
// still references.
func hasSideEffects(op ValueKind) bool {
	switch op {
	case VCall, VMethodCall, VWrite, VObserveAssign,
		VMakeEnvironment, VMakeClosure, VError:
		return true
	default:
		return false
	}
}

// DeadCodeEliminate implements §4.D.3: an instruction is live if it has
// side effects, or is a (transitive) operand of a live instruction,
// including phi operands, LValue base/key references, and handler
// observer operand lists. Everything else — most prominently Phis left
// over from removed branches, and PublishAssigns with no surviving
// ObserveAssign reader — is marked dead and unlinked from its block.
// WireHandlerObservers must run before this, since it consumes
// ObserveAssign operand lists that DCE may otherwise prune as unused.
func DeadCodeEliminate(f *Function) {
	live := make(map[InstID]bool)
	var mark func(id InstID)
	mark = func(id InstID) {
		if id == InvalidInst || live[id] {
			return
		}
		live[id] = true
		v := f.Inst(id)
		for _, a := range v.Args {
			mark(a)
		}
		if v.Op == VRead || v.Op == VWrite {
			switch v.LV.Kind {
			case LField, LTupleField:
				mark(v.LV.Base)
			case LIndex:
				mark(v.LV.Base)
				mark(v.LV.KeyInst)
			case LClosure:
				mark(v.LV.Env)
			}
		}
		if p, ok := f.phis[id]; ok {
			for _, operand := range p.operands {
				mark(operand)
			}
		}
		for _, pub := range f.observes[id] {
			mark(pub)
		}
	}

	for _, b := range f.Blocks() {
		for _, id := range b.Insts {
			v := f.Inst(id)
			if hasSideEffects(v.Op) {
				mark(id)
			}
		}
		switch t := b.Term; t.Kind {
		case TBranch:
			mark(t.Cond)
		case TReturn:
			mark(t.Value)
		}
	}
	// an ObserveAssign's publishers must stay live even though the mark
	// pass above only reaches them from an already-live ObserveAssign;
	// re-run once more so publishers pulled in by a just-marked observer
	// pull in their own operands too.
	changed := true
	for changed {
		changed = false
		for id := range live {
			before := len(live)
			mark(id)
			if len(live) != before {
				changed = true
			}
		}
	}

	for _, b := range f.Blocks() {
		kept := b.Insts[:0]
		for _, id := range b.Insts {
			if live[id] {
				kept = append(kept, id)
			} else {
				f.insts[id].dead = true
			}
		}
		b.Insts = kept
	}
}
