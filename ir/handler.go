package ir

// WireHandlerObservers implements §4.D.2: for each handler block, index
// the set of source blocks that designated it as their current handler
// (reverse edges), then for every ObserveAssign in that handler compute
// the set of PublishAssign instructions visible from any source block via
// backwards data-flow, and set the ObserveAssign's operand list to them.
func WireHandlerObservers(f *Function) {
	sources := handlerSources(f)

	// out_values(B) = last PublishAssign to symbol in B if any, else
	// in_values(B); in_values(B) = union of out_values(P) over predecessors
	// (or the handler's reverse edges, when B is itself a handler).
	outCache := make(map[blockSymbol][]InstID)
	inProgress := make(map[blockSymbol]bool) // sentinel guards against infinite loop recursion

	var outValues func(b BlockID, sym Symbol) []InstID
	var inValues func(b BlockID, sym Symbol) []InstID

	lastPublish := func(b BlockID, sym Symbol) (InstID, bool) {
		var found InstID = InvalidInst
		ok := false
		for _, id := range f.Block(b).Insts {
			v := f.Inst(id)
			if v.Op == VPublishAssign && v.Symbol == sym {
				found = id
				ok = true
			}
		}
		return found, ok
	}

	inValues = func(b BlockID, sym Symbol) []InstID {
		key := blockSymbol{b, sym}
		if inProgress[key] {
			return nil // sentinel: break the recursion, contributes nothing yet
		}
		inProgress[key] = true
		defer delete(inProgress, key)

		var preds []BlockID
		if f.Block(b).IsHandler {
			preds = sources[b]
		} else {
			preds = f.Block(b).Preds
		}
		var union []InstID
		seen := make(map[InstID]bool)
		for _, p := range preds {
			for _, v := range outValues(p, sym) {
				if !seen[v] {
					seen[v] = true
					union = append(union, v)
				}
			}
		}
		return union
	}

	outValues = func(b BlockID, sym Symbol) []InstID {
		key := blockSymbol{b, sym}
		if v, ok := outCache[key]; ok {
			return v
		}
		var result []InstID
		if pub, ok := lastPublish(b, sym); ok {
			result = []InstID{pub}
		} else {
			result = inValues(b, sym)
		}
		outCache[key] = result
		return result
	}

	for _, b := range f.Blocks() {
		if !b.IsHandler {
			continue
		}
		for _, id := range b.Insts {
			v := f.Inst(id)
			if v.Op != VObserveAssign {
				continue
			}
			f.observes[id] = inValues(b.ID, v.Symbol)
		}
	}
}

type blockSymbol struct {
	block BlockID
	sym   Symbol
}

// handlerSources indexes, for each handler block, the set of blocks that
// currently designate it as their exception handler.
func handlerSources(f *Function) map[BlockID][]BlockID {
	sources := make(map[BlockID][]BlockID)
	for _, b := range f.Blocks() {
		if b.Handler != InvalidBlock {
			sources[b.Handler] = append(sources[b.Handler], b.ID)
		}
	}
	return sources
}

// ObserveOperands returns the publisher list wired onto an ObserveAssign
// instruction by WireHandlerObservers.
func (f *Function) ObserveOperands(id InstID) []InstID {
	return f.observes[id]
}
