package ir

// ClosureEnv tracks one lexical scope's captured-variable environment
// (§4.B.6): a parent link, the MakeEnvironment instruction that
// constructs it, and the slot assigned to each captured symbol.
type ClosureEnv struct {
	Parent *ClosureEnv
	Inst   InstID
	slots  map[Symbol]int
	next   int
}

// OpenClosureEnv creates a ClosureEnv for the given set of captured
// symbols, emitting MakeEnvironment(parent_inst, count) into cur.
func (g *FunctionIRGen) OpenClosureEnv(parent *ClosureEnv, captured []Symbol, cur BlockID) (*ClosureEnv, BlockID) {
	env := &ClosureEnv{Parent: parent, slots: make(map[Symbol]int)}
	for _, s := range captured {
		env.slots[s] = env.next
		env.next++
	}
	var parentInst InstID = InvalidInst
	if parent != nil {
		parentInst = parent.Inst
	}
	v := g.F.newInst(VMakeEnvironment)
	v.Member = env.next // element count
	v.Args = []InstID{parentInst}
	env.Inst = g.F.emit(cur, v)
	return env, cur
}

// ReadClosureVar lowers a read of symbol captured at `level` hops above
// env (0 = env itself) to a Closure LValue read (§4.B.6).
func (g *FunctionIRGen) ReadClosureVar(env *ClosureEnv, symbol Symbol, cur BlockID) InstID {
	e, level := env, 0
	for e != nil {
		if idx, ok := e.slots[symbol]; ok {
			v := g.F.newInst(VRead)
			v.LV = LValue{Kind: LClosure, Env: e.Inst, Level: level, Index: idx}
			return g.F.emit(cur, v)
		}
		e = e.Parent
		level++
	}
	return g.EmitError(cur, "closure variable not found in any enclosing environment")
}

// WriteClosureVar lowers a write of symbol captured at some enclosing
// level to a Closure LValue write.
func (g *FunctionIRGen) WriteClosureVar(env *ClosureEnv, symbol Symbol, value InstID, cur BlockID) InstID {
	e, level := env, 0
	for e != nil {
		if idx, ok := e.slots[symbol]; ok {
			v := g.F.newInst(VWrite)
			v.LV = LValue{Kind: LClosure, Env: e.Inst, Level: level, Index: idx}
			v.Args = []InstID{value}
			return g.F.emit(cur, v)
		}
		e = e.Parent
		level++
	}
	return g.EmitError(cur, "closure variable not found in any enclosing environment")
}

// MakeClosure emits MakeClosure(env, template_func) for a function literal
// whose body has already been lowered into another Function referenced by
// templateFunc (an index into the enclosing module's function table).
func (g *FunctionIRGen) MakeClosure(env *ClosureEnv, templateFunc int, cur BlockID) InstID {
	v := g.F.newInst(VMakeClosure)
	v.Member = templateFunc
	if env != nil {
		v.Args = []InstID{env.Inst}
	}
	return g.F.emit(cur, v)
}
