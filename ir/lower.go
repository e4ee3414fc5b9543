package ir

// Lower compiles node into cur, returning the instruction yielding node's
// value and the block execution continues in afterward (§4.B.3). Not
// every node kind yields a meaningful value (e.g. NReturn); callers that
// don't need one may ignore the returned InstID.
func (g *FunctionIRGen) Lower(node Node, cur BlockID) (InstID, BlockID) {
	switch node.Kind() {
	case NLiteralNull:
		return g.EmitConstant(cur, Const{Kind: CNull}), cur
	case NLiteralBool:
		n := node.(BoolLiteralNode)
		k := CFalse
		if n.BoolValue() {
			k = CTrue
		}
		return g.EmitConstant(cur, Const{Kind: k}), cur
	case NLiteralInt:
		n := node.(IntLiteralNode)
		return g.EmitConstant(cur, intConst(n.IntValue())), cur
	case NLiteralFloat:
		n := node.(FloatLiteralNode)
		return g.EmitConstant(cur, floatConst(n.FloatValue())), cur
	case NLiteralString:
		n := node.(StringLiteralNode)
		return g.EmitConstant(cur, Const{Kind: CString, S: g.strings.Insert(n.StringValue())}), cur
	case NLiteralSymbol:
		n := node.(SymbolLiteralNode)
		return g.EmitConstant(cur, Const{Kind: CSymbol, S: g.strings.Insert(n.SymbolName())}), cur

	case NVarRef:
		n := node.(VarRefNode)
		return g.ReadVariable(n.VarSymbol(), cur), cur

	case NAssign:
		return g.lowerAssign(node.(AssignNode), cur)

	case NBinary:
		n := node.(BinaryNode)
		lhs, cur := g.Lower(n.Left(), cur)
		rhs, cur := g.Lower(n.Right(), cur)
		return g.EmitBinary(cur, n.Op(), lhs, rhs), cur

	case NUnary:
		n := node.(UnaryNode)
		operand, cur := g.Lower(n.Operand(), cur)
		return g.EmitUnary(cur, n.UOp(), operand), cur

	case NBlock:
		n := node.(BlockNode)
		var last InstID = InvalidInst
		for _, stmt := range n.Statements() {
			last, cur = g.Lower(stmt, cur)
		}
		return last, cur

	case NIf:
		return g.lowerIf(node.(IfNode), cur)

	case NLogicalAnd:
		return g.lowerShortCircuit(node.(BinaryLogicalNode), cur, CondIfFalse)
	case NLogicalOr:
		return g.lowerShortCircuit(node.(BinaryLogicalNode), cur, CondIfTrue)
	case NCoalesce:
		return g.lowerShortCircuit(node.(BinaryLogicalNode), cur, CondIfNotNull)

	case NReturn:
		return g.lowerReturn(node.(ReturnNode), cur)
	case NBreak:
		return g.lowerBreak(cur)
	case NContinue:
		return g.lowerContinue(cur)

	case NFuncLit:
		return g.lowerFuncLit(node.(FuncLitNode), cur)

	case NCall:
		return g.lowerCall(node.(CallNode), cur)
	case NMethodCall:
		return g.lowerMethodCall(node.(MethodCallNode), cur)

	case NContainer:
		n := node.(ContainerNode)
		var elems []InstID
		for _, e := range n.Elements() {
			var id InstID
			id, cur = g.Lower(e, cur)
			elems = append(elems, id)
		}
		return g.EmitContainer(cur, n.ContainerKind(), elems), cur

	case NRecord:
		n := node.(RecordNode)
		var vals []InstID
		for _, v := range n.Values() {
			var id InstID
			id, cur = g.Lower(v, cur)
			vals = append(vals, id)
		}
		tid := g.F.InternRecordTemplate(n.Keys())
		return g.EmitRecord(cur, tid, vals), cur

	case NInterp:
		n := node.(InterpNode)
		var parts []InstID
		for _, p := range n.Parts() {
			var id InstID
			id, cur = g.Lower(p, cur)
			parts = append(parts, id)
		}
		return g.EmitFormat(cur, parts), cur

	case NOptionalChain:
		return g.lowerOptionalChain(node.(OptionalChainNode), cur)

	case NField:
		n := node.(FieldNode)
		base, cur := g.Lower(n.Base(), cur)
		v := g.F.newInst(VRead)
		v.LV = LValue{Kind: LField, Base: base, NameID: g.strings.Insert(n.FieldName())}
		return g.F.emit(cur, v), cur

	case NIndex:
		n := node.(IndexNode)
		base, cur := g.Lower(n.Base(), cur)
		idx, cur := g.Lower(n.IndexExpr(), cur)
		v := g.F.newInst(VRead)
		v.LV = LValue{Kind: LIndex, Base: base, KeyInst: idx}
		return g.F.emit(cur, v), cur

	case NDefer:
		return g.lowerDefer(node.(DeferNode), cur)

	case NScope:
		return g.lowerScope(node.(ScopeNode), cur)

	default:
		return g.EmitError(cur, "unsupported node kind"), cur
	}
}

func (g *FunctionIRGen) lowerAssign(n AssignNode, cur BlockID) (InstID, BlockID) {
	src, cur := g.Lower(n.Source(), cur)
	switch t := n.Target().(type) {
	case VarRefNode:
		g.WriteVariable(t.VarSymbol(), src, cur)
		v := g.F.newInst(VWrite)
		v.LV = LValue{Kind: LModule} // placeholder local-variable write marker
		v.Args = []InstID{src}
		return g.F.emit(cur, v), cur
	case FieldNode:
		base, cur2 := g.Lower(t.Base(), cur)
		v := g.F.newInst(VWrite)
		v.LV = LValue{Kind: LField, Base: base, NameID: g.strings.Insert(t.FieldName())}
		v.Args = []InstID{src}
		return g.F.emit(cur2, v), cur2
	case IndexNode:
		base, cur2 := g.Lower(t.Base(), cur)
		idx, cur2b := g.Lower(t.IndexExpr(), cur2)
		v := g.F.newInst(VWrite)
		v.LV = LValue{Kind: LIndex, Base: base, KeyInst: idx}
		v.Args = []InstID{src}
		return g.F.emit(cur2b, v), cur2b
	default:
		return g.EmitError(cur, "unsupported assignment target"), cur
	}
}

func (g *FunctionIRGen) lowerIf(n IfNode, cur BlockID) (InstID, BlockID) {
	cond, cur := g.Lower(n.Cond(), cur)
	thenBlock := g.F.NewBlock()
	endBlock := g.F.NewBlock()
	elseBlock := endBlock
	hasElse := n.Else() != nil
	if hasElse {
		elseBlock = g.F.NewBlock()
	}
	g.F.SetTerminator(cur, Terminator{Kind: TBranch, Cond: cond, CondKind: CondIfTrue, Then: thenBlock, Else: elseBlock})
	g.F.Seal(thenBlock)
	if hasElse {
		g.F.Seal(elseBlock)
	}

	_, thenEnd := g.Lower(n.Then(), thenBlock)
	if te := g.F.Block(thenEnd); !te.Filled && !te.Unreachable {
		g.F.SetTerminator(thenEnd, Terminator{Kind: TJump, Target: endBlock})
	}

	if hasElse {
		_, elseEnd := g.Lower(n.Else(), elseBlock)
		if ee := g.F.Block(elseEnd); !ee.Filled && !ee.Unreachable {
			g.F.SetTerminator(elseEnd, Terminator{Kind: TJump, Target: endBlock})
		}
	}

	g.F.Seal(endBlock)
	return InvalidInst, endBlock
}

// lowerShortCircuit implements §4.B.3's &&/||/?? lowering: one branch
// block and one end block, merged via a phi (elided when trivial).
func (g *FunctionIRGen) lowerShortCircuit(n BinaryLogicalNode, cur BlockID, guard CondKind) (InstID, BlockID) {
	lhs, cur := g.Lower(n.Left(), cur)
	rhsBlock := g.F.NewBlock()
	endBlock := g.F.NewBlock()

	// guard: IfFalse skips RHS for &&, IfTrue skips RHS for ||, IfNotNull
	// skips RHS for ??. In every case the "skip" edge goes straight to end
	// carrying lhs; the "enter" edge evaluates rhs.
	var thenTarget, elseTarget BlockID
	switch guard {
	case CondIfFalse: // &&: go to rhs if true, else short-circuit to end
		thenTarget, elseTarget = endBlock, rhsBlock
	case CondIfTrue: // ||: go to rhs if false, else short-circuit to end
		thenTarget, elseTarget = endBlock, rhsBlock
	case CondIfNotNull: // ??: go to end (with lhs) if not null, else rhs
		thenTarget, elseTarget = endBlock, rhsBlock
	}
	g.F.SetTerminator(cur, Terminator{Kind: TBranch, Cond: lhs, CondKind: guard, Then: thenTarget, Else: elseTarget})
	g.F.Seal(rhsBlock)

	rhs, rhsEnd := g.Lower(n.Right(), rhsBlock)
	rhsReachable := true
	if re := g.F.Block(rhsEnd); !re.Filled {
		if re.Unreachable {
			rhsReachable = false
		} else {
			g.F.SetTerminator(rhsEnd, Terminator{Kind: TJump, Target: endBlock})
		}
	}
	g.F.Seal(endBlock)

	if !rhsReachable {
		return lhs, endBlock
	}
	if lhs == rhs {
		return lhs, endBlock
	}
	phi := g.F.newInst(VPhi)
	g.F.emit(endBlock, phi)
	g.F.phis[phi.ID] = &phiInfo{operands: map[BlockID]InstID{cur: lhs, rhsEnd: rhs}}
	return g.F.tryRemoveTrivialPhi(phi.ID), endBlock
}

func (g *FunctionIRGen) lowerReturn(n ReturnNode, cur BlockID) (InstID, BlockID) {
	cur = g.compileScopeExitUntil(-1, cur)
	var val InstID = InvalidInst
	if n.Value() != nil {
		val, cur = g.Lower(n.Value(), cur)
	}
	g.F.SetTerminator(cur, Terminator{Kind: TReturn, Value: val, Exit: g.F.Exit})
	dead := g.F.NewBlock()
	g.F.Block(dead).Unreachable = true
	g.F.Seal(dead)
	return val, dead
}

func (g *FunctionIRGen) lowerBreak(cur BlockID) (InstID, BlockID) {
	idx := g.innermostLoop()
	if idx < 0 {
		return g.EmitError(cur, "break outside loop"), cur
	}
	cur = g.compileScopeExitUntil(idx, cur)
	g.F.SetTerminator(cur, Terminator{Kind: TJump, Target: g.regions[idx].breakBlock})
	dead := g.F.NewBlock()
	g.F.Block(dead).Unreachable = true
	g.F.Seal(dead)
	return InvalidInst, dead
}

func (g *FunctionIRGen) lowerContinue(cur BlockID) (InstID, BlockID) {
	idx := g.innermostLoop()
	if idx < 0 {
		return g.EmitError(cur, "continue outside loop"), cur
	}
	cur = g.compileScopeExitUntil(idx, cur)
	g.F.SetTerminator(cur, Terminator{Kind: TJump, Target: g.regions[idx].continueBlock})
	dead := g.F.NewBlock()
	g.F.Block(dead).Unreachable = true
	g.F.Seal(dead)
	return InvalidInst, dead
}

func (g *FunctionIRGen) innermostLoop() int {
	for i := len(g.regions) - 1; i >= 0; i-- {
		if g.regions[i].isLoop {
			return i
		}
	}
	return -1
}

func (g *FunctionIRGen) lowerFuncLit(n FuncLitNode, cur BlockID) (InstID, BlockID) {
	// Building the nested function body is the caller's responsibility
	// (a fresh FunctionIRGen per function, §4.B.1); here we only record
	// the closure-construction instruction, with no environment operand.
	// Environments are built separately through OpenClosureEnv/MakeClosure.
	v := g.F.newInst(VMakeClosure)
	return g.F.emit(cur, v), cur
}

func (g *FunctionIRGen) lowerCall(n CallNode, cur BlockID) (InstID, BlockID) {
	callee, cur := g.Lower(n.Callee(), cur)
	var args []InstID
	for _, a := range n.Args() {
		var id InstID
		id, cur = g.Lower(a, cur)
		args = append(args, id)
	}
	v := g.F.newInst(VCall)
	v.Args = append([]InstID{callee}, args...)
	return g.F.emit(cur, v), cur
}

func (g *FunctionIRGen) lowerMethodCall(n MethodCallNode, cur BlockID) (InstID, BlockID) {
	recv, cur := g.Lower(n.Receiver(), cur)
	agg := g.F.newInst(VAggregate)
	agg.Args = []InstID{recv}
	agg.Member = int(g.strings.Insert(n.Method()))
	aggID := g.F.emit(cur, agg)

	var args []InstID
	for _, a := range n.Args() {
		var id InstID
		id, cur = g.Lower(a, cur)
		args = append(args, id)
	}
	v := g.F.newInst(VMethodCall)
	v.Args = append([]InstID{aggID}, args...)
	return g.F.emit(cur, v), cur
}
