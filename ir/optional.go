package ir

// lowerOptionalChain implements §4.B.4: the whole chain compiles within a
// nested "chain block"; each `?` step branches IfNull to a shared end
// block (collecting the tested value as a "null operand"), and continues
// in a new "not null" block. At the end, control merges at the end block;
// if multiple null operands were collected, the result is a Phi over them
// plus the chain's normal result (identical operands collapse). A chain
// with no `?` step opens no blocks and continues in cur.
func (g *FunctionIRGen) lowerOptionalChain(n OptionalChainNode, cur BlockID) (InstID, BlockID) {
	endBlock := InvalidBlock
	var nullOperands []InstID
	var nullPreds []BlockID

	chainBlock := cur
	var value InstID = InvalidInst
	haveValue := false

	steps := n.Steps()
	if len(steps) == 0 {
		return g.EmitError(cur, "empty optional chain"), cur
	}

	for i, step := range steps {
		_ = i
		if step.Optional {
			if endBlock == InvalidBlock {
				endBlock = g.F.NewBlock()
			}
			notNullBlock := g.F.NewBlock()
			g.F.SetTerminator(chainBlock, Terminator{
				Kind: TBranch, Cond: value, CondKind: CondIfNull,
				Then: endBlock, Else: notNullBlock,
			})
			g.F.Seal(notNullBlock)
			nullOperands = append(nullOperands, value)
			nullPreds = append(nullPreds, chainBlock)
			chainBlock = notNullBlock
		}

		switch {
		case step.IsCall:
			var args []InstID
			for _, a := range step.CallArgs {
				var id InstID
				id, chainBlock = g.Lower(a, chainBlock)
				args = append(args, id)
			}
			v := g.F.newInst(VCall)
			v.Args = append([]InstID{value}, args...)
			value = g.F.emit(chainBlock, v)
		case step.Index != nil:
			idx, cb := g.Lower(step.Index, chainBlock)
			chainBlock = cb
			v := g.F.newInst(VRead)
			v.LV = LValue{Kind: LIndex, Base: value, KeyInst: idx}
			value = g.F.emit(chainBlock, v)
		default:
			v := g.F.newInst(VRead)
			if !haveValue {
				// the chain's root step has no base value yet; callers
				// model the root itself as a plain NVarRef/NField fed
				// through Lower before any Optional step, so this path
				// only covers a root-level bare field reference.
				v.LV = LValue{Kind: LModule}
			} else {
				v.LV = LValue{Kind: LField, Base: value, NameID: g.strings.Insert(step.Field)}
			}
			value = g.F.emit(chainBlock, v)
		}
		haveValue = true
	}

	if len(nullOperands) == 0 {
		return value, chainBlock
	}

	g.F.SetTerminator(chainBlock, Terminator{Kind: TJump, Target: endBlock})
	g.F.Seal(endBlock)

	allOperands := append(append([]InstID(nil), nullOperands...), value)
	allPreds := append(append([]BlockID(nil), nullPreds...), chainBlock)
	first := allOperands[0]
	trivial := true
	for _, o := range allOperands[1:] {
		if o != first {
			trivial = false
			break
		}
	}
	if trivial {
		return first, endBlock
	}

	phi := g.F.newInst(VPhi)
	g.F.emit(endBlock, phi)
	ops := make(map[BlockID]InstID, len(allPreds))
	for i, p := range allPreds {
		ops[p] = allOperands[i]
	}
	g.F.phis[phi.ID] = &phiInfo{operands: ops}
	return g.F.tryRemoveTrivialPhi(phi.ID), endBlock
}
