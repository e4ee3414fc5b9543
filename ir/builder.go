package ir

import (
	"fmt"

	"github.com/dynvm-project/dynvm/strtab"
)

// FunctionIRGen lowers one AST function body into a Function (§4.B.1). A
// CurrentBlock handle tracks "the block we are currently emitting into";
// lowering helpers take the current BlockID and return the block emission
// continues in.
type FunctionIRGen struct {
	F        *Function
	strings  *strtab.Table
	regions  []region
	deferIdx int // disambiguates defer-handler block labels, purely cosmetic
}

// NewFunctionIRGen creates a builder for a fresh function named name.
func NewFunctionIRGen(strings *strtab.Table, name string) *FunctionIRGen {
	fn := NewFunction(strings.Insert(name))
	g := &FunctionIRGen{F: fn, strings: strings}
	return g
}

// region is the builder-only stack of nested scopes (§3.2).
type region struct {
	isLoop bool
	// Loop
	breakBlock, continueBlock BlockID
	// Scope
	originalHandler BlockID
	processed       int
	deferred        []deferredExpr
}

type deferredExpr struct {
	expr            Node
	previousHandler BlockID
}

// ---- write_variable / read_variable (§4.B.2) ----

func (f *Function) writeVariable(symbol Symbol, inst InstID, block BlockID) {
	m := f.currentDef[symbol]
	if m == nil {
		m = make(map[BlockID]InstID)
		f.currentDef[symbol] = m
	}
	m[block] = inst
}

// readVariableInternal is the Braun et al. recursive resolution algorithm.
// It is "internal" in the sense that it never synthesizes a *new* emission
// point other than the one implied by block — callers at the statement
// level go through FunctionIRGen.ReadVariable, which also deals with
// current-block bookkeeping for the happy path.
func (f *Function) readVariableInternal(symbol Symbol, block BlockID) InstID {
	if m := f.currentDef[symbol]; m != nil {
		if def, ok := m[block]; ok {
			return def
		}
	}
	return f.readVariableRecursive(symbol, block)
}

func (f *Function) readVariableRecursive(symbol Symbol, block BlockID) InstID {
	b := f.blocks[block]

	if block == f.Entry {
		v := f.newInst(VError)
		v.Args = nil
		f.emit(block, v)
		f.Diagnostics = append(f.Diagnostics, fmt.Sprintf("variable %d may be uninitialized", symbol))
		f.writeVariable(symbol, v.ID, block)
		return v.ID
	}

	if b.IsHandler {
		v := f.newInst(VObserveAssign)
		v.Symbol = symbol
		f.emit(block, v)
		f.observes[v.ID] = nil
		f.writeVariable(symbol, v.ID, block)
		return v.ID
	}

	if !b.Sealed {
		v := f.newInst(VPhi)
		f.emit(block, v)
		f.phis[v.ID] = &phiInfo{operands: make(map[BlockID]InstID)}
		b.incompletePhis = append(b.incompletePhis, incompletePhi{symbol: symbol, phi: v.ID})
		f.writeVariable(symbol, v.ID, block)
		return v.ID
	}

	if len(b.Preds) == 1 {
		def := f.readVariableInternal(symbol, b.Preds[0])
		f.writeVariable(symbol, def, block)
		return def
	}

	// multiple predecessors, sealed: place a marker phi to break cycles,
	// then recurse.
	v := f.newInst(VPhi)
	f.emit(block, v)
	info := &phiInfo{operands: make(map[BlockID]InstID)}
	f.phis[v.ID] = info
	f.writeVariable(symbol, v.ID, block)
	f.addPhiOperands(v.ID, block, symbol)
	return f.tryRemoveTrivialPhi(v.ID)
}

// tryRemoveTrivialPhi replaces a phi whose operands (excluding
// self-references) reduce to at most one distinct value with an Alias to
// that value (§4.B.2). A fully-empty phi (the variable was never
// initialized along any path) raises a diagnostic and stays an Error.
func (f *Function) tryRemoveTrivialPhi(phi InstID) InstID {
	info := f.phis[phi]
	var same InstID = InvalidInst
	distinct := false
	for _, op := range info.operands {
		if op == phi || op == same {
			continue
		}
		if same != InvalidInst {
			distinct = true
			break
		}
		same = op
	}
	if distinct {
		return phi
	}
	if same == InvalidInst {
		v := f.insts[phi]
		v.Op = VError
		f.Diagnostics = append(f.Diagnostics, "variable may be uninitialized (empty phi)")
		return phi
	}
	v := f.insts[phi]
	v.Op = VAlias
	v.Args = []InstID{same}
	delete(f.phis, phi)
	return same
}

// ReadVariable is the public entry point lowering code calls to resolve a
// source variable to its current SSA definition in block.
func (g *FunctionIRGen) ReadVariable(symbol Symbol, block BlockID) InstID {
	return g.F.readVariableInternal(symbol, block)
}

// WriteVariable records inst as symbol's most recent definition in block.
func (g *FunctionIRGen) WriteVariable(symbol Symbol, inst InstID, block BlockID) {
	g.F.writeVariable(symbol, inst, block)
}

// ---- emission helpers with local value numbering (§4.B.7) ----

func (f *Function) lvnLookup(block BlockID, key string) (InstID, bool) {
	id, ok := f.cse[lvnKey{block: block, key: key}]
	return id, ok
}

func (f *Function) lvnStore(block BlockID, key string, inst InstID) {
	f.cse[lvnKey{block: block, key: key}] = inst
}

// EmitConstant emits (or reuses, via LVN) a Constant instruction.
func (g *FunctionIRGen) EmitConstant(block BlockID, c Const) InstID {
	key := fmt.Sprintf("const:%d:%d:%f:%d", c.Kind, c.I, c.F, c.S)
	if id, ok := g.F.lvnLookup(block, key); ok {
		return id
	}
	v := g.F.newInst(VConstant)
	v.Const = c
	id := g.F.emit(block, v)
	g.F.lvnStore(block, key, id)
	return id
}

// EmitBinary lowers a binary op (§4.B.3, §4.B.7): constants fold via the
// evaluator, commutative ops normalize operand order for caching, and the
// result is cached by (op,left,right).
func (g *FunctionIRGen) EmitBinary(block BlockID, op BinaryOp, lhs, rhs InstID) InstID {
	lv, rv := g.F.insts[lhs], g.F.insts[rhs]
	if isCommutative(op) && lhs > rhs {
		lhs, rhs = rhs, lhs
		lv, rv = rv, lv
	}
	if lv.Op == VConstant && rv.Op == VConstant {
		res, err := evalBinary(op, lv.Const, rv.Const)
		if err == nil {
			return g.EmitConstant(block, res)
		}
		g.F.Diagnostics = append(g.F.Diagnostics, "constant fold: "+err.Error())
	}

	key := fmt.Sprintf("bin:%d:%d:%d", op, lhs, rhs)
	if id, ok := g.F.lvnLookup(block, key); ok {
		return id
	}
	v := g.F.newInst(VBinaryOp)
	v.BinOp = op
	v.Args = []InstID{lhs, rhs}
	id := g.F.emit(block, v)
	g.F.lvnStore(block, key, id)
	return id
}

func isCommutative(op BinaryOp) bool {
	switch op {
	case OpAdd, OpMul, OpBitAnd, OpBitOr, OpBitXor, OpEq, OpNe:
		return true
	default:
		return false
	}
}

// EmitUnary lowers a unary op, folding when the operand is constant.
func (g *FunctionIRGen) EmitUnary(block BlockID, op UnaryOp, operand InstID) InstID {
	ov := g.F.insts[operand]
	if ov.Op == VConstant {
		res, err := evalUnary(op, ov.Const)
		if err == nil {
			return g.EmitConstant(block, res)
		}
		g.F.Diagnostics = append(g.F.Diagnostics, "constant fold: "+err.Error())
	}
	key := fmt.Sprintf("un:%d:%d", op, operand)
	if id, ok := g.F.lvnLookup(block, key); ok {
		return id
	}
	v := g.F.newInst(VUnaryOp)
	v.UnOp = op
	v.Args = []InstID{operand}
	id := g.F.emit(block, v)
	g.F.lvnStore(block, key, id)
	return id
}

// EmitModuleRead emits a Read(Module(member)) instruction, cached only
// when the member is declared const (§4.B.7: reads of anything else may
// observe side effects and are never cached).
func (g *FunctionIRGen) EmitModuleRead(block BlockID, member int, isConst bool) InstID {
	if isConst {
		key := fmt.Sprintf("modread:%d", member)
		if id, ok := g.F.lvnLookup(block, key); ok {
			return id
		}
		v := g.F.newInst(VRead)
		v.LV = LValue{Kind: LModule, Member: member}
		id := g.F.emit(block, v)
		g.F.lvnStore(block, key, id)
		return id
	}
	v := g.F.newInst(VRead)
	v.LV = LValue{Kind: LModule, Member: member}
	return g.F.emit(block, v)
}

// EmitError records a compile-time error at block and returns the Error
// instruction produced.
func (g *FunctionIRGen) EmitError(block BlockID, msg string) InstID {
	g.F.Diagnostics = append(g.F.Diagnostics, msg)
	v := g.F.newInst(VError)
	v.Const.S = g.strings.Insert(msg)
	return g.F.emit(block, v)
}

// EmitNop emits a no-op instruction.
func (g *FunctionIRGen) EmitNop(block BlockID) InstID {
	v := g.F.newInst(VNop)
	return g.F.emit(block, v)
}
