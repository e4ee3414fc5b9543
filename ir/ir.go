package ir

import "github.com/dynvm-project/dynvm/strtab"

// InstID identifies an instruction within a Function's arena (§9: "Store
// all IR nodes in per-function arena-backed vectors indexed by typed
// 32-bit ids; cycles are plain id references, not ownership edges").
type InstID int32

// InvalidInst is never a valid instruction id.
const InvalidInst InstID = -1

// BlockID identifies a block within a Function's arena.
type BlockID int32

const InvalidBlock BlockID = -1

// ValueKind tags the sum type an Inst carries (§3.2's "Value kinds"). Per
// §9's deep-inheritance note, this is expressed as one tag enum plus a
// Visit dispatch (see Visit below) rather than a type hierarchy.
type ValueKind uint8

const (
	VInvalid ValueKind = iota
	VRead
	VWrite
	VAlias
	VConstant
	VOuterEnvironment
	VBinaryOp
	VUnaryOp
	VCall
	VMethodCall
	VAggregate
	VGetAggregateMember
	VMakeEnvironment
	VMakeClosure
	VMakeIterator
	VRecord
	VContainer
	VFormat
	VPhi
	VPublishAssign
	VObserveAssign
	VNop
	VError
)

// ConstKind distinguishes the Constant payload shapes.
type ConstKind uint8

const (
	CNull ConstKind = iota
	CTrue
	CFalse
	CInteger
	CFloat
	CString
	CSymbol
)

// Const is the literal payload of a VConstant instruction.
type Const struct {
	Kind ConstKind
	I    int64
	F    float64
	S    strtab.ID // valid for CString/CSymbol
}

// LValueKind tags the addressable-location sum type (§3.2).
type LValueKind uint8

const (
	LModule LValueKind = iota
	LParam
	LClosure
	LField
	LTupleField
	LIndex
)

// LValue is an addressable location: a module member, a parameter, a
// captured-closure slot, or a compound field/index access.
type LValue struct {
	Kind    LValueKind
	Member  int       // LModule: member index
	Param   int       // LParam: parameter index
	Env     InstID    // LClosure: environment instruction
	Level   int       // LClosure: hops from current env to defining env
	Index   int       // LClosure/LTupleField: slot/tuple index
	Base    InstID    // LField/LTupleField/LIndex: base instruction
	NameID  strtab.ID // LField: interned field name
	KeyInst InstID    // LIndex: index expression instruction
}

// Inst is one SSA value (§3.2). Operands are stored as Args (positional)
// with Imm carrying any non-instruction payload (constants, lvalues,
// immediates).
type Inst struct {
	ID   InstID
	Op   ValueKind
	Args []InstID
	Name strtab.ID // optional; strtab.Invalid if unnamed

	Const  Const
	LV     LValue
	BinOp  BinaryOp
	UnOp   UnaryOp
	Symbol Symbol // VPublishAssign/VObserveAssign/VRead(Module-const)/VAggregate member tag
	CKind  ContainerKind
	Member int // VRecord: record-template id; VGetAggregateMember: member tag

	// notMissing mirrors the teacher's ssa.go "non-standard not-missing"
	// override slot. newInst sets it to InvalidInst and no lowering helper
	// in this package changes it.
	notMissing InstID

	dead bool // set by DCE; the arena slot is kept to preserve ids
}

// Terminator kinds (§3.2).
type TermKind uint8

const (
	TNone TermKind = iota
	TJump
	TBranch
	TReturn
	TAssertFail
	TRethrow
	TNever
	TEntry
)

type CondKind uint8

const (
	CondIfTrue CondKind = iota
	CondIfFalse
	CondIfNull
	CondIfNotNull
)

// Terminator is a Block's control-flow exit.
type Terminator struct {
	Kind TermKind
	// Jump
	Target BlockID
	// Branch
	Cond     InstID
	CondKind CondKind
	Then     BlockID
	Else     BlockID
	// Return/AssertFail/Rethrow/Never share Exit
	Value   InstID
	Exit    BlockID
	ExprStr string
	Msg     string
	// Entry
	Handlers []BlockID
}

// Block is a basic block (§3.2).
type Block struct {
	ID    BlockID
	Label strtab.ID // strtab.Invalid if unlabeled

	Insts []InstID
	Term  Terminator

	Preds []BlockID

	Handler   BlockID // current exception-handler block, InvalidBlock if none
	Sealed    bool
	Filled    bool
	IsHandler bool

	// Unreachable marks a block opened purely to hold the (never taken)
	// control flow after a Return/Break/Continue terminator (§4.B.3).
	// Callers that would otherwise wire a fallthrough jump into a join
	// block must skip doing so for an Unreachable block, or the join
	// point picks up a predecessor edge nothing ever executes.
	Unreachable bool

	// incompletePhis holds phis created by read_variable before this
	// block was sealed, awaiting predecessor population (§4.B.2).
	incompletePhis []incompletePhi
}

type incompletePhi struct {
	symbol Symbol
	phi    InstID
}

// phiInfo (in Function.phis) and Function.observes hold the operands of
// Phi and ObserveAssign instructions, since the symbol-keyed operand list
// isn't a positional Args list in the same sense as BinaryOp's.
type phiInfo struct {
	operands map[BlockID]InstID // predecessor block -> operand; map order, Dump sorts by block id
}

// Function owns every Block/Inst/Param/LocalList/Record/Phi list for one
// compiled function (§3.2).
type Function struct {
	Name strtab.ID

	blocks []*Block
	insts  []*Inst

	phis     map[InstID]*phiInfo
	observes map[InstID][]InstID // ObserveAssign operand lists

	Entry BlockID
	Body  BlockID
	Exit  BlockID

	Params []Symbol

	// per-symbol current definitions, keyed by (block,symbol); this is the
	// Braun et al. "currentDef" table.
	currentDef map[Symbol]map[BlockID]InstID

	// cse is the local-value-numbering cache (§4.B.7): (block,key) -> inst.
	cse map[lvnKey]InstID

	RecordTemplates [][]Symbol // index = record_template_id, value = ordered field-name symbols

	Diagnostics []string
}

type lvnKey struct {
	block BlockID
	key   string
}

// NewFunction creates an empty function with a body block opened, ready
// for a FunctionIRGen to lower statements into.
func NewFunction(name strtab.ID) *Function {
	f := &Function{
		Name:       name,
		phis:       make(map[InstID]*phiInfo),
		observes:   make(map[InstID][]InstID),
		currentDef: make(map[Symbol]map[BlockID]InstID),
		cse:        make(map[lvnKey]InstID),
	}
	f.Entry = f.newBlock()
	f.Body = f.newBlock()
	f.Exit = f.newBlock()
	return f
}

func (f *Function) newBlock() BlockID {
	b := &Block{ID: BlockID(len(f.blocks)), Handler: InvalidBlock}
	f.blocks = append(f.blocks, b)
	return b.ID
}

// NewBlock opens a fresh, unsealed block and returns its id.
func (f *Function) NewBlock() BlockID { return f.newBlock() }

// Block returns the block for id.
func (f *Function) Block(id BlockID) *Block { return f.blocks[id] }

// Blocks returns every block in id order, including unreachable ones.
func (f *Function) Blocks() []*Block { return f.blocks }

// Inst returns the instruction for id.
func (f *Function) Inst(id InstID) *Inst { return f.insts[id] }

// Insts returns every instruction in id order, including dead ones (see
// Inst.dead / IsDead).
func (f *Function) Insts() []*Inst { return f.insts }

// IsDead reports whether DCE has marked inst dead.
func (f *Function) IsDead(id InstID) bool { return f.insts[id].dead }

func (f *Function) newInst(op ValueKind) *Inst {
	v := &Inst{ID: InstID(len(f.insts)), Op: op, notMissing: InvalidInst}
	f.insts = append(f.insts, v)
	return v
}

// emit appends inst to block's instruction list, enforcing the "filled
// blocks only accept phi-family instructions" rule (§4.B.9).
func (f *Function) emit(block BlockID, v *Inst) InstID {
	b := f.blocks[block]
	if b.Filled {
		switch v.Op {
		case VPhi, VObserveAssign, VError:
		default:
			panic("ir: cannot insert non-phi-family instruction into a filled block")
		}
	}
	if v.Op == VPhi || v.Op == VObserveAssign {
		// phi-family instructions cluster at the head, in insertion order
		// among themselves (§4.B.9).
		head := 0
		for head < len(b.Insts) {
			op := f.insts[b.Insts[head]].Op
			if op != VPhi && op != VObserveAssign {
				break
			}
			head++
		}
		b.Insts = append(b.Insts, InvalidInst)
		copy(b.Insts[head+1:], b.Insts[head:])
		b.Insts[head] = v.ID
	} else {
		b.Insts = append(b.Insts, v.ID)
	}
	return v.ID
}

// SetTerminator fills block with term, registering the predecessor edge on
// every target (§4.B.9).
func (f *Function) SetTerminator(block BlockID, term Terminator) {
	b := f.blocks[block]
	if b.Filled {
		panic("ir: block already has a terminator")
	}
	b.Term = term
	b.Filled = true
	for _, t := range term.targets() {
		if t == InvalidBlock {
			continue
		}
		tb := f.blocks[t]
		if tb.Sealed {
			panic("ir: cannot add predecessor to a sealed block")
		}
		tb.Preds = append(tb.Preds, block)
	}
}

func (t *Terminator) targets() []BlockID {
	switch t.Kind {
	case TJump:
		return []BlockID{t.Target}
	case TBranch:
		return []BlockID{t.Then, t.Else}
	case TReturn, TAssertFail, TRethrow, TNever:
		return []BlockID{t.Exit}
	case TEntry:
		return t.Handlers
	default:
		return nil
	}
}

// Seal finalizes block's predecessor set, resolving every incomplete phi
// recorded by read_variable (§4.B.2).
func (f *Function) Seal(block BlockID) {
	b := f.blocks[block]
	if b.Sealed {
		panic("ir: block already sealed")
	}
	for _, ip := range b.incompletePhis {
		f.addPhiOperands(ip.phi, block, ip.symbol)
	}
	b.incompletePhis = nil
	b.Sealed = true
}

func (f *Function) addPhiOperands(phi InstID, block BlockID, symbol Symbol) {
	info := f.phis[phi]
	for _, pred := range f.blocks[block].Preds {
		def := f.readVariableInternal(symbol, pred)
		info.operands[pred] = def
	}
}
