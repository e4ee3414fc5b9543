package interp

import (
	"fmt"
	"strings"
)

var opNames = map[Op]string{
	OpConstInt: "const_int", OpConstFloat: "const_float", OpConstString: "const_string",
	OpConstNull: "const_null", OpConstTrue: "const_true", OpConstFalse: "const_false",
	OpLoadLocal: "load_local", OpStoreLocal: "store_local",
	OpLoadModule: "load_module", OpStoreModule: "store_module",
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div", OpMod: "mod", OpPow: "pow",
	OpShl: "shl", OpShr: "shr", OpBitAnd: "bit_and", OpBitOr: "bit_or", OpBitXor: "bit_xor",
	OpNeg: "neg", OpNot: "not", OpBitNot: "bit_not",
	OpEq: "eq", OpNe: "ne", OpLt: "lt", OpLe: "le", OpGt: "gt", OpGe: "ge",
	OpFormat: "format",
	OpMakeArray: "make_array", OpMakeTuple: "make_tuple", OpMakeSet: "make_set",
	OpMakeMap: "make_map", OpMakeRecord: "make_record",
	OpLoadField: "load_field", OpStoreField: "store_field",
	OpLoadIndex: "load_index", OpStoreIndex: "store_index",
	OpLoadMethod: "load_method", OpCallMethod: "call_method", OpCall: "call",
	OpJump: "jump", OpBranchTrue: "branch_true", OpBranchFalse: "branch_false",
	OpBranchNull: "branch_null", OpBranchNotNull: "branch_not_null",
	OpReturn: "return", OpAssertFail: "assert_fail", OpRethrow: "rethrow",
	OpPop: "pop", OpDup: "dup",
}

func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return "invalid"
}

// Disassemble renders code as a deterministic textual listing, one
// instruction per line, in the style of ir.Dump (§8's golden-test
// convention applied to compiled bytecode rather than IR), for inspecting
// what a module actually compiled to.
func Disassemble(code []byte) string {
	var b strings.Builder
	rd := newReader(code, 0)
	for !rd.done() {
		pc := rd.pc
		op := rd.op()
		fmt.Fprintf(&b, "%04d %s", pc, op)
		switch op {
		case OpMakeRecord:
			fmt.Fprintf(&b, " %d %d", rd.u32(), rd.u32())
		default:
			switch argKinds[op] {
			case ArgU32:
				fmt.Fprintf(&b, " %d", rd.u32())
			case ArgI64:
				fmt.Fprintf(&b, " %d", rd.i64())
			case ArgF64:
				fmt.Fprintf(&b, " %g", rd.f64())
			case ArgLocal:
				fmt.Fprintf(&b, " %%%d", rd.local())
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
