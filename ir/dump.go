package ir

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/dynvm-project/dynvm/strtab"
)

// Dump renders f as a deterministic textual IR listing (§8: "emit a
// stable text form of the built IR suitable for golden/round-trip
// tests"). Dead instructions (see IsDead) are omitted.
func Dump(f *Function, strings_ *strtab.Table) string {
	var b strings.Builder
	name, _ := strings_.Lookup(f.Name)
	fmt.Fprintf(&b, "func %s {\n", name)
	for _, blk := range f.Blocks() {
		dumpBlock(&b, f, blk, strings_)
	}
	fmt.Fprintf(&b, "}\n")
	return b.String()
}

func dumpBlock(b *strings.Builder, f *Function, blk *Block, st *strtab.Table) {
	fmt.Fprintf(b, "block%d:", blk.ID)
	if blk.IsHandler {
		fmt.Fprint(b, " handler")
	}
	if !blk.Sealed {
		fmt.Fprint(b, " unsealed")
	}
	if blk.Unreachable {
		fmt.Fprint(b, " unreachable")
	}
	preds := append([]BlockID(nil), blk.Preds...)
	slices.Sort(preds)
	if len(preds) > 0 {
		fmt.Fprintf(b, " preds=%v", preds)
	}
	fmt.Fprint(b, "\n")

	for _, id := range blk.Insts {
		if f.IsDead(id) {
			continue
		}
		fmt.Fprintf(b, "  %s\n", dumpInst(f, f.Inst(id), st))
	}
	fmt.Fprintf(b, "  %s\n", dumpTerm(&blk.Term))
}

func dumpInst(f *Function, v *Inst, st *strtab.Table) string {
	lhs := fmt.Sprintf("v%d", v.ID)
	switch v.Op {
	case VConstant:
		return fmt.Sprintf("%s = const %s", lhs, dumpConst(v.Const, st))
	case VBinaryOp:
		return fmt.Sprintf("%s = binop[%d] %s", lhs, v.BinOp, dumpArgs(v.Args))
	case VUnaryOp:
		return fmt.Sprintf("%s = unop[%d] %s", lhs, v.UnOp, dumpArgs(v.Args))
	case VRead:
		return fmt.Sprintf("%s = read %s", lhs, dumpLValue(v.LV, st))
	case VWrite:
		return fmt.Sprintf("%s = write %s, %s", lhs, dumpLValue(v.LV, st), dumpArgs(v.Args))
	case VAlias:
		return fmt.Sprintf("%s = alias %s", lhs, dumpArgs(v.Args))
	case VPhi:
		return fmt.Sprintf("%s = phi%s", lhs, dumpPhi(f, v.ID))
	case VCall:
		return fmt.Sprintf("%s = call %s", lhs, dumpArgs(v.Args))
	case VMethodCall:
		name := ""
		if len(v.Args) > 0 {
			agg := f.Inst(v.Args[0])
			name, _ = st.Lookup(strtab.ID(agg.Member))
		}
		return fmt.Sprintf("%s = methodcall %s %s", lhs, name, dumpArgs(v.Args))
	case VAggregate:
		return fmt.Sprintf("%s = aggregate %s", lhs, dumpArgs(v.Args))
	case VGetAggregateMember:
		return fmt.Sprintf("%s = getmember[%d] %s", lhs, v.Member, dumpArgs(v.Args))
	case VMakeEnvironment:
		return fmt.Sprintf("%s = makeenv[%d] %s", lhs, v.Member, dumpArgs(v.Args))
	case VMakeClosure:
		return fmt.Sprintf("%s = makeclosure[%d] %s", lhs, v.Member, dumpArgs(v.Args))
	case VMakeIterator:
		return fmt.Sprintf("%s = makeiter %s", lhs, dumpArgs(v.Args))
	case VRecord:
		return fmt.Sprintf("%s = record[%d] %s", lhs, v.Member, dumpArgs(v.Args))
	case VContainer:
		return fmt.Sprintf("%s = container[%d] %s", lhs, v.CKind, dumpArgs(v.Args))
	case VFormat:
		return fmt.Sprintf("%s = format %s", lhs, dumpArgs(v.Args))
	case VPublishAssign:
		name, _ := st.Lookup(v.Symbol)
		return fmt.Sprintf("%s = publish %s %s", lhs, name, dumpArgs(v.Args))
	case VObserveAssign:
		name, _ := st.Lookup(v.Symbol)
		return fmt.Sprintf("%s = observe %s %s", lhs, name, dumpArgs(v.Args))
	case VOuterEnvironment:
		return fmt.Sprintf("%s = outerenv", lhs)
	case VNop:
		return fmt.Sprintf("%s = nop", lhs)
	case VError:
		msg, _ := st.Lookup(v.Const.S)
		return fmt.Sprintf("%s = error %q", lhs, msg)
	default:
		return fmt.Sprintf("%s = ?op%d", lhs, v.Op)
	}
}

func dumpPhi(f *Function, id InstID) string {
	info, ok := f.phis[id]
	if !ok {
		return ""
	}
	preds := make([]BlockID, 0, len(info.operands))
	for p := range info.operands {
		preds = append(preds, p)
	}
	slices.Sort(preds)
	var parts []string
	for _, p := range preds {
		parts = append(parts, fmt.Sprintf("block%d:v%d", p, info.operands[p]))
	}
	return " [" + strings.Join(parts, ", ") + "]"
}

func dumpArgs(args []InstID) string {
	parts := make([]string, len(args))
	for i, a := range args {
		if a == InvalidInst {
			parts[i] = "_"
		} else {
			parts[i] = fmt.Sprintf("v%d", a)
		}
	}
	return strings.Join(parts, ", ")
}

func dumpConst(c Const, st *strtab.Table) string {
	switch c.Kind {
	case CNull:
		return "null"
	case CTrue:
		return "true"
	case CFalse:
		return "false"
	case CInteger:
		return fmt.Sprintf("%d", c.I)
	case CFloat:
		return fmt.Sprintf("%g", c.F)
	case CString:
		s, _ := st.Lookup(c.S)
		return fmt.Sprintf("%q", s)
	case CSymbol:
		s, _ := st.Lookup(c.S)
		return "#" + s
	default:
		return "?const"
	}
}

func dumpLValue(lv LValue, st *strtab.Table) string {
	switch lv.Kind {
	case LModule:
		return fmt.Sprintf("module[%d]", lv.Member)
	case LParam:
		return fmt.Sprintf("param[%d]", lv.Param)
	case LClosure:
		return fmt.Sprintf("closure(env=v%d, level=%d, idx=%d)", lv.Env, lv.Level, lv.Index)
	case LField:
		name, _ := st.Lookup(lv.NameID)
		return fmt.Sprintf("field(v%d.%s)", lv.Base, name)
	case LTupleField:
		return fmt.Sprintf("tuplefield(v%d.%d)", lv.Base, lv.Index)
	case LIndex:
		return fmt.Sprintf("index(v%d[v%d])", lv.Base, lv.KeyInst)
	default:
		return "?lvalue"
	}
}

func dumpTerm(t *Terminator) string {
	switch t.Kind {
	case TJump:
		return fmt.Sprintf("jump block%d", t.Target)
	case TBranch:
		return fmt.Sprintf("branch[%d] v%d ? block%d : block%d", t.CondKind, t.Cond, t.Then, t.Else)
	case TReturn:
		return fmt.Sprintf("return v%d -> block%d", t.Value, t.Exit)
	case TAssertFail:
		return fmt.Sprintf("assertfail %q -> block%d", t.Msg, t.Exit)
	case TRethrow:
		return fmt.Sprintf("rethrow -> block%d", t.Exit)
	case TNever:
		return fmt.Sprintf("never -> block%d", t.Exit)
	case TEntry:
		return fmt.Sprintf("entry handlers=%v", t.Handlers)
	default:
		return "none"
	}
}
