package ir

import "github.com/dynvm-project/dynvm/strtab"

// EmitFormat lowers string interpolation to a Format instruction, folding
// maximal runs of constant arguments per §4.B.8. If the resulting argument
// list has exactly one element and it is already a string constant, that
// constant is returned directly instead of a Format wrapping it.
func (g *FunctionIRGen) EmitFormat(block BlockID, args []InstID) InstID {
	folded := g.foldFormatRuns(block, args)
	if len(folded) == 1 {
		if v := g.F.insts[folded[0]]; v.Op == VConstant && v.Const.Kind == CString {
			return folded[0]
		}
	}
	v := g.F.newInst(VFormat)
	v.Args = folded
	return g.F.emit(block, v)
}

// foldFormatRuns collapses every maximal run of length >= 2 of constant
// arguments into a single folded string constant, using EvalFormat.
func (g *FunctionIRGen) foldFormatRuns(block BlockID, args []InstID) []InstID {
	var out []InstID
	i := 0
	for i < len(args) {
		if g.F.insts[args[i]].Op != VConstant {
			out = append(out, args[i])
			i++
			continue
		}
		j := i
		var consts []Const
		for j < len(args) && g.F.insts[args[j]].Op == VConstant {
			consts = append(consts, g.F.insts[args[j]].Const)
			j++
		}
		if len(consts) >= 2 {
			s, err := EvalFormat(consts, func(id uint32) string {
				str, _ := g.strings.Lookup(strtab.ID(id))
				return str
			})
			if err == nil {
				out = append(out, g.EmitConstant(block, Const{Kind: CString, S: g.strings.Insert(s)}))
				i = j
				continue
			}
		}
		// run of length 1, or formatting failed: keep operands unfolded.
		out = append(out, args[i])
		i++
	}
	return out
}

// EmitContainer lowers a container literal (Array/Tuple/Set/Map).
func (g *FunctionIRGen) EmitContainer(block BlockID, kind ContainerKind, elems []InstID) InstID {
	v := g.F.newInst(VContainer)
	v.CKind = kind
	v.Args = elems
	return g.F.emit(block, v)
}

// EmitRecord lowers a record literal given a pre-registered record
// template id.
func (g *FunctionIRGen) EmitRecord(block BlockID, templateID int, values []InstID) InstID {
	v := g.F.newInst(VRecord)
	v.Member = templateID
	v.Args = values
	return g.F.emit(block, v)
}

// InternRecordTemplate registers keys as a new record template and returns
// its id, reusing an existing template if one already has the same key
// order.
func (f *Function) InternRecordTemplate(keys []Symbol) int {
	for i, t := range f.RecordTemplates {
		if sameSymbols(t, keys) {
			return i
		}
	}
	f.RecordTemplates = append(f.RecordTemplates, append([]Symbol(nil), keys...))
	return len(f.RecordTemplates) - 1
}

func sameSymbols(a, b []Symbol) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
