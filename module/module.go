// Package module implements the bytecode module loader described in spec
// component §6: an ordered member list per module, strict topological
// loading across inter-module imports, and cycle detection as a fatal
// load error.
package module

import (
	"github.com/dynvm-project/dynvm/strtab"
)

// MemberKind tags one compiled module member's payload shape (§6's member
// table).
type MemberKind uint8

const (
	MemberInvalid MemberKind = iota
	MemberInteger
	MemberFloat
	MemberString
	MemberSymbol
	MemberImport
	MemberVariable
	MemberFunction
	MemberRecordTemplate
)

// FunctionDef is the payload of a MemberFunction member: everything the
// interpreter needs to run one compiled function body (§6, §4.I).
type FunctionDef struct {
	Params  int
	Locals  int
	Code    []byte
	Handlers []HandlerEntry
}

// HandlerEntry is one row of a function's exception-handler table (§4.I):
// the pc range [From, To) that the handler covers, and the pc execution
// resumes at when an exception propagates through it.
type HandlerEntry struct {
	From, To, Target uint32
}

// Member is one entry of a Module's ordered member list. Exactly one of
// the payload fields is meaningful, selected by Kind.
type Member struct {
	Kind MemberKind

	Integer int64
	Float   float64
	String  strtab.ID // MemberString: the interned text itself
	Symbol  int        // MemberSymbol: index of the String member it names
	Import  int        // MemberImport: index of the String member naming the module
	Function *FunctionDef
	RecordTemplate []int // indices of Symbol members (the record's keys)
}

// Export pairs an exported member's name with the member slot holding its
// value (§6: "Exports are a list of (symbol_index, value_index) pairs").
type Export struct {
	SymbolIndex int
	ValueIndex  int
}

// Module is one compiled, not-yet-loaded unit (the loader's input): an
// ordered member list, its exports, and an optional initializer.
type Module struct {
	Name        string
	Members     []Member
	Exports     []Export
	Initializer int // member index of the init function, or -1
}
