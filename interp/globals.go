package interp

import (
	"github.com/dynvm-project/dynvm/module"
	"github.com/dynvm-project/dynvm/runtime"
	"github.com/dynvm-project/dynvm/value"
)

// modGlobals memoizes one loaded module's member values: constants are
// materialized into heap Values on first read, MemberVariable slots start
// at Null and are mutated in place by StoreModule (§6's module member
// table doubles as the module's global variable storage).
type modGlobals struct {
	values []value.Value
	ready  []bool
}

func (m *Machine) globalsFor(mod *module.LoadedModule) *modGlobals {
	if m.globals == nil {
		m.globals = make(map[*module.LoadedModule]*modGlobals)
	}
	g, ok := m.globals[mod]
	if !ok {
		n := len(mod.Module.Members)
		g = &modGlobals{values: make([]value.Value, n), ready: make([]bool, n)}
		m.globals[mod] = g
	}
	return g
}

// loadModuleMember materializes (and memoizes) member idx of mod as a
// runtime Value.
func (m *Machine) loadModuleMember(mod *module.LoadedModule, idx int) (value.Value, error) {
	g := m.globalsFor(mod)
	if g.ready[idx] {
		return g.values[idx], nil
	}
	mem := mod.Module.Members[idx]
	var v value.Value
	switch mem.Kind {
	case module.MemberInteger:
		v = boxInt(m.ctx.Types, mem.Integer)
	case module.MemberFloat:
		v = boxFloat(m.ctx.Types, mem.Float)
	case module.MemberString:
		v = m.ctx.Types.AllocStringBytes([]byte(m.ctx.Strings.Value(mem.String)))
	case module.MemberSymbol:
		name, err := m.loadModuleMember(mod, mem.Symbol)
		if err != nil {
			return value.Null, err
		}
		v = m.ctx.Types.AllocSymbolBytes(m.ctx.Types.StringBytes(name))
	case module.MemberFunction:
		v = m.MakeFunction(mod, idx, value.Null)
	case module.MemberVariable:
		v = value.Null
	default:
		return value.Null, &runtime.RuntimeError{Op: "load_module", Err: "member is not a loadable value"}
	}
	g.values[idx] = v
	g.ready[idx] = true
	return v, nil
}

// storeModuleMember overwrites member idx's materialized value (only
// sensible for MemberVariable slots; the compiler never emits StoreModule
// against anything else).
func (m *Machine) storeModuleMember(mod *module.LoadedModule, idx int, v value.Value) {
	g := m.globalsFor(mod)
	g.values[idx] = v
	g.ready[idx] = true
}
