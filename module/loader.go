package module

import (
	"fmt"

	"github.com/dynvm-project/dynvm/strtab"
)

// Registry is the Context-owned set of modules loaded so far (§6, §9's
// "module registry"). Modules are inserted in load order, which is always
// a valid topological order by the time Load returns.
type Registry struct {
	byName map[string]*LoadedModule
	order  []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*LoadedModule)}
}

// Lookup returns the already-loaded module named name, if any.
func (r *Registry) Lookup(name string) (*LoadedModule, bool) {
	m, ok := r.byName[name]
	return m, ok
}

// Loaded returns every module currently in the registry, in load order.
func (r *Registry) Loaded() []*LoadedModule {
	out := make([]*LoadedModule, len(r.order))
	for i, n := range r.order {
		out[i] = r.byName[n]
	}
	return out
}

// LoadedModule is a Module after import resolution: every MemberImport
// slot has been replaced by a reference to the imported module.
type LoadedModule struct {
	Name    string
	Module  *Module
	Exports map[string]int // export name -> member index
	Imports []*LoadedModule // parallel to the Module's MemberImport members, in order
}

// Export looks up an exported member index by name.
func (m *LoadedModule) Export(name string) (int, bool) {
	i, ok := m.Exports[name]
	return i, ok
}

// Source resolves a module by name on demand, used by Load to pull in a
// transitive dependency it hasn't seen yet. Callers (typically a compiler
// driver or bundler) implement this over wherever compiled modules live —
// this package only owns load order and cycle detection.
type Source interface {
	Module(name string) (*Module, error)
}

// loadState tracks a module's position in the topological load, needed to
// detect cycles: a module revisited while still "in progress" means some
// earlier module transitively imports it before it finished loading.
type loadState uint8

const (
	notStarted loadState = iota
	inProgress
	done
)

// Load loads the module named name (and every module it transitively
// imports) into r, in strict topological order (§6). strings resolves the
// String/Symbol member text that import and export names reference — the
// same table the rest of the Context shares, so member-carried names
// never need their own private storage. A module already in the registry
// is returned as-is. Returns a fatal error on an import cycle, matching
// the spec's "a dependency cycle among modules is a fatal load-time
// error".
func Load(r *Registry, src Source, strings *strtab.Table, name string) (*LoadedModule, error) {
	state := make(map[string]loadState)
	return load(r, src, strings, name, state)
}

func load(r *Registry, src Source, strings *strtab.Table, name string, state map[string]loadState) (*LoadedModule, error) {
	if m, ok := r.byName[name]; ok {
		return m, nil
	}
	switch state[name] {
	case inProgress:
		return nil, fmt.Errorf("module: import cycle detected at %q", name)
	case done:
		// should be unreachable: done implies byName[name] is set above.
		return nil, fmt.Errorf("module: internal error resolving %q", name)
	}
	state[name] = inProgress

	mod, err := src.Module(name)
	if err != nil {
		return nil, fmt.Errorf("module: loading %q: %w", name, err)
	}

	lm := &LoadedModule{Name: name, Module: mod, Exports: make(map[string]int)}
	for _, member := range mod.Members {
		if member.Kind != MemberImport {
			continue
		}
		importName := memberString(mod, strings, member.Import)
		dep, err := load(r, src, strings, importName, state)
		if err != nil {
			return nil, err
		}
		lm.Imports = append(lm.Imports, dep)
	}
	for _, exp := range mod.Exports {
		lm.Exports[memberString(mod, strings, exp.SymbolIndex)] = exp.ValueIndex
	}

	state[name] = done
	r.byName[name] = lm
	r.order = append(r.order, name)
	return lm, nil
}

// memberString resolves a String-or-Symbol member index to its raw text.
// Symbol members (§6) carry the index of the String member they name.
func memberString(mod *Module, strings *strtab.Table, idx int) string {
	m := mod.Members[idx]
	if m.Kind == MemberSymbol {
		return memberString(mod, strings, m.Symbol)
	}
	return strings.Value(m.String)
}
