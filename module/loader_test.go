package module

import (
	"testing"

	"github.com/dynvm-project/dynvm/strtab"
)

type memSource struct {
	mods map[string]*Module
}

func (s memSource) Module(name string) (*Module, error) {
	m, ok := s.mods[name]
	if !ok {
		return nil, errNotFound(name)
	}
	return m, nil
}

type errNotFound string

func (e errNotFound) Error() string { return "module not found: " + string(e) }

func importModule(st *strtab.Table, imported string) *Module {
	return &Module{
		Name: "root",
		Members: []Member{
			{Kind: MemberString, String: st.Insert(imported)},
			{Kind: MemberImport, Import: 0},
		},
	}
}

func TestLoadResolvesTransitiveImportsInTopologicalOrder(t *testing.T) {
	st := strtab.New()
	leaf := &Module{Name: "leaf"}
	mid := importModule(st, "leaf")
	mid.Name = "mid"
	root := importModule(st, "mid")
	root.Name = "root"

	src := memSource{mods: map[string]*Module{"leaf": leaf, "mid": mid, "root": root}}
	r := NewRegistry()
	if _, err := Load(r, src, st, "root"); err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	loaded := r.Loaded()
	order := make([]string, len(loaded))
	for i, m := range loaded {
		order[i] = m.Name
	}
	if len(order) != 3 || order[0] != "leaf" || order[1] != "mid" || order[2] != "root" {
		t.Fatalf("expected strict topological order [leaf mid root], got %v", order)
	}
}

func TestLoadDetectsImportCycle(t *testing.T) {
	st := strtab.New()
	a := importModule(st, "b")
	a.Name = "a"
	b := importModule(st, "a")
	b.Name = "b"

	src := memSource{mods: map[string]*Module{"a": a, "b": b}}
	r := NewRegistry()
	if _, err := Load(r, src, st, "a"); err == nil {
		t.Fatal("expected a fatal error for an import cycle")
	}
}

func TestLoadIsIdempotentForAnAlreadyLoadedModule(t *testing.T) {
	st := strtab.New()
	leaf := &Module{Name: "leaf"}
	src := memSource{mods: map[string]*Module{"leaf": leaf}}
	r := NewRegistry()
	first, err := Load(r, src, st, "leaf")
	if err != nil {
		t.Fatal(err)
	}
	second, err := Load(r, src, st, "leaf")
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatal("expected the same *LoadedModule instance on a repeat load")
	}
}
