package ir

import "testing"

func TestClosureVariableResolvesAcrossEnvironmentLevels(t *testing.T) {
	g, st := newGen("f")
	outer := st.Insert("counter")

	outerEnv, cur := g.OpenClosureEnv(nil, []Symbol{outer}, g.F.Body)
	innerEnv, cur := g.OpenClosureEnv(outerEnv, nil, cur)

	id := g.ReadClosureVar(innerEnv, outer, cur)
	inst := g.F.Inst(id)
	if inst.Op != VRead || inst.LV.Kind != LClosure {
		t.Fatalf("expected a Closure LValue read, got %+v", inst)
	}
	if inst.LV.Level != 1 {
		t.Fatalf("expected level 1 (one hop to outer env), got %d", inst.LV.Level)
	}
	if inst.LV.Index != 0 {
		t.Fatalf("expected slot 0 for the first captured symbol, got %d", inst.LV.Index)
	}
}

func TestClosureVariableNotFoundEmitsDiagnostic(t *testing.T) {
	g, st := newGen("f")
	env, cur := g.OpenClosureEnv(nil, []Symbol{st.Insert("a")}, g.F.Body)
	missing := st.Insert("nowhere")
	id := g.ReadClosureVar(env, missing, cur)
	if g.F.Inst(id).Op != VError {
		t.Fatal("expected an Error instruction for an unresolved closure variable")
	}
}
