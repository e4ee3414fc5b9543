package runtime

import (
	"github.com/google/uuid"

	"github.com/dynvm-project/dynvm/handle"
	"github.com/dynvm-project/dynvm/heap"
	"github.com/dynvm-project/dynvm/module"
	"github.com/dynvm-project/dynvm/strtab"
	"github.com/dynvm-project/dynvm/value"
)

// Context is the single owning struct for every piece of global mutable
// state this VM needs (§9's "Global mutable state"): the string table, the
// managed heap, the type registry, and the module registry. Every other
// component takes a *Context (or a narrower capability interface) rather
// than reaching for a package-level global — the one exception is the GC
// page-arena's OS mmap handle (heap.allocArena), a real OS resource rather
// than program state, and that stays heap-package-scoped above this.
type Context struct {
	ID uuid.UUID

	Config  Config
	Strings *strtab.Table
	Heap    *heap.Heap
	Types   *value.TypeRegistry

	Globals *handle.GlobalSet

	// Externals and Frames back §4.F's other two root sources: slots whose
	// lifetime is managed explicitly by host code rather than scoped to a
	// Go stack frame. Registered as heap roots right alongside Globals and
	// Scope so the GC's root-scan really does "visit every slot store", as
	// §4.F requires, rather than only the ones a Go-level defer covers.
	Externals *handle.External
	Frames    *handle.FrameCollection

	// Registry is the module registry (§6): every module loaded into this
	// Context, keyed by name, in strict topological load order.
	Registry *module.Registry
}

// NewContext builds a fresh, independently rooted Context. Two Contexts
// never share a heap or string table — mirrors the teacher's
// one-vmm-region-per-process simplification taken the other direction:
// here, every Context gets its own arena rather than sharing one.
func NewContext(cfg Config) *Context {
	h := heap.New(cfg.HeapConfig(), nil)
	types := value.NewTypeRegistry(h)
	ctx := &Context{
		ID:        uuid.New(),
		Config:    cfg,
		Strings:   strtab.New(),
		Heap:      h,
		Types:     types,
		Globals:   handle.NewGlobalSet(),
		Externals: handle.NewExternal(),
		Frames:    handle.NewFrameCollection(),
		Registry:  module.NewRegistry(),
	}
	h.AddRoot(ctx.Globals)
	h.AddRoot(ctx.Externals)
	h.AddRoot(ctx.Frames)
	return ctx
}

// LoadModule loads name (and its transitive imports) from src into this
// Context's module registry, resolving import/export names through the
// Context's shared string table.
func (c *Context) LoadModule(src module.Source, name string) (*module.LoadedModule, error) {
	return module.Load(c.Registry, src, c.Strings, name)
}

// NewScope opens a GC-rooted scope registered with this Context's heap for
// the caller's lifetime; the caller must Close it (typically via defer).
func (c *Context) NewScope() *handle.Scope {
	s := handle.NewScope(nil)
	c.Heap.AddRoot(s)
	return s
}
