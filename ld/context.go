package ld

import (
	"github.com/cockroachdb/errors"
)

// OutputKind is the kind of file the link produces.
type OutputKind int

// Enumeration of output kinds.
const (
	OutputExec OutputKind = iota
	OutputPie
	OutputShared
)

// OutputKindNames maps the names accepted in manifests and on the command
// line to output kinds.
var OutputKindNames = map[string]OutputKind{
	"exe":    OutputExec,
	"pie":    OutputPie,
	"shared": OutputShared,
}

func (k OutputKind) String() string {
	for name, kind := range OutputKindNames {
		if kind == k {
			return name
		}
	}

	return "unknown"
}

// Args are the link options relevant to symbol resolution and LTO.
type Args struct {
	Output       string
	Kind         OutputKind
	Target       *Target
	Plugin       string
	PluginOpts   []string
	LibraryPaths []string
}

// Context is the state of one link: the link graph and the global symbol
// table.
type Context struct {
	Args Args

	// Objs holds relocatables and IR objects in command line order, followed
	// by the objects added during LTO.
	Objs []*InputFile
	Dsos []*InputFile

	SymbolMap map[string]*Symbol

	// ReadIRObject turns an input recognized as compiler IR into an IR
	// object.  It is installed by the LTO session.
	ReadIRObject func(mf *MappedFile) (*InputFile, error)

	// priority is the last priority handed out.
	priority int64

	// mapped are the top-level files this context mapped and must unmap.
	mapped []*MappedFile
}

// NewContext creates a new link context.
func NewContext(args Args) *Context {
	return &Context{
		Args:      args,
		SymbolMap: make(map[string]*Symbol),
	}
}

// GetSymbol returns the global symbol named `name`, creating it if it does
// not exist yet.
func (ctx *Context) GetSymbol(name string) *Symbol {
	if sym, ok := ctx.SymbolMap[name]; ok {
		return sym
	}

	sym := NewSymbol(name)
	ctx.SymbolMap[name] = sym
	return sym
}

// LookupSymbol returns the global symbol named `name` if it exists.
func (ctx *Context) LookupSymbol(name string) (*Symbol, bool) {
	sym, ok := ctx.SymbolMap[name]
	return sym, ok
}

// NextPriority hands out the next priority ordinal.  Ordinals are strictly
// increasing over the lifetime of the context.
func (ctx *Context) NextPriority() int64 {
	ctx.priority++
	return ctx.priority
}

// OpenFile maps the file at `path` and ties its lifetime to the context.
func (ctx *Context) OpenFile(path string) (*MappedFile, error) {
	mf, err := OpenMappedFile(path)
	if err != nil {
		return nil, err
	}

	ctx.mapped = append(ctx.mapped, mf)
	return mf, nil
}

// AddObject appends a live native object to the link graph with a fresh
// priority and lets it claim the symbols it defines.
func (ctx *Context) AddObject(file *InputFile) {
	file.Priority = ctx.NextPriority()
	file.IsAlive = true
	ctx.Objs = append(ctx.Objs, file)
	file.ResolveSymbols()
}

// Files returns every file of the link graph: objects first, then shared
// objects.
func (ctx *Context) Files() []*InputFile {
	files := make([]*InputFile, 0, len(ctx.Objs)+len(ctx.Dsos))
	files = append(files, ctx.Objs...)
	return append(files, ctx.Dsos...)
}

// Close unmaps every file mapped by the context.
func (ctx *Context) Close() error {
	var err error
	for _, mf := range ctx.mapped {
		err = errors.CombineErrors(err, mf.Close())
	}

	ctx.mapped = nil
	return err
}
