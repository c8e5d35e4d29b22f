package ld

import "debug/elf"

// InputFileKind distinguishes the files of the link graph.
type InputFileKind int

// Enumeration of input file kinds.
const (
	InputFileObject InputFileKind = iota // ELF relocatable
	InputFileShared                      // ELF shared object
	InputFileIR                          // compiler IR claimed by the LTO plugin
)

func (k InputFileKind) String() string {
	switch k {
	case InputFileObject:
		return "object"
	case InputFileShared:
		return "shared"
	case InputFileIR:
		return "ir"
	}

	return "unknown"
}

// InputFile is a file participating in symbol resolution.
type InputFile struct {
	File *MappedFile
	Kind InputFileKind

	// ElfSyms is the symbol table of the file.  Index 0 is always the null
	// symbol.
	ElfSyms []ElfSym

	// Symbols is parallel to ElfSyms: entries from FirstGlobal onward are the
	// interned global symbols, local entries belong to this file alone.
	Symbols     []*Symbol
	FirstGlobal int

	// Priority orders files for tie breaks: lower wins.  Every file gets a
	// distinct priority.
	Priority int64

	// IsAlive marks files which are part of the output.  Archive members
	// start out lazy and are pulled in by references.
	IsAlive bool
	InLib   bool

	// Soname is the DT_SONAME of a shared object.
	Soname string
}

// NewInputFile creates a file of kind `kind` for `mf` with no symbols.
func NewInputFile(mf *MappedFile, kind InputFileKind) *InputFile {
	return &InputFile{File: mf, Kind: kind, Priority: -1}
}

// Name returns the display name of the file.
func (f *InputFile) Name() string {
	return f.File.DisplayName()
}

func (f *InputFile) IsIR() bool {
	return f.Kind == InputFileIR
}

func (f *InputFile) IsDSO() bool {
	return f.Kind == InputFileShared
}

// InitSymbols installs `esyms` as the symbol table of the file and interns
// every global in `ctx`.  `esyms[0]` must be the null symbol.
func (f *InputFile) InitSymbols(ctx *Context, esyms []ElfSym, firstGlobal int) {
	if firstGlobal < 1 {
		firstGlobal = 1
	}

	if firstGlobal > len(esyms) {
		firstGlobal = len(esyms)
	}

	f.ElfSyms = esyms
	f.FirstGlobal = firstGlobal
	f.Symbols = make([]*Symbol, len(esyms))

	for i := 0; i < firstGlobal; i++ {
		sym := NewSymbol(esyms[i].Name)
		if i > 0 && esyms[i].IsDefined() {
			sym.SetOwner(f, i)
		}

		f.Symbols[i] = sym
	}

	for i := firstGlobal; i < len(esyms); i++ {
		f.Symbols[i] = ctx.GetSymbol(esyms[i].Name)
	}
}

// rank computes the precedence of a definition: lower values win.  Defined
// symbols of lazy archive members lose to those of live files.
func (f *InputFile) rank(esym *ElfSym) int {
	var rank int
	switch {
	case esym.IsCommon():
		rank = 5
	case f.IsDSO() && esym.IsWeak():
		rank = 4
	case f.IsDSO():
		rank = 3
	case esym.IsWeak():
		rank = 2
	default:
		rank = 1
	}

	if !f.IsAlive {
		rank += 5
	}

	return rank
}

// beats returns whether the definition `esym` of `f` should replace the
// definition `other` of `otherFile`.  At equal rank, native code wins over IR
// placeholders: this is what lets objects compiled by the LTO plugin replace
// the definitions of the IR objects they were compiled from.
func (f *InputFile) beats(esym *ElfSym, otherFile *InputFile, other *ElfSym) bool {
	r1, r2 := f.rank(esym), otherFile.rank(other)
	if r1 != r2 {
		return r1 < r2
	}

	if f.IsIR() != otherFile.IsIR() {
		return !f.IsIR()
	}

	return f.Priority < otherFile.Priority
}

// ResolveSymbols claims every global symbol this file defines better than its
// current owner.
func (f *InputFile) ResolveSymbols() {
	for i := f.FirstGlobal; i < len(f.ElfSyms); i++ {
		esym := &f.ElfSyms[i]
		if esym.IsUndef() {
			continue
		}

		// the first definition of a name duplicated within one file wins
		sym := f.Symbols[i]
		if sym.File == f {
			continue
		}

		if sym.File == nil || f.beats(esym, sym.File, sym.ElfSym()) {
			sym.SetOwner(f, i)
		}
	}
}

// ClearSymbols resets every global symbol owned by this file.
func (f *InputFile) ClearSymbols() {
	for i := f.FirstGlobal; i < len(f.Symbols); i++ {
		if sym := f.Symbols[i]; sym.File == f {
			sym.Clear()
		}
	}
}

// UndefinedRefs returns the indices of the non-weak undefined global
// references of the file.
func (f *InputFile) UndefinedRefs() []int {
	var refs []int
	for i := f.FirstGlobal; i < len(f.ElfSyms); i++ {
		esym := &f.ElfSyms[i]
		if esym.IsUndef() && esym.Bind != elf.STB_WEAK {
			refs = append(refs, i)
		}
	}

	return refs
}
