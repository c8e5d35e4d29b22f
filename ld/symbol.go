package ld

// Symbol is a global symbol interned by name in the context's symbol table.
// `File` is the file whose definition currently wins, or nil when no file
// defines the symbol.
type Symbol struct {
	Name   string
	File   *InputFile
	SymIdx int
}

// NewSymbol creates an unowned symbol.
func NewSymbol(name string) *Symbol {
	return &Symbol{Name: name, SymIdx: -1}
}

// ElfSym returns the winning definition of the symbol.  It must only be
// called on owned symbols.
func (sym *Symbol) ElfSym() *ElfSym {
	return &sym.File.ElfSyms[sym.SymIdx]
}

// SetOwner makes the definition at index `idx` of `file` the winner.
func (sym *Symbol) SetOwner(file *InputFile, idx int) {
	sym.File = file
	sym.SymIdx = idx
}

// Clear resets the symbol to "no owner".
func (sym *Symbol) Clear() {
	sym.File = nil
	sym.SymIdx = -1
}
