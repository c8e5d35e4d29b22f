package ld

import "debug/elf"

// ElfSym is a decoded ELF symbol table entry.  Placeholder symbols built for
// IR objects use the same representation.
type ElfSym struct {
	Name       string
	Value      uint64
	Size       uint64
	Shndx      elf.SectionIndex
	Bind       elf.SymBind
	Type       elf.SymType
	Visibility elf.SymVis
}

func (esym *ElfSym) IsUndef() bool {
	return esym.Shndx == elf.SHN_UNDEF
}

func (esym *ElfSym) IsAbs() bool {
	return esym.Shndx == elf.SHN_ABS
}

func (esym *ElfSym) IsCommon() bool {
	return esym.Shndx == elf.SHN_COMMON
}

func (esym *ElfSym) IsWeak() bool {
	return esym.Bind == elf.STB_WEAK
}

// IsDefined returns whether the symbol is defined by its file, including
// common definitions.
func (esym *ElfSym) IsDefined() bool {
	return !esym.IsUndef()
}
