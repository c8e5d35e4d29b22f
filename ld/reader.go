package ld

import (
	"bytes"
	"debug/elf"

	"github.com/cockroachdb/errors"
)

// ReadObject parses `mf` as an ELF relocatable for the context's target.  If
// the context has no target yet, the object decides it.
func ReadObject(ctx *Context, mf *MappedFile) (*InputFile, error) {
	f, err := openElf(ctx, mf, elf.ET_REL)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	syms, err := f.Symbols()
	if err != nil && !errors.Is(err, elf.ErrNoSymbols) {
		return nil, errors.Wrapf(err, "%s: cannot read symbol table", mf.DisplayName())
	}

	file := NewInputFile(mf, InputFileObject)
	file.InitSymbols(ctx, convertSymbols(syms), firstGlobal(f, elf.SHT_SYMTAB))
	return file, nil
}

// ReadShared parses `mf` as an ELF shared object.  Only its dynamic symbol
// table takes part in resolution.
func ReadShared(ctx *Context, mf *MappedFile) (*InputFile, error) {
	f, err := openElf(ctx, mf, elf.ET_DYN)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	syms, err := f.DynamicSymbols()
	if err != nil && !errors.Is(err, elf.ErrNoSymbols) {
		return nil, errors.Wrapf(err, "%s: cannot read dynamic symbol table", mf.DisplayName())
	}

	file := NewInputFile(mf, InputFileShared)
	file.InitSymbols(ctx, convertSymbols(syms), firstGlobal(f, elf.SHT_DYNSYM))

	if sonames, err := f.DynString(elf.DT_SONAME); err == nil && len(sonames) > 0 {
		file.Soname = sonames[0]
	} else {
		file.Soname = mf.Name
	}

	return file, nil
}

// openElf parses the ELF header of `mf` and validates its type and machine.
func openElf(ctx *Context, mf *MappedFile, typ elf.Type) (*elf.File, error) {
	f, err := elf.NewFile(bytes.NewReader(mf.Data))
	if err != nil {
		return nil, errors.Wrapf(err, "%s: malformed ELF file", mf.DisplayName())
	}

	if f.Type != typ {
		f.Close()
		return nil, errors.Newf("%s: expected %s, found %s", mf.DisplayName(), typ, f.Type)
	}

	target := TargetOf(mf.Data)
	if target == nil {
		f.Close()
		return nil, errors.Newf("%s: unsupported machine type %s", mf.DisplayName(), f.Machine)
	}

	if ctx.Args.Target == nil {
		ctx.Args.Target = target
	} else if ctx.Args.Target != target {
		f.Close()
		return nil, errors.Newf("%s: incompatible file type: %s is expected but got %s",
			mf.DisplayName(), ctx.Args.Target, target)
	}

	return f, nil
}

// convertSymbols converts symbols as returned by debug/elf, which omits the
// null symbol, into a symbol table starting with the null symbol.
func convertSymbols(syms []elf.Symbol) []ElfSym {
	esyms := make([]ElfSym, len(syms)+1)
	for i, sym := range syms {
		esyms[i+1] = ElfSym{
			Name:       sym.Name,
			Value:      sym.Value,
			Size:       sym.Size,
			Shndx:      sym.Section,
			Bind:       elf.ST_BIND(sym.Info),
			Type:       elf.ST_TYPE(sym.Info),
			Visibility: elf.ST_VISIBILITY(sym.Other),
		}
	}

	return esyms
}

// firstGlobal returns the index of the first non-local symbol of the symbol
// table of type `typ`, as recorded in its sh_info.
func firstGlobal(f *elf.File, typ elf.SectionType) int {
	for _, sec := range f.Sections {
		if sec.Type == typ {
			return int(sec.Info)
		}
	}

	return 1
}
