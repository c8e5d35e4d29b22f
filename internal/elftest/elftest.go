// Package elftest builds small ELF images for tests: relocatables and shared
// objects with just enough structure (symbol tables, a dynamic section, named
// sections) for the linker's readers.
package elftest

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// Sym is a symbol to place in the image.
type Sym struct {
	Name       string
	Value      uint64
	Size       uint64
	Shndx      elf.SectionIndex
	Bind       elf.SymBind
	Type       elf.SymType
	Visibility elf.SymVis
}

// textSection is the index of the `.text` section every image has.
const textSection elf.SectionIndex = 1

// Def is a strong function definition in `.text`.
func Def(name string) Sym {
	return Sym{Name: name, Shndx: textSection, Bind: elf.STB_GLOBAL, Type: elf.STT_FUNC}
}

// Weak is a weak function definition in `.text`.
func Weak(name string) Sym {
	return Sym{Name: name, Shndx: textSection, Bind: elf.STB_WEAK, Type: elf.STT_FUNC}
}

// Local is a local function definition in `.text`.
func Local(name string) Sym {
	return Sym{Name: name, Shndx: textSection, Bind: elf.STB_LOCAL, Type: elf.STT_FUNC}
}

// Undef is a strong undefined reference.
func Undef(name string) Sym {
	return Sym{Name: name, Bind: elf.STB_GLOBAL}
}

// WeakUndef is a weak undefined reference.
func WeakUndef(name string) Sym {
	return Sym{Name: name, Bind: elf.STB_WEAK}
}

// Common is a common symbol of `size` bytes.
func Common(name string, size uint64) Sym {
	return Sym{Name: name, Shndx: elf.SHN_COMMON, Bind: elf.STB_GLOBAL, Type: elf.STT_OBJECT, Size: size, Value: 8}
}

// Section is an extra section to place in the image.
type Section struct {
	Name string
	Type elf.SectionType
	Data []byte
}

// File describes an ELF image.
type File struct {
	Type     elf.Type
	Machine  elf.Machine
	Soname   string
	Syms     []Sym
	Sections []Section
}

// Object describes an x86_64 relocatable with the given symbols.
func Object(syms ...Sym) *File {
	return &File{Type: elf.ET_REL, Machine: elf.EM_X86_64, Syms: syms}
}

// Shared describes an x86_64 shared object with the given dynamic symbols.
func Shared(soname string, syms ...Sym) *File {
	return &File{Type: elf.ET_DYN, Machine: elf.EM_X86_64, Soname: soname, Syms: syms}
}

// GccSlimLTO describes a slim GCC LTO object: no code, only `.gnu.lto_`
// sections and the marker symbol.
func GccSlimLTO() *File {
	f := Object(Sym{Name: "__gnu_lto_slim", Shndx: elf.SHN_COMMON, Bind: elf.STB_GLOBAL, Type: elf.STT_OBJECT, Size: 1, Value: 1})
	f.Sections = []Section{{Name: ".gnu.lto_.symtab.0", Type: elf.SHT_PROGBITS, Data: []byte{0}}}
	return f
}

// strtab accumulates a string table.
type strtab struct {
	buf bytes.Buffer
}

func newStrtab() *strtab {
	st := &strtab{}
	st.buf.WriteByte(0)
	return st
}

func (st *strtab) add(s string) uint32 {
	if s == "" {
		return 0
	}

	off := uint32(st.buf.Len())
	st.buf.WriteString(s)
	st.buf.WriteByte(0)
	return off
}

type section struct {
	name      string
	hdr       elf.Section64
	data      []byte
	alignment uint64
}

// Bytes encodes the image.
func (f *File) Bytes() []byte {
	order := binary.LittleEndian

	syms := append([]Sym(nil), f.Syms...)
	sort.SliceStable(syms, func(i, j int) bool {
		return syms[i].Bind == elf.STB_LOCAL && syms[j].Bind != elf.STB_LOCAL
	})

	firstGlobal := 1
	for _, sym := range syms {
		if sym.Bind == elf.STB_LOCAL {
			firstGlobal++
		}
	}

	sections := []*section{{
		name:      ".text",
		hdr:       elf.Section64{Type: uint32(elf.SHT_PROGBITS), Flags: uint64(elf.SHF_ALLOC | elf.SHF_EXECINSTR)},
		data:      make([]byte, 16),
		alignment: 16,
	}}

	for _, extra := range f.Sections {
		sections = append(sections, &section{
			name:      extra.Name,
			hdr:       elf.Section64{Type: uint32(extra.Type)},
			data:      extra.Data,
			alignment: 1,
		})
	}

	strs := newStrtab()
	var symData bytes.Buffer
	binary.Write(&symData, order, elf.Sym64{})
	for _, sym := range syms {
		binary.Write(&symData, order, elf.Sym64{
			Name:  strs.add(sym.Name),
			Info:  elf.ST_INFO(sym.Bind, sym.Type),
			Other: uint8(sym.Visibility),
			Shndx: uint16(sym.Shndx),
			Value: sym.Value,
			Size:  sym.Size,
		})
	}

	symtabName, symtabType, strtabName := ".symtab", elf.SHT_SYMTAB, ".strtab"
	if f.Type == elf.ET_DYN {
		symtabName, symtabType, strtabName = ".dynsym", elf.SHT_DYNSYM, ".dynstr"
	}

	var dynData bytes.Buffer
	if f.Type == elf.ET_DYN {
		if f.Soname != "" {
			binary.Write(&dynData, order, elf.Dyn64{Tag: int64(elf.DT_SONAME), Val: uint64(strs.add(f.Soname))})
		}
		binary.Write(&dynData, order, elf.Dyn64{Tag: int64(elf.DT_NULL)})
	}

	// the symbol table links to the string table right after it
	symtabIdx := uint32(len(sections) + 1)
	sections = append(sections,
		&section{
			name: symtabName,
			hdr: elf.Section64{
				Type:    uint32(symtabType),
				Link:    symtabIdx + 1,
				Info:    uint32(firstGlobal),
				Entsize: elf.Sym64Size,
			},
			data:      symData.Bytes(),
			alignment: 8,
		},
		&section{
			name:      strtabName,
			hdr:       elf.Section64{Type: uint32(elf.SHT_STRTAB)},
			data:      strs.buf.Bytes(),
			alignment: 1,
		},
	)

	if f.Type == elf.ET_DYN {
		sections = append(sections, &section{
			name:      ".dynamic",
			hdr:       elf.Section64{Type: uint32(elf.SHT_DYNAMIC), Link: symtabIdx + 1, Entsize: 16},
			data:      dynData.Bytes(),
			alignment: 8,
		})
	}

	shstrs := newStrtab()
	for _, sec := range sections {
		sec.hdr.Name = shstrs.add(sec.name)
	}

	shstrtab := &section{name: ".shstrtab", hdr: elf.Section64{Type: uint32(elf.SHT_STRTAB)}, alignment: 1}
	shstrtab.hdr.Name = shstrs.add(shstrtab.name)
	shstrtab.data = shstrs.buf.Bytes()
	sections = append(sections, shstrtab)

	// lay out section contents after the ELF header
	off := uint64(64)
	for _, sec := range sections {
		off = alignTo(off, sec.alignment)
		sec.hdr.Off = off
		sec.hdr.Size = uint64(len(sec.data))
		sec.hdr.Addralign = sec.alignment
		off += sec.hdr.Size
	}

	shoff := alignTo(off, 8)

	var ident [elf.EI_NIDENT]byte
	copy(ident[:], elf.ELFMAG)
	ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	var out bytes.Buffer
	binary.Write(&out, order, elf.Header64{
		Ident:     ident,
		Type:      uint16(f.Type),
		Machine:   uint16(f.Machine),
		Version:   uint32(elf.EV_CURRENT),
		Shoff:     shoff,
		Ehsize:    64,
		Shentsize: 64,
		Shnum:     uint16(len(sections) + 1),
		Shstrndx:  uint16(len(sections)),
	})

	for _, sec := range sections {
		pad(&out, sec.hdr.Off)
		out.Write(sec.data)
	}

	pad(&out, shoff)
	binary.Write(&out, order, elf.Section64{})
	for _, sec := range sections {
		binary.Write(&out, order, sec.hdr)
	}

	return out.Bytes()
}

// Write encodes the image into the file `name` inside `dir` and returns its
// path.
func (f *File) Write(dir, name string) (string, error) {
	path := filepath.Join(dir, name)
	return path, os.WriteFile(path, f.Bytes(), 0o644)
}

func alignTo(off, alignment uint64) uint64 {
	if alignment <= 1 {
		return off
	}

	return (off + alignment - 1) &^ (alignment - 1)
}

func pad(buf *bytes.Buffer, off uint64) {
	for uint64(buf.Len()) < off {
		buf.WriteByte(0)
	}
}

// Archive encodes a System V archive with the given members, using a `//`
// long-name table for names that do not fit the header.
func Archive(members map[string][]byte) []byte {
	names := make([]string, 0, len(members))
	for name := range members {
		names = append(names, name)
	}
	sort.Strings(names)

	var longNames bytes.Buffer
	headerNames := make(map[string]string)
	for _, name := range names {
		if len(name) < 16 {
			headerNames[name] = name + "/"
		} else {
			headerNames[name] = "/" + strconv.Itoa(longNames.Len())
			longNames.WriteString(name + "/\n")
		}
	}

	var out bytes.Buffer
	out.WriteString("!<arch>\n")

	writeMember := func(name string, data []byte) {
		writeField(&out, name, 16)
		writeField(&out, "0", 12)
		writeField(&out, "0", 6)
		writeField(&out, "0", 6)
		writeField(&out, "644", 8)
		writeField(&out, strconv.Itoa(len(data)), 10)
		out.WriteString("`\n")
		out.Write(data)
		if out.Len()%2 == 1 {
			out.WriteByte('\n')
		}
	}

	if longNames.Len() > 0 {
		writeMember("//", longNames.Bytes())
	}

	for _, name := range names {
		writeMember(headerNames[name], members[name])
	}

	return out.Bytes()
}

func writeField(buf *bytes.Buffer, s string, width int) {
	buf.WriteString(s)
	for i := len(s); i < width; i++ {
		buf.WriteByte(' ')
	}
}
