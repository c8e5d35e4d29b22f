package ld

import (
	"debug/elf"
	"encoding/binary"
	"strings"
)

// MachineType identifies one of the instruction-set targets the linker
// supports.
type MachineType int

// Enumeration of supported machine types.
const (
	MachineTypeNone MachineType = iota
	MachineTypeX86_64
	MachineTypeI386
	MachineTypeARM64
	MachineTypeRISCV64
)

// Target describes the ELF flavour of a machine type.  The LTO bridge is
// written once against the linker model; the target only decides which
// native objects the plugin is allowed to hand back.
type Target struct {
	Machine    MachineType
	Name       string
	ElfMachine elf.Machine
	Class      elf.Class
	ByteOrder  binary.ByteOrder
}

// Targets lists every supported target.
var Targets = []*Target{
	{MachineTypeX86_64, "x86_64", elf.EM_X86_64, elf.ELFCLASS64, binary.LittleEndian},
	{MachineTypeI386, "i386", elf.EM_386, elf.ELFCLASS32, binary.LittleEndian},
	{MachineTypeARM64, "arm64", elf.EM_AARCH64, elf.ELFCLASS64, binary.LittleEndian},
	{MachineTypeRISCV64, "riscv64", elf.EM_RISCV, elf.ELFCLASS64, binary.LittleEndian},
}

// targetAliases maps alternate spellings to canonical target names.
var targetAliases = map[string]string{
	"amd64":       "x86_64",
	"x86-64":      "x86_64",
	"elf_x86_64":  "x86_64",
	"386":         "i386",
	"elf_i386":    "i386",
	"aarch64":     "arm64",
	"aarch64elf":  "arm64",
	"elf64lriscv": "riscv64",
}

// TargetByName returns the target with the given name or alias.
func TargetByName(name string) (*Target, bool) {
	name = strings.ToLower(name)
	if canonical, ok := targetAliases[name]; ok {
		name = canonical
	}

	for _, t := range Targets {
		if t.Name == name {
			return t, true
		}
	}

	return nil, false
}

// TargetOf determines the target of an ELF image from its header.  It
// returns nil if `data` is not an ELF image of a supported target.
func TargetOf(data []byte) *Target {
	if len(data) < 20 || string(data[:4]) != elf.ELFMAG {
		return nil
	}

	class := elf.Class(data[elf.EI_CLASS])

	var order binary.ByteOrder
	switch elf.Data(data[elf.EI_DATA]) {
	case elf.ELFDATA2LSB:
		order = binary.LittleEndian
	case elf.ELFDATA2MSB:
		order = binary.BigEndian
	default:
		return nil
	}

	machine := elf.Machine(order.Uint16(data[18:20]))
	for _, t := range Targets {
		if t.ElfMachine == machine && t.Class == class {
			return t
		}
	}

	return nil
}

func (t *Target) String() string {
	return t.Name
}
