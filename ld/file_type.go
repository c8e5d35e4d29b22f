package ld

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"strings"
)

// FileType is the kind of an input file as recognized from its contents.
type FileType int

// Enumeration of input file types.
const (
	FileTypeUnknown FileType = iota
	FileTypeEmpty
	FileTypeElfObject
	FileTypeElfDso
	FileTypeArchive
	FileTypeLLVMBitcode
	FileTypeLLVMText
	FileTypeGccLTOObject
)

var fileTypeNames = map[FileType]string{
	FileTypeUnknown:      "unknown",
	FileTypeEmpty:        "empty",
	FileTypeElfObject:    "ELF relocatable",
	FileTypeElfDso:       "ELF shared object",
	FileTypeArchive:      "archive",
	FileTypeLLVMBitcode:  "LLVM bitcode",
	FileTypeLLVMText:     "LLVM IR",
	FileTypeGccLTOObject: "GCC LTO object",
}

func (ft FileType) String() string {
	return fileTypeNames[ft]
}

// IsIR returns whether files of this type contain compiler IR which has to
// be handed to the LTO plugin.
func (ft FileType) IsIR() bool {
	return ft == FileTypeLLVMBitcode || ft == FileTypeLLVMText || ft == FileTypeGccLTOObject
}

const archiveMagic = "!<arch>\n"

// Magic numbers of raw LLVM bitcode and of the bitcode wrapper header.
var (
	bitcodeMagic        = []byte{'B', 'C', 0xC0, 0xDE}
	bitcodeWrapperMagic = []byte{0xDE, 0xC0, 0x17, 0x0B}
)

// textIRPrefixes are the lines a textual LLVM module starts with.
var textIRPrefixes = []string{"; ModuleID", "source_filename", "target datalayout", "target triple"}

// GetFileType determines the type of a file from its contents.
func GetFileType(data []byte) FileType {
	if len(data) == 0 {
		return FileTypeEmpty
	}

	if bytes.HasPrefix(data, []byte(elf.ELFMAG)) && len(data) > 17 {
		order := elfByteOrder(data)
		if order == nil {
			return FileTypeUnknown
		}

		switch elf.Type(order.Uint16(data[16:18])) {
		case elf.ET_REL:
			if isGccLTOObject(data) {
				return FileTypeGccLTOObject
			}
			return FileTypeElfObject
		case elf.ET_DYN:
			return FileTypeElfDso
		}

		return FileTypeUnknown
	}

	if bytes.HasPrefix(data, []byte(archiveMagic)) {
		return FileTypeArchive
	}

	if bytes.HasPrefix(data, bitcodeMagic) || bytes.HasPrefix(data, bitcodeWrapperMagic) {
		return FileTypeLLVMBitcode
	}

	head := data
	if len(head) > 4096 {
		head = head[:4096]
	}

	text := strings.TrimLeft(string(head), " \t\r\n")
	for _, prefix := range textIRPrefixes {
		if strings.HasPrefix(text, prefix) {
			return FileTypeLLVMText
		}
	}

	return FileTypeUnknown
}

func elfByteOrder(data []byte) binary.ByteOrder {
	switch elf.Data(data[elf.EI_DATA]) {
	case elf.ELFDATA2LSB:
		return binary.LittleEndian
	case elf.ELFDATA2MSB:
		return binary.BigEndian
	}

	return nil
}

// isGccLTOObject reports whether an ELF relocatable is a slim GCC LTO object:
// one carrying `.gnu.lto_` sections and the `__gnu_lto_slim` marker instead
// of machine code.  Fat LTO objects are linked as ordinary objects.
func isGccLTOObject(data []byte) bool {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return false
	}
	defer f.Close()

	hasLTOSection := false
	for _, sec := range f.Sections {
		if strings.HasPrefix(sec.Name, ".gnu.lto_") {
			hasLTOSection = true
			break
		}
	}

	if !hasLTOSection {
		return false
	}

	syms, err := f.Symbols()
	if err != nil {
		return false
	}

	for _, sym := range syms {
		if sym.Name == "__gnu_lto_slim" {
			return true
		}
	}

	return false
}
