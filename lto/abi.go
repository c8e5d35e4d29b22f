package lto

import "strconv"

// Tag identifies an entry of the transfer vector passed to a plugin's onload
// function.  Values are fixed by the plugin ABI.
type Tag int

// Enumeration of transfer vector tags.
const (
	TagNull Tag = iota
	TagAPIVersion
	TagGoldVersion
	TagLinkerOutput
	TagOption
	TagRegisterClaimFileHook
	TagRegisterAllSymbolsReadHook
	TagRegisterCleanupHook
	TagAddSymbols
	TagGetSymbols
	TagAddInputFile
	TagMessage
	TagGetInputFile
	TagReleaseInputFile
	TagAddInputLibrary
	TagOutputName
	TagSetExtraLibraryPath
	TagGnuLdVersion
	TagGetView
	TagGetInputSectionCount
	TagGetInputSectionType
	TagGetInputSectionName
	TagGetInputSectionContents
	TagUpdateSectionOrder
	TagAllowSectionOrdering
	TagGetSymbolsV2
	TagAllowUniqueSegmentForSections
	TagUniqueSegmentForSections
	TagGetSymbolsV3
	TagGetInputSectionAlignment
	TagGetInputSectionSize
	TagRegisterNewInputHook
	TagGetWrapSymbols
)

var tagNames = [...]string{
	"NULL",
	"API_VERSION",
	"GOLD_VERSION",
	"LINKER_OUTPUT",
	"OPTION",
	"REGISTER_CLAIM_FILE_HOOK",
	"REGISTER_ALL_SYMBOLS_READ_HOOK",
	"REGISTER_CLEANUP_HOOK",
	"ADD_SYMBOLS",
	"GET_SYMBOLS",
	"ADD_INPUT_FILE",
	"MESSAGE",
	"GET_INPUT_FILE",
	"RELEASE_INPUT_FILE",
	"ADD_INPUT_LIBRARY",
	"OUTPUT_NAME",
	"SET_EXTRA_LIBRARY_PATH",
	"GNU_LD_VERSION",
	"GET_VIEW",
	"GET_INPUT_SECTION_COUNT",
	"GET_INPUT_SECTION_TYPE",
	"GET_INPUT_SECTION_NAME",
	"GET_INPUT_SECTION_CONTENTS",
	"UPDATE_SECTION_ORDER",
	"ALLOW_SECTION_ORDERING",
	"GET_SYMBOLS_V2",
	"ALLOW_UNIQUE_SEGMENT_FOR_SECTIONS",
	"UNIQUE_SEGMENT_FOR_SECTIONS",
	"GET_SYMBOLS_V3",
	"GET_INPUT_SECTION_ALIGNMENT",
	"GET_INPUT_SECTION_SIZE",
	"REGISTER_NEW_INPUT_HOOK",
	"GET_WRAP_SYMBOLS",
}

func (t Tag) String() string {
	if t >= 0 && int(t) < len(tagNames) {
		return tagNames[t]
	}

	return "TAG(" + strconv.Itoa(int(t)) + ")"
}

// Status is the result of a call across the plugin boundary.
type Status int

const (
	StatusOK Status = iota
	StatusNoSyms
	StatusBadHandle
	StatusErr
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusNoSyms:
		return "NO_SYMS"
	case StatusBadHandle:
		return "BAD_HANDLE"
	case StatusErr:
		return "ERR"
	}

	return "STATUS(" + strconv.Itoa(int(s)) + ")"
}

// OutputFileType is the value of the LINKER_OUTPUT tag.
type OutputFileType int

const (
	OutputRel OutputFileType = iota
	OutputExec
	OutputDyn
	OutputPie
)

func (o OutputFileType) String() string {
	switch o {
	case OutputRel:
		return "REL"
	case OutputExec:
		return "EXEC"
	case OutputDyn:
		return "DYN"
	case OutputPie:
		return "PIE"
	}

	return "OUTPUT(" + strconv.Itoa(int(o)) + ")"
}

// SymbolKind is the definition kind of a plugin symbol.
type SymbolKind int

const (
	SymbolDef SymbolKind = iota
	SymbolWeakDef
	SymbolUndef
	SymbolWeakUndef
	SymbolCommon
)

// SymbolVisibility is the ELF visibility of a plugin symbol.
type SymbolVisibility int

const (
	VisibilityDefault SymbolVisibility = iota
	VisibilityProtected
	VisibilityInternal
	VisibilityHidden
)

// SymbolType is only reported by the v2 symbol table extension.
type SymbolType int

const (
	SymbolTypeUnknown SymbolType = iota
	SymbolTypeFunction
	SymbolTypeVariable
)

// SymbolSectionKind tells whether a variable lives in a zero-initialized
// section.
type SymbolSectionKind int

const (
	SectionKindDefault SymbolSectionKind = iota
	SectionKindBSS
)

// Resolution is the linker's answer to how a symbol was bound.
type Resolution int

const (
	ResolutionUnknown Resolution = iota
	ResolutionUndef
	ResolutionPrevailingDef
	ResolutionPrevailingDefIronly
	ResolutionPreemptedReg
	ResolutionPreemptedIR
	ResolutionResolvedIR
	ResolutionResolvedExec
	ResolutionResolvedDyn
	ResolutionPrevailingDefIronlyExp
)

var resolutionNames = [...]string{
	"LDPR_UNKNOWN",
	"LDPR_UNDEF",
	"LDPR_PREVAILING_DEF",
	"LDPR_PREVAILING_DEF_IRONLY",
	"LDPR_PREEMPTED_REG",
	"LDPR_PREEMPTED_IR",
	"LDPR_RESOLVED_IR",
	"LDPR_RESOLVED_EXEC",
	"LDPR_RESOLVED_DYN",
	"LDPR_PREVAILING_DEF_IRONLY_EXP",
}

func (r Resolution) String() string {
	if r >= 0 && int(r) < len(resolutionNames) {
		return resolutionNames[r]
	}

	return "LDPR(" + strconv.Itoa(int(r)) + ")"
}

// Level is the severity of a message sent by the plugin.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
	LevelFatal
)
