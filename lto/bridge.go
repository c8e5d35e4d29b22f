package lto

import (
	"ltold/ld"
	"ltold/report"
)

// ResolutionOf tells how the symbol `sym` referenced by the live IR object
// `file` was bound by symbol resolution.
func ResolutionOf(file *ld.InputFile, sym *ld.Symbol) Resolution {
	switch {
	case sym.File == nil:
		return ResolutionUndef
	case sym.File == file:
		return ResolutionPrevailingDef
	case sym.File.IsDSO():
		return ResolutionResolvedDyn
	case sym.File.IsIR():
		return ResolutionResolvedIR
	default:
		return ResolutionResolvedExec
	}
}

// getSymbols fills in the resolutions of the first len(syms) symbols of the
// IR object `handle`.  Symbols of an object that is no longer part of the
// link are all preempted, and `noSyms` is returned.
func (s *Session) getSymbols(handle Handle, syms []PluginSymbol, noSyms Status) Status {
	obj, ok := s.objects[handle]
	if !ok {
		return StatusBadHandle
	}

	file := obj.file
	if len(syms) > len(file.Symbols)-1 {
		return StatusBadHandle
	}

	if !file.IsAlive {
		for i := range syms {
			syms[i].Resolution = ResolutionPreemptedReg
		}

		return noSyms
	}

	for i := range syms {
		// placeholder 0 is the null symbol
		syms[i].Resolution = ResolutionOf(file, file.Symbols[i+1])
	}

	return StatusOK
}

func (s *Session) getSymbolsV1(handle Handle, syms []PluginSymbol) Status {
	report.Trace("lto: get_symbols: handle=%d nsyms=%d", handle, len(syms))
	return s.getSymbols(handle, syms, StatusNoSyms)
}

func (s *Session) getSymbolsV2(handle Handle, syms []PluginSymbol) Status {
	report.Trace("lto: get_symbols_v2: handle=%d nsyms=%d", handle, len(syms))
	return s.getSymbols(handle, syms, StatusOK)
}

func (s *Session) getSymbolsV3(handle Handle, syms []PluginSymbol) Status {
	report.Trace("lto: get_symbols_v3: handle=%d nsyms=%d", handle, len(syms))
	return s.getSymbols(handle, syms, StatusOK)
}
