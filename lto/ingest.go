package lto

import (
	"debug/elf"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"

	"ltold/common"
	"ltold/ld"
	"ltold/report"
)

// Claim hands the IR input `mf` to the plugin and builds an IR object whose
// symbols are placeholders for the symbols the plugin reported.  The plugin
// is loaded on the first call.
func (s *Session) Claim(mf *ld.MappedFile) (*ld.InputFile, error) {
	if s.ctx.Args.Plugin == "" {
		return nil, errors.Newf("%s: don't know how to handle this LTO object file because no -plugin option was given", mf.DisplayName())
	}

	if err := s.Load(); err != nil {
		return nil, err
	}

	if s.phase != PhaseClaiming {
		return nil, errors.AssertionFailedf("lto: %s claimed in phase %s", mf.DisplayName(), s.phase)
	}

	if s.claimFileHook == nil {
		return nil, errors.Newf("%s: plugin %s did not register a claim-file hook", mf.DisplayName(), s.ctx.Args.Plugin)
	}

	// the plugin reads the file through its own descriptor
	fd, err := unix.Open(mf.Path(), unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: cannot open", mf.Path())
	}

	obj := &irObject{
		file: ld.NewInputFile(mf, ld.InputFileIR),
		input: PluginInputFile{
			Name:     mf.Path(),
			Fd:       fd,
			Offset:   mf.Offset(),
			FileSize: mf.Size(),
			Handle:   s.nextHandle,
		},
	}

	s.nextHandle++
	s.objects[obj.input.Handle] = obj
	s.claiming = obj.input.Handle
	s.captured = s.captured[:0]

	report.Trace("lto: claim_file %s: handle=%d offset=%d size=%d",
		mf.DisplayName(), obj.input.Handle, obj.input.Offset, obj.input.FileSize)

	claimed, status := s.claimFileHook(&obj.input)
	s.claiming = 0

	if err := s.takeCallbackErr(); err != nil {
		s.drop(obj)
		return nil, errors.Wrapf(err, "%s", mf.DisplayName())
	}

	if status != StatusOK {
		s.drop(obj)
		return nil, errors.Newf("%s: plugin failed to claim file: %s", mf.DisplayName(), status)
	}

	if !claimed {
		s.drop(obj)
		return nil, errors.Newf("%s: not claimed by the plugin", mf.DisplayName())
	}

	esyms := make([]ld.ElfSym, len(s.captured)+1)
	for i := range s.captured {
		esyms[i+1] = toElfSym(&s.captured[i])
	}

	obj.file.InitSymbols(s.ctx, esyms, 1)
	s.order = append(s.order, obj)

	clear(s.captured)
	s.captured = s.captured[:0]

	return obj.file, nil
}

// drop forgets a file the plugin did not claim.
func (s *Session) drop(obj *irObject) {
	unix.Close(obj.input.Fd)
	delete(s.objects, obj.input.Handle)

	clear(s.captured)
	s.captured = s.captured[:0]
}

// addSymbols captures the symbol table of the file being claimed.
func (s *Session) addSymbols(handle Handle, syms []PluginSymbol) Status {
	report.Trace("lto: add_symbols: handle=%d nsyms=%d", handle, len(syms))

	if s.phase != PhaseClaiming {
		return StatusErr
	}

	if handle == 0 || handle != s.claiming {
		return StatusBadHandle
	}

	for _, sym := range syms {
		sym.Name = common.SaveString(sym.Name)
		sym.Version = common.SaveString(sym.Version)
		sym.ComdatKey = common.SaveString(sym.ComdatKey)
		s.captured = append(s.captured, sym)
	}

	return StatusOK
}

// toElfSym builds the placeholder for a plugin symbol.  Definitions become
// absolute symbols: IR objects have no sections of their own.
func toElfSym(psym *PluginSymbol) ld.ElfSym {
	esym := ld.ElfSym{
		Name: psym.Name,
		Size: psym.Size,
		Bind: elf.STB_GLOBAL,
	}

	switch psym.Def {
	case SymbolDef:
		esym.Shndx = elf.SHN_ABS
	case SymbolWeakDef:
		esym.Shndx = elf.SHN_ABS
		esym.Bind = elf.STB_WEAK
	case SymbolUndef:
		esym.Shndx = elf.SHN_UNDEF
	case SymbolWeakUndef:
		esym.Shndx = elf.SHN_UNDEF
		esym.Bind = elf.STB_WEAK
	case SymbolCommon:
		esym.Shndx = elf.SHN_COMMON
	}

	switch psym.SymbolType {
	case SymbolTypeFunction:
		esym.Type = elf.STT_FUNC
	case SymbolTypeVariable:
		esym.Type = elf.STT_OBJECT
	default:
		esym.Type = elf.STT_NOTYPE
	}

	switch psym.Visibility {
	case VisibilityProtected:
		esym.Visibility = elf.STV_PROTECTED
	case VisibilityInternal:
		esym.Visibility = elf.STV_INTERNAL
	case VisibilityHidden:
		esym.Visibility = elf.STV_HIDDEN
	default:
		esym.Visibility = elf.STV_DEFAULT
	}

	return esym
}

// getView returns the contents of a claimed file.
func (s *Session) getView(handle Handle) ([]byte, Status) {
	report.Trace("lto: get_view: handle=%d", handle)

	obj, ok := s.objects[handle]
	if !ok {
		return nil, StatusBadHandle
	}

	return obj.file.File.Data, StatusOK
}

// getInputFile returns the descriptor of a claimed file.
func (s *Session) getInputFile(handle Handle) (*PluginInputFile, Status) {
	report.Trace("lto: get_input_file: handle=%d", handle)

	obj, ok := s.objects[handle]
	if !ok {
		return nil, StatusBadHandle
	}

	return &obj.input, StatusOK
}
