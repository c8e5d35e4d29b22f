package lto

import (
	"sync"

	"github.com/cockroachdb/errors"

	"ltold/ld"
	"ltold/report"
)

// Session holds the state of the plugin protocol for one link: the hooks the
// plugin registered, the protocol phase, and the IR objects it claimed.
type Session struct {
	ctx    *ld.Context
	loader Loader

	phase Phase

	// hooks registered by the plugin during onload
	claimFileHook      ClaimFileHook
	allSymbolsReadHook AllSymbolsReadHook
	cleanupHook        CleanupHook

	// captured collects the symbols reported through add_symbols while a
	// file is being claimed.
	captured []PluginSymbol

	// claiming is the handle of the file being claimed, zero otherwise.
	claiming Handle

	objects    map[Handle]*irObject
	order      []*irObject
	nextHandle Handle

	loadOnce sync.Once
	loadErr  error

	// callbackErr is the first error raised inside a callback.  The plugin
	// only sees a status code, so the error is handed to the caller once the
	// plugin returns control.
	callbackErr error
}

// irObject is a claimed IR input.
type irObject struct {
	file  *ld.InputFile
	input PluginInputFile
}

// NewSession creates a session for `ctx` and installs it as the context's
// reader for IR inputs.  `loader` starts the plugin named by the context's
// arguments on the first claim.
func NewSession(ctx *ld.Context, loader Loader) *Session {
	s := &Session{
		ctx:        ctx,
		loader:     loader,
		objects:    make(map[Handle]*irObject),
		nextHandle: 1,
	}

	ctx.ReadIRObject = s.Claim
	return s
}

// Phase returns the current protocol phase.
func (s *Session) Phase() Phase {
	return s.phase
}

// Loaded returns whether the plugin handshake was performed.
func (s *Session) Loaded() bool {
	return s.phase != PhaseUnstarted
}

// NumClaimed returns the number of IR objects claimed so far.
func (s *Session) NumClaimed() int {
	return len(s.order)
}

// Load performs the plugin handshake.  It is done at most once: subsequent
// calls return the result of the first one.
func (s *Session) Load() error {
	s.loadOnce.Do(func() {
		s.loadErr = s.load()
	})

	return s.loadErr
}

func (s *Session) load() error {
	path := s.ctx.Args.Plugin
	if err := s.advance(PhaseUnstarted, PhaseClaiming); err != nil {
		return err
	}

	report.Trace("lto: loading plugin %s", path)

	if err := s.loader.Load(path, s.transferVector()); err != nil {
		return errors.Wrapf(err, "could not load plugin %s", path)
	}

	if err := s.takeCallbackErr(); err != nil {
		return errors.Wrapf(err, "plugin %s failed to initialize", path)
	}

	return nil
}

// transferVector builds the tag list handed to the plugin's onload function.
func (s *Session) transferVector() []TagValue {
	tv := []TagValue{
		{TagMessage, MessageFunc(s.message)},
		{TagLinkerOutput, s.outputFileType()},
	}

	for _, opt := range s.ctx.Args.PluginOpts {
		tv = append(tv, TagValue{TagOption, opt})
	}

	tv = append(tv,
		TagValue{TagRegisterClaimFileHook, RegisterClaimFileHookFunc(s.registerClaimFileHook)},
		TagValue{TagRegisterAllSymbolsReadHook, RegisterAllSymbolsReadHookFunc(s.registerAllSymbolsReadHook)},
		TagValue{TagRegisterCleanupHook, RegisterCleanupHookFunc(s.registerCleanupHook)},
		TagValue{TagAddSymbols, AddSymbolsFunc(s.addSymbols)},
		TagValue{TagGetSymbols, GetSymbolsFunc(s.getSymbolsV1)},
		TagValue{TagAddInputFile, AddInputFileFunc(s.addInputFile)},
		TagValue{TagGetInputFile, GetInputFileFunc(s.getInputFile)},
		TagValue{TagReleaseInputFile, s.unsupported(TagReleaseInputFile)},
		TagValue{TagAddInputLibrary, s.unsupported(TagAddInputLibrary)},
		TagValue{TagOutputName, s.ctx.Args.Output},
		TagValue{TagSetExtraLibraryPath, s.unsupported(TagSetExtraLibraryPath)},
		TagValue{TagGetView, GetViewFunc(s.getView)},
		TagValue{TagGetInputSectionCount, s.unsupported(TagGetInputSectionCount)},
		TagValue{TagGetInputSectionType, s.unsupported(TagGetInputSectionType)},
		TagValue{TagGetInputSectionName, s.unsupported(TagGetInputSectionName)},
		TagValue{TagGetInputSectionContents, s.unsupported(TagGetInputSectionContents)},
		TagValue{TagUpdateSectionOrder, s.unsupported(TagUpdateSectionOrder)},
		TagValue{TagAllowSectionOrdering, s.unsupported(TagAllowSectionOrdering)},
		TagValue{TagGetSymbolsV2, GetSymbolsFunc(s.getSymbolsV2)},
		TagValue{TagAllowUniqueSegmentForSections, s.unsupported(TagAllowUniqueSegmentForSections)},
		TagValue{TagUniqueSegmentForSections, s.unsupported(TagUniqueSegmentForSections)},
		TagValue{TagGetSymbolsV3, GetSymbolsFunc(s.getSymbolsV3)},
		TagValue{TagGetInputSectionAlignment, s.unsupported(TagGetInputSectionAlignment)},
		TagValue{TagGetInputSectionSize, s.unsupported(TagGetInputSectionSize)},
		TagValue{TagRegisterNewInputHook, s.unsupported(TagRegisterNewInputHook)},
		TagValue{TagGetWrapSymbols, s.unsupported(TagGetWrapSymbols)},
		TagValue{TagNull, nil},
	)

	return tv
}

func (s *Session) outputFileType() OutputFileType {
	switch s.ctx.Args.Kind {
	case ld.OutputShared:
		return OutputDyn
	case ld.OutputPie:
		return OutputPie
	default:
		return OutputExec
	}
}

// -----------------------------------------------------------------------------

func (s *Session) registerClaimFileHook(hook ClaimFileHook) Status {
	report.Trace("lto: register_claim_file_hook")
	if s.claimFileHook != nil {
		return StatusErr
	}

	s.claimFileHook = hook
	return StatusOK
}

func (s *Session) registerAllSymbolsReadHook(hook AllSymbolsReadHook) Status {
	report.Trace("lto: register_all_symbols_read_hook")
	if s.allSymbolsReadHook != nil {
		return StatusErr
	}

	s.allSymbolsReadHook = hook
	return StatusOK
}

func (s *Session) registerCleanupHook(hook CleanupHook) Status {
	report.Trace("lto: register_cleanup_hook")
	if s.cleanupHook != nil {
		return StatusErr
	}

	s.cleanupHook = hook
	return StatusOK
}

// message forwards a diagnostic of the plugin to the reporter.  Fatal
// messages fail the current protocol step.
func (s *Session) message(level Level, msg string) Status {
	switch level {
	case LevelInfo:
		report.ReportInfo("%s", msg)
	case LevelWarning:
		report.ReportWarning("%s", msg)
	case LevelError:
		report.ReportError("%s", msg)
	default:
		report.ReportError("%s", msg)
		s.fail(errors.Newf("plugin: %s", msg))
	}

	return StatusOK
}

// fail records the first error raised inside a callback.
func (s *Session) fail(err error) {
	if s.callbackErr == nil {
		s.callbackErr = err
	}
}

func (s *Session) takeCallbackErr() error {
	err := s.callbackErr
	s.callbackErr = nil
	return err
}
