package lto

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"

	"ltold/common"
	"ltold/ld"
	"ltold/report"
)

// Compile lets the plugin compile the claimed IR objects.  Symbol resolution
// must have run over the whole link graph.  The plugin adds the native
// objects it produced through add_input_file; afterwards every IR object is
// evicted from the link graph and symbols are resolved again.
func (s *Session) Compile() error {
	if err := s.advance(PhaseClaiming, PhaseResolved); err != nil {
		return err
	}

	if s.allSymbolsReadHook != nil {
		report.Trace("lto: all_symbols_read")

		status := s.allSymbolsReadHook()
		if err := s.takeCallbackErr(); err != nil {
			return err
		}

		if status != StatusOK {
			return errors.Newf("plugin %s failed to compile IR objects: %s", s.ctx.Args.Plugin, status)
		}
	}

	for _, file := range s.ctx.Objs {
		if file.IsIR() {
			file.IsAlive = false
			file.ClearSymbols()
		}
	}

	s.ctx.Objs = common.RemoveIf(s.ctx.Objs, func(file *ld.InputFile) bool {
		return file.IsIR()
	})

	ld.ResolveSymbols(s.ctx)
	return nil
}

// addInputFile reads a native object produced by the plugin into the link
// graph.
func (s *Session) addInputFile(path string) Status {
	report.Trace("lto: add_input_file: %s", path)

	if s.phase != PhaseResolved {
		s.fail(errors.AssertionFailedf("lto: add_input_file called in phase %s", s.phase))
		return StatusErr
	}

	mf, err := s.ctx.OpenFile(path)
	if err != nil {
		s.fail(err)
		return StatusErr
	}

	if ft := ld.GetFileType(mf.Data); ft != ld.FileTypeElfObject {
		s.fail(errors.Newf("%s: plugin output is a %s, not a relocatable object", path, ft))
		return StatusErr
	}

	file, err := ld.ReadObject(s.ctx, mf)
	if err != nil {
		s.fail(err)
		return StatusErr
	}

	s.ctx.AddObject(file)
	return StatusOK
}

// Cleanup invokes the plugin's cleanup hook and closes the descriptors of
// the claimed files.  It does nothing if no plugin was loaded.
func (s *Session) Cleanup() error {
	if !s.Loaded() {
		return nil
	}

	var err error
	if s.cleanupHook != nil {
		report.Trace("lto: cleanup")

		hook := s.cleanupHook
		s.cleanupHook = nil

		if status := hook(); status != StatusOK {
			err = errors.Newf("plugin %s failed to clean up: %s", s.ctx.Args.Plugin, status)
		}
	}

	for _, obj := range s.order {
		if obj.input.Fd >= 0 {
			err = errors.CombineErrors(err, errors.Wrapf(unix.Close(obj.input.Fd), "%s", obj.input.Name))
			obj.input.Fd = -1
		}
	}

	return err
}
