// Package irbackend is an in-process LTO plugin for modules written as LLVM
// IR source text.  It speaks the same protocol as shared-library plugins:
// it claims IR inputs, asks the linker how their symbols were resolved,
// strips the definitions that lost, and compiles what is left into native
// objects which it hands back to the linker.
package irbackend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/llir/llvm/asm"
	"github.com/llir/llvm/ir"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"ltold/ld"
	"ltold/lto"
)

// Plugin is the in-process backend.  It implements lto.Loader: loading it
// runs its onload logic against the transfer vector.
type Plugin struct {
	// Codegen compiles modules.  Defaults to LLCCodegen.
	Codegen CodegenFunc

	opts options

	// capabilities received from the linker
	message      lto.MessageFunc
	addSymbols   lto.AddSymbolsFunc
	getSymbols   lto.GetSymbolsFunc
	addInputFile lto.AddInputFileFunc

	// getSymbolsV1 is kept apart from the preferred variant: its NO_SYMS
	// answer is the only way to learn that a module left the link.
	getSymbolsV1 lto.GetSymbolsFunc

	outputType   lto.OutputFileType
	outputName   string

	modules []*module

	// workDir holds the generated objects.  Created on first use.
	workDir string
}

// module is a claimed input.
type module struct {
	handle lto.Handle
	name   string
	ir     *ir.Module
	syms   []lto.PluginSymbol

	// objPath is set when the module is compiled.
	objPath string
}

// New creates a backend using `codegen` to compile modules, or LLCCodegen if
// `codegen` is nil.
func New(codegen CodegenFunc) *Plugin {
	if codegen == nil {
		codegen = LLCCodegen
	}

	return &Plugin{Codegen: codegen, opts: defaultOptions()}
}

// Load consumes the transfer vector and registers the backend's hooks.
func (p *Plugin) Load(path string, tv []lto.TagValue) error {
	var (
		registerClaimFile      lto.RegisterClaimFileHookFunc
		registerAllSymbolsRead lto.RegisterAllSymbolsReadHookFunc
		registerCleanup        lto.RegisterCleanupHookFunc
		getSymbols             = make(map[lto.Tag]lto.GetSymbolsFunc)
		rawOpts                []string
	)

	for _, entry := range tv {
		switch v := entry.Value.(type) {
		case lto.MessageFunc:
			p.message = v
		case lto.RegisterClaimFileHookFunc:
			registerClaimFile = v
		case lto.RegisterAllSymbolsReadHookFunc:
			registerAllSymbolsRead = v
		case lto.RegisterCleanupHookFunc:
			registerCleanup = v
		case lto.AddSymbolsFunc:
			p.addSymbols = v
		case lto.GetSymbolsFunc:
			getSymbols[entry.Tag] = v
		case lto.AddInputFileFunc:
			p.addInputFile = v
		case lto.OutputFileType:
			p.outputType = v
		case string:
			switch entry.Tag {
			case lto.TagOption:
				rawOpts = append(rawOpts, v)
			case lto.TagOutputName:
				p.outputName = v
			}
		}
	}

	// prefer the newest variant of get_symbols the linker offers
	for _, tag := range []lto.Tag{lto.TagGetSymbolsV3, lto.TagGetSymbolsV2, lto.TagGetSymbols} {
		if fn, ok := getSymbols[tag]; ok {
			p.getSymbols = fn
			break
		}
	}

	p.getSymbolsV1 = getSymbols[lto.TagGetSymbols]

	if p.message == nil || p.addSymbols == nil || p.getSymbols == nil || p.addInputFile == nil ||
		registerClaimFile == nil || registerAllSymbolsRead == nil || registerCleanup == nil {
		return errors.Newf("%s: linker does not provide the required plugin interface", path)
	}

	for _, opt := range rawOpts {
		known, err := p.opts.parse(opt)
		if err != nil {
			return err
		}

		if !known {
			p.message(lto.LevelWarning, fmt.Sprintf("%s: ignoring unknown option: %s", path, opt))
		}
	}

	if status := registerClaimFile(p.claimFile); status != lto.StatusOK {
		return errors.Newf("%s: could not register claim-file hook: %s", path, status)
	}

	if status := registerAllSymbolsRead(p.allSymbolsRead); status != lto.StatusOK {
		return errors.Newf("%s: could not register all-symbols-read hook: %s", path, status)
	}

	if status := registerCleanup(p.cleanup); status != lto.StatusOK {
		return errors.Newf("%s: could not register cleanup hook: %s", path, status)
	}

	return nil
}

// claimFile claims inputs written as LLVM IR source text.
func (p *Plugin) claimFile(file *lto.PluginInputFile) (bool, lto.Status) {
	name := file.Name
	if file.Offset != 0 {
		name = fmt.Sprintf("%s@0x%x", file.Name, file.Offset)
	}

	buf := make([]byte, file.FileSize)
	if n, err := unix.Pread(file.Fd, buf, file.Offset); err != nil || int64(n) != file.FileSize {
		p.message(lto.LevelError, fmt.Sprintf("%s: cannot read input: %v", name, err))
		return false, lto.StatusErr
	}

	if ld.GetFileType(buf) != ld.FileTypeLLVMText {
		return false, lto.StatusOK
	}

	m, err := asm.ParseBytes(name, buf)
	if err != nil {
		p.message(lto.LevelError, fmt.Sprintf("%s: %v", name, err))
		return false, lto.StatusErr
	}

	syms := moduleSymbols(m)
	if status := p.addSymbols(file.Handle, syms); status != lto.StatusOK {
		return false, status
	}

	p.modules = append(p.modules, &module{
		handle: file.Handle,
		name:   name,
		ir:     m,
		syms:   syms,
	})

	return true, lto.StatusOK
}

// allSymbolsRead compiles the prevailing definitions of every module and
// adds the resulting objects in claim order.
func (p *Plugin) allSymbolsRead() lto.Status {
	var compile []*module

	for _, m := range p.modules {
		if p.dropped(m) {
			continue
		}

		syms := append([]lto.PluginSymbol(nil), m.syms...)

		switch status := p.getSymbols(m.handle, syms); status {
		case lto.StatusOK:
		case lto.StatusNoSyms:
			// the whole module was dropped from the link
			continue
		default:
			p.message(lto.LevelError, fmt.Sprintf("%s: cannot get symbol resolutions: %s", m.name, status))
			return status
		}

		if allPreempted(syms) || !internalize(m.ir, syms) {
			continue
		}

		compile = append(compile, m)
	}

	if len(compile) == 0 {
		return lto.StatusOK
	}

	if p.workDir == "" {
		dir, err := os.MkdirTemp("", "ltold-lto-")
		if err != nil {
			p.message(lto.LevelError, fmt.Sprintf("cannot create work directory: %v", err))
			return lto.StatusErr
		}

		p.workDir = dir
	}

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(p.opts.jobs)

	for _, m := range compile {
		m.objPath = filepath.Join(p.workDir, uuid.NewString()+".o")

		job := &CodegenJob{
			Name:     m.name,
			Module:   m.ir,
			Output:   m.objPath,
			OptLevel: p.opts.optLevel,
			CPU:      p.opts.mcpu,
			PIC:      p.outputType == lto.OutputDyn || p.outputType == lto.OutputPie,
			LLC:      p.opts.llc,
		}

		g.Go(func() error {
			return p.Codegen(ctx, job)
		})
	}

	if err := g.Wait(); err != nil {
		p.message(lto.LevelError, err.Error())
		return lto.StatusErr
	}

	for _, m := range compile {
		if status := p.addInputFile(m.objPath); status != lto.StatusOK {
			return status
		}
	}

	return lto.StatusOK
}

// dropped returns whether the linker no longer links module `m`, such as an
// archive member nothing pulled in.  Modules reporting no symbols cannot be
// told apart any other way.
func (p *Plugin) dropped(m *module) bool {
	if p.getSymbolsV1 == nil {
		return false
	}

	return p.getSymbolsV1(m.handle, nil) == lto.StatusNoSyms
}

// allPreempted returns whether every symbol was preempted: the linker no
// longer wants the module.
func allPreempted(syms []lto.PluginSymbol) bool {
	if len(syms) == 0 {
		return false
	}

	for _, sym := range syms {
		if sym.Resolution != lto.ResolutionPreemptedReg {
			return false
		}
	}

	return true
}

// cleanup removes the work directory.
func (p *Plugin) cleanup() lto.Status {
	if p.workDir == "" {
		return lto.StatusOK
	}

	if p.opts.saveTemps {
		p.message(lto.LevelInfo, fmt.Sprintf("LTO temporaries kept in %s", p.workDir))
		return lto.StatusOK
	}

	if err := os.RemoveAll(p.workDir); err != nil {
		p.message(lto.LevelWarning, fmt.Sprintf("cannot remove %s: %v", p.workDir, err))
	}

	p.workDir = ""
	return lto.StatusOK
}

// WorkDir returns the directory generated objects are written to, or an
// empty string if nothing was compiled yet.
func (p *Plugin) WorkDir() string {
	return p.workDir
}
