package cmd

import (
	"strconv"

	"github.com/cockroachdb/errors"

	"ltold/common"
	"ltold/config"
	"ltold/irbackend"
	"ltold/ld"
	"ltold/lto"
	"ltold/lto/native"
	"ltold/report"
)

// Linker represents the global state of one link.
type Linker struct {
	// manifest is the validated link description with the command line
	// overrides already applied.
	manifest *config.Manifest

	// ctx is the link graph and global symbol table.
	ctx *ld.Context

	// session drives the plugin protocol.  It exists even when no plugin is
	// given so that IR inputs are rejected with a useful message.
	session *lto.Session

	// codegen is the code generator of the builtin backend.  It is nil unless
	// a caller wants something other than `llc`.
	codegen irbackend.CodegenFunc
}

// NewLinker creates a new linker for `manifest`.
func NewLinker(manifest *config.Manifest) *Linker {
	ctx := ld.NewContext(manifest.Args)

	l := &Linker{manifest: manifest, ctx: ctx}
	l.session = lto.NewSession(ctx, l)
	return l
}

// Load selects the plugin implementation from the plugin path and loads it.
// Linker is the loader of its own session so that the backend is only chosen
// once the session decides to load a plugin.
func (l *Linker) Load(path string, tv []lto.TagValue) error {
	if path == common.BuiltinPluginPath {
		return irbackend.New(l.codegen).Load(path, tv)
	}

	return native.NewLoader().Load(path, tv)
}

// Link reads the inputs, resolves symbols and runs LTO when IR was claimed.
// Whatever the outcome, Close must be called afterwards.
func (l *Linker) Link() error {
	target, plugin := "auto", "none"
	if l.ctx.Args.Target != nil {
		target = l.ctx.Args.Target.String()
	}

	if l.ctx.Args.Plugin != "" {
		plugin = l.ctx.Args.Plugin
	}

	report.ReportLinkHeader(target, plugin)

	report.ReportBeginPhase("Reading inputs")
	if err := ld.ReadInputFiles(l.ctx, l.manifest.Inputs); err != nil {
		return err
	}

	report.ReportBeginPhase("Resolving symbols")
	ld.ResolveSymbols(l.ctx)

	if l.session.NumClaimed() > 0 {
		report.ReportBeginPhase("Compiling IR")
		if err := l.session.Compile(); err != nil {
			return err
		}
	}

	ld.RemoveDeadFiles(l.ctx)

	rows, undefined := l.summary()
	report.ReportLinkSummary(rows, undefined)
	return nil
}

// Close gives the plugin its cleanup call and unmaps every input.
func (l *Linker) Close() error {
	return errors.CombineErrors(l.session.Cleanup(), l.ctx.Close())
}

// summary builds the rows of the link graph table: one per surviving file
// with the number of global symbols it ended up owning.
func (l *Linker) summary() ([][]string, []string) {
	var rows [][]string
	for _, file := range l.ctx.Files() {
		owned := 0
		for i := file.FirstGlobal; i < len(file.Symbols); i++ {
			if sym := file.Symbols[i]; sym != nil && sym.File == file {
				owned++
			}
		}

		rows = append(rows, []string{
			strconv.FormatInt(file.Priority, 10),
			file.Kind.String(),
			file.Name(),
			strconv.Itoa(owned),
		})
	}

	return rows, ld.UndefinedSymbols(l.ctx)
}
