package lto

import (
	"debug/elf"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"ltold/internal/elftest"
	"ltold/ld"
)

func TestTransferVector(t *testing.T) {
	f := newFixture(t, ld.Args{Output: "out", PluginOpts: []string{"-O2", "save-temps"}})
	f.read(t, f.writeIR(t, "a.ll", "def main func"))

	assert.Equal(t, "test-plugin.so", f.plugin.path)
	assert.Equal(t, []string{"-O2", "save-temps"}, f.plugin.options)
	assert.Equal(t, "out", f.plugin.outputName)
	assert.Equal(t, OutputExec, f.plugin.outputType)

	want := []Tag{
		TagMessage, TagLinkerOutput, TagOption, TagOption,
		TagRegisterClaimFileHook, TagRegisterAllSymbolsReadHook, TagRegisterCleanupHook,
		TagAddSymbols, TagGetSymbols, TagAddInputFile, TagGetInputFile,
		TagReleaseInputFile, TagAddInputLibrary, TagOutputName, TagSetExtraLibraryPath,
		TagGetView, TagGetInputSectionCount, TagGetInputSectionType, TagGetInputSectionName,
		TagGetInputSectionContents, TagUpdateSectionOrder, TagAllowSectionOrdering,
		TagGetSymbolsV2, TagAllowUniqueSegmentForSections, TagUniqueSegmentForSections,
		TagGetSymbolsV3, TagGetInputSectionAlignment, TagGetInputSectionSize,
		TagRegisterNewInputHook, TagGetWrapSymbols, TagNull,
	}
	assert.Equal(t, want, f.plugin.tags)
}

func TestLinkerOutputType(t *testing.T) {
	tests := []struct {
		kind ld.OutputKind
		want OutputFileType
	}{
		{ld.OutputExec, OutputExec},
		{ld.OutputPie, OutputPie},
		{ld.OutputShared, OutputDyn},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			f := newFixture(t, ld.Args{Kind: tt.kind})
			require.NoError(t, f.session.Load())
			assert.Equal(t, tt.want, f.plugin.outputType)
		})
	}
}

func TestHandshakeOnce(t *testing.T) {
	f := newFixture(t, ld.Args{})
	assert.Equal(t, PhaseUnstarted, f.session.Phase())

	f.read(t,
		f.writeIR(t, "a.ll", "def a func"),
		f.writeIR(t, "b.ll", "def b func"),
		f.writeIR(t, "c.ll", "def c func"),
	)

	assert.Equal(t, 1, f.plugin.loads)
	assert.Equal(t, PhaseClaiming, f.session.Phase())
	assert.Equal(t, 3, f.session.NumClaimed())
	assert.Equal(t, []Handle{1, 2, 3}, f.plugin.claimed)

	require.NoError(t, f.session.Load())
	assert.Equal(t, 1, f.plugin.loads)
}

func TestClaimPlaceholders(t *testing.T) {
	f := newFixture(t, ld.Args{})
	f.read(t, f.writeIR(t, "a.ll",
		"def foo func",
		"weakdef bar func",
		"undef baz",
		"weakundef qux",
		"common buf var",
	))

	require.Len(t, f.ctx.Objs, 1)
	file := f.ctx.Objs[0]
	assert.True(t, file.IsIR())
	assert.True(t, file.IsAlive)

	require.Len(t, file.ElfSyms, 6)
	assert.Equal(t, ld.ElfSym{}, file.ElfSyms[0])

	names := make([]string, 0, 5)
	for _, esym := range file.ElfSyms[1:] {
		names = append(names, esym.Name)
	}
	assert.Equal(t, []string{"foo", "bar", "baz", "qux", "buf"}, names)

	assert.Equal(t, elf.SHN_ABS, file.ElfSyms[1].Shndx)
	assert.Equal(t, elf.STT_FUNC, file.ElfSyms[1].Type)
	assert.True(t, file.ElfSyms[2].IsWeak())
	assert.True(t, file.ElfSyms[3].IsUndef())
	assert.True(t, file.ElfSyms[4].IsUndef())
	assert.True(t, file.ElfSyms[4].IsWeak())
	assert.True(t, file.ElfSyms[5].IsCommon())
	assert.Equal(t, elf.STT_OBJECT, file.ElfSyms[5].Type)

	for i, name := range names {
		sym, ok := f.ctx.LookupSymbol(name)
		require.True(t, ok)
		assert.Same(t, sym, file.Symbols[i+1])
	}

	assert.Empty(t, f.session.captured)
}

func TestToElfSym(t *testing.T) {
	tests := []struct {
		psym PluginSymbol
		want ld.ElfSym
	}{
		{
			PluginSymbol{Name: "a", Def: SymbolDef, SymbolType: SymbolTypeFunction, Size: 16},
			ld.ElfSym{Name: "a", Shndx: elf.SHN_ABS, Bind: elf.STB_GLOBAL, Type: elf.STT_FUNC, Size: 16},
		},
		{
			PluginSymbol{Name: "b", Def: SymbolWeakDef, Visibility: VisibilityHidden},
			ld.ElfSym{Name: "b", Shndx: elf.SHN_ABS, Bind: elf.STB_WEAK, Visibility: elf.STV_HIDDEN},
		},
		{
			PluginSymbol{Name: "c", Def: SymbolUndef, Visibility: VisibilityProtected},
			ld.ElfSym{Name: "c", Shndx: elf.SHN_UNDEF, Bind: elf.STB_GLOBAL, Visibility: elf.STV_PROTECTED},
		},
		{
			PluginSymbol{Name: "d", Def: SymbolWeakUndef, Visibility: VisibilityInternal},
			ld.ElfSym{Name: "d", Shndx: elf.SHN_UNDEF, Bind: elf.STB_WEAK, Visibility: elf.STV_INTERNAL},
		},
		{
			PluginSymbol{Name: "e", Def: SymbolCommon, SymbolType: SymbolTypeVariable, Size: 8},
			ld.ElfSym{Name: "e", Shndx: elf.SHN_COMMON, Bind: elf.STB_GLOBAL, Type: elf.STT_OBJECT, Size: 8},
		},
	}

	for _, tt := range tests {
		t.Run(tt.psym.Name, func(t *testing.T) {
			assert.Equal(t, tt.want, toElfSym(&tt.psym))
		})
	}
}

func TestClaimWithoutPlugin(t *testing.T) {
	ctx := ld.NewContext(ld.Args{})
	defer ctx.Close()

	plugin := newTestPlugin()
	NewSession(ctx, plugin)

	f := &fixture{dir: t.TempDir()}
	err := ld.ReadInputFiles(ctx, []string{f.writeIR(t, "a.ll", "def a func")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "don't know how to handle this LTO object file because no -plugin option was given")
	assert.Equal(t, 0, plugin.loads)
}

func TestClaimRefused(t *testing.T) {
	f := newFixture(t, ld.Args{})
	f.plugin.refuse = true

	err := ld.ReadInputFiles(f.ctx, []string{f.writeIR(t, "a.ll", "def a func")})
	assert.ErrorContains(t, err, "not claimed by the plugin")
	assert.Equal(t, 0, f.session.NumClaimed())
}

func TestLoadFailure(t *testing.T) {
	ctx := ld.NewContext(ld.Args{Plugin: "missing.so"})
	s := NewSession(ctx, loaderFunc(func(string, []TagValue) error {
		return errors.New("cannot open shared object file")
	}))

	err := s.Load()
	assert.ErrorContains(t, err, "could not load plugin missing.so")
	assert.Equal(t, err, s.Load())
}

type loaderFunc func(path string, tv []TagValue) error

func (fn loaderFunc) Load(path string, tv []TagValue) error {
	return fn(path, tv)
}

func TestFatalMessageFailsClaim(t *testing.T) {
	f := newFixture(t, ld.Args{})
	f.plugin.onClaim = func(*PluginInputFile) {
		f.plugin.caps[TagMessage].(MessageFunc)(LevelFatal, "bad bitcode")
	}

	err := ld.ReadInputFiles(f.ctx, []string{f.writeIR(t, "a.ll", "def a func")})
	assert.ErrorContains(t, err, "bad bitcode")
}

func TestArchiveMemberDescriptor(t *testing.T) {
	f := newFixture(t, ld.Args{})

	member := []byte("; ModuleID = 'm'\ndef inlib func\n")
	path := filepath.Join(f.dir, "libir.a")
	archive := elftest.Archive(map[string][]byte{"m.ll": member})
	require.NoError(t, writeFile(path, archive))

	f.read(t, path)

	input := f.plugin.inputs[1]
	assert.Equal(t, path, input.Name)
	assert.Equal(t, int64(len(member)), input.FileSize)
	assert.Equal(t, member, archive[input.Offset:input.Offset+input.FileSize])

	require.Len(t, f.ctx.Objs, 1)
	assert.True(t, f.ctx.Objs[0].InLib)
	assert.False(t, f.ctx.Objs[0].IsAlive)

	file, status := f.session.getInputFile(1)
	assert.Equal(t, StatusOK, status)
	assert.Equal(t, input, *file)
}

func TestAddSymbolsOutsideClaim(t *testing.T) {
	f := newFixture(t, ld.Args{})
	f.read(t, f.writeIR(t, "a.ll", "def a func"))

	syms := []PluginSymbol{{Name: "x"}}
	assert.Equal(t, StatusBadHandle, f.session.addSymbols(1, syms))

	require.NoError(t, f.session.Compile())
	assert.Equal(t, StatusErr, f.session.addSymbols(1, syms))
}

// Scenario: A defines foo, B references it and nothing else defines it.
func TestResolveAcrossIRObjects(t *testing.T) {
	f := newFixture(t, ld.Args{})

	native, err := elftest.Object(elftest.Def("foo"), elftest.Def("main")).Write(f.dir, "ld-temp.o")
	require.NoError(t, err)
	f.plugin.outputs = []string{native}

	f.read(t,
		f.writeIR(t, "a.ll", "def foo func"),
		f.writeIR(t, "b.ll", "def main func", "undef foo"),
	)

	ld.ResolveSymbols(f.ctx)
	require.NoError(t, f.session.Compile())

	assert.Equal(t, []Resolution{ResolutionPrevailingDef}, f.plugin.resolutions[1])
	assert.Equal(t, []Resolution{ResolutionPrevailingDef, ResolutionResolvedIR}, f.plugin.resolutions[2])

	require.Len(t, f.ctx.Objs, 1)
	assert.Equal(t, native, f.ctx.Objs[0].Name())

	foo, _ := f.ctx.LookupSymbol("foo")
	assert.Same(t, f.ctx.Objs[0], foo.File)
	assert.Equal(t, PhaseResolved, f.session.Phase())
}

func TestResolutionKinds(t *testing.T) {
	f := newFixture(t, ld.Args{})

	so, err := elftest.Shared("libc.so.6", elftest.Def("puts")).Write(f.dir, "libc.so")
	require.NoError(t, err)
	obj, err := elftest.Object(elftest.Def("helper")).Write(f.dir, "helper.o")
	require.NoError(t, err)

	f.read(t,
		f.writeIR(t, "a.ll", "def main func", "undef puts", "undef helper", "undef missing", "undef other"),
		f.writeIR(t, "b.ll", "def other func"),
		obj, so,
	)

	ld.ResolveSymbols(f.ctx)
	require.NoError(t, f.session.Compile())

	assert.Equal(t, []Resolution{
		ResolutionPrevailingDef,
		ResolutionResolvedDyn,
		ResolutionResolvedExec,
		ResolutionUndef,
		ResolutionResolvedIR,
	}, f.plugin.resolutions[1])
}

func TestGetSymbolsNotAlive(t *testing.T) {
	for _, tt := range []struct {
		tag  Tag
		want Status
	}{
		{TagGetSymbols, StatusNoSyms},
		{TagGetSymbolsV2, StatusOK},
		{TagGetSymbolsV3, StatusOK},
	} {
		t.Run(tt.tag.String(), func(t *testing.T) {
			f := newFixture(t, ld.Args{})
			f.plugin.getSymbolsTag = tt.tag

			f.read(t, f.writeIR(t, "a.ll", "def a func", "undef b", "weakdef c func"))
			ld.ResolveSymbols(f.ctx)

			// excluded from the link before compilation
			f.ctx.Objs[0].IsAlive = false

			require.NoError(t, f.session.Compile())
			assert.Equal(t, tt.want, f.plugin.statuses[1])
			assert.Equal(t, []Resolution{
				ResolutionPreemptedReg,
				ResolutionPreemptedReg,
				ResolutionPreemptedReg,
			}, f.plugin.resolutions[1])
		})
	}
}

func TestGetSymbolsBadHandle(t *testing.T) {
	f := newFixture(t, ld.Args{})
	f.read(t, f.writeIR(t, "a.ll", "def a func"))

	assert.Equal(t, StatusBadHandle, f.session.getSymbolsV3(7, nil))
	assert.Equal(t, StatusBadHandle, f.session.getSymbolsV3(1, make([]PluginSymbol, 2)))

	_, status := f.session.getView(7)
	assert.Equal(t, StatusBadHandle, status)
}

func TestResolutionOf(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		kinds := []ld.InputFileKind{ld.InputFileObject, ld.InputFileShared, ld.InputFileIR}

		self := ld.NewInputFile(ld.NewMappedFile("self.ll", nil), ld.InputFileIR)
		other := ld.NewInputFile(ld.NewMappedFile("other", nil), rapid.SampledFrom(kinds).Draw(t, "kind"))
		sym := ld.NewSymbol("x")

		var want Resolution
		switch rapid.IntRange(0, 2).Draw(t, "owner") {
		case 0:
			want = ResolutionUndef
		case 1:
			sym.SetOwner(self, 1)
			want = ResolutionPrevailingDef
		default:
			sym.SetOwner(other, 1)
			switch other.Kind {
			case ld.InputFileShared:
				want = ResolutionResolvedDyn
			case ld.InputFileIR:
				want = ResolutionResolvedIR
			default:
				want = ResolutionResolvedExec
			}
		}

		if got := ResolutionOf(self, sym); got != want {
			t.Fatalf("got %s, want %s", got, want)
		}
	})
}

func TestCompiledObjectPriorities(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(t, ld.Args{})

		nInputs := rapid.IntRange(1, 4).Draw(rt, "inputs")
		nOutputs := rapid.IntRange(0, 4).Draw(rt, "outputs")

		var paths []string
		for i := 0; i < nInputs; i++ {
			paths = append(paths, f.writeIR(t, "in"+string(rune('a'+i))+".ll", "def f"+string(rune('a'+i))+" func"))
		}

		for i := 0; i < nOutputs; i++ {
			path, err := elftest.Object(elftest.Def("g" + string(rune('a'+i)))).Write(f.dir, "out"+string(rune('a'+i))+".o")
			if err != nil {
				rt.Fatalf("write: %v", err)
			}
			f.plugin.outputs = append(f.plugin.outputs, path)
		}

		if err := ld.ReadInputFiles(f.ctx, paths); err != nil {
			rt.Fatalf("read: %v", err)
		}

		var maxInput int64
		for _, file := range f.ctx.Files() {
			maxInput = max(maxInput, file.Priority)
		}

		ld.ResolveSymbols(f.ctx)
		if err := f.session.Compile(); err != nil {
			rt.Fatalf("compile: %v", err)
		}

		if len(f.ctx.Objs) != nOutputs {
			rt.Fatalf("%d objects left, want %d", len(f.ctx.Objs), nOutputs)
		}

		last := maxInput
		for _, file := range f.ctx.Objs {
			if file.IsIR() {
				rt.Fatalf("IR object %s survived compilation", file.Name())
			}
			if file.Priority <= last {
				rt.Fatalf("priority %d of %s not above %d", file.Priority, file.Name(), last)
			}
			last = file.Priority
		}
	})
}

func TestCompileTwice(t *testing.T) {
	f := newFixture(t, ld.Args{})
	f.read(t, f.writeIR(t, "a.ll", "def a func"))

	require.NoError(t, f.session.Compile())

	err := f.session.Compile()
	require.Error(t, err)
	assert.True(t, errors.IsAssertionFailure(err))
	assert.Equal(t, PhaseResolved, f.session.Phase())
}

func TestCompileBeforeLoad(t *testing.T) {
	f := newFixture(t, ld.Args{})

	err := f.session.Compile()
	assert.True(t, errors.IsAssertionFailure(err))
}

func TestAddInputFileRejectsNonObjects(t *testing.T) {
	f := newFixture(t, ld.Args{})
	f.plugin.outputs = []string{f.writeIR(t, "bogus.ll", "def a func")}
	f.read(t, f.writeIR(t, "a.ll", "def a func"))

	err := f.session.Compile()
	assert.ErrorContains(t, err, "not a relocatable object")

	assert.Equal(t, StatusErr, f.session.addInputFile(filepath.Join(f.dir, "missing.o")))
}

func TestCleanup(t *testing.T) {
	f := newFixture(t, ld.Args{})
	f.read(t, f.writeIR(t, "a.ll", "def a func"))
	require.NoError(t, f.session.Compile())

	require.NoError(t, f.session.Cleanup())
	assert.Equal(t, 1, f.plugin.cleanups)
	assert.Equal(t, -1, f.session.order[0].input.Fd)

	require.NoError(t, f.session.Cleanup())
	assert.Equal(t, 1, f.plugin.cleanups)
}

func TestCleanupWithoutPlugin(t *testing.T) {
	f := newFixture(t, ld.Args{})

	assert.NoError(t, f.session.Cleanup())
	assert.Equal(t, 0, f.plugin.loads)
	assert.Equal(t, 0, f.plugin.cleanups)
}

func TestUnsupportedCapabilities(t *testing.T) {
	f := newFixture(t, ld.Args{})
	require.NoError(t, f.session.Load())

	for _, tag := range []Tag{
		TagReleaseInputFile, TagAddInputLibrary, TagSetExtraLibraryPath,
		TagGetInputSectionCount, TagGetInputSectionType, TagGetInputSectionName,
		TagGetInputSectionContents, TagUpdateSectionOrder, TagAllowSectionOrdering,
		TagAllowUniqueSegmentForSections, TagUniqueSegmentForSections,
		TagGetInputSectionAlignment, TagGetInputSectionSize,
		TagRegisterNewInputHook, TagGetWrapSymbols,
	} {
		fn, ok := f.plugin.caps[tag].(UnsupportedFunc)
		require.True(t, ok, "%s", tag)
		assert.Equal(t, StatusOK, fn(), "%s", tag)
	}
}

func TestHooksWriteOnce(t *testing.T) {
	f := newFixture(t, ld.Args{})
	require.NoError(t, f.session.Load())

	register := f.plugin.caps[TagRegisterCleanupHook].(RegisterCleanupHookFunc)
	assert.Equal(t, StatusErr, register(func() Status { return StatusOK }))
}
