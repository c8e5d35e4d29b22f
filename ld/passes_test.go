package ld

import (
	"debug/elf"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"ltold/internal/elftest"
)

func readBytes(t *testing.T, ctx *Context, name string, data []byte) {
	t.Helper()
	require.NoError(t, ReadFile(ctx, NewMappedFile(name, data)))
}

func owner(t *testing.T, ctx *Context, name string) string {
	t.Helper()

	sym, ok := ctx.LookupSymbol(name)
	require.True(t, ok, "symbol %s", name)
	if sym.File == nil {
		return ""
	}

	return sym.File.Name()
}

// irFile builds an IR placeholder object the way the LTO session does.
func irFile(ctx *Context, name string, esyms ...ElfSym) *InputFile {
	file := NewInputFile(NewMappedFile(name, nil), InputFileIR)
	file.InitSymbols(ctx, append([]ElfSym{{}}, esyms...), 1)
	return file
}

func TestResolveStrongBeatsWeak(t *testing.T) {
	ctx := NewContext(Args{})
	readBytes(t, ctx, "weak.o", elftest.Object(elftest.Weak("foo")).Bytes())
	readBytes(t, ctx, "strong.o", elftest.Object(elftest.Def("foo")).Bytes())

	ResolveSymbols(ctx)
	assert.Equal(t, "strong.o", owner(t, ctx, "foo"))
}

func TestResolveFirstStrongWins(t *testing.T) {
	ctx := NewContext(Args{})
	readBytes(t, ctx, "a.o", elftest.Object(elftest.Def("foo")).Bytes())
	readBytes(t, ctx, "b.o", elftest.Object(elftest.Def("foo")).Bytes())

	ResolveSymbols(ctx)
	assert.Equal(t, "a.o", owner(t, ctx, "foo"))
}

func TestResolveObjectBeatsShared(t *testing.T) {
	ctx := NewContext(Args{})
	readBytes(t, ctx, "libc.so", elftest.Shared("libc.so.6", elftest.Def("malloc")).Bytes())
	readBytes(t, ctx, "malloc.o", elftest.Object(elftest.Def("malloc")).Bytes())

	ResolveSymbols(ctx)
	assert.Equal(t, "malloc.o", owner(t, ctx, "malloc"))
}

func TestResolveCommonLosesToDefinition(t *testing.T) {
	ctx := NewContext(Args{})
	readBytes(t, ctx, "a.o", elftest.Object(elftest.Common("buf", 8)).Bytes())
	readBytes(t, ctx, "b.o", elftest.Object(elftest.Sym{Name: "buf", Shndx: 1, Bind: elf.STB_GLOBAL, Type: elf.STT_OBJECT}).Bytes())

	ResolveSymbols(ctx)
	assert.Equal(t, "b.o", owner(t, ctx, "buf"))
}

func TestResolveArchiveMembers(t *testing.T) {
	ctx := NewContext(Args{})
	readBytes(t, ctx, "main.o", elftest.Object(elftest.Def("main"), elftest.Undef("foo"), elftest.WeakUndef("maybe")).Bytes())
	readBytes(t, ctx, "libfoo.a", elftest.Archive(map[string][]byte{
		"foo.o":    elftest.Object(elftest.Def("foo"), elftest.Undef("bar")).Bytes(),
		"bar.o":    elftest.Object(elftest.Def("bar")).Bytes(),
		"maybe.o":  elftest.Object(elftest.Def("maybe")).Bytes(),
		"unused.o": elftest.Object(elftest.Def("unused")).Bytes(),
	}))

	ResolveSymbols(ctx)

	assert.Equal(t, "libfoo.a(foo.o)", owner(t, ctx, "foo"))
	assert.Equal(t, "libfoo.a(bar.o)", owner(t, ctx, "bar"))
	assert.Equal(t, "", owner(t, ctx, "maybe"), "weak references do not pull members")
	assert.Equal(t, "", owner(t, ctx, "unused"))

	RemoveDeadFiles(ctx)

	var names []string
	for _, file := range ctx.Objs {
		names = append(names, file.Name())
	}
	assert.Equal(t, []string{"main.o", "libfoo.a(bar.o)", "libfoo.a(foo.o)"}, names)
}

func TestResolveNativeBeatsIR(t *testing.T) {
	ctx := NewContext(Args{})

	ir := irFile(ctx, "a.ll", ElfSym{Name: "foo", Shndx: elf.SHN_ABS, Bind: elf.STB_GLOBAL})
	ir.Priority = ctx.NextPriority()
	ir.IsAlive = true
	ctx.Objs = append(ctx.Objs, ir)

	ResolveSymbols(ctx)
	assert.Equal(t, "a.ll", owner(t, ctx, "foo"))

	native, err := ReadObject(ctx, NewMappedFile("a.lto.o", elftest.Object(elftest.Def("foo")).Bytes()))
	require.NoError(t, err)
	ctx.AddObject(native)

	assert.Equal(t, "a.lto.o", owner(t, ctx, "foo"))
	assert.Greater(t, native.Priority, ir.Priority)
}

func TestUndefinedSymbols(t *testing.T) {
	ctx := NewContext(Args{})
	readBytes(t, ctx, "main.o", elftest.Object(
		elftest.Def("main"),
		elftest.Undef("zeta"),
		elftest.Undef("alpha"),
		elftest.Undef("puts"),
		elftest.WeakUndef("optional"),
	).Bytes())
	readBytes(t, ctx, "other.o", elftest.Object(elftest.Undef("alpha")).Bytes())
	readBytes(t, ctx, "libc.so", elftest.Shared("libc.so.6", elftest.Def("puts")).Bytes())

	ResolveSymbols(ctx)
	assert.Equal(t, []string{"alpha", "zeta"}, UndefinedSymbols(ctx))
}

func TestClearSymbols(t *testing.T) {
	ctx := NewContext(Args{})
	readBytes(t, ctx, "a.o", elftest.Object(elftest.Def("foo"), elftest.Undef("bar")).Bytes())
	readBytes(t, ctx, "b.o", elftest.Object(elftest.Def("bar")).Bytes())

	ResolveSymbols(ctx)
	ctx.Objs[0].ClearSymbols()

	assert.Equal(t, "", owner(t, ctx, "foo"))
	assert.Equal(t, "b.o", owner(t, ctx, "bar"))
}

// Resolution is independent of the order files are resolved in.
func TestResolveOrderIndependent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		kinds := rapid.SliceOfN(rapid.IntRange(0, 3), 1, 8).Draw(t, "kinds")

		build := func(order []int) map[string]string {
			ctx := NewContext(Args{})
			for i, kind := range kinds {
				var sym elftest.Sym
				switch kind {
				case 0:
					sym = elftest.Def("x")
				case 1:
					sym = elftest.Weak("x")
				case 2:
					sym = elftest.Common("x", 4)
				default:
					sym = elftest.Undef("x")
				}

				data := elftest.Object(sym).Bytes()
				if err := ReadFile(ctx, NewMappedFile(fmt.Sprintf("%d.o", i), data)); err != nil {
					t.Fatalf("read: %v", err)
				}
			}

			files := ctx.Files()
			for _, i := range order {
				files[i].ResolveSymbols()
			}

			result := make(map[string]string)
			for name, sym := range ctx.SymbolMap {
				if sym.File != nil {
					result[name] = sym.File.Name()
				}
			}
			return result
		}

		forward := make([]int, len(kinds))
		for i := range forward {
			forward[i] = i
		}
		shuffled := rapid.Permutation(forward).Draw(t, "order")

		if a, b := build(forward), build(shuffled); fmt.Sprint(a) != fmt.Sprint(b) {
			t.Fatalf("order dependent resolution: %v vs %v", a, b)
		}
	})
}

func TestPrioritiesStrictlyIncrease(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := NewContext(Args{})
		n := rapid.IntRange(1, 50).Draw(t, "n")

		last := int64(0)
		for i := 0; i < n; i++ {
			p := ctx.NextPriority()
			if p <= last {
				t.Fatalf("priority %d after %d", p, last)
			}
			last = p
		}
	})
}
