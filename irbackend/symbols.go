package irbackend

import (
	"strings"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"

	"ltold/lto"
)

// moduleSymbols lists the symbols of `m` visible to the linker in the order
// functions then globals.  Local symbols and LLVM intrinsics are skipped.
func moduleSymbols(m *ir.Module) []lto.PluginSymbol {
	var syms []lto.PluginSymbol

	for _, f := range m.Funcs {
		if !isLinkerVisible(f.Name(), f.Linkage) {
			continue
		}

		sym := lto.PluginSymbol{
			Name:       f.Name(),
			Def:        symbolKind(f.Linkage, len(f.Blocks) > 0),
			SymbolType: lto.SymbolTypeFunction,
			Visibility: visibility(f.Visibility),
		}

		if f.Comdat != nil {
			sym.ComdatKey = f.Comdat.Name
		}

		syms = append(syms, sym)
	}

	for _, g := range m.Globals {
		if !isLinkerVisible(g.Name(), g.Linkage) {
			continue
		}

		sym := lto.PluginSymbol{
			Name:       g.Name(),
			Def:        symbolKind(g.Linkage, g.Init != nil),
			SymbolType: lto.SymbolTypeVariable,
			Visibility: visibility(g.Visibility),
		}

		if g.Comdat != nil {
			sym.ComdatKey = g.Comdat.Name
		}

		syms = append(syms, sym)
	}

	return syms
}

func isLinkerVisible(name string, linkage enum.Linkage) bool {
	if strings.HasPrefix(name, "llvm.") {
		return false
	}

	return linkage != enum.LinkagePrivate && linkage != enum.LinkageInternal
}

func symbolKind(linkage enum.Linkage, defined bool) lto.SymbolKind {
	switch linkage {
	case enum.LinkageExternWeak:
		return lto.SymbolWeakUndef
	case enum.LinkageCommon:
		return lto.SymbolCommon
	case enum.LinkageAvailableExternally:
		// the body is only there for inlining: the definition lives elsewhere
		return lto.SymbolUndef
	}

	if !defined {
		return lto.SymbolUndef
	}

	switch linkage {
	case enum.LinkageWeak, enum.LinkageWeakODR, enum.LinkageLinkOnce, enum.LinkageLinkOnceODR:
		return lto.SymbolWeakDef
	}

	return lto.SymbolDef
}

func visibility(vis enum.Visibility) lto.SymbolVisibility {
	switch vis {
	case enum.VisibilityHidden:
		return lto.VisibilityHidden
	case enum.VisibilityProtected:
		return lto.VisibilityProtected
	}

	return lto.VisibilityDefault
}

// isPrevailing returns whether the linker kept the IR definition.
func isPrevailing(res lto.Resolution) bool {
	switch res {
	case lto.ResolutionPrevailingDef, lto.ResolutionPrevailingDefIronly, lto.ResolutionPrevailingDefIronlyExp:
		return true
	}

	return false
}

// internalize turns every definition of `m` that did not prevail into a
// declaration.  It returns whether any definition is left to compile.
func internalize(m *ir.Module, syms []lto.PluginSymbol) bool {
	resolutions := make(map[string]lto.Resolution, len(syms))
	for _, sym := range syms {
		resolutions[sym.Name] = sym.Resolution
	}

	defined := false

	for _, f := range m.Funcs {
		if len(f.Blocks) == 0 {
			continue
		}

		if res, ok := resolutions[f.Name()]; ok && !isPrevailing(res) {
			f.Blocks = nil
			f.Linkage = enum.LinkageNone
			f.Comdat = nil
			f.Personality = nil
			continue
		}

		defined = true
	}

	for _, g := range m.Globals {
		if g.Init == nil {
			continue
		}

		if res, ok := resolutions[g.Name()]; ok && !isPrevailing(res) {
			g.Init = nil
			g.Linkage = enum.LinkageExternal
			g.Comdat = nil
			continue
		}

		defined = true
	}

	return defined
}
