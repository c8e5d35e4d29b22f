package ld

import (
	"sort"

	"ltold/common"
)

// ResolveSymbols binds every global symbol to its winning definition.  Lazy
// archive members reachable from live files are pulled in, and symbols left
// owned by members that stayed dead are redone against the live files only.
func ResolveSymbols(ctx *Context) {
	for _, file := range ctx.Files() {
		file.ResolveSymbols()
	}

	MarkLiveObjects(ctx)

	for _, file := range ctx.Files() {
		if !file.IsAlive {
			file.ClearSymbols()
		}
	}

	RedoSymbolResolution(ctx)
}

// RedoSymbolResolution clears all ownership and resolves the live files again.
// It is used once the set of live files changed.
func RedoSymbolResolution(ctx *Context) {
	for _, sym := range ctx.SymbolMap {
		sym.Clear()
	}

	for _, file := range ctx.Files() {
		if file.IsAlive {
			file.ResolveSymbols()
		}
	}
}

// MarkLiveObjects propagates liveness from live objects to the lazy archive
// members defining the symbols they reference.
func MarkLiveObjects(ctx *Context) {
	var roots []*InputFile
	for _, file := range ctx.Objs {
		if file.IsAlive {
			roots = append(roots, file)
		}
	}

	for len(roots) > 0 {
		file := roots[0]
		roots = roots[1:]

		for _, i := range file.UndefinedRefs() {
			sym := file.Symbols[i]
			if sym.File != nil && !sym.File.IsAlive {
				sym.File.IsAlive = true
				roots = append(roots, sym.File)
			}
		}
	}
}

// RemoveDeadFiles drops the objects that are not part of the output.
func RemoveDeadFiles(ctx *Context) {
	ctx.Objs = common.RemoveIf(ctx.Objs, func(file *InputFile) bool {
		return !file.IsAlive
	})
}

// UndefinedSymbols returns the sorted names of the symbols live objects
// reference strongly but no file defines.
func UndefinedSymbols(ctx *Context) []string {
	seen := make(map[string]struct{})
	var names []string

	for _, file := range ctx.Objs {
		if !file.IsAlive {
			continue
		}

		for _, i := range file.UndefinedRefs() {
			sym := file.Symbols[i]
			if sym.File != nil {
				continue
			}

			if _, ok := seen[sym.Name]; !ok {
				seen[sym.Name] = struct{}{}
				names = append(names, sym.Name)
			}
		}
	}

	sort.Strings(names)
	return names
}
