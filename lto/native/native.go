//go:build cgo

package native

/*
#cgo LDFLAGS: -ldl
#include <stdlib.h>
#include "plugin_api.h"
*/
import "C"

import (
	"sync"
	"unsafe"

	"github.com/cockroachdb/errors"

	"ltold/common"
	"ltold/lto"
)

var (
	loadOnce sync.Once

	// loadErr is the outcome of the one load attempt of the process.
	loadErr error

	// active is the plugin of this process.  The C trampolines reach their
	// capabilities through it.
	active *bridge
)

// bridge connects the loaded plugin to the capabilities of the session that
// loaded it.
type bridge struct {
	dl unsafe.Pointer

	// caps maps function tags of the transfer vector to Go capabilities.
	caps map[lto.Tag]any

	// hook function pointers registered by the plugin
	claimFileFn      unsafe.Pointer
	allSymbolsReadFn unsafe.Pointer
	cleanupFn        unsafe.Pointer

	// inputs are the C descriptors of the claimed files.
	inputs map[lto.Handle]*C.struct_ld_plugin_input_file

	// tv and strings live in C memory for the rest of the process since the
	// plugin may keep pointers to them.
	tv      []C.struct_ld_plugin_tv
	strings []*C.char
}

// Load opens the shared library at `path` and calls its onload function with
// `tv`.  Only one load is attempted per process: later calls fail with the
// error of that attempt, or errAlreadyLoaded if it succeeded.
func (l *Loader) Load(path string, tv []lto.TagValue) error {
	first := false
	loadOnce.Do(func() {
		first = true
		loadErr = load(path, tv)
	})

	if !first && loadErr == nil {
		return errAlreadyLoaded
	}

	return loadErr
}

func load(path string, tv []lto.TagValue) error {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	dl := C.ltold_open_plugin(cpath)
	if dl == nil {
		return errors.Newf("could not open plugin %s: %s", path, C.GoString(C.ltold_dlerror()))
	}

	onload := C.ltold_find_onload(dl)
	if onload == nil {
		return errors.Newf("%s: symbol %s not found", path, common.OnloadSymbol)
	}

	b := &bridge{
		dl:     dl,
		caps:   make(map[lto.Tag]any),
		inputs: make(map[lto.Handle]*C.struct_ld_plugin_input_file),
	}

	if err := b.buildTransferVector(tv); err != nil {
		return err
	}

	active = b
	if status := lto.Status(C.ltold_call_onload(onload, &b.tv[0])); status != lto.StatusOK {
		return errors.Newf("%s: onload failed: %s", path, status)
	}

	return nil
}

// buildTransferVector converts `tv` to its C representation.  Function
// values are replaced by the C trampoline of their tag.
func (b *bridge) buildTransferVector(tv []lto.TagValue) error {
	if len(tv) == 0 || tv[len(tv)-1].Tag != lto.TagNull {
		return errors.AssertionFailedf("transfer vector is not NULL terminated")
	}

	ctv := (*C.struct_ld_plugin_tv)(C.calloc(C.size_t(len(tv)), C.sizeof_struct_ld_plugin_tv))
	b.tv = unsafe.Slice(ctv, len(tv))

	for i, entry := range tv {
		tag := C.int(entry.Tag)

		switch v := entry.Value.(type) {
		case nil:
			C.ltold_tv_set_val(&b.tv[i], tag, 0)
		case lto.OutputFileType:
			C.ltold_tv_set_val(&b.tv[i], tag, C.int(v))
		case int:
			C.ltold_tv_set_val(&b.tv[i], tag, C.int(v))
		case string:
			C.ltold_tv_set_string(&b.tv[i], tag, b.cstring(v))
		default:
			if C.ltold_tv_set_fn(&b.tv[i], tag) == 0 {
				return errors.AssertionFailedf("no trampoline for %s", entry.Tag)
			}

			b.caps[entry.Tag] = v
		}
	}

	return nil
}

// hasTrampoline returns whether a C trampoline exists for `tag`.
func hasTrampoline(tag lto.Tag) bool {
	var tv C.struct_ld_plugin_tv
	return C.ltold_tv_set_fn(&tv, C.int(tag)) != 0
}

func (b *bridge) cstring(s string) *C.char {
	cs := C.CString(s)
	b.strings = append(b.strings, cs)
	return cs
}

// inputFor returns the C descriptor of a claimed file.
func (b *bridge) inputFor(file *lto.PluginInputFile) *C.struct_ld_plugin_input_file {
	if cfile, ok := b.inputs[file.Handle]; ok {
		return cfile
	}

	cfile := (*C.struct_ld_plugin_input_file)(C.calloc(1, C.sizeof_struct_ld_plugin_input_file))
	cfile.name = b.cstring(file.Name)
	cfile.fd = C.int(file.Fd)
	cfile.offset = C.off_t(file.Offset)
	cfile.filesize = C.off_t(file.FileSize)
	cfile.handle = C.ltold_handle(C.uintptr_t(file.Handle))

	b.inputs[file.Handle] = cfile
	return cfile
}

// -----------------------------------------------------------------------------

func (b *bridge) claimFile(file *lto.PluginInputFile) (bool, lto.Status) {
	var claimed C.int
	status := lto.Status(C.ltold_call_claim_file(b.claimFileFn, b.inputFor(file), &claimed))
	return claimed != 0, status
}

func (b *bridge) allSymbolsRead() lto.Status {
	return lto.Status(C.ltold_call_hook(b.allSymbolsReadFn))
}

func (b *bridge) cleanup() lto.Status {
	return lto.Status(C.ltold_call_hook(b.cleanupFn))
}

func fromCSymbol(csym *C.struct_ld_plugin_symbol) lto.PluginSymbol {
	return lto.PluginSymbol{
		Name:        C.GoString(csym.name),
		Version:     C.GoString(csym.version),
		Def:         lto.SymbolKind(csym.def),
		SymbolType:  lto.SymbolType(csym.symbol_type),
		SectionKind: lto.SymbolSectionKind(csym.section_kind),
		Visibility:  lto.SymbolVisibility(csym.visibility),
		Size:        uint64(csym.size),
		ComdatKey:   C.GoString(csym.comdat_key),
		Resolution:  lto.Resolution(csym.resolution),
	}
}

// formatString runs `s` through the formatter behind the message trampoline.
func formatString(s string) string {
	cs := C.CString(s)
	defer C.free(unsafe.Pointer(cs))

	out := C.ltold_format_string(cs)
	if out == nil {
		return ""
	}
	defer C.free(unsafe.Pointer(out))

	return C.GoString(out)
}
