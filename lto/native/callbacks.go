//go:build cgo

package native

/*
#include "plugin_api.h"
*/
import "C"

import (
	"unsafe"

	"ltold/lto"
)

// Functions called by the C trampolines in bridge.c.

//export ltoldMessage
func ltoldMessage(level C.int, msg *C.char) C.int {
	fn := active.caps[lto.TagMessage].(lto.MessageFunc)
	return C.int(fn(lto.Level(level), C.GoString(msg)))
}

//export ltoldRegisterHook
func ltoldRegisterHook(tag C.int, fn unsafe.Pointer) C.int {
	var status lto.Status

	switch lto.Tag(tag) {
	case lto.TagRegisterClaimFileHook:
		active.claimFileFn = fn
		status = active.caps[lto.TagRegisterClaimFileHook].(lto.RegisterClaimFileHookFunc)(active.claimFile)
	case lto.TagRegisterAllSymbolsReadHook:
		active.allSymbolsReadFn = fn
		status = active.caps[lto.TagRegisterAllSymbolsReadHook].(lto.RegisterAllSymbolsReadHookFunc)(active.allSymbolsRead)
	case lto.TagRegisterCleanupHook:
		active.cleanupFn = fn
		status = active.caps[lto.TagRegisterCleanupHook].(lto.RegisterCleanupHookFunc)(active.cleanup)
	default:
		status = lto.StatusErr
	}

	return C.int(status)
}

//export ltoldAddSymbols
func ltoldAddSymbols(handle C.uintptr_t, nsyms C.int, syms *C.struct_ld_plugin_symbol) C.int {
	csyms := unsafe.Slice(syms, int(nsyms))

	gsyms := make([]lto.PluginSymbol, len(csyms))
	for i := range csyms {
		gsyms[i] = fromCSymbol(&csyms[i])
	}

	fn := active.caps[lto.TagAddSymbols].(lto.AddSymbolsFunc)
	return C.int(fn(lto.Handle(handle), gsyms))
}

//export ltoldGetSymbols
func ltoldGetSymbols(tag C.int, handle C.uintptr_t, nsyms C.int, syms *C.struct_ld_plugin_symbol) C.int {
	csyms := unsafe.Slice(syms, int(nsyms))

	gsyms := make([]lto.PluginSymbol, len(csyms))
	for i := range csyms {
		gsyms[i] = fromCSymbol(&csyms[i])
	}

	fn := active.caps[lto.Tag(tag)].(lto.GetSymbolsFunc)
	status := fn(lto.Handle(handle), gsyms)

	if status == lto.StatusOK || status == lto.StatusNoSyms {
		for i := range csyms {
			csyms[i].resolution = C.int(gsyms[i].Resolution)
		}
	}

	return C.int(status)
}

//export ltoldAddInputFile
func ltoldAddInputFile(path *C.char) C.int {
	fn := active.caps[lto.TagAddInputFile].(lto.AddInputFileFunc)
	return C.int(fn(C.GoString(path)))
}

//export ltoldGetInputFile
func ltoldGetInputFile(handle C.uintptr_t, file *C.struct_ld_plugin_input_file) C.int {
	fn := active.caps[lto.TagGetInputFile].(lto.GetInputFileFunc)

	input, status := fn(lto.Handle(handle))
	if status == lto.StatusOK {
		*file = *active.inputFor(input)
	}

	return C.int(status)
}

//export ltoldGetView
func ltoldGetView(handle C.uintptr_t, viewp *unsafe.Pointer) C.int {
	fn := active.caps[lto.TagGetView].(lto.GetViewFunc)

	data, status := fn(lto.Handle(handle))
	if status == lto.StatusOK {
		// mapped file contents live outside the Go heap
		*viewp = nil
		if len(data) > 0 {
			*viewp = unsafe.Pointer(&data[0])
		}
	}

	return C.int(status)
}

//export ltoldUnsupported
func ltoldUnsupported(tag C.int) C.int {
	fn, ok := active.caps[lto.Tag(tag)].(lto.UnsupportedFunc)
	if !ok {
		return C.int(lto.StatusOK)
	}

	return C.int(fn())
}
