// Package native loads linker plugins built against the GNU linker plugin
// interface: shared libraries such as LLVM's LLVMgold.so or GCC's
// liblto_plugin.so.  Their C callbacks are routed to the Go capabilities of
// an lto.Session.
package native

import "github.com/cockroachdb/errors"

// errAlreadyLoaded is returned when a second plugin load is attempted: the
// plugin interface has no way to unload a plugin or tell two apart.
var errAlreadyLoaded = errors.New("a linker plugin was already loaded by this process")

// Loader loads shared-library plugins.
type Loader struct{}

// NewLoader creates a new native plugin loader.
func NewLoader() *Loader {
	return &Loader{}
}
