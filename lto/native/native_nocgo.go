//go:build !cgo

package native

import (
	"github.com/cockroachdb/errors"

	"ltold/lto"
)

// Load always fails: loading a shared-library plugin requires cgo.
func (l *Loader) Load(path string, tv []lto.TagValue) error {
	return errors.Newf("cannot load plugin %s: ltold was built without cgo", path)
}
