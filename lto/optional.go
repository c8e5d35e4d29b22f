package lto

import "ltold/report"

// unsupported answers an optional capability this linker does not implement.
// The plugin is told the request succeeded with nothing to report, which
// makes it fall back to its default behaviour.
func (s *Session) unsupported(tag Tag) UnsupportedFunc {
	return func() Status {
		report.Trace("lto: %s: not supported", tag)
		return StatusOK
	}
}
