package lto

import "github.com/cockroachdb/errors"

// Phase is the state of the plugin protocol.  It only ever moves forward.
type Phase int

const (
	PhaseUnstarted Phase = iota // no handshake yet
	PhaseClaiming               // handshake done, IR objects are being claimed
	PhaseResolved               // all symbols read, IR objects compiled
)

func (p Phase) String() string {
	switch p {
	case PhaseUnstarted:
		return "unstarted"
	case PhaseClaiming:
		return "claiming"
	case PhaseResolved:
		return "resolved"
	}

	return "invalid"
}

// advance moves the session from phase `from` to phase `to`.
func (s *Session) advance(from, to Phase) error {
	if s.phase != from {
		return errors.AssertionFailedf("lto: cannot enter phase %s from phase %s (expected %s)", to, s.phase, from)
	}

	s.phase = to
	return nil
}
