package codegen

import (
	"janet/internal/types"
)

// ---------------------------------------------------------------------------
// Scope tracker
// ---------------------------------------------------------------------------

// scope is one lexical block of a native method. It is OPEN while its
// contents are prepared and CLOSED once finalCheck has decided whether the
// block intercepts abrupt completions and whether it needs a cleanup
// section.
type scope struct {
	parent *scope
	fn     *function

	// refs are the references whose lifetime ends with this block.
	refs []*ref

	// throws holds the exceptions raised inside the block.
	throws types.ExceptionSet

	// forced marks try statements, which always open an interception
	// region.
	forced bool
	// monitor is the monitor slot held by a synchronized statement, -1 when
	// none.
	monitor int

	usesLocalExceptions bool
	abruptsUsed         bool // explicit throw or return in this block
	returns             bool // a return statement inside may leave the block
	abruptingChildren   int  // children that delegated interception upward
	escapingChildren    int  // intercepting children that still complete abruptly

	// escapes overrides the abruptness seen by the parent for forced
	// scopes; set by the try statement before finalization.
	escapes bool

	requiresTry      bool
	requiresDestruct bool
	closed           bool
}

func newScope(fn *function, parent *scope) *scope {
	return &scope{parent: parent, fn: fn, monitor: -1}
}

// own makes s responsible for declaring and releasing r.
func (s *scope) own(r *ref) {
	for _, o := range s.refs {
		if o == r {
			return
		}
	}
	s.refs = append(s.refs, r)
}

// releasedRefs returns the references s releases, in declaration order.
func (s *scope) releasedRefs() []*ref {
	var out []*ref
	for _, r := range s.refs {
		if r.mustRelease() {
			out = append(out, r)
		}
	}
	return out
}

func (s *scope) hasReleases() bool {
	return s.monitor >= 0 || len(s.releasedRefs()) > 0
}

// abrupt reports whether anything inside s can complete abruptly.
func (s *scope) abrupt() bool {
	return !s.throws.Empty() || s.abruptsUsed || s.abruptingChildren > 0 || s.escapingChildren > 0
}

// finalCheck closes s and decides its interception shape from what was
// recorded while it was open.
func (s *scope) finalCheck() {
	if s.closed {
		panic(internalError("scope finalized twice"))
	}
	s.closed = true

	abrupt := s.abrupt()
	if abrupt || s.forced {
		s.fn.usesExceptions = true
	}

	delegate := false
	switch {
	case s.forced:
		s.requiresTry = true
		s.requiresDestruct = s.hasReleases()
	case !abrupt:
	case s.hasReleases():
		s.requiresTry = true
		s.requiresDestruct = true
	case s.usesLocalExceptions:
		s.requiresTry = true
	case s.parent != nil:
		delegate = true
	default:
		// The method body is the interceptor of last resort.
		s.requiresTry = s.abruptingChildren > 0
	}

	if s.parent == nil {
		return
	}
	if s.returns {
		s.parent.returns = true
	}
	switch {
	case delegate:
		s.parent.abruptingChildren++
	case s.forced && s.escapes, !s.forced && abrupt:
		s.parent.escapingChildren++
	}
}

// intercepting reports whether s or an enclosing block owns an
// interception region, so that LOCAL exception macros can be used.
func (s *scope) intercepting() bool {
	for ; s != nil; s = s.parent {
		if s.requiresTry {
			return true
		}
	}
	return false
}

// endSuffix names the flavour of _JANET_EXCEPTION_CONTEXT_END_ that closes
// the region of s.
func (s *scope) endSuffix() string {
	if s.parent.intercepting() {
		return "LOCAL"
	}
	return "GLOBAL" + s.fn.retSuffix()
}
