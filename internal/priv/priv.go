// Package priv provides scoped privilege elevation for integrity cycles.
// Restricted files can only be hashed with elevated rights, so a cycle
// acquires them up front and restores the original identity on every
// exit path.
package priv

// Guard acquires elevated privileges for the duration of a cycle.
type Guard interface {
	// Acquire attempts to obtain elevated privileges. It reports whether
	// the process is now privileged and returns a release func that must
	// run on every exit path; release restores the prior identity and is
	// safe to call exactly once per Acquire.
	Acquire() (privileged bool, release func(), err error)
}

// OSGuard elevates via the operating system's effective-uid mechanism.
type OSGuard struct{}

// NewOSGuard returns the platform guard.
func NewOSGuard() *OSGuard {
	return &OSGuard{}
}
