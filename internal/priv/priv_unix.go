//go:build unix

package priv

import (
	"os"
	"syscall"
)

// Acquire elevates to euid 0 when possible. A process already running as
// root is privileged as-is. Otherwise a seteuid(0) attempt is made, which
// succeeds for setuid-root binaries that dropped to the invoking user; on
// failure the process simply stays unprivileged and the caller decides
// whether that is fatal.
//
// syscall.Seteuid applies to all threads on Linux (Go 1.16+), so the
// elevation covers every hash worker.
func (g *OSGuard) Acquire() (bool, func(), error) {
	euid := os.Geteuid()
	if euid == 0 {
		return true, func() {}, nil
	}

	if err := syscall.Seteuid(0); err != nil {
		return false, func() {}, nil
	}

	release := func() {
		// Restoration failure would leave the process privileged past the
		// cycle; abort rather than continue in that state.
		if err := syscall.Seteuid(euid); err != nil {
			panic("priv: failed to drop elevated privileges: " + err.Error())
		}
	}
	return true, release, nil
}
