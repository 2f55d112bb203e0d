//go:build !unix

package priv

// Acquire reports unprivileged on platforms without effective-uid
// semantics; secure mode is a unix feature.
func (g *OSGuard) Acquire() (bool, func(), error) {
	return false, func() {}, nil
}
