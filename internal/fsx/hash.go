package fsx

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/spf13/afero"
)

// Checksum is a SHA-256 content digest.
type Checksum [sha256.Size]byte

// String returns the digest in lowercase hex.
func (c Checksum) String() string {
	return hex.EncodeToString(c[:])
}

// ParseChecksum decodes a lowercase hex digest as produced by String.
func ParseChecksum(s string) (Checksum, error) {
	var c Checksum
	raw, err := hex.DecodeString(s)
	if err != nil {
		return c, fmt.Errorf("invalid checksum %q: %w", s, err)
	}
	if len(raw) != sha256.Size {
		return c, fmt.Errorf("invalid checksum %q: got %d bytes, want %d", s, len(raw), sha256.Size)
	}
	copy(c[:], raw)
	return c, nil
}

// Digest computes the SHA-256 checksum of the file at path. The returned
// error wraps the underlying filesystem error, so callers can test for
// fs.ErrPermission with errors.Is.
func Digest(fsys afero.Fs, path string) (Checksum, error) {
	var sum Checksum

	f, err := fsys.Open(path)
	if err != nil {
		return sum, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return sum, fmt.Errorf("read %s: %w", path, err)
	}

	copy(sum[:], h.Sum(nil))
	return sum, nil
}
