package cas

import (
	"encoding/hex"
	"hash"
	"io"

	"github.com/zeebo/blake3"
)

// Sum returns the hex BLAKE3-256 digest of data.
func Sum(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Hasher computes a BLAKE3-256 digest of everything written to it.
type Hasher struct {
	h hash.Hash
}

// NewHasher creates an empty Hasher.
func NewHasher() *Hasher {
	return &Hasher{h: blake3.New()}
}

// Write adds p to the digest. It never returns an error.
func (h *Hasher) Write(p []byte) (int, error) {
	return h.h.Write(p)
}

// Sum returns the hex digest of the data written so far.
func (h *Hasher) Sum() string {
	return hex.EncodeToString(h.h.Sum(nil))
}

// TeeReader returns a reader that hashes everything read from r into h.
func (h *Hasher) TeeReader(r io.Reader) io.Reader {
	return io.TeeReader(r, h)
}
