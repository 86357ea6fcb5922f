// Package identity computes content-addressed identifiers for vault files
// and build artifacts. The SHA-256 digest over raw bytes is the primary key
// for every artifact: identical bytes always produce the identical hash, and
// expensive derived artifacts (media variants, embeddings) are cached by it.
package identity

import (
	"crypto/sha256"
	"io"
	"os"

	"github.com/iplanwebsites/repomd/pkg/types"
)

// Compute returns the content hash of a byte slice.
func Compute(data []byte) types.Hash {
	return types.HashBytes(data)
}

// ComputeString returns the content hash of a string.
func ComputeString(s string) types.Hash {
	return types.HashBytes([]byte(s))
}

// ComputeFile returns the content hash and size of a file, streaming the
// contents so large media files are not held in memory.
func ComputeFile(path string) (types.Hash, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.Hash{}, 0, err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return types.Hash{}, 0, err
	}

	var hash types.Hash
	copy(hash[:], h.Sum(nil))
	return hash, n, nil
}
